package detection

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const (
	FaceThreshold  = 90.0
	VoiceThreshold = 92.0

	FaceModel  = "XceptionNet-v2.1"
	VoiceModel = "RawNet2-v1.8"
)

// Analyzer scores one modality of a job.
type Analyzer interface {
	Modality() Modality
	Analyze(ctx context.Context, in Input) (ModalityResult, error)
}

// Scorer produces a confidence in [0, 100] that the media is authentic.
type Scorer interface {
	Score(ctx context.Context, in Input) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, in Input) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, in Input) (float64, error) { return f(ctx, in) }

// UniformScorer draws confidences uniformly from [Min, Max]. It stands in for
// real model inference.
type UniformScorer struct {
	min, max float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewUniformScorer(min, max float64, seed uint64) *UniformScorer {
	return &UniformScorer{min: min, max: max, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *UniformScorer) Score(_ context.Context, _ Input) (float64, error) {
	s.mu.Lock()
	v := s.rng.Float64()
	s.mu.Unlock()
	return s.min + v*(s.max-s.min), nil
}

// Options configure the reference analyzers.
type Options struct {
	Scorer      Scorer
	Work        time.Duration
	WeightsPath string
}

type base struct {
	modality  Modality
	model     string
	threshold float64
	opts      Options
	ready     atomic.Bool
}

// Load checks the configured weights file and marks the analyzer ready.
func (b *base) Load(_ context.Context) error {
	if b.opts.WeightsPath != "" {
		if _, err := os.Stat(b.opts.WeightsPath); err != nil {
			return fmt.Errorf("%s weights: %w", b.modality, err)
		}
	}
	b.ready.Store(true)
	return nil
}

func (b *base) Modality() Modality { return b.modality }

func (b *base) score(ctx context.Context, in Input) (float64, error) {
	if !b.ready.Load() {
		return 0, &AnalysisError{Modality: b.modality, Err: ErrModelsNotLoaded}
	}
	if err := simulateWork(ctx, b.opts.Work); err != nil {
		return 0, &AnalysisError{Modality: b.modality, Err: err}
	}
	v, err := b.opts.Scorer.Score(ctx, in)
	if err != nil {
		return 0, &AnalysisError{Modality: b.modality, Err: err}
	}
	if math.IsNaN(v) {
		return 0, &AnalysisError{Modality: b.modality, Err: fmt.Errorf("scorer returned NaN")}
	}
	// Unrounded: thresholds compare against the exact score.
	return math.Max(0, math.Min(100, v)), nil
}

// FaceAnalyzer scores sampled video frames for facial manipulation.
type FaceAnalyzer struct {
	base
}

func NewFaceAnalyzer(opts Options) *FaceAnalyzer {
	if opts.Scorer == nil {
		opts.Scorer = NewUniformScorer(85, 98, uint64(time.Now().UnixNano()))
	}
	return &FaceAnalyzer{base{modality: ModalityFace, model: FaceModel, threshold: FaceThreshold, opts: opts}}
}

func (a *FaceAnalyzer) Analyze(ctx context.Context, in Input) (ModalityResult, error) {
	start := time.Now()
	if len(in.Frames) == 0 {
		return ModalityResult{}, &AnalysisError{Modality: ModalityFace, Err: ErrEmptyInput}
	}
	confidence, err := a.score(ctx, in)
	if err != nil {
		return ModalityResult{}, err
	}
	anomalous := confidence < a.threshold
	suspicious := 0
	if anomalous {
		suspicious = 1
	}
	return ModalityResult{
		Modality:              ModalityFace,
		Confidence:            confidence,
		IsAnomalous:           anomalous,
		ModelName:             a.model,
		UnitsAnalyzed:         len(in.Frames),
		ProcessingTimeSeconds: round2(time.Since(start).Seconds()),
		Extra: map[string]any{
			"regions":    len(in.Frames),
			"suspicious": suspicious,
		},
	}, nil
}

// VoiceAnalyzer scores the audio track in two-second segments.
type VoiceAnalyzer struct {
	base
}

func NewVoiceAnalyzer(opts Options) *VoiceAnalyzer {
	if opts.Scorer == nil {
		opts.Scorer = NewUniformScorer(88, 96, uint64(time.Now().UnixNano())+1)
	}
	return &VoiceAnalyzer{base{modality: ModalityVoice, model: VoiceModel, threshold: VoiceThreshold, opts: opts}}
}

func (a *VoiceAnalyzer) Analyze(ctx context.Context, in Input) (ModalityResult, error) {
	start := time.Now()
	if len(in.Audio.Samples) == 0 {
		return ModalityResult{}, &AnalysisError{Modality: ModalityVoice, Err: ErrEmptyInput}
	}
	confidence, err := a.score(ctx, in)
	if err != nil {
		return ModalityResult{}, err
	}
	duration := in.Audio.DurationSeconds()
	segments := VoiceSegments(duration)
	anomalous := confidence < a.threshold
	anomalies := 0
	if anomalous {
		anomalies = 1
	}
	return ModalityResult{
		Modality:              ModalityVoice,
		Confidence:            confidence,
		IsAnomalous:           anomalous,
		ModelName:             a.model,
		UnitsAnalyzed:         segments,
		ProcessingTimeSeconds: round2(time.Since(start).Seconds()),
		Extra: map[string]any{
			"segments":       segments,
			"anomalies":      anomalies,
			"audio_duration": round2(duration),
		},
	}, nil
}

// VoiceSegments returns the number of two-second segments in duration, at least one.
func VoiceSegments(durationSeconds float64) int {
	n := int(math.Floor(durationSeconds / 2))
	if n < 1 {
		return 1
	}
	return n
}

func simulateWork(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
