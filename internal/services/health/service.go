package health

import (
	"fmt"
	"time"

	"media-analyzer/internal/detection"
)

// ModelReporter exposes model readiness.
type ModelReporter interface {
	Loaded() bool
	LoadedAt() time.Time
}

// QueueReporter exposes queue occupancy.
type QueueReporter interface {
	Len() int
	Cap() int
	Closed() bool
}

// Report is the /health payload.
type Report struct {
	Status        string  `json:"status"`
	Service       string  `json:"service"`
	ModelsLoaded  bool    `json:"models_loaded"`
	Accepting     bool    `json:"accepting"`
	QueueDepth    int     `json:"queue_depth"`
	QueueCapacity int     `json:"queue_capacity"`
	Timestamp     float64 `json:"timestamp"`
}

// ModelsReport is the /models/status payload.
type ModelsReport struct {
	ModelsLoaded     bool     `json:"models_loaded"`
	LoadedAt         string   `json:"loaded_at,omitempty"`
	FaceModel        *string  `json:"face_model"`
	VoiceModel       *string  `json:"voice_model"`
	SupportedFormats []string `json:"supported_formats"`
	MaxFileSize      string   `json:"max_file_size"`
}

// Service encapsulates health-related checks.
type Service struct {
	Models         ModelReporter
	Queue          QueueReporter
	MaxUploadBytes int64
}

// NewService constructs a new health service.
func NewService(models ModelReporter, queue QueueReporter, maxUploadBytes int64) *Service {
	return &Service{Models: models, Queue: queue, MaxUploadBytes: maxUploadBytes}
}

// Status returns the liveness payload.
func (s *Service) Status() Report {
	r := Report{
		Status:    "OK",
		Service:   "media-analyzer",
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
	if s.Models != nil {
		r.ModelsLoaded = s.Models.Loaded()
	}
	if s.Queue != nil {
		r.QueueDepth = s.Queue.Len()
		r.QueueCapacity = s.Queue.Cap()
		r.Accepting = !s.Queue.Closed()
	}
	return r
}

// ModelStatus describes the loaded models and accepted inputs.
func (s *Service) ModelStatus() ModelsReport {
	r := ModelsReport{
		SupportedFormats: []string{"mp4", "mov", "avi", "mkv"},
		MaxFileSize:      formatBytes(s.MaxUploadBytes),
	}
	if s.Models == nil || !s.Models.Loaded() {
		return r
	}
	face, voice := detection.FaceModel, detection.VoiceModel
	r.ModelsLoaded = true
	r.FaceModel = &face
	r.VoiceModel = &voice
	if at := s.Models.LoadedAt(); !at.IsZero() {
		r.LoadedAt = at.Format(time.RFC3339)
	}
	return r
}

func formatBytes(n int64) string {
	switch {
	case n <= 0:
		return "unlimited"
	case n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
