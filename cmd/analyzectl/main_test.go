package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"media-analyzer/internal/analyses"
	"media-analyzer/internal/detection"
)

type fakeExtractor struct {
	frames   int
	seconds  float64
	audioErr error
}

func (f fakeExtractor) ExtractVisual(ctx context.Context, path string, maxUnits int) ([]detection.Frame, error) {
	frames := make([]detection.Frame, f.frames)
	for i := range frames {
		frames[i] = detection.Frame{Index: i, Width: 2, Height: 2, Pixels: make([]byte, 12)}
	}
	return frames, nil
}

func (f fakeExtractor) ExtractAudio(ctx context.Context, path string, rate int) (detection.Waveform, error) {
	if f.audioErr != nil {
		return detection.Waveform{}, f.audioErr
	}
	return detection.Waveform{Samples: make([]float32, int(f.seconds*float64(rate))), SampleRate: rate}, nil
}

func fixedScore(v float64) detection.Scorer {
	return detection.ScorerFunc(func(context.Context, detection.Input) (float64, error) { return v, nil })
}

func TestAnalyzeLocalAggregatesBothModalities(t *testing.T) {
	analyzers := []detection.Analyzer{
		detection.NewFaceAnalyzer(detection.Options{Scorer: fixedScore(95)}),
		detection.NewVoiceAnalyzer(detection.Options{Scorer: fixedScore(93)}),
	}

	report, err := analyzeLocal(context.Background(), fakeExtractor{frames: 3, seconds: 5}, analyzers, "clip.mp4", 30, 16000)
	if err != nil {
		t.Fatalf("analyzeLocal: %v", err)
	}
	if report.Verdict.IsDeepfake {
		t.Fatalf("expected authentic verdict")
	}
	if report.Verdict.Confidence != 94 {
		t.Fatalf("expected confidence 94, got %v", report.Verdict.Confidence)
	}

	out := renderReport(report)
	for _, want := range []string{"face", "voice", "overall", detection.StatusVerifiedReal} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestAnalyzeLocalSurfacesExtractionError(t *testing.T) {
	boom := errors.New("no audio stream")
	analyzers := []detection.Analyzer{
		detection.NewFaceAnalyzer(detection.Options{Scorer: fixedScore(95)}),
	}
	_, err := analyzeLocal(context.Background(), fakeExtractor{frames: 1, audioErr: boom}, analyzers, "clip.mp4", 30, 16000)
	if !errors.Is(err, boom) {
		t.Fatalf("expected extraction error, got %v", err)
	}
}

func TestStatusCommandPrintsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/analyses/a-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"runId":"run-1","analysisId":"a-1","status":"completed","stage":"done","delivered":true,"deliveryStatus":200,"enqueuedAt":"2026-01-30T22:00:00Z","updatedAt":"2026-01-30T22:00:05Z"}`))
	}))
	defer srv.Close()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"status", "a-1", "--server", srv.URL})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"run-1", "completed", "HTTP 200"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestFetchStatusReportsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"not_found","message":"analysis not found"}}`))
	}))
	defer srv.Close()

	_, err := fetchStatus(context.Background(), srv.Client(), srv.URL, "missing")
	if err == nil || !strings.Contains(err.Error(), "analysis not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRenderRecordIncludesError(t *testing.T) {
	done := time.Date(2026, 1, 30, 22, 0, 5, 0, time.UTC)
	out := renderRecord(analyses.Record{
		RunID:        "run-2",
		AnalysisID:   "a-2",
		Status:       analyses.StatusFailed,
		Stage:        "failed",
		ErrorCode:    "EXTRACTION_ERROR",
		ErrorMessage: "no video stream",
		CompletedAt:  &done,
	})
	if !strings.Contains(out, "EXTRACTION_ERROR: no video stream") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
