package ffprobe

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", NBFrames: "240"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "10.0"},
	}
	if !result.HasVideo() || !result.HasAudio() {
		t.Fatalf("expected both stream kinds")
	}
	if result.DurationSeconds() != 10 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.VideoFrameCount() != 240 {
		t.Fatalf("unexpected frame count: %d", result.VideoFrameCount())
	}
}

func TestVideoFrameCountFallsBackToFrameRate(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "30000/1001", Duration: "10.01"}},
	}
	if got := result.VideoFrameCount(); got != 300 {
		t.Fatalf("expected 300 frames, got %d", got)
	}

	audioOnly := Result{Streams: []Stream{{CodecType: "audio"}}, Format: Format{Duration: "bad"}}
	if audioOnly.VideoFrameCount() != 0 {
		t.Fatalf("expected 0 frames without video")
	}
	if audioOnly.DurationSeconds() != 0 {
		t.Fatalf("expected 0 duration for invalid value")
	}
}

func TestInspectDecodesOutput(t *testing.T) {
	var gotArgs []string
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(`{"streams":[{"codec_type":"video","nb_frames":"90"}],"format":{"duration":"3.0"}}`), nil
	}
	result, err := Inspect(context.Background(), run, "", "/tmp/clip.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if gotArgs[0] != "ffprobe" || gotArgs[len(gotArgs)-1] != "/tmp/clip.mp4" {
		t.Fatalf("unexpected args: %v", gotArgs)
	}
	if result.VideoFrameCount() != 90 {
		t.Fatalf("unexpected frames: %d", result.VideoFrameCount())
	}
}

func TestInspectErrors(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: moov atom not found")
	}
	if _, err := Inspect(context.Background(), run, "ffprobe", " "); err == nil {
		t.Fatalf("expected error for empty path")
	}
	_, err := Inspect(context.Background(), run, "ffprobe", "/tmp/bad.mp4")
	if err == nil || !strings.Contains(err.Error(), "moov atom") {
		t.Fatalf("expected wrapped run error, got %v", err)
	}
}
