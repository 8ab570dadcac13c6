package media

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"media-analyzer/internal/detection"
	"media-analyzer/internal/media/ffprobe"
)

const (
	DefaultFrameSize  = 224
	DefaultSampleRate = 16000
	DefaultMaxFrames  = 30
)

var (
	ErrNoFrames = errors.New("no video frames decoded")
	ErrNoAudio  = errors.New("no audio samples decoded")
)

// ExtractionError reports a failure to decode a source file.
type ExtractionError struct {
	Path string
	Op   string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor decodes sampled frames and a mono waveform from media files.
type Extractor struct {
	FFmpeg  string
	FFprobe string
	Runner  Runner
	Width   int
	Height  int
}

func NewExtractor(ffmpegBin, ffprobeBin string) *Extractor {
	return &Extractor{
		FFmpeg:  ffmpegBin,
		FFprobe: ffprobeBin,
		Runner:  ExecRunner{},
		Width:   DefaultFrameSize,
		Height:  DefaultFrameSize,
	}
}

// SamplingStride spreads at most maxUnits samples evenly over total frames.
func SamplingStride(total, maxUnits int) int {
	if maxUnits <= 0 {
		maxUnits = DefaultMaxFrames
	}
	stride := total / maxUnits
	if stride < 1 {
		return 1
	}
	return stride
}

// ExtractVisual returns up to maxUnits RGB frames resized to the extractor's
// dimensions, taken every SamplingStride frames starting at frame 0.
func (e *Extractor) ExtractVisual(ctx context.Context, path string, maxUnits int) ([]detection.Frame, error) {
	if maxUnits <= 0 {
		maxUnits = DefaultMaxFrames
	}
	if err := checkSource(path); err != nil {
		return nil, &ExtractionError{Path: path, Op: "visual", Err: err}
	}
	info, err := ffprobe.Inspect(ctx, e.Runner.Output, e.FFprobe, path)
	if err != nil {
		return nil, &ExtractionError{Path: path, Op: "inspect", Err: err}
	}
	if !info.HasVideo() {
		return nil, &ExtractionError{Path: path, Op: "visual", Err: ErrNoFrames}
	}
	stride := SamplingStride(info.VideoFrameCount(), maxUnits)
	width, height := e.dimensions()

	filter := fmt.Sprintf("select=not(mod(n\\,%d)),scale=%d:%d", stride, width, height)
	out, err := e.Runner.Output(ctx, e.ffmpeg(),
		"-v", "error", "-nostdin",
		"-i", path,
		"-an",
		"-vf", filter,
		"-vsync", "vfr",
		"-frames:v", strconv.Itoa(maxUnits),
		"-f", "rawvideo", "-pix_fmt", "rgb24",
		"pipe:1",
	)
	if err != nil {
		return nil, &ExtractionError{Path: path, Op: "visual", Err: err}
	}

	frameBytes := width * height * 3
	count := len(out) / frameBytes
	if count > maxUnits {
		count = maxUnits
	}
	if count == 0 {
		return nil, &ExtractionError{Path: path, Op: "visual", Err: ErrNoFrames}
	}
	frames := make([]detection.Frame, count)
	for i := range frames {
		frames[i] = detection.Frame{
			Index:  i * stride,
			Width:  width,
			Height: height,
			Pixels: out[i*frameBytes : (i+1)*frameBytes],
		}
	}
	return frames, nil
}

// ExtractAudio returns the first audio track downmixed to mono and resampled to rate.
func (e *Extractor) ExtractAudio(ctx context.Context, path string, rate int) (detection.Waveform, error) {
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	if err := checkSource(path); err != nil {
		return detection.Waveform{}, &ExtractionError{Path: path, Op: "audio", Err: err}
	}
	out, err := e.Runner.Output(ctx, e.ffmpeg(),
		"-v", "error", "-nostdin",
		"-i", path,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-f", "f32le",
		"pipe:1",
	)
	if err != nil {
		return detection.Waveform{}, &ExtractionError{Path: path, Op: "audio", Err: err}
	}
	samples := decodeFloat32LE(out)
	if len(samples) == 0 {
		return detection.Waveform{}, &ExtractionError{Path: path, Op: "audio", Err: ErrNoAudio}
	}
	return detection.Waveform{Samples: samples, SampleRate: rate}, nil
}

func (e *Extractor) ffmpeg() string {
	if e.FFmpeg == "" {
		return "ffmpeg"
	}
	return e.FFmpeg
}

func (e *Extractor) dimensions() (int, int) {
	w, h := e.Width, e.Height
	if w <= 0 {
		w = DefaultFrameSize
	}
	if h <= 0 {
		h = DefaultFrameSize
	}
	return w, h
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("source is a directory")
	}
	return nil
}

func decodeFloat32LE(b []byte) []float32 {
	n := len(b) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples
}
