package detection

// Modality names an analysis dimension with its own analyzer and threshold.
type Modality string

const (
	ModalityFace  Modality = "face"
	ModalityVoice Modality = "voice"
)

const (
	StatusVerifiedReal     = "Verified Real"
	StatusDeepfakeDetected = "Deepfake Detected"
)

// ModalityResult is the verdict of one analyzer for one job. It is not modified after Analyze returns.
type ModalityResult struct {
	Modality              Modality       `json:"modality"`
	Confidence            float64        `json:"confidence"`
	IsAnomalous           bool           `json:"is_anomalous"`
	ModelName             string         `json:"model"`
	UnitsAnalyzed         int            `json:"units_analyzed"`
	ProcessingTimeSeconds float64        `json:"processing_time"`
	Extra                 map[string]any `json:"extra,omitempty"`
}

// AggregateVerdict combines the per-modality results of a job.
type AggregateVerdict struct {
	IsDeepfake bool    `json:"is_deepfake"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status"`
}

// Frame is one decoded RGB24 video frame.
type Frame struct {
	Index  int
	Width  int
	Height int
	Pixels []byte
}

// Waveform is mono PCM audio normalized to [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// DurationSeconds reports the audio length.
func (w Waveform) DurationSeconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Input is the media extracted for one job. Either side may be empty when
// the source has no such stream.
type Input struct {
	Frames []Frame
	Audio  Waveform
}
