package dispatch

import "media-analyzer/internal/detection"

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Payload is the body POSTed to the callback endpoint once per job.
type Payload struct {
	AnalysisID string   `json:"analysisId"`
	Status     string   `json:"status"`
	Results    *Results `json:"results,omitempty"`
	Error      string   `json:"error,omitempty"`
	ErrorCode  string   `json:"errorCode,omitempty"`
}

// Results carries the verdict of a completed job.
type Results struct {
	Overall  detection.AggregateVerdict `json:"overall"`
	Face     *FaceSummary               `json:"face,omitempty"`
	Voice    *VoiceSummary              `json:"voice,omitempty"`
	Metadata Metadata                   `json:"metadata"`
}

type FaceSummary struct {
	Confidence     float64 `json:"confidence"`
	IsDeepfake     bool    `json:"is_deepfake"`
	Model          string  `json:"model"`
	Regions        int     `json:"regions"`
	Suspicious     int     `json:"suspicious"`
	ProcessingTime float64 `json:"processing_time"`
}

type VoiceSummary struct {
	Confidence     float64 `json:"confidence"`
	IsDeepfake     bool    `json:"is_deepfake"`
	Model          string  `json:"model"`
	Segments       int     `json:"segments"`
	Anomalies      int     `json:"anomalies"`
	ProcessingTime float64 `json:"processing_time"`
	AudioDuration  float64 `json:"audio_duration"`
}

type Metadata struct {
	ProcessingTime float64           `json:"processing_time"`
	Timestamp      float64           `json:"timestamp"`
	ModelVersions  map[string]string `json:"model_versions"`
}

// Completed builds the success payload for a job.
func Completed(analysisID string, results Results) Payload {
	return Payload{AnalysisID: analysisID, Status: StatusCompleted, Results: &results}
}

// Failed builds the failure payload for a job.
func Failed(analysisID, code, message string) Payload {
	return Payload{AnalysisID: analysisID, Status: StatusFailed, Error: message, ErrorCode: code}
}
