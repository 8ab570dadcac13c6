package pipeline

import (
	"math"
	"time"

	"media-analyzer/internal/detection"
	"media-analyzer/internal/dispatch"
)

func buildResults(results []detection.ModalityResult, verdict detection.AggregateVerdict, elapsed time.Duration, now time.Time) dispatch.Results {
	out := dispatch.Results{
		Overall: verdict,
		Metadata: dispatch.Metadata{
			ProcessingTime: math.Round(elapsed.Seconds()*100) / 100,
			Timestamp:      float64(now.UnixNano()) / float64(time.Second),
			ModelVersions:  make(map[string]string, len(results)),
		},
	}
	for _, r := range results {
		out.Metadata.ModelVersions[string(r.Modality)] = r.ModelName
		switch r.Modality {
		case detection.ModalityFace:
			out.Face = &dispatch.FaceSummary{
				Confidence:     r.Confidence,
				IsDeepfake:     r.IsAnomalous,
				Model:          r.ModelName,
				Regions:        intExtra(r.Extra, "regions", r.UnitsAnalyzed),
				Suspicious:     intExtra(r.Extra, "suspicious", 0),
				ProcessingTime: r.ProcessingTimeSeconds,
			}
		case detection.ModalityVoice:
			out.Voice = &dispatch.VoiceSummary{
				Confidence:     r.Confidence,
				IsDeepfake:     r.IsAnomalous,
				Model:          r.ModelName,
				Segments:       intExtra(r.Extra, "segments", r.UnitsAnalyzed),
				Anomalies:      intExtra(r.Extra, "anomalies", 0),
				ProcessingTime: r.ProcessingTimeSeconds,
				AudioDuration:  floatExtra(r.Extra, "audio_duration"),
			}
		}
	}
	return out
}

func intExtra(extra map[string]any, key string, fallback int) int {
	switch v := extra[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func floatExtra(extra map[string]any, key string) float64 {
	switch v := extra[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
