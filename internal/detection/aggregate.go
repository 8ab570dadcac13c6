package detection

// Aggregate combines modality results into a single verdict. Confidence is the
// arithmetic mean; the job is a deepfake when any modality is anomalous.
// Results are not modified.
func Aggregate(results []ModalityResult) (AggregateVerdict, error) {
	if len(results) == 0 {
		return AggregateVerdict{}, ErrNoResults
	}
	var (
		sum       float64
		anomalous bool
	)
	for _, r := range results {
		sum += r.Confidence
		if r.IsAnomalous {
			anomalous = true
		}
	}
	verdict := AggregateVerdict{
		IsDeepfake: anomalous,
		Confidence: sum / float64(len(results)),
		Status:     StatusVerifiedReal,
	}
	if anomalous {
		verdict.Status = StatusDeepfakeDetected
	}
	return verdict, nil
}
