package detection

import (
	"errors"
	"fmt"
)

var (
	// ErrModelsNotLoaded is returned when inference is requested before the models finished loading.
	ErrModelsNotLoaded = errors.New("models not loaded")
	// ErrNoResults is returned when there is nothing to aggregate.
	ErrNoResults = errors.New("no modality results to aggregate")
	// ErrEmptyInput is returned when the analyzer has no units to score.
	ErrEmptyInput = errors.New("no media units to analyze")
)

// AnalysisError reports a failed modality analysis.
type AnalysisError struct {
	Modality Modality
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s analysis: %v", e.Modality, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
