package pipeline

import (
	"errors"
	"strings"
	"unicode/utf8"

	"media-analyzer/internal/detection"
	"media-analyzer/internal/media"
)

const (
	ErrorCodeModelsNotLoaded = "MODELS_NOT_LOADED"
	ErrorCodeExtraction      = "EXTRACTION_ERROR"
	ErrorCodeAnalysis        = "ANALYSIS_ERROR"
	ErrorCodeInternal        = "INTERNAL_ERROR"
)

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, detection.ErrModelsNotLoaded) {
		return ErrorCodeModelsNotLoaded
	}
	var extractErr *media.ExtractionError
	if errors.As(err, &extractErr) {
		return ErrorCodeExtraction
	}
	var analysisErr *detection.AnalysisError
	if errors.As(err, &analysisErr) {
		return ErrorCodeAnalysis
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	maxLen := 500
	if len(msg) > maxLen {
		for maxLen > 0 && !utf8.RuneStart(msg[maxLen]) {
			maxLen--
		}
		msg = msg[:maxLen]
	}
	return msg
}
