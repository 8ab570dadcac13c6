package analyses

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAnalysisIDRequired = errors.New("analysis id is required")
	ErrSourceRequired     = errors.New("source path is required")
)

const (
	ErrorCodeQueueFull   = "QUEUE_FULL"
	ErrorCodeQueueClosed = "QUEUE_CLOSED"
)
