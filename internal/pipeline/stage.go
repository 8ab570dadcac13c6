package pipeline

// Stage is the lifecycle position of a job inside the worker.
type Stage string

const (
	StageQueued      Stage = "queued"
	StageExtracting  Stage = "extracting"
	StageAnalyzing   Stage = "analyzing"
	StageAggregating Stage = "aggregating"
	StageDispatching Stage = "dispatching"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
)

// Terminal reports whether no further transitions follow.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}
