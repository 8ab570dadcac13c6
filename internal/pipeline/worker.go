package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-analyzer/internal/detection"
	"media-analyzer/internal/dispatch"
	"media-analyzer/internal/shared/metrics"
	"media-analyzer/internal/shared/telemetry"
)

// Extractor decodes the media a job's analyzers need.
type Extractor interface {
	ExtractVisual(ctx context.Context, path string, maxUnits int) ([]detection.Frame, error)
	ExtractAudio(ctx context.Context, path string, rate int) (detection.Waveform, error)
}

// Deliverer sends a job's payload to the callback endpoint.
type Deliverer interface {
	Deliver(ctx context.Context, p dispatch.Payload) dispatch.Outcome
}

// Releaser removes a job's staged source file.
type Releaser interface {
	Release(path string) error
}

// Tracker observes job progress. Errors are logged and never affect the job.
type Tracker interface {
	StageChanged(ctx context.Context, job AnalysisJob, from, to Stage) error
	JobFinished(ctx context.Context, job AnalysisJob, final Stage, payload dispatch.Payload, outcome dispatch.Outcome) error
}

// Worker drains the queue one job at a time. Every dequeued job produces
// exactly one delivery attempt and one release of its source file.
type Worker struct {
	Queue      *Queue
	Extractor  Extractor
	Analyzers  []detection.Analyzer
	Models     *detection.ModelState
	Dispatcher Deliverer
	Files      Releaser
	Tracker    Tracker

	DequeueTimeout time.Duration
	MaxFrames      int
	SampleRate     int
}

type jobRun struct {
	job       AnalysisJob
	stage     Stage
	startedAt time.Time
}

// Run consumes jobs until the queue is closed and drained, or ctx ends. A job
// in flight when ctx ends runs to completion before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.validate(); err != nil {
		return err
	}
	telemetry.Info("pipeline.worker.started", map[string]any{
		"queue_capacity": w.Queue.Cap(),
		"analyzers":      len(w.Analyzers),
	})
	for {
		if err := ctx.Err(); err != nil {
			telemetry.Info("pipeline.worker.stopped", map[string]any{"reason": err.Error()})
			return err
		}
		job, ok, err := w.Queue.Dequeue(ctx, w.DequeueTimeout)
		if errors.Is(err, ErrQueueClosed) {
			telemetry.Info("pipeline.worker.stopped", map[string]any{"reason": "queue closed"})
			return nil
		}
		if err != nil || !ok {
			continue
		}
		w.Process(context.WithoutCancel(ctx), job)
	}
}

func (w *Worker) validate() error {
	switch {
	case w.Queue == nil:
		return errors.New("worker: queue is required")
	case w.Extractor == nil:
		return errors.New("worker: extractor is required")
	case len(w.Analyzers) == 0:
		return errors.New("worker: at least one analyzer is required")
	case w.Dispatcher == nil:
		return errors.New("worker: dispatcher is required")
	case w.Files == nil:
		return errors.New("worker: file releaser is required")
	}
	return nil
}

// Process runs one job through extraction, analysis and aggregation, then
// delivers the result and releases the source file regardless of outcome.
func (w *Worker) Process(ctx context.Context, job AnalysisJob) (outcome dispatch.Outcome) {
	run := &jobRun{job: job, stage: StageQueued, startedAt: time.Now().UTC()}
	outcome = dispatch.Outcome{AnalysisID: job.ID}
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("pipeline.job.panic", w.fields(run, map[string]any{"error": fmt.Sprint(r)}))
		}
	}()
	defer w.release(run)

	payload := w.analyze(ctx, run)
	if run.stage != StageFailed {
		w.transition(ctx, run, StageDispatching)
	}
	outcome = w.deliver(ctx, run, payload)
	if run.stage != StageFailed {
		w.transition(ctx, run, StageDone)
	}
	w.finish(ctx, run, payload, outcome)
	return outcome
}

func (w *Worker) analyze(ctx context.Context, run *jobRun) (payload dispatch.Payload) {
	defer func() {
		if r := recover(); r != nil {
			payload = w.fail(ctx, run, fmt.Errorf("panic: %v", r))
		}
	}()
	if !w.Models.Loaded() {
		return w.fail(ctx, run, detection.ErrModelsNotLoaded)
	}

	w.transition(ctx, run, StageExtracting)
	input, err := w.extract(ctx, run.job.SourcePath)
	if err != nil {
		return w.fail(ctx, run, err)
	}

	w.transition(ctx, run, StageAnalyzing)
	results := make([]detection.ModalityResult, 0, len(w.Analyzers))
	for _, a := range w.Analyzers {
		res, err := a.Analyze(ctx, input)
		if err != nil {
			var analysisErr *detection.AnalysisError
			if !errors.As(err, &analysisErr) {
				err = &detection.AnalysisError{Modality: a.Modality(), Err: err}
			}
			return w.fail(ctx, run, err)
		}
		results = append(results, res)
	}

	w.transition(ctx, run, StageAggregating)
	verdict, err := detection.Aggregate(results)
	if err != nil {
		return w.fail(ctx, run, err)
	}
	now := time.Now().UTC()
	return dispatch.Completed(run.job.ID, buildResults(results, verdict, now.Sub(run.startedAt), now))
}

func (w *Worker) extract(ctx context.Context, path string) (detection.Input, error) {
	var needFrames, needAudio bool
	for _, a := range w.Analyzers {
		switch a.Modality() {
		case detection.ModalityFace:
			needFrames = true
		case detection.ModalityVoice:
			needAudio = true
		default:
			needFrames, needAudio = true, true
		}
	}

	var input detection.Input
	if needFrames {
		frames, err := w.Extractor.ExtractVisual(ctx, path, w.MaxFrames)
		if err != nil {
			return detection.Input{}, err
		}
		input.Frames = frames
	}
	if needAudio {
		audio, err := w.Extractor.ExtractAudio(ctx, path, w.SampleRate)
		if err != nil {
			return detection.Input{}, err
		}
		input.Audio = audio
	}
	return input, nil
}

func (w *Worker) fail(ctx context.Context, run *jobRun, err error) dispatch.Payload {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	w.transitionWith(ctx, run, StageFailed, map[string]any{"error_code": code, "error": msg})
	return dispatch.Failed(run.job.ID, code, msg)
}

func (w *Worker) transition(ctx context.Context, run *jobRun, to Stage) {
	w.transitionWith(ctx, run, to, nil)
}

func (w *Worker) transitionWith(ctx context.Context, run *jobRun, to Stage, extra map[string]any) {
	from := run.stage
	run.stage = to
	fields := w.fields(run, extra)
	fields["stage"] = string(to)
	fields["status_transition"] = string(from) + "->" + string(to)
	telemetry.Info("pipeline.job.stage", fields)

	if w.Tracker == nil {
		return
	}
	if err := w.Tracker.StageChanged(ctx, run.job, from, to); err != nil {
		telemetry.Warn("pipeline.tracker.error", w.fields(run, map[string]any{"error": err.Error()}))
	}
}

func (w *Worker) deliver(ctx context.Context, run *jobRun, payload dispatch.Payload) dispatch.Outcome {
	outcome := w.Dispatcher.Deliver(ctx, payload)
	fields := w.fields(run, map[string]any{
		"payload_status": payload.Status,
		"http_status":    outcome.HTTPStatus,
	})
	if outcome.Delivered {
		metrics.IncDeliveries()
		telemetry.Info("pipeline.job.delivered", fields)
		return outcome
	}
	metrics.IncDeliveryFailures()
	fields["error"] = sanitizeError(outcome.Err)
	telemetry.Error("pipeline.job.delivery_failed", fields)
	return outcome
}

func (w *Worker) finish(ctx context.Context, run *jobRun, payload dispatch.Payload, outcome dispatch.Outcome) {
	elapsedMs := float64(time.Since(run.startedAt).Milliseconds())
	metrics.ObserveJobDurationMs(elapsedMs)
	fields := w.fields(run, map[string]any{
		"status":      payload.Status,
		"delivered":   outcome.Delivered,
		"duration_ms": elapsedMs,
	})
	if run.stage == StageFailed {
		metrics.IncJobsFailed()
		fields["error_code"] = payload.ErrorCode
	} else {
		metrics.IncJobsCompleted()
		if payload.Results != nil {
			fields["verdict"] = payload.Results.Overall.Status
			fields["confidence"] = payload.Results.Overall.Confidence
		}
	}
	telemetry.Info("pipeline.job.finished", fields)

	if w.Tracker == nil {
		return
	}
	if err := w.Tracker.JobFinished(ctx, run.job, run.stage, payload, outcome); err != nil {
		telemetry.Warn("pipeline.tracker.error", w.fields(run, map[string]any{"error": err.Error()}))
	}
}

func (w *Worker) release(run *jobRun) {
	if w.Files == nil {
		return
	}
	if err := w.Files.Release(run.job.SourcePath); err != nil {
		metrics.IncCleanupWarnings()
		telemetry.Warn("pipeline.cleanup.warning", w.fields(run, map[string]any{"error": err.Error()}))
	}
}

func (w *Worker) fields(run *jobRun, extra map[string]any) map[string]any {
	fields := map[string]any{
		"analysis_id": run.job.ID,
		"run_id":      run.job.RunID,
		"request_id":  run.job.RequestID,
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}
