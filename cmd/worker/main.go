package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"media-analyzer/internal/bootstrap"
	"media-analyzer/internal/pipeline"
	"media-analyzer/internal/queue"
	"media-analyzer/internal/shared/config"
	"media-analyzer/internal/shared/metrics"
	"media-analyzer/internal/shared/telemetry"
	"media-analyzer/internal/workerproc"
)

const (
	defaultMaxMessages        = 10
	defaultWaitSeconds        = 20
	defaultShutdownTimeoutSec = 300
	fullQueueBackoff          = 2 * time.Second
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
	if err != nil {
		log.Fatal(err)
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	shutdownTimeout := time.Duration(envInt("RA_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- app.Worker.Run(context.Background())
	}()

	log.Printf("worker started queue=%s capacity=%d", client.QueueURL(), app.Queue.Cap())
	poll(ctx, client, app.AnalysesService, app.Queue)

	log.Printf("shutdown requested, waiting up to %s for %d queued jobs", shutdownTimeout, app.Queue.Len())
	app.Queue.Close()
	select {
	case err := <-workerDone:
		if err != nil {
			log.Printf("worker stopped: %v", err)
		}
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with queued jobs")
	}
}

type capacityReporter interface {
	Len() int
	Cap() int
}

// poll moves SQS messages into the in-process queue until ctx ends. It only
// asks for as many messages as the queue can currently take.
func poll(ctx context.Context, client queue.Consumer, submitter workerproc.Submitter, q capacityReporter) {
	for ctx.Err() == nil {
		free := q.Cap() - q.Len()
		if free <= 0 {
			if !sleep(ctx, fullQueueBackoff) {
				return
			}
			continue
		}

		msgs, err := client.Receive(ctx, int32(min(free, defaultMaxMessages)), defaultWaitSeconds)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return
			}
			telemetry.Error("worker.intake.receive_failed", map[string]any{"error": err.Error()})
			if !sleep(ctx, fullQueueBackoff) {
				return
			}
			continue
		}

		for _, msg := range msgs {
			handleMessage(ctx, client, submitter, msg)
		}
	}
}

func handleMessage(ctx context.Context, client queue.Consumer, submitter workerproc.Submitter, msg queue.Received) {
	job, err := workerproc.HandleMessage(ctx, submitter, msg.Body)
	if err != nil {
		fields := baseFields(msg, "", "")
		fields["error"] = err.Error()
		var submitErr workerproc.ErrSubmit
		if errors.As(err, &submitErr) {
			fields["analysis_id"] = submitErr.AnalysisID
			if submitErr.RequestID != "" {
				fields["request_id"] = submitErr.RequestID
			}
		}

		if workerproc.Unrecoverable(err) {
			meta := workerproc.ComputeMeta(msg.Body)
			fields["body_len"] = meta.BodyLen
			if meta.BodySHA != "" {
				fields["body_sha256"] = meta.BodySHA
			}
			telemetry.Error("worker.intake.invalid_message", fields)
			if deleteMessage(ctx, client, msg, fields) {
				metrics.IncSQSMessagesDropped()
			}
			return
		}

		// Left in SQS; it becomes visible again after the visibility timeout.
		if errors.Is(err, pipeline.ErrQueueFull) || errors.Is(err, pipeline.ErrQueueClosed) {
			telemetry.Warn("worker.intake.deferred", fields)
			return
		}
		telemetry.Error("worker.intake.failed", fields)
		return
	}

	fields := baseFields(msg, job.ID, job.RequestID)
	fields["run_id"] = job.RunID
	if deleteMessage(ctx, client, msg, fields) {
		telemetry.Info("worker.intake.enqueued", fields)
	}
}

func deleteMessage(ctx context.Context, client queue.Consumer, msg queue.Received, fields map[string]any) bool {
	if msg.ReceiptHandle == "" {
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.intake.delete_failed", fields)
		return false
	}
	if err := client.Delete(ctx, msg.ReceiptHandle); err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.intake.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg queue.Received, analysisID, requestID string) map[string]any {
	fields := map[string]any{
		"analysis_id":    analysisID,
		"sqs_message_id": msg.ID,
		"receive_count":  msg.ReceiveCount,
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
