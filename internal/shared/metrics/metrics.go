package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	jobsEnqueuedTotal       atomic.Uint64
	jobsRejectedTotal       atomic.Uint64
	jobsCompletedTotal      atomic.Uint64
	jobsFailedTotal         atomic.Uint64
	deliveriesTotal         atomic.Uint64
	deliveryFailuresTotal   atomic.Uint64
	cleanupWarningsTotal    atomic.Uint64
	sqsMessagesDroppedTotal atomic.Uint64

	queueDepth atomic.Int64

	jobDuration = newHistogram([]float64{500, 1000, 2000, 3500, 5000, 10000, 30000, 60000, 120000})
)

// IncJobsEnqueued increments the accepted-job counter.
func IncJobsEnqueued() { jobsEnqueuedTotal.Add(1) }

// IncJobsRejected increments the counter of jobs refused by a full or closed queue.
func IncJobsRejected() { jobsRejectedTotal.Add(1) }

// IncJobsCompleted increments the completed counter.
func IncJobsCompleted() { jobsCompletedTotal.Add(1) }

// IncJobsFailed increments the failed counter.
func IncJobsFailed() { jobsFailedTotal.Add(1) }

// IncDeliveries increments the successful delivery counter.
func IncDeliveries() { deliveriesTotal.Add(1) }

// IncDeliveryFailures increments the failed delivery counter.
func IncDeliveryFailures() { deliveryFailuresTotal.Add(1) }

// IncCleanupWarnings increments the counter of temp files that could not be removed.
func IncCleanupWarnings() { cleanupWarningsTotal.Add(1) }

// IncSQSMessagesDropped increments the counter of unrecoverable SQS messages.
func IncSQSMessagesDropped() { sqsMessagesDroppedTotal.Add(1) }

// SetQueueDepth records the current number of queued jobs.
func SetQueueDepth(n int) { queueDepth.Store(int64(n)) }

// ObserveJobDurationMs records a job duration in milliseconds.
func ObserveJobDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	jobDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_jobs_enqueued_total", "Total jobs accepted into the queue", jobsEnqueuedTotal.Load())
	writeCounter(&buf, "analysis_jobs_rejected_total", "Total jobs refused by the queue", jobsRejectedTotal.Load())
	writeCounter(&buf, "analysis_jobs_completed_total", "Total jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "analysis_jobs_failed_total", "Total jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "analysis_deliveries_total", "Total result deliveries accepted by the callback endpoint", deliveriesTotal.Load())
	writeCounter(&buf, "analysis_delivery_failures_total", "Total result deliveries that failed", deliveryFailuresTotal.Load())
	writeCounter(&buf, "analysis_cleanup_warnings_total", "Total temp files that could not be removed", cleanupWarningsTotal.Load())
	writeCounter(&buf, "analysis_sqs_messages_dropped_total", "Total unrecoverable intake messages deleted", sqsMessagesDroppedTotal.Load())
	writeGauge(&buf, "analysis_queue_depth", "Jobs waiting in the queue", queueDepth.Load())
	writeHistogram(&buf, "analysis_job_duration_ms", "Job duration in milliseconds", jobDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe counts value into the first bucket whose bound it does not exceed.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeGauge(buf *bytes.Buffer, name, help string, value int64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s gauge\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
