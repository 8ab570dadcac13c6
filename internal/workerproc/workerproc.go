package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"strings"

	"media-analyzer/internal/analyses"
	"media-analyzer/internal/pipeline"
	"media-analyzer/internal/queue"
)

// Submitter hands a decoded intake message to the analysis queue. Sources
// outside the temp directory are copied in before the job is queued.
type Submitter interface {
	SubmitFile(ctx context.Context, analysisID, sourcePath string) (pipeline.AnalysisJob, error)
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingAnalysisID indicates a message missing the analysis id.
type ErrMissingAnalysisID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingAnalysisID) Error() string { return "missing analysis id" }

// ErrMissingSource indicates a message without a source path.
type ErrMissingSource struct {
	Meta       MessageMeta
	AnalysisID string
	RequestID  string
}

func (e ErrMissingSource) Error() string { return "missing source path" }

// ErrSubmit indicates the message was valid but the analysis queue refused it.
type ErrSubmit struct {
	AnalysisID string
	RequestID  string
	Err        error
}

func (e ErrSubmit) Error() string {
	if e.Err == nil {
		return "submit analysis"
	}
	return "submit analysis: " + e.Err.Error()
}

func (e ErrSubmit) Unwrap() error { return e.Err }

// Unrecoverable reports whether redelivering the message can never succeed.
func Unrecoverable(err error) bool {
	if err == nil {
		return false
	}
	var (
		empty   ErrEmptyBody
		decode  ErrDecode
		missing ErrMissingAnalysisID
		source  ErrMissingSource
	)
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return errors.As(err, &empty) || errors.As(err, &decode) || errors.As(err, &missing) || errors.As(err, &source)
}

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return msg, meta, ErrMissingAnalysisID{Meta: meta, RequestID: msg.RequestID}
	}
	if strings.TrimSpace(msg.SourcePath) == "" {
		return msg, meta, ErrMissingSource{Meta: meta, AnalysisID: msg.AnalysisID, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses, validates, and submits a message payload.
func HandleMessage(ctx context.Context, submitter Submitter, body string) (pipeline.AnalysisJob, error) {
	if submitter == nil {
		return pipeline.AnalysisJob{}, errors.New("analysis service not configured")
	}

	msg, _, err := ParseMessage(body)
	if err != nil {
		return pipeline.AnalysisJob{}, err
	}

	ctxWithRequest := analyses.WithRequestID(ctx, msg.RequestID)
	job, err := submitter.SubmitFile(ctxWithRequest, msg.AnalysisID, msg.SourcePath)
	if err != nil {
		return job, ErrSubmit{AnalysisID: msg.AnalysisID, RequestID: msg.RequestID, Err: err}
	}
	return job, nil
}
