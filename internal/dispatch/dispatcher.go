package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "media-analyzer/1.0"

// DeliveryError reports a callback that was not accepted.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("deliver results: %v", e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("callback returned %d", e.StatusCode)
	}
	return fmt.Sprintf("callback returned %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Outcome records what happened to a single delivery attempt.
type Outcome struct {
	AnalysisID string
	Delivered  bool
	HTTPStatus int
	Err        error
}

// ErrorString returns the delivery error text, or "" when delivered.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Dispatcher POSTs job payloads to the callback endpoint. Each payload gets one
// attempt bounded by the client timeout.
type Dispatcher struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewWithClient(endpoint, &http.Client{Timeout: timeout})
}

func NewWithClient(endpoint string, client *http.Client) *Dispatcher {
	return &Dispatcher{endpoint: endpoint, client: client}
}

// Endpoint returns the callback URL.
func (d *Dispatcher) Endpoint() string { return d.endpoint }

// Deliver sends p and reports the outcome. It never returns an error; failures
// are carried in Outcome.Err as a *DeliveryError.
func (d *Dispatcher) Deliver(ctx context.Context, p Payload) Outcome {
	out := Outcome{AnalysisID: p.AnalysisID}

	body, err := json.Marshal(p)
	if err != nil {
		out.Err = &DeliveryError{Err: fmt.Errorf("encode payload: %w", err)}
		return out
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		out.Err = &DeliveryError{Err: fmt.Errorf("build request: %w", err)}
		return out
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		out.Err = &DeliveryError{Err: err}
		return out
	}
	defer resp.Body.Close()

	out.HTTPStatus = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		out.Err = &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		return out
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	out.Delivered = true
	return out
}
