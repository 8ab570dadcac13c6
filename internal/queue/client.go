package queue

import "context"

// Client sends intake messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Received is a message pulled from the backend together with the handle
// needed to acknowledge it.
type Received struct {
	ID            string
	Body          string
	ReceiptHandle string
	ReceiveCount  int
}

// Consumer pulls and acknowledges intake messages.
type Consumer interface {
	Receive(ctx context.Context, max int32, wait int32) ([]Received, error)
	Delete(ctx context.Context, receiptHandle string) error
}
