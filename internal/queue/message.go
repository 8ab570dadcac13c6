package queue

import (
	"encoding/json"
	"time"
)

// MessageVersion is the current intake message schema version.
const MessageVersion = 1

// Message asks the analysis service to process a media file that is already
// reachable on the worker's filesystem.
type Message struct {
	AnalysisID string `json:"analysisId"`
	SourcePath string `json:"sourcePath"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage stamps a message with the current version and time.
func NewMessage(analysisID, sourcePath, requestID string) Message {
	return Message{
		AnalysisID: analysisID,
		SourcePath: sourcePath,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
