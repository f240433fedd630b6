package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// RunEventMessage announces a change to a stored analysis run. It carries
// only identifiers; consumers load the run from the store themselves.
type RunEventMessage struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRunEventMessage(eventType, runID, name string) *RunEventMessage {
	return &RunEventMessage{
		Type:      eventType,
		RunID:     runID,
		Name:      name,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RunEventMessageFromJSON decodes a message and rejects ones without a type
// or run id.
func RunEventMessageFromJSON(data []byte) (*RunEventMessage, error) {
	var msg RunEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, errors.New("run event without type")
	}
	if msg.RunID == "" {
		return nil, errors.New("run event without run_id")
	}
	return &msg, nil
}
