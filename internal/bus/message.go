// Package bus provides the in-process message plane between the manager,
// workers, and the merger. Delivery is at-least-once within a run and
// ordered per (sender, recipient) pair; every message is persisted under
// runtime/runs/<run-id>/bus/ so a run can be replayed after a crash.
package bus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType enumerates the agent message variants.
type MessageType string

const (
	// TypeTaskAssign hands a sub-task to a worker.
	TypeTaskAssign MessageType = "task_assign"
	// TypeTaskComplete reports successful completion of a sub-task.
	TypeTaskComplete MessageType = "task_complete"
	// TypeTaskFailed reports a sub-task failure.
	TypeTaskFailed MessageType = "task_failed"
	// TypeEscalate requests manager or reviewer intervention.
	TypeEscalate MessageType = "escalate"
	// TypeQualityGateFailed reports a quality-gate rejection.
	TypeQualityGateFailed MessageType = "quality_gate_failed"
	// TypeStatusRequest asks a recipient for its status.
	TypeStatusRequest MessageType = "status_request"
	// TypeStatusResponse answers a status request.
	TypeStatusResponse MessageType = "status_response"
	// TypeGuidance delivers manager advice to a worker.
	TypeGuidance MessageType = "guidance"
)

// Valid returns true if the message type is a known variant.
func (t MessageType) Valid() bool {
	switch t {
	case TypeTaskAssign, TypeTaskComplete, TypeTaskFailed, TypeEscalate,
		TypeQualityGateFailed, TypeStatusRequest, TypeStatusResponse, TypeGuidance:
		return true
	default:
		return false
	}
}

// Message is one typed agent message on the bus.
type Message struct {
	// ID is the unique message identifier.
	ID string `json:"id"`
	// Type is the message variant.
	Type MessageType `json:"type"`
	// From is the sender identifier.
	From string `json:"from"`
	// To is the recipient identifier.
	To string `json:"to"`
	// Payload is the type-specific JSON body.
	Payload json.RawMessage `json:"payload,omitempty"`
	// Timestamp is when the message was sent.
	Timestamp time.Time `json:"timestamp"`
	// RunID scopes the message to a logical execution.
	RunID string `json:"run_id,omitempty"`
}

// New creates a message with a fresh id and timestamp, marshaling the
// payload to JSON.
func New(msgType MessageType, from, to, runID string, payload interface{}) (*Message, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		From:      from,
		To:        to,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}, nil
}

// DecodePayload unmarshals the payload into target.
func (m *Message) DecodePayload(target interface{}) error {
	return json.Unmarshal(m.Payload, target)
}
