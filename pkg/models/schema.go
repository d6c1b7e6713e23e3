package models

import (
	"encoding/json"
	"fmt"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateMessageEnvelope(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{
			Field:   "envelope",
			Message: "message envelope cannot be nil",
		}
	}

	if msg.ID == "" {
		return &ValidationError{
			Field:   "id",
			Message: "message ID is required",
		}
	}

	if msg.Payload == nil {
		return &ValidationError{
			Field:   "payload",
			Message: "message payload cannot be nil",
		}
	}

	return nil
}

// ValidateEvaluationRequest checks presence only. Identifiers are free-form.
func ValidateEvaluationRequest(req *EvaluationRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}

	required := []struct {
		field string
		value string
	}{
		{"tenant_id", req.TenantID},
		{"module", req.Module},
		{"event", req.Event},
		{"entity", req.Entity},
	}
	for _, r := range required {
		if r.value == "" {
			return &ValidationError{Field: r.field, Message: r.field + " is required"}
		}
	}

	if req.Record == nil {
		return &ValidationError{Field: "record", Message: "record is required"}
	}

	return nil
}

// DecodeDomainEvent turns an ingested envelope into an evaluation request. The payload carries
// module, event, entity, record and an optional occurrence_id; the envelope id is the fallback
// occurrence id so that broker redelivery is idempotent.
func DecodeDomainEvent(msg *MessageEnvelope) (*EvaluationRequest, error) {
	if err := ValidateMessageEnvelope(msg); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Message: err.Error()}
	}

	var req EvaluationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &ValidationError{Field: "payload", Message: err.Error()}
	}

	if req.TenantID == "" {
		req.TenantID = msg.TenantID
	}
	if req.OccurrenceID == "" {
		req.OccurrenceID = msg.ID
	}

	if err := ValidateEvaluationRequest(&req); err != nil {
		return nil, err
	}

	return &req, nil
}

func (msg *MessageEnvelope) GetPayloadField(name string) (interface{}, bool) {
	if msg.Payload == nil {
		return nil, false
	}

	value, ok := msg.Payload[name]
	return value, ok
}

func (msg *MessageEnvelope) SetPayloadField(name string, value interface{}) {
	if msg.Payload == nil {
		msg.Payload = make(map[string]interface{})
	}

	msg.Payload[name] = value
}
