package domain

import (
	"encoding/json"
	"time"
)

// InboundEvent is a verified messaging-platform event awaiting (or done with) generation.
type InboundEvent struct {
	ID            int64
	IntegrationID int64
	Payload       json.RawMessage
	Channel       string
	RequestTS     string
	ThreadTS      string
	// JobRef is claimed once when the vendor job is persisted and never changes afterwards.
	JobRef *int64
	// SubmissionKey and SubmissionStartedAt form the write-ahead record of an in-flight submit.
	SubmissionKey       *string
	SubmissionStartedAt *time.Time
	HeldAt              *time.Time
	HoldReason          string
	Created             time.Time
	ProcessedAt         *time.Time
}

// Processed reports whether the event has been fully handled.
func (e *InboundEvent) Processed() bool {
	return e != nil && e.ProcessedAt != nil
}

// SubmissionInFlight reports whether a submit started without a job ever being recorded.
func (e *InboundEvent) SubmissionInFlight() bool {
	return e != nil && e.JobRef == nil && e.SubmissionStartedAt != nil
}

// ReplyThread returns the timestamp replies should be threaded under.
func (e *InboundEvent) ReplyThread() string {
	if e.ThreadTS != "" {
		return e.ThreadTS
	}
	return e.RequestTS
}
