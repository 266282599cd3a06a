package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names what was attempted. Values are stable: they appear in exports.
type Action string

const (
	ActionProvisionEmail Action = "provision_email"
	ActionAssignEmail    Action = "assign_email"
	ActionProvisionRide  Action = "provision_ride"
	ActionBatchEmail     Action = "batch_email"
	ActionBatchRide      Action = "batch_ride"
)

// Entry is one immutable audit record. Subject identifies what was acted on
// (a roster record id, or a batch summary for aggregate entries).
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Operator  string    `json:"operator"`
	Subject   string    `json:"subject"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Sink receives entries for export outside the process.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}
