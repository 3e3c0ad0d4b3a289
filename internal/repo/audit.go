package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// AuditLogEntry is one link of the append-only audit chain.
type AuditLogEntry struct {
	// Sequence is assigned by the store and orders the chain.
	Sequence int64 `json:"sequence"`

	ID         uuid.UUID `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	ActionType string    `json:"action_type"`
	ActorID    uuid.UUID `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	TargetType string    `json:"target_type"`
	TargetID   uuid.UUID `json:"target_id"`

	PreviousValue types.JSONText `json:"previous_value,omitempty"`
	NewValue      types.JSONText `json:"new_value,omitempty"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	LogHash      string  `json:"log_hash"`
	PreviousHash *string `json:"previous_hash"`
}

// Clone returns a deep copy.
func (e *AuditLogEntry) Clone() *AuditLogEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.PreviousValue = cloneJSON(e.PreviousValue)
	c.NewValue = cloneJSON(e.NewValue)
	c.PreviousHash = clonePtr(e.PreviousHash)
	return &c
}

// PrevHash returns PreviousHash or "" for the first entry of the chain.
func (e *AuditLogEntry) PrevHash() string {
	if e.PreviousHash == nil {
		return ""
	}
	return *e.PreviousHash
}

func cloneJSON(j types.JSONText) types.JSONText {
	if j == nil {
		return nil
	}
	return append(types.JSONText(nil), j...)
}
