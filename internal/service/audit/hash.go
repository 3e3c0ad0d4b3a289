package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

const hashTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// hashedFields is the canonical form of an entry. Field order is fixed by
// the struct and raw JSON payloads are compacted by encoding/json.
type hashedFields struct {
	ID            string          `json:"id"`
	Timestamp     string          `json:"timestamp"`
	ActionType    string          `json:"action_type"`
	ActorID       string          `json:"actor_id"`
	ActorRole     string          `json:"actor_role"`
	TargetType    string          `json:"target_type"`
	TargetID      string          `json:"target_id"`
	PreviousValue json.RawMessage `json:"previous_value"`
	NewValue      json.RawMessage `json:"new_value"`
	IPAddress     string          `json:"ip_address"`
	UserAgent     string          `json:"user_agent"`
}

// Serialize returns the canonical bytes of e that the chain hashes.
// Sequence, LogHash and PreviousHash are not part of it.
func Serialize(e *repo.AuditLogEntry) ([]byte, error) {
	b, err := json.Marshal(hashedFields{
		ID:            e.ID.String(),
		Timestamp:     e.Timestamp.UTC().Format(hashTimeLayout),
		ActionType:    e.ActionType,
		ActorID:       e.ActorID.String(),
		ActorRole:     e.ActorRole,
		TargetType:    e.TargetType,
		TargetID:      e.TargetID.String(),
		PreviousValue: rawOrNil(e.PreviousValue),
		NewValue:      rawOrNil(e.NewValue),
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize audit entry %s: %w", e.ID, err)
	}
	return b, nil
}

// Hash computes hex(sha256(serialize(e) ++ previousHash)).
func Hash(e *repo.AuditLogEntry, previousHash string) (string, error) {
	payload, err := Serialize(e)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(previousHash))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}

// normalizeTimestamp matches the precision the hash encodes.
func normalizeTimestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
