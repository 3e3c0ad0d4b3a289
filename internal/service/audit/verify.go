package audit

import (
	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

// Failure reasons reported per entry.
const (
	ReasonHashMismatch   = "log_hash does not match the recomputed hash"
	ReasonBrokenLink     = "previous_hash does not match the preceding entry"
	ReasonGenesisLinked  = "first entry of the chain has a previous_hash"
	ReasonUnserializable = "entry payload cannot be serialized"
	ReasonMissingEntry   = "entry is empty"
)

// EntryResult is the verdict for one entry.
type EntryResult struct {
	Index   int       `json:"index"`
	EntryID uuid.UUID `json:"entry_id"`
	Valid   bool      `json:"valid"`
	Reason  string    `json:"reason,omitempty"`
}

// Report is the outcome of a chain verification. FirstBreakIndex points at
// the earliest entry that failed.
type Report struct {
	Valid           bool          `json:"valid"`
	FirstBreakIndex *int          `json:"first_break_index,omitempty"`
	Entries         []EntryResult `json:"entries"`
}

// Verify walks entries in order. Each entry must link to the stored hash of
// its predecessor and its own hash must recompute from its payload and that
// predecessor hash. The first entry is anchored on its own previous_hash, so
// any contiguous slice of the chain can be verified.
func Verify(entries []*repo.AuditLogEntry) *Report {
	return verify(entries, false)
}

func verify(entries []*repo.AuditLogEntry, fromGenesis bool) *Report {
	report := &Report{Valid: true, Entries: make([]EntryResult, len(entries))}

	for i, e := range entries {
		if e == nil {
			report.fail(i, EntryResult{Index: i, Reason: ReasonMissingEntry})
			continue
		}
		res := EntryResult{Index: i, EntryID: e.ID, Valid: true}

		// an empty predecessor was already reported; anchor on e instead
		expectedPrev := e.PrevHash()
		if i > 0 && entries[i-1] != nil {
			expectedPrev = entries[i-1].LogHash
		}

		switch {
		case i == 0 && fromGenesis && e.PreviousHash != nil:
			res.Valid, res.Reason = false, ReasonGenesisLinked
		case i > 0 && e.PrevHash() != expectedPrev:
			res.Valid, res.Reason = false, ReasonBrokenLink
		default:
			hash, err := Hash(e, expectedPrev)
			if err != nil {
				res.Valid, res.Reason = false, ReasonUnserializable
			} else if hash != e.LogHash {
				res.Valid, res.Reason = false, ReasonHashMismatch
			}
		}

		if !res.Valid {
			report.fail(i, res)
			continue
		}
		report.Entries[i] = res
	}
	return report
}

// fail records an invalid entry and marks the first break.
func (r *Report) fail(i int, res EntryResult) {
	if r.Valid {
		r.Valid = false
		r.FirstBreakIndex = &i
	}
	r.Entries[i] = res
}
