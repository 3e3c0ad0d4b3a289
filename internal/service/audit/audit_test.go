package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/memstore"
	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/logs"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

func fixedClock() func() time.Time {
	t := time.Date(2025, 3, 3, 9, 0, 0, 123456789, time.UTC)
	return func() time.Time { return t }
}

func newTestChain(t *testing.T, store repo.AuditStore) *Chain {
	t.Helper()
	c := NewChain(store, logs.Discard(), WithClock(fixedClock()))
	t.Cleanup(c.Close)
	return c
}

func appendN(t *testing.T, c *Chain, n int) []*repo.AuditLogEntry {
	t.Helper()
	out := make([]*repo.AuditLogEntry, 0, n)
	for i := 0; i < n; i++ {
		e, err := c.Append(context.Background(), &repo.AuditLogEntry{
			ActionType: ActionSessionApproved,
			ActorID:    uuid.New(),
			ActorRole:  string(authorize.ActorTherapist),
			TargetType: TargetSession,
			TargetID:   uuid.New(),
			NewValue:   []byte(`{"status":"approved"}`),
		})
		if err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
		out = append(out, e)
	}
	return out
}

func TestAppendLinksEntries(t *testing.T) {
	c := newTestChain(t, memstore.New())
	entries := appendN(t, c, 3)

	if entries[0].PreviousHash != nil {
		t.Errorf("genesis PreviousHash = %v, want nil", *entries[0].PreviousHash)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].PrevHash() != entries[i-1].LogHash {
			t.Errorf("entry %d links to %q, want %q", i, entries[i].PrevHash(), entries[i-1].LogHash)
		}
	}

	want, err := Hash(entries[1], entries[0].LogHash)
	if err != nil {
		t.Fatal(err)
	}
	if entries[1].LogHash != want {
		t.Errorf("LogHash = %s, want %s", entries[1].LogHash, want)
	}
	if got := entries[0].Timestamp.Nanosecond(); got != 123000000 {
		t.Errorf("timestamp not truncated to milliseconds: %d ns", got)
	}
}

func TestVerifyUntampered(t *testing.T) {
	c := newTestChain(t, memstore.New())
	entries := appendN(t, c, 5)

	report := Verify(entries)
	if !report.Valid || report.FirstBreakIndex != nil {
		t.Fatalf("Verify() = %+v, want valid", report)
	}
	for _, r := range report.Entries {
		if !r.Valid {
			t.Errorf("entry %d reported invalid: %s", r.Index, r.Reason)
		}
	}
}

func TestVerifyFlagsTamperedMiddleEntry(t *testing.T) {
	c := newTestChain(t, memstore.New())
	entries := appendN(t, c, 3) // A -> B -> C

	entries[1].NewValue = []byte(`{"status":"declined"}`)

	report := Verify(entries)
	if report.Valid {
		t.Fatal("Verify() reported a tampered chain as valid")
	}
	if report.FirstBreakIndex == nil || *report.FirstBreakIndex != 1 {
		t.Fatalf("FirstBreakIndex = %v, want 1", report.FirstBreakIndex)
	}

	tests := []struct {
		index  int
		valid  bool
		reason string
	}{
		{0, true, ""},
		{1, false, ReasonHashMismatch},
		{2, true, ""},
	}
	for _, tt := range tests {
		got := report.Entries[tt.index]
		if got.Valid != tt.valid || got.Reason != tt.reason {
			t.Errorf("entry %d = {%v %q}, want {%v %q}", tt.index, got.Valid, got.Reason, tt.valid, tt.reason)
		}
	}
}

func TestVerifyDetectsBrokenLink(t *testing.T) {
	c := newTestChain(t, memstore.New())
	entries := appendN(t, c, 3)

	forged := "forged"
	entries[2].PreviousHash = &forged

	report := Verify(entries)
	if report.Valid || *report.FirstBreakIndex != 2 {
		t.Fatalf("Verify() = %+v, want break at 2", report)
	}
	if report.Entries[2].Reason != ReasonBrokenLink {
		t.Errorf("reason = %q, want %q", report.Entries[2].Reason, ReasonBrokenLink)
	}
}

func TestVerifyReportsEmptyEntries(t *testing.T) {
	c := newTestChain(t, memstore.New())
	entries := appendN(t, c, 3)

	tests := []struct {
		name      string
		entries   []*repo.AuditLogEntry
		wantBreak int
		invalid   []int
	}{
		{"only entry", []*repo.AuditLogEntry{nil}, 0, []int{0}},
		{"first entry", []*repo.AuditLogEntry{nil, entries[1], entries[2]}, 0, []int{0}},
		{"middle entry", []*repo.AuditLogEntry{entries[0], nil, entries[2]}, 1, []int{1}},
		{"last entry", []*repo.AuditLogEntry{entries[0], entries[1], nil}, 2, []int{2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := Verify(tt.entries)
			if report.Valid || report.FirstBreakIndex == nil || *report.FirstBreakIndex != tt.wantBreak {
				t.Fatalf("Verify() = %+v, want break at %d", report, tt.wantBreak)
			}
			invalid := make(map[int]bool)
			for _, i := range tt.invalid {
				invalid[i] = true
			}
			for i, r := range report.Entries {
				if r.Index != i {
					t.Errorf("entry %d has index %d", i, r.Index)
				}
				if r.Valid == invalid[i] {
					t.Errorf("entry %d valid = %v", i, r.Valid)
				}
				if invalid[i] && r.Reason != ReasonMissingEntry {
					t.Errorf("entry %d reason = %q, want %q", i, r.Reason, ReasonMissingEntry)
				}
			}
		})
	}
}

func TestVerifySliceAnchorsOnFirstEntry(t *testing.T) {
	c := newTestChain(t, memstore.New())
	entries := appendN(t, c, 4)

	if report := Verify(entries[2:]); !report.Valid {
		t.Errorf("Verify(tail slice) = %+v, want valid", report)
	}
	if report := Verify(nil); !report.Valid {
		t.Error("empty chain should verify")
	}
}

func TestConcurrentAppendsStayLinear(t *testing.T) {
	store := memstore.New()
	c := newTestChain(t, store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(context.Background(), Event{
				Action:     ActionSessionRequested,
				Actor:      authorize.Actor{ID: uuid.New(), Role: authorize.ActorClient},
				TargetType: TargetSession,
				TargetID:   uuid.New(),
				New:        map[string]string{"status": "pending_approval"},
			})
		}()
	}
	wg.Wait()

	report, err := c.VerifyStored(context.Background())
	if err != nil {
		t.Fatalf("VerifyStored() error = %v", err)
	}
	if len(report.Entries) != 50 {
		t.Errorf("stored %d entries, want 50", len(report.Entries))
	}
}

func TestAppendRelinksWhenTailMoves(t *testing.T) {
	store := memstore.New()
	first := newTestChain(t, store)
	second := newTestChain(t, store)

	appendN(t, first, 1)
	appendN(t, second, 1) // second loads the tail written by first
	appendN(t, first, 1)  // first's cached tail is stale and must be reloaded

	if _, err := first.VerifyStored(context.Background()); err != nil {
		t.Fatalf("VerifyStored() error = %v", err)
	}
}

// tamperedStore serves a corrupted copy of one stored entry.
type tamperedStore struct {
	repo.AuditStore
	sequence int64
	mutate   func(e *repo.AuditLogEntry)
}

func (s *tamperedStore) ListAuditEntries(ctx context.Context, f repo.AuditFilter) ([]*repo.AuditLogEntry, error) {
	entries, err := s.AuditStore.ListAuditEntries(ctx, f)
	for _, e := range entries {
		if e.Sequence == s.sequence {
			s.mutate(e)
		}
	}
	return entries, err
}

func TestVerifyStoredReportsTampering(t *testing.T) {
	store := &tamperedStore{
		AuditStore: memstore.New(),
		sequence:   2,
		mutate:     func(e *repo.AuditLogEntry) { e.ActorRole = string(authorize.ActorAdmin) },
	}
	c := newTestChain(t, store)
	appendN(t, c, 3)

	report, err := c.VerifyStored(context.Background())
	if !errors.Is(err, ErrChainBroken) || !errors.Is(err, apperr.ErrIntegrity) {
		t.Fatalf("VerifyStored() error = %v, want ErrChainBroken", err)
	}
	if report == nil || *report.FirstBreakIndex != 1 {
		t.Fatalf("report = %+v, want break at index 1", report)
	}
	if got := apperr.MetadataOf(err)["first_break_index"]; got != 1 {
		t.Errorf("metadata first_break_index = %v, want 1", got)
	}
}

func TestRecordCapturesRequestMeta(t *testing.T) {
	store := memstore.New()
	c := newTestChain(t, store)

	ctx := reqctx.WithRequestMeta(context.Background(), &reqctx.RequestMeta{ClientIP: "10.0.0.7", UserAgent: "booking-test"})
	target := uuid.New()
	c.Record(ctx, Event{
		Action:     ActionAvailabilityCreated,
		Actor:      authorize.Actor{ID: uuid.New(), Role: authorize.ActorTherapist},
		TargetType: TargetAvailabilityWindow,
		TargetID:   target,
		New:        map[string]any{"start_time": "09:00"},
	})

	entries, err := c.List(context.Background(), repo.AuditFilter{TargetID: target})
	if err != nil || len(entries) != 1 {
		t.Fatalf("List() = %d entries, err %v", len(entries), err)
	}
	e := entries[0]
	if e.IPAddress != "10.0.0.7" || e.UserAgent != "booking-test" {
		t.Errorf("client = %q/%q", e.IPAddress, e.UserAgent)
	}
	if e.PreviousValue != nil {
		t.Errorf("PreviousValue = %s, want nil", e.PreviousValue)
	}
}

type failingStore struct {
	repo.AuditStore
}

func (failingStore) LastAuditEntry(context.Context) (*repo.AuditLogEntry, error) {
	return nil, repo.ErrNotFound
}

func (failingStore) AppendAuditEntry(context.Context, *repo.AuditLogEntry) error {
	return errors.New("disk full")
}

func TestRecordSwallowsStoreFailures(t *testing.T) {
	c := newTestChain(t, failingStore{})

	// must not panic or block
	c.Record(context.Background(), Event{Action: ActionSessionCancelled, TargetType: TargetSession, TargetID: uuid.New()})

	if _, err := c.Append(context.Background(), &repo.AuditLogEntry{ActionType: "x", TargetType: "y"}); err == nil {
		t.Error("Append() should surface the store error")
	}
}

func TestAppendAfterClose(t *testing.T) {
	c := NewChain(memstore.New(), logs.Discard())
	c.Close()
	c.Close()

	_, err := c.Append(context.Background(), &repo.AuditLogEntry{ActionType: "x", TargetType: "y"})
	if !errors.Is(err, ErrChainClosed) {
		t.Errorf("Append() after Close error = %v, want ErrChainClosed", err)
	}
}

func TestAppendDuringCloseReturns(t *testing.T) {
	for round := 0; round < 20; round++ {
		c := NewChain(memstore.New(), logs.Discard(), WithQueueSize(1))

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := c.Append(context.Background(), &repo.AuditLogEntry{ActionType: "x", TargetType: "y"})
				if err != nil && !errors.Is(err, ErrChainClosed) {
					t.Errorf("Append() error = %v, want nil or ErrChainClosed", err)
				}
			}()
		}
		c.Close()

		finished := make(chan struct{})
		go func() {
			wg.Wait()
			close(finished)
		}()
		select {
		case <-finished:
		case <-time.After(5 * time.Second):
			t.Fatalf("round %d: Append still blocked after Close", round)
		}
	}
}

func TestAppendRejectsIncompleteEntry(t *testing.T) {
	c := newTestChain(t, memstore.New())
	if _, err := c.Append(context.Background(), &repo.AuditLogEntry{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Append(empty) error = %v, want validation error", err)
	}
}
