package pgstore

import (
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

func TestWindowRowRoundTrip(t *testing.T) {
	dow := 1
	until := civil.Date{Year: 2025, Month: time.June, Day: 30}
	w := &repo.AvailabilityWindow{
		ID:          uuid.New(),
		TherapistID: uuid.New(),
		WindowType:  repo.WindowRecurring,
		DayOfWeek:   &dow,
		ValidUntil:  &until,
		StartTime:   "09:00",
		EndTime:     "12:00",
		IsActive:    true,
	}

	values := windowValues(w)
	if len(values) != len(windowColumns) {
		t.Fatalf("windowValues() has %d values for %d columns", len(values), len(windowColumns))
	}

	row := windowRow{
		ID:          w.ID,
		TherapistID: w.TherapistID,
		WindowType:  string(w.WindowType),
		StartTime:   w.StartTime,
		EndTime:     w.EndTime,
		IsActive:    true,
	}
	row.DayOfWeek.Int16, row.DayOfWeek.Valid = 1, true
	row.ValidUntil.Time, row.ValidUntil.Valid = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), true

	got := row.toEntity()
	if got.DayOfWeek == nil || *got.DayOfWeek != 1 {
		t.Errorf("DayOfWeek = %v", got.DayOfWeek)
	}
	if got.SpecificDate != nil {
		t.Errorf("SpecificDate = %v, want nil", got.SpecificDate)
	}
	if got.ValidUntil == nil || *got.ValidUntil != until {
		t.Errorf("ValidUntil = %v, want %s", got.ValidUntil, until)
	}
}

func TestSessionRowRoundTrip(t *testing.T) {
	price := decimal.RequireFromString("1500000.00")
	approver := uuid.New()
	s := &repo.Session{
		ID:           uuid.New(),
		Status:       repo.StatusPaymentSubmitted,
		Price:        &price,
		ApprovedBy:   &approver,
		PaymentProof: &repo.PaymentProof{TransactionRef: "TX-1", SubmittedAt: time.Now()},
	}
	if n := len(sessionValues(s)); n != len(sessionColumns) {
		t.Fatalf("sessionValues() has %d values for %d columns", n, len(sessionColumns))
	}

	row := sessionRow{ID: s.ID, Status: string(s.Status), Price: decimal.NewNullDecimal(price)}
	row.ApprovedBy.UUID, row.ApprovedBy.Valid = approver, true
	row.ProofTransactionRef.String, row.ProofTransactionRef.Valid = "TX-1", true
	row.ProofSubmittedAt.Time, row.ProofSubmittedAt.Valid = s.PaymentProof.SubmittedAt, true

	got := row.toEntity()
	if got.Price == nil || !got.Price.Equal(price) {
		t.Errorf("Price = %v, want %s", got.Price, price)
	}
	if got.PaymentProof == nil || got.PaymentProof.TransactionRef != "TX-1" {
		t.Errorf("PaymentProof = %+v", got.PaymentProof)
	}
	if got.ApprovedBy == nil || *got.ApprovedBy != approver {
		t.Errorf("ApprovedBy = %v", got.ApprovedBy)
	}
	if got.CallDuration != nil || got.VideoCallStarted != nil {
		t.Error("unset call fields should stay nil")
	}
}

func TestSessionValuesCarryEnd(t *testing.T) {
	start := time.Date(2026, 3, 8, 6, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		duration int
		want     time.Time
	}{
		{"explicit duration", 90, start.Add(90 * time.Minute)},
		{"default duration", 0, start.Add(time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &repo.Session{ID: uuid.New(), SessionDate: start, DurationMinutes: tt.duration}
			values := sessionValues(s)
			for i, col := range sessionColumns {
				if col != "session_end" {
					continue
				}
				got, ok := values[i].(time.Time)
				if !ok || !got.Equal(tt.want) {
					t.Errorf("session_end = %v, want %s", values[i], tt.want)
				}
				return
			}
			t.Fatal("sessionColumns has no session_end")
		})
	}
}

func TestAuditRowKeepsNullValues(t *testing.T) {
	e := &repo.AuditLogEntry{ID: uuid.New(), NewValue: []byte(`{"status":"approved"}`)}
	values := auditValues(e)
	if len(values) != len(auditColumns) {
		t.Fatalf("auditValues() has %d values for %d columns", len(values), len(auditColumns))
	}

	row := auditRow{ID: e.ID}
	row.NewValue.JSONText, row.NewValue.Valid = e.NewValue, true

	got := row.toEntity()
	if got.PreviousValue != nil {
		t.Errorf("PreviousValue = %q, want nil", got.PreviousValue)
	}
	if got.PreviousHash != nil {
		t.Errorf("PreviousHash = %v, want nil", *got.PreviousHash)
	}
	if string(got.NewValue) != `{"status":"approved"}` {
		t.Errorf("NewValue = %q", got.NewValue)
	}
}

func TestOverlapQueryUsesPlaceholders(t *testing.T) {
	query, args := builder().Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.NotIn("status", statusArgs(repo.ReleasedStatuses)...)).
		Query()
	if !strings.Contains(query, "$1") || len(args) != len(repo.ReleasedStatuses) {
		t.Errorf("query %q with %d args", query, len(args))
	}
}
