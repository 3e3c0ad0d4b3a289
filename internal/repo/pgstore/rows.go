package pgstore

import (
	"database/sql"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
)

var windowColumns = []string{
	"id", "therapist_id", "window_type", "day_of_week", "specific_date",
	"valid_from", "valid_until", "start_time", "end_time", "title", "notes",
	"allowed_session_types", "max_concurrent", "timezone", "buffer_minutes",
	"min_advance_hours", "max_advance_days", "is_active", "deactivation_reason",
	"created_at", "updated_at",
}

type windowRow struct {
	ID                  uuid.UUID      `db:"id"`
	TherapistID         uuid.UUID      `db:"therapist_id"`
	WindowType          string         `db:"window_type"`
	DayOfWeek           sql.NullInt16  `db:"day_of_week"`
	SpecificDate        sql.NullTime   `db:"specific_date"`
	ValidFrom           sql.NullTime   `db:"valid_from"`
	ValidUntil          sql.NullTime   `db:"valid_until"`
	StartTime           string         `db:"start_time"`
	EndTime             string         `db:"end_time"`
	Title               string         `db:"title"`
	Notes               string         `db:"notes"`
	AllowedSessionTypes pq.StringArray `db:"allowed_session_types"`
	MaxConcurrent       int            `db:"max_concurrent"`
	Timezone            string         `db:"timezone"`
	BufferMinutes       int            `db:"buffer_minutes"`
	MinAdvanceHours     int            `db:"min_advance_hours"`
	MaxAdvanceDays      int            `db:"max_advance_days"`
	IsActive            bool           `db:"is_active"`
	DeactivationReason  string         `db:"deactivation_reason"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r windowRow) toEntity() *repo.AvailabilityWindow {
	w := &repo.AvailabilityWindow{
		ID:                  r.ID,
		TherapistID:         r.TherapistID,
		WindowType:          repo.WindowType(r.WindowType),
		SpecificDate:        dateFromNull(r.SpecificDate),
		ValidFrom:           dateFromNull(r.ValidFrom),
		ValidUntil:          dateFromNull(r.ValidUntil),
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		Title:               r.Title,
		Notes:               r.Notes,
		AllowedSessionTypes: []string(r.AllowedSessionTypes),
		MaxConcurrent:       r.MaxConcurrent,
		Timezone:            r.Timezone,
		BufferMinutes:       r.BufferMinutes,
		MinAdvanceHours:     r.MinAdvanceHours,
		MaxAdvanceDays:      r.MaxAdvanceDays,
		IsActive:            r.IsActive,
		DeactivationReason:  r.DeactivationReason,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.DayOfWeek.Valid {
		d := int(r.DayOfWeek.Int16)
		w.DayOfWeek = &d
	}
	return w
}

// windowValues returns column values in windowColumns order.
func windowValues(w *repo.AvailabilityWindow) []any {
	var dow any
	if w.DayOfWeek != nil {
		dow = *w.DayOfWeek
	}
	allowed := w.AllowedSessionTypes
	if allowed == nil {
		allowed = []string{}
	}
	return []any{
		w.ID, w.TherapistID, string(w.WindowType), dow, dateValue(w.SpecificDate),
		dateValue(w.ValidFrom), dateValue(w.ValidUntil), w.StartTime, w.EndTime, w.Title, w.Notes,
		pq.StringArray(allowed), w.MaxConcurrent, w.Timezone, w.BufferMinutes,
		w.MinAdvanceHours, w.MaxAdvanceDays, w.IsActive, w.DeactivationReason,
		w.CreatedAt, w.UpdatedAt,
	}
}

type blockedRow struct {
	ID          uuid.UUID `db:"id"`
	TherapistID uuid.UUID `db:"therapist_id"`
	Date        time.Time `db:"date"`
	Reason      string    `db:"reason"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r blockedRow) toEntity() *repo.BlockedDate {
	return &repo.BlockedDate{
		ID:          r.ID,
		TherapistID: r.TherapistID,
		Date:        civil.DateOf(r.Date),
		Reason:      r.Reason,
		CreatedAt:   r.CreatedAt,
	}
}

var sessionColumns = []string{
	"id", "booking_reference", "client_id", "therapist_id", "session_type",
	"session_date", "duration_minutes", "session_end", "status", "payment_status", "price",
	"payment_instructions", "meeting_link", "proof_image_key",
	"proof_transaction_ref", "proof_submitted_at", "video_call_started",
	"video_call_ended", "call_duration", "approved_by", "approved_at",
	"decline_reason", "notes", "created_at", "updated_at",
}

type sessionRow struct {
	ID                  uuid.UUID           `db:"id"`
	BookingReference    string              `db:"booking_reference"`
	ClientID            uuid.UUID           `db:"client_id"`
	TherapistID         uuid.UUID           `db:"therapist_id"`
	SessionType         string              `db:"session_type"`
	SessionDate         time.Time           `db:"session_date"`
	DurationMinutes     int                 `db:"duration_minutes"`
	SessionEnd          time.Time           `db:"session_end"`
	Status              string              `db:"status"`
	PaymentStatus       string              `db:"payment_status"`
	Price               decimal.NullDecimal `db:"price"`
	PaymentInstructions string              `db:"payment_instructions"`
	MeetingLink         string              `db:"meeting_link"`
	ProofImageKey       sql.NullString      `db:"proof_image_key"`
	ProofTransactionRef sql.NullString      `db:"proof_transaction_ref"`
	ProofSubmittedAt    sql.NullTime        `db:"proof_submitted_at"`
	VideoCallStarted    sql.NullTime        `db:"video_call_started"`
	VideoCallEnded      sql.NullTime        `db:"video_call_ended"`
	CallDuration        sql.NullInt64       `db:"call_duration"`
	ApprovedBy          uuid.NullUUID       `db:"approved_by"`
	ApprovedAt          sql.NullTime        `db:"approved_at"`
	DeclineReason       string              `db:"decline_reason"`
	Notes               string              `db:"notes"`
	CreatedAt           time.Time           `db:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at"`
}

func (r sessionRow) toEntity() *repo.Session {
	s := &repo.Session{
		ID:                  r.ID,
		BookingReference:    r.BookingReference,
		ClientID:            r.ClientID,
		TherapistID:         r.TherapistID,
		SessionType:         r.SessionType,
		SessionDate:         r.SessionDate,
		DurationMinutes:     r.DurationMinutes,
		Status:              repo.SessionStatus(r.Status),
		PaymentStatus:       repo.PaymentStatus(r.PaymentStatus),
		PaymentInstructions: r.PaymentInstructions,
		MeetingLink:         r.MeetingLink,
		VideoCallStarted:    timeFromNull(r.VideoCallStarted),
		VideoCallEnded:      timeFromNull(r.VideoCallEnded),
		ApprovedAt:          timeFromNull(r.ApprovedAt),
		DeclineReason:       r.DeclineReason,
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.Price.Valid {
		p := r.Price.Decimal
		s.Price = &p
	}
	if r.ProofSubmittedAt.Valid {
		s.PaymentProof = &repo.PaymentProof{
			ImageKey:       r.ProofImageKey.String,
			TransactionRef: r.ProofTransactionRef.String,
			SubmittedAt:    r.ProofSubmittedAt.Time,
		}
	}
	if r.CallDuration.Valid {
		d := int(r.CallDuration.Int64)
		s.CallDuration = &d
	}
	if r.ApprovedBy.Valid {
		id := r.ApprovedBy.UUID
		s.ApprovedBy = &id
	}
	return s
}

// sessionValues returns column values in sessionColumns order.
func sessionValues(s *repo.Session) []any {
	var price decimal.NullDecimal
	if s.Price != nil {
		price = decimal.NewNullDecimal(*s.Price)
	}
	var proofKey, proofRef sql.NullString
	var proofAt sql.NullTime
	if s.PaymentProof != nil {
		proofKey = sql.NullString{String: s.PaymentProof.ImageKey, Valid: s.PaymentProof.ImageKey != ""}
		proofRef = sql.NullString{String: s.PaymentProof.TransactionRef, Valid: s.PaymentProof.TransactionRef != ""}
		proofAt = sql.NullTime{Time: s.PaymentProof.SubmittedAt, Valid: true}
	}
	var callDuration sql.NullInt64
	if s.CallDuration != nil {
		callDuration = sql.NullInt64{Int64: int64(*s.CallDuration), Valid: true}
	}
	var approvedBy uuid.NullUUID
	if s.ApprovedBy != nil {
		approvedBy = uuid.NullUUID{UUID: *s.ApprovedBy, Valid: true}
	}

	return []any{
		s.ID, s.BookingReference, s.ClientID, s.TherapistID, s.SessionType,
		s.SessionDate, s.DurationMinutes, s.End(),
		string(s.Status), string(s.PaymentStatus), price,
		s.PaymentInstructions, s.MeetingLink, proofKey,
		proofRef, proofAt, nullTime(s.VideoCallStarted),
		nullTime(s.VideoCallEnded), callDuration, approvedBy, nullTime(s.ApprovedAt),
		s.DeclineReason, s.Notes, s.CreatedAt, s.UpdatedAt,
	}
}

var auditColumns = []string{
	"id", "timestamp", "action_type", "actor_id", "actor_role", "target_type",
	"target_id", "previous_value", "new_value", "ip_address", "user_agent",
	"log_hash", "previous_hash",
}

type auditRow struct {
	Sequence      int64              `db:"sequence"`
	ID            uuid.UUID          `db:"id"`
	Timestamp     time.Time          `db:"timestamp"`
	ActionType    string             `db:"action_type"`
	ActorID       uuid.UUID          `db:"actor_id"`
	ActorRole     string             `db:"actor_role"`
	TargetType    string             `db:"target_type"`
	TargetID      uuid.UUID          `db:"target_id"`
	PreviousValue types.NullJSONText `db:"previous_value"`
	NewValue      types.NullJSONText `db:"new_value"`
	IPAddress     string             `db:"ip_address"`
	UserAgent     string             `db:"user_agent"`
	LogHash       string             `db:"log_hash"`
	PreviousHash  sql.NullString     `db:"previous_hash"`
}

func (r auditRow) toEntity() *repo.AuditLogEntry {
	e := &repo.AuditLogEntry{
		Sequence:   r.Sequence,
		ID:         r.ID,
		Timestamp:  r.Timestamp.UTC(),
		ActionType: r.ActionType,
		ActorID:    r.ActorID,
		ActorRole:  r.ActorRole,
		TargetType: r.TargetType,
		TargetID:   r.TargetID,
		IPAddress:  r.IPAddress,
		UserAgent:  r.UserAgent,
		LogHash:    r.LogHash,
	}
	if r.PreviousValue.Valid {
		e.PreviousValue = r.PreviousValue.JSONText
	}
	if r.NewValue.Valid {
		e.NewValue = r.NewValue.JSONText
	}
	if r.PreviousHash.Valid {
		h := r.PreviousHash.String
		e.PreviousHash = &h
	}
	return e
}

// auditValues returns column values in auditColumns order.
func auditValues(e *repo.AuditLogEntry) []any {
	var prev sql.NullString
	if e.PreviousHash != nil {
		prev = sql.NullString{String: *e.PreviousHash, Valid: true}
	}
	return []any{
		e.ID, e.Timestamp, e.ActionType, e.ActorID, e.ActorRole, e.TargetType,
		e.TargetID, nullJSON(e.PreviousValue), nullJSON(e.NewValue), e.IPAddress, e.UserAgent,
		e.LogHash, prev,
	}
}

func nullJSON(j types.JSONText) types.NullJSONText {
	return types.NullJSONText{JSONText: j, Valid: len(j) > 0}
}

func dateFromNull(t sql.NullTime) *civil.Date {
	if !t.Valid {
		return nil
	}
	d := civil.DateOf(t.Time)
	return &d
}

func dateValue(d *civil.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func timeFromNull(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
