package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/conflict"
	"github.com/Alijeyrad/simorq_booking/internal/service/lock"
	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/observability"
	"github.com/Alijeyrad/simorq_booking/pkg/s3"
	"github.com/Alijeyrad/simorq_booking/pkg/util/codes"
	"github.com/Alijeyrad/simorq_booking/pkg/validate"
)

const maxReferenceAttempts = 3

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	RequestBooking(ctx context.Context, actor authorize.Actor, req BookingRequest) (*repo.Session, error)
	Approve(ctx context.Context, actor authorize.Actor, id uuid.UUID, req ApproveRequest) (*repo.Session, error)
	Decline(ctx context.Context, actor authorize.Actor, id uuid.UUID, req DeclineRequest) (*repo.Session, error)
	SubmitPayment(ctx context.Context, actor authorize.Actor, id uuid.UUID, req PaymentRequest) (*repo.Session, error)
	VerifyPayment(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error)
	StartCall(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error)
	EndCall(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error)
	Cancel(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error)

	Get(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error)
	List(ctx context.Context, actor authorize.Actor, req ListRequest) ([]*repo.Session, error)
	PresignProofUpload(ctx context.Context, actor authorize.Actor, id uuid.UUID, contentType string) (*s3.PresignedUpload, error)
	PresignProofDownload(ctx context.Context, actor authorize.Actor, id uuid.UUID) (string, error)
}

// ProofStore holds uploaded payment proofs. *s3.Client implements it.
type ProofStore interface {
	PresignProofUpload(ctx context.Context, sessionID uuid.UUID, contentType string) (*s3.PresignedUpload, error)
	Exists(ctx context.Context, key string) (bool, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

type Config struct {
	Codes   codes.Config
	Now     func() time.Time
	Metrics *observability.BookingMetrics
}

// Deps are the collaborators of the service. Only Store is required.
type Deps struct {
	Store    repo.SessionStore
	Conflict conflict.Detector
	Audit    audit.Recorder
	Notifier notification.Dispatcher
	Locker   lock.Locker
	Proofs   ProofStore
	Logger   *slog.Logger
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type sessionService struct {
	store    repo.SessionStore
	conflict conflict.Detector
	audit    audit.Recorder
	notifier notification.Dispatcher
	locker   lock.Locker
	proofs   ProofStore
	logger   *slog.Logger
	codes    codes.Config
	now      func() time.Time
	metrics  *observability.BookingMetrics
}

func New(d Deps, cfg Config) Service {
	s := &sessionService{
		store:    d.Store,
		conflict: d.Conflict,
		audit:    d.Audit,
		notifier: d.Notifier,
		locker:   d.Locker,
		proofs:   d.Proofs,
		logger:   d.Logger,
		codes:    cfg.Codes,
		now:      cfg.Now,
		metrics:  cfg.Metrics,
	}
	if s.conflict == nil {
		s.conflict = conflict.New(d.Store)
	}
	if s.notifier == nil {
		s.notifier = notification.Noop()
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.codes.Length == 0 {
		s.codes = codes.DefaultConfig()
	}
	return s
}

// ---------------------------------------------------------------------------
// Booking
// ---------------------------------------------------------------------------

func (s *sessionService) RequestBooking(ctx context.Context, actor authorize.Actor, req BookingRequest) (*repo.Session, error) {
	ctx, span := s.metrics.StartSpan(ctx, "session.request_booking",
		attribute.String("therapist_id", req.TherapistID.String()))
	defer span.End()

	if req.ClientID == uuid.Nil {
		req.ClientID = actor.ID
	}
	if !actor.IsAdmin() && !actor.Is(req.ClientID) {
		return nil, ErrNotPermitted
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.ClientID == req.TherapistID {
		return nil, ErrSelfBooking
	}
	now := s.now()
	if !req.SessionDate.After(now) {
		return nil, ErrInPast
	}

	unlock, err := s.locker.Lock(ctx, lock.TherapistKey(req.TherapistID))
	if err != nil {
		return nil, fmt.Errorf("lock therapist calendar: %w", err)
	}
	defer unlock()

	res, err := s.conflict.Check(ctx, req.TherapistID, req.SessionDate)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if res.IsConflict {
		return nil, s.slotTaken(ctx, res.ConflictingSession)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	sess := &repo.Session{
		ID:              id,
		ClientID:        req.ClientID,
		TherapistID:     req.TherapistID,
		SessionType:     req.SessionType,
		SessionDate:     req.SessionDate.UTC(),
		DurationMinutes: repo.SessionDurationMinutes,
		Status:          repo.StatusPendingApproval,
		PaymentStatus:   repo.PaymentUnpaid,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.insert(ctx, sess); err != nil {
		var overlap *repo.OverlapError
		if errors.As(err, &overlap) {
			return nil, s.slotTaken(ctx, overlap.Existing)
		}
		s.metrics.BookingRequested(ctx, "error")
		return nil, err
	}

	s.metrics.BookingRequested(ctx, "created")
	s.logger.InfoContext(ctx, "session requested",
		"session_id", sess.ID,
		"reference", sess.BookingReference,
		"therapist_id", sess.TherapistID,
		"session_date", sess.SessionDate,
	)
	s.record(ctx, audit.Event{
		Action:     audit.ActionSessionRequested,
		Actor:      actor,
		TargetType: audit.TargetSession,
		TargetID:   sess.ID,
		New: map[string]any{
			"status":            sess.Status,
			"booking_reference": sess.BookingReference,
			"therapist_id":      sess.TherapistID,
			"client_id":         sess.ClientID,
			"session_type":      sess.SessionType,
			"session_date":      sess.SessionDate,
		},
	})
	return sess, nil
}

// insert assigns a booking reference and stores sess, drawing a new
// reference when the random one is already taken.
func (s *sessionService) insert(ctx context.Context, sess *repo.Session) error {
	for attempt := 1; ; attempt++ {
		ref, err := codes.GenerateBookingReference(s.codes)
		if err != nil {
			return fmt.Errorf("booking reference: %w", err)
		}
		sess.BookingReference = ref

		err = s.store.CreateSessionIfNoOverlap(ctx, sess)
		if err == nil {
			return nil
		}
		if errors.Is(err, repo.ErrDuplicate) && attempt < maxReferenceAttempts {
			continue
		}
		if errors.Is(err, repo.ErrOverlap) {
			return err
		}
		return fmt.Errorf("create session: %w", err)
	}
}

func (s *sessionService) slotTaken(ctx context.Context, existing *repo.Session) error {
	s.metrics.BookingRequested(ctx, "conflict")
	s.metrics.Conflict(ctx, "session")

	err := ErrSlotTaken
	if existing != nil {
		err = err.
			With("conflicting_session_id", existing.ID.String()).
			With("conflicting_start", existing.SessionDate.UTC().Format(time.RFC3339))
	}
	return err
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

func (s *sessionService) Approve(ctx context.Context, actor authorize.Actor, id uuid.UUID, req ApproveRequest) (*repo.Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Rate.IsNegative() {
		return nil, ErrInvalidRate
	}

	return s.transition(ctx, actor, id, EventApprove, func(next *repo.Session, now time.Time) (map[string]any, error) {
		rate := req.Rate
		approver := actor.ID
		next.Price = &rate
		next.PaymentInstructions = req.PaymentInstructions
		next.MeetingLink = req.MeetingLink
		next.ApprovedBy = &approver
		next.ApprovedAt = &now
		next.PaymentStatus = repo.PaymentAwaiting
		return map[string]any{
			"price":                rate.String(),
			"payment_instructions": req.PaymentInstructions,
			"payment_status":       next.PaymentStatus,
		}, nil
	})
}

func (s *sessionService) Decline(ctx context.Context, actor authorize.Actor, id uuid.UUID, req DeclineRequest) (*repo.Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, id, EventDecline, func(next *repo.Session, _ time.Time) (map[string]any, error) {
		next.DeclineReason = strings.TrimSpace(req.Reason)
		return map[string]any{"decline_reason": next.DeclineReason}, nil
	})
}

func (s *sessionService) SubmitPayment(ctx context.Context, actor authorize.Actor, id uuid.UUID, req PaymentRequest) (*repo.Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	req.ImageKey = strings.TrimSpace(req.ImageKey)
	req.TransactionRef = strings.TrimSpace(req.TransactionRef)
	if req.ImageKey == "" && req.TransactionRef == "" {
		return nil, ErrProofRequired
	}

	return s.transition(ctx, actor, id, EventSubmitPayment, func(next *repo.Session, now time.Time) (map[string]any, error) {
		if req.ImageKey != "" {
			if err := s.checkProofObject(ctx, next.ID, req.ImageKey); err != nil {
				return nil, err
			}
		}
		next.PaymentProof = &repo.PaymentProof{
			ImageKey:       req.ImageKey,
			TransactionRef: req.TransactionRef,
			SubmittedAt:    now,
		}
		next.PaymentStatus = repo.PaymentSubmitted
		return map[string]any{
			"payment_proof":  next.PaymentProof,
			"payment_status": next.PaymentStatus,
		}, nil
	})
}

func (s *sessionService) checkProofObject(ctx context.Context, sessionID uuid.UUID, key string) error {
	if !s3.IsProofKeyFor(sessionID, key) {
		return ErrProofKeyMismatch
	}
	if s.proofs == nil {
		return nil
	}
	ok, err := s.proofs.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check payment proof: %w", err)
	}
	if !ok {
		return ErrProofNotUploaded.With("image_key", key)
	}
	return nil
}

func (s *sessionService) VerifyPayment(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
	return s.transition(ctx, actor, id, EventVerifyPayment, func(next *repo.Session, _ time.Time) (map[string]any, error) {
		next.PaymentStatus = repo.PaymentVerified
		return map[string]any{"payment_status": next.PaymentStatus}, nil
	})
}

func (s *sessionService) StartCall(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
	return s.transition(ctx, actor, id, EventStartCall, func(next *repo.Session, now time.Time) (map[string]any, error) {
		next.VideoCallStarted = &now
		return map[string]any{"video_call_started": now}, nil
	})
}

func (s *sessionService) EndCall(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
	return s.transition(ctx, actor, id, EventEndCall, func(next *repo.Session, now time.Time) (map[string]any, error) {
		next.VideoCallEnded = &now
		payload := map[string]any{"video_call_ended": now}
		if next.VideoCallStarted != nil {
			minutes := int(math.Round(now.Sub(*next.VideoCallStarted).Minutes()))
			next.CallDuration = &minutes
			payload["call_duration"] = minutes
		}
		return payload, nil
	})
}

func (s *sessionService) Cancel(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
	return s.transition(ctx, actor, id, EventCancel, nil)
}

// mutation fills in the transition payload on next and returns what the
// audit entry should record beside the status.
type mutation func(next *repo.Session, now time.Time) (map[string]any, error)

func (s *sessionService) transition(ctx context.Context, actor authorize.Actor, id uuid.UUID, ev Event, mutate mutation) (*repo.Session, error) {
	ctx, span := s.metrics.StartSpan(ctx, "session."+string(ev),
		attribute.String("session_id", id.String()),
		attribute.String("actor", actor.String()),
	)
	defer span.End()

	cur, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	next, r, err := applyTransition(cur, ev, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payload := map[string]any{}
	if mutate != nil {
		if payload, err = mutate(next, now); err != nil {
			return nil, err
		}
	}
	next.UpdatedAt = now

	if err := s.store.UpdateSessionIfStatus(ctx, next, cur.Status); err != nil {
		switch {
		case errors.Is(err, repo.ErrStatusMismatch):
			return nil, ErrConcurrentUpdate.With("event", string(ev))
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("update session: %w", err)
	}

	s.metrics.Transition(ctx, string(cur.Status), string(next.Status))
	s.logger.InfoContext(ctx, "session transition",
		"session_id", next.ID,
		"event", ev,
		"from", cur.Status,
		"to", next.Status,
		"actor", actor.String(),
	)

	newValue := map[string]any{"status": next.Status}
	for k, v := range payload {
		newValue[k] = v
	}
	s.record(ctx, audit.Event{
		Action:     r.action,
		Actor:      actor,
		TargetType: audit.TargetSession,
		TargetID:   next.ID,
		Previous:   map[string]any{"status": cur.Status},
		New:        newValue,
	})

	if r.notify != "" {
		s.notifier.Notify(ctx, r.notify, next)
	}
	return next, nil
}

func (s *sessionService) record(ctx context.Context, ev audit.Event) {
	if s.audit != nil {
		s.audit.Record(ctx, ev)
	}
}

func (s *sessionService) load(ctx context.Context, id uuid.UUID) (*repo.Session, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// canRead admits participants, admins and the system principal.
func canRead(actor authorize.Actor, sess *repo.Session) bool {
	return actor.IsAdmin() || actor.IsSystem() || sess.IsParticipant(actor.ID)
}

func (s *sessionService) Get(ctx context.Context, actor authorize.Actor, id uuid.UUID) (*repo.Session, error) {
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(actor, sess) {
		// unknown and foreign sessions look the same to outsiders
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *sessionService) List(ctx context.Context, actor authorize.Actor, req ListRequest) ([]*repo.Session, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PerPage < 1 || req.PerPage > 100 {
		req.PerPage = 20
	}

	f := repo.SessionFilter{
		Statuses: req.Statuses,
		Limit:    req.PerPage,
		Offset:   (req.Page - 1) * req.PerPage,
	}
	if req.TherapistID != nil {
		f.TherapistID = *req.TherapistID
	}
	if req.ClientID != nil {
		f.ClientID = *req.ClientID
	}
	if req.From != nil {
		f.From = *req.From
	}
	if req.To != nil {
		f.To = *req.To
	}
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, validate.ErrInvalidInput.With("fields", map[string]string{"status": "oneof"})
		}
	}

	// non-admins see their own calendar as therapist or their own bookings
	if !actor.IsAdmin() && !actor.IsSystem() {
		if f.TherapistID != actor.ID {
			f.ClientID = actor.ID
		}
	}

	out, err := s.store.ListSessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func (s *sessionService) PresignProofUpload(ctx context.Context, actor authorize.Actor, id uuid.UUID, contentType string) (*s3.PresignedUpload, error) {
	if s.proofs == nil {
		return nil, ErrProofStoreDisabled
	}
	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isClient(actor, sess) {
		return nil, ErrNotPermitted
	}
	if !CanTransition(sess.Status, EventSubmitPayment) {
		return nil, ErrInvalidTransition.
			With("event", string(EventSubmitPayment)).
			With("from", string(sess.Status))
	}

	up, err := s.proofs.PresignProofUpload(ctx, sess.ID, contentType)
	if err != nil {
		if errors.Is(err, s3.ErrUnsupportedContentType) {
			return nil, ErrUnsupportedProof.With("content_type", contentType)
		}
		return nil, fmt.Errorf("presign proof upload: %w", err)
	}
	return up, nil
}

// PresignProofDownload lets the session's therapist, or an admin, view the
// uploaded proof image.
func (s *sessionService) PresignProofDownload(ctx context.Context, actor authorize.Actor, id uuid.UUID) (string, error) {
	if s.proofs == nil {
		return "", ErrProofStoreDisabled
	}
	sess, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if !isTherapist(actor, sess) && !actor.IsAdmin() {
		return "", ErrNotPermitted
	}
	if sess.PaymentProof == nil || sess.PaymentProof.ImageKey == "" {
		return "", ErrProofMissing
	}

	url, err := s.proofs.PresignDownload(ctx, sess.PaymentProof.ImageKey)
	if err != nil {
		return "", fmt.Errorf("presign proof download: %w", err)
	}
	return url, nil
}
