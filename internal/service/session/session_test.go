package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/internal/repo/memstore"
	"github.com/Alijeyrad/simorq_booking/internal/service/audit"
	"github.com/Alijeyrad/simorq_booking/internal/service/lock"
	"github.com/Alijeyrad/simorq_booking/internal/service/notification"
	"github.com/Alijeyrad/simorq_booking/pkg/apperr"
	"github.com/Alijeyrad/simorq_booking/pkg/authorize"
	"github.com/Alijeyrad/simorq_booking/pkg/logs"
	"github.com/Alijeyrad/simorq_booking/pkg/s3"
)

// Monday 2025-03-10 10:00 UTC
var mondayTen = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type sentNotification struct {
	event     notification.Event
	sessionID uuid.UUID
}

type notifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *notifier) Notify(_ context.Context, ev notification.Event, s *repo.Session) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{ev, s.ID})
}

type proofStore struct {
	uploaded map[string]bool
}

func (p *proofStore) PresignProofUpload(_ context.Context, sessionID uuid.UUID, contentType string) (*s3.PresignedUpload, error) {
	key, err := s3.ProofKey(sessionID, contentType)
	if err != nil {
		return nil, err
	}
	return &s3.PresignedUpload{Key: key, URL: "https://s3.example/" + key, Method: "PUT"}, nil
}

func (p *proofStore) Exists(_ context.Context, key string) (bool, error) {
	return p.uploaded[key], nil
}

func (p *proofStore) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://s3.example/" + key + "?get", nil
}

type fixture struct {
	svc       Service
	store     *memstore.Store
	chain     *audit.Chain
	clock     *clock
	notes     *notifier
	proofs    *proofStore
	client    authorize.Actor
	therapist authorize.Actor
	admin     authorize.Actor
	stranger  authorize.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{t: time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)}
	store := memstore.New()
	chain := audit.NewChain(store, logs.Discard(), audit.WithClock(clk.Now))
	t.Cleanup(chain.Close)

	f := &fixture{
		store:     store,
		chain:     chain,
		clock:     clk,
		notes:     &notifier{},
		proofs:    &proofStore{uploaded: map[string]bool{}},
		client:    authorize.Actor{ID: uuid.New(), Role: authorize.ActorClient},
		therapist: authorize.Actor{ID: uuid.New(), Role: authorize.ActorTherapist},
		admin:     authorize.Actor{ID: uuid.New(), Role: authorize.ActorAdmin},
		stranger:  authorize.Actor{ID: uuid.New(), Role: authorize.ActorClient},
	}
	f.svc = New(Deps{
		Store:    store,
		Audit:    chain,
		Notifier: f.notes,
		Locker:   lock.NewLocal(),
		Proofs:   f.proofs,
		Logger:   logs.Discard(),
	}, Config{Now: clk.Now})
	return f
}

func (f *fixture) book(t *testing.T, at time.Time) *repo.Session {
	t.Helper()
	s, err := f.svc.RequestBooking(context.Background(), f.client, BookingRequest{
		TherapistID: f.therapist.ID,
		SessionType: "individual",
		SessionDate: at,
	})
	if err != nil {
		t.Fatalf("RequestBooking(%v) error = %v", at, err)
	}
	return s
}

// seed stores a session directly in the given status.
func (f *fixture) seed(t *testing.T, status repo.SessionStatus, at time.Time) *repo.Session {
	t.Helper()
	s := &repo.Session{
		ID:              uuid.New(),
		ClientID:        f.client.ID,
		TherapistID:     f.therapist.ID,
		SessionType:     "individual",
		SessionDate:     at,
		DurationMinutes: repo.SessionDurationMinutes,
		Status:          status,
		PaymentStatus:   repo.PaymentUnpaid,
	}
	if status == repo.StatusInProgress {
		started := at
		s.VideoCallStarted = &started
	}
	if err := f.store.CreateSessionIfNoOverlap(context.Background(), s); err != nil {
		t.Fatal(err)
	}
	return s
}

func (f *fixture) auditEntries(t *testing.T, target uuid.UUID) []*repo.AuditLogEntry {
	t.Helper()
	entries, err := f.chain.List(context.Background(), repo.AuditFilter{TargetType: audit.TargetSession, TargetID: target})
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

func (f *fixture) countSessions(t *testing.T) int {
	t.Helper()
	all, err := f.store.ListSessions(context.Background(), repo.SessionFilter{})
	if err != nil {
		t.Fatal(err)
	}
	return len(all)
}

// fire applies ev as an actor that is always permitted to fire it.
func (f *fixture) fire(ctx context.Context, ev Event, id uuid.UUID) (*repo.Session, error) {
	switch ev {
	case EventApprove:
		return f.svc.Approve(ctx, f.therapist, id, ApproveRequest{Rate: decimal.NewFromInt(1500000)})
	case EventDecline:
		return f.svc.Decline(ctx, f.therapist, id, DeclineRequest{Reason: "fully booked"})
	case EventSubmitPayment:
		return f.svc.SubmitPayment(ctx, f.client, id, PaymentRequest{TransactionRef: "TX-1"})
	case EventVerifyPayment:
		return f.svc.VerifyPayment(ctx, f.therapist, id)
	case EventStartCall:
		return f.svc.StartCall(ctx, f.client, id)
	case EventEndCall:
		return f.svc.EndCall(ctx, f.therapist, id)
	case EventCancel:
		return f.svc.Cancel(ctx, f.client, id)
	}
	panic("unknown event " + ev)
}

func TestRequestBookingConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	existing := f.seed(t, repo.StatusConfirmed, mondayTen)

	_, err := f.svc.RequestBooking(ctx, f.client, BookingRequest{
		TherapistID: f.therapist.ID,
		SessionType: "individual",
		SessionDate: mondayTen.Add(30 * time.Minute),
	})
	if !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("RequestBooking() error = %v, want ErrSlotTaken", err)
	}
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("kind = %s, want CONFLICT", apperr.KindOf(err))
	}
	if got := apperr.MetadataOf(err)["conflicting_session_id"]; got != existing.ID.String() {
		t.Errorf("conflicting_session_id = %v, want %s", got, existing.ID)
	}
	if n := f.countSessions(t); n != 1 {
		t.Errorf("sessions = %d after rejected booking, want 1", n)
	}

	// the released slot can be booked once the holder cancels
	if _, err := f.svc.Cancel(ctx, f.client, existing.ID); err != nil {
		t.Fatal(err)
	}
	if s := f.book(t, mondayTen.Add(30*time.Minute)); s.Status != repo.StatusPendingApproval {
		t.Errorf("status = %s", s.Status)
	}
}

func TestRequestBookingCreatesPendingSession(t *testing.T) {
	f := newFixture(t)
	s := f.book(t, mondayTen)

	if s.Status != repo.StatusPendingApproval || s.PaymentStatus != repo.PaymentUnpaid {
		t.Errorf("status = %s/%s", s.Status, s.PaymentStatus)
	}
	if s.ClientID != f.client.ID || s.DurationMinutes != 60 {
		t.Errorf("session = %+v", s)
	}
	if len(s.BookingReference) != len("SQ-XXXX-XXXX") || s.BookingReference[:3] != "SQ-" {
		t.Errorf("booking reference = %q", s.BookingReference)
	}

	entries := f.auditEntries(t, s.ID)
	if len(entries) != 1 || entries[0].ActionType != audit.ActionSessionRequested {
		t.Fatalf("audit entries = %d", len(entries))
	}
	if entries[0].ActorID != f.client.ID || entries[0].ActorRole != string(authorize.ActorClient) {
		t.Errorf("audit actor = %s/%s", entries[0].ActorID, entries[0].ActorRole)
	}
}

func TestRequestBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   authorize.Actor
		req     BookingRequest
		wantErr error
	}{
		{"in the past", f.client, BookingRequest{TherapistID: f.therapist.ID, SessionType: "individual", SessionDate: f.clock.Now().Add(-time.Hour)}, ErrInPast},
		{"missing type", f.client, BookingRequest{TherapistID: f.therapist.ID, SessionDate: mondayTen}, apperr.ErrValidation},
		{"missing therapist", f.client, BookingRequest{SessionType: "individual", SessionDate: mondayTen}, apperr.ErrValidation},
		{"self booking", f.therapist, BookingRequest{TherapistID: f.therapist.ID, SessionType: "individual", SessionDate: mondayTen}, ErrSelfBooking},
		{"on behalf of another client", f.stranger, BookingRequest{ClientID: f.client.ID, TherapistID: f.therapist.ID, SessionType: "individual", SessionDate: mondayTen}, ErrNotPermitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RequestBooking(ctx, tt.actor, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("RequestBooking() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if n := f.countSessions(t); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}

	// admins may book for a client
	s, err := f.svc.RequestBooking(ctx, f.admin, BookingRequest{ClientID: f.client.ID, TherapistID: f.therapist.ID, SessionType: "individual", SessionDate: mondayTen})
	if err != nil {
		t.Fatalf("admin RequestBooking() error = %v", err)
	}
	if s.ClientID != f.client.ID {
		t.Errorf("client = %s, want %s", s.ClientID, f.client.ID)
	}
}

func TestRequestBookingConcurrentSameSlot(t *testing.T) {
	f := newFixture(t)
	const n = 12

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			client := authorize.Actor{ID: uuid.New(), Role: authorize.ActorClient}
			_, errs[i] = f.svc.RequestBooking(context.Background(), client, BookingRequest{
				TherapistID: f.therapist.ID,
				SessionType: "individual",
				SessionDate: mondayTen.Add(time.Duration(i%3) * 20 * time.Minute),
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrSlotTaken):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d bookings succeeded for overlapping times, want 1", ok)
	}
	if c := f.countSessions(t); c != 1 {
		t.Errorf("stored sessions = %d, want 1", c)
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.book(t, mondayTen)

	approved, err := f.svc.Approve(ctx, f.therapist, s.ID, ApproveRequest{
		Rate:                decimal.RequireFromString("2500000"),
		PaymentInstructions: "card 6037-xxxx",
		MeetingLink:         "https://meet.example/room",
	})
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.Status != repo.StatusApproved || approved.PaymentStatus != repo.PaymentAwaiting {
		t.Errorf("after approve: %s/%s", approved.Status, approved.PaymentStatus)
	}
	if approved.Price == nil || !approved.Price.Equal(decimal.NewFromInt(2500000)) {
		t.Errorf("price = %v", approved.Price)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != f.therapist.ID || approved.ApprovedAt == nil {
		t.Errorf("approver not recorded")
	}

	paid, err := f.svc.SubmitPayment(ctx, f.client, s.ID, PaymentRequest{TransactionRef: "TX-42"})
	if err != nil {
		t.Fatalf("SubmitPayment() error = %v", err)
	}
	if paid.Status != repo.StatusPaymentSubmitted || paid.PaymentProof == nil || paid.PaymentProof.TransactionRef != "TX-42" {
		t.Errorf("after payment: %+v", paid)
	}
	if !paid.PaymentProof.SubmittedAt.Equal(f.clock.Now()) {
		t.Errorf("proof timestamp = %v", paid.PaymentProof.SubmittedAt)
	}

	confirmed, err := f.svc.VerifyPayment(ctx, f.therapist, s.ID)
	if err != nil {
		t.Fatalf("VerifyPayment() error = %v", err)
	}
	if confirmed.Status != repo.StatusConfirmed || confirmed.PaymentStatus != repo.PaymentVerified {
		t.Errorf("after verify: %s/%s", confirmed.Status, confirmed.PaymentStatus)
	}

	started, err := f.svc.StartCall(ctx, f.client, s.ID)
	if err != nil {
		t.Fatalf("StartCall() error = %v", err)
	}
	if started.Status != repo.StatusInProgress || started.VideoCallStarted == nil {
		t.Errorf("after start: %+v", started)
	}

	f.clock.Advance(50*time.Minute + 31*time.Second)
	done, err := f.svc.EndCall(ctx, f.therapist, s.ID)
	if err != nil {
		t.Fatalf("EndCall() error = %v", err)
	}
	if done.Status != repo.StatusCompleted || done.CallDuration == nil || *done.CallDuration != 51 {
		t.Errorf("after end: status=%s duration=%v", done.Status, done.CallDuration)
	}

	want := []string{
		audit.ActionSessionRequested,
		audit.ActionSessionApproved,
		audit.ActionSessionPaymentSubmitted,
		audit.ActionSessionPaymentVerified,
		audit.ActionSessionCallStarted,
		audit.ActionSessionCompleted,
	}
	entries := f.auditEntries(t, s.ID)
	if len(entries) != len(want) {
		t.Fatalf("audit entries = %d, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.ActionType != want[i] {
			t.Errorf("audit[%d] = %s, want %s", i, e.ActionType, want[i])
		}
	}
	if string(entries[1].PreviousValue) != `{"status":"pending_approval"}` {
		t.Errorf("approve previous value = %s", entries[1].PreviousValue)
	}

	report, err := f.chain.VerifyStored(ctx)
	if err != nil || !report.Valid {
		t.Errorf("stored chain invalid: %v", err)
	}

	gotEvents := make([]notification.Event, len(f.notes.sent))
	for i, n := range f.notes.sent {
		gotEvents[i] = n.event
		if n.sessionID != s.ID {
			t.Errorf("notification %d for %s", i, n.sessionID)
		}
	}
	if fmt.Sprint(gotEvents) != fmt.Sprint([]notification.Event{notification.EventApproved, notification.EventConfirmed}) {
		t.Errorf("notifications = %v", gotEvents)
	}
}

func TestApproveFromConfirmedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, repo.StatusConfirmed, mondayTen)

	_, err := f.svc.Approve(ctx, f.therapist, s.ID, ApproveRequest{Rate: decimal.NewFromInt(100)})
	if !errors.Is(err, apperr.ErrInvalidStateTransition) {
		t.Fatalf("Approve() error = %v, want INVALID_STATE_TRANSITION", err)
	}

	stored, err := f.store.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != repo.StatusConfirmed || stored.Price != nil {
		t.Errorf("session mutated: %+v", stored)
	}
	if n := len(f.auditEntries(t, s.ID)); n != 0 {
		t.Errorf("audit entries = %d, want 0", n)
	}
}

func TestTransitionLegality(t *testing.T) {
	legal := map[repo.SessionStatus][]Event{
		repo.StatusPendingApproval:  {EventApprove, EventDecline, EventCancel},
		repo.StatusApproved:         {EventSubmitPayment, EventStartCall, EventCancel},
		repo.StatusPaymentSubmitted: {EventVerifyPayment, EventCancel},
		repo.StatusConfirmed:        {EventStartCall, EventCancel},
		repo.StatusInProgress:       {EventEndCall, EventCancel},
		repo.StatusCompleted:        nil,
		repo.StatusDeclined:         nil,
		repo.StatusCancelled:        nil,
	}
	target := map[Event]repo.SessionStatus{
		EventApprove:       repo.StatusApproved,
		EventDecline:       repo.StatusDeclined,
		EventSubmitPayment: repo.StatusPaymentSubmitted,
		EventVerifyPayment: repo.StatusConfirmed,
		EventStartCall:     repo.StatusInProgress,
		EventEndCall:       repo.StatusCompleted,
		EventCancel:        repo.StatusCancelled,
	}

	for _, status := range repo.SessionStatuses {
		for _, ev := range Events {
			wantOK := false
			for _, e := range legal[status] {
				if e == ev {
					wantOK = true
				}
			}

			t.Run(fmt.Sprintf("%s/%s", status, ev), func(t *testing.T) {
				if got := CanTransition(status, ev); got != wantOK {
					t.Errorf("CanTransition() = %v, want %v", got, wantOK)
				}

				f := newFixture(t)
				s := f.seed(t, status, mondayTen)
				got, err := f.fire(context.Background(), ev, s.ID)

				if !wantOK {
					if !errors.Is(err, apperr.ErrInvalidStateTransition) {
						t.Fatalf("error = %v, want INVALID_STATE_TRANSITION", err)
					}
					stored, _ := f.store.GetSession(context.Background(), s.ID)
					if stored.Status != status {
						t.Errorf("status changed to %s on rejected transition", stored.Status)
					}
					if n := len(f.auditEntries(t, s.ID)); n != 0 {
						t.Errorf("rejected transition audited %d times", n)
					}
					return
				}

				if err != nil {
					t.Fatalf("error = %v", err)
				}
				if got.Status != target[ev] {
					t.Errorf("status = %s, want %s", got.Status, target[ev])
				}
				if n := len(f.auditEntries(t, s.ID)); n != 1 {
					t.Errorf("audit entries = %d, want exactly 1", n)
				}
			})
		}
	}
}

func TestTransitionAuthorization(t *testing.T) {
	type call func(f *fixture, a authorize.Actor, id uuid.UUID) error

	approve := func(f *fixture, a authorize.Actor, id uuid.UUID) error {
		_, err := f.svc.Approve(context.Background(), a, id, ApproveRequest{Rate: decimal.NewFromInt(1)})
		return err
	}
	decline := func(f *fixture, a authorize.Actor, id uuid.UUID) error {
		_, err := f.svc.Decline(context.Background(), a, id, DeclineRequest{})
		return err
	}
	pay := func(f *fixture, a authorize.Actor, id uuid.UUID) error {
		_, err := f.svc.SubmitPayment(context.Background(), a, id, PaymentRequest{TransactionRef: "TX"})
		return err
	}
	verify := func(f *fixture, a authorize.Actor, id uuid.UUID) error {
		_, err := f.svc.VerifyPayment(context.Background(), a, id)
		return err
	}
	start := func(f *fixture, a authorize.Actor, id uuid.UUID) error {
		_, err := f.svc.StartCall(context.Background(), a, id)
		return err
	}
	end := func(f *fixture, a authorize.Actor, id uuid.UUID) error {
		_, err := f.svc.EndCall(context.Background(), a, id)
		return err
	}
	cancel := func(f *fixture, a authorize.Actor, id uuid.UUID) error {
		_, err := f.svc.Cancel(context.Background(), a, id)
		return err
	}

	tests := []struct {
		name    string
		from    repo.SessionStatus
		call    call
		allowed []string
	}{
		{"approve", repo.StatusPendingApproval, approve, []string{"therapist"}},
		{"decline", repo.StatusPendingApproval, decline, []string{"therapist"}},
		{"submit payment", repo.StatusApproved, pay, []string{"client"}},
		{"verify payment", repo.StatusPaymentSubmitted, verify, []string{"therapist", "admin", "system"}},
		{"start call", repo.StatusConfirmed, start, []string{"client", "therapist"}},
		{"end call", repo.StatusInProgress, end, []string{"client", "therapist"}},
		{"cancel", repo.StatusApproved, cancel, []string{"client", "therapist", "admin"}},
	}

	for _, tt := range tests {
		for _, who := range []string{"client", "therapist", "admin", "system", "stranger"} {
			t.Run(tt.name+"/"+who, func(t *testing.T) {
				f := newFixture(t)
				actors := map[string]authorize.Actor{
					"client":    f.client,
					"therapist": f.therapist,
					"admin":     f.admin,
					"system":    authorize.SystemActor(),
					"stranger":  f.stranger,
				}
				s := f.seed(t, tt.from, mondayTen)

				want := false
				for _, a := range tt.allowed {
					if a == who {
						want = true
					}
				}

				err := tt.call(f, actors[who], s.ID)
				if want && err != nil {
					t.Fatalf("error = %v, want success", err)
				}
				if !want && !errors.Is(err, ErrNotPermitted) {
					t.Fatalf("error = %v, want ErrNotPermitted", err)
				}
			})
		}
	}
}

func TestAuthorizationCheckedBeforeLegality(t *testing.T) {
	f := newFixture(t)
	s := f.seed(t, repo.StatusCompleted, mondayTen)

	_, err := f.svc.Approve(context.Background(), f.stranger, s.ID, ApproveRequest{})
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("error = %v, want ErrNotPermitted", err)
	}
	if len(apperr.MetadataOf(err)) != 0 {
		t.Errorf("authorization error leaks state: %v", apperr.MetadataOf(err))
	}
}

func TestCancelOnlyChangesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.book(t, mondayTen)
	before, err := f.svc.Approve(ctx, f.therapist, s.ID, ApproveRequest{Rate: decimal.NewFromInt(900), MeetingLink: "https://meet.example/x"})
	if err != nil {
		t.Fatal(err)
	}

	f.clock.Advance(time.Hour)
	after, err := f.svc.Cancel(ctx, f.admin, s.ID)
	if err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if after.Status != repo.StatusCancelled {
		t.Errorf("status = %s", after.Status)
	}
	cmp := after.Clone()
	cmp.Status = before.Status
	cmp.UpdatedAt = before.UpdatedAt
	if !reflect.DeepEqual(cmp, before) {
		t.Errorf("cancel altered more than status:\nbefore %+v\nafter  %+v", before, after)
	}

	stored, err := f.store.GetSession(ctx, s.ID)
	if err != nil {
		t.Fatalf("cancelled session removed: %v", err)
	}
	if stored.Status != repo.StatusCancelled {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestDeclineNotifies(t *testing.T) {
	f := newFixture(t)
	s := f.book(t, mondayTen)

	got, err := f.svc.Decline(context.Background(), f.therapist, s.ID, DeclineRequest{Reason: "  on leave "})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != repo.StatusDeclined || got.DeclineReason != "on leave" {
		t.Errorf("declined session = %s %q", got.Status, got.DeclineReason)
	}
	if len(f.notes.sent) != 1 || f.notes.sent[0].event != notification.EventDeclined {
		t.Errorf("notifications = %v", f.notes.sent)
	}
}

func TestApproveRejectsNegativeRate(t *testing.T) {
	f := newFixture(t)
	s := f.book(t, mondayTen)

	_, err := f.svc.Approve(context.Background(), f.therapist, s.ID, ApproveRequest{Rate: decimal.NewFromInt(-1)})
	if !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("error = %v, want ErrInvalidRate", err)
	}
}

func TestSubmitPaymentProofObject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, repo.StatusApproved, mondayTen)

	up, err := f.svc.PresignProofUpload(ctx, f.client, s.ID, "image/png")
	if err != nil {
		t.Fatalf("PresignProofUpload() error = %v", err)
	}
	if !s3.IsProofKeyFor(s.ID, up.Key) {
		t.Fatalf("key %q not scoped to session", up.Key)
	}

	otherKey, _ := s3.ProofKey(uuid.New(), "image/png")
	tests := []struct {
		name    string
		req     PaymentRequest
		wantErr error
	}{
		{"empty", PaymentRequest{}, ErrProofRequired},
		{"foreign key", PaymentRequest{ImageKey: otherKey}, ErrProofKeyMismatch},
		{"not uploaded", PaymentRequest{ImageKey: up.Key}, ErrProofNotUploaded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitPayment(ctx, f.client, s.ID, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	f.proofs.uploaded[up.Key] = true
	got, err := f.svc.SubmitPayment(ctx, f.client, s.ID, PaymentRequest{ImageKey: up.Key})
	if err != nil {
		t.Fatalf("SubmitPayment() error = %v", err)
	}
	if got.PaymentProof.ImageKey != up.Key || got.PaymentStatus != repo.PaymentSubmitted {
		t.Errorf("proof = %+v", got.PaymentProof)
	}
}

func TestPresignProofUploadRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := f.seed(t, repo.StatusApproved, mondayTen)
	pending := f.seed(t, repo.StatusPendingApproval, mondayTen.Add(2*time.Hour))

	if _, err := f.svc.PresignProofUpload(ctx, f.therapist, approved.ID, "image/png"); !errors.Is(err, ErrNotPermitted) {
		t.Errorf("therapist presign error = %v, want ErrNotPermitted", err)
	}
	if _, err := f.svc.PresignProofUpload(ctx, f.client, pending.ID, "image/png"); !errors.Is(err, apperr.ErrInvalidStateTransition) {
		t.Errorf("pending presign error = %v, want INVALID_STATE_TRANSITION", err)
	}
	if _, err := f.svc.PresignProofUpload(ctx, f.client, approved.ID, "text/html"); !errors.Is(err, ErrUnsupportedProof) {
		t.Errorf("html presign error = %v, want ErrUnsupportedProof", err)
	}

	noStore := New(Deps{Store: f.store}, Config{Now: f.clock.Now})
	if _, err := noStore.PresignProofUpload(ctx, f.client, approved.ID, "image/png"); !errors.Is(err, ErrProofStoreDisabled) {
		t.Errorf("no store error = %v, want ErrProofStoreDisabled", err)
	}
}

func TestPresignProofDownload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.seed(t, repo.StatusApproved, mondayTen)

	if _, err := f.svc.PresignProofDownload(ctx, f.therapist, s.ID); !errors.Is(err, ErrProofMissing) {
		t.Errorf("before payment error = %v, want ErrProofMissing", err)
	}

	up, err := f.svc.PresignProofUpload(ctx, f.client, s.ID, "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	f.proofs.uploaded[up.Key] = true
	if _, err := f.svc.SubmitPayment(ctx, f.client, s.ID, PaymentRequest{ImageKey: up.Key}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		actor   authorize.Actor
		wantErr error
	}{
		{"therapist", f.therapist, nil},
		{"admin", f.admin, nil},
		{"client", f.client, ErrNotPermitted},
		{"stranger", f.stranger, ErrNotPermitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, err := f.svc.PresignProofDownload(ctx, tt.actor, s.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && url == "" {
				t.Error("empty url")
			}
		})
	}
}

func TestGetAndListScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, mondayTen)

	otherClient := authorize.Actor{ID: uuid.New(), Role: authorize.ActorClient}
	theirs, err := f.svc.RequestBooking(ctx, otherClient, BookingRequest{
		TherapistID: f.therapist.ID,
		SessionType: "individual",
		SessionDate: mondayTen.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Get(ctx, f.client, theirs.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(foreign) error = %v, want ErrSessionNotFound", err)
	}
	if _, err := f.svc.Get(ctx, f.therapist, theirs.ID); err != nil {
		t.Errorf("Get(therapist) error = %v", err)
	}
	if _, err := f.svc.Get(ctx, f.client, uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get(unknown) error = %v", err)
	}

	tests := []struct {
		name  string
		actor authorize.Actor
		req   ListRequest
		want  int
	}{
		{"client sees own", f.client, ListRequest{}, 1},
		{"client cannot widen to therapist", f.client, ListRequest{TherapistID: &f.therapist.ID}, 1},
		{"therapist calendar", f.therapist, ListRequest{TherapistID: &f.therapist.ID}, 2},
		{"admin sees all", f.admin, ListRequest{}, 2},
		{"status filter", f.admin, ListRequest{Statuses: []repo.SessionStatus{repo.StatusApproved}}, 0},
		{"paging", f.admin, ListRequest{Page: 2, PerPage: 1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.List(ctx, tt.actor, tt.req)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.want {
				t.Errorf("List() = %d sessions, want %d", len(got), tt.want)
			}
		})
	}

	if _, err := f.svc.List(ctx, f.admin, ListRequest{Statuses: []repo.SessionStatus{"archived"}}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("List(bad status) error = %v, want validation", err)
	}
}

type failingAuditStore struct {
	*memstore.Store
}

func (failingAuditStore) AppendAuditEntry(context.Context, *repo.AuditLogEntry) error {
	return errors.New("disk full")
}

func TestAuditFailureDoesNotFailTransition(t *testing.T) {
	store := memstore.New()
	chain := audit.NewChain(failingAuditStore{store}, logs.Discard())
	t.Cleanup(chain.Close)

	client := authorize.Actor{ID: uuid.New(), Role: authorize.ActorClient}
	therapist := authorize.Actor{ID: uuid.New(), Role: authorize.ActorTherapist}
	svc := New(Deps{Store: store, Audit: chain}, Config{Now: func() time.Time { return mondayTen.Add(-48 * time.Hour) }})

	s, err := svc.RequestBooking(context.Background(), client, BookingRequest{
		TherapistID: therapist.ID,
		SessionType: "individual",
		SessionDate: mondayTen,
	})
	if err != nil {
		t.Fatalf("RequestBooking() error = %v", err)
	}
	if _, err := svc.Approve(context.Background(), therapist, s.ID, ApproveRequest{Rate: decimal.NewFromInt(10)}); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	stored, _ := store.GetSession(context.Background(), s.ID)
	if stored.Status != repo.StatusApproved {
		t.Errorf("status = %s, want approved", stored.Status)
	}
}
