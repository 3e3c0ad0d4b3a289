package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/simorq_booking/internal/repo"
	"github.com/Alijeyrad/simorq_booking/pkg/observability"
	"github.com/Alijeyrad/simorq_booking/pkg/reqctx"
)

const (
	defaultQueueSize = 256
	maxTailRetries   = 3
	verifyBatchSize  = 500
)

// Recorder is what the booking services depend on to audit their mutations.
type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Option configures a Chain.
type Option func(*Chain)

func WithClock(now func() time.Time) Option {
	return func(c *Chain) { c.now = now }
}

func WithQueueSize(n int) Option {
	return func(c *Chain) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

func WithMetrics(m *observability.BookingMetrics) Option {
	return func(c *Chain) { c.metrics = m }
}

type appendRequest struct {
	ctx    context.Context
	entry  *repo.AuditLogEntry
	result chan appendResult
}

type appendResult struct {
	entry *repo.AuditLogEntry
	err   error
}

// Chain is the append-only audit log. A single writer goroutine owns the
// tail hash and processes appends one at a time.
type Chain struct {
	store     repo.AuditStore
	logger    *slog.Logger
	metrics   *observability.BookingMetrics
	now       func() time.Time
	queueSize int

	reqs chan appendRequest
	quit chan struct{}
	done chan struct{}
	once sync.Once

	// mu orders sends on reqs before Close; closed is guarded by it.
	mu     sync.RWMutex
	closed bool

	// owned by the writer goroutine
	tail       *string
	tailLoaded bool
}

var _ Recorder = (*Chain)(nil)

// NewChain starts the writer goroutine. Call Close to stop it.
func NewChain(store repo.AuditStore, logger *slog.Logger, opts ...Option) *Chain {
	c := &Chain{
		store:     store,
		logger:    logger,
		now:       time.Now,
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.reqs = make(chan appendRequest, c.queueSize)
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	go c.run()
	return c
}

// Close stops the writer after the request it is currently processing.
// Queued requests that were not picked up fail with ErrChainClosed.
func (c *Chain) Close() {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.quit)
		<-c.done
	})
}

func (c *Chain) run() {
	defer close(c.done)
	for {
		select {
		case <-c.quit:
			c.drain()
			return
		case req := <-c.reqs:
			entry, err := c.write(req.ctx, req.entry)
			req.result <- appendResult{entry: entry, err: err}
		}
	}
}

func (c *Chain) drain() {
	for {
		select {
		case req := <-c.reqs:
			req.result <- appendResult{err: ErrChainClosed}
		default:
			return
		}
	}
}

// Append links e to the current tail, stores it and returns the stored entry.
// The caller's fields are copied; ID and Timestamp are filled when empty.
func (c *Chain) Append(ctx context.Context, e *repo.AuditLogEntry) (*repo.AuditLogEntry, error) {
	if e == nil || e.ActionType == "" || e.TargetType == "" {
		return nil, ErrInvalidEntry
	}

	req := appendRequest{
		ctx:    ctx,
		entry:  e.Clone(),
		result: make(chan appendResult, 1),
	}

	if err := c.enqueue(ctx, req); err != nil {
		return nil, err
	}

	select {
	case res := <-req.result:
		return res.entry, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// enqueue hands req to the writer. Every request it accepts is answered,
// either by a write or by the drain in run.
func (c *Chain) enqueue(ctx context.Context, req appendRequest) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrChainClosed
	}
	select {
	case c.reqs <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Record builds an entry from ev and appends it. Failures are logged and
// counted but never returned: the business operation has already happened.
func (c *Chain) Record(ctx context.Context, ev Event) {
	e, err := c.entryFor(ctx, ev)
	if err == nil {
		_, err = c.Append(context.WithoutCancel(ctx), e)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "audit append failed",
			"action", ev.Action,
			"target_type", ev.TargetType,
			"target_id", ev.TargetID,
			"actor", ev.Actor.String(),
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.AuditAppendFailed(ctx)
		}
	}
}

func (c *Chain) entryFor(ctx context.Context, ev Event) (*repo.AuditLogEntry, error) {
	prev, err := marshalValue(ev.Previous)
	if err != nil {
		return nil, fmt.Errorf("marshal previous value: %w", err)
	}
	next, err := marshalValue(ev.New)
	if err != nil {
		return nil, fmt.Errorf("marshal new value: %w", err)
	}

	ip, ua := reqctx.ClientFromContext(ctx)
	return &repo.AuditLogEntry{
		ActionType:    ev.Action,
		ActorID:       ev.Actor.ID,
		ActorRole:     string(ev.Actor.Role),
		TargetType:    ev.TargetType,
		TargetID:      ev.TargetID,
		PreviousValue: prev,
		NewValue:      next,
		IPAddress:     ip,
		UserAgent:     ua,
	}, nil
}

func marshalValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// write runs on the writer goroutine only.
func (c *Chain) write(ctx context.Context, e *repo.AuditLogEntry) (*repo.AuditLogEntry, error) {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("audit entry id: %w", err)
		}
		e.ID = id
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = c.now()
	}
	e.Timestamp = normalizeTimestamp(e.Timestamp)

	for attempt := 0; ; attempt++ {
		if !c.tailLoaded {
			if err := c.loadTail(ctx); err != nil {
				return nil, err
			}
		}

		e.PreviousHash = c.tail
		hash, err := Hash(e, e.PrevHash())
		if err != nil {
			return nil, ErrInvalidEntry.Wrapf(err)
		}
		e.LogHash = hash

		err = c.store.AppendAuditEntry(ctx, e)
		if err == nil {
			h := e.LogHash
			c.tail = &h
			return e.Clone(), nil
		}

		// another process appended meanwhile; relink to the fresh tail
		c.tailLoaded = false
		if !errors.Is(err, repo.ErrTailMoved) || attempt+1 >= maxTailRetries {
			return nil, fmt.Errorf("append audit entry: %w", err)
		}
	}
}

func (c *Chain) loadTail(ctx context.Context) error {
	last, err := c.store.LastAuditEntry(ctx)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		c.tail = nil
	case err != nil:
		return fmt.Errorf("load audit tail: %w", err)
	default:
		h := last.LogHash
		c.tail = &h
	}
	c.tailLoaded = true
	return nil
}

// List returns stored entries in chain order.
func (c *Chain) List(ctx context.Context, f repo.AuditFilter) ([]*repo.AuditLogEntry, error) {
	entries, err := c.store.ListAuditEntries(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// VerifyStored loads the whole persisted chain and verifies it from the
// genesis entry. A broken chain yields the report and an ErrChainBroken.
func (c *Chain) VerifyStored(ctx context.Context) (*Report, error) {
	var all []*repo.AuditLogEntry
	var after int64
	for {
		batch, err := c.store.ListAuditEntries(ctx, repo.AuditFilter{AfterSequence: after, Limit: verifyBatchSize})
		if err != nil {
			return nil, fmt.Errorf("load audit chain: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < verifyBatchSize {
			break
		}
		after = batch[len(batch)-1].Sequence
	}

	report := verify(all, true)
	if !report.Valid {
		return report, ErrChainBroken.
			With("first_break_index", *report.FirstBreakIndex).
			With("entry_id", report.Entries[*report.FirstBreakIndex].EntryID.String())
	}
	return report, nil
}
