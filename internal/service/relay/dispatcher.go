package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"partsmarket/config"
	"partsmarket/internal/domain/outbox"
)

// Handler delivers one message. Returning an error schedules a retry unless
// the error is wrapped with Permanent.
type Handler func(ctx context.Context, payload json.RawMessage) error

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; the message goes straight to dead.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

type Options struct {
	Interval    time.Duration
	Batch       int
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	RatePerSec  float64
	Lease       time.Duration
}

func OptionsFrom(cfg *config.Config) Options {
	return Options{
		Interval:    cfg.OutboxInterval,
		Batch:       cfg.OutboxBatch,
		MaxAttempts: cfg.OutboxMaxAttempts,
		BaseBackoff: cfg.OutboxBaseBackoff,
		MaxBackoff:  cfg.OutboxMaxBackoff,
		RatePerSec:  cfg.OutboxRatePerSec,
	}
}

type Dispatcher struct {
	db       *gorm.DB
	log      *slog.Logger
	opts     Options
	handlers map[string]Handler
	limiter  *rate.Limiter
	now      func() time.Time
}

func NewDispatcher(db *gorm.DB, log *slog.Logger, opts Options) *Dispatcher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 20
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 8
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff < opts.BaseBackoff {
		opts.MaxBackoff = opts.BaseBackoff
	}
	if opts.Lease <= 0 {
		opts.Lease = 2 * time.Minute
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}

	return &Dispatcher{
		db:       db,
		log:      log,
		opts:     opts,
		handlers: map[string]Handler{},
		limiter:  rate.NewLimiter(limit, 1),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Handle(kind string, h Handler) {
	d.handlers[kind] = h
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("outbox dispatcher started", "interval", d.opts.Interval.String(), "batch", d.opts.Batch)
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.Error("outbox pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			d.log.Info("outbox dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce claims and dispatches up to one batch of due messages and returns
// how many were attempted.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	msgs, err := d.claim(ctx)
	if err != nil {
		return 0, err
	}

	for _, msg := range msgs {
		if err := d.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		d.deliver(ctx, msg)
	}
	return len(msgs), nil
}

func (d *Dispatcher) claim(ctx context.Context) ([]outbox.Message, error) {
	now := d.now()
	db := d.db.WithContext(ctx)

	var due []outbox.Message
	err := db.
		Where("status = ? AND next_attempt_at <= ?", outbox.StatusPending, now).
		Where("(locked_until IS NULL OR locked_until < ?)", now).
		Order("next_attempt_at ASC").
		Limit(d.opts.Batch).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("load due messages: %w", err)
	}

	leaseUntil := now.Add(d.opts.Lease)
	claimed := make([]outbox.Message, 0, len(due))
	for _, msg := range due {
		res := db.Model(&outbox.Message{}).
			Where("id = ? AND status = ?", msg.ID, outbox.StatusPending).
			Where("(locked_until IS NULL OR locked_until < ?)", now).
			Update("locked_until", leaseUntil)
		if res.Error != nil {
			return claimed, fmt.Errorf("lease message %s: %w", msg.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			msg.LockedUntil = &leaseUntil
			claimed = append(claimed, msg)
		}
	}
	return claimed, nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg outbox.Message) {
	err := d.dispatch(ctx, msg)
	now := d.now()
	// Bookkeeping must land even when ctx was cancelled mid-delivery.
	db := d.db.WithContext(context.WithoutCancel(ctx)).Model(&outbox.Message{}).Where("id = ?", msg.ID)

	if err == nil {
		if uerr := db.Updates(map[string]any{
			"status":       outbox.StatusSent,
			"sent_at":      now,
			"locked_until": nil,
			"last_error":   "",
		}).Error; uerr != nil {
			d.log.Error("outbox mark sent failed", "id", msg.ID, "error", uerr)
		}
		d.log.Info("outbox message sent", "id", msg.ID, "kind", msg.Kind, "attempt", msg.Attempts+1)
		return
	}

	attempts := msg.Attempts + 1
	updates := map[string]any{
		"attempts":     attempts,
		"last_error":   err.Error(),
		"locked_until": nil,
	}

	var perm permanentError
	if attempts >= d.opts.MaxAttempts || errors.As(err, &perm) {
		updates["status"] = outbox.StatusDead
		d.log.Error("outbox message dead", "id", msg.ID, "kind", msg.Kind, "attempts", attempts, "error", err)
	} else {
		wait := outbox.Backoff(attempts, d.opts.BaseBackoff, d.opts.MaxBackoff)
		updates["next_attempt_at"] = now.Add(wait)
		d.log.Warn("outbox message failed, will retry", "id", msg.ID, "kind", msg.Kind, "attempts", attempts, "retry_in", wait.String(), "error", err)
	}

	if uerr := db.Updates(updates).Error; uerr != nil {
		d.log.Error("outbox mark retry failed", "id", msg.ID, "error", uerr)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, msg outbox.Message) (err error) {
	h, ok := d.handlers[msg.Kind]
	if !ok {
		return Permanent(fmt.Errorf("no handler for kind %q", msg.Kind))
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, json.RawMessage(msg.Payload))
}
