// Package dispatcher turns a due reminder into an outbound message and
// commits the sent-state transition.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmhodges/clock"
	"golang.org/x/time/rate"

	"zuppa/internal/metrics"
	"zuppa/internal/store"
	"zuppa/internal/transport"
	"zuppa/pkg/logx"
)

var (
	// ErrChannelUnavailable means the target channel could not be resolved.
	// The reminder stays Pending and is retried next tick.
	ErrChannelUnavailable = errors.New("channel unavailable")

	// ErrTransport wraps a failed send. The reminder stays Pending.
	ErrTransport = errors.New("transport error")
)

type Config struct {
	// ChannelID is the destination channel reminders are posted to; the
	// reminder's target is mentioned inside the message.
	ChannelID   string
	SendTimeout time.Duration // per-delivery bound; 0 means 10s
	RatePerSec  int           // token bucket on sends; 0 means 3
}

type Dispatcher struct {
	cfg      Config
	resolver transport.Resolver
	store    store.Store
	clk      clock.Clock
	log      logx.Logger
	met      *metrics.Metrics
	limiter  *rate.Limiter
}

func New(cfg Config, resolver transport.Resolver, st store.Store, clk clock.Clock, log logx.Logger, met *metrics.Metrics) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Dispatcher{
		cfg:      cfg,
		resolver: resolver,
		store:    st,
		clk:      clk,
		log:      log,
		met:      met,
		// Burst equals the per-second rate so a due backlog drains in
		// short spikes without tripping platform flood limits.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Deliver sends one due reminder and marks it Sent on success.
//
// Failure semantics: resolution and transport failures leave the reminder
// Pending for the next tick. A MarkSent failure after a successful send is
// the accepted duplicate-delivery window; it is logged loudly but not
// returned as a delivery failure.
func (d *Dispatcher) Deliver(ctx context.Context, r store.Reminder) error {
	log := d.log.With(logx.Int64("id", r.ID), logx.String("target", r.Target))

	ch := d.resolver.ResolveChannel(d.cfg.ChannelID)
	if ch == nil {
		d.met.DeliveryFailed(metrics.ReasonChannelUnavailable)
		return fmt.Errorf("%w: channel %q", ErrChannelUnavailable, d.cfg.ChannelID)
	}

	msg := Render(r, d.clk.Now().UTC())

	if err := d.limiter.Wait(ctx); err != nil {
		d.met.DeliveryFailed(metrics.ReasonTransport)
		return fmt.Errorf("%w: rate limit wait: %v", ErrTransport, err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	err := ch.Send(sendCtx, mention(r.Target), msg)
	cancel()
	if err != nil {
		d.met.DeliveryFailed(metrics.ReasonTransport)
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if err := d.store.MarkSent(ctx, r.ID); err != nil {
		// The message is out but the store still says Pending; the next
		// tick may deliver a duplicate. Rare and accepted.
		d.met.DeliveryFailed(metrics.ReasonMarkSent)
		log.Error("delivered but failed to commit sent state, duplicate possible", logx.Err(err))
		return nil
	}

	d.met.ReminderDelivered()
	log.Info("reminder delivered")
	return nil
}

// mention renders the recipient handle the way the destination platform
// expects to see it in message text.
func mention(target string) string {
	if target == "" || target[0] == '@' {
		return target
	}
	return "@" + target
}
