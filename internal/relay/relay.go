// Package relay is the update-dispatch core: it turns a decoded Ecowitt
// update into paced accessory updates, skipping fields whose value has not
// changed since they were last forwarded.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/bmrzycki/gw1000-homebridge-http-webhooks/internal/logging"
)

// Updater pushes a single accessory value downstream.
type Updater interface {
	Update(ctx context.Context, accessoryID, value string) error
}

// Relay owns the policy, cache and downstream port for one running instance.
type Relay struct {
	policy  *Policy
	cache   *Cache
	updater Updater
	delay   time.Duration
	log     *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithDelay sets the pause taken after every successful downstream update.
func WithDelay(d time.Duration) Option {
	return func(r *Relay) { r.delay = d }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) { r.log = l }
}

func New(policy *Policy, cache *Cache, updater Updater, opts ...Option) *Relay {
	r := &Relay{
		policy:  policy,
		cache:   cache,
		updater: updater,
		log:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stats counts what happened to the fields of one batch.
type Stats struct {
	Ignored    int
	Unmapped   int
	Suppressed int
	Forwarded  int
	Failed     int
}

type outcome int

const (
	outcomeIgnored outcome = iota
	outcomeUnmapped
	outcomeSuppressed
	outcomeForwarded
	outcomeFailed
)

func (s *Stats) add(o outcome) {
	switch o {
	case outcomeIgnored:
		s.Ignored++
	case outcomeUnmapped:
		s.Unmapped++
	case outcomeSuppressed:
		s.Suppressed++
	case outcomeForwarded:
		s.Forwarded++
	case outcomeFailed:
		s.Failed++
	}
}

// Dispatch forwards the fields of batch one at a time, in arrival order.
// Failures are logged and never stop the remaining fields; cancelling ctx
// abandons whatever has not been processed yet.
func (r *Relay) Dispatch(ctx context.Context, batch *Batch) Stats {
	var stats Stats
	keys := batch.Keys()
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			r.log.Warn("dispatch abandoned", "remaining", len(keys)-i, "error", err)
			break
		}
		value, _ := batch.Get(key)
		stats.add(r.forward(ctx, key, value))
	}
	r.log.Debug("dispatch done",
		"forwarded", stats.Forwarded,
		"suppressed", stats.Suppressed,
		"failed", stats.Failed,
		"unmapped", stats.Unmapped,
		"ignored", stats.Ignored,
	)
	return stats
}

func (r *Relay) forward(ctx context.Context, key, value string) outcome {
	class, name := r.policy.Classify(key)
	switch class {
	case Ignored:
		return outcomeIgnored
	case Unmapped:
		r.log.Warn("unused Ecowitt key", "key", key, "value", value)
		return outcomeUnmapped
	}

	if cached, ok := r.cache.Consume(key); ok && cached == value {
		return outcomeSuppressed
	}

	out, err := Transform(key, value)
	if err != nil {
		r.log.Error("cannot convert value", "key", key, "value", value, "error", err)
		return outcomeFailed
	}

	r.log.Info("updating accessory", "accessory", name, "value", out)
	if err := r.updater.Update(ctx, name, out); err != nil {
		r.log.Error("accessory update failed", "accessory", name, "value", out, "error", err)
		return outcomeFailed
	}
	r.log.Info("updated accessory", "accessory", name, "value", out)

	r.pause(ctx)
	r.cache.Store(key, value)
	return outcomeForwarded
}

// Block the current dispatch for the configured delay or until ctx is done
func (r *Relay) pause(ctx context.Context) {
	if r.delay <= 0 {
		return
	}
	r.log.Debug("post update: sleeping", "delay", r.delay)

	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
