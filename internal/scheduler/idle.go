package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/deskflow-rpa/deskflow/internal/platform/clock"
)

// IdleSource reports how long the host has been without keyboard/mouse
// input. Platform adapters (sim or OS-specific) implement this; unlike
// InputSource it need not report full events, only elapsed idle time.
type IdleSource interface {
	IdleDuration() time.Duration
}

// idleWatch is one schedule's Idle trigger registration.
type idleWatch struct {
	scheduleID uuid.UUID
	threshold  time.Duration
	firedSince bool // true once fired for the current idle streak, reset on activity
}

// IdleObserver polls an IdleSource at a fixed interval and notifies the
// scheduler the first time each registered schedule's idle threshold is
// crossed, resetting once the host becomes active again.
type IdleObserver struct {
	scheduler *Scheduler
	source    IdleSource
	clock     clock.Clock
	pollEvery time.Duration

	watches map[uuid.UUID]*idleWatch
	lastIdleDuration time.Duration
}

// NewIdleObserver builds an observer polling source every pollEvery.
func NewIdleObserver(sched *Scheduler, source IdleSource, clk clock.Clock, pollEvery time.Duration) *IdleObserver {
	if pollEvery <= 0 {
		pollEvery = time.Second
	}
	return &IdleObserver{
		scheduler: sched, source: source, clock: clk, pollEvery: pollEvery,
		watches: make(map[uuid.UUID]*idleWatch),
	}
}

// Watch registers scheduleID to fire once the host has been idle for
// threshold continuously.
func (o *IdleObserver) Watch(scheduleID uuid.UUID, threshold time.Duration) {
	o.watches[scheduleID] = &idleWatch{scheduleID: scheduleID, threshold: threshold}
}

func (o *IdleObserver) Unwatch(scheduleID uuid.UUID) {
	delete(o.watches, scheduleID)
}

// Run polls until ctx is cancelled.
func (o *IdleObserver) Run(ctx context.Context) {
	ticker := time.NewTicker(o.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll()
		}
	}
}

func (o *IdleObserver) poll() {
	idle := o.source.IdleDuration()
	active := idle < o.lastIdleDuration
	o.lastIdleDuration = idle

	for _, w := range o.watches {
		if active {
			w.firedSince = false
			continue
		}
		if !w.firedSince && idle >= w.threshold {
			w.firedSince = true
			o.scheduler.Notify(w.scheduleID)
		}
	}
}
