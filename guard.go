// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package boundbuf

import (
	"context"
	"time"

	"github.com/NicabarNimble/boundbuf/internal/base"
	"github.com/cockroachdb/crlib/crtime"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrLockAcquisition marks failures to acquire a Guard's lock. The guarded
// action does not run when acquisition fails; the cause (typically a
// context error) is preserved in the error chain.
var ErrLockAcquisition = errors.New("boundbuf: lock acquisition failed")

// GuardOptions configure a Guard. The zero value is usable.
type GuardOptions struct {
	// Logger reports acquisitions that waited longer than
	// SlowAcquisitionThreshold. Defaults to base.DefaultLogger.
	Logger base.Logger

	// SlowAcquisitionThreshold is the wait duration past which an
	// acquisition is logged. Zero disables the logging.
	SlowAcquisitionThreshold time.Duration

	// HoldLatency, if set, observes how long the lock was held on each
	// successful Run, in seconds.
	HoldLatency prometheus.Histogram
}

// EnsureDefaults ensures that the options are sane, filling in defaults
// where necessary.
func (o *GuardOptions) EnsureDefaults() {
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
}

// A Guard serializes access to a critical section. Acquisition is checked:
// it can fail (via context cancellation) and the failure is surfaced rather
// than ignored. Release is scoped: it happens exactly once on every exit
// path from Run, including an error or panic in the guarded action.
type Guard struct {
	// sem is a 1-slot semaphore; holding the slot is holding the lock. A
	// channel is used instead of sync.Mutex so acquisition can select
	// against a context.
	sem  chan struct{}
	opts GuardOptions
}

// NewGuard returns a Guard ready for use.
func NewGuard(opts GuardOptions) *Guard {
	opts.EnsureDefaults()
	return &Guard{
		sem:  make(chan struct{}, 1),
		opts: opts,
	}
}

// Run acquires the lock, invokes fn exactly once, and releases the lock. If
// the lock cannot be acquired before ctx is done, fn does not run and the
// returned error is marked ErrLockAcquisition. An error returned by fn is
// propagated after the lock is released.
func (g *Guard) Run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "boundbuf: acquiring lock"), ErrLockAcquisition)
	}
	select {
	case g.sem <- struct{}{}:
		// Uncontended fast path.
	default:
		waitStart := crtime.NowMono()
		select {
		case g.sem <- struct{}{}:
		case <-ctx.Done():
			return errors.Mark(errors.Wrap(ctx.Err(), "boundbuf: acquiring lock"), ErrLockAcquisition)
		}
		if d := waitStart.Elapsed(); g.opts.SlowAcquisitionThreshold > 0 && d >= g.opts.SlowAcquisitionThreshold {
			g.opts.Logger.Infof("boundbuf: lock acquisition waited %s", d)
		}
	}
	holdStart := crtime.NowMono()
	defer func() {
		if h := g.opts.HoldLatency; h != nil {
			h.Observe(holdStart.Elapsed().Seconds())
		}
		<-g.sem
	}()
	return fn()
}

// TryRun invokes fn only if the lock is immediately available. It reports
// whether fn ran.
func (g *Guard) TryRun(fn func() error) (bool, error) {
	select {
	case g.sem <- struct{}{}:
	default:
		return false, nil
	}
	holdStart := crtime.NowMono()
	defer func() {
		if h := g.opts.HoldLatency; h != nil {
			h.Observe(holdStart.Elapsed().Seconds())
		}
		<-g.sem
	}()
	return true, fn()
}
