// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package boundbuf

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NicabarNimble/boundbuf/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestGuardRunsActionOnce(t *testing.T) {
	g := NewGuard(GuardOptions{})
	var calls int
	require.NoError(t, g.Run(context.Background(), func() error {
		calls++
		return nil
	}))
	require.Equal(t, 1, calls)
}

func TestGuardReleasesOnActionError(t *testing.T) {
	g := NewGuard(GuardOptions{})
	errBoom := errors.New("boom")
	err := g.Run(context.Background(), func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)

	// The lock must have been released despite the action failing.
	ran, err := g.TryRun(func() error { return nil })
	require.NoError(t, err)
	require.True(t, ran)
}

func TestGuardReleasesOnPanic(t *testing.T) {
	g := NewGuard(GuardOptions{})
	require.Panics(t, func() {
		_ = g.Run(context.Background(), func() error { panic("boom") })
	})
	ran, err := g.TryRun(func() error { return nil })
	require.NoError(t, err)
	require.True(t, ran)
}

func TestGuardCancelledContext(t *testing.T) {
	g := NewGuard(GuardOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran bool
	err := g.Run(ctx, func() error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockAcquisition)
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ran)
}

func TestGuardContendedAcquisitionFailure(t *testing.T) {
	g := NewGuard(GuardOptions{})
	acquired := make(chan struct{})
	release := make(chan struct{})

	var eg errgroup.Group
	eg.Go(func() error {
		return g.Run(context.Background(), func() error {
			close(acquired)
			<-release
			return nil
		})
	})
	<-acquired

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	var ran bool
	err := g.Run(ctx, func() error {
		ran = true
		return nil
	})
	require.ErrorIs(t, err, ErrLockAcquisition)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, ran)

	close(release)
	require.NoError(t, eg.Wait())
}

func TestGuardMutualExclusion(t *testing.T) {
	g := NewGuard(GuardOptions{Logger: base.NoopLogger{}})
	var inside atomic.Int32
	var total int

	var eg errgroup.Group
	for i := 0; i < 8; i++ {
		eg.Go(func() error {
			for j := 0; j < 100; j++ {
				if err := g.Run(context.Background(), func() error {
					if n := inside.Add(1); n != 1 {
						return errors.Newf("%d concurrent holders of the critical section", n)
					}
					total++
					inside.Add(-1)
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	require.Equal(t, 800, total)
}

func TestGuardTryRunContended(t *testing.T) {
	g := NewGuard(GuardOptions{})
	acquired := make(chan struct{})
	release := make(chan struct{})

	var eg errgroup.Group
	eg.Go(func() error {
		return g.Run(context.Background(), func() error {
			close(acquired)
			<-release
			return nil
		})
	})
	<-acquired

	ran, err := g.TryRun(func() error { return nil })
	require.NoError(t, err)
	require.False(t, ran)

	close(release)
	require.NoError(t, eg.Wait())
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Fatalf(format string, args ...interface{}) {
	panic(fmt.Sprintf(format, args...))
}

func TestGuardSlowAcquisitionLogged(t *testing.T) {
	logger := &recordingLogger{}
	g := NewGuard(GuardOptions{
		Logger:                   logger,
		SlowAcquisitionThreshold: time.Nanosecond,
	})
	acquired := make(chan struct{})
	release := make(chan struct{})

	var eg errgroup.Group
	eg.Go(func() error {
		return g.Run(context.Background(), func() error {
			close(acquired)
			<-release
			return nil
		})
	})
	<-acquired
	go func() {
		time.Sleep(5 * time.Millisecond)
		close(release)
	}()

	require.NoError(t, g.Run(context.Background(), func() error { return nil }))
	require.NoError(t, eg.Wait())

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.NotEmpty(t, logger.lines)
	require.Contains(t, logger.lines[0], "lock acquisition waited")
}

func TestGuardHoldLatency(t *testing.T) {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "boundbuf_guard_hold_latency_seconds",
	})
	g := NewGuard(GuardOptions{HoldLatency: h})

	require.NoError(t, g.Run(context.Background(), func() error { return nil }))
	ran, err := g.TryRun(func() error { return nil })
	require.NoError(t, err)
	require.True(t, ran)

	var m dto.Metric
	require.NoError(t, h.Write(&m))
	require.Equal(t, uint64(2), m.Histogram.GetSampleCount())
}
