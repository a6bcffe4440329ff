// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package alloc provides byte-slice allocation with per-purpose accounting
// and an optional in-use budget. Every allocation must eventually be
// returned with Free; the counters make an unbalanced caller observable.
package alloc

import (
	"sync/atomic"

	"github.com/NicabarNimble/boundbuf/internal/invariants"
	"github.com/cockroachdb/errors"
)

// Purpose identifies the use-case for an allocation.
type Purpose uint8

const (
	_ Purpose = iota

	// BoundedCopy is storage owned by a single Buffer.
	BoundedCopy
	// PoolSlab is storage recycled by a BufferPool.
	PoolSlab

	NumPurposes
)

// String implements fmt.Stringer. The values are used as metric labels.
func (p Purpose) String() string {
	switch p {
	case BoundedCopy:
		return "bounded_copy"
	case PoolSlab:
		return "pool_slab"
	default:
		return "unknown"
	}
}

// Metrics contains memory statistics by purpose.
type Metrics [NumPurposes]struct {
	// InUseBytes is the total number of bytes currently allocated. This is
	// just the sum of the lengths of the allocations and does not include any
	// overhead or fragmentation.
	InUseBytes uint64

	// TotalBytes is the total cumulative number of bytes allocated since the
	// process started.
	TotalBytes uint64

	// Allocs is the cumulative number of allocations since the process
	// started.
	Allocs uint64

	// Frees is the cumulative number of frees since the process started. A
	// caller that holds no live allocations and still shows Allocs > Frees
	// has leaked.
	Frees uint64
}

var counters [NumPurposes]struct {
	TotalAllocated atomic.Uint64
	TotalFreed     atomic.Uint64
	Allocs         atomic.Uint64
	Frees          atomic.Uint64
	// Pad to separate counters into cache lines. This reduces the overhead
	// when multiple purposes are used frequently. We assume 64 byte cache
	// line size which is the case for ARM64 servers and AMD64.
	_ [4]uint64
}

// inUseBytes tracks in-use bytes across all purposes; it is what the budget
// set via SetInUseLimit is compared against. New reserves the bytes up
// front and rolls the reservation back on refusal, so the limit holds
// exactly even under concurrent callers.
var inUseBytes atomic.Int64

// inUseLimit is the in-use byte budget. Zero means unlimited.
var inUseLimit atomic.Uint64

// SetInUseLimit bounds the total number of in-use bytes across all
// purposes. New fails once the budget would be exceeded. A limit of zero
// removes the bound.
func SetInUseLimit(n uint64) {
	inUseLimit.Store(n)
}

// New allocates a zeroed slice of length n. The slice must be released with
// Free; failure to do so leaks the bytes from the accounting's point of
// view. New fails only if an in-use limit is configured and the request
// would exceed it.
func New(purpose Purpose, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.AssertionFailedf("alloc: non-positive allocation size %d", n)
	}
	reserved := inUseBytes.Add(int64(n))
	if limit := inUseLimit.Load(); limit > 0 && reserved > int64(limit) {
		inUseBytes.Add(-int64(n))
		return nil, errors.Newf(
			"alloc: in-use limit exceeded (%d bytes in use, %d requested, limit %d)",
			reserved-int64(n), n, limit)
	}
	recordAlloc(purpose, n)
	return cacheGet(n), nil
}

// Free releases a slice returned by New. The slice must be the same one
// that New returned, with its length intact. Free of a nil slice is a
// no-op.
func Free(purpose Purpose, b []byte) {
	if b == nil {
		return
	}
	invariants.MaybeMangle(b)
	recordFree(purpose, len(b))
	cachePut(b)
}

// GetMetrics returns memory usage statistics.
func GetMetrics() Metrics {
	var res Metrics
	for i := range res {
		res[i].TotalBytes = counters[i].TotalAllocated.Load()
		res[i].InUseBytes = res[i].TotalBytes - counters[i].TotalFreed.Load()
		res[i].Allocs = counters[i].Allocs.Load()
		res[i].Frees = counters[i].Frees.Load()
	}
	return res
}

// recordAlloc does not touch inUseBytes; New already reserved the bytes.
func recordAlloc(purpose Purpose, n int) {
	counters[purpose].TotalAllocated.Add(uint64(n))
	counters[purpose].Allocs.Add(1)
}

func recordFree(purpose Purpose, n int) {
	counters[purpose].TotalFreed.Add(uint64(n))
	counters[purpose].Frees.Add(1)
	inUseBytes.Add(-int64(n))
}
