// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package boundbuf

import (
	"github.com/NicabarNimble/boundbuf/internal/alloc"
	"github.com/NicabarNimble/boundbuf/internal/invariants"
	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// DefaultCapacity is a reasonable capacity for callers that have no sizing
// requirement of their own.
const DefaultCapacity = 100

// ErrInputTooLarge is returned when an input is longer than the requested
// capacity. No allocation is performed in that case.
var ErrInputTooLarge = errors.New("boundbuf: input exceeds capacity")

// ErrAllocationFailed marks errors from the allocator refusing a request
// (see SetInUseLimit). The cause is preserved in the error chain; use
// errors.Is to test for it.
var ErrAllocationFailed = errors.New("boundbuf: allocation failed")

// A Buffer is a heap buffer of fixed capacity with exactly one owner. The
// first Len() bytes hold the copied input; the remainder of the capacity is
// zeroed. The owner must call Release exactly once when done; there is no
// finalizer-based cleanup.
type Buffer struct {
	data   []byte
	n      int
	closed invariants.CloseChecker
}

// CopyBounded copies input into a new Buffer of exactly capacity bytes.
//
// The input's length is validated before anything is allocated: if
// len(input) > capacity the call fails with ErrInputTooLarge and has no
// effect. Equal-to-capacity inputs are allowed. The returned Buffer is
// owned by the caller, who must Release it.
//
// A non-positive capacity is a caller bug and fails with an assertion
// error.
func CopyBounded(input []byte, capacity int) (*Buffer, error) {
	data, err := allocBounded(len(input), capacity)
	if err != nil {
		return nil, err
	}
	copy(data, input)
	return &Buffer{data: data, n: len(input)}, nil
}

// CopyBoundedString is CopyBounded for string inputs, avoiding an
// intermediate []byte conversion.
func CopyBoundedString(input string, capacity int) (*Buffer, error) {
	data, err := allocBounded(len(input), capacity)
	if err != nil {
		return nil, err
	}
	copy(data, input)
	return &Buffer{data: data, n: len(input)}, nil
}

// allocBounded validates the bounded-copy preconditions and allocates the
// backing storage. The length check precedes the allocation: an oversized
// input must not cause any allocator traffic.
func allocBounded(inputLen, capacity int) ([]byte, error) {
	if capacity <= 0 {
		return nil, errors.AssertionFailedf("boundbuf: capacity %d is not positive", capacity)
	}
	if inputLen > capacity {
		return nil, errors.Wrapf(ErrInputTooLarge, "input length %d, capacity %d", inputLen, capacity)
	}
	data, err := alloc.New(alloc.BoundedCopy, capacity)
	if err != nil {
		return nil, errors.Mark(err, ErrAllocationFailed)
	}
	return data, nil
}

// Len returns the number of input bytes held by the buffer.
func (b *Buffer) Len() int {
	return b.n
}

// Cap returns the buffer's capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Bytes returns the copied input, b.Raw()[:b.Len()]. The slice is backed by
// the buffer's storage: it is invalid after Release, and mutations are
// visible through Raw.
func (b *Buffer) Bytes() []byte {
	b.closed.AssertNotClosed()
	return b.data[:b.n]
}

// Raw returns the buffer's full capacity. Bytes past Len() are zero unless
// the owner wrote to them.
func (b *Buffer) Raw() []byte {
	b.closed.AssertNotClosed()
	return b.data
}

// Sum64 returns the xxhash digest of Bytes.
func (b *Buffer) Sum64() uint64 {
	return xxhash.Sum64(b.Bytes())
}

// Release returns the buffer's storage to the allocator. The buffer and any
// slices obtained from it must not be used afterwards. Release on a nil
// Buffer is a no-op. Releasing the same buffer twice is a no-op in
// production builds and panics in invariant builds.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	// The close check precedes the nil-data shortcut so that a second
	// Release is detectable in invariant builds.
	b.closed.Close()
	if b.data == nil {
		return
	}
	alloc.Free(alloc.BoundedCopy, b.data)
	b.data = nil
	b.n = 0
}

// SetInUseLimit bounds the total bytes of live buffer storage across the
// process, including pool slabs. Once the budget would be exceeded,
// CopyBounded and pool allocations fail with an error marked
// ErrAllocationFailed. A limit of zero (the default) removes the bound.
func SetInUseLimit(n uint64) {
	alloc.SetInUseLimit(n)
}
