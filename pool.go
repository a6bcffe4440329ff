// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package boundbuf

import (
	"github.com/NicabarNimble/boundbuf/internal/alloc"
	"github.com/NicabarNimble/boundbuf/internal/invariants"
	"github.com/cockroachdb/errors"
)

// A BufferPool holds a pool of buffers for short-lived bounded copies. An
// initial size of the pool is provided on Init, but a BufferPool will grow
// to meet the largest working set size. It'll never shrink. When a buffer
// is released, the BufferPool recycles its slab for future allocations.
//
// A BufferPool should only be used for short-lived allocations with
// well-understood working set sizes to avoid excessive memory consumption.
//
// BufferPool is not thread-safe.
type BufferPool struct {
	// pool contains all the slabs held by the pool, including slabs that are
	// in-use. For every i < len(pool): pool[i].slab is non-nil.
	pool []pooledBuffer
}

// pooledBuffer is an allocated slab and its in-use state.
type pooledBuffer struct {
	slab []byte
	// b holds the in-use view of the slab. It's a prefix of slab
	// [ len(b) <= len(slab) ]. If the slab is not currently in-use, b is nil;
	// BufferPool.Alloc resets it when recycling the slab.
	b []byte
	// n is the number of meaningful bytes in b, i.e. the copied input length
	// for CopyBounded or the requested size for Alloc.
	n int
}

// Init initializes the pool with an initial working set of `initialSize`
// buffers.
func (p *BufferPool) Init(initialSize int) {
	*p = BufferPool{
		pool: make([]pooledBuffer, 0, initialSize),
	}
}

// Close releases all slabs held by the pool and resets the pool to an
// uninitialized state. It panics if any buffer is still in use.
func (p *BufferPool) Close() {
	for i := range p.pool {
		if p.pool[i].b != nil {
			panic(errors.AssertionFailedf("Close called on a BufferPool with in-use buffers"))
		}
		alloc.Free(alloc.PoolSlab, p.pool[i].slab)
		p.pool[i].slab = nil
	}
	p.pool = p.pool[:0]
}

// Alloc allocates a zeroed buffer of size n. If the pool already holds a
// free slab at least as large as n, the slab is reused instead.
//
// Alloc is O(MAX(N,M)) where N is the largest number of concurrently in-use
// buffers and M is the initialSize passed to Init.
func (p *BufferPool) Alloc(n int) (Buf, error) {
	if n <= 0 {
		return Buf{}, errors.AssertionFailedf("boundbuf: pool allocation size %d is not positive", n)
	}
	unusableSlabIdx := -1
	for i := 0; i < len(p.pool); i++ {
		if p.pool[i].b == nil {
			if len(p.pool[i].slab) >= n {
				p.pool[i].b = p.pool[i].slab[:n]
				// Recycled slabs hold stale or mangled bytes.
				clear(p.pool[i].b)
				p.pool[i].n = n
				return Buf{p: p, i: i}, nil
			}
			unusableSlabIdx = i
		}
	}

	// If we would need to grow the pool to allocate another buffer, but there
	// was a slot available occupied by a slab that's just too small, replace
	// the too-small slab.
	if len(p.pool) == cap(p.pool) && unusableSlabIdx >= 0 {
		i := unusableSlabIdx
		slab, err := alloc.New(alloc.PoolSlab, n)
		if err != nil {
			return Buf{}, errors.Mark(err, ErrAllocationFailed)
		}
		alloc.Free(alloc.PoolSlab, p.pool[i].slab)
		p.pool[i] = pooledBuffer{slab: slab, b: slab[:n], n: n}
		return Buf{p: p, i: i}, nil
	}

	// Allocate a new slab.
	slab, err := alloc.New(alloc.PoolSlab, n)
	if err != nil {
		return Buf{}, errors.Mark(err, ErrAllocationFailed)
	}
	p.pool = append(p.pool, pooledBuffer{slab: slab, b: slab[:n], n: n})
	return Buf{p: p, i: len(p.pool) - 1}, nil
}

// CopyBounded is the pooled variant of the package-level CopyBounded: the
// same length-before-allocation validation and zeroed-tail contract, with
// storage drawn from (and returned to) the pool instead of transferring
// ownership of a standalone Buffer.
func (p *BufferPool) CopyBounded(input []byte, capacity int) (Buf, error) {
	if capacity <= 0 {
		return Buf{}, errors.AssertionFailedf("boundbuf: capacity %d is not positive", capacity)
	}
	if len(input) > capacity {
		return Buf{}, errors.Wrapf(ErrInputTooLarge, "input length %d, capacity %d", len(input), capacity)
	}
	b, err := p.Alloc(capacity)
	if err != nil {
		return Buf{}, err
	}
	copy(p.pool[b.i].b, input)
	p.pool[b.i].n = len(input)
	return b, nil
}

// A Buf holds a reference to a pooled buffer.
type Buf struct {
	p *BufferPool
	// i holds the index into p.pool where the buffer may be found. This
	// scheme avoids needing to allocate the handle to the buffer on the heap
	// at the cost of copying two words instead of one.
	i int
}

// Valid returns true if the Buf holds a live buffer.
func (b Buf) Valid() bool {
	return b.p != nil
}

// Len returns the number of meaningful bytes: the copied input length for
// CopyBounded, the requested size for Alloc.
func (b Buf) Len() int {
	return b.p.pool[b.i].n
}

// Bytes returns the meaningful prefix of the buffer, Raw()[:Len()].
func (b Buf) Bytes() []byte {
	return b.p.pool[b.i].b[:b.p.pool[b.i].n]
}

// Raw returns the buffer's full capacity. Bytes past Len() are zero unless
// the holder wrote to them.
func (b Buf) Raw() []byte {
	return b.p.pool[b.i].b
}

// Release returns the buffer to the pool. It is okay to call Release on a
// zero-value Buf (to no effect).
func (b *Buf) Release() {
	if b.p == nil {
		return
	}
	if invariants.Enabled && invariants.Sometimes(10) {
		invariants.Mangle(b.p.pool[b.i].b)
	}
	// Clear the pooledBuffer's view. This signals that the slab is no longer
	// in use and a future call to BufferPool.Alloc may reuse it.
	b.p.pool[b.i].b = nil
	b.p.pool[b.i].n = 0
	b.p = nil
}
