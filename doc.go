// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package boundbuf provides capacity-bounded byte buffers with explicit
// ownership and allocation accounting.
//
// The core primitive is CopyBounded: it validates an input's length against
// a fixed capacity before any allocation, copies the input into exactly
// capacity bytes of owned storage, and hands the resulting Buffer to the
// caller. The caller is the buffer's sole owner and must call Release
// exactly once. Inputs longer than the capacity fail with ErrInputTooLarge;
// nothing is allocated and nothing is truncated.
//
// All storage is obtained from a counting allocator, so leaks are
// observable: CollectMetrics reports in-use bytes and alloc/free counts per
// purpose, and SetInUseLimit bounds total in-use memory, turning exhaustion
// into an ErrAllocationFailed result instead of unbounded growth.
//
// BufferPool recycles buffers for short-lived copies with a known working
// set. Guard provides scoped mutual exclusion with checked acquisition and
// guaranteed release for callers that need to serialize access to the
// copied data.
package boundbuf
