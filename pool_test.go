// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package boundbuf

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/NicabarNimble/boundbuf/internal/alloc"
	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

func writeBufferPool(w io.Writer, p *BufferPool) {
	for i := 0; i < cap(p.pool); i++ {
		if i > 0 {
			fmt.Fprint(w, " ")
		}
		if i >= len(p.pool) {
			fmt.Fprint(w, "[    ]")
			continue
		}
		sz := len(p.pool[i].slab)
		if p.pool[i].b == nil {
			fmt.Fprintf(w, "[%4d]", sz)
		} else {
			fmt.Fprintf(w, "<%4d>", sz)
		}
	}
}

func TestBufferPool(t *testing.T) {
	var bp BufferPool
	var buf bytes.Buffer
	handles := map[string]Buf{}
	drainPool := func() {
		for h, b := range handles {
			b.Release()
			delete(handles, h)
		}
		bp.Close()
	}
	defer drainPool()
	datadriven.RunTest(t, "testdata/buffer_pool", func(t *testing.T, td *datadriven.TestData) string {
		buf.Reset()
		switch td.Cmd {
		case "init":
			if cap(bp.pool) > 0 {
				drainPool()
			}
			var initialSize int
			td.ScanArgs(t, "size", &initialSize)
			bp.Init(initialSize)
			writeBufferPool(&buf, &bp)
			return buf.String()
		case "alloc":
			var n int
			var handle string
			td.ScanArgs(t, "n", &n)
			td.ScanArgs(t, "handle", &handle)
			b, err := bp.Alloc(n)
			if err != nil {
				return err.Error()
			}
			handles[handle] = b
			writeBufferPool(&buf, &bp)
			return buf.String()
		case "copy":
			var input, handle string
			var capacity int
			td.ScanArgs(t, "input", &input)
			td.ScanArgs(t, "cap", &capacity)
			td.ScanArgs(t, "handle", &handle)
			b, err := bp.CopyBounded([]byte(input), capacity)
			if err != nil {
				return err.Error()
			}
			handles[handle] = b
			fmt.Fprintf(&buf, "%q len=%d\n", b.Bytes(), b.Len())
			writeBufferPool(&buf, &bp)
			return buf.String()
		case "release":
			var handle string
			td.ScanArgs(t, "handle", &handle)
			b := handles[handle]
			b.Release()
			delete(handles, handle)
			writeBufferPool(&buf, &bp)
			return buf.String()
		default:
			return fmt.Sprintf("unrecognized command %q", td.Cmd)
		}
	})
}

func TestBufferPoolCopyBounded(t *testing.T) {
	var bp BufferPool
	bp.Init(2)
	defer bp.Close()

	b, err := bp.CopyBounded([]byte("hello"), DefaultCapacity)
	require.NoError(t, err)
	require.Equal(t, 5, b.Len())
	require.Equal(t, []byte("hello"), b.Bytes())
	require.Equal(t, bytes.Repeat([]byte{0}, 95), b.Raw()[5:])
	b.Release()

	// Recycled storage must read as zero past the copied input.
	b, err = bp.CopyBounded([]byte("hi"), DefaultCapacity)
	require.NoError(t, err)
	require.Equal(t, []byte("hi"), b.Bytes())
	require.Equal(t, bytes.Repeat([]byte{0}, 98), b.Raw()[2:])
	b.Release()

	_, err = bp.CopyBounded(bytes.Repeat([]byte{'x'}, 5), 4)
	require.ErrorIs(t, err, ErrInputTooLarge)
}

func TestBufferPoolAccounting(t *testing.T) {
	before := alloc.GetMetrics()

	var bp BufferPool
	bp.Init(4)
	var bufs []Buf
	for i := 0; i < 8; i++ {
		b, err := bp.Alloc(64)
		require.NoError(t, err)
		bufs = append(bufs, b)
	}
	for i := range bufs {
		bufs[i].Release()
	}
	bp.Close()

	// Close returns every slab; the pool leaks nothing.
	after := alloc.GetMetrics()
	require.Equal(t, before[alloc.PoolSlab].InUseBytes, after[alloc.PoolSlab].InUseBytes)
	require.Equal(t,
		after[alloc.PoolSlab].Allocs-before[alloc.PoolSlab].Allocs,
		after[alloc.PoolSlab].Frees-before[alloc.PoolSlab].Frees)
}

func TestBufferPoolCloseInUse(t *testing.T) {
	var bp BufferPool
	bp.Init(1)
	b, err := bp.Alloc(16)
	require.NoError(t, err)
	require.Panics(t, func() { bp.Close() })
	b.Release()
	bp.Close()
}
