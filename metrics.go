// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package boundbuf

import (
	"github.com/NicabarNimble/boundbuf/internal/alloc"
	"github.com/cockroachdb/redact"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a point-in-time snapshot of buffer memory accounting.
type Metrics struct {
	// BoundedCopy accounts storage owned by standalone Buffers.
	BoundedCopy PurposeMetrics
	// PoolSlab accounts slabs held by BufferPools.
	PoolSlab PurposeMetrics
}

// PurposeMetrics is the accounting for one allocation purpose.
type PurposeMetrics struct {
	// InUseBytes is the number of bytes currently allocated and not yet
	// released.
	InUseBytes uint64
	// TotalBytes is the cumulative number of bytes allocated since the
	// process started.
	TotalBytes uint64
	// Allocs and Frees are cumulative operation counts. A steady-state
	// process with no live buffers should show them equal; a growing gap is
	// a leak.
	Allocs uint64
	Frees  uint64
}

// CollectMetrics returns the current accounting snapshot.
func CollectMetrics() Metrics {
	m := alloc.GetMetrics()
	return Metrics{
		BoundedCopy: purposeMetrics(m, alloc.BoundedCopy),
		PoolSlab:    purposeMetrics(m, alloc.PoolSlab),
	}
}

func purposeMetrics(m alloc.Metrics, p alloc.Purpose) PurposeMetrics {
	return PurposeMetrics{
		InUseBytes: m[p].InUseBytes,
		TotalBytes: m[p].TotalBytes,
		Allocs:     m[p].Allocs,
		Frees:      m[p].Frees,
	}
}

// String implements fmt.Stringer.
func (m Metrics) String() string {
	return redact.StringWithoutMarkers(m)
}

// SafeFormat implements redact.SafeFormatter.
func (m Metrics) SafeFormat(w redact.SafePrinter, _ rune) {
	w.Printf("bounded-copy: %d B in use (%d allocs, %d frees); pool: %d B in use (%d allocs, %d frees)",
		redact.SafeUint(m.BoundedCopy.InUseBytes),
		redact.SafeUint(m.BoundedCopy.Allocs),
		redact.SafeUint(m.BoundedCopy.Frees),
		redact.SafeUint(m.PoolSlab.InUseBytes),
		redact.SafeUint(m.PoolSlab.Allocs),
		redact.SafeUint(m.PoolSlab.Frees))
}

// NewCollector returns a prometheus.Collector exposing the allocator
// accounting, labeled by purpose.
func NewCollector() prometheus.Collector {
	return &collector{
		inUseBytes: prometheus.NewDesc(
			"boundbuf_in_use_bytes",
			"Bytes of buffer storage currently allocated.",
			[]string{"purpose"}, nil),
		totalBytes: prometheus.NewDesc(
			"boundbuf_allocated_bytes_total",
			"Cumulative bytes of buffer storage allocated.",
			[]string{"purpose"}, nil),
		allocs: prometheus.NewDesc(
			"boundbuf_allocs_total",
			"Cumulative buffer allocations.",
			[]string{"purpose"}, nil),
		frees: prometheus.NewDesc(
			"boundbuf_frees_total",
			"Cumulative buffer frees.",
			[]string{"purpose"}, nil),
	}
}

type collector struct {
	inUseBytes *prometheus.Desc
	totalBytes *prometheus.Desc
	allocs     *prometheus.Desc
	frees      *prometheus.Desc
}

// Describe implements prometheus.Collector.
func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.inUseBytes
	ch <- c.totalBytes
	ch <- c.allocs
	ch <- c.frees
}

// Collect implements prometheus.Collector.
func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m := alloc.GetMetrics()
	for p := alloc.Purpose(1); p < alloc.NumPurposes; p++ {
		ch <- prometheus.MustNewConstMetric(
			c.inUseBytes, prometheus.GaugeValue, float64(m[p].InUseBytes), p.String())
		ch <- prometheus.MustNewConstMetric(
			c.totalBytes, prometheus.CounterValue, float64(m[p].TotalBytes), p.String())
		ch <- prometheus.MustNewConstMetric(
			c.allocs, prometheus.CounterValue, float64(m[p].Allocs), p.String())
		ch <- prometheus.MustNewConstMetric(
			c.frees, prometheus.CounterValue, float64(m[p].Frees), p.String())
	}
}
