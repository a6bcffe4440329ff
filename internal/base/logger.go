// Copyright 2026 The Boundbuf Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package base

import (
	"fmt"
	"log"
	"os"
)

// Logger is the interface diagnostics are written through. Callers inject
// their own implementation; there is no global logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

// DefaultLogger writes through the standard library's log package.
type DefaultLogger struct{}

// Infof implements Logger.
func (DefaultLogger) Infof(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
}

// Fatalf implements Logger.
func (DefaultLogger) Fatalf(format string, args ...interface{}) {
	_ = log.Output(2, fmt.Sprintf(format, args...))
	os.Exit(1)
}

// NoopLogger discards all log messages, except Fatalf which still exits.
type NoopLogger struct{}

// Infof implements Logger.
func (NoopLogger) Infof(format string, args ...interface{}) {}

// Fatalf implements Logger.
func (NoopLogger) Fatalf(format string, args ...interface{}) {
	os.Exit(1)
}
