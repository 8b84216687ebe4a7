// Copyright 2023 Kami
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package protoerr provides the shared error-severity vocabulary used by
// internal/session and internal/service to classify net.Error/syscall
// failures, plus aggregation of teardown-time errors via multierr.
package protoerr

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"go.uber.org/multierr"
)

// Severity classifies an observed I/O error the way the source's
// handleError switch statements do: some errors are routine noise during
// teardown, some are expected terminal conditions, and some indicate a
// programmer/contract violation that should never happen in a correctly
// operating system.
type Severity int

const (
	// Benign errors are logged at debug level and otherwise ignored —
	// typically the result of a cancellation the caller itself initiated.
	Benign Severity = iota
	// Terminal errors are logged and cause the owning Session/Service to
	// stop, but are an expected part of normal operation (peer reset,
	// connection refused, timeout).
	Terminal
	// Fault errors indicate a state that should be structurally
	// impossible (e.g. operating on an already-closed descriptor) and are
	// logged at error level in addition to stopping the owner.
	Fault
)

// IsBenignClose reports whether err is the expected result of this process
// having itself closed or cancelled the operation — the use-of-closed-
// network-connection/context-cancelled family Go surfaces instead of a
// dedicated "operation aborted" error.
func IsBenignClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled) {
		return true
	}
	return strings.Contains(err.Error(), "use of closed network connection")
}

// IsPeerClosed reports whether err represents the remote side ending the
// stream in an ordinary way (EOF, connection reset, connection aborted).
func IsPeerClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection reset", "connection aborted", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsTimeout reports whether err is a network timeout.
func IsTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Aggregator collects teardown-time errors from multiple steps (cancel,
// shutdown, close) the way the source routes every step's error through
// handleError individually, without discarding earlier ones.
type Aggregator struct {
	err error
}

// Add records err if non-nil.
func (a *Aggregator) Add(err error) {
	if err != nil {
		a.err = multierr.Append(a.err, err)
	}
}

// Err returns the combined error, or nil if nothing was added.
func (a *Aggregator) Err() error {
	return a.err
}
