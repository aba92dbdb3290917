// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream implements an ordered accumulator of heart rate
// samples gated by a stabilization policy.
//
// Readings taken shortly after a sensor is connected, or shortly after
// the sensor reported a measurement without R-R intervals, are withheld
// from the accumulated history. Later readings are accepted again, so
// the gate only delays use of the stream.
package stream

import (
	"time"

	"github.com/kortschak/hrv/heart"
)

// Default gate periods.
const (
	DefaultWarmup   = 5 * time.Second
	DefaultCooldown = 3 * time.Second
)

// Gate is the stabilization policy of a Stream.
type Gate struct {
	// Warmup is the period after the stream start
	// during which samples are rejected.
	Warmup time.Duration
	// Cooldown is the period after a blank sample
	// during which samples are rejected.
	Cooldown time.Duration
}

// DefaultGate is the gate used when no gate is configured.
var DefaultGate = Gate{Warmup: DefaultWarmup, Cooldown: DefaultCooldown}

// Verdict is the outcome of offering a sample to a Stream.
type Verdict uint8

//go:generate go tool golang.org/x/tools/cmd/stringer -type Verdict
const (
	Accepted Verdict = iota
	RejectedBlank
	RejectedWarmup
	RejectedCooldown
)

// Stream is an ordered, gated accumulator of heart rate samples. A Stream
// is not safe for concurrent use.
//
// Times passed to New and Accept should be obtained from time.Now so
// that the gate is evaluated against the monotonic clock.
type Stream struct {
	gate Gate

	start     time.Time
	lastBlank time.Time // zero until a blank sample is seen

	samples []heart.Sample
	rr      []uint16
}

// New returns a new Stream starting at start. The zero Gate accepts
// any non-blank sample offered after start.
func New(start time.Time, gate Gate) *Stream {
	return &Stream{gate: gate, start: start}
}

// Accept offers s to the stream at time now and reports whether it was
// added to the history. Only Accepted samples are retained.
func (st *Stream) Accept(s heart.Sample, now time.Time) Verdict {
	if len(s.RR) == 0 {
		st.lastBlank = now
		return RejectedBlank
	}
	if now.Sub(st.start) <= st.gate.Warmup {
		return RejectedWarmup
	}
	if !st.lastBlank.IsZero() && now.Sub(st.lastBlank) <= st.gate.Cooldown {
		return RejectedCooldown
	}
	st.samples = append(st.samples, s)
	st.rr = append(st.rr, s.RR...)
	return Accepted
}

// Len returns the number of accepted samples.
func (st *Stream) Len() int { return len(st.samples) }

// Samples returns the accepted samples in arrival order. The returned
// slice must not be modified.
func (st *Stream) Samples() []heart.Sample { return st.samples }

// Intervals returns the concatenation of the R-R intervals of all
// accepted samples in arrival order. The returned slice must not be
// modified.
func (st *Stream) Intervals() []uint16 { return st.rr }

// Start returns the start time of the stream.
func (st *Stream) Start() time.Time { return st.start }
