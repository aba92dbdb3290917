// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package hrv implements time-domain heart rate variability statistics
// over R-R interval sequences.
package hrv

import (
	"errors"
	"math"
)

var (
	// ErrEmptySequence is returned when no R-R intervals are available.
	ErrEmptySequence = errors.New("empty r-r sequence")

	// ErrInsufficientSamples is returned when fewer than two R-R
	// intervals are available, so no successive difference exists
	// for RMSSD.
	ErrInsufficientSamples = errors.New("insufficient r-r intervals for rmssd")
)

// Result holds HRV statistics in milliseconds.
type Result struct {
	// SDNN is the population standard deviation
	// of the R-R intervals.
	SDNN float64
	// RMSSD is the root mean square of successive
	// R-R interval differences.
	RMSSD float64
}

// Compute returns the SDNN and RMSSD of rr, a sequence of R-R intervals
// in milliseconds in arrival order.
//
// If rr holds a single interval, the returned Result has SDNN set and
// the error is ErrInsufficientSamples.
func Compute(rr []uint16) (Result, error) {
	if len(rr) == 0 {
		return Result{}, ErrEmptySequence
	}
	res := Result{SDNN: SDNN(rr)}
	if len(rr) < 2 {
		return res, ErrInsufficientSamples
	}
	res.RMSSD = RMSSD(rr)
	return res, nil
}

// SDNN returns the population standard deviation of rr. It returns NaN
// if rr is empty.
func SDNN(rr []uint16) float64 {
	if len(rr) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range rr {
		sum += float64(v)
	}
	mean := sum / float64(len(rr))
	var ss float64
	for _, v := range rr {
		d := float64(v) - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(rr)))
}

// RMSSD returns the root mean square of successive differences of rr.
// It returns NaN if rr has fewer than two elements.
func RMSSD(rr []uint16) float64 {
	if len(rr) < 2 {
		return math.NaN()
	}
	var ss float64
	for i, v := range rr[1:] {
		d := float64(v) - float64(rr[i])
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(rr)-1))
}
