// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package heart implements decoding of the standard 180d Bluetooth
// heart rate measurement characteristic and delivery of its raw
// payloads from a connected sensor.
package heart

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kortschak/hrv/internal/le"
)

// ErrInvalidLength is returned when a measurement payload is too short
// to hold the flags and heart rate fields.
var ErrInvalidLength = errors.New("invalid length")

// Payload layout.
const (
	flagsOffset = 0
	bpmOffset   = 1
	rrOffset    = 2
	rrSize      = 2

	// rrPresent is the flags bit indicating that R-R
	// intervals follow the heart rate field.
	rrPresent = 0x10
)

// Sample is a decoded heart rate measurement.
type Sample struct {
	BPM uint8
	RR  []uint16 // ms

	// Anomalies holds the R-R fields that would be negative
	// if read as signed values. They are converted as
	// unsigned and included in RR.
	Anomalies []Anomaly
}

// Anomaly is a raw R-R field with its most significant bit set.
type Anomaly struct {
	Index int    // index into Sample.RR
	Raw   uint16 // 1/1024 s
}

func (a Anomaly) String() string {
	return fmt.Sprintf("rr[%d]=%#04x", a.Index, a.Raw)
}

// Decode returns the Sample held in the measurement payload buf.
func Decode(buf []byte) (Sample, error) {
	var s Sample
	err := s.UnmarshalBinary(buf)
	return s, err
}

func (s *Sample) UnmarshalBinary(data []byte) error {
	// https://www.bluetooth.com/specifications/specs/heart-rate-service-1-0/
	if len(data) < rrOffset {
		return fmt.Errorf("%w: heart rate expects at least %d bytes, got %d", ErrInvalidLength, rrOffset, len(data))
	}
	flags := data[flagsOffset]
	bpm := data[bpmOffset]
	if flags&rrPresent == 0 {
		*s = Sample{BPM: bpm}
		return nil
	}

	n := (len(data) - rrOffset) / rrSize
	rr := make([]uint16, 0, n)
	var anomalies []Anomaly
	for i := range n {
		field := data[rrOffset+i*rrSize : rrOffset+(i+1)*rrSize]
		raw := binary.LittleEndian.Uint16(field)
		if le.Int(field) < 0 {
			anomalies = append(anomalies, Anomaly{Index: i, Raw: raw})
		}
		rr = append(rr, TicksToMillis(raw))
	}
	*s = Sample{BPM: bpm, RR: rr, Anomalies: anomalies}
	return nil
}

// TicksToMillis converts an R-R interval in 1/1024 s ticks to
// milliseconds, truncating. Intervals longer than 0xffff ms
// saturate.
func TicksToMillis(raw uint16) uint16 {
	// 1000/1024 == 128/125
	ms := uint32(raw) * 128 / 125
	if ms > 0xffff {
		return 0xffff
	}
	return uint16(ms)
}
