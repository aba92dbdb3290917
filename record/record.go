// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record implements the CSV output record for accepted heart
// rate samples.
//
// Each record has the fields
//
//	<unix_epoch_millis>,<bpm>,<sdnn>,<rmssd>,<hex payload>
//
// where the payload is the lowercase hex encoding of the measurement
// bytes the sample was decoded from.
package record

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kortschak/hrv/hrv"
)

// Record is the output for a single accepted sample.
type Record struct {
	Time    time.Time
	BPM     uint8
	HRV     hrv.Result
	Payload []byte
}

// Fields returns the CSV fields of the record.
func (r Record) Fields() []string {
	return []string{
		strconv.FormatInt(r.Time.UnixMilli(), 10),
		strconv.Itoa(int(r.BPM)),
		strconv.FormatFloat(r.HRV.SDNN, 'f', -1, 64),
		strconv.FormatFloat(r.HRV.RMSSD, 'f', -1, 64),
		hex.EncodeToString(r.Payload),
	}
}

// Writer writes records as CSV lines.
type Writer struct {
	w *csv.Writer
}

// NewWriter returns a new Writer writing to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// Write writes r and flushes it to the underlying writer.
func (w *Writer) Write(r Record) error {
	err := w.w.Write(r.Fields())
	if err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.w.Flush()
	return w.w.Error()
}
