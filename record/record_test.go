// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/kortschak/hrv/hrv"
)

var fieldsTests = []struct {
	name string
	rec  Record
	want []string
}{
	{
		name: "simple",
		rec: Record{
			Time:    time.UnixMilli(1700000000123),
			BPM:     60,
			HRV:     hrv.Result{SDNN: 8.5, RMSSD: 15.25},
			Payload: []byte{0x10, 0x3c, 0x00, 0x04},
		},
		want: []string{"1700000000123", "60", "8.5", "15.25", "103c0004"},
	},
	{
		name: "uppercase_hex_input",
		rec: Record{
			Time:    time.UnixMilli(0),
			BPM:     255,
			HRV:     hrv.Result{SDNN: 0, RMSSD: 400},
			Payload: []byte{0x16, 0xFF, 0xAB, 0xCD},
		},
		want: []string{"0", "255", "0", "400", "16ffabcd"},
	},
}

func TestFields(t *testing.T) {
	for _, test := range fieldsTests {
		t.Run(test.name, func(t *testing.T) {
			got := test.rec.Fields()
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("unexpected fields:\ngot: %q\nwant:%q", got, test.want)
			}
		})
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, test := range fieldsTests {
		err := w.Write(test.rec)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	want := "1700000000123,60,8.5,15.25,103c0004\n0,255,0,400,16ffabcd\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output:\ngot: %q\nwant:%q", got, want)
	}
}
