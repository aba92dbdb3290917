// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package remote

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kortschak/hrv/hrv"
	"github.com/kortschak/hrv/record"
)

var testRecords = []record.Record{
	{Time: time.UnixMilli(1000), BPM: 60, HRV: hrv.Result{SDNN: 8.5, RMSSD: 15.25}},
	{Time: time.UnixMilli(2000), BPM: 62, HRV: hrv.Result{SDNN: 9, RMSSD: 14}},
}

func TestTimeSeries(t *testing.T) {
	ts := TimeSeries("H10", testRecords)
	if len(ts) != 3 {
		t.Fatalf("unexpected number of series: got:%d want:3", len(ts))
	}
	wantNames := []string{BPMMetric, SDNNMetric, RMSSDMetric}
	wantValues := [][]float64{{60, 62}, {8.5, 9}, {15.25, 14}}
	for i, s := range ts {
		if s.Labels[0].Name != "__name__" || s.Labels[0].Value != wantNames[i] {
			t.Errorf("unexpected name label for series %d: %+v", i, s.Labels[0])
		}
		if s.Labels[1].Name != "device" || s.Labels[1].Value != "H10" {
			t.Errorf("unexpected device label for series %d: %+v", i, s.Labels[1])
		}
		for j, smp := range s.Samples {
			if smp.Value != wantValues[i][j] {
				t.Errorf("unexpected value for series %d sample %d: got:%v want:%v", i, j, smp.Value, wantValues[i][j])
			}
			if smp.Timestamp != testRecords[j].Time.UnixMilli() {
				t.Errorf("unexpected timestamp for series %d sample %d: %d", i, j, smp.Timestamp)
			}
		}
	}
}

func TestFlush(t *testing.T) {
	var (
		mu  sync.Mutex
		got []prompb.WriteRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("Content-Encoding") != "snappy" {
			t.Errorf("unexpected content encoding: %s", r.Header.Get("Content-Encoding"))
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			t.Errorf("unexpected basic auth: %q %q %t", user, pass, ok)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		data, err := snappy.Decode(nil, body)
		if err != nil {
			t.Errorf("failed to decode snappy body: %v", err)
		}
		var req prompb.WriteRequest
		err = req.Unmarshal(data)
		if err != nil {
			t.Errorf("failed to unmarshal write request: %v", err)
		}
		mu.Lock()
		got = append(got, req)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := New(Config{
		URL:          srv.URL,
		Username:     "user",
		Password:     "pass",
		Device:       "H10",
		PushInterval: time.Minute,
		BufferSize:   10,
	}, zap.NewNop())
	for _, r := range testRecords {
		w.Write(r)
	}
	if w.Len() != 2 {
		t.Fatalf("unexpected buffer length: got:%d want:2", w.Len())
	}

	err := w.Flush(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Len() != 0 {
		t.Errorf("expected empty buffer after flush, got %d", w.Len())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("unexpected number of requests: got:%d want:1", len(got))
	}
	if len(got[0].Timeseries) != 3 {
		t.Errorf("unexpected number of series: got:%d want:3", len(got[0].Timeseries))
	}
}

func TestFlushEmpty(t *testing.T) {
	w := New(Config{URL: "http://127.0.0.1:0", PushInterval: time.Minute, BufferSize: 1}, zap.NewNop())
	err := w.Flush(context.Background())
	if err != nil {
		t.Errorf("unexpected error for empty flush: %v", err)
	}
}

func TestFlushFailureRetains(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	w := New(Config{URL: srv.URL, PushInterval: time.Minute, BufferSize: 10}, zap.NewNop())
	for _, r := range testRecords {
		w.Write(r)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := w.Flush(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("unexpected error: got:%v want:%v", err, context.DeadlineExceeded)
	}
	if w.Len() != 2 {
		t.Errorf("expected records to be retained, got %d", w.Len())
	}
}

var requeueTests = []struct {
	name       string
	bufferSize int
	want       []int64
	wantDrops  int
}{
	{
		name:       "room",
		bufferSize: 10,
		want:       []int64{1000, 2000, 3000},
	},
	{
		name:       "full",
		bufferSize: 2,
		want:       []int64{2000, 3000},
		wantDrops:  1,
	},
}

func TestFlushFailureKeepsOrder(t *testing.T) {
	late := record.Record{Time: time.UnixMilli(3000), BPM: 64}
	for _, test := range requeueTests {
		t.Run(test.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.WarnLevel)
			var (
				w    *Writer
				once sync.Once
			)
			srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				once.Do(func() { w.Write(late) })
				http.Error(rw, "unavailable", http.StatusServiceUnavailable)
			}))
			defer srv.Close()

			w = New(Config{URL: srv.URL, PushInterval: time.Minute, BufferSize: test.bufferSize}, zap.New(core))
			for _, r := range testRecords {
				w.Write(r)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			err := w.Flush(ctx)
			if err == nil {
				t.Fatal("expected error from failing push")
			}

			var got []int64
			for _, r := range w.drain() {
				got = append(got, r.Time.UnixMilli())
			}
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("unexpected buffered records: got:%v want:%v", got, test.want)
			}
			drops := logs.FilterMessage("remote write buffer full, dropped unsent records").All()
			if test.wantDrops == 0 {
				if len(drops) != 0 {
					t.Errorf("unexpected drop warning: %v", drops)
				}
				return
			}
			if len(drops) != 1 {
				t.Fatalf("unexpected number of drop warnings: got:%d want:1", len(drops))
			}
			if n := drops[0].ContextMap()["dropped"]; n != int64(test.wantDrops) {
				t.Errorf("unexpected dropped count: got:%v want:%d", n, test.wantDrops)
			}
		})
	}
}

func TestWriteOverflow(t *testing.T) {
	w := New(Config{PushInterval: time.Minute, BufferSize: 1}, zap.NewNop())
	for _, r := range testRecords {
		w.Write(r)
	}
	recs := w.drain()
	if len(recs) != 1 || recs[0].BPM != 62 {
		t.Errorf("expected only newest record retained, got %+v", recs)
	}
}
