// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package remote implements export of heart rate records to a
// Prometheus remote write endpoint.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"
	"go.uber.org/zap"

	"github.com/kortschak/hrv/internal/ring"
	"github.com/kortschak/hrv/record"
)

// Metric names.
const (
	BPMMetric   = "hrv_heart_rate_bpm"
	SDNNMetric  = "hrv_sdnn_milliseconds"
	RMSSDMetric = "hrv_rmssd_milliseconds"
)

const attempts = 3

// Config contains configuration for the Writer.
type Config struct {
	URL          string
	Username     string
	Password     string
	Device       string // value of the device label
	PushInterval time.Duration
	BufferSize   int
}

// Writer buffers records and periodically pushes them to a Prometheus
// remote write endpoint. Write may be called concurrently with Start.
type Writer struct {
	url      string
	username string
	password string
	device   string
	interval time.Duration
	client   *http.Client
	log      *zap.Logger

	mu  sync.Mutex
	buf *ring.Buffer[record.Record]
}

// New returns a new Writer.
func New(cfg Config, log *zap.Logger) *Writer {
	return &Writer{
		url:      cfg.URL,
		username: cfg.Username,
		password: cfg.Password,
		device:   cfg.Device,
		interval: cfg.PushInterval,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
		buf:      ring.NewBuffer[record.Record](cfg.BufferSize),
	}
}

// Write adds r to the buffer of records to push. If the buffer is full,
// the oldest record is discarded.
func (w *Writer) Write(r record.Record) error {
	w.mu.Lock()
	dropped := w.buf.Write([]record.Record{r})
	w.mu.Unlock()
	if dropped != 0 {
		w.log.Warn("remote write buffer full, overwriting oldest record",
			zap.Int("capacity", w.buf.Size()))
	}
	return nil
}

// Len returns the number of buffered records.
func (w *Writer) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Len()
}

func (w *Writer) drain() []record.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	recs := make([]record.Record, w.buf.Len())
	w.buf.Read(recs)
	return recs
}

// Start pushes buffered records every push interval until ctx is done.
func (w *Writer) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("remote writer started", zap.Duration("push_interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.log.Info("remote writer stopping")
			return
		case <-ticker.C:
			err := w.Flush(ctx)
			if err != nil {
				w.log.Error("failed to push records", zap.Error(err))
			}
		}
	}
}

// Flush pushes all buffered records. On failure the records are
// returned to the buffer ahead of any written during the push.
func (w *Writer) Flush(ctx context.Context) error {
	recs := w.drain()
	if len(recs) == 0 {
		w.log.Debug("no records to push")
		return nil
	}
	err := w.Push(ctx, recs)
	if err != nil {
		w.requeue(recs)
		return err
	}
	return nil
}

// requeue returns recs to the front of the buffer, keeping the
// newest records if they do not all fit.
func (w *Writer) requeue(recs []record.Record) {
	w.mu.Lock()
	newer := make([]record.Record, w.buf.Len())
	w.buf.Read(newer)
	dropped := w.buf.Write(recs)
	dropped += w.buf.Write(newer)
	w.mu.Unlock()
	if dropped != 0 {
		w.log.Warn("remote write buffer full, dropped unsent records",
			zap.Int("dropped", dropped),
			zap.Int("capacity", w.buf.Size()))
	}
}

// Push pushes recs to the remote write endpoint, retrying with
// exponential backoff.
func (w *Writer) Push(ctx context.Context, recs []record.Record) error {
	if len(recs) == 0 {
		return nil
	}
	req := &prompb.WriteRequest{Timeseries: TimeSeries(w.device, recs)}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.pushOnce(ctx, req)
		if err == nil {
			w.log.Info("successfully pushed records",
				zap.Int("records", len(recs)),
				zap.Int("attempt", attempt),
			)
			return nil
		}
		lastErr = err
		w.log.Warn("failed to push records, will retry",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt < attempts {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return fmt.Errorf("failed to push records after %d attempts: %w", attempts, lastErr)
}

func (w *Writer) pushOnce(ctx context.Context, writeReq *prompb.WriteRequest) error {
	data, err := proto.Marshal(writeReq)
	if err != nil {
		return fmt.Errorf("failed to marshal protobuf: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")
	if w.username != "" && w.password != "" {
		req.SetBasicAuth(w.username, w.password)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("received non-2xx status code: %d, body: %s", resp.StatusCode, body)
	}
	return nil
}

// TimeSeries returns the heart rate, SDNN and RMSSD time series
// for recs.
func TimeSeries(device string, recs []record.Record) []prompb.TimeSeries {
	bpm := make([]prompb.Sample, len(recs))
	sdnn := make([]prompb.Sample, len(recs))
	rmssd := make([]prompb.Sample, len(recs))
	for i, r := range recs {
		ts := r.Time.UnixMilli()
		bpm[i] = prompb.Sample{Value: float64(r.BPM), Timestamp: ts}
		sdnn[i] = prompb.Sample{Value: r.HRV.SDNN, Timestamp: ts}
		rmssd[i] = prompb.Sample{Value: r.HRV.RMSSD, Timestamp: ts}
	}
	series := func(name string, samples []prompb.Sample) prompb.TimeSeries {
		return prompb.TimeSeries{
			Labels: []prompb.Label{
				{Name: "__name__", Value: name},
				{Name: "device", Value: device},
			},
			Samples: samples,
		}
	}
	return []prompb.TimeSeries{
		series(BPMMetric, bpm),
		series(SDNNMetric, sdnn),
		series(RMSSDMetric, rmssd),
	}
}
