// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session implements the heart rate monitoring loop. Each
// iteration reads one measurement payload, decodes it, offers it to
// the stabilization gate and, when it is accepted, computes HRV over
// the whole accepted history and emits a record.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kortschak/hrv/heart"
	"github.com/kortschak/hrv/hrv"
	"github.com/kortschak/hrv/record"
	"github.com/kortschak/hrv/stream"
)

// Source provides raw heart rate measurement payloads.
type Source interface {
	// Read blocks until a payload is available.
	Read(ctx context.Context) ([]byte, error)
}

// Sink receives records for accepted samples.
type Sink interface {
	Write(record.Record) error
}

// Sinks is a Sink that writes to each of its elements in order.
type Sinks []Sink

func (s Sinks) Write(r record.Record) error {
	var errs []error
	for _, w := range s {
		errs = append(errs, w.Write(r))
	}
	return errors.Join(errs...)
}

// Config holds the session parameters.
type Config struct {
	// Gate is the stabilization policy. If nil,
	// stream.DefaultGate is used.
	Gate *stream.Gate
	// PollInterval is the minimum time between the
	// start of successive reads. Zero reads back-to-back.
	PollInterval time.Duration
	// Now returns the current time. If nil, time.Now
	// is used. Returned times are used for gating by
	// their monotonic reading and for records by their
	// wall clock reading.
	Now func() time.Time
}

// Session is a single monitoring session.
type Session struct {
	src      Source
	sink     Sink
	gate     stream.Gate
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger

	stream *stream.Stream
}

// New returns a new Session reading from src and writing records to
// sink.
func New(src Source, sink Sink, cfg Config, log *zap.Logger) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	gate := stream.DefaultGate
	if cfg.Gate != nil {
		gate = *cfg.Gate
	}
	return &Session{
		src:      src,
		sink:     sink,
		gate:     gate,
		interval: cfg.PollInterval,
		now:      now,
		log:      log,
	}
}

// Run runs the monitoring loop until ctx is cancelled or the source
// fails. It returns nil if the loop was ended by ctx.
func (s *Session) Run(ctx context.Context) error {
	s.stream = stream.New(s.now(), s.gate)
	s.log.Info("session started",
		zap.Duration("warmup", s.gate.Warmup),
		zap.Duration("cooldown", s.gate.Cooldown),
		zap.Duration("poll_interval", s.interval),
	)

	var tick <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		buf, err := s.src.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info("session stopped", zap.Int("accepted_samples", s.stream.Len()))
				return nil
			}
			return fmt.Errorf("failed to read heart rate measurement: %w", err)
		}
		s.step(buf, s.now())

		if tick != nil {
			select {
			case <-ctx.Done():
				s.log.Info("session stopped", zap.Int("accepted_samples", s.stream.Len()))
				return nil
			case <-tick:
			}
		}
	}
}

// Stream returns the sample stream of the session. It is nil
// before Run is called.
func (s *Session) Stream() *stream.Stream { return s.stream }

// step handles a single payload read at now.
func (s *Session) step(buf []byte, now time.Time) {
	sample, err := heart.Decode(buf)
	if err != nil {
		s.log.Warn("failed to decode heart rate measurement",
			zap.String("payload", hex.EncodeToString(buf)),
			zap.Error(err),
		)
		return
	}
	for _, a := range sample.Anomalies {
		s.log.Warn("r-r interval with high bit set, treating as unsigned",
			zap.Int("index", a.Index),
			zap.Uint16("raw", a.Raw),
			zap.Uint16("ms", sample.RR[a.Index]),
			zap.String("payload", hex.EncodeToString(buf)),
		)
	}

	verdict := s.stream.Accept(sample, now)
	if verdict != stream.Accepted {
		s.log.Debug("skipping heart rate reading",
			zap.Stringer("verdict", verdict),
			zap.Uint8("bpm", sample.BPM),
		)
		return
	}

	res, err := hrv.Compute(s.stream.Intervals())
	if err != nil {
		s.log.Debug("not enough r-r history for hrv",
			zap.Int("intervals", len(s.stream.Intervals())),
			zap.Error(err),
		)
		return
	}

	rec := record.Record{
		Time:    now,
		BPM:     sample.BPM,
		HRV:     res,
		Payload: buf,
	}
	err = s.sink.Write(rec)
	if err != nil {
		s.log.Error("failed to write record", zap.Error(err))
	}
}
