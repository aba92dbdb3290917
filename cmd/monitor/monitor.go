// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"image"

	"github.com/kortschak/hrv/heart"
	"github.com/kortschak/hrv/record"
)

// monitor is a session.Sink that renders accepted records.
type monitor struct {
	card   *image.Gray
	stats  *hrvStats
	tacho  *tachogram
	update chan image.Image
}

func newMonitor(update chan image.Image) *monitor {
	card := image.NewGray(image.Rectangle{Max: image.Point{X: 296, Y: 128}})
	blank(card)
	return &monitor{
		card: card,
		stats: newHRVStats(subDrawImage(card, image.Rectangle{
			Min: image.Point{X: 0, Y: 0},
			Max: image.Point{X: 120, Y: 128},
		})),
		tacho: newTachogram(subDrawImage(card, image.Rectangle{
			Min: image.Point{X: 120, Y: 0},
			Max: image.Point{X: 296, Y: 128},
		})),
		update: update,
	}
}

func (m *monitor) Write(rec record.Record) error {
	s, err := heart.Decode(rec.Payload)
	if err != nil {
		return fmt.Errorf("failed to decode record payload: %w", err)
	}
	m.stats.set(rec.BPM, rec.HRV)
	m.tacho.add(s.RR...)

	// The window paints asynchronously, so hand it a copy.
	frame := &image.Gray{
		Pix:    bytes.Clone(m.card.Pix),
		Stride: m.card.Stride,
		Rect:   m.card.Rect,
	}
	select {
	case m.update <- frame:
	default:
		// Replace a frame the window has not yet taken.
		select {
		case <-m.update:
		default:
		}
		m.update <- frame
	}
	return nil
}
