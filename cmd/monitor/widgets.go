// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"image/color"
	"image/draw"
	"slices"
	"strconv"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freesans"

	"github.com/kortschak/hrv/hrv"
	"github.com/kortschak/hrv/internal/ring"
)

var ink = color.RGBA{A: 0xff}

type hrvStats struct {
	img draw.Image
}

func newHRVStats(img draw.Image) *hrvStats {
	return &hrvStats{img: img}
}

func (w *hrvStats) set(bpm uint8, res hrv.Result) {
	blank(w.img)

	width := w.img.Bounds().Dx()
	yOffset := -10

	bpmText := strconv.Itoa(int(bpm))
	bpmFont := &freesans.Bold18pt7b
	_, bpmW := tinyfont.LineWidth(bpmFont, bpmText)
	y := int16(int(bpmFont.YAdvance) + yOffset)
	tinyfont.WriteLine(
		displayShim{w.img},
		bpmFont,
		int16(width-int(bpmW))/2, y, bpmText,
		ink,
	)

	statFont := &freesans.Regular9pt7b
	for _, stat := range []string{
		"sdnn " + strconv.FormatFloat(res.SDNN, 'f', 1, 64),
		"rmssd " + strconv.FormatFloat(res.RMSSD, 'f', 1, 64),
	} {
		y += int16(statFont.YAdvance)
		_, statW := tinyfont.LineWidth(statFont, stat)
		tinyfont.WriteLine(
			displayShim{w.img},
			statFont,
			int16(width-int(statW))/2, y, stat,
			ink,
		)
	}
}

// tachogram plots the most recent R-R intervals, one pixel column
// per interval.
type tachogram struct {
	ring *ring.Buffer[uint16]
	img  draw.Image
	buf  []uint16
}

func newTachogram(img draw.Image) *tachogram {
	width := img.Bounds().Dx()
	return &tachogram{
		ring: ring.NewBuffer[uint16](width),
		img:  img,
		buf:  make([]uint16, width),
	}
}

func (t *tachogram) add(rr ...uint16) {
	t.ring.Write(rr)
	n := t.ring.CopyTo(t.buf)
	plotIntervals(t.img, t.buf[:n])
}

func plotIntervals(dst draw.Image, rr []uint16) {
	blank(dst)
	if len(rr) < 2 {
		return
	}

	lo := slices.Min(rr)
	hi := slices.Max(rr)
	const minRange = 100 // ms
	height := dst.Bounds().Dy() - 1
	y := func(v uint16) int {
		// Longer intervals plot higher.
		return height - scale(v, lo, hi, minRange, height)
	}
	for i, v := range rr[1:] {
		line(dst, i, y(rr[i]), i+1, y(v), color.Black)
	}
}
