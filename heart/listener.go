// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package heart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/kortschak/hrv/internal/forkbeard"
)

const (
	RateServiceID     = "180d"
	RateMeasurementID = "2a37"
)

var (
	hrService     = must(bluetooth.ParseUUID(RateServiceID))
	hrMeasurement = must(bluetooth.ParseUUID(RateMeasurementID))
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// Poller reads heart rate measurement payloads on demand.
type Poller struct {
	char bluetooth.DeviceCharacteristic
}

// NewPoller returns a new Poller for the provided Bluetooth device.
func NewPoller(dev *bluetooth.Device) (*Poller, error) {
	char, err := forkbeard.DeviceCharacteristic(dev, hrService, hrMeasurement)
	if err != nil {
		return nil, fmt.Errorf("failed to get heart rate device characteristic: %w", err)
	}
	return &Poller{char: char}, nil
}

// Read performs a single blocking read of the measurement
// characteristic and returns the raw payload.
func (p *Poller) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return forkbeard.ReadCharacteristic(p.char)
}

// Close is a no-op.
func (p *Poller) Close() error { return nil }

// ErrDisconnected is returned by RateListener.Read once the sensor
// has disconnected and all pending payloads have been read.
var ErrDisconnected = errors.New("heart rate sensor disconnected")

// RateListener implements handling of heart rate notifications.
type RateListener struct {
	char bluetooth.DeviceCharacteristic
	c    chan []byte

	lost     chan struct{}
	lostOnce sync.Once
}

// NewRateListener returns a new RateListener for the provided Bluetooth
// device. Up to n undelivered payloads are held; notifications arriving
// while the queue is full are dropped.
func NewRateListener(dev *bluetooth.Device, n int) (*RateListener, error) {
	char, err := forkbeard.DeviceCharacteristic(dev, hrService, hrMeasurement)
	if err != nil {
		return nil, fmt.Errorf("failed to get heart rate device characteristic: %w", err)
	}
	l := &RateListener{char: char, c: make(chan []byte, n), lost: make(chan struct{})}
	err = char.EnableNotifications(l.notify)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *RateListener) notify(buf []byte) {
	select {
	case l.c <- bytes.Clone(buf):
	default:
	}
}

// Disconnected marks the sensor as disconnected. It is safe to call
// more than once and from any goroutine.
func (l *RateListener) Disconnected() {
	l.lostOnce.Do(func() { close(l.lost) })
}

// Read returns the next notified payload, blocking until one is
// available, the sensor disconnects or ctx is done.
func (l *RateListener) Read(ctx context.Context) ([]byte, error) {
	select {
	case buf := <-l.c:
		return buf, nil
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case buf := <-l.c:
		return buf, nil
	case <-l.lost:
		return nil, ErrDisconnected
	}
}

// Close disables heart rate notifications from the connected sensor.
func (l *RateListener) Close() error { return l.char.EnableNotifications(nil) }
