// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package forkbeard provides helper functions for interacting with
// Bluetooth devices.
package forkbeard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tinygo.org/x/bluetooth"
)

// ErrNotFound is returned when a scan ends without a matching device.
var ErrNotFound = errors.New("device not found")

// Match reports whether a scan result is the device being sought.
type Match func(bluetooth.ScanResult) bool

// ByAddress returns a Match for the device with the given address.
func ByAddress(addr bluetooth.Address) Match {
	return func(r bluetooth.ScanResult) bool {
		return r.Address == addr
	}
}

// ByName returns a Match for devices advertising a local name
// containing substr.
func ByName(substr string) Match {
	return func(r bluetooth.ScanResult) bool {
		return strings.Contains(r.LocalName(), substr)
	}
}

// Connect scans for a device satisfying match and connects to the
// first one found. The scan is stopped when ctx is done.
func Connect(ctx context.Context, adapter *bluetooth.Adapter, match Match) (bluetooth.Device, bluetooth.ScanResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		adapter.StopScan()
	}()

	var (
		found bluetooth.ScanResult
		ok    bool
	)
	err := adapter.Scan(func(adapter *bluetooth.Adapter, r bluetooth.ScanResult) {
		if ok || !match(r) {
			return
		}
		found, ok = r, true
		adapter.StopScan()
	})
	if err != nil {
		return bluetooth.Device{}, found, fmt.Errorf("failed to scan: %w", err)
	}
	if !ok {
		if ctx.Err() != nil {
			return bluetooth.Device{}, found, fmt.Errorf("%w: %w", ErrNotFound, ctx.Err())
		}
		return bluetooth.Device{}, found, ErrNotFound
	}
	dev, err := adapter.Connect(found.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return bluetooth.Device{}, found, fmt.Errorf("failed to connect to %s: %w", found.Address, err)
	}
	return dev, found, nil
}

// DeviceCharacteristic returns a specified bluetooth.DeviceCharacteristic
// from a Bluetooth service.
func DeviceCharacteristic(dev *bluetooth.Device, srvID, charID bluetooth.UUID) (bluetooth.DeviceCharacteristic, error) {
	srv, err := dev.DiscoverServices([]bluetooth.UUID{srvID})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover service %s: %w", srvID, err)
	}
	for _, s := range srv {
		char, err := s.DiscoverCharacteristics([]bluetooth.UUID{charID})
		if err != nil {
			return bluetooth.DeviceCharacteristic{}, fmt.Errorf("failed to discover characteristic %s: %w", charID, err)
		}
		if len(char) == 0 {
			break
		}
		return char[0], nil
	}
	return bluetooth.DeviceCharacteristic{}, fmt.Errorf("device characteristic not found")
}

// ReadCharacteristic reads data from a Bluetooth characteristic.
func ReadCharacteristic(char bluetooth.DeviceCharacteristic) ([]byte, error) {
	mtu, err := char.GetMTU()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain mtu of characteristic: %w", err)
	}
	buf := make([]byte, mtu)
	n, err := char.Read(buf)
	if err != nil && err != io.EOF {
		return buf[:n], fmt.Errorf("failed to read response from characteristic: %w", err)
	}
	return buf[:n], nil
}
