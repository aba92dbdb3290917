// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The hrv command connects to a Bluetooth heart rate sensor and writes
// heart rate and heart rate variability records to stdout as CSV.
//
// Each line has the form
//
//	<unix_epoch_millis>,<bpm>,<sdnn>,<rmssd>,<hex payload>
//
// and is written for every measurement accepted after the sensor
// signal has stabilized.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/hrv/battery"
	"github.com/kortschak/hrv/heart"
	"github.com/kortschak/hrv/internal/config"
	"github.com/kortschak/hrv/internal/forkbeard"
	"github.com/kortschak/hrv/internal/remote"
	"github.com/kortschak/hrv/record"
	"github.com/kortschak/hrv/session"
)

func main() {
	configPath := flag.String("c", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(2)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(cfg, logger))
}

func run(cfg *config.Config, logger *zap.Logger) int {
	defer logger.Sync()
	cfg.PrintConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adapter := bluetooth.DefaultAdapter
	err := adapter.Enable()
	if err != nil {
		logger.Error("failed to enable bluetooth", zap.Error(err))
		return 1
	}

	match := forkbeard.ByName(cfg.Device.Name)
	if cfg.Device.Address != "" {
		var addr bluetooth.Address
		err = addr.UnmarshalText([]byte(cfg.Device.Address))
		if err != nil {
			logger.Error("invalid device address", zap.String("address", cfg.Device.Address), zap.Error(err))
			return 2
		}
		match = forkbeard.ByAddress(addr)
	}

	logger.Info("scanning", zap.Duration("timeout", cfg.Device.ScanTimeout))
	scanCtx, cancel := context.WithTimeout(ctx, cfg.Device.ScanTimeout)
	dev, found, err := forkbeard.Connect(scanCtx, adapter, match)
	cancel()
	if err != nil {
		logger.Error("failed to connect to sensor", zap.Error(err))
		return 1
	}
	defer dev.Disconnect()
	logger.Info("connected",
		zap.Stringer("address", found.Address),
		zap.String("name", found.LocalName()),
		zap.Int16("rssi", found.RSSI),
	)

	level, err := battery.Level(&dev)
	if err != nil {
		logger.Warn("failed to read battery level", zap.Error(err))
	} else {
		logger.Info("battery level", zap.Uint8("percent", level))
	}

	var src interface {
		session.Source
		Close() error
	}
	switch cfg.Device.Mode {
	case config.ModeNotify:
		src, err = heart.NewRateListener(&dev, cfg.Device.QueueSize)
	default:
		src, err = heart.NewPoller(&dev)
	}
	if err != nil {
		logger.Error("failed to open heart rate measurement", zap.Error(err))
		return 1
	}
	defer src.Close()
	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if connected || d.Address != dev.Address || ctx.Err() != nil {
			return
		}
		logger.Warn("sensor disconnected", zap.Stringer("address", d.Address))
		if l, ok := src.(*heart.RateListener); ok {
			l.Disconnected()
		}
	})

	sinks := session.Sinks{record.NewWriter(os.Stdout)}

	var wg sync.WaitGroup
	if cfg.RemoteWrite.URL != "" {
		device := found.LocalName()
		if device == "" {
			device = found.Address.String()
		}
		rw := remote.New(remote.Config{
			URL:          cfg.RemoteWrite.URL,
			Username:     cfg.RemoteWrite.Username,
			Password:     cfg.RemoteWrite.Password,
			Device:       device,
			PushInterval: cfg.RemoteWrite.PushInterval,
			BufferSize:   cfg.RemoteWrite.BufferSize,
		}, logger)
		sinks = append(sinks, rw)
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw.Start(ctx)
		}()
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := rw.Flush(flushCtx)
			if err != nil {
				logger.Error("failed final remote write", zap.Error(err))
			}
		}()
	}

	s := session.New(src, sinks, cfg.Session(), logger)
	err = s.Run(ctx)
	stop()
	wg.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("session failed", zap.Error(err))
		return 1
	}
	return 0
}
