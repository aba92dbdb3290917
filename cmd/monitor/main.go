// Copyright ©2025 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The monitor command displays heart rate, HRV statistics and an R-R
// interval tachogram for a Bluetooth heart rate sensor.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"time"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/io/event"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/text"
	"gioui.org/widget"
	"gioui.org/widget/material"
	"gioui.org/x/explorer"
	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/kortschak/hrv/battery"
	"github.com/kortschak/hrv/heart"
	"github.com/kortschak/hrv/internal/forkbeard"
	"github.com/kortschak/hrv/session"
)

func main() {
	addr := flag.String("addr", "", "sensor bluetooth address")
	name := flag.String("name", "", "sensor local name substring (used if addr is empty)")
	timeout := flag.Duration("timeout", 30*time.Second, "scan timeout")
	debug := flag.Bool("debug", false, "log gate decisions")
	flag.Parse()

	var match forkbeard.Match
	switch {
	case *addr != "":
		var macAddr bluetooth.Address
		err := macAddr.UnmarshalText([]byte(*addr))
		if err != nil {
			flag.Usage()
			os.Exit(2)
		}
		match = forkbeard.ByAddress(macAddr)
	case *name != "":
		match = forkbeard.ByName(*name)
	default:
		flag.Usage()
		os.Exit(2)
	}

	logCfg := zap.NewDevelopmentConfig()
	if !*debug {
		logCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	adapter := bluetooth.DefaultAdapter
	err = adapter.Enable()
	if err != nil {
		logger.Fatal("failed to enable bluetooth", zap.Error(err))
	}

	logger.Info("scanning...")
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	dev, found, err := forkbeard.Connect(ctx, adapter, match)
	cancel()
	if err != nil {
		logger.Fatal("failed to connect", zap.Error(err))
	}
	logger.Info("found device",
		zap.Stringer("mac", found.Address),
		zap.Int16("rssi", found.RSSI),
		zap.String("name", found.LocalName()),
		zap.Strings("manufacturer_data", manData(found.ManufacturerData())),
	)
	if level, err := battery.Level(&dev); err == nil {
		logger.Info("battery level", zap.Uint8("percent", level))
	}

	hr, err := heart.NewRateListener(&dev, 16)
	if err != nil {
		dev.Disconnect()
		logger.Fatal("failed to start streaming hr", zap.Error(err))
	}

	adapter.SetConnectHandler(func(d bluetooth.Device, connected bool) {
		if !connected && d.Address == dev.Address {
			hr.Disconnected()
		}
	})

	update := make(chan image.Image, 1)
	m := newMonitor(update)
	ctx, cancel = context.WithCancel(context.Background())
	s := session.New(hr, m, session.Config{}, logger)
	go func() {
		err := s.Run(ctx)
		if err != nil {
			logger.Error("session failed", zap.Error(err))
		}
	}()
	shutdown := func() {
		cancel()
		hr.Close()
		dev.Disconnect()
		logger.Sync()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		shutdown()
		os.Exit(0)
	}()

	go func() {
		w := new(app.Window)
		w.Option(app.Title("HRV"), app.Size(296, 128))
		err := loop(w, update)
		shutdown()
		if err != nil {
			logger.Fatal("window failed", zap.Error(err))
		}
		os.Exit(0)
	}()
	app.Main()
}

func manData(m []bluetooth.ManufacturerDataElement) []string {
	s := make([]string, len(m))
	for i, d := range m {
		s[i] = fmt.Sprintf("%#x", d.Data)
	}
	return s
}

func loop(w *app.Window, update chan image.Image) error {
	expl := explorer.NewExplorer(w)
	th := material.NewTheme()
	th.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))

	events := make(chan event.Event)
	ack := make(chan struct{})

	go func() {
		for {
			ev := w.Event()
			events <- ev
			<-ack
			if _, ok := ev.(app.DestroyEvent); ok {
				return
			}
		}
	}()
	var img image.Image
	var ops op.Ops
	for {
		select {
		case img = <-update:
			w.Invalidate()
		case e := <-events:
			expl.ListenEvents(e)
			switch e := e.(type) {
			case app.DestroyEvent:
				ack <- struct{}{}
				return e.Err
			case app.FrameEvent:
				gtx := app.NewContext(&ops, e)
				layout.Flex{Axis: layout.Vertical}.Layout(gtx,
					layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
						if img == nil {
							return material.Body1(th, "waiting for stable signal...").Layout(gtx)
						}
						return widget.Image{
							Src: paint.NewImageOp(img),
							Fit: widget.Contain,
						}.Layout(gtx)
					}),
				)
				e.Frame(gtx.Ops)
			}
			ack <- struct{}{}
		}
	}
}
