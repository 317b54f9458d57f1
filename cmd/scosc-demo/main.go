// Copyright 2024 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command scosc-demo drives a single Engine through its full lifecycle
// from the command line: init, load a synth-def, fire a node, sync, and
// shut down on signal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scosc/core/config"
	scosc "github.com/scosc/core"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults built in if empty)")
	sampleBase := flag.String("sample-base", ".", "base directory synth-def/sample paths are sandboxed under")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fatal("load config", err)
		}
		cfg = loaded
	}

	e := scosc.New(scosc.Options{Config: cfg, SampleBase: *sampleBase})
	e.On(scosc.EventIn, func(p any) { slog.Info("in", "packet", fmt.Sprintf("%+v", p)) })
	e.On(scosc.EventOutOSC, func(p any) { slog.Debug("out:osc", "frame", p) })
	e.On(scosc.EventDebug, func(p any) { slog.Debug("debug", "msg", p) })
	e.On(scosc.EventLoadStart, func(p any) { slog.Info("loading", "detail", p) })
	e.On(scosc.EventLoadDone, func(p any) { slog.Info("loaded", "detail", p) })

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Init(ctx); err != nil {
		fatal("init", err)
	}
	defer func() {
		if err := e.Destroy(); err != nil {
			slog.Error("destroy", "err", err)
		}
	}()

	if err := e.LoadSynthDef("sine", demoSynthDef); err != nil {
		fatal("load synthdef", err)
	}
	if err := e.Send("/s_new", demoNodeArgs()...); err != nil {
		fatal("send", err)
	}

	syncCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := e.Sync(syncCtx, 1); err != nil {
		slog.Warn("sync", "err", err)
	}
	cancel()

	slog.Info("running, press ctrl-c to stop")
	<-ctx.Done()
}

func fatal(step string, err error) {
	slog.Error(step, "err", err)
	os.Exit(1)
}
