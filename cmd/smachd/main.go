/* Copyright 2026 Rabe42
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// smachd hosts charts and their machines behind an HTTP API, with an
// optional MQTT bridge.
//
// For example:
//
//	smachd -l :3000 -c charts -d machines.db -j journal.db
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rabe42/state-machines/caps"
	"github.com/rabe42/state-machines/caps/goja"
	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/journal"
	jsqlite "github.com/rabe42/state-machines/journal/sqlite"
	"github.com/rabe42/state-machines/machine"
	"github.com/rabe42/state-machines/service"
	"github.com/rabe42/state-machines/warehouse"
	"github.com/rabe42/state-machines/warehouse/bolt"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
)

type options struct {
	Listen   string `long:"listen" short:"l" default:":3000" description:"HTTP listen address"`
	ChartDir string `long:"charts" short:"c" description:"directory of chart definitions to load at boot"`
	CapsDir  string `long:"caps" description:"directory of scripted capability sources"`
	LibDir   string `long:"libs" default:"." description:"directory of libraries for scripted capabilities"`
	DBFile   string `long:"db" short:"d" description:"bolt database for charts and machine snapshots"`
	JDBFile  string `long:"journal" short:"j" description:"sqlite journal database"`
	Static   string `long:"static" description:"directory served under /static/"`
	Limit    int    `long:"limit" default:"100" description:"condition transitions allowed per operation"`

	Broker     string `long:"mqtt-broker" description:"MQTT broker URL; empty disables the bridge"`
	MQTTPrefix string `long:"mqtt-prefix" default:"machines" description:"MQTT topic prefix"`
	MQTTUser   string `long:"mqtt-user" description:"MQTT username"`
	MQTTPass   string `long:"mqtt-pass" description:"MQTT password"`

	LogLevel string `long:"log-level" default:"info" description:"log level"`
}

func main() {
	opts := getCLIArgs()
	setLogLevel(opts.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := caps.Prelude()
	interp := goja.NewInterpreter()
	interp.LibraryProvider = goja.MakeFileLibraryProvider(opts.LibDir)

	if opts.CapsDir != "" {
		srcs, err := goja.LoadDir(opts.CapsDir)
		if err != nil {
			log.WithError(err).Fatal("Failed to load capability sources")
		}
		if err := goja.RegisterAll(ctx, registry, interp, srcs); err != nil {
			log.WithError(err).Fatal("Failed to register capability sources")
		}
		log.WithField("count", len(srcs)).Info("scripted capabilities registered")
	}

	var store warehouse.Store
	if opts.DBFile != "" {
		bs := bolt.NewStore(opts.DBFile)
		if err := bs.Open(ctx); err != nil {
			log.WithError(err).Fatal("Failed to open database")
		}
		defer bs.Close(ctx)
		store = bs
	}

	var j journal.Journal
	if opts.JDBFile != "" {
		sj, err := jsqlite.Open(opts.JDBFile)
		if err != nil {
			log.WithError(err).Fatal("Failed to open journal")
		}
		defer sj.Close()
		j = sj
	}

	s := service.NewService(service.Options{
		Ctl:       &machine.Control{Limit: opts.Limit},
		Caps:      registry,
		Store:     store,
		Journal:   j,
		Interp:    interp,
		StaticDir: opts.Static,
	})
	defer s.Shutdown()

	if err := s.Boot(ctx); err != nil {
		log.WithError(err).Fatal("Failed to load persisted state")
	}

	if opts.ChartDir != "" {
		loadCharts(ctx, s, opts.ChartDir)
	}

	if opts.Broker != "" {
		b, err := s.StartMQTT(ctx, service.MQTTOptions{
			Broker:   opts.Broker,
			Prefix:   opts.MQTTPrefix,
			Username: opts.MQTTUser,
			Password: opts.MQTTPass,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to start MQTT bridge")
		}
		defer b.Stop(ctx)
	}

	srv := &http.Server{
		Addr:    opts.Listen,
		Handler: s.Router(),
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		received := <-sig
		log.WithField("signal", received.String()).Info("Received signal")
		cancel()
		if err := srv.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("server shutdown failed")
		}
	}()

	log.WithField("addr", opts.Listen).Info("serving")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server failed")
	}
}

// loadCharts stores every chart definition found in dir.  A
// definition that doesn't validate is fatal; better to find out at
// boot than at /start/.
func loadCharts(ctx context.Context, s *service.Service, dir string) {
	files, err := os.ReadDir(dir)
	if err != nil {
		log.WithError(err).Fatal("Failed to read charts directory")
	}
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		switch filepath.Ext(name) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		def, err := chart.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.WithError(err).WithField("file", name).Fatal("Failed to read chart")
		}
		id, err := s.PutChart(ctx, def)
		if err != nil {
			log.WithError(err).WithField("file", name).Fatal("Failed to store chart")
		}
		log.WithFields(log.Fields{"file": name, "chart": id}).Info("chart loaded")
	}
}

func getCLIArgs() options {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		if fe, is := err.(*flags.Error); is && fe.Type == flags.ErrHelp {
			os.Stdout.WriteString(err.Error() + "\n")
			os.Exit(0)
		}
		log.WithError(err).Fatal("Failed to parse command line arguments:", os.Args)
	}
	return opts
}

func setLogLevel(logLevel string) {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		log.WithError(err).Fatal("Failed to set log level. Valid log levels are:", log.AllLevels)
	}
	log.SetLevel(level)
}
