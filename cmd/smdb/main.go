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

// smdb is an interactive machine debugger in the spirit of gdb.
//
// Commands arrive on stdin, one per line, so a keyboard works and so
// does a file:
//
//	smdb -c charts <<EOF
//	chart turnstile.yaml
//	start Turnstile t
//	send t coin
//	print t
//	EOF
//
// With -d, smdb opens the same bolt database a smachd uses, which
// makes it a way to poke at a fleet post mortem.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rabe42/state-machines/caps"
	"github.com/rabe42/state-machines/caps/goja"
	"github.com/rabe42/state-machines/chart"
	"github.com/rabe42/state-machines/journal"
	jsqlite "github.com/rabe42/state-machines/journal/sqlite"
	"github.com/rabe42/state-machines/machine"
	"github.com/rabe42/state-machines/service"
	"github.com/rabe42/state-machines/warehouse"
	"github.com/rabe42/state-machines/warehouse/bolt"

	"github.com/jsccast/yaml"
)

type Opts struct {
	chartDir string
	capsDir  string
	libDir   string
	dbFile   string
	jdbFile  string
	echo     bool
}

func main() {

	opts := &Opts{}
	flag.StringVar(&opts.chartDir, "c", "charts", "chart directory")
	flag.StringVar(&opts.capsDir, "caps", "", "scripted capability directory")
	flag.StringVar(&opts.libDir, "l", "libs", "libraries directory")
	flag.StringVar(&opts.dbFile, "d", "", "bolt database for charts and machine snapshots")
	flag.StringVar(&opts.jdbFile, "j", "", "sqlite journal database")
	flag.BoolVar(&opts.echo, "e", false, "echo input")
	flag.Parse()

	if err := opts.run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func (opts *Opts) run() error {

	in := os.Stdin
	w := os.Stdout

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := caps.Prelude()
	interp := goja.NewInterpreter()
	interp.LibraryProvider = goja.MakeFileLibraryProvider(opts.libDir)

	if opts.capsDir != "" {
		srcs, err := goja.LoadDir(opts.capsDir)
		if err != nil {
			return err
		}
		if err := goja.RegisterAll(ctx, registry, interp, srcs); err != nil {
			return err
		}
	}

	var store warehouse.Store
	if opts.dbFile != "" {
		bs := bolt.NewStore(opts.dbFile)
		if err := bs.Open(ctx); err != nil {
			return err
		}
		defer bs.Close(ctx)
		store = bs
	}

	var j journal.Journal
	if opts.jdbFile != "" {
		sj, err := jsqlite.Open(opts.jdbFile)
		if err != nil {
			return err
		}
		defer sj.Close()
		j = sj
	}

	svc := service.NewService(service.Options{
		Caps:    registry,
		Store:   store,
		Journal: j,
		Interp:  interp,
	})
	defer svc.Shutdown()

	if err := svc.Boot(ctx); err != nil {
		return err
	}

	var (
		loadChart = regexp.MustCompile("^chart +(.+)")

		reloadChart = regexp.MustCompile("^reload +(\\S+)")

		listCharts = regexp.MustCompile("^charts$")

		start = regexp.MustCompile("^start +(\\S+)( +(\\S+))?$")

		listMachines = regexp.MustCompile("^machines$")

		send = regexp.MustCompile("^send +(\\S+) +(\\S+)$")

		set = regexp.MustCompile("^set +(\\S+) +(\\S+) +(.+)")

		enabled = regexp.MustCompile("^enabled +(\\S+)")

		history = regexp.MustCompile("^history +(\\S+)( +([0-9]+))?")

		print = regexp.MustCompile("^print( +(\\S+))?$")

		rem = regexp.MustCompile("^(rem|del|remove|delete) +(\\S+)")

		help = regexp.MustCompile("^(help|h|\\?)")

		debug = regexp.MustCompile("^debug(ging)? (on|off)")

		outputPrefix = "# "

		debugging = false

		say = func(format string, args ...interface{}) {
			fmt.Fprintf(w, outputPrefix+format+"\n", args...)
		}

		protest = func(format string, args ...interface{}) {
			say("error: "+format, args...)
		}

		// aliases maps short names to machine ids, which are
		// too long to type twice.
		aliases = make(map[string]string)

		// chartFiles remembers where each chart came from so
		// reload can go back there.
		chartFiles = make(map[string]string)
	)

	resolve := func(id string) string {
		if mid, have := aliases[id]; have {
			return mid
		}
		return id
	}

	nickname := func(mid string) string {
		for alias, id := range aliases {
			if id == mid {
				return alias
			}
		}
		return ""
	}

	report := func(rep *machine.Report) {
		if rep == nil {
			return
		}
		for i, f := range rep.Fired {
			label := f.Event
			if label == "" {
				label = "(condition)"
			}
			say("  %02d %-10s %s -> %s", i, label, f.From, f.To)
		}
		say("  at      %s", rep.To)
		say("  enabled %s", strings.Join(rep.Enabled, " "))
		if debugging {
			js, _ := json.MarshalIndent(rep, outputPrefix, "  ")
			say("%s", js)
		}
	}

	printer := func(mid string) error {
		st, err := svc.Status(ctx, mid)
		if err != nil {
			return err
		}
		say("  at:       %s", st.At)
		js, err := json.Marshal(st.Bindings)
		if err != nil {
			return err // Internal error
		}
		say("  bindings: %s", js)
		return nil
	}

	putChart := func(filename string) {
		def, err := chart.ReadFile(filepath.Join(opts.chartDir, filename))
		if err != nil {
			protest("couldn't read chart %s: %s", filename, err)
			return
		}
		id, err := svc.PutChart(ctx, def)
		if err != nil {
			protest("couldn't store chart %s: %s", filename, err)
			return
		}
		chartFiles[id] = filename
		say("chart %s", id)
	}

	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)

		if opts.echo {
			fmt.Println(line)
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		var ss []string

		if ss = help.FindStringSubmatch(line); 0 < len(ss) {
			for _, s := range strings.Split(doc(), "\n") {
				say("%s", s)
			}
			continue
		}
		if ss = loadChart.FindStringSubmatch(line); 0 < len(ss) {
			putChart(strings.TrimSpace(ss[1]))
			continue
		}
		if ss = reloadChart.FindStringSubmatch(line); 0 < len(ss) {
			id := ss[1]
			filename, have := chartFiles[id]
			if !have {
				protest("no chart filename history for '%s'", id)
				continue
			}
			say("reloading chart '%s' from %s", id, filename)
			putChart(filename)
			continue
		}
		if ss = listCharts.FindStringSubmatch(line); 0 < len(ss) {
			ids := svc.ChartIds(ctx)
			sort.Strings(ids)
			for _, id := range ids {
				say("chart %s", id)
			}
			say("%d charts", len(ids))
			continue
		}
		if ss = start.FindStringSubmatch(line); 0 < len(ss) {
			chartId, alias := ss[1], ss[3]
			mid, rep, err := svc.Start(ctx, chartId)
			if err != nil {
				protest("couldn't start '%s': %s", chartId, err)
				continue
			}
			if alias != "" {
				aliases[alias] = mid
			}
			say("machine %s", mid)
			report(rep)
			continue
		}
		if ss = listMachines.FindStringSubmatch(line); 0 < len(ss) {
			mids := svc.MachineIds(ctx)
			sort.Strings(mids)
			for _, mid := range mids {
				if alias := nickname(mid); alias != "" {
					say("machine %s (%s)", mid, alias)
					continue
				}
				say("machine %s", mid)
			}
			say("%d machines", len(mids))
			continue
		}
		if ss = send.FindStringSubmatch(line); 0 < len(ss) {
			mid, event := resolve(ss[1]), ss[2]
			rep, err := svc.SendEvent(ctx, mid, event)
			if err != nil {
				protest("send failed: %s", err)
				continue
			}
			if len(rep.Fired) == 0 {
				say("nothing fired")
			}
			report(rep)
			continue
		}
		if ss = set.FindStringSubmatch(line); 0 < len(ss) {
			mid, name, src := resolve(ss[1]), ss[2], ss[3]
			var v chart.Value
			if err := yaml.Unmarshal([]byte(src), &v); err != nil {
				protest("couldn't parse value %s: %s", src, err)
				continue
			}
			rep, err := svc.SetVariable(ctx, mid, name, v)
			if err != nil {
				protest("set failed: %s", err)
				continue
			}
			report(rep)
			continue
		}
		if ss = enabled.FindStringSubmatch(line); 0 < len(ss) {
			mid := resolve(ss[1])
			events, err := svc.EnabledEvents(ctx, mid)
			if err != nil {
				protest("%s", err)
				continue
			}
			say("enabled %s", strings.Join(events, " "))
			continue
		}
		if ss = history.FindStringSubmatch(line); 0 < len(ss) {
			mid := resolve(ss[1])
			var after int64
			if ss[3] != "" {
				after, _ = strconv.ParseInt(ss[3], 10, 64)
			}
			entries, err := svc.History(ctx, mid, after, 100)
			if err != nil {
				protest("%s", err)
				continue
			}
			for _, e := range entries {
				switch e.Kind {
				case journal.KindEvent:
					say("%4d %-10s %s", e.Seq, e.Kind, e.Event)
				case journal.KindSetVar:
					say("%4d %-10s %s = %s", e.Seq, e.Kind, e.Variable, e.Value)
				case journal.KindTransition:
					say("%4d %-10s %s -> %s", e.Seq, e.Kind, e.From, e.To)
				case journal.KindError:
					say("%4d %-10s %s", e.Seq, e.Kind, e.Error)
				default:
					say("%4d %-10s", e.Seq, e.Kind)
				}
			}
			say("%d entries", len(entries))
			continue
		}
		if ss = rem.FindStringSubmatch(line); 0 < len(ss) {
			mid := resolve(ss[2])
			if err := svc.RemoveMachine(ctx, mid); err != nil {
				protest("%s", err)
				continue
			}
			for alias, id := range aliases {
				if id == mid {
					delete(aliases, alias)
				}
			}
			say("%d machines", len(svc.MachineIds(ctx)))
			continue
		}
		if ss = debug.FindStringSubmatch(line); 0 < len(ss) {
			switch ss[2] {
			case "on":
				debugging = true
				say("debugging")
			case "off":
				debugging = false
				say("not debugging")
			}
			continue
		}
		if ss = print.FindStringSubmatch(line); 0 < len(ss) {
			mid := ss[2]
			if mid == "" {
				mids := svc.MachineIds(ctx)
				sort.Strings(mids)
				for _, mid := range mids {
					say("machine %s:", mid)
					if err := printer(mid); err != nil {
						protest("%s", err)
					}
				}
				continue
			}
			if err := printer(resolve(mid)); err != nil {
				protest("%s", err)
			}
			continue
		}

		protest("unsupported command: %s", line)
	}
}

func doc() string {
	return `
  chart FILENAME          Load a chart definition (relative to -c)
  reload CHARTID          Reload the last file for that chart
  charts                  List the loaded charts
  start CHARTID [ALIAS]   Start a machine, optionally under an alias
  machines                List the machines
  send ID EVENT           Send an event to the machine with that ID
  set ID VAR VALUE        Set a variable; VALUE is YAML
  enabled ID              Show the events that could fire now
  history ID [AFTER]      Show journal entries after sequence AFTER
  print [ID]              Print the state of the machine with that ID
  rem ID                  Remove the machine with that ID
  debug on/off            When debugging, show full reports
  help                    Show this documentation

  An ID can be an alias from start or a full machine id.
`
}
