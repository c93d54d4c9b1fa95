// Package goja hosts capabilities written in ECMAScript 5.1+, using
// https://github.com/dop251/goja.
//
// A Source names a capability, says whether it is an action or a
// predicate, and carries the code.  Sources usually come from a
// library directory (LoadDir) and are registered into a
// caps.Registry.
package goja

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"github.com/jsccast/yaml"
	log "github.com/sirupsen/logrus"

	"github.com/rabe42/state-machines/caps"
	"github.com/rabe42/state-machines/chart"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned when a canceled context stops the
	// script.
	Interrupted = errors.New(InterruptedMessage)
)

// Source defines one capability in ECMAScript.
//
// The code runs as the body of a function, so a predicate says
// `return` to deliver its verdict.  Libraries named in Requires are
// concatenated in front of the code at compile time.
type Source struct {
	Name string `json:"name" yaml:"name"`

	// Kind is "action" or "predicate".  Empty means action.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`

	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Params, if given, is checked by the registry before each
	// call.
	Params []caps.ParamDecl `json:"params,omitempty" yaml:"params,omitempty"`

	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	Code string `json:"code" yaml:"code"`
}

// ReadSource parses a Source from JSON or YAML.
func ReadSource(bs []byte) (*Source, error) {
	var src Source
	trimmed := bytes.TrimSpace(bs)
	if 0 < len(trimmed) && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &src); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(bs, &src); err != nil {
		return nil, err
	}
	if src.Name == "" {
		return nil, errors.New("capability has no name")
	}
	if src.Code == "" {
		return nil, errors.New("capability has no code")
	}
	switch src.Kind {
	case "":
		src.Kind = caps.KindAction
	case caps.KindAction, caps.KindPredicate:
	default:
		return nil, fmt.Errorf("bad capability kind '%s'", src.Kind)
	}
	return &src, nil
}

// LoadDir reads capability definitions from a directory: every .yaml,
// .yml, and .json file holds one Source.
func LoadDir(dir string) ([]*Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var srcs []*Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		bs, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		src, err := ReadSource(bs)
		if err != nil {
			return nil, fmt.Errorf("%s: %s", e.Name(), err.Error())
		}
		srcs = append(srcs, src)
	}
	return srcs, nil
}

// Interpreter compiles and runs capability Sources.
type Interpreter struct {

	// LibraryProvider is a pluggable library provider.  Nil means
	// DefaultLibraryProvider.
	//
	// A problem: for a multitenant service we'd need some access
	// control here.  Perhaps a value in the ctx.
	LibraryProvider func(ctx context.Context, i *Interpreter, name string) (string, error)

	// Testing exposes sleep() to scripts.
	Testing bool
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// ProvideLibrary resolves a library name into its source.
func (i *Interpreter) ProvideLibrary(ctx context.Context, name string) (string, error) {
	if i.LibraryProvider != nil {
		return i.LibraryProvider(ctx, i, name)
	}
	return DefaultLibraryProvider(ctx, i, name)
}

var DefaultLibraryProvider = MakeFileLibraryProvider(".")

// MakeFileLibraryProvider supports library names that are URLs with
// protocols of "file", "http", and "https".  File names resolve
// relative to the given directory.
func MakeFileLibraryProvider(dir string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		parts := strings.SplitN(name, "://", 2)
		if 2 != len(parts) {
			return "", fmt.Errorf("bad link '%s'", name)
		}
		switch parts[0] {
		case "file":
			bs, err := os.ReadFile(filepath.Join(dir, parts[1]))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		case "http", "https":
			req, err := http.NewRequestWithContext(ctx, "GET", name, nil)
			if err != nil {
				return "", err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("library fetch status %s", resp.Status)
			}
			bs, err := io.ReadAll(resp.Body)
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("unknown protocol '%s'", parts[0])
		}
	}
}

// MakeMapLibraryProvider serves libraries from the given map.
func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, *Interpreter, string) (string, error) {
	return func(ctx context.Context, i *Interpreter, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// Compile wraps the code in a function, prepends any required
// libraries, and compiles the result.
//
// This method can block if the library provider blocks to fetch an
// external library.
func (i *Interpreter) Compile(ctx context.Context, src *Source) (*goja.Program, error) {
	code := wrapSrc(src.Code)

	var libsSrc string
	for _, lib := range src.Requires {
		libSrc, err := i.ProvideLibrary(ctx, lib)
		if err != nil {
			return nil, err
		}
		libsSrc += libSrc + "\n"
	}
	code = libsSrc + code

	p, err := goja.Compile(src.Name, code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return p, nil
}

// Register compiles the Source and registers it as a capability.
func (i *Interpreter) Register(ctx context.Context, r *caps.Registry, src *Source) error {
	p, err := i.Compile(ctx, src)
	if err != nil {
		return err
	}
	d := caps.Decl{
		Name:   src.Name,
		Doc:    src.Doc,
		Params: src.Params,
	}
	switch src.Kind {
	case caps.KindPredicate:
		r.RegisterPredicate(d, func(ctx context.Context, params []*chart.Parameter) (bool, error) {
			v, err := i.run(ctx, p, params)
			if err != nil {
				return false, err
			}
			x := v.Export()
			b, is := x.(bool)
			if !is {
				return false, fmt.Errorf("%#v (%T) isn't a boolean", x, x)
			}
			return b, nil
		})
	default:
		r.RegisterAction(d, func(ctx context.Context, params []*chart.Parameter) error {
			_, err := i.run(ctx, p, params)
			return err
		})
	}
	return nil
}

// RegisterAll compiles and registers every Source, as LoadDir found
// them.
func RegisterAll(ctx context.Context, r *caps.Registry, i *Interpreter, srcs []*Source) error {
	for _, src := range srcs {
		if err := i.Register(ctx, r, src); err != nil {
			return err
		}
	}
	return nil
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// run executes a compiled program.
//
// The following properties are available from the runtime at _.
//
//	params: call parameters by name.
//	paramList: call parameters in call order.
//	cronNext(expr): the next time matching the cron expression,
//	  as an RFC 3339 string.
//	esc(s): URL query-escape the given string.
//	log(x): log x as JSON.
//
// The Testing flag must be set to see sleep(ms).
func (i *Interpreter) run(ctx context.Context, p *goja.Program, params []*chart.Parameter) (goja.Value, error) {
	byName := make(map[string]interface{}, len(params))
	inOrder := make([]interface{}, len(params))
	for j, param := range params {
		byName[param.Name] = param.Value.Interface()
		inOrder[j] = param.Value.Interface()
	}

	env := map[string]interface{}{
		"ctx":       ctx,
		"params":    byName,
		"paramList": inOrder,
	}

	o := goja.New()
	o.Set("_", env)

	if i.Testing {
		o.Set("sleep", func(ms int) {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		})
	}

	env["cronNext"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		s, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		c, err := cronexpr.Parse(s)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	env["esc"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		s, is := x.(string)
		if !is {
			protest(o, "not a string")
		}
		return url.QueryEscape(s)
	}

	env["log"] = func(x interface{}) interface{} {
		switch vv := x.(type) {
		case goja.Value:
			x = vv.Export()
		}
		js, err := json.Marshal(&x)
		if err != nil {
			log.Info("goja.log (can't marshal: " + err.Error() + ")")
		} else {
			log.Info(string(js))
		}
		return x
	}

	// We want this goroutine terminated as soon as possible.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// If run calls cancel() after RunProgram returns, we
		// never see this interrupt, which is the behavior we
		// want: we weren't actually interrupted.
		o.Interrupt(InterruptedMessage)
	}()

	v, err := o.RunProgram(p)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return nil, Interrupted
		}
		return nil, err
	}

	return v, nil
}
