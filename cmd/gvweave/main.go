package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nikandfor/hacked/hfmt"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/gvc0/gvweave/collector"
	"github.com/gvc0/gvweave/weave"
)

func main() {
	weaveCmd := &cli.Command{
		Name:   "weave",
		Action: weaveAct,
		Args:   cli.Args{},
	}

	traceCmd := &cli.Command{
		Name:   "trace",
		Action: traceAct,
		Args:   cli.Args{},
	}

	app := &cli.Command{
		Name:        "gvweave",
		Description: "gvweave injects runtime permission checks into a gradually-verified program",
		Commands: []*cli.Command{
			weaveCmd,
			traceCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

// weaveAct reads a program+trace+table Input from each file named in
// c.Args, weaves it, and writes the mutated program as JSON to stdout.
func weaveAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		in, err := readInput(a)
		if err != nil {
			return errors.Wrap(err, "weave %v", a)
		}

		if _, err := weave.Weave(ctx, in); err != nil {
			return errors.Wrap(err, "weave %v", a)
		}

		out, err := json.MarshalIndent(in.Program, "", "  ")
		if err != nil {
			return errors.Wrap(err, "weave %v: encode result", a)
		}

		fmt.Printf("%s\n", out)
	}

	return nil
}

// traceAct runs only the collector over each named file and dumps a
// summary of its CollectedProgram, for inspecting what the weave would
// do without mutating anything.
func traceAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		in, err := readInput(a)
		if err != nil {
			return errors.Wrap(err, "trace %v", a)
		}

		traces, tables, err := in.Bind()
		if err != nil {
			return errors.Wrap(err, "trace %v", a)
		}

		cp, err := collector.Collect(ctx, in.Program, traces, tables)
		if err != nil {
			return errors.Wrap(err, "trace %v", a)
		}

		printTrace(cp)
	}

	return nil
}

func readInput(path string) (*weave.Input, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	var in weave.Input

	if err := json.Unmarshal(data, &in); err != nil {
		return nil, errors.Wrap(err, "decode input")
	}

	return &in, nil
}

// printTrace renders cp the way a debugger dump is built in this
// codebase's idiom: append into one growing buffer rather than issuing
// a Printf per line, then write it out in a single call.
func printTrace(cp *collector.CollectedProgram) {
	var b []byte

	for _, cm := range cp.Methods {
		b = hfmt.Appendf(b, "method %s: style=%s implicit_return=%v tracking=%v\n",
			cm.Method.Name, cm.CallStyle, cm.HasImplicitReturn, cm.RequiresTracking)

		for _, t := range cm.Terms {
			b = hfmt.Appendf(b, "  term #%d at %s: %v\n", t.ID, t.Location, t.Value)
		}

		for _, rc := range cm.Checks {
			b = hfmt.Appendf(b, "  check at %s: %v\n", rc.Location, rc.Check)
		}
	}

	os.Stdout.Write(b)
}
