// Package weave ties collector and injector together into the single
// entry point cmd/gvweave drives: given a program and, for each method
// that was symbolically checked, its verifier trace and residual-check
// table, produce the same program with every runtime check, permission
// object, and calling-convention parameter woven in.
package weave

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/gvc0/gvweave/collector"
	"github.com/gvc0/gvweave/injector"
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/residual"
)

// Input is the artifact an external resolver/verifier pipeline hands
// gvweave: the program to weave, and per-method residual checking
// output keyed by method name (a JSON-friendly stand-in for the
// *ir.Method-keyed maps collector.Collect takes directly).
type Input struct {
	Program *ir.Program                      `json:"program"`
	Traces  map[string]*residual.MethodTrace `json:"traces,omitempty"`
	Tables  map[string]residual.Table        `json:"tables,omitempty"`
}

// Weave runs collection then injection over in.Program in place and
// returns the collected program the weave was based on, for a caller
// that wants to inspect it (cmd/gvweave's trace subcommand instead
// calls Bind and collector.Collect itself, without injecting).
func Weave(ctx context.Context, in *Input) (cp *collector.CollectedProgram, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "weave: weave program")
	defer tr.Finish("err", &err)

	traces, tables, err := in.Bind()
	if err != nil {
		return nil, err
	}

	cp, err = collector.Collect(ctx, in.Program, traces, tables)
	if err != nil {
		return nil, errors.Wrap(err, "collect")
	}

	if err := injector.Inject(ctx, in.Program, cp); err != nil {
		return nil, errors.Wrap(err, "inject")
	}

	return cp, nil
}

// Bind resolves in's name-keyed traces and tables against in.Program's
// actual methods, the shape collector.Collect consumes directly. It is
// exported so cmd/gvweave's trace subcommand, which only wants to run
// the collector, can reuse it without going through Weave.
func (in *Input) Bind() (map[*ir.Method]*residual.MethodTrace, map[*ir.Method]residual.Table, error) {
	byMethod := make(map[string]*ir.Method, len(in.Program.Methods))
	for _, m := range in.Program.Methods {
		byMethod[m.Name] = m
	}

	traces := make(map[*ir.Method]*residual.MethodTrace, len(in.Traces))
	for name, t := range in.Traces {
		m, ok := byMethod[name]
		if !ok {
			return nil, nil, errors.New("weave: trace names unknown method %q", name)
		}

		traces[m] = t
	}

	tables := make(map[*ir.Method]residual.Table, len(in.Tables))
	for name, t := range in.Tables {
		m, ok := byMethod[name]
		if !ok {
			return nil, nil, errors.New("weave: table names unknown method %q", name)
		}

		tables[m] = t
	}

	return traces, tables, nil
}
