package collector

import (
	"context"
	"sort"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/gvc0/gvweave/check"
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/logic"
	"github.com/gvc0/gvweave/residual"
)

// Collect runs the full collection pipeline over every method of
// program, given each method's verifier statement trace and
// residual-check table, and
// returns the resulting CollectedProgram. Methods missing a trace are
// skipped (no residual checks to attribute, but call-style and
// implicit-return classification still apply).
func Collect(
	ctx context.Context,
	program *ir.Program,
	traces map[*ir.Method]*residual.MethodTrace,
	tables map[*ir.Method]residual.Table,
) (cp *CollectedProgram, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "collector: collect program")
	defer tr.Finish("err", &err)

	cp = &CollectedProgram{byMethod: map[*ir.Method]*CollectedMethod{}}

	for _, m := range program.Methods {
		cm, err := collectMethod(ctx, m, traces[m], tables[m])
		if err != nil {
			return nil, errors.Wrap(err, "method %v", m.Name)
		}

		cp.Methods = append(cp.Methods, cm)
		cp.byMethod[m] = cm
	}

	return cp, nil
}

func collectMethod(ctx context.Context, m *ir.Method, trace *residual.MethodTrace, table residual.Table) (cm *CollectedMethod, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "collector: collect method", "name", m.Name)
	defer tr.Finish("err", &err)

	cm = &CollectedMethod{
		Method:              m,
		FullPermissionWalk:  map[Location]bool{},
		CallStyle:           classifyCallStyle(m),
		HasImplicitReturn:   hasImplicitReturn(m.Body),
	}

	collectEnumerations(m.Body, cm)

	if trace == nil {
		return cm, nil
	}

	idx, err := align(m, trace)
	if err != nil {
		return nil, err
	}

	in := newInterner()
	checks := newCheckAccum()
	var fullWalkOrder []Location

	for _, entry := range sortedEntries(table) {
		loc, err := locationFor(m, trace, idx, entry)
		if err != nil {
			return nil, err
		}

		c, err := check.FromViper(entry.Formula, m)
		if err != nil {
			return nil, InvalidExpressionError{Method: m, Node: entry.Context, Reason: err.Error()}
		}

		conj, err := conjunctionFor(m, trace, idx, in, entry.Branches)
		if err != nil {
			return nil, err
		}

		checks.add(loc, c, logic.Disjunction{conj})

		if isAccessKind(c.Kind) {
			if !cm.FullPermissionWalk[loc] {
				cm.FullPermissionWalk[loc] = true
				fullWalkOrder = append(fullWalkOrder, loc)
			}
		}
	}

	for _, loc := range fullWalkOrder {
		spec, subst, err := originatingSpec(loc, m)
		if err != nil {
			return nil, err
		}

		if spec == nil {
			continue
		}

		perms, err := enumerateAccessibilities(spec, subst, m)
		if err != nil {
			return nil, err
		}

		for _, sc := range separationChecks(perms) {
			checks.add(loc, sc, nil)
		}
	}

	cm.Checks = checks.flatten()
	cm.Terms = in.terms

	simplifyAndPrune(cm)

	for _, c := range cm.Checks {
		if isAccessKind(c.Check.Kind) {
			cm.RequiresTracking = true
			break
		}
	}

	tr.Printw("collected", "terms", len(cm.Terms), "checks", len(cm.Checks), "call_style", cm.CallStyle)

	return cm, nil
}

func isAccessKind(k check.Kind) bool {
	switch k {
	case check.KindFieldAccessibility, check.KindFieldSeparation,
		check.KindPredicateAccessibility, check.KindPredicateSeparation:
		return true
	default:
		return false
	}
}

// simplifyAndPrune simplifies every check's `when` and every term's
// `when`, then drop any term not
// reachable from a surviving check (directly or via another live
// term's own `when`).
func simplifyAndPrune(cm *CollectedMethod) {
	for i := range cm.Checks {
		cm.Checks[i].When = logic.Simplify(cm.Checks[i].When)
	}

	for _, t := range cm.Terms {
		t.When = logic.Simplify(t.When)
	}

	live := make([]bool, len(cm.Terms))
	var worklist []int

	mark := func(id int) {
		if id >= 0 && id < len(live) && !live[id] {
			live[id] = true
			worklist = append(worklist, id)
		}
	}

	for _, c := range cm.Checks {
		for _, conj := range c.When {
			for _, t := range conj.Terms() {
				mark(t.ID)
			}
		}
	}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]

		for _, conj := range cm.Terms[id].When {
			for _, t := range conj.Terms() {
				mark(t.ID)
			}
		}
	}

	kept := cm.Terms[:0:0]

	for i, t := range cm.Terms {
		if live[i] {
			kept = append(kept, t)
		}
	}

	cm.Terms = kept
}

func sortedEntries(table residual.Table) []residual.CheckEntry {
	type keyed struct {
		node  residual.NodeID
		order int
		entry residual.CheckEntry
	}

	var all []keyed

	for node, entries := range table {
		for i, e := range entries {
			all = append(all, keyed{node: node, order: i, entry: e})
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].node != all[j].node {
			return all[i].node < all[j].node
		}

		return all[i].order < all[j].order
	})

	out := make([]residual.CheckEntry, len(all))
	for i, k := range all {
		out[i] = k.entry
	}

	return out
}

// collectEnumerations walks m's body recursively, filling in cm's
// Returns/Invokes/Allocs inventories.
func collectEnumerations(body []ir.Op, cm *CollectedMethod) {
	for _, op := range body {
		switch x := op.(type) {
		case *ir.Return:
			cm.Returns = append(cm.Returns, x)
		case *ir.Invoke:
			cm.Invokes = append(cm.Invokes, x)
		case *ir.AllocValue:
			cm.Allocs = append(cm.Allocs, x)
		case *ir.AllocStruct:
			cm.Allocs = append(cm.Allocs, x)
		case *ir.If:
			collectEnumerations(x.Then, cm)
			collectEnumerations(x.Else, cm)
		case *ir.While:
			collectEnumerations(x.Body, cm)
		}
	}
}
