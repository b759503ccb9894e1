package collector

import (
	"nikand.dev/go/heap"
	"tlog.app/go/errors"

	"github.com/gvc0/gvweave/check"
	"github.com/gvc0/gvweave/ir"
)

// originatingSpec re-traverses the originating specification: given a
// location marked for a full permission walk, return the specification
// expression that governs it and the formal->actual substitution to
// apply while walking it (non-empty only at call sites). A nil expr
// with a nil error means the location has no walkable specification —
// currently only Fold/Unfold, whose predicate bodies are left opaque to
// the collector: no separation check is enumerated there, and only the
// predicate checks the residual entries name directly are emitted.
func originatingSpec(loc Location, m *ir.Method) (ir.Expr, map[string]ir.Expr, error) {
	switch loc.Phase {
	case PhaseMethodPre:
		return m.Pre, nil, nil
	case PhaseMethodPost:
		return m.Post, nil, nil
	}

	switch op := loc.Op.(type) {
	case *ir.Invoke:
		if op.Callee == nil {
			return nil, nil, InvalidSpecificationError{Method: m, Loc: loc, Reason: "invoke has no resolved callee"}
		}

		subst, err := bindArgs(m, loc, op)
		if err != nil {
			return nil, nil, err
		}

		if loc.Phase == PhasePost {
			return op.Callee.Post, subst, nil
		}

		return op.Callee.Pre, subst, nil

	case *ir.While:
		return op.Invariant, nil, nil

	case *ir.Assert:
		return op.Value, nil, nil

	case *ir.Fold, *ir.Unfold:
		return nil, nil, nil

	default:
		return nil, nil, InvalidSpecificationError{Method: m, Loc: loc, Reason: "location has no associated specification to walk"}
	}
}

func bindArgs(m *ir.Method, loc Location, op *ir.Invoke) (map[string]ir.Expr, error) {
	if len(op.Args) != len(op.Callee.Params) {
		return nil, InvalidSpecificationError{Method: m, Loc: loc, Reason: "call-site argument count disagrees with callee signature"}
	}

	subst := make(map[string]ir.Expr, len(op.Args))

	for i, p := range op.Callee.Params {
		subst[p.Name] = op.Args[i]
	}

	return subst, nil
}

// permJob is one pending node of the specification tree being
// flattened; seq preserves source order across the worklist so
// enumeration order matches the "verifier-determined
// order of nested permission checks" even though Conditional nodes split
// the walk into two branches.
type permJob struct {
	expr ir.Expr
	seq  int
}

func permJobLess(d []permJob, i, j int) bool {
	return d[i].seq < d[j].seq
}

// enumerateAccessibilities implements the enumeration half of Phase D:
// walk spec (substituting subst at its Var leaves), following Binary-And
// conjunction and Conditional branches, taking only the precise part of
// an Imprecise specification, and collect one check.Check per
// Accessibility/PredicateInstance node encountered.
func enumerateAccessibilities(spec ir.Expr, subst map[string]ir.Expr, m *ir.Method) ([]check.Check, error) {
	jobs := heap.Heap[permJob]{Less: permJobLess}
	jobs.Push(permJob{expr: ir.PrecisePart(spec), seq: 0})

	// Children are pushed right-then-left with ever-smaller seqs, so the
	// heap always pops the leftmost pending node next: a pre-order walk.
	next := -1
	var out []check.Check

	for jobs.Len() > 0 {
		j := jobs.Pop()

		switch x := j.expr.(type) {
		case nil:
			continue

		case *ir.Binary:
			if x.Op != ir.BinAnd {
				continue
			}

			jobs.Push(permJob{expr: x.Right, seq: next})
			next--
			jobs.Push(permJob{expr: x.Left, seq: next})
			next--

		case *ir.Conditional:
			jobs.Push(permJob{expr: x.Else, seq: next})
			next--
			jobs.Push(permJob{expr: x.Then, seq: next})
			next--

		case *ir.Imprecise:
			jobs.Push(permJob{expr: ir.PrecisePart(x), seq: next})
			next--

		case *ir.Accessibility:
			ref, err := accessibilityFieldRef(x.Member, subst, m)
			if err != nil {
				return nil, err
			}

			out = append(out, check.Check{Kind: check.KindFieldAccessibility, Field: ref})

		case *ir.PredicateInstance:
			args, err := lowerIRExprs(x.Args, subst, m)
			if err != nil {
				return nil, errors.Wrap(err, "predicate %v args", x.Name)
			}

			out = append(out, check.Check{
				Kind:      check.KindPredicateAccessibility,
				Predicate: check.PredicateRef{Name: x.Name, Args: args},
			})

		default:
			// A plain boolean conjunct (comparisons, literals, calls to
			// Result, ...) carries no accessibility and is skipped.
		}
	}

	return out, nil
}

func accessibilityFieldRef(member ir.Expr, subst map[string]ir.Expr, m *ir.Method) (check.FieldRef, error) {
	switch x := member.(type) {
	case *ir.FieldExpr:
		root, err := lowerIRExpr(x.Root, subst, m)
		if err != nil {
			return check.FieldRef{}, err
		}

		return check.FieldRef{Root: root, Struct: x.Struct, Name: x.Name}, nil

	case *ir.DerefExpr:
		root, err := lowerIRExpr(x.Operand, subst, m)
		if err != nil {
			return check.FieldRef{}, err
		}

		// A dereference names no static struct/field pair; "*" is a
		// stable synthetic identity distinguishing it from any real
		// field so interning and separation still key correctly.
		return check.FieldRef{Root: root, Struct: "", Name: "*"}, nil

	default:
		return check.FieldRef{}, InvalidExpressionError{
			Method: m,
			Reason: "acc(...) member is neither a field access nor a dereference",
		}
	}
}

// separationChecks implements the second half of Phase D: emit one
// FieldSeparation/PredicateSeparation check per distinct *pair* of
// permissions enumerated at loc, skipping emission entirely when fewer
// than two distinct permissions were found (an open question flags the
// source's own bug of always emitting one even with a single
// permission; this does not repeat it).
func separationChecks(perms []check.Check) []check.Check {
	type keyed struct {
		key string
		c   check.Check
	}

	seen := map[string]bool{}

	var uniq []keyed

	for _, c := range perms {
		k := c.String()
		if seen[k] {
			continue
		}

		seen[k] = true
		uniq = append(uniq, keyed{key: k, c: c})
	}

	if len(uniq) < 2 {
		return nil
	}

	var out []check.Check

	for i := 0; i < len(uniq); i++ {
		for j := i + 1; j < len(uniq); j++ {
			out = append(out, separationOf(uniq[i].c, uniq[j].c))
		}
	}

	return out
}

func separationOf(a, b check.Check) check.Check {
	partner := b

	switch a.Kind {
	case check.KindFieldAccessibility:
		return check.Check{Kind: check.KindFieldSeparation, Field: a.Field, Partner: &partner}
	default:
		return check.Check{Kind: check.KindPredicateSeparation, Predicate: a.Predicate, Partner: &partner}
	}
}
