package collector

import (
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/gvc0/gvweave/checkexpr"
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/logic"
	"github.com/gvc0/gvweave/residual"
)

// interner implements the (location, value) interning table for
// condition terms: first-seen order assigns dense,
// ascending IDs, and a later reference to the same (location, value)
// pair reuses the existing term rather than minting a new one.
type interner struct {
	seen  map[Location]map[string]*ConditionTerm
	terms []*ConditionTerm
}

func newInterner() *interner {
	return &interner{seen: map[Location]map[string]*ConditionTerm{}}
}

func (in *interner) intern(at Location, value checkexpr.Expr) *ConditionTerm {
	byValue, ok := in.seen[at]
	if !ok {
		byValue = map[string]*ConditionTerm{}
		in.seen[at] = byValue
	}

	key := value.String()

	if t, ok := byValue[key]; ok {
		return t
	}

	t := &ConditionTerm{ID: len(in.terms), Location: at, Value: value}
	byValue[key] = t
	in.terms = append(in.terms, t)

	tlog.V("intern").Printw("condition term interned", "id", t.ID, "at", at, "value", value, "from", loc.Callers(1, 3))

	return t
}

// conjunctionFor lowers a residual check's branch-condition stack to a
// logic.Conjunction, interning one
// condition term per frame and recording the accumulated inner
// conjunction into that term's own `when` set as it goes.
func conjunctionFor(
	m *ir.Method,
	trace *residual.MethodTrace,
	idx *opIndex,
	in *interner,
	branches []residual.BranchFrame,
) (logic.Conjunction, error) {
	conj := logic.NewConjunction()

	for _, frame := range branches {
		loc, err := frameLocation(m, trace, idx, frame)
		if err != nil {
			return logic.Conjunction{}, err
		}

		ce, err := checkexpr.FromViper(frame.Cond, m)
		if err != nil {
			return logic.Conjunction{}, InvalidExpressionError{Method: m, Node: frame.At, Reason: err.Error()}
		}

		value, polarity := normalizePolarity(ce)

		t := in.intern(loc, value)
		t.When = t.When.Or(conj)

		conj = conj.Extend(logic.Term{ID: t.ID, Polarity: polarity})
	}

	return conj, nil
}

// normalizePolarity rewrites "!x" to "(x, false)", else "(x, true)".
func normalizePolarity(e checkexpr.Expr) (checkexpr.Expr, bool) {
	if u, ok := e.(*checkexpr.Unary); ok && u.Op == checkexpr.Not {
		return u.Operand, false
	}

	return e, true
}

func frameLocation(m *ir.Method, trace *residual.MethodTrace, idx *opIndex, frame residual.BranchFrame) (Location, error) {
	if frame.At == trace.Pre {
		return Location{Phase: PhaseMethodPre}, nil
	}

	if frame.At == trace.Post {
		return Location{Phase: PhaseMethodPost}, nil
	}

	op, ok := idx.byNode[frame.At]
	if !ok {
		return Location{}, StructuralMismatchError{
			Method: m,
			Reason: "branch frame references a node never indexed by Phase A",
		}
	}

	return Location{Op: op, Phase: PhasePre}, nil
}
