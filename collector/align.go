package collector

import (
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/residual"
)

// opIndex is align's output: the node-id -> op index for every body op,
// at any nesting depth, that consumed a verifier statement, built by
// walking the IR body in lock-step with the verifier's statement trace.
// Method pre/postcondition nodes are not in it; callers compare against
// MethodTrace.Pre/Post directly.
type opIndex struct {
	byNode map[residual.NodeID]ir.Op
}

// align walks m.Body alongside trace.Statements and records, for every
// IR op that consumes a verifier
// statement, the pairing between that op and the statement's NodeID.
// Any disagreement in kind, or either side running out first, is a
// StructuralMismatchError.
func align(m *ir.Method, trace *residual.MethodTrace) (*opIndex, error) {
	a := &aligner{m: m, stmts: trace.Statements, idx: &opIndex{byNode: map[residual.NodeID]ir.Op{}}}

	if err := a.walk(m.Body); err != nil {
		return nil, err
	}

	if a.pos != len(a.stmts) {
		return nil, StructuralMismatchError{
			Method: m,
			Reason: "verifier produced more statements than the IR body consumed",
		}
	}

	return a.idx, nil
}

type aligner struct {
	m     *ir.Method
	stmts []residual.Statement
	pos   int
	idx   *opIndex
}

func (a *aligner) next() (residual.Statement, bool) {
	if a.pos >= len(a.stmts) {
		return residual.Statement{}, false
	}

	st := a.stmts[a.pos]
	a.pos++

	return st, true
}

func (a *aligner) walk(body []ir.Op) error {
	for _, op := range body {
		if err := a.walkOp(op); err != nil {
			return err
		}
	}

	return nil
}

func (a *aligner) walkOp(op ir.Op) error {
	switch x := op.(type) {
	case *ir.Assert:
		if x.Imperative {
			return nil
		}

		return a.consume(op, residual.StmtAssertSpec)

	case *ir.Return:
		if len(x.Values) == 0 {
			return nil
		}

		return a.consume(op, residual.StmtReturnValue)

	case *ir.If:
		if err := a.consume(op, residual.StmtIf); err != nil {
			return err
		}

		if err := a.walk(x.Then); err != nil {
			return err
		}

		return a.walk(x.Else)

	case *ir.While:
		if err := a.consume(op, residual.StmtWhile); err != nil {
			return err
		}

		return a.walk(x.Body)

	case *ir.Invoke:
		return a.consume(op, residual.StmtInvoke)

	case *ir.AllocValue:
		return a.consume(op, residual.StmtAllocValue)

	case *ir.AllocStruct:
		return a.consume(op, residual.StmtAllocStruct)

	case *ir.Assign:
		return a.consume(op, residual.StmtAssign)

	case *ir.AssignMember:
		return a.consume(op, residual.StmtAssignMember)

	case *ir.Fold:
		return a.consume(op, residual.StmtFold)

	case *ir.Unfold:
		return a.consume(op, residual.StmtUnfold)

	case *ir.ErrorOp:
		return a.consume(op, residual.StmtError)

	default:
		return StructuralMismatchError{Method: a.m, Op: op, Reason: "unrecognized op kind"}
	}
}

func (a *aligner) consume(op ir.Op, want residual.StatementKind) error {
	st, ok := a.next()
	if !ok {
		return StructuralMismatchError{Method: a.m, Op: op, Want: want, Reason: "verifier statements exhausted"}
	}

	if st.Kind != want {
		return StructuralMismatchError{Method: a.m, Op: op, Want: want, Got: st.Kind}
	}

	a.idx.byNode[st.ID] = op

	return nil
}
