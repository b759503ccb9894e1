package collector

import (
	"fmt"

	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/residual"
)

// StructuralMismatchError reports that the IR op and the
// verifier statement at the same step disagree in kind, or one side was
// exhausted before the other.
type StructuralMismatchError struct {
	Method *ir.Method
	Op     ir.Op
	Want   residual.StatementKind
	Got    residual.StatementKind
	Reason string
}

func (e StructuralMismatchError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("collector: %s: structural mismatch in %s: %s", e.Method.Name, opKindName(e.Op), e.Reason)
	}

	return fmt.Sprintf("collector: %s: structural mismatch in %s: want verifier statement %q, got %q",
		e.Method.Name, opKindName(e.Op), e.Want, e.Got)
}

// InvalidExpressionError reports a verifier expression checkexpr or
// check could not translate.
type InvalidExpressionError struct {
	Method *ir.Method
	Node   residual.NodeID
	Reason string
}

func (e InvalidExpressionError) Error() string {
	return fmt.Sprintf("collector: %s: invalid expression at node %d: %s", e.Method.Name, e.Node, e.Reason)
}

// InvalidSpecificationError reports a method specification the
// collector could not walk.
type InvalidSpecificationError struct {
	Method *ir.Method
	Loc    Location
	Reason string
}

func (e InvalidSpecificationError) Error() string {
	return fmt.Sprintf("collector: %s: invalid specification at %v: %s", e.Method.Name, e.Loc, e.Reason)
}

// UnknownVariableError reports a callee specification variable that the
// call-site formal->actual substitution does not bind.
type UnknownVariableError struct {
	Method *ir.Method
	Name   string
}

func (e UnknownVariableError) Error() string {
	return fmt.Sprintf("collector: %s: unknown variable %q in call-site substitution", e.Method.Name, e.Name)
}

// UnhandledPositionError reports a residual check at a position the
// collector does not know how to place.
type UnhandledPositionError struct {
	Method   *ir.Method
	Node     residual.NodeID
	Position residual.Position
}

func (e UnhandledPositionError) Error() string {
	return fmt.Sprintf("collector: %s: unhandled position %v at node %d", e.Method.Name, e.Position, e.Node)
}

func opKindName(op ir.Op) string {
	if op == nil {
		return "<method>"
	}

	switch op.(type) {
	case *ir.If:
		return "if"
	case *ir.While:
		return "while"
	case *ir.Invoke:
		return "invoke"
	case *ir.AllocValue:
		return "alloc_value"
	case *ir.AllocStruct:
		return "alloc_struct"
	case *ir.Assign:
		return "assign"
	case *ir.AssignMember:
		return "assign_member"
	case *ir.Fold:
		return "fold"
	case *ir.Unfold:
		return "unfold"
	case *ir.Assert:
		return "assert"
	case *ir.ErrorOp:
		return "error"
	case *ir.Return:
		return "return"
	default:
		return "op(?)"
	}
}
