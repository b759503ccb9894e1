package collector

import (
	"tlog.app/go/errors"

	"github.com/gvc0/gvweave/checkexpr"
	"github.com/gvc0/gvweave/ir"
)

// lowerIRExpr translates a source-IR value expression into the check
// algebra, substituting subst at Var leaves first — the call-site
// counterpart of checkexpr.FromViper, which instead translates from the
// verifier's own expression language. Used only by Phase D's
// specification re-traversal, where the tree being walked is the
// original IR specification (a callee's precondition/postcondition, a
// loop invariant, an assert's value), not a residual formula.
func lowerIRExpr(e ir.Expr, subst map[string]ir.Expr, m *ir.Method) (checkexpr.Expr, error) {
	switch x := e.(type) {
	case nil:
		return nil, nil

	case *ir.IntLit:
		return &checkexpr.IntLit{Value: x.Value}, nil

	case *ir.CharLit:
		return &checkexpr.CharLit{Value: x.Value}, nil

	case *ir.BoolLit:
		return &checkexpr.BoolLit{Value: x.Value}, nil

	case *ir.StringLit:
		return &checkexpr.StringLit{Value: x.Value}, nil

	case *ir.NullLit:
		return &checkexpr.NullLit{}, nil

	case *ir.Result:
		return &checkexpr.Result{}, nil

	case *ir.Var:
		if actual, ok := subst[x.Name]; ok {
			return lowerIRExpr(actual, nil, m)
		}

		// subst is non-nil exactly at a call site (bindArgs binds the
		// callee's own formal parameters); a callee specification free
		// variable that misses there names a parameter the call site
		// never bound, not a variable of the current method.
		if subst != nil {
			return nil, UnknownVariableError{Method: m, Name: x.Name}
		}

		return &checkexpr.Var{Name: x.Name}, nil

	case *ir.Binary:
		l, err := lowerIRExpr(x.Left, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		r, err := lowerIRExpr(x.Right, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}

		if x.Op == ir.BinNe {
			return &checkexpr.Unary{Op: checkexpr.Not, Operand: &checkexpr.Binary{Op: checkexpr.Eq, Left: l, Right: r}}, nil
		}

		op, ok := irToCheckBinOp[x.Op]
		if !ok {
			return nil, InvalidExpressionError{Method: m, Reason: "unsupported binary operator " + string(x.Op)}
		}

		return &checkexpr.Binary{Op: op, Left: l, Right: r}, nil

	case *ir.Unary:
		op, ok := irToCheckUnOp[x.Op]
		if !ok {
			return nil, InvalidExpressionError{Method: m, Reason: "unsupported unary operator " + string(x.Op)}
		}

		v, err := lowerIRExpr(x.Operand, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "operand")
		}

		return &checkexpr.Unary{Op: op, Operand: v}, nil

	case *ir.FieldExpr:
		root, err := lowerIRExpr(x.Root, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "field root")
		}

		return &checkexpr.Field{Root: root, Struct: x.Struct, Name: x.Name}, nil

	case *ir.DerefExpr:
		operand, err := lowerIRExpr(x.Operand, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "deref operand")
		}

		return &checkexpr.Deref{Operand: operand}, nil

	case *ir.Conditional:
		c, err := lowerIRExpr(x.Cond, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		t, err := lowerIRExpr(x.Then, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		f, err := lowerIRExpr(x.Else, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		return &checkexpr.Cond{C: c, T: t, F: f}, nil

	default:
		return nil, InvalidExpressionError{Method: m, Reason: "specification value contains a disallowed form for a check expression"}
	}
}

func lowerIRExprs(es []ir.Expr, subst map[string]ir.Expr, m *ir.Method) ([]checkexpr.Expr, error) {
	out := make([]checkexpr.Expr, len(es))

	for i, e := range es {
		ce, err := lowerIRExpr(e, subst, m)
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", i)
		}

		out[i] = ce
	}

	return out, nil
}

var irToCheckBinOp = map[ir.BinOp]checkexpr.BinOp{
	ir.BinAnd: checkexpr.And,
	ir.BinOr:  checkexpr.Or,
	ir.BinAdd: checkexpr.Add,
	ir.BinSub: checkexpr.Sub,
	ir.BinMul: checkexpr.Mul,
	ir.BinDiv: checkexpr.Div,
	ir.BinEq:  checkexpr.Eq,
	ir.BinLt:  checkexpr.Lt,
	ir.BinLe:  checkexpr.Le,
	ir.BinGt:  checkexpr.Gt,
	ir.BinGe:  checkexpr.Ge,
}

var irToCheckUnOp = map[ir.UnOp]checkexpr.UnOp{
	ir.UnNot: checkexpr.Not,
	ir.UnNeg: checkexpr.Neg,
}
