package injector

import (
	"tlog.app/go/errors"

	"github.com/gvc0/gvweave/checkexpr"
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/logic"
)

// toIR translates a check-algebra expression back into an ir.Expr so it
// can be assigned into a materialised condition variable or asserted
// directly — the inverse direction of collector's lowerIRExpr.
func toIR(e checkexpr.Expr) (ir.Expr, error) {
	switch x := e.(type) {
	case nil:
		return nil, nil

	case *checkexpr.IntLit:
		return &ir.IntLit{Value: x.Value}, nil

	case *checkexpr.CharLit:
		return &ir.CharLit{Value: x.Value}, nil

	case *checkexpr.BoolLit:
		return &ir.BoolLit{Value: x.Value}, nil

	case *checkexpr.StringLit:
		return &ir.StringLit{Value: x.Value}, nil

	case *checkexpr.NullLit:
		return &ir.NullLit{}, nil

	case *checkexpr.Result:
		return &ir.Result{}, nil

	case *checkexpr.ResultVar:
		return &ir.Var{Name: x.Name}, nil

	case *checkexpr.Var:
		return &ir.Var{Name: x.Name}, nil

	case *checkexpr.Binary:
		op, ok := checkToIRBinOp[x.Op]
		if !ok {
			return nil, errors.New("injector: check operator %v has no IR equivalent", x.Op)
		}

		l, err := toIR(x.Left)
		if err != nil {
			return nil, errors.Wrap(err, "left")
		}

		r, err := toIR(x.Right)
		if err != nil {
			return nil, errors.Wrap(err, "right")
		}

		return &ir.Binary{Op: op, Left: l, Right: r}, nil

	case *checkexpr.Unary:
		op, ok := checkToIRUnOp[x.Op]
		if !ok {
			return nil, errors.New("injector: check operator %v has no IR equivalent", x.Op)
		}

		v, err := toIR(x.Operand)
		if err != nil {
			return nil, errors.Wrap(err, "operand")
		}

		return &ir.Unary{Op: op, Operand: v}, nil

	case *checkexpr.Field:
		root, err := toIR(x.Root)
		if err != nil {
			return nil, errors.Wrap(err, "field root")
		}

		return &ir.FieldExpr{Root: root, Struct: x.Struct, Name: x.Name}, nil

	case *checkexpr.Deref:
		operand, err := toIR(x.Operand)
		if err != nil {
			return nil, errors.Wrap(err, "deref operand")
		}

		return &ir.DerefExpr{Operand: operand}, nil

	case *checkexpr.Cond:
		c, err := toIR(x.C)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		t, err := toIR(x.T)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		f, err := toIR(x.F)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		return &ir.Conditional{Cond: c, Then: t, Else: f}, nil

	default:
		return nil, errors.New("injector: unrecognized check expression %T", e)
	}
}

var checkToIRBinOp = map[checkexpr.BinOp]ir.BinOp{
	checkexpr.And: ir.BinAnd,
	checkexpr.Or:  ir.BinOr,
	checkexpr.Add: ir.BinAdd,
	checkexpr.Sub: ir.BinSub,
	checkexpr.Mul: ir.BinMul,
	checkexpr.Div: ir.BinDiv,
	checkexpr.Eq:  ir.BinEq,
	checkexpr.Lt:  ir.BinLt,
	checkexpr.Le:  ir.BinLe,
	checkexpr.Gt:  ir.BinGt,
	checkexpr.Ge:  ir.BinGe,
}

var checkToIRUnOp = map[checkexpr.UnOp]ir.UnOp{
	checkexpr.Not: ir.UnNot,
	checkexpr.Neg: ir.UnNeg,
}

// guardExpr folds a simplified logic.Disjunction into an ir.Expr: the OR
// of the AND of each conjunction's terms, each term resolved through
// tmpName to the ir.Var already holding that condition term's
// materialised value, negated per its polarity. A false/empty
// disjunction (no "when") means unconditional and yields a nil
// ir.Expr.
func guardExpr(when logic.Disjunction, tmpName func(id int) string) ir.Expr {
	if len(when) == 0 {
		return nil
	}

	var disj ir.Expr

	for _, conj := range when {
		var conjExpr ir.Expr

		terms := conj.Terms()
		if len(terms) == 0 {
			// The empty conjunction is true: the whole disjunction is
			// unconditionally true, so the guard collapses away.
			return nil
		}

		for _, t := range terms {
			var lit ir.Expr = &ir.Var{Name: tmpName(t.ID)}
			if !t.Polarity {
				lit = &ir.Unary{Op: ir.UnNot, Operand: lit}
			}

			if conjExpr == nil {
				conjExpr = lit
			} else {
				conjExpr = &ir.Binary{Op: ir.BinAnd, Left: conjExpr, Right: lit}
			}
		}

		if disj == nil {
			disj = conjExpr
		} else {
			disj = &ir.Binary{Op: ir.BinOr, Left: disj, Right: conjExpr}
		}
	}

	return disj
}
