package collector

import "github.com/gvc0/gvweave/ir"

// classifyCallStyle derives a method's calling convention from its
// pre/postcondition imprecision.
func classifyCallStyle(m *ir.Method) CallStyle {
	if m.IsMain {
		return Main
	}

	if ir.IsImprecise(m.Pre) {
		return Imprecise
	}

	if ir.IsImprecise(m.Post) {
		return PrecisePre
	}

	return Precise
}

// hasImplicitReturn reports whether a method has an
// implicit fall-through return iff its body is empty or its last op is
// not a Return, not an unconditional loop, not an If both of whose
// branches themselves lack fall-through.
func hasImplicitReturn(body []ir.Op) bool {
	last := ir.LastOp(body)
	if last == nil {
		return true
	}

	switch x := last.(type) {
	case *ir.Return:
		return false

	case *ir.While:
		if isLiteralTrue(x.Cond) {
			return false
		}

		return true

	case *ir.If:
		return hasImplicitReturn(x.Then) || hasImplicitReturn(x.Else)

	default:
		return true
	}
}

func isLiteralTrue(e ir.Expr) bool {
	b, ok := e.(*ir.BoolLit)
	return ok && b.Value
}
