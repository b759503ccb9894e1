package check

import (
	"tlog.app/go/errors"

	"github.com/gvc0/gvweave/checkexpr"
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/residual"
)

// FromViper classifies a verifier expression into a Check:
// FieldAccessPredicate becomes FieldAccessibility; PredicateAccess and
// PredicateAccessPredicate become PredicateAccessibility with the
// lowered argument list; anything else becomes Expr(FromViper(...)).
func FromViper(e residual.Expr, m *ir.Method) (Check, error) {
	switch x := e.(type) {
	case *residual.FieldAccessPredicate:
		ce, err := checkexpr.FromViper(x.FA, m)
		if err != nil {
			return Check{}, errors.Wrap(err, "field accessibility")
		}

		field, ok := ce.(*checkexpr.Field)
		if !ok {
			// A pointer-dereference sentinel lowers to Deref, not
			// Field; accessibility on a raw dereference still names a
			// field permission, just with no static field name — not
			// representable, and not expected from a real verifier.
			return Check{}, errors.New("check: acc(%v) is not a field access", ce)
		}

		return Check{
			Kind: KindFieldAccessibility,
			Field: FieldRef{
				Root:   field.Root,
				Struct: field.Struct,
				Name:   field.Name,
			},
		}, nil

	case *residual.PredicateAccess:
		args, err := lowerArgs(x.Args, m)
		if err != nil {
			return Check{}, errors.Wrap(err, "predicate %v args", x.Name)
		}

		return Check{
			Kind:      KindPredicateAccessibility,
			Predicate: PredicateRef{Name: x.Name, Args: args},
		}, nil

	case *residual.PredicateAccessPredicate:
		return FromViper(x.PA, m)

	default:
		ce, err := checkexpr.FromViper(e, m)
		if err != nil {
			return Check{}, errors.Wrap(err, "expr check")
		}

		return Check{Kind: KindExpr, Expr: ce}, nil
	}
}

func lowerArgs(args []residual.Expr, m *ir.Method) ([]checkexpr.Expr, error) {
	out := make([]checkexpr.Expr, len(args))

	for i, a := range args {
		ce, err := checkexpr.FromViper(a, m)
		if err != nil {
			return nil, errors.Wrap(err, "arg %d", i)
		}

		out[i] = ce
	}

	return out, nil
}
