// Package check implements the closed residual-check taxonomy the
// injector enforces: a check is either a boolean expression, a field
// accessibility or separation assertion, or a predicate accessibility or
// separation assertion.
package check

import (
	"fmt"

	"github.com/gvc0/gvweave/checkexpr"
)

type Kind int

const (
	KindExpr Kind = iota
	KindFieldAccessibility
	KindFieldSeparation
	KindPredicateAccessibility
	KindPredicateSeparation
)

func (k Kind) String() string {
	switch k {
	case KindExpr:
		return "Expr"
	case KindFieldAccessibility:
		return "FieldAccessibility"
	case KindFieldSeparation:
		return "FieldSeparation"
	case KindPredicateAccessibility:
		return "PredicateAccessibility"
	case KindPredicateSeparation:
		return "PredicateSeparation"
	default:
		return "Kind(?)"
	}
}

// FieldRef names one (root, struct, field) permission.
type FieldRef struct {
	Root   checkexpr.Expr
	Struct string
	Name   string
}

func (f FieldRef) String() string {
	return fmt.Sprintf("%v.%s$%s", f.Root, f.Struct, f.Name)
}

// PredicateRef names one predicate instance.
type PredicateRef struct {
	Name string
	Args []checkexpr.Expr
}

func (p PredicateRef) String() string {
	return fmt.Sprintf("%s(%v)", p.Name, p.Args)
}

// Check is one residual obligation: e must evaluate to true (KindExpr),
// or a field/predicate accessibility or separation must hold.
type Check struct {
	Kind Kind

	Expr      checkexpr.Expr // KindExpr
	Field     FieldRef       // KindFieldAccessibility / KindFieldSeparation
	Predicate PredicateRef   // KindPredicateAccessibility / KindPredicateSeparation

	// Partner is the second permission in a separation check: one
	// separation check is emitted per *pair* of permissions enumerated at
	// a location. It carries its own Kind/Field/Predicate rather than a
	// bare root expression, so a separation check can tell apart two
	// permissions on the same root (acc(x.f), acc(x.g)) from two on
	// different roots sharing a field name (acc(x.f), acc(y.f)).
	Partner *Check
}

// String renders a Check canonically, used as part of the interning key
// alongside its Location.
func (c Check) String() string {
	switch c.Kind {
	case KindExpr:
		return c.Expr.String()
	case KindFieldAccessibility:
		return "acc(" + c.Field.String() + ")"
	case KindFieldSeparation:
		return "disjoint(" + c.Field.String() + ", " + c.Partner.String() + ")"
	case KindPredicateAccessibility:
		return "acc(" + c.Predicate.String() + ")"
	case KindPredicateSeparation:
		return "disjoint(" + c.Predicate.String() + ", " + c.Partner.String() + ")"
	default:
		return "Check(?)"
	}
}
