package collector

import (
	"testing"

	"github.com/gvc0/gvweave/checkexpr"
	"github.com/gvc0/gvweave/ir"
)

func TestLowerIRExprSubstitutesBoundVar(t *testing.T) {
	m := &ir.Method{Name: "callee"}
	subst := map[string]ir.Expr{"a": &ir.Var{Name: "x"}}

	got, err := lowerIRExpr(&ir.Var{Name: "a"}, subst, m)
	if err != nil {
		t.Fatalf("lowerIRExpr: %v", err)
	}

	v, ok := got.(*checkexpr.Var)
	if !ok || v.Name != "x" {
		t.Fatalf("got %#v, want Var{x}", got)
	}
}

func TestLowerIRExprFreeVarOutsideSubstitutionContext(t *testing.T) {
	m := &ir.Method{Name: "caller"}

	got, err := lowerIRExpr(&ir.Var{Name: "local"}, nil, m)
	if err != nil {
		t.Fatalf("lowerIRExpr: %v", err)
	}

	v, ok := got.(*checkexpr.Var)
	if !ok || v.Name != "local" {
		t.Fatalf("got %#v, want Var{local}", got)
	}
}

func TestLowerIRExprUnboundVarAtCallSiteIsUnknownVariableError(t *testing.T) {
	m := &ir.Method{Name: "callee"}
	subst := map[string]ir.Expr{"a": &ir.Var{Name: "x"}}

	_, err := lowerIRExpr(&ir.Var{Name: "b"}, subst, m)

	uv, ok := err.(UnknownVariableError)
	if !ok {
		t.Fatalf("err = %#v, want UnknownVariableError", err)
	}

	if uv.Name != "b" || uv.Method != m {
		t.Errorf("err = %+v, want Name=b Method=%v", uv, m)
	}
}
