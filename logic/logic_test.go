package logic

import "testing"

func t(id int, pol bool) Term { return Term{ID: id, Polarity: pol} }

func TestConjunctionContradiction(t2 *testing.T) {
	c := NewConjunction(t(1, true), t(1, false))

	if !c.HasContradiction() {
		t2.Errorf("expected contradiction")
	}
}

func TestSimplifyDropsContradiction(t2 *testing.T) {
	d := Disjunction{
		NewConjunction(t(0, true)),
		NewConjunction(t(1, true), t(1, false)),
	}

	out := Simplify(d)

	if len(out) != 1 {
		t2.Fatalf("expected 1 surviving conjunction, got %d: %v", len(out), out)
	}

	if !out[0].Equal(NewConjunction(t(0, true))) {
		t2.Errorf("unexpected survivor: %v", out[0])
	}
}

func TestSimplifyDropsSubsumed(t2 *testing.T) {
	// {t0} subsumes {t0, t1}: anything satisfying {t0, t1} already
	// satisfies {t0}, so the bigger conjunction is redundant.
	d := Disjunction{
		NewConjunction(t(0, true), t(1, true)),
		NewConjunction(t(0, true)),
	}

	out := Simplify(d)

	if len(out) != 1 {
		t2.Fatalf("expected 1 surviving conjunction, got %d: %v", len(out), out)
	}

	if !out[0].Equal(NewConjunction(t(0, true))) {
		t2.Errorf("unexpected survivor: %v", out[0])
	}
}

func TestSimplifyDropsDuplicates(t2 *testing.T) {
	d := Disjunction{
		NewConjunction(t(0, true), t(1, false)),
		NewConjunction(t(1, false), t(0, true)),
	}

	out := Simplify(d)

	if len(out) != 1 {
		t2.Fatalf("expected duplicates collapsed to 1, got %d", len(out))
	}
}

func TestSimplifyIsIdempotent(t2 *testing.T) {
	d := Disjunction{
		NewConjunction(t(0, true), t(1, true)),
		NewConjunction(t(0, true)),
		NewConjunction(t(2, false)),
		NewConjunction(t(2, false), t(3, true)),
	}

	once := Simplify(d)
	twice := Simplify(once)

	if len(once) != len(twice) {
		t2.Fatalf("not idempotent: once=%v twice=%v", once, twice)
	}

	for i := range once {
		if !once[i].Equal(twice[i]) {
			t2.Fatalf("not idempotent at %d: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestSimplifyDeterministicOrder(t2 *testing.T) {
	d1 := Disjunction{
		NewConjunction(t(3, true)),
		NewConjunction(t(1, false)),
		NewConjunction(t(2, true), t(0, false)),
	}
	d2 := Disjunction{
		NewConjunction(t(2, true), t(0, false)),
		NewConjunction(t(3, true)),
		NewConjunction(t(1, false)),
	}

	out1 := Simplify(d1)
	out2 := Simplify(d2)

	if out1.String() != out2.String() {
		t2.Fatalf("order-dependent result: %v vs %v", out1, out2)
	}
}

func TestConjunctionExtendDoesNotMutate(t2 *testing.T) {
	base := NewConjunction(t(0, true))
	ext := base.Extend(t(1, true))

	if base.Terms()[0] != t(0, true) || len(base.Terms()) != 1 {
		t2.Fatalf("Extend mutated base: %v", base)
	}

	if len(ext.Terms()) != 2 {
		t2.Fatalf("Extend did not add term: %v", ext)
	}
}

func TestEmptyConjunctionIsTrue(t2 *testing.T) {
	if !NewConjunction().IsTrue() {
		t2.Errorf("empty conjunction should be true")
	}
}

func TestEmptyDisjunctionIsFalse(t2 *testing.T) {
	if !Disjunction(nil).IsFalse() {
		t2.Errorf("empty disjunction should be false")
	}
}
