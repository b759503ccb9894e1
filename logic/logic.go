// Package logic implements a small logic kernel: boolean terms and
// conjunctions/disjunctions in disjunctive normal form, plus a
// simplifier that drops self-contradictory conjunctions and conjunctions
// strictly subsumed by another. DNF with set-based conjunctions is
// chosen over a BDD because the "when" language is small — tens of
// terms per method — and the simplifier only needs to catch trivial
// duplicates and contradictions.
package logic

import (
	"sort"
	"strconv"
	"strings"

	"tlog.app/go/tlog/tlwire"
)

// Term is a reference to an interned condition term together with the
// polarity it is asked about under.
type Term struct {
	ID       int
	Polarity bool
}

// Conjunction is an unordered set of terms. The empty conjunction is
// true. Backed by two bitsets over the same term-id space — one per
// polarity — so membership,
// subsumption and contradiction tests are all word-at-a-time bit ops.
type Conjunction struct {
	pos bitset
	neg bitset
}

// NewConjunction builds a Conjunction from a list of terms.
func NewConjunction(terms ...Term) Conjunction {
	c := Conjunction{pos: makeBitset(), neg: makeBitset()}

	for _, t := range terms {
		c.Add(t)
	}

	return c
}

// Add extends c with one more term, in place.
func (c *Conjunction) Add(t Term) {
	if t.Polarity {
		c.pos.set(t.ID)
	} else {
		c.neg.set(t.ID)
	}
}

// Extend returns a new Conjunction equal to c plus one more term,
// leaving c unmodified (the collector builds up conjunctions
// incrementally while walking nested branch stacks and needs the prefix
// conjunctions to stay valid).
func (c Conjunction) Extend(t Term) Conjunction {
	n := Conjunction{pos: c.pos.clone(), neg: c.neg.clone()}
	n.Add(t)

	return n
}

// IsTrue reports whether c is the empty conjunction.
func (c Conjunction) IsTrue() bool {
	return c.pos.size() == 0 && c.neg.size() == 0
}

// HasContradiction reports whether c asserts some term both positively
// and negatively.
func (c Conjunction) HasContradiction() bool {
	return c.pos.intersects(c.neg)
}

// SubsetOf reports whether every literal of c also appears in x — i.e.
// x is a (non-strict) superset of c's literals, so x ⊇ c.
func (c Conjunction) SubsetOf(x Conjunction) bool {
	return c.pos.subsetOf(x.pos) && c.neg.subsetOf(x.neg)
}

// Equal reports whether c and x have exactly the same literals.
func (c Conjunction) Equal(x Conjunction) bool {
	return c.SubsetOf(x) && x.SubsetOf(c)
}

// Terms returns c's literals in canonical order (by id, then polarity).
func (c Conjunction) Terms() []Term {
	out := make([]Term, 0, c.pos.size()+c.neg.size())

	for _, id := range c.pos.sorted() {
		out = append(out, Term{ID: id, Polarity: true})
	}

	for _, id := range c.neg.sorted() {
		out = append(out, Term{ID: id, Polarity: false})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}

		return !out[i].Polarity && out[j].Polarity
	})

	return out
}

// String renders c in canonical sorted order, e.g. "t0 && !t3 && t7".
func (c Conjunction) String() string {
	terms := c.Terms()
	if len(terms) == 0 {
		return "true"
	}

	parts := make([]string, len(terms))

	for i, t := range terms {
		if t.Polarity {
			parts[i] = "t" + strconv.Itoa(t.ID)
		} else {
			parts[i] = "!t" + strconv.Itoa(t.ID)
		}
	}

	return strings.Join(parts, " && ")
}

func (c Conjunction) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendTag(b, tlwire.Array, -1)

	for _, t := range c.Terms() {
		b = e.AppendFormat(b, "%v", t)
	}

	b = e.AppendBreak(b)

	return b
}

func (t Term) String() string {
	if t.Polarity {
		return "t" + strconv.Itoa(t.ID)
	}

	return "!t" + strconv.Itoa(t.ID)
}

// Disjunction is the disjunction of its conjunctions, in DNF. The empty
// disjunction is false.
type Disjunction []Conjunction

// Or appends one more conjunction (not yet simplified).
func (d Disjunction) Or(c Conjunction) Disjunction {
	return append(d, c)
}

// IsFalse reports whether d has no conjunctions.
func (d Disjunction) IsFalse() bool {
	return len(d) == 0
}

// Simplify drops any conjunction containing both
// a term and its negation, then drop any conjunction strictly subsumed
// by another (if C ⊇ C' then C is dropped, keeping the more general
// C'). The result is returned in canonical sorted order, so Simplify is
// both idempotent (simplifying a simplified input yields the same
// input) and monotone (simplifying never introduces a conjunction that
// wasn't implied by the input).
func Simplify(d Disjunction) Disjunction {
	live := make([]Conjunction, 0, len(d))

	for _, c := range d {
		if !c.HasContradiction() {
			live = append(live, c)
		}
	}

	keep := make([]bool, len(live))

	for i := range keep {
		keep[i] = true
	}

	for i, c := range live {
		if !keep[i] {
			continue
		}

		for j, c2 := range live {
			if i == j || !keep[j] {
				continue
			}

			if !c2.SubsetOf(c) {
				continue
			}

			// c2's literals are all present in c: c ⊇ c2.
			if c.Equal(c2) {
				// Identical conjunctions: keep the lower index only.
				if j < i {
					keep[i] = false
				}

				continue
			}

			keep[i] = false

			break
		}
	}

	out := make(Disjunction, 0, len(live))

	for i, c := range live {
		if keep[i] {
			out = append(out, c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return lessConjunction(out[i], out[j])
	})

	return out
}

func lessConjunction(a, b Conjunction) bool {
	at, bt := a.Terms(), b.Terms()

	for i := 0; i < len(at) && i < len(bt); i++ {
		if at[i].ID != bt[i].ID {
			return at[i].ID < bt[i].ID
		}

		if at[i].Polarity != bt[i].Polarity {
			return !at[i].Polarity
		}
	}

	return len(at) < len(bt)
}

func (d Disjunction) String() string {
	if len(d) == 0 {
		return "false"
	}

	parts := make([]string, len(d))

	for i, c := range d {
		parts[i] = "(" + c.String() + ")"
	}

	return strings.Join(parts, " || ")
}

func (d Disjunction) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	for _, c := range d {
		b = c.TlogAppend(b)
	}

	b = e.AppendBreak(b)

	return b
}
