package collector

import (
	"github.com/gvc0/gvweave/check"
	"github.com/gvc0/gvweave/logic"
)

// checkAccum accumulates runtime checks in (location, first-seen) order,
// merging repeated (location, check-value) pairs by unioning their
// `when` disjunctions rather than duplicating the check: two checks at
// the same location with the same check value share a condition set;
// their DNFs are unioned before simplification.
type checkAccum struct {
	locOrder []Location
	byLoc    map[Location][]*RuntimeCheck
	byKey    map[Location]map[string]*RuntimeCheck
}

func newCheckAccum() *checkAccum {
	return &checkAccum{
		byLoc: map[Location][]*RuntimeCheck{},
		byKey: map[Location]map[string]*RuntimeCheck{},
	}
}

func (ca *checkAccum) add(loc Location, c check.Check, when logic.Disjunction) {
	byKey, ok := ca.byKey[loc]
	if !ok {
		byKey = map[string]*RuntimeCheck{}
		ca.byKey[loc] = byKey
		ca.locOrder = append(ca.locOrder, loc)
	}

	key := c.String()

	if rc, ok := byKey[key]; ok {
		rc.When = append(rc.When, when...)
		return
	}

	rc := &RuntimeCheck{Location: loc, Check: c, When: append(logic.Disjunction{}, when...)}
	byKey[key] = rc
	ca.byLoc[loc] = append(ca.byLoc[loc], rc)
}

func (ca *checkAccum) flatten() []RuntimeCheck {
	var out []RuntimeCheck

	for _, loc := range ca.locOrder {
		for _, rc := range ca.byLoc[loc] {
			out = append(out, *rc)
		}
	}

	return out
}
