package injector

import (
	"tlog.app/go/errors"

	"github.com/gvc0/gvweave/check"
	"github.com/gvc0/gvweave/collector"
	"github.com/gvc0/gvweave/ir"
)

// siteMap collects every op injected around a method's existing ops,
// keyed the way rewriteBody expects: a prelude/postlude per ir.Op for
// Pre/Post locations, a prelude/postlude per *ir.While for loop
// start/end, and two free-standing lists for the method-level
// locations.
type siteMap struct {
	pre        map[ir.Op][]ir.Op
	post       map[ir.Op][]ir.Op
	loopStart  map[*ir.While][]ir.Op
	loopEnd    map[*ir.While][]ir.Op
	methodPre  []ir.Op
	methodPost []ir.Op
}

func newSiteMap() *siteMap {
	return &siteMap{
		pre:       map[ir.Op][]ir.Op{},
		post:      map[ir.Op][]ir.Op{},
		loopStart: map[*ir.While][]ir.Op{},
		loopEnd:   map[*ir.While][]ir.Op{},
	}
}

func (s *siteMap) append(loc collector.Location, ops []ir.Op) error {
	if len(ops) == 0 {
		return nil
	}

	switch loc.Phase {
	case collector.PhaseMethodPre:
		s.methodPre = append(s.methodPre, ops...)
	case collector.PhaseMethodPost:
		s.methodPost = append(s.methodPost, ops...)
	case collector.PhasePre:
		s.pre[loc.Op] = append(s.pre[loc.Op], ops...)
	case collector.PhasePost:
		s.post[loc.Op] = append(s.post[loc.Op], ops...)
	case collector.PhaseLoopStart:
		w, ok := loc.Op.(*ir.While)
		if !ok {
			return errors.New("injector: loop-start location does not reference a while op")
		}

		s.loopStart[w] = append(s.loopStart[w], ops...)
	case collector.PhaseLoopEnd:
		w, ok := loc.Op.(*ir.While)
		if !ok {
			return errors.New("injector: loop-end location does not reference a while op")
		}

		s.loopEnd[w] = append(s.loopEnd[w], ops...)
	default:
		return errors.New("injector: unhandled location phase %v", loc.Phase)
	}

	return nil
}

// buildConditionsAndChecks materialises every surviving condition term
// into a temporary guarded by its own `when`, and for every runtime
// check emits the corresponding assertion op(s) guarded by its `when`.
// Both sets of emitted ops land at their Location via siteMap.
func buildConditionsAndChecks(cm *collector.CollectedMethod, c *ctx) (*siteMap, error) {
	sites := newSiteMap()

	for _, t := range cm.Terms {
		guard := guardExpr(t.When, tmpVarName)

		value, err := toIR(t.Value)
		if err != nil {
			return nil, errors.Wrap(err, "term t%d", t.ID)
		}

		var matOp ir.Op
		if guard == nil {
			matOp = &ir.Assign{Name: tmpVarName(t.ID), Value: value}
		} else {
			matOp = &ir.If{
				Cond: guard,
				Then: []ir.Op{&ir.Assign{Name: tmpVarName(t.ID), Value: value}},
				Else: []ir.Op{&ir.Assign{Name: tmpVarName(t.ID), Value: &ir.BoolLit{Value: false}}},
			}
		}

		if err := sites.append(t.Location, []ir.Op{matOp}); err != nil {
			return nil, err
		}
	}

	for _, rc := range cm.Checks {
		guard := guardExpr(rc.When, tmpVarName)

		assertOps, err := buildAssertion(rc.Check, cm, c)
		if err != nil {
			return nil, errors.Wrap(err, "check %v", rc.Check)
		}

		emitted := assertOps
		if guard != nil {
			emitted = []ir.Op{&ir.If{Cond: guard, Then: assertOps}}
		}

		if err := sites.append(rc.Location, emitted); err != nil {
			return nil, err
		}
	}

	return sites, nil
}

// buildAssertion translates a check.Check into the one or more ops
// that enforce it at runtime.
func buildAssertion(ch check.Check, cm *collector.CollectedMethod, c *ctx) ([]ir.Op, error) {
	switch ch.Kind {
	case check.KindExpr:
		v, err := toIR(ch.Expr)
		if err != nil {
			return nil, err
		}

		return []ir.Op{&ir.Assert{Imperative: true, Value: v}}, nil

	case check.KindFieldAccessibility:
		objID, fieldIdx, err := fieldSlot(ch.Field, c)
		if err != nil {
			return nil, err
		}

		return accAssertion(c, c.rt.AssertAcc, objID, fieldIdx), nil

	case check.KindFieldSeparation:
		aObjID, aFieldIdx, err := fieldSlot(ch.Field, c)
		if err != nil {
			return nil, err
		}

		if ch.Partner == nil {
			return nil, errors.New("injector: field separation check has no partner")
		}

		bObjID, bFieldIdx, err := accessSlot(*ch.Partner, c)
		if err != nil {
			return nil, err
		}

		return disjointAssertion(c, aObjID, aFieldIdx, bObjID, bFieldIdx), nil

	case check.KindPredicateAccessibility:
		objID, fieldIdx := predicateSlot(ch.Predicate, c)

		return accAssertion(c, c.rt.AssertAcc, objID, fieldIdx), nil

	case check.KindPredicateSeparation:
		aObjID, aFieldIdx := predicateSlot(ch.Predicate, c)

		if ch.Partner == nil {
			return nil, errors.New("injector: predicate separation check has no partner")
		}

		bObjID, bFieldIdx, err := accessSlot(*ch.Partner, c)
		if err != nil {
			return nil, err
		}

		return disjointAssertion(c, aObjID, aFieldIdx, bObjID, bFieldIdx), nil

	default:
		return nil, errors.New("injector: unhandled check kind %v", ch.Kind)
	}
}

// accAssertion binds the boolean result of an AssertAcc call into a
// fresh local before asserting it: ir.Invoke is a statement, not an
// expression, so a call's result must be captured into a named
// variable before an Assert can consume it.
func accAssertion(c *ctx, callee *ir.Method, objID, fieldIdx ir.Expr) []ir.Op {
	tmp := c.freshVar("ok")

	return []ir.Op{
		&ir.Invoke{Callee: callee, Result: tmp, Args: []ir.Expr{&ir.Var{Name: fieldsVarName}, objID, fieldIdx}},
		&ir.Assert{Imperative: true, Value: &ir.Var{Name: tmp}},
	}
}

// disjointAssertion asserts that the two permissions keyed (aObjID,
// aFieldIdx) and (bObjID, bFieldIdx) cannot both be live at runtime.
// Each side gets its own single-entry scratch Fields value holding
// exactly its own slot, then assert_disjoint_acc checks whether a's
// slot also shows up in b's scratch: a different field index can never
// collide there regardless of aliasing (acc(x.f) and acc(x.g) pass
// unconditionally), and the same field index collides exactly when the
// two roots turn out to be the same tracked instance at runtime
// (acc(x.f) and acc(y.f) needs x != y) — one primitive covers both.
func disjointAssertion(c *ctx, aObjID, aFieldIdx, bObjID, bFieldIdx ir.Expr) []ir.Op {
	fa, fb, ok := c.freshVar("sep_a"), c.freshVar("sep_b"), c.freshVar("ok")

	return []ir.Op{
		&ir.AllocValue{Result: fa, Type: "Fields"},
		&ir.AllocValue{Result: fb, Type: "Fields"},
		&ir.Invoke{Callee: c.rt.AddFieldAccess, Args: []ir.Expr{&ir.Var{Name: fa}, aObjID, aFieldIdx}},
		&ir.Invoke{Callee: c.rt.AddFieldAccess, Args: []ir.Expr{&ir.Var{Name: fb}, bObjID, bFieldIdx}},
		&ir.Invoke{
			Callee: c.rt.AssertDisjointAcc,
			Result: ok,
			Args:   []ir.Expr{&ir.Var{Name: fa}, &ir.Var{Name: fb}, aObjID, aFieldIdx},
		},
		&ir.Assert{Imperative: true, Value: &ir.Var{Name: ok}},
	}
}

// accessSlot resolves any accessibility or separation check to the
// (object id, field index) pair it claims, dispatching on its own Kind
// rather than requiring the caller to know whether a separation check's
// Partner is itself field- or predicate-shaped.
func accessSlot(ch check.Check, c *ctx) (objID, fieldIdx ir.Expr, err error) {
	switch ch.Kind {
	case check.KindFieldAccessibility, check.KindFieldSeparation:
		return fieldSlot(ch.Field, c)
	case check.KindPredicateAccessibility, check.KindPredicateSeparation:
		objID, fieldIdx := predicateSlot(ch.Predicate, c)
		return objID, fieldIdx, nil
	default:
		return nil, nil, errors.New("injector: check kind %v has no access slot", ch.Kind)
	}
}

// fieldSlot resolves a FieldRef to the (object id, field index) pair
// assert_acc/assert_disjoint_acc key on: obj id is read off the
// tracked object's synthetic _id field, field index is looked up in
// the program's static field layout.
func fieldSlot(ref check.FieldRef, c *ctx) (objID, fieldIdx ir.Expr, err error) {
	root, err := toIR(ref.Root)
	if err != nil {
		return nil, nil, err
	}

	if ref.Name == "*" {
		// Dereference-rooted accessibility has no struct layout to read
		// an _id off; it degrades to a single shared slot keyed by a
		// synthetic zero id (documented simplification).
		return &ir.IntLit{Value: 0}, &ir.IntLit{Value: int64(c.fieldIndex("", "*"))}, nil
	}

	return &ir.FieldExpr{Root: root, Struct: ref.Struct, Name: "_id"},
		&ir.IntLit{Value: int64(c.fieldIndex(ref.Struct, ref.Name))}, nil
}

func predicateSlot(ref check.PredicateRef, c *ctx) (objID, fieldIdx ir.Expr) {
	if len(ref.Args) == 0 {
		return &ir.IntLit{Value: 0}, &ir.IntLit{Value: int64(c.fieldIndex("", ref.Name))}
	}

	root, err := toIR(ref.Args[0])
	if err != nil || root == nil {
		return &ir.IntLit{Value: 0}, &ir.IntLit{Value: int64(c.fieldIndex("", ref.Name))}
	}

	return &ir.FieldExpr{Root: root, Struct: "", Name: "_id"}, &ir.IntLit{Value: int64(c.fieldIndex("", ref.Name))}
}
