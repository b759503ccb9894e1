package injector

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/gvc0/gvweave/check"
	"github.com/gvc0/gvweave/collector"
	"github.com/gvc0/gvweave/ir"
)

// Inject rewrites p's methods in place, using the collector's output,
// so that every condition term is materialised, every runtime check
// fires where and when it must, and every call and
// allocation carries the permission bookkeeping its calling
// convention requires. p's Methods slice is extended with the synthetic
// runtime-interface stubs and every allocated struct gains the _id
// bookkeeping field; nothing else is added to the program's shape.
func Inject(goctx context.Context, p *ir.Program, cp *collector.CollectedProgram) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(goctx, "injector: inject program")
	defer tr.Finish("err", &err)

	c := &ctx{rt: newRuntime(), fields: map[string]map[string]int{}, nFields: map[string]int{}}

	for _, s := range p.Structs {
		byField := make(map[string]int, len(s.Fields))

		for i, f := range s.Fields {
			byField[f.Name] = i
		}

		c.fields[s.Name] = byField
		c.nFields[s.Name] = len(s.Fields)
	}

	allocated := allocatedStructs(cp)
	addIDFields(p, allocated)

	for _, m := range p.Methods {
		cm := cp.For(m)
		if cm == nil {
			return errors.New("injector: method %v was never collected", m.Name)
		}

		if err := injectMethod(m, cm, cp, c); err != nil {
			return errors.Wrap(err, "method %v", m.Name)
		}
	}

	p.Methods = append(p.Methods, c.rt.methods()...)

	tr.Printw("injected", "methods", len(cp.Methods))

	return nil
}

func injectMethod(m *ir.Method, cm *collector.CollectedMethod, cp *collector.CollectedProgram, c *ctx) error {
	threadSignature(m, cm)

	sites, err := buildConditionsAndChecks(cm, c)
	if err != nil {
		return err
	}

	if err := wireInvokes(cm, cp, sites, c); err != nil {
		return err
	}

	for _, alloc := range cm.Allocs {
		as, ok := alloc.(*ir.AllocStruct)
		if !ok {
			continue
		}

		if err := sites.append(collector.Location{Op: as, Phase: collector.PhasePost}, allocBookkeeping(as, cm, c)); err != nil {
			return err
		}
	}

	body := rewriteBody(m.Body, sites)

	entry := entryPrologue(cm, c)
	sites.methodPre = append(entry, sites.methodPre...)
	sites.methodPost = append(sites.methodPost, returnEpilogue(cm, c)...)

	m.Body = withMethodFraming(body, sites, cm.HasImplicitReturn)

	return nil
}

// wireInvokes implements the call-site half of permission threading:
// every Invoke to a tracked callee gets its extra permission arguments
// appended and a prologue/epilogue spliced in around it.
func wireInvokes(cm *collector.CollectedMethod, cp *collector.CollectedProgram, sites *siteMap, c *ctx) error {
	for _, inv := range cm.Invokes {
		if inv.Callee == nil {
			continue
		}

		calleeCM := cp.For(inv.Callee)
		if calleeCM == nil {
			continue
		}

		buildChecks := func(scratch string) []ir.Op {
			return staticFieldsOpsFor(cm, inv, scratch, c)
		}

		pre, post := callSitePrologueEpilogue(calleeCM, inv, buildChecks, c)

		if err := sites.append(collector.Location{Op: inv, Phase: collector.PhasePre}, pre); err != nil {
			return err
		}

		if err := sites.append(collector.Location{Op: inv, Phase: collector.PhasePost}, post); err != nil {
			return err
		}
	}

	return nil
}

// staticFieldsOpsFor builds the "build" half of a call site's
// prologue: one add_field_access call per unconditional field/predicate
// accessibility check the collector placed at this invoke's
// precondition location,
// populating scratch with exactly the precise permissions this call
// site can statically vouch for. Checks still guarded by a `when` are
// left to fire at their own Location as ordinary runtime assertions
// rather than folded into the scratch object (a guarded permission
// isn't known to hold until its own condition is evaluated, which may
// be after the scratch is built).
func staticFieldsOpsFor(cm *collector.CollectedMethod, inv *ir.Invoke, scratch string, c *ctx) []ir.Op {
	var ops []ir.Op

	for _, rc := range cm.Checks {
		if rc.Location.Op != inv || rc.Location.Phase != collector.PhasePre {
			continue
		}

		if guardExpr(rc.When, tmpVarName) != nil {
			continue
		}

		var objID, fieldIdx ir.Expr

		switch rc.Check.Kind {
		case check.KindFieldAccessibility:
			root, err := toIR(rc.Check.Field.Root)
			if err != nil {
				continue
			}

			objID = &ir.FieldExpr{Root: root, Struct: rc.Check.Field.Struct, Name: "_id"}
			fieldIdx = &ir.IntLit{Value: int64(c.fieldIndex(rc.Check.Field.Struct, rc.Check.Field.Name))}

		case check.KindPredicateAccessibility:
			objID, fieldIdx = predicateSlot(rc.Check.Predicate, c)

		default:
			continue
		}

		ops = append(ops, &ir.Invoke{
			Callee: c.rt.AddFieldAccess,
			Args:   []ir.Expr{&ir.Var{Name: scratch}, objID, fieldIdx},
		})
	}

	return ops
}

func allocatedStructs(cp *collector.CollectedProgram) map[string]bool {
	out := map[string]bool{}

	for _, cm := range cp.Methods {
		for _, op := range cm.Allocs {
			if as, ok := op.(*ir.AllocStruct); ok && as.Struct != nil {
				out[as.Struct.Name] = true
			}
		}
	}

	return out
}

// addIDFields idempotently appends a synthetic "_id" field to every
// struct that is ever heap-allocated in woven code.
func addIDFields(p *ir.Program, allocated map[string]bool) {
	for _, s := range p.Structs {
		if !allocated[s.Name] {
			continue
		}

		has := false

		for _, f := range s.Fields {
			if f.Name == "_id" {
				has = true
				break
			}
		}

		if !has {
			s.Fields = append(s.Fields, ir.Field{Name: "_id", Type: "int"})
		}
	}
}
