package injector

import (
	"github.com/gvc0/gvweave/collector"
	"github.com/gvc0/gvweave/ir"
)

// threadSignature appends the extra parameters a tracked method's
// call-style-dependent calling convention requires. Every tracked
// method also gets its own local permission object (fieldsVarName): for
// Precise/Main it leaves the method only at calls into Imprecise or
// PrecisePre callees (as their dynamic_fields, or as the join target of
// their dynamic_out); for PrecisePre it is Joined
// into the caller-owned dynamic_out parameter before every return; for
// Imprecise it absorbs the caller's static_fields argument at entry
// ("permission threading").
func threadSignature(m *ir.Method, cm *collector.CollectedMethod) {
	switch cm.CallStyle {
	case collector.Main:
		// Main owns the process-lifetime counter and fields object
		// outright; nothing is threaded in from a caller.
	case collector.Precise:
		m.Params = append(m.Params, ir.Param{Name: counterVarName, Type: "*Counter"})
	case collector.PrecisePre:
		m.Params = append(m.Params,
			ir.Param{Name: dynamicOutParam, Type: "*Fields"},
			ir.Param{Name: counterVarName, Type: "*Counter"})
	case collector.Imprecise:
		m.Params = append(m.Params,
			ir.Param{Name: dynamicFieldsParam, Type: "*Fields"},
			ir.Param{Name: staticFieldsParam, Type: "*Fields"},
			ir.Param{Name: counterVarName, Type: "*Counter"})
	}
}

// entryPrologue builds the ops permission threading requires at method
// entry, ahead of anything buildConditionsAndChecks placed at
// MethodPre: Main allocates the counter and its own fields object and
// initialises both; an Imprecise callee Joins the static permissions
// its caller handed it into its own local fields object, draining the
// caller-owned scratch in the process (permruntime.Join's documented
// src-emptying semantics).
func entryPrologue(cm *collector.CollectedMethod, c *ctx) []ir.Op {
	var ops []ir.Op

	switch cm.CallStyle {
	case collector.Main:
		ops = append(ops,
			&ir.AllocValue{Result: fieldsVarName, Type: "Fields"},
			&ir.AllocValue{Result: counterVarName, Type: "Counter"},
			&ir.Invoke{Callee: c.rt.InitFields, Args: []ir.Expr{
				&ir.Var{Name: fieldsVarName}, &ir.Var{Name: counterVarName},
			}},
		)
	default:
		ops = append(ops, &ir.AllocValue{Result: fieldsVarName, Type: "Fields"})

		if cm.CallStyle == collector.Imprecise {
			ops = append(ops, &ir.Invoke{
				Callee: c.rt.Join,
				Args:   []ir.Expr{&ir.Var{Name: fieldsVarName}, &ir.Var{Name: staticFieldsParam}},
			})
		}
	}

	return ops
}

// returnEpilogue implements the PrecisePre half of permission threading:
// the method Joins its own accumulated fields object into the
// caller-owned dynamic_out parameter, run immediately before each
// Return.
func returnEpilogue(cm *collector.CollectedMethod, c *ctx) []ir.Op {
	if cm.CallStyle != collector.PrecisePre {
		return nil
	}

	return []ir.Op{&ir.Invoke{
		Callee: c.rt.Join,
		Args:   []ir.Expr{&ir.Var{Name: dynamicOutParam}, &ir.Var{Name: fieldsVarName}},
	}}
}

// callSitePrologueEpilogue implements the call-site convention for
// invoking a tracked callee: forward the shared counter always; for an
// Imprecise callee, build a scratch Fields
// object from exactly the accessibility checks the collector placed
// at this call's precondition location, pass it as static_fields
// alongside the caller's own running fields object as dynamic_fields,
// then disjoin the handed-over permissions back out of the caller's
// own bookkeeping after the call (permruntime.Disjoin's "callers keep
// their own object in sync" role); for a PrecisePre callee, pass a
// fresh scratch as dynamic_out and join whatever the callee wrote into
// it back into the caller's own fields object.
func callSitePrologueEpilogue(
	callee *collector.CollectedMethod,
	inv *ir.Invoke,
	buildChecksAgainst func(scratchVar string) []ir.Op,
	c *ctx,
) (pre, post []ir.Op) {
	if callee.CallStyle == collector.Main {
		return nil, nil
	}

	switch callee.CallStyle {
	case collector.Precise:
		inv.Args = append(inv.Args, &ir.Var{Name: counterVarName})

	case collector.PrecisePre:
		scratch := c.freshVar("static_out")
		pre = append(pre, &ir.AllocValue{Result: scratch, Type: "Fields"})
		inv.Args = append(inv.Args, &ir.Var{Name: scratch}, &ir.Var{Name: counterVarName})
		post = append(post, &ir.Invoke{
			Callee: c.rt.Join,
			Args:   []ir.Expr{&ir.Var{Name: fieldsVarName}, &ir.Var{Name: scratch}},
		})

	case collector.Imprecise:
		scratch := c.freshVar("static_fields")
		pre = append(pre, &ir.AllocValue{Result: scratch, Type: "Fields"})
		pre = append(pre, buildChecksAgainst(scratch)...)

		inv.Args = append(inv.Args,
			&ir.Var{Name: fieldsVarName}, &ir.Var{Name: scratch}, &ir.Var{Name: counterVarName})

		post = append(post, &ir.Invoke{
			Callee: c.rt.Disjoin,
			Args:   []ir.Expr{&ir.Var{Name: fieldsVarName}, &ir.Var{Name: scratch}},
		})
	}

	return pre, post
}

// allocBookkeeping mints an object id for every AllocStruct in woven
// code and stamps it into the struct's synthetic _id field. A purely
// precise method (CallStyle Precise, and no call to a callee whose pre-
// or postcondition is imprecise) never hands its fields object to a
// caller or callee, so there is nothing for a fresh allocation to
// register with: it takes its id straight off the shared instance
// counter (`obj._id = (*counter)++`). Every other method's fields
// object takes part in permission threading, so its allocations go
// through add_struct_access, which both mints the id and registers
// every field of the new object with that fields object in the same
// call.
func allocBookkeeping(alloc *ir.AllocStruct, cm *collector.CollectedMethod, c *ctx) []ir.Op {
	structName := alloc.Struct.Name
	idVar := c.freshVar(alloc.Result + "_id")

	preciseOnly := cm.CallStyle == collector.Precise

	for _, inv := range cm.Invokes {
		if inv.Callee != nil && (ir.IsImprecise(inv.Callee.Pre) || ir.IsImprecise(inv.Callee.Post)) {
			preciseOnly = false
		}
	}

	if preciseOnly {
		counterNext := &ir.FieldExpr{Root: &ir.Var{Name: counterVarName}, Struct: "Counter", Name: "Next"}

		return []ir.Op{
			&ir.Assign{Name: idVar, Value: counterNext},
			&ir.AssignMember{
				Root: &ir.Var{Name: counterVarName}, Struct: "Counter", Field: "Next",
				Value: &ir.Binary{Op: ir.BinAdd, Left: &ir.Var{Name: idVar}, Right: &ir.IntLit{Value: 1}},
			},
			&ir.AssignMember{
				Root: &ir.Var{Name: alloc.Result}, Struct: structName, Field: "_id", Value: &ir.Var{Name: idVar},
			},
		}
	}

	nFields := c.nFields[structName]

	return []ir.Op{
		&ir.Invoke{
			Callee: c.rt.AddStructAccess,
			Result: idVar,
			Args: []ir.Expr{
				&ir.Var{Name: fieldsVarName}, &ir.Var{Name: counterVarName}, &ir.IntLit{Value: int64(nFields)},
			},
		},
		&ir.AssignMember{
			Root: &ir.Var{Name: alloc.Result}, Struct: structName, Field: "_id", Value: &ir.Var{Name: idVar},
		},
	}
}
