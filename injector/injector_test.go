package injector

import (
	"context"
	"strings"
	"testing"

	"github.com/gvc0/gvweave/check"
	"github.com/gvc0/gvweave/checkexpr"
	"github.com/gvc0/gvweave/collector"
	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/logic"
	"github.com/gvc0/gvweave/residual"
)

func newTestCtx() *ctx {
	return &ctx{
		rt:      newRuntime(),
		fields:  map[string]map[string]int{},
		nFields: map[string]int{},
	}
}

func TestThreadSignature(t *testing.T) {
	cases := []struct {
		name       string
		style      collector.CallStyle
		wantParams []string
	}{
		{"main", collector.Main, nil},
		{"precise", collector.Precise, []string{counterVarName}},
		{"precisepre", collector.PrecisePre, []string{dynamicOutParam, counterVarName}},
		{"imprecise", collector.Imprecise, []string{dynamicFieldsParam, staticFieldsParam, counterVarName}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := &ir.Method{Name: "f", Params: []ir.Param{{Name: "a", Type: "int"}}}
			cm := &collector.CollectedMethod{CallStyle: c.style}

			threadSignature(m, cm)

			var got []string
			for _, p := range m.Params[1:] {
				got = append(got, p.Name)
			}

			if len(got) != len(c.wantParams) {
				t.Fatalf("params = %v, want %v", got, c.wantParams)
			}

			for i := range got {
				if got[i] != c.wantParams[i] {
					t.Errorf("param %d = %q, want %q", i, got[i], c.wantParams[i])
				}
			}
		})
	}
}

func TestEntryPrologueMain(t *testing.T) {
	c := newTestCtx()
	cm := &collector.CollectedMethod{CallStyle: collector.Main}

	ops := entryPrologue(cm, c)
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d: %v", len(ops), ops)
	}

	av, ok := ops[0].(*ir.AllocValue)
	if !ok || av.Result != fieldsVarName || av.Type != "Fields" {
		t.Errorf("op 0 = %#v, want AllocValue(%s, Fields)", ops[0], fieldsVarName)
	}

	cv, ok := ops[1].(*ir.AllocValue)
	if !ok || cv.Result != counterVarName || cv.Type != "Counter" {
		t.Errorf("op 1 = %#v, want AllocValue(%s, Counter)", ops[1], counterVarName)
	}

	inv, ok := ops[2].(*ir.Invoke)
	if !ok || inv.Callee != c.rt.InitFields {
		t.Fatalf("op 2 = %#v, want Invoke(init_fields)", ops[2])
	}

	if len(inv.Args) != 2 {
		t.Fatalf("init_fields args = %v", inv.Args)
	}
}

func TestEntryPrologueImprecise(t *testing.T) {
	c := newTestCtx()
	cm := &collector.CollectedMethod{CallStyle: collector.Imprecise}

	ops := entryPrologue(cm, c)
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d: %v", len(ops), ops)
	}

	if _, ok := ops[0].(*ir.AllocValue); !ok {
		t.Errorf("op 0 = %#v, want AllocValue", ops[0])
	}

	inv, ok := ops[1].(*ir.Invoke)
	if !ok || inv.Callee != c.rt.Join {
		t.Fatalf("op 1 = %#v, want Invoke(join)", ops[1])
	}

	if len(inv.Args) != 2 {
		t.Fatalf("join args = %v", inv.Args)
	}

	dst, ok := inv.Args[0].(*ir.Var)
	if !ok || dst.Name != fieldsVarName {
		t.Errorf("join dst = %v, want %s", inv.Args[0], fieldsVarName)
	}

	src, ok := inv.Args[1].(*ir.Var)
	if !ok || src.Name != staticFieldsParam {
		t.Errorf("join src = %v, want %s", inv.Args[1], staticFieldsParam)
	}
}

func TestCallSitePrologueEpiloguePreciseAppendsCounterOnly(t *testing.T) {
	c := newTestCtx()
	callee := &collector.CollectedMethod{CallStyle: collector.Precise}
	inv := &ir.Invoke{Args: []ir.Expr{&ir.Var{Name: "a"}}}

	pre, post := callSitePrologueEpilogue(callee, inv, nil, c)
	if pre != nil || post != nil {
		t.Fatalf("precise call site should add no prologue/epilogue, got pre=%v post=%v", pre, post)
	}

	if len(inv.Args) != 2 {
		t.Fatalf("args = %v, want original arg plus counter", inv.Args)
	}

	last, ok := inv.Args[1].(*ir.Var)
	if !ok || last.Name != counterVarName {
		t.Errorf("last arg = %v, want %s", inv.Args[1], counterVarName)
	}
}

func TestCallSitePrologueEpilogueImpreciseBuildsScratchAndDisjoins(t *testing.T) {
	c := newTestCtx()
	callee := &collector.CollectedMethod{CallStyle: collector.Imprecise}
	inv := &ir.Invoke{}

	var gotScratch string
	buildChecks := func(scratch string) []ir.Op {
		gotScratch = scratch
		return []ir.Op{&ir.Invoke{Callee: c.rt.AddFieldAccess}}
	}

	pre, post := callSitePrologueEpilogue(callee, inv, buildChecks, c)

	if gotScratch == "" {
		t.Fatal("buildChecks was never called")
	}

	if len(pre) != 2 {
		t.Fatalf("pre = %v, want alloc + check op", pre)
	}

	alloc, ok := pre[0].(*ir.AllocValue)
	if !ok || alloc.Result != gotScratch {
		t.Errorf("pre[0] = %#v, want AllocValue(%s)", pre[0], gotScratch)
	}

	if len(inv.Args) != 3 {
		t.Fatalf("args = %v, want fields/scratch/counter", inv.Args)
	}

	if v, ok := inv.Args[0].(*ir.Var); !ok || v.Name != fieldsVarName {
		t.Errorf("arg 0 = %v, want %s", inv.Args[0], fieldsVarName)
	}

	if v, ok := inv.Args[1].(*ir.Var); !ok || v.Name != gotScratch {
		t.Errorf("arg 1 = %v, want %s", inv.Args[1], gotScratch)
	}

	if v, ok := inv.Args[2].(*ir.Var); !ok || v.Name != counterVarName {
		t.Errorf("arg 2 = %v, want %s", inv.Args[2], counterVarName)
	}

	if len(post) != 1 {
		t.Fatalf("post = %v, want a single disjoin", post)
	}

	disjoin, ok := post[0].(*ir.Invoke)
	if !ok || disjoin.Callee != c.rt.Disjoin {
		t.Fatalf("post[0] = %#v, want Invoke(disjoin)", post[0])
	}
}

func TestAllocBookkeepingStampsID(t *testing.T) {
	c := newTestCtx()
	c.nFields["X"] = 2

	strct := &ir.Struct{Name: "X"}
	alloc := &ir.AllocStruct{Result: "o", Struct: strct}
	cm := &collector.CollectedMethod{CallStyle: collector.Imprecise}

	ops := allocBookkeeping(alloc, cm, c)
	if len(ops) != 2 {
		t.Fatalf("expected 2 ops, got %d: %v", len(ops), ops)
	}

	inv, ok := ops[0].(*ir.Invoke)
	if !ok || inv.Callee != c.rt.AddStructAccess {
		t.Fatalf("ops[0] = %#v, want Invoke(add_struct_access)", ops[0])
	}

	if inv.Result == "" {
		t.Error("add_struct_access call has no bound result")
	}

	if len(inv.Args) != 3 {
		t.Fatalf("add_struct_access args = %v", inv.Args)
	}

	if n, ok := inv.Args[2].(*ir.IntLit); !ok || n.Value != 2 {
		t.Errorf("n_fields arg = %v, want 2", inv.Args[2])
	}

	am, ok := ops[1].(*ir.AssignMember)
	if !ok {
		t.Fatalf("ops[1] = %#v, want AssignMember", ops[1])
	}

	if am.Struct != "X" || am.Field != "_id" {
		t.Errorf("assign member = %+v, want X._id", am)
	}

	v, ok := am.Value.(*ir.Var)
	if !ok || v.Name != inv.Result {
		t.Errorf("assigned value = %v, want the bound id var %q", am.Value, inv.Result)
	}
}

func TestAllocBookkeepingPreciseContextBumpsCounterDirectly(t *testing.T) {
	c := newTestCtx()

	strct := &ir.Struct{Name: "X"}
	alloc := &ir.AllocStruct{Result: "o", Struct: strct}
	cm := &collector.CollectedMethod{CallStyle: collector.Precise}

	ops := allocBookkeeping(alloc, cm, c)
	if len(ops) != 3 {
		t.Fatalf("expected 3 ops, got %d: %v", len(ops), ops)
	}

	readCounter, ok := ops[0].(*ir.Assign)
	if !ok {
		t.Fatalf("ops[0] = %#v, want Assign", ops[0])
	}

	fe, ok := readCounter.Value.(*ir.FieldExpr)
	if !ok || fe.Struct != "Counter" || fe.Name != "Next" {
		t.Fatalf("ops[0] value = %#v, want counter.Next", readCounter.Value)
	}

	bump, ok := ops[1].(*ir.AssignMember)
	if !ok || bump.Struct != "Counter" || bump.Field != "Next" {
		t.Fatalf("ops[1] = %#v, want AssignMember counter.Next", ops[1])
	}

	bin, ok := bump.Value.(*ir.Binary)
	if !ok || bin.Op != ir.BinAdd {
		t.Fatalf("ops[1] value = %#v, want a + binary", bump.Value)
	}

	if v, ok := bin.Left.(*ir.Var); !ok || v.Name != readCounter.Name {
		t.Errorf("bump left = %v, want %s", bin.Left, readCounter.Name)
	}

	am, ok := ops[2].(*ir.AssignMember)
	if !ok || am.Struct != "X" || am.Field != "_id" {
		t.Fatalf("ops[2] = %#v, want AssignMember X._id", ops[2])
	}

	if v, ok := am.Value.(*ir.Var); !ok || v.Name != readCounter.Name {
		t.Errorf("_id assigned value = %v, want %s", am.Value, readCounter.Name)
	}

	for _, op := range ops {
		if inv, ok := op.(*ir.Invoke); ok {
			t.Fatalf("purely precise bookkeeping must not call into the runtime, got %v", inv)
		}
	}
}

func TestDisjointAssertionBuildsTwoScratchSetsAndAsserts(t *testing.T) {
	c := newTestCtx()

	aObjID := &ir.Var{Name: "id1"}
	aFieldIdx := &ir.IntLit{Value: 0}
	bObjID := &ir.Var{Name: "id2"}
	bFieldIdx := &ir.IntLit{Value: 1}

	ops := disjointAssertion(c, aObjID, aFieldIdx, bObjID, bFieldIdx)
	if len(ops) != 6 {
		t.Fatalf("expected 6 ops, got %d: %v", len(ops), ops)
	}

	allocA, ok := ops[0].(*ir.AllocValue)
	if !ok || allocA.Type != "Fields" {
		t.Fatalf("ops[0] = %#v, want AllocValue Fields", ops[0])
	}

	allocB, ok := ops[1].(*ir.AllocValue)
	if !ok || allocB.Type != "Fields" {
		t.Fatalf("ops[1] = %#v, want AllocValue Fields", ops[1])
	}

	addA, ok := ops[2].(*ir.Invoke)
	if !ok || addA.Callee != c.rt.AddFieldAccess {
		t.Fatalf("ops[2] = %#v, want an add_field_access invoke", ops[2])
	}

	if v, ok := addA.Args[0].(*ir.Var); !ok || v.Name != allocA.Result {
		t.Errorf("ops[2] fields arg = %v, want %s", addA.Args[0], allocA.Result)
	}

	if addA.Args[1] != aObjID || addA.Args[2] != aFieldIdx {
		t.Errorf("ops[2] args = %v, want (aObjID, aFieldIdx)", addA.Args[1:])
	}

	addB, ok := ops[3].(*ir.Invoke)
	if !ok || addB.Callee != c.rt.AddFieldAccess || addB.Args[1] != bObjID || addB.Args[2] != bFieldIdx {
		t.Fatalf("ops[3] = %#v, want add_field_access(fb, bObjID, bFieldIdx)", ops[3])
	}

	disjoint, ok := ops[4].(*ir.Invoke)
	if !ok || disjoint.Callee != c.rt.AssertDisjointAcc {
		t.Fatalf("ops[4] = %#v, want an assert_disjoint_acc invoke", ops[4])
	}

	if disjoint.Args[2] != aObjID || disjoint.Args[3] != aFieldIdx {
		t.Errorf("ops[4] keyed args = %v, want (aObjID, aFieldIdx)", disjoint.Args[2:])
	}

	assert, ok := ops[5].(*ir.Assert)
	if !ok || !assert.Imperative {
		t.Fatalf("ops[5] = %#v, want an imperative Assert", ops[5])
	}

	v, ok := assert.Value.(*ir.Var)
	if !ok || v.Name != disjoint.Result {
		t.Errorf("assert value = %v, want the disjoint call's result", assert.Value)
	}
}

func TestAccessSlotDispatchesOnPartnerKind(t *testing.T) {
	c := &ctx{fields: map[string]map[string]int{"X": {"f": 0}}, nFields: map[string]int{"X": 1}}

	fieldPartner := check.Check{
		Kind:  check.KindFieldAccessibility,
		Field: check.FieldRef{Root: &checkexpr.Var{Name: "y"}, Struct: "X", Name: "f"},
	}

	objID, _, err := accessSlot(fieldPartner, c)
	if err != nil {
		t.Fatalf("accessSlot: %v", err)
	}

	fe, ok := objID.(*ir.FieldExpr)
	if !ok || fe.Struct != "X" || fe.Name != "_id" {
		t.Fatalf("objID = %#v, want y._id", objID)
	}

	predicatePartner := check.Check{
		Kind:      check.KindPredicateAccessibility,
		Predicate: check.PredicateRef{Name: "p"},
	}

	if _, _, err := accessSlot(predicatePartner, c); err != nil {
		t.Fatalf("accessSlot: %v", err)
	}

	if _, _, err := accessSlot(check.Check{Kind: check.KindExpr}, c); err == nil {
		t.Fatal("accessSlot should reject a check kind with no access slot")
	}
}

func TestGuardExprCollapsesTrivialDisjunction(t *testing.T) {
	trivial := logic.Disjunction{logic.NewConjunction()}

	if got := guardExpr(trivial, tmpVarName); got != nil {
		t.Errorf("guardExpr(true) = %v, want nil", got)
	}

	if got := guardExpr(nil, tmpVarName); got != nil {
		t.Errorf("guardExpr(false-but-nil) = %v, want nil", got)
	}

	single := logic.Disjunction{logic.NewConjunction(logic.Term{ID: 3, Polarity: true})}
	got := guardExpr(single, tmpVarName)

	v, ok := got.(*ir.Var)
	if !ok || v.Name != tmpVarName(3) {
		t.Fatalf("guardExpr(t3) = %#v, want Var(%s)", got, tmpVarName(3))
	}

	negated := logic.Disjunction{logic.NewConjunction(logic.Term{ID: 3, Polarity: false})}
	got = guardExpr(negated, tmpVarName)

	u, ok := got.(*ir.Unary)
	if !ok || u.Op != ir.UnNot {
		t.Fatalf("guardExpr(!t3) = %#v, want Not(...)", got)
	}
}

// countInvokesByName counts Invoke ops in body (flat, no branch recursion
// needed for the fixtures below) whose callee stub carries name.
func countInvokesByName(body []ir.Op, name string) int {
	n := 0

	for _, op := range body {
		if inv, ok := op.(*ir.Invoke); ok && inv.Callee != nil && inv.Callee.Name == name {
			n++
		}
	}

	return n
}

func findInvokeByName(body []ir.Op, name string) *ir.Invoke {
	for _, op := range body {
		if inv, ok := op.(*ir.Invoke); ok && inv.Callee != nil && inv.Callee.Name == name {
			return inv
		}
	}

	return nil
}

func TestInjectPreciseFieldAccessCheck(t *testing.T) {
	structX := &ir.Struct{Name: "X", Fields: []ir.Field{{Name: "f", Type: "int"}}}

	reader := &ir.Method{
		Name:   "reader",
		Params: []ir.Param{{Name: "a", Type: "X"}},
		Pre:    &ir.Accessibility{Member: &ir.FieldExpr{Root: &ir.Var{Name: "a"}, Struct: "X", Name: "f"}},
	}

	allocX := &ir.AllocStruct{Result: "x", Struct: structX}
	invoke := &ir.Invoke{Callee: reader, Args: []ir.Expr{&ir.Var{Name: "x"}}}
	caller := &ir.Method{Name: "caller", Body: []ir.Op{allocX, invoke}}

	program := &ir.Program{Methods: []*ir.Method{reader, caller}, Structs: []*ir.Struct{structX}}

	trace := &residual.MethodTrace{
		Statements: []residual.Statement{
			{ID: 1, Kind: residual.StmtAllocStruct},
			{ID: 2, Kind: residual.StmtInvoke},
		},
	}

	table := residual.Table{
		2: {
			{
				Formula: &residual.FieldAccessPredicate{
					FA: &residual.FieldAccess{Receiver: &residual.LocalVar{Name: "x"}, Name: "X$f"},
				},
				Context:  2,
				Position: residual.PosValue,
			},
		},
	}

	cp, err := collector.Collect(context.Background(), program,
		map[*ir.Method]*residual.MethodTrace{caller: trace},
		map[*ir.Method]residual.Table{caller: table})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if err := Inject(context.Background(), program, cp); err != nil {
		t.Fatalf("Inject: %v", err)
	}

	if countInvokesByName(caller.Body, "assert_acc") != 1 {
		t.Fatalf("caller body = %v, want exactly one assert_acc call", caller.Body)
	}

	assertAcc := findInvokeByName(caller.Body, "assert_acc")
	if len(assertAcc.Args) != 3 {
		t.Fatalf("assert_acc args = %v", assertAcc.Args)
	}

	objID, ok := assertAcc.Args[1].(*ir.FieldExpr)
	if !ok || objID.Struct != "X" || objID.Name != "_id" {
		t.Fatalf("assert_acc obj id = %#v, want x._id", assertAcc.Args[1])
	}

	root, ok := objID.Root.(*ir.Var)
	if !ok || root.Name != "x" {
		t.Errorf("assert_acc obj root = %#v, want x", objID.Root)
	}

	if n := countInvokesByName(caller.Body, "add_struct_access"); n != 0 {
		t.Errorf("caller body has %d add_struct_access calls, want none: a purely precise caller stamps _id from the counter", n)
	}

	if len(reader.Params) != 2 || reader.Params[1].Name != counterVarName {
		t.Errorf("reader params = %v, want a plus counter", reader.Params)
	}

	readerInvoke := findInvokeByName(caller.Body, "reader")
	if readerInvoke == nil || len(readerInvoke.Args) != 2 {
		t.Fatalf("reader call args = %v, want x plus counter", readerInvoke)
	}

	hasID := false
	for _, f := range structX.Fields {
		if f.Name == "_id" {
			hasID = true
		}
	}

	if !hasID {
		t.Error("X should have gained a synthetic _id field")
	}
}

func TestInjectImpreciseCalleeFromPreciseCaller(t *testing.T) {
	structY := &ir.Struct{Name: "Y", Fields: []ir.Field{{Name: "g", Type: "int"}}}

	writer := &ir.Method{
		Name:   "writer",
		Params: []ir.Param{{Name: "b", Type: "Y"}},
		Pre: &ir.Imprecise{
			Inner: &ir.Accessibility{Member: &ir.FieldExpr{Root: &ir.Var{Name: "b"}, Struct: "Y", Name: "g"}},
		},
	}

	allocY := &ir.AllocStruct{Result: "y", Struct: structY}
	invoke := &ir.Invoke{Callee: writer, Args: []ir.Expr{&ir.Var{Name: "y"}}}
	caller := &ir.Method{Name: "caller2", Body: []ir.Op{allocY, invoke}}

	program := &ir.Program{Methods: []*ir.Method{writer, caller}, Structs: []*ir.Struct{structY}}

	trace := &residual.MethodTrace{
		Statements: []residual.Statement{
			{ID: 1, Kind: residual.StmtAllocStruct},
			{ID: 2, Kind: residual.StmtInvoke},
		},
	}

	table := residual.Table{
		2: {
			{
				Formula: &residual.FieldAccessPredicate{
					FA: &residual.FieldAccess{Receiver: &residual.LocalVar{Name: "y"}, Name: "Y$g"},
				},
				Context:  2,
				Position: residual.PosValue,
			},
		},
	}

	cp, err := collector.Collect(context.Background(), program,
		map[*ir.Method]*residual.MethodTrace{caller: trace},
		map[*ir.Method]residual.Table{caller: table})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	if err := Inject(context.Background(), program, cp); err != nil {
		t.Fatalf("Inject: %v", err)
	}

	wantWriterParams := []string{"b", dynamicFieldsParam, staticFieldsParam, counterVarName}
	if len(writer.Params) != len(wantWriterParams) {
		t.Fatalf("writer params = %v, want %v", writer.Params, wantWriterParams)
	}

	for i, p := range writer.Params {
		if p.Name != wantWriterParams[i] {
			t.Errorf("writer param %d = %q, want %q", i, p.Name, wantWriterParams[i])
		}
	}

	if countInvokesByName(writer.Body, "join") != 1 {
		t.Errorf("writer body = %v, want one join absorbing static_fields", writer.Body)
	}

	if countInvokesByName(caller.Body, "assert_acc") != 1 {
		t.Errorf("caller2 body = %v, want the residual check's own assert_acc", caller.Body)
	}

	if countInvokesByName(caller.Body, "add_field_access") != 1 {
		t.Errorf("caller2 body = %v, want one add_field_access building the call-site scratch", caller.Body)
	}

	if countInvokesByName(caller.Body, "disjoin") != 1 {
		t.Errorf("caller2 body = %v, want one disjoin after the call", caller.Body)
	}

	writerInvoke := findInvokeByName(caller.Body, "writer")
	if writerInvoke == nil || len(writerInvoke.Args) != 4 {
		t.Fatalf("writer call args = %v, want y plus fields/scratch/counter", writerInvoke)
	}

	if v, ok := writerInvoke.Args[1].(*ir.Var); !ok || v.Name != fieldsVarName {
		t.Errorf("writer call dynamic_fields arg = %v, want %s", writerInvoke.Args[1], fieldsVarName)
	}

	scratchVar, ok := writerInvoke.Args[2].(*ir.Var)
	if !ok || !strings.HasPrefix(scratchVar.Name, "$static_fields_") {
		t.Errorf("writer call static_fields arg = %v, want a fresh scratch var", writerInvoke.Args[2])
	}
}
