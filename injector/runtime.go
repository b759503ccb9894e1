package injector

import "github.com/gvc0/gvweave/ir"

// runtime is the permission-tracking runtime's fixed interface,
// represented as synthetic methods with no body: the injector's emitted
// code targets them through ordinary Invoke ops, exactly as it would
// target any other callee, rather than inventing a new Op kind.
// permruntime supplies the actual Go implementation these names refer
// to at the target layer.
type runtime struct {
	InitFields        *ir.Method
	AddFieldAccess    *ir.Method
	AddStructAccess   *ir.Method
	AssertAcc         *ir.Method
	AssertDisjointAcc *ir.Method
	Join              *ir.Method
	Disjoin           *ir.Method
}

func newRuntime() *runtime {
	return &runtime{
		InitFields: &ir.Method{
			Name:   "init_fields",
			Params: []ir.Param{{Name: "f", Type: "*Fields"}, {Name: "counter", Type: "*Counter"}},
		},
		AddFieldAccess: &ir.Method{
			Name: "add_field_access",
			Params: []ir.Param{
				{Name: "f", Type: "*Fields"}, {Name: "obj_id", Type: "int"}, {Name: "field_index", Type: "int"},
			},
		},
		AddStructAccess: &ir.Method{
			Name: "add_struct_access",
			Params: []ir.Param{
				{Name: "f", Type: "*Fields"}, {Name: "counter", Type: "*Counter"}, {Name: "n_fields", Type: "int"},
			},
			Results: []ir.Param{{Name: "id", Type: "int"}},
		},
		AssertAcc: &ir.Method{
			Name: "assert_acc",
			Params: []ir.Param{
				{Name: "f", Type: "*Fields"}, {Name: "obj_id", Type: "int"}, {Name: "field_index", Type: "int"},
			},
			Results: []ir.Param{{Name: "ok", Type: "bool"}},
		},
		AssertDisjointAcc: &ir.Method{
			Name: "assert_disjoint_acc",
			Params: []ir.Param{
				{Name: "f1", Type: "*Fields"}, {Name: "f2", Type: "*Fields"},
				{Name: "obj_id", Type: "int"}, {Name: "field_index", Type: "int"},
			},
			Results: []ir.Param{{Name: "ok", Type: "bool"}},
		},
		Join: &ir.Method{
			Name:   "join",
			Params: []ir.Param{{Name: "dst", Type: "*Fields"}, {Name: "src", Type: "*Fields"}},
		},
		Disjoin: &ir.Method{
			Name:   "disjoin",
			Params: []ir.Param{{Name: "dst", Type: "*Fields"}, {Name: "src", Type: "*Fields"}},
		},
	}
}

// methods returns rt's stubs in a fixed order, for appending to the
// woven program so it stays self-describing.
func (rt *runtime) methods() []*ir.Method {
	return []*ir.Method{
		rt.InitFields, rt.AddFieldAccess, rt.AddStructAccess,
		rt.AssertAcc, rt.AssertDisjointAcc, rt.Join, rt.Disjoin,
	}
}
