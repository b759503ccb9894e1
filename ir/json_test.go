package ir

import (
	"encoding/json"
	"testing"
)

func TestProgramJSONRoundTripLinksCalleeAndStruct(t *testing.T) {
	point := &Struct{Name: "Point", Fields: []Field{{Name: "x", Type: "int"}}}

	reader := &Method{
		Name:   "reader",
		Params: []Param{{Name: "p", Type: "Point"}},
		Pre:    &Accessibility{Member: &FieldExpr{Root: &Var{Name: "p"}, Struct: "Point", Name: "x"}},
		Body: []Op{
			&Return{Values: []Expr{&FieldExpr{Root: &Var{Name: "p"}, Struct: "Point", Name: "x"}}},
		},
	}

	caller := &Method{
		Name: "caller",
		Body: []Op{
			&AllocStruct{Result: "pt", Struct: point},
			&If{
				Cond: &Binary{Op: BinEq, Left: &IntLit{Value: 1}, Right: &IntLit{Value: 1}},
				Then: []Op{
					&Invoke{Result: "v", Callee: reader, Args: []Expr{&Var{Name: "pt"}}},
				},
				Else: []Op{
					&ErrorOp{Message: "unreachable"},
				},
			},
			&Assert{Imperative: true, Value: &Unary{Op: UnNot, Operand: &BoolLit{Value: false}}},
			&Return{},
		},
	}

	program := &Program{Methods: []*Method{reader, caller}, Structs: []*Struct{point}}

	data, err := json.Marshal(program)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded Program
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if len(decoded.Methods) != 2 || len(decoded.Structs) != 1 {
		t.Fatalf("decoded program = %+v", decoded)
	}

	decodedCaller := decoded.Methods[1]
	if decodedCaller.Name != "caller" {
		t.Fatalf("decoded.Methods[1] = %v, want caller", decodedCaller.Name)
	}

	allocStruct, ok := decodedCaller.Body[0].(*AllocStruct)
	if !ok || allocStruct.Struct == nil || allocStruct.Struct.Name != "Point" {
		t.Fatalf("decoded AllocStruct = %#v, want linked Point", decodedCaller.Body[0])
	}

	if allocStruct.Struct != decoded.Structs[0] {
		t.Error("decoded AllocStruct.Struct should be the same pointer as decoded.Structs[0]")
	}

	ifOp, ok := decodedCaller.Body[1].(*If)
	if !ok {
		t.Fatalf("decoded.Body[1] = %#v, want *If", decodedCaller.Body[1])
	}

	invoke, ok := ifOp.Then[0].(*Invoke)
	if !ok || invoke.Callee == nil || invoke.Callee.Name != "reader" {
		t.Fatalf("decoded Invoke = %#v, want linked reader", ifOp.Then[0])
	}

	if invoke.Callee != decoded.Methods[0] {
		t.Error("decoded Invoke.Callee should be the same pointer as decoded.Methods[0]")
	}

	decodedReader := decoded.Methods[0]

	pre, ok := decodedReader.Pre.(*Accessibility)
	if !ok {
		t.Fatalf("decoded reader.Pre = %#v, want *Accessibility", decodedReader.Pre)
	}

	member, ok := pre.Member.(*FieldExpr)
	if !ok || member.Struct != "Point" || member.Name != "x" {
		t.Fatalf("decoded accessibility member = %#v", pre.Member)
	}

	retField, ok := decodedReader.Body[0].(*Return)
	if !ok || len(retField.Values) != 1 {
		t.Fatalf("decoded reader body = %#v", decodedReader.Body)
	}

	if _, ok := retField.Values[0].(*FieldExpr); !ok {
		t.Fatalf("decoded return value = %#v, want *FieldExpr", retField.Values[0])
	}

	assert, ok := decodedCaller.Body[2].(*Assert)
	if !ok || !assert.Imperative {
		t.Fatalf("decoded assert = %#v", decodedCaller.Body[2])
	}

	not, ok := assert.Value.(*Unary)
	if !ok || not.Op != UnNot {
		t.Fatalf("decoded assert value = %#v", assert.Value)
	}

	finalReturn, ok := decodedCaller.Body[3].(*Return)
	if !ok || len(finalReturn.Values) != 0 {
		t.Fatalf("decoded final return = %#v, want a void return", decodedCaller.Body[3])
	}
}

func TestDecodeExprNilForMissingOrNull(t *testing.T) {
	e, err := decodeExpr(nil)
	if err != nil || e != nil {
		t.Errorf("decodeExpr(nil) = %v, %v, want nil, nil", e, err)
	}

	e, err = decodeExpr([]byte("null"))
	if err != nil || e != nil {
		t.Errorf("decodeExpr(null) = %v, %v, want nil, nil", e, err)
	}
}

func TestImpreciseWithNoInnerRoundTrips(t *testing.T) {
	data, err := json.Marshal(&Imprecise{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	e, err := decodeExpr(data)
	if err != nil {
		t.Fatalf("decodeExpr: %v", err)
	}

	imp, ok := e.(*Imprecise)
	if !ok || imp.Inner != nil {
		t.Fatalf("decoded = %#v, want bare Imprecise", e)
	}
}
