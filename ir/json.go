package ir

// JSON wire format for Program: the IR is the one artifact gvweave reads
// from and writes back to an external resolver/verifier pipeline, so
// Expr and Op — both closed interfaces with no natural JSON shape of
// their own — need an explicit tagged union. Every concrete type
// marshals itself with a "kind" discriminator; decoding peeks at "kind"
// and dispatches by hand, since encoding/json cannot populate an
// interface-typed field on its own.
//
// Callee and Struct pointers cross method boundaries and can't survive
// a naive round trip, so Invoke and AllocStruct carry their target by
// name on the wire (calleeName/structName) and Program.UnmarshalJSON
// links the pointers back up in a second pass once every Method and
// Struct is known.

import (
	"encoding/json"
	"fmt"
)

func (p *Program) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Methods []*Method `json:"methods"`
		Structs []*Struct `json:"structs"`
	}

	if err := json.Unmarshal(data, &shadow); err != nil {
		return fmt.Errorf("ir: decode program: %w", err)
	}

	p.Methods = shadow.Methods
	p.Structs = shadow.Structs

	byMethod := make(map[string]*Method, len(p.Methods))
	for _, m := range p.Methods {
		byMethod[m.Name] = m
	}

	byStruct := make(map[string]*Struct, len(p.Structs))
	for _, s := range p.Structs {
		byStruct[s.Name] = s
	}

	for _, m := range p.Methods {
		linkBody(m.Body, byMethod, byStruct)
	}

	return nil
}

func linkBody(body []Op, byMethod map[string]*Method, byStruct map[string]*Struct) {
	for _, op := range body {
		switch x := op.(type) {
		case *If:
			linkBody(x.Then, byMethod, byStruct)
			linkBody(x.Else, byMethod, byStruct)
		case *While:
			linkBody(x.Body, byMethod, byStruct)
		case *Invoke:
			if x.calleeName != "" {
				x.Callee = byMethod[x.calleeName]
			}
		case *AllocStruct:
			if x.structName != "" {
				x.Struct = byStruct[x.structName]
			}
		}
	}
}

func (m *Method) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Name    string          `json:"name"`
		Params  []Param         `json:"params"`
		Results []Param         `json:"results"`
		IsMain  bool            `json:"is_main"`
		Pre     json.RawMessage `json:"pre"`
		Post    json.RawMessage `json:"post"`
		Body    []json.RawMessage `json:"body"`
	}

	if err := json.Unmarshal(data, &shadow); err != nil {
		return fmt.Errorf("ir: decode method: %w", err)
	}

	pre, err := decodeExpr(shadow.Pre)
	if err != nil {
		return fmt.Errorf("ir: method %s: pre: %w", shadow.Name, err)
	}

	post, err := decodeExpr(shadow.Post)
	if err != nil {
		return fmt.Errorf("ir: method %s: post: %w", shadow.Name, err)
	}

	body, err := decodeOps(shadow.Body)
	if err != nil {
		return fmt.Errorf("ir: method %s: body: %w", shadow.Name, err)
	}

	m.Name, m.Params, m.Results, m.IsMain = shadow.Name, shadow.Params, shadow.Results, shadow.IsMain
	m.Pre, m.Post, m.Body = pre, post, body

	return nil
}

// ---- Op wire format ----

func (x *If) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Cond Expr   `json:"cond"`
		Then []Op   `json:"then"`
		Else []Op   `json:"else"`
	}{"if", x.Cond, x.Then, x.Else})
}

func (x *While) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      string `json:"kind"`
		Cond      Expr   `json:"cond"`
		Invariant Expr   `json:"invariant"`
		Body      []Op   `json:"body"`
	}{"while", x.Cond, x.Invariant, x.Body})
}

func (x *Invoke) MarshalJSON() ([]byte, error) {
	name := x.calleeName
	if x.Callee != nil {
		name = x.Callee.Name
	}

	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Result string `json:"result,omitempty"`
		Callee string `json:"callee"`
		Args   []Expr `json:"args"`
	}{"invoke", x.Result, name, x.Args})
}

func (x *AllocValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Result string `json:"result"`
		Type   string `json:"type"`
	}{"alloc_value", x.Result, x.Type})
}

func (x *AllocStruct) MarshalJSON() ([]byte, error) {
	name := x.structName
	if x.Struct != nil {
		name = x.Struct.Name
	}

	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Result string `json:"result"`
		Struct string `json:"struct"`
	}{"alloc_struct", x.Result, name})
}

func (x *Assign) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Name  string `json:"name"`
		Value Expr   `json:"value"`
	}{"assign", x.Name, x.Value})
}

func (x *AssignMember) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Root   Expr   `json:"root"`
		Struct string `json:"struct"`
		Field  string `json:"field"`
		Value  Expr   `json:"value"`
	}{"assign_member", x.Root, x.Struct, x.Field, x.Value})
}

func (x *Fold) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      string `json:"kind"`
		Predicate string `json:"predicate"`
		Args      []Expr `json:"args"`
	}{"fold", x.Predicate, x.Args})
}

func (x *Unfold) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind      string `json:"kind"`
		Predicate string `json:"predicate"`
		Args      []Expr `json:"args"`
	}{"unfold", x.Predicate, x.Args})
}

func (x *Assert) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind       string `json:"kind"`
		Imperative bool   `json:"imperative"`
		Value      Expr   `json:"value"`
	}{"assert", x.Imperative, x.Value})
}

func (x *ErrorOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}{"error", x.Message})
}

func (x *Return) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Values []Expr `json:"values"`
	}{"return", x.Values})
}

func decodeOps(raw []json.RawMessage) ([]Op, error) {
	if raw == nil {
		return nil, nil
	}

	ops := make([]Op, len(raw))

	for i, r := range raw {
		op, err := decodeOp(r)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}

		ops[i] = op
	}

	return ops, nil
}

func decodeOp(data []byte) (Op, error) {
	var k struct {
		Kind string `json:"kind"`
	}

	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("decode op: %w", err)
	}

	switch k.Kind {
	case "if":
		var w struct {
			Cond json.RawMessage   `json:"cond"`
			Then []json.RawMessage `json:"then"`
			Else []json.RawMessage `json:"else"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		cond, err := decodeExpr(w.Cond)
		if err != nil {
			return nil, fmt.Errorf("if: cond: %w", err)
		}

		then, err := decodeOps(w.Then)
		if err != nil {
			return nil, fmt.Errorf("if: then: %w", err)
		}

		els, err := decodeOps(w.Else)
		if err != nil {
			return nil, fmt.Errorf("if: else: %w", err)
		}

		return &If{Cond: cond, Then: then, Else: els}, nil

	case "while":
		var w struct {
			Cond      json.RawMessage   `json:"cond"`
			Invariant json.RawMessage   `json:"invariant"`
			Body      []json.RawMessage `json:"body"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		cond, err := decodeExpr(w.Cond)
		if err != nil {
			return nil, fmt.Errorf("while: cond: %w", err)
		}

		inv, err := decodeExpr(w.Invariant)
		if err != nil {
			return nil, fmt.Errorf("while: invariant: %w", err)
		}

		body, err := decodeOps(w.Body)
		if err != nil {
			return nil, fmt.Errorf("while: body: %w", err)
		}

		return &While{Cond: cond, Invariant: inv, Body: body}, nil

	case "invoke":
		var w struct {
			Result string            `json:"result"`
			Callee string            `json:"callee"`
			Args   []json.RawMessage `json:"args"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, fmt.Errorf("invoke: args: %w", err)
		}

		return &Invoke{Result: w.Result, calleeName: w.Callee, Args: args}, nil

	case "alloc_value":
		var w struct {
			Result string `json:"result"`
			Type   string `json:"type"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &AllocValue{Result: w.Result, Type: w.Type}, nil

	case "alloc_struct":
		var w struct {
			Result string `json:"result"`
			Struct string `json:"struct"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &AllocStruct{Result: w.Result, structName: w.Struct}, nil

	case "assign":
		var w struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		v, err := decodeExpr(w.Value)
		if err != nil {
			return nil, fmt.Errorf("assign: value: %w", err)
		}

		return &Assign{Name: w.Name, Value: v}, nil

	case "assign_member":
		var w struct {
			Root   json.RawMessage `json:"root"`
			Struct string          `json:"struct"`
			Field  string          `json:"field"`
			Value  json.RawMessage `json:"value"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		root, err := decodeExpr(w.Root)
		if err != nil {
			return nil, fmt.Errorf("assign_member: root: %w", err)
		}

		v, err := decodeExpr(w.Value)
		if err != nil {
			return nil, fmt.Errorf("assign_member: value: %w", err)
		}

		return &AssignMember{Root: root, Struct: w.Struct, Field: w.Field, Value: v}, nil

	case "fold", "unfold":
		var w struct {
			Predicate string            `json:"predicate"`
			Args      []json.RawMessage `json:"args"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, fmt.Errorf("%s: args: %w", k.Kind, err)
		}

		if k.Kind == "fold" {
			return &Fold{Predicate: w.Predicate, Args: args}, nil
		}

		return &Unfold{Predicate: w.Predicate, Args: args}, nil

	case "assert":
		var w struct {
			Imperative bool            `json:"imperative"`
			Value      json.RawMessage `json:"value"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		v, err := decodeExpr(w.Value)
		if err != nil {
			return nil, fmt.Errorf("assert: value: %w", err)
		}

		return &Assert{Imperative: w.Imperative, Value: v}, nil

	case "error":
		var w struct {
			Message string `json:"message"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &ErrorOp{Message: w.Message}, nil

	case "return":
		var w struct {
			Values []json.RawMessage `json:"values"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		values, err := decodeExprs(w.Values)
		if err != nil {
			return nil, fmt.Errorf("return: values: %w", err)
		}

		return &Return{Values: values}, nil

	default:
		return nil, fmt.Errorf("unknown op kind %q", k.Kind)
	}
}

// ---- Expr wire format ----

func (x *Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Op    BinOp  `json:"op"`
		Left  Expr   `json:"left"`
		Right Expr   `json:"right"`
	}{"binary", x.Op, x.Left, x.Right})
}

func (x *Unary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Op      UnOp   `json:"op"`
		Operand Expr   `json:"operand"`
	}{"unary", x.Op, x.Operand})
}

func (x *IntLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value int64  `json:"value"`
	}{"int_lit", x.Value})
}

func (x *CharLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value rune   `json:"value"`
	}{"char_lit", x.Value})
}

func (x *BoolLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value bool   `json:"value"`
	}{"bool_lit", x.Value})
}

func (x *StringLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}{"string_lit", x.Value})
}

func (x *NullLit) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
	}{"null_lit"})
}

func (x *Var) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	}{"var", x.Name})
}

func (x *FieldExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Root   Expr   `json:"root"`
		Struct string `json:"struct"`
		Name   string `json:"name"`
	}{"field", x.Root, x.Struct, x.Name})
}

func (x *DerefExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Operand Expr   `json:"operand"`
	}{"deref", x.Operand})
}

func (x *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
	}{"result"})
}

func (x *Conditional) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Cond Expr   `json:"cond"`
		Then Expr   `json:"then"`
		Else Expr   `json:"else"`
	}{"conditional", x.Cond, x.Then, x.Else})
}

func (x *Imprecise) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Inner Expr   `json:"inner,omitempty"`
	}{"imprecise", x.Inner})
}

func (x *Accessibility) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind   string `json:"kind"`
		Member Expr   `json:"member"`
	}{"accessibility", x.Member})
}

func (x *PredicateInstance) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
		Args []Expr `json:"args"`
	}{"predicate_instance", x.Name, x.Args})
}

func decodeExprs(raw []json.RawMessage) ([]Expr, error) {
	if raw == nil {
		return nil, nil
	}

	exprs := make([]Expr, len(raw))

	for i, r := range raw {
		e, err := decodeExpr(r)
		if err != nil {
			return nil, fmt.Errorf("expr %d: %w", i, err)
		}

		exprs[i] = e
	}

	return exprs, nil
}

// decodeExpr decodes a single Expr node. A missing or JSON-null value
// decodes to a nil Expr, which Imprecise.Inner and Method.Pre/Post both
// use to mean "absent".
func decodeExpr(data []byte) (Expr, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var k struct {
		Kind string `json:"kind"`
	}

	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("decode expr: %w", err)
	}

	switch k.Kind {
	case "binary":
		var w struct {
			Op    BinOp           `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		l, err := decodeExpr(w.Left)
		if err != nil {
			return nil, fmt.Errorf("binary: left: %w", err)
		}

		r, err := decodeExpr(w.Right)
		if err != nil {
			return nil, fmt.Errorf("binary: right: %w", err)
		}

		return &Binary{Op: w.Op, Left: l, Right: r}, nil

	case "unary":
		var w struct {
			Op      UnOp            `json:"op"`
			Operand json.RawMessage `json:"operand"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		o, err := decodeExpr(w.Operand)
		if err != nil {
			return nil, fmt.Errorf("unary: operand: %w", err)
		}

		return &Unary{Op: w.Op, Operand: o}, nil

	case "int_lit":
		var w struct {
			Value int64 `json:"value"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &IntLit{Value: w.Value}, nil

	case "char_lit":
		var w struct {
			Value rune `json:"value"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &CharLit{Value: w.Value}, nil

	case "bool_lit":
		var w struct {
			Value bool `json:"value"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &BoolLit{Value: w.Value}, nil

	case "string_lit":
		var w struct {
			Value string `json:"value"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &StringLit{Value: w.Value}, nil

	case "null_lit":
		return &NullLit{}, nil

	case "var":
		var w struct {
			Name string `json:"name"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &Var{Name: w.Name}, nil

	case "field":
		var w struct {
			Root   json.RawMessage `json:"root"`
			Struct string          `json:"struct"`
			Name   string          `json:"name"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		root, err := decodeExpr(w.Root)
		if err != nil {
			return nil, fmt.Errorf("field: root: %w", err)
		}

		return &FieldExpr{Root: root, Struct: w.Struct, Name: w.Name}, nil

	case "deref":
		var w struct {
			Operand json.RawMessage `json:"operand"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		o, err := decodeExpr(w.Operand)
		if err != nil {
			return nil, fmt.Errorf("deref: operand: %w", err)
		}

		return &DerefExpr{Operand: o}, nil

	case "result":
		return &Result{}, nil

	case "conditional":
		var w struct {
			Cond json.RawMessage `json:"cond"`
			Then json.RawMessage `json:"then"`
			Else json.RawMessage `json:"else"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		c, err := decodeExpr(w.Cond)
		if err != nil {
			return nil, fmt.Errorf("conditional: cond: %w", err)
		}

		t, err := decodeExpr(w.Then)
		if err != nil {
			return nil, fmt.Errorf("conditional: then: %w", err)
		}

		f, err := decodeExpr(w.Else)
		if err != nil {
			return nil, fmt.Errorf("conditional: else: %w", err)
		}

		return &Conditional{Cond: c, Then: t, Else: f}, nil

	case "imprecise":
		var w struct {
			Inner json.RawMessage `json:"inner"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		inner, err := decodeExpr(w.Inner)
		if err != nil {
			return nil, fmt.Errorf("imprecise: inner: %w", err)
		}

		return &Imprecise{Inner: inner}, nil

	case "accessibility":
		var w struct {
			Member json.RawMessage `json:"member"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		member, err := decodeExpr(w.Member)
		if err != nil {
			return nil, fmt.Errorf("accessibility: member: %w", err)
		}

		return &Accessibility{Member: member}, nil

	case "predicate_instance":
		var w struct {
			Name string            `json:"name"`
			Args []json.RawMessage `json:"args"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		args, err := decodeExprs(w.Args)
		if err != nil {
			return nil, fmt.Errorf("predicate_instance: args: %w", err)
		}

		return &PredicateInstance{Name: w.Name, Args: args}, nil

	default:
		return nil, fmt.Errorf("unknown expr kind %q", k.Kind)
	}
}
