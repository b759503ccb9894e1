package residual

// JSON wire format for Expr: the same tagged-union approach ir.Program
// uses, since the verifier's expression language is itself a closed
// interface with no JSON shape of its own. A Table and the MethodTrace
// it's keyed against are the two pieces this package exists to let an
// external verifier hand to gvweave on disk.

import (
	"encoding/json"
	"fmt"
)

func (x *BinExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Op    string `json:"op"`
		Left  Expr   `json:"left"`
		Right Expr   `json:"right"`
	}{"bin", x.Op, x.Left, x.Right})
}

func (x *UnExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    string `json:"kind"`
		Op      string `json:"op"`
		Operand Expr   `json:"operand"`
	}{"un", x.Op, x.Operand})
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

func (x *LocalVar) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	}{"local_var", x.Name})
}

func (x *FieldAccess) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     string `json:"kind"`
		Receiver Expr   `json:"receiver"`
		Name     string `json:"name"`
	}{"field_access", x.Receiver, x.Name})
}

func (x *CondExpr) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Cond Expr   `json:"cond"`
		Then Expr   `json:"then"`
		Else Expr   `json:"else"`
	}{"cond", x.Cond, x.Then, x.Else})
}

func (x *FieldAccessPredicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string       `json:"kind"`
		FA   *FieldAccess `json:"fa"`
	}{"field_access_predicate", x.FA})
}

func (x *PredicateAccess) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
		Args []Expr `json:"args"`
	}{"predicate_access", x.Name, x.Args})
}

func (x *PredicateAccessPredicate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string           `json:"kind"`
		PA   *PredicateAccess `json:"pa"`
	}{"predicate_access_predicate", x.PA})
}

func (x *FieldAccess) UnmarshalJSON(data []byte) error {
	var w struct {
		Receiver json.RawMessage `json:"receiver"`
		Name     string          `json:"name"`
	}

	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("residual: decode field_access: %w", err)
	}

	receiver, err := decodeExpr(w.Receiver)
	if err != nil {
		return fmt.Errorf("residual: field_access: receiver: %w", err)
	}

	x.Receiver, x.Name = receiver, w.Name

	return nil
}

func (x *PredicateAccess) UnmarshalJSON(data []byte) error {
	var w struct {
		Name string            `json:"name"`
		Args []json.RawMessage `json:"args"`
	}

	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("residual: decode predicate_access: %w", err)
	}

	args, err := decodeExprs(w.Args)
	if err != nil {
		return fmt.Errorf("residual: predicate_access: args: %w", err)
	}

	x.Name, x.Args = w.Name, args

	return nil
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
	case "bin":
		var w struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		l, err := decodeExpr(w.Left)
		if err != nil {
			return nil, fmt.Errorf("bin: left: %w", err)
		}

		r, err := decodeExpr(w.Right)
		if err != nil {
			return nil, fmt.Errorf("bin: right: %w", err)
		}

		return &BinExpr{Op: w.Op, Left: l, Right: r}, nil

	case "un":
		var w struct {
			Op      string          `json:"op"`
			Operand json.RawMessage `json:"operand"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		o, err := decodeExpr(w.Operand)
		if err != nil {
			return nil, fmt.Errorf("un: operand: %w", err)
		}

		return &UnExpr{Op: w.Op, Operand: o}, nil

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

	case "local_var":
		var w struct {
			Name string `json:"name"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		return &LocalVar{Name: w.Name}, nil

	case "field_access":
		var fa FieldAccess
		if err := json.Unmarshal(data, &fa); err != nil {
			return nil, fmt.Errorf("field_access: %w", err)
		}

		return &fa, nil

	case "cond":
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
			return nil, fmt.Errorf("cond: cond: %w", err)
		}

		t, err := decodeExpr(w.Then)
		if err != nil {
			return nil, fmt.Errorf("cond: then: %w", err)
		}

		f, err := decodeExpr(w.Else)
		if err != nil {
			return nil, fmt.Errorf("cond: else: %w", err)
		}

		return &CondExpr{Cond: c, Then: t, Else: f}, nil

	case "field_access_predicate":
		var w struct {
			FA json.RawMessage `json:"fa"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		fa, err := decodeExpr(w.FA)
		if err != nil {
			return nil, fmt.Errorf("field_access_predicate: fa: %w", err)
		}

		faPtr, ok := fa.(*FieldAccess)
		if !ok {
			return nil, fmt.Errorf("field_access_predicate: fa is not a field_access")
		}

		return &FieldAccessPredicate{FA: faPtr}, nil

	case "predicate_access":
		var pa PredicateAccess
		if err := json.Unmarshal(data, &pa); err != nil {
			return nil, fmt.Errorf("predicate_access: %w", err)
		}

		return &pa, nil

	case "predicate_access_predicate":
		var w struct {
			PA json.RawMessage `json:"pa"`
		}

		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}

		pa, err := decodeExpr(w.PA)
		if err != nil {
			return nil, fmt.Errorf("predicate_access_predicate: pa: %w", err)
		}

		paPtr, ok := pa.(*PredicateAccess)
		if !ok {
			return nil, fmt.Errorf("predicate_access_predicate: pa is not a predicate_access")
		}

		return &PredicateAccessPredicate{PA: paPtr}, nil

	default:
		return nil, fmt.Errorf("unknown expr kind %q", k.Kind)
	}
}

func (b *BranchFrame) UnmarshalJSON(data []byte) error {
	var w struct {
		Cond   json.RawMessage `json:"cond"`
		At     NodeID          `json:"at"`
		Origin *NodeID         `json:"origin,omitempty"`
	}

	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("residual: decode branch_frame: %w", err)
	}

	cond, err := decodeExpr(w.Cond)
	if err != nil {
		return fmt.Errorf("residual: branch_frame: cond: %w", err)
	}

	b.Cond, b.At, b.Origin = cond, w.At, w.Origin

	return nil
}

func (c *CheckEntry) UnmarshalJSON(data []byte) error {
	var w struct {
		Formula    json.RawMessage `json:"formula"`
		Context    NodeID          `json:"context"`
		Position   Position        `json:"position"`
		Refinement Refinement      `json:"refinement"`
		Branches   []BranchFrame   `json:"branches,omitempty"`

		ValuePostOfCall  bool `json:"value_post_of_call,omitempty"`
		OutsideInvariant bool `json:"outside_invariant,omitempty"`
	}

	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("residual: decode check_entry: %w", err)
	}

	formula, err := decodeExpr(w.Formula)
	if err != nil {
		return fmt.Errorf("residual: check_entry: formula: %w", err)
	}

	c.Formula = formula
	c.Context = w.Context
	c.Position = w.Position
	c.Refinement = w.Refinement
	c.Branches = w.Branches
	c.ValuePostOfCall = w.ValuePostOfCall
	c.OutsideInvariant = w.OutsideInvariant

	return nil
}
