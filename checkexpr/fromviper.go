package checkexpr

import (
	"fmt"
	"reflect"
	"strings"

	"tlog.app/go/errors"

	"github.com/gvc0/gvweave/ir"
	"github.com/gvc0/gvweave/residual"
)

// ResultTempPrefix names a result-temporary variable in the verifier's
// namespace: a local the verifier introduced to hold a call's or a
// postcondition's named result, distinct from "$result" itself.
const ResultTempPrefix = "$res_"

// resultName is the verifier-namespace spelling of the distinguished
// Result.
const resultName = "$result"

// pointerValueFields are the three synthetic field names a gradual-C0
// heap cell's pointee is reached through, one per pointee static
// category: integer, boolean, or another pointer. A FieldAccess on one
// of these is not an ordinary struct field — it is the verifier's own
// encoding of a pointer dereference, and lowers to Deref rather than
// Field.
var pointerValueFields = map[string]bool{
	"val_int":  true,
	"val_bool": true,
	"val_ref":  true,
}

// UnsupportedNodeError is returned when FromViper encounters a verifier
// AST construct the check algebra does not model.
type UnsupportedNodeError struct {
	Node residual.Expr
}

func (e UnsupportedNodeError) Error() string {
	return fmt.Sprintf("checkexpr: unsupported verifier node: %v", reflect.TypeOf(e.Node))
}

// MalformedFieldNameError is returned when a field access name is
// neither a pointer-dereference sentinel nor a well-formed
// "struct$field" name.
type MalformedFieldNameError struct {
	Name string
}

func (e MalformedFieldNameError) Error() string {
	return fmt.Sprintf("checkexpr: malformed field name %q, want struct$field", e.Name)
}

var binOpTable = map[string]BinOp{
	"&&": And, "||": Or,
	"+": Add, "-": Sub, "*": Mul, "/": Div,
	"==": Eq, "<": Lt, "<=": Le, ">": Gt, ">=": Ge,
}

// FromViper translates a verifier expression into the check algebra,
// implementing the lowering from the verifier's node kinds:
//
//   - "!=" becomes Not(Eq(...)).
//   - "!(!x)" collapses to x.
//   - a FieldAccess on one of the three pointer-dereference sentinel
//     names becomes Deref(root).
//   - any other field access name has the form "struct$field" and
//     becomes Field(root, struct, field).
//   - the local variable "$result" becomes Result.
//   - variables beginning with ResultTempPrefix become ResultVar.
//   - every other local variable becomes Var.
//
// FromViper fails (returns a non-nil error) on any node kind it does not
// model, and never guesses — an unhandled construct is always an error,
// never a silent approximation.
func FromViper(e residual.Expr, m *ir.Method) (Expr, error) {
	switch x := e.(type) {
	case *residual.IntLit:
		return &IntLit{Value: x.Value}, nil

	case *residual.CharLit:
		return &CharLit{Value: x.Value}, nil

	case *residual.BoolLit:
		return &BoolLit{Value: x.Value}, nil

	case *residual.StringLit:
		return &StringLit{Value: x.Value}, nil

	case *residual.NullLit:
		return &NullLit{}, nil

	case *residual.LocalVar:
		return fromViperVar(x.Name), nil

	case *residual.BinExpr:
		return fromViperBin(x, m)

	case *residual.UnExpr:
		return fromViperUn(x, m)

	case *residual.FieldAccess:
		return fromViperField(x, m)

	case *residual.CondExpr:
		c, err := FromViper(x.Cond, m)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		t, err := FromViper(x.Then, m)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		f, err := FromViper(x.Else, m)
		if err != nil {
			return nil, errors.Wrap(err, "else")
		}

		return &Cond{C: c, T: t, F: f}, nil

	default:
		return nil, UnsupportedNodeError{Node: e}
	}
}

func fromViperVar(name string) Expr {
	switch {
	case name == resultName:
		return &Result{}
	case strings.HasPrefix(name, ResultTempPrefix):
		return &ResultVar{Name: name}
	default:
		return &Var{Name: name}
	}
}

func fromViperBin(x *residual.BinExpr, m *ir.Method) (Expr, error) {
	if x.Op == "!=" {
		eq, err := fromViperBin(&residual.BinExpr{Op: "==", Left: x.Left, Right: x.Right}, m)
		if err != nil {
			return nil, err
		}

		return &Unary{Op: Not, Operand: eq}, nil
	}

	op, ok := binOpTable[x.Op]
	if !ok {
		return nil, UnsupportedNodeError{Node: x}
	}

	l, err := FromViper(x.Left, m)
	if err != nil {
		return nil, errors.Wrap(err, "left")
	}

	r, err := FromViper(x.Right, m)
	if err != nil {
		return nil, errors.Wrap(err, "right")
	}

	return &Binary{Op: op, Left: l, Right: r}, nil
}

func fromViperUn(x *residual.UnExpr, m *ir.Method) (Expr, error) {
	switch x.Op {
	case "!":
		if inner, ok := x.Operand.(*residual.UnExpr); ok && inner.Op == "!" {
			return FromViper(inner.Operand, m)
		}

		v, err := FromViper(x.Operand, m)
		if err != nil {
			return nil, errors.Wrap(err, "operand")
		}

		return &Unary{Op: Not, Operand: v}, nil

	case "-":
		v, err := FromViper(x.Operand, m)
		if err != nil {
			return nil, errors.Wrap(err, "operand")
		}

		return &Unary{Op: Neg, Operand: v}, nil

	default:
		return nil, UnsupportedNodeError{Node: x}
	}
}

func fromViperField(x *residual.FieldAccess, m *ir.Method) (Expr, error) {
	root, err := FromViper(x.Receiver, m)
	if err != nil {
		return nil, errors.Wrap(err, "field root")
	}

	if pointerValueFields[x.Name] {
		return &Deref{Operand: root}, nil
	}

	strct, field, ok := splitFieldName(x.Name)
	if !ok {
		return nil, MalformedFieldNameError{Name: x.Name}
	}

	return &Field{Root: root, Struct: strct, Name: field}, nil
}

func splitFieldName(name string) (strct, field string, ok bool) {
	i := strings.IndexByte(name, '$')
	if i < 0 {
		return "", "", false
	}

	return name[:i], name[i+1:], true
}
