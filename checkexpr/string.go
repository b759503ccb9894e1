package checkexpr

import "fmt"

func (x *Binary) String() string    { return fmt.Sprintf("(%v %s %v)", x.Left, x.Op, x.Right) }
func (x *Unary) String() string     { return fmt.Sprintf("%s%v", x.Op, x.Operand) }
func (x *IntLit) String() string    { return fmt.Sprintf("%d", x.Value) }
func (x *CharLit) String() string   { return fmt.Sprintf("%q", x.Value) }
func (x *BoolLit) String() string   { return fmt.Sprintf("%t", x.Value) }
func (x *StringLit) String() string { return fmt.Sprintf("%q", x.Value) }
func (x *NullLit) String() string   { return "null" }
func (x *Var) String() string       { return x.Name }
func (x *ResultVar) String() string { return x.Name }
func (x *Result) String() string    { return "result" }

func (x *Field) String() string {
	return fmt.Sprintf("%v.%s$%s", x.Root, x.Struct, x.Name)
}

func (x *Deref) String() string {
	return fmt.Sprintf("*%v", x.Operand)
}

func (x *Cond) String() string {
	return fmt.Sprintf("(%v ? %v : %v)", x.C, x.T, x.F)
}
