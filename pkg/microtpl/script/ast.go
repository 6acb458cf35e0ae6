package script

import (
	"fmt"
	"strings"
)

// Node is implemented by every expression and statement in a parsed tree.
type Node interface {
	String() string
	Position() Position
}

// Expr is an expression node.
type Expr interface {
	Node
	eval(in *interp, env *Env) (interface{}, error)
}

// Stmt is a statement node.
type Stmt interface {
	Node
	exec(in *interp, env *Env) (completion, error)
}

// Function is a parsed routine: a parameter list and a statement body.
type Function struct {
	Name   string
	Params []string
	Body   []Stmt
	// Source is the text the function was parsed from.
	Source string
}

func (f *Function) String() string {
	return fmt.Sprintf("Function(%s, [%s], %d statements)", f.Name, strings.Join(f.Params, ", "), len(f.Body))
}

type node struct {
	pos Position
}

func (n node) Position() Position {
	return n.pos
}

// LiteralNode represents a literal value (string, number, boolean, null)
type LiteralNode struct {
	node
	Value interface{}
}

func (n *LiteralNode) String() string {
	if str, ok := n.Value.(string); ok {
		return fmt.Sprintf("Literal(%q)", str)
	}
	if n.Value == nil {
		return "Literal(null)"
	}
	return fmt.Sprintf("Literal(%s)", ToString(n.Value))
}

// IdentifierNode represents a name resolved through the scope chain
type IdentifierNode struct {
	node
	Name string
}

func (n *IdentifierNode) String() string {
	return fmt.Sprintf("Identifier(%s)", n.Name)
}

// ArrayNode represents an array literal
type ArrayNode struct {
	node
	Elements []Expr
}

func (n *ArrayNode) String() string {
	return fmt.Sprintf("Array(%s)", joinNodes(n.Elements))
}

// ObjectNode represents an object literal
type ObjectNode struct {
	node
	Keys   []string
	Values []Expr
}

func (n *ObjectNode) String() string {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		parts[i] = fmt.Sprintf("%s: %s", k, n.Values[i].String())
	}
	return fmt.Sprintf("Object(%s)", strings.Join(parts, ", "))
}

// MemberNode represents field or index access (obj.field, obj[key])
type MemberNode struct {
	node
	Object   Expr
	Property Expr
	Computed bool
}

func (n *MemberNode) String() string {
	if n.Computed {
		return fmt.Sprintf("Index(%s[%s])", n.Object.String(), n.Property.String())
	}
	return fmt.Sprintf("Member(%s.%s)", n.Object.String(), n.Property.(*LiteralNode).Value)
}

// CallNode represents a function or method call
type CallNode struct {
	node
	Callee Expr
	Args   []Expr
}

func (n *CallNode) String() string {
	return fmt.Sprintf("Call(%s, [%s])", n.Callee.String(), joinNodes(n.Args))
}

// UnaryNode represents a prefix operator (!, -, +, typeof)
type UnaryNode struct {
	node
	Operator string
	Operand  Expr
}

func (n *UnaryNode) String() string {
	return fmt.Sprintf("UnaryOp(%s %s)", n.Operator, n.Operand.String())
}

// UpdateNode represents ++ and -- in prefix or postfix position
type UpdateNode struct {
	node
	Operator string
	Prefix   bool
	Target   Expr
}

func (n *UpdateNode) String() string {
	if n.Prefix {
		return fmt.Sprintf("Update(%s%s)", n.Operator, n.Target.String())
	}
	return fmt.Sprintf("Update(%s%s)", n.Target.String(), n.Operator)
}

// BinaryNode represents an arithmetic, comparison or equality operation
type BinaryNode struct {
	node
	Left     Expr
	Operator string
	Right    Expr
}

func (n *BinaryNode) String() string {
	return fmt.Sprintf("BinaryOp(%s %s %s)", n.Left.String(), n.Operator, n.Right.String())
}

// LogicalNode represents && and ||, which yield one of their operands
type LogicalNode struct {
	node
	Left     Expr
	Operator string
	Right    Expr
}

func (n *LogicalNode) String() string {
	return fmt.Sprintf("Logical(%s %s %s)", n.Left.String(), n.Operator, n.Right.String())
}

// ConditionalNode represents test ? then : else
type ConditionalNode struct {
	node
	Test Expr
	Then Expr
	Else Expr
}

func (n *ConditionalNode) String() string {
	return fmt.Sprintf("Conditional(%s ? %s : %s)", n.Test.String(), n.Then.String(), n.Else.String())
}

// AssignNode represents = and the compound assignment operators
type AssignNode struct {
	node
	Operator string
	Target   Expr
	Value    Expr
}

func (n *AssignNode) String() string {
	return fmt.Sprintf("Assign(%s %s %s)", n.Target.String(), n.Operator, n.Value.String())
}

// VarStmt declares function-scoped bindings (var, let and const alike)
type VarStmt struct {
	node
	Names []string
	Inits []Expr
}

func (s *VarStmt) String() string {
	return fmt.Sprintf("Var(%s)", strings.Join(s.Names, ", "))
}

// ExprStmt evaluates an expression for its side effects
type ExprStmt struct {
	node
	X Expr
}

func (s *ExprStmt) String() string {
	return fmt.Sprintf("Expr(%s)", s.X.String())
}

// BlockStmt groups statements; it does not open a new scope
type BlockStmt struct {
	node
	Body []Stmt
}

func (s *BlockStmt) String() string {
	return fmt.Sprintf("Block(%d)", len(s.Body))
}

// IfStmt represents if/else
type IfStmt struct {
	node
	Test Expr
	Then Stmt
	Else Stmt
}

func (s *IfStmt) String() string {
	if s.Else != nil {
		return fmt.Sprintf("If(%s) Else", s.Test.String())
	}
	return fmt.Sprintf("If(%s)", s.Test.String())
}

// ForStmt represents the three-clause for loop
type ForStmt struct {
	node
	Init   Stmt
	Test   Expr
	Update Expr
	Body   Stmt
}

func (s *ForStmt) String() string {
	return "For(;;)"
}

// ForEachStmt represents for (x of xs) and for (k in obj)
type ForEachStmt struct {
	node
	Name     string
	Declare  bool
	Of       bool
	Iterable Expr
	Body     Stmt
}

func (s *ForEachStmt) String() string {
	kw := "in"
	if s.Of {
		kw = "of"
	}
	return fmt.Sprintf("ForEach(%s %s %s)", s.Name, kw, s.Iterable.String())
}

// WhileStmt represents a while loop. Post loops (do ... while) run the
// body once before the first test.
type WhileStmt struct {
	node
	Test Expr
	Body Stmt
	Post bool
}

func (s *WhileStmt) String() string {
	if s.Post {
		return fmt.Sprintf("DoWhile(%s)", s.Test.String())
	}
	return fmt.Sprintf("While(%s)", s.Test.String())
}

// BranchStmt represents break and continue
type BranchStmt struct {
	node
	Keyword string
}

func (s *BranchStmt) String() string {
	return fmt.Sprintf("Branch(%s)", s.Keyword)
}

// ReturnStmt ends the running function
type ReturnStmt struct {
	node
	Value Expr
}

func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "Return"
	}
	return fmt.Sprintf("Return(%s)", s.Value.String())
}

// WithStmt exposes the fields of an object as names inside its body
type WithStmt struct {
	node
	Object Expr
	Body   Stmt
}

func (s *WithStmt) String() string {
	return fmt.Sprintf("With(%s)", s.Object.String())
}

// EmptyStmt is a lone semicolon
type EmptyStmt struct {
	node
}

func (s *EmptyStmt) String() string {
	return "Empty"
}

func joinNodes(nodes []Expr) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ", ")
}
