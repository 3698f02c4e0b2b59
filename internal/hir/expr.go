package hir

// Expr is any node in the expression arena.
type Expr interface {
	exprNode()
}

// Missing stands in for syntax that was absent or could not be lowered.
// It is valid in every arena.
type Missing struct{}

// Var is a variable name. It is valid as an expression, a pattern and a
// type expression.
type Var string

// Op is the source text of a unary or binary operator.
type Op string

// MapOp distinguishes map association from exact update.
type MapOp int

const (
	MapAssoc MapOp = iota // =>
	MapExact              // :=
)

func (o MapOp) String() string {
	if o == MapExact {
		return ":="
	}
	return "=>"
}

// CallTarget names the callee of a call or capture. Module is only set for
// remote targets.
type CallTarget[ID any] struct {
	Remote bool
	Module ID
	Name   ID
}

// BinarySeg is one element of a binary construction or pattern.
type BinarySeg[T any] struct {
	Elem T
	Size *ExprID
	Tys  []string
	Unit *int64
}

type ExprMatch struct {
	Lhs PatID
	Rhs ExprID
}

type ExprTuple struct {
	Exprs []ExprID
}

type ExprList struct {
	Exprs []ExprID
	Tail  *ExprID
}

type ExprBinary struct {
	Segs []BinarySeg[ExprID]
}

type ExprUnaryOp struct {
	Expr ExprID
	Op   Op
}

type ExprBinaryOp struct {
	Lhs ExprID
	Rhs ExprID
	Op  Op
}

// RecordFieldExpr is one 'name = value' entry of a record construction.
type RecordFieldExpr struct {
	Name  string
	Value ExprID
}

type ExprRecord struct {
	Name   string
	Fields []RecordFieldExpr
}

type ExprRecordUpdate struct {
	Expr   ExprID
	Name   string
	Fields []RecordFieldExpr
}

type ExprRecordIndex struct {
	Name  string
	Field string
}

type ExprRecordField struct {
	Expr  ExprID
	Name  string
	Field string
}

type MapField struct {
	Key   ExprID
	Value ExprID
}

type ExprMap struct {
	Fields []MapField
}

type MapUpdateField struct {
	Key   ExprID
	Op    MapOp
	Value ExprID
}

type ExprMapUpdate struct {
	Expr   ExprID
	Fields []MapUpdateField
}

type ExprCatch struct {
	Expr ExprID
}

// ExprMacroCall records an expanded macro. Args are lowered on their own
// so that diagnostics and navigation can see them even when the expansion
// does not use them.
type ExprMacroCall struct {
	Expansion ExprID
	Args      []ExprID
}

type ExprCall struct {
	Target CallTarget[ExprID]
	Args   []ExprID
}

// ComprehensionKind is the shape a comprehension builds.
type ComprehensionKind int

const (
	ComprehensionList ComprehensionKind = iota
	ComprehensionBinary
	ComprehensionMap
)

// ComprehensionBuilder is the head of a comprehension. Value is only used
// by map comprehensions.
type ComprehensionBuilder struct {
	Kind  ComprehensionKind
	Expr  ExprID
	Value ExprID
}

// ComprehensionExprKind discriminates generators from filters.
type ComprehensionExprKind int

const (
	ListGenerator ComprehensionExprKind = iota
	BinaryGenerator
	MapGenerator
	Filter
)

// ComprehensionExpr is a generator (Pat <- Expr, Pat <= Expr,
// Pat := Value <- Expr) or a filter (Expr).
type ComprehensionExpr struct {
	Kind  ComprehensionExprKind
	Pat   PatID
	Value PatID
	Expr  ExprID
}

type ExprComprehension struct {
	Builder ComprehensionBuilder
	Exprs   []ComprehensionExpr
}

type ExprBlock struct {
	Exprs []ExprID
}

// Clause is a function or fun clause.
type Clause struct {
	Pats   []PatID
	Guards [][]ExprID
	Exprs  []ExprID
}

// CRClause is a case, receive, try-of or maybe-else clause.
type CRClause struct {
	Pat    PatID
	Guards [][]ExprID
	Exprs  []ExprID
}

type IfClause struct {
	Guards [][]ExprID
	Exprs  []ExprID
}

type CatchClause struct {
	Class  *PatID
	Reason PatID
	Stack  *PatID
	Guards [][]ExprID
	Exprs  []ExprID
}

type ReceiveAfter struct {
	Timeout ExprID
	Exprs   []ExprID
}

type ExprIf struct {
	Clauses []IfClause
}

type ExprCase struct {
	Expr    ExprID
	Clauses []CRClause
}

type ExprReceive struct {
	Clauses []CRClause
	After   *ReceiveAfter
}

type ExprTry struct {
	Exprs []ExprID
	Of    []CRClause
	Catch []CatchClause
	After []ExprID
}

type ExprCaptureFun struct {
	Target CallTarget[ExprID]
	Arity  ExprID
}

type ExprClosure struct {
	Clauses []Clause
	Name    *PatID
}

// MaybeExpr is one step of a maybe block; Pat is set for 'Pat ?= Expr'.
type MaybeExpr struct {
	Pat  *PatID
	Expr ExprID
}

type ExprMaybe struct {
	Exprs []MaybeExpr
	Else  []CRClause
}

func (*Missing) exprNode()           {}
func (*Literal) exprNode()           {}
func (Var) exprNode()                {}
func (*ExprMatch) exprNode()         {}
func (*ExprTuple) exprNode()         {}
func (*ExprList) exprNode()          {}
func (*ExprBinary) exprNode()        {}
func (*ExprUnaryOp) exprNode()       {}
func (*ExprBinaryOp) exprNode()      {}
func (*ExprRecord) exprNode()        {}
func (*ExprRecordUpdate) exprNode()  {}
func (*ExprRecordIndex) exprNode()   {}
func (*ExprRecordField) exprNode()   {}
func (*ExprMap) exprNode()           {}
func (*ExprMapUpdate) exprNode()     {}
func (*ExprCatch) exprNode()         {}
func (*ExprMacroCall) exprNode()     {}
func (*ExprCall) exprNode()          {}
func (*ExprComprehension) exprNode() {}
func (*ExprBlock) exprNode()         {}
func (*ExprIf) exprNode()            {}
func (*ExprCase) exprNode()          {}
func (*ExprReceive) exprNode()       {}
func (*ExprTry) exprNode()           {}
func (*ExprCaptureFun) exprNode()    {}
func (*ExprClosure) exprNode()       {}
func (*ExprMaybe) exprNode()         {}
