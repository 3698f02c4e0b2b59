package hir

// TypeExpr is any node in the type expression arena.
type TypeExpr interface {
	typeExprNode()
}

// TypeAnn is 'Var :: Type'.
type TypeAnn struct {
	Var Var
	Ty  TypeExprID
}

type TypeBinaryOp struct {
	Lhs TypeExprID
	Rhs TypeExprID
	Op  Op
}

type TypeUnaryOp struct {
	Type TypeExprID
	Op   Op
}

type TypeCall struct {
	Target CallTarget[TypeExprID]
	Args   []TypeExprID
}

// FunTypeKind distinguishes fun(), fun((...) -> T) and fun((A) -> T).
type FunTypeKind int

const (
	FunTypeAny FunTypeKind = iota
	FunTypeAnyArgs
	FunTypeFull
)

type TypeFun struct {
	Kind   FunTypeKind
	Params []TypeExprID
	Result TypeExprID
}

// ListTypeKind distinguishes [], [T] and [T, ...].
type ListTypeKind int

const (
	ListTypeEmpty ListTypeKind = iota
	ListTypeRegular
	ListTypeNonEmpty
)

type TypeList struct {
	Kind ListTypeKind
	Elem TypeExprID
}

type TypeMapField struct {
	Key   TypeExprID
	Op    MapOp
	Value TypeExprID
}

type TypeMap struct {
	Fields []TypeMapField
}

type TypeUnion struct {
	Types []TypeExprID
}

type TypeRange struct {
	Lhs TypeExprID
	Rhs TypeExprID
}

type TypeRecordField struct {
	Name string
	Ty   TypeExprID
}

type TypeRecord struct {
	Name   string
	Fields []TypeRecordField
}

type TypeTuple struct {
	Args []TypeExprID
}

type TypeMacroCall struct {
	Expansion TypeExprID
	Args      []ExprID
}

func (*Missing) typeExprNode()       {}
func (*Literal) typeExprNode()       {}
func (Var) typeExprNode()            {}
func (*TypeAnn) typeExprNode()       {}
func (*TypeBinaryOp) typeExprNode()  {}
func (*TypeUnaryOp) typeExprNode()   {}
func (*TypeCall) typeExprNode()      {}
func (*TypeFun) typeExprNode()       {}
func (*TypeList) typeExprNode()      {}
func (*TypeMap) typeExprNode()       {}
func (*TypeUnion) typeExprNode()     {}
func (*TypeRange) typeExprNode()     {}
func (*TypeRecord) typeExprNode()    {}
func (*TypeTuple) typeExprNode()     {}
func (*TypeMacroCall) typeExprNode() {}
