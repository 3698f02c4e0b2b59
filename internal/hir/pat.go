package hir

// Pat is any node in the pattern arena.
type Pat interface {
	patNode()
}

type PatMatch struct {
	Lhs PatID
	Rhs PatID
}

type PatTuple struct {
	Pats []PatID
}

type PatList struct {
	Pats []PatID
	Tail *PatID
}

type PatBinary struct {
	Segs []BinarySeg[PatID]
}

type PatUnaryOp struct {
	Pat PatID
	Op  Op
}

type PatBinaryOp struct {
	Lhs PatID
	Rhs PatID
	Op  Op
}

type RecordFieldPat struct {
	Name  string
	Value PatID
}

type PatRecord struct {
	Name   string
	Fields []RecordFieldPat
}

type PatRecordIndex struct {
	Name  string
	Field string
}

// MapFieldPat keys are expressions: they are evaluated, never bound.
type MapFieldPat struct {
	Key   ExprID
	Value PatID
}

type PatMap struct {
	Fields []MapFieldPat
}

type PatMacroCall struct {
	Expansion PatID
	Args      []ExprID
}

func (*Missing) patNode()        {}
func (*Literal) patNode()        {}
func (Var) patNode()             {}
func (*PatMatch) patNode()       {}
func (*PatTuple) patNode()       {}
func (*PatList) patNode()        {}
func (*PatBinary) patNode()      {}
func (*PatUnaryOp) patNode()     {}
func (*PatBinaryOp) patNode()    {}
func (*PatRecord) patNode()      {}
func (*PatRecordIndex) patNode() {}
func (*PatMap) patNode()         {}
func (*PatMacroCall) patNode()   {}
