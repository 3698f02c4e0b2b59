package hir

// Term is any node in the constant term arena. Terms are the values of
// attributes and compile options: no variables, calls or operators.
type Term interface {
	termNode()
}

// TermBinary is a binary whose segments folded to bytes.
type TermBinary []byte

type TermTuple struct {
	Exprs []TermID
}

type TermList struct {
	Exprs []TermID
	Tail  *TermID
}

type TermMapField struct {
	Key   TermID
	Value TermID
}

type TermMap struct {
	Fields []TermMapField
}

// TermCaptureFun is 'fun Module:Name/Arity' with every part constant.
type TermCaptureFun struct {
	Module string
	Name   string
	Arity  uint32
}

type TermMacroCall struct {
	Expansion TermID
	Args      []ExprID
}

func (*Missing) termNode()        {}
func (*Literal) termNode()        {}
func (TermBinary) termNode()      {}
func (*TermTuple) termNode()      {}
func (*TermList) termNode()       {}
func (*TermMap) termNode()        {}
func (*TermCaptureFun) termNode() {}
func (*TermMacroCall) termNode()  {}
