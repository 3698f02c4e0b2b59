package hir

import (
	"strconv"
	"strings"
)

// MissingText is printed in place of every Missing node.
const MissingText = "[missing]"

// printer renders one Body. Nested constructs open a new line one level
// deeper than the line they start on.
type printer struct {
	body   *Body
	sb     strings.Builder
	indent int
}

func newPrinter(body *Body) *printer {
	return &printer{body: body}
}

func (p *printer) write(s string) {
	p.sb.WriteString(s)
}

func (p *printer) newline() {
	p.sb.WriteByte('\n')
	for range p.indent {
		p.sb.WriteString("    ")
	}
}

// block writes open, each item on its own deeper line separated by sep,
// then close on a line of its own. Empty blocks print as open+close.
func (p *printer) block(open, sep, close string, n int, item func(i int)) {
	p.write(open)
	if n == 0 {
		p.write(close)
		return
	}
	p.indent++
	for i := range n {
		p.newline()
		item(i)
		if i < n-1 {
			p.write(sep)
		}
	}
	p.indent--
	p.newline()
	p.write(close)
}

func (p *printer) String() string {
	return p.sb.String()
}

// PrintFunction renders a function body in Erlang-like syntax.
func PrintFunction(fb *FunctionBody, fn *Function) string {
	p := newPrinter(fb.Body)
	for i, c := range fb.Clauses {
		if i > 0 {
			p.write(";")
			p.newline()
		}
		p.write(fn.Name.Name)
		p.clause(c)
	}
	p.write(".")
	return p.String()
}

// PrintType renders a -type or -opaque declaration.
func PrintType(tb *TypeBody, ta *TypeAlias) string {
	p := newPrinter(tb.Body)
	if ta.Opaque {
		p.write("-opaque ")
	} else {
		p.write("-type ")
	}
	vars := make([]string, len(tb.Vars))
	for i, v := range tb.Vars {
		vars[i] = string(v)
	}
	p.write(ta.Name.Name + "(" + strings.Join(vars, ", ") + ") :: ")
	p.typeExpr(tb.Ty)
	p.write(".")
	return p.String()
}

// PrintSpec renders a -spec, or a -callback when callback is set.
func PrintSpec(sb *SpecBody, s *Spec, callback bool) string {
	p := newPrinter(sb.Body)
	if callback {
		p.write("-callback ")
	} else {
		p.write("-spec ")
	}
	p.write(s.Name.Name)
	p.indent++
	for i, sig := range sb.Sigs {
		if i > 0 {
			p.write(";")
		}
		p.newline()
		p.write("(")
		for j, a := range sig.Args {
			if j > 0 {
				p.write(", ")
			}
			p.typeExpr(a)
		}
		p.write(") -> ")
		p.typeExpr(sig.Result)
		if len(sig.Guards) > 0 {
			p.indent++
			p.newline()
			p.write("when ")
			for j, g := range sig.Guards {
				if j > 0 {
					p.write(", ")
				}
				p.write(string(g.Var) + " :: ")
				p.typeExpr(g.Ty)
			}
			p.indent--
		}
	}
	p.indent--
	p.write(".")
	return p.String()
}

// PrintRecord renders a -record declaration.
func PrintRecord(rb *RecordBody, r *Record) string {
	p := newPrinter(rb.Body)
	p.write("-record(" + r.Name + ", {")
	p.indent++
	for i, f := range rb.Fields {
		p.newline()
		p.write(f.Name)
		if f.Expr != nil {
			p.write(" = ")
			p.expr(*f.Expr)
		}
		if f.Ty != nil {
			p.write(" :: ")
			p.typeExpr(*f.Ty)
		}
		if i < len(rb.Fields)-1 {
			p.write(",")
		}
	}
	p.indent--
	p.newline()
	p.write("}).")
	return p.String()
}

// PrintAttribute renders a wild attribute with its constant value.
func PrintAttribute(ab *AttributeBody, a *Attribute) string {
	return printAttribute(ab, a.Name)
}

// PrintCompileOption renders a -compile attribute.
func PrintCompileOption(ab *AttributeBody) string {
	return printAttribute(ab, "compile")
}

func printAttribute(ab *AttributeBody, name string) string {
	p := newPrinter(ab.Body)
	p.write("-" + name + "(")
	p.term(ab.Value)
	p.write(").")
	return p.String()
}

// ---------- Clauses ----------

func (p *printer) clause(c Clause) {
	p.write("(")
	for i, pat := range c.Pats {
		if i > 0 {
			p.write(", ")
		}
		p.pat(pat)
	}
	p.write(")")
	p.guardedBody(c.Guards, c.Exprs)
}

// guardedBody writes ' when' guards '->' and the indented body.
func (p *printer) guardedBody(guards [][]ExprID, exprs []ExprID) {
	if len(guards) > 0 {
		p.write(" when")
		p.indent++
		for i, group := range guards {
			for j, g := range group {
				p.newline()
				p.expr(g)
				if j < len(group)-1 {
					p.write(",")
				}
			}
			if i < len(guards)-1 {
				p.write(";")
			}
		}
		p.indent--
		p.newline()
		p.write("->")
	} else {
		p.write(" ->")
	}
	p.indent++
	p.exprLines(exprs)
	p.indent--
}

// exprLines writes each expression on its own line, comma separated.
func (p *printer) exprLines(exprs []ExprID) {
	for i, e := range exprs {
		p.newline()
		p.expr(e)
		if i < len(exprs)-1 {
			p.write(",")
		}
	}
}

func (p *printer) crClauses(clauses []CRClause) {
	for i, c := range clauses {
		p.newline()
		p.pat(c.Pat)
		p.guardedBody(c.Guards, c.Exprs)
		if i < len(clauses)-1 {
			p.write(";")
		}
	}
}

// ---------- Expressions ----------

func (p *printer) expr(id ExprID) {
	switch e := p.body.Expr(id).(type) {
	case *Missing:
		p.write(MissingText)
	case *Literal:
		p.write(e.String())
	case Var:
		p.write(string(e))
	case *ExprMatch:
		p.pat(e.Lhs)
		p.write(" = ")
		p.expr(e.Rhs)
	case *ExprTuple:
		p.block("{", ",", "}", len(e.Exprs), func(i int) { p.expr(e.Exprs[i]) })
	case *ExprList:
		p.list(len(e.Exprs), func(i int) { p.expr(e.Exprs[i]) }, e.Tail != nil, func() { p.expr(*e.Tail) })
	case *ExprBinary:
		p.block("<<", ",", ">>", len(e.Segs), func(i int) {
			seg := e.Segs[i]
			p.expr(seg.Elem)
			p.segSuffix(seg.Size, seg.Tys, seg.Unit)
		})
	case *ExprUnaryOp:
		p.write("(" + string(e.Op) + " ")
		p.expr(e.Expr)
		p.write(")")
	case *ExprBinaryOp:
		p.write("(")
		p.expr(e.Lhs)
		p.write(" " + string(e.Op) + " ")
		p.expr(e.Rhs)
		p.write(")")
	case *ExprRecord:
		p.recordFields(e.Name, e.Fields)
	case *ExprRecordUpdate:
		p.expr(e.Expr)
		p.recordFields(e.Name, e.Fields)
	case *ExprRecordIndex:
		p.write("#" + e.Name + "." + e.Field)
	case *ExprRecordField:
		p.expr(e.Expr)
		p.write("#" + e.Name + "." + e.Field)
	case *ExprMap:
		p.block("#{", ",", "}", len(e.Fields), func(i int) {
			p.expr(e.Fields[i].Key)
			p.write(" => ")
			p.expr(e.Fields[i].Value)
		})
	case *ExprMapUpdate:
		p.expr(e.Expr)
		p.block("#{", ",", "}", len(e.Fields), func(i int) {
			f := e.Fields[i]
			p.expr(f.Key)
			p.write(" " + f.Op.String() + " ")
			p.expr(f.Value)
		})
	case *ExprCatch:
		p.write("(catch ")
		p.expr(e.Expr)
		p.write(")")
	case *ExprMacroCall:
		p.expr(e.Expansion)
	case *ExprCall:
		p.callTarget(e.Target)
		p.block("(", ",", ")", len(e.Args), func(i int) { p.expr(e.Args[i]) })
	case *ExprComprehension:
		p.comprehension(e)
	case *ExprBlock:
		p.write("begin")
		p.indent++
		p.exprLines(e.Exprs)
		p.indent--
		p.newline()
		p.write("end")
	case *ExprIf:
		p.write("if")
		p.indent++
		for i, c := range e.Clauses {
			p.newline()
			p.inlineGuards(c.Guards)
			p.write(" ->")
			p.indent++
			p.exprLines(c.Exprs)
			p.indent--
			if i < len(e.Clauses)-1 {
				p.write(";")
			}
		}
		p.indent--
		p.newline()
		p.write("end")
	case *ExprCase:
		p.write("case ")
		p.expr(e.Expr)
		p.write(" of")
		p.indent++
		p.crClauses(e.Clauses)
		p.indent--
		p.newline()
		p.write("end")
	case *ExprReceive:
		p.write("receive")
		p.indent++
		p.crClauses(e.Clauses)
		p.indent--
		if e.After != nil {
			p.newline()
			p.write("after ")
			p.expr(e.After.Timeout)
			p.write(" ->")
			p.indent++
			p.exprLines(e.After.Exprs)
			p.indent--
		}
		p.newline()
		p.write("end")
	case *ExprTry:
		p.try(e)
	case *ExprCaptureFun:
		p.write("fun ")
		p.callTarget(e.Target)
		p.write("/")
		p.expr(e.Arity)
	case *ExprClosure:
		p.write("fun")
		p.indent++
		for i, c := range e.Clauses {
			p.newline()
			if e.Name != nil {
				p.pat(*e.Name)
			}
			p.clause(c)
			if i < len(e.Clauses)-1 {
				p.write(";")
			}
		}
		p.indent--
		p.newline()
		p.write("end")
	case *ExprMaybe:
		p.write("maybe")
		p.indent++
		for i, m := range e.Exprs {
			p.newline()
			if m.Pat != nil {
				p.pat(*m.Pat)
				p.write(" ?= ")
			}
			p.expr(m.Expr)
			if i < len(e.Exprs)-1 {
				p.write(",")
			}
		}
		p.indent--
		if len(e.Else) > 0 {
			p.newline()
			p.write("else")
			p.indent++
			p.crClauses(e.Else)
			p.indent--
		}
		p.newline()
		p.write("end")
	}
}

// list writes a list block whose optional tail follows the last element
// as '| Tail'.
func (p *printer) list(n int, item func(int), hasTail bool, tail func()) {
	if n == 0 && !hasTail {
		p.write("[]")
		return
	}
	p.write("[")
	p.indent++
	for i := range n {
		p.newline()
		item(i)
		if i < n-1 {
			p.write(",")
		}
	}
	if hasTail {
		p.newline()
		p.write("| ")
		tail()
	}
	p.indent--
	p.newline()
	p.write("]")
}

func (p *printer) segSuffix(size *ExprID, tys []string, unit *int64) {
	if size != nil {
		p.write(":")
		p.expr(*size)
	}
	parts := append([]string{}, tys...)
	if unit != nil {
		parts = append(parts, "unit:"+strconv.FormatInt(*unit, 10))
	}
	if len(parts) > 0 {
		p.write("/" + strings.Join(parts, "-"))
	}
}

func (p *printer) recordFields(name string, fields []RecordFieldExpr) {
	p.block("#"+name+"{", ",", "}", len(fields), func(i int) {
		p.write(fields[i].Name + " = ")
		p.expr(fields[i].Value)
	})
}

func (p *printer) callTarget(t CallTarget[ExprID]) {
	if t.Remote {
		p.expr(t.Module)
		p.write(":")
	}
	p.expr(t.Name)
}

func (p *printer) inlineGuards(guards [][]ExprID) {
	for i, group := range guards {
		if i > 0 {
			p.write("; ")
		}
		for j, g := range group {
			if j > 0 {
				p.write(", ")
			}
			p.expr(g)
		}
	}
}

func (p *printer) comprehension(e *ExprComprehension) {
	open, close := "[", "]"
	switch e.Builder.Kind {
	case ComprehensionBinary:
		open, close = "<<", ">>"
	case ComprehensionMap:
		open, close = "#{", "}"
	}
	p.write(open)
	p.indent++
	p.newline()
	p.expr(e.Builder.Expr)
	if e.Builder.Kind == ComprehensionMap {
		p.write(" => ")
		p.expr(e.Builder.Value)
	}
	p.indent--
	p.newline()
	p.write("||")
	p.indent++
	for i, c := range e.Exprs {
		p.newline()
		switch c.Kind {
		case ListGenerator:
			p.pat(c.Pat)
			p.write(" <- ")
			p.expr(c.Expr)
		case BinaryGenerator:
			p.pat(c.Pat)
			p.write(" <= ")
			p.expr(c.Expr)
		case MapGenerator:
			p.pat(c.Pat)
			p.write(" := ")
			p.pat(c.Value)
			p.write(" <- ")
			p.expr(c.Expr)
		case Filter:
			p.expr(c.Expr)
		}
		if i < len(e.Exprs)-1 {
			p.write(",")
		}
	}
	p.indent--
	p.newline()
	p.write(close)
}

func (p *printer) try(e *ExprTry) {
	p.write("try")
	p.indent++
	p.exprLines(e.Exprs)
	p.indent--
	if len(e.Of) > 0 {
		p.newline()
		p.write("of")
		p.indent++
		p.crClauses(e.Of)
		p.indent--
	}
	if len(e.Catch) > 0 {
		p.newline()
		p.write("catch")
		p.indent++
		for i, c := range e.Catch {
			p.newline()
			if c.Class != nil {
				p.pat(*c.Class)
				p.write(":")
			}
			p.pat(c.Reason)
			if c.Stack != nil {
				p.write(":")
				p.pat(*c.Stack)
			}
			p.guardedBody(c.Guards, c.Exprs)
			if i < len(e.Catch)-1 {
				p.write(";")
			}
		}
		p.indent--
	}
	if len(e.After) > 0 {
		p.newline()
		p.write("after")
		p.indent++
		p.exprLines(e.After)
		p.indent--
	}
	p.newline()
	p.write("end")
}

// ---------- Patterns ----------

func (p *printer) pat(id PatID) {
	switch e := p.body.Pat(id).(type) {
	case *Missing:
		p.write(MissingText)
	case *Literal:
		p.write(e.String())
	case Var:
		p.write(string(e))
	case *PatMatch:
		p.pat(e.Lhs)
		p.write(" = ")
		p.pat(e.Rhs)
	case *PatTuple:
		p.block("{", ",", "}", len(e.Pats), func(i int) { p.pat(e.Pats[i]) })
	case *PatList:
		p.list(len(e.Pats), func(i int) { p.pat(e.Pats[i]) }, e.Tail != nil, func() { p.pat(*e.Tail) })
	case *PatBinary:
		p.block("<<", ",", ">>", len(e.Segs), func(i int) {
			seg := e.Segs[i]
			p.pat(seg.Elem)
			p.segSuffix(seg.Size, seg.Tys, seg.Unit)
		})
	case *PatUnaryOp:
		p.write("(" + string(e.Op) + " ")
		p.pat(e.Pat)
		p.write(")")
	case *PatBinaryOp:
		p.write("(")
		p.pat(e.Lhs)
		p.write(" " + string(e.Op) + " ")
		p.pat(e.Rhs)
		p.write(")")
	case *PatRecord:
		p.block("#"+e.Name+"{", ",", "}", len(e.Fields), func(i int) {
			p.write(e.Fields[i].Name + " = ")
			p.pat(e.Fields[i].Value)
		})
	case *PatRecordIndex:
		p.write("#" + e.Name + "." + e.Field)
	case *PatMap:
		p.block("#{", ",", "}", len(e.Fields), func(i int) {
			p.expr(e.Fields[i].Key)
			p.write(" := ")
			p.pat(e.Fields[i].Value)
		})
	case *PatMacroCall:
		p.pat(e.Expansion)
	}
}

// ---------- Terms ----------

func (p *printer) term(id TermID) {
	switch e := p.body.Term(id).(type) {
	case *Missing:
		p.write(MissingText)
	case *Literal:
		p.write(e.String())
	case TermBinary:
		if validUTF8(e) {
			p.write("<<" + strconv.Quote(string(e)) + "/utf8>>")
			return
		}
		parts := make([]string, len(e))
		for i, b := range e {
			parts[i] = strconv.Itoa(int(b))
		}
		p.write("<<" + strings.Join(parts, ", ") + ">>")
	case *TermTuple:
		p.block("{", ",", "}", len(e.Exprs), func(i int) { p.term(e.Exprs[i]) })
	case *TermList:
		p.list(len(e.Exprs), func(i int) { p.term(e.Exprs[i]) }, e.Tail != nil, func() { p.term(*e.Tail) })
	case *TermMap:
		p.block("#{", ",", "}", len(e.Fields), func(i int) {
			p.term(e.Fields[i].Key)
			p.write(" => ")
			p.term(e.Fields[i].Value)
		})
	case *TermCaptureFun:
		p.write("fun " + e.Module + ":" + e.Name + "/" + strconv.FormatUint(uint64(e.Arity), 10))
	case *TermMacroCall:
		p.term(e.Expansion)
	}
}

// ---------- Types ----------

func (p *printer) typeExpr(id TypeExprID) {
	switch e := p.body.TypeExpr(id).(type) {
	case *Missing:
		p.write(MissingText)
	case *Literal:
		p.write(e.String())
	case Var:
		p.write(string(e))
	case *TypeAnn:
		p.write("(" + string(e.Var) + "  :: ")
		p.typeExpr(e.Ty)
		p.write(")")
	case *TypeBinaryOp:
		p.write("(")
		p.typeExpr(e.Lhs)
		p.write(" " + string(e.Op) + " ")
		p.typeExpr(e.Rhs)
		p.write(")")
	case *TypeUnaryOp:
		p.write("(" + string(e.Op) + " ")
		p.typeExpr(e.Type)
		p.write(")")
	case *TypeCall:
		if e.Target.Remote {
			p.typeExpr(e.Target.Module)
			p.write(":")
		}
		p.typeExpr(e.Target.Name)
		p.block("(", ",", ")", len(e.Args), func(i int) { p.typeExpr(e.Args[i]) })
	case *TypeFun:
		switch e.Kind {
		case FunTypeAny:
			p.write("fun()")
		case FunTypeAnyArgs:
			p.write("fun((...) -> ")
			p.typeExpr(e.Result)
			p.write(")")
		case FunTypeFull:
			p.write("fun((")
			for i, a := range e.Params {
				if i > 0 {
					p.write(", ")
				}
				p.typeExpr(a)
			}
			p.write(") -> ")
			p.typeExpr(e.Result)
			p.write(")")
		}
	case *TypeList:
		switch e.Kind {
		case ListTypeEmpty:
			p.write("[]")
		case ListTypeRegular:
			p.write("[")
			p.typeExpr(e.Elem)
			p.write("]")
		case ListTypeNonEmpty:
			p.write("[")
			p.typeExpr(e.Elem)
			p.write(", ...]")
		}
	case *TypeMap:
		p.block("#{", ",", "}", len(e.Fields), func(i int) {
			f := e.Fields[i]
			p.typeExpr(f.Key)
			p.write(" " + f.Op.String() + " ")
			p.typeExpr(f.Value)
		})
	case *TypeUnion:
		p.block("(", " |", ")", len(e.Types), func(i int) { p.typeExpr(e.Types[i]) })
	case *TypeRange:
		p.write("(")
		p.typeExpr(e.Lhs)
		p.write("..")
		p.typeExpr(e.Rhs)
		p.write(")")
	case *TypeRecord:
		p.block("#"+e.Name+"{", ",", "}", len(e.Fields), func(i int) {
			p.write(e.Fields[i].Name + " :: ")
			p.typeExpr(e.Fields[i].Ty)
		})
	case *TypeTuple:
		p.block("{", ",", "}", len(e.Args), func(i int) { p.typeExpr(e.Args[i]) })
	case *TypeMacroCall:
		p.typeExpr(e.Expansion)
	}
}
