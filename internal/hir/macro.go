package hir

import (
	"strconv"

	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

// MaxExpansionDepth bounds nested macro expansion. Cycles are cut by the
// frame check long before this; the ceiling guards pathological but
// acyclic definitions.
const MaxExpansionDepth = 256

// DefaultOTPRelease is the value of ?OTP_RELEASE unless configured.
const DefaultOTPRelease = 26

// MacroKey identifies a macro by name and arity. Arity is -1 for a macro
// defined without a parameter list.
type MacroKey struct {
	Name  string
	Arity int
}

func (k MacroKey) String() string {
	if k.Arity < 0 {
		return k.Name
	}
	return k.Name + "/" + strconv.Itoa(k.Arity)
}

// Builtin macros are resolved from the lowering context, never from a
// macro table.
var builtinMacros = map[string]bool{
	"FUNCTION_NAME":  true,
	"FUNCTION_ARITY": true,
	"LINE":           true,
	"MACHINE":        true,
	"OTP_RELEASE":    true,
	"MODULE":         true,
	"MODULE_STRING":  true,
	"FILE":           true,
}

// IsBuiltinMacro reports whether name is a predefined macro.
func IsBuiltinMacro(name string) bool {
	return builtinMacros[name]
}

// MacroEntry is one define or undef visible to a file. Offset is the
// position in the file being lowered at which the entry takes effect:
// the define itself for local macros, the -include for header macros.
type MacroEntry struct {
	Define *Define // nil for -undef
	Undef  string
	File   FileID
	Offset int
}

// Key returns the macro key of a define entry.
func (e MacroEntry) Key() MacroKey {
	if e.Define == nil {
		return MacroKey{Name: e.Undef, Arity: -1}
	}
	return e.Define.Key()
}

// MacroEnv is the ordered macro table of one file, with the defines of
// its headers spliced in at their -include.
type MacroEnv struct {
	entries []MacroEntry
}

// NewMacroEnv returns a table over entries, which must be in effect order.
func NewMacroEnv(entries []MacroEntry) *MacroEnv {
	return &MacroEnv{entries: entries}
}

// Entries returns every entry in effect order.
func (e *MacroEnv) Entries() []MacroEntry {
	if e == nil {
		return nil
	}
	return e.entries
}

// Resolve returns the define of key in effect at offset. Later defines
// shadow earlier ones and -undef removes every arity of a name.
func (e *MacroEnv) Resolve(key MacroKey, offset int) (MacroEntry, bool) {
	var found MacroEntry
	ok := false
	for _, entry := range e.Entries() {
		if entry.Offset >= offset {
			break
		}
		switch {
		case entry.Define == nil && entry.Undef == key.Name:
			ok = false
		case entry.Define != nil && entry.Define.Key() == key:
			found, ok = entry, true
		}
	}
	return found, ok
}

// Named returns the defines of name, any arity, in effect at offset.
func (e *MacroEnv) Named(name string, offset int) []MacroEntry {
	live := map[int]MacroEntry{}
	for _, entry := range e.Entries() {
		if entry.Offset >= offset {
			break
		}
		switch {
		case entry.Define == nil && entry.Undef == name:
			clear(live)
		case entry.Define != nil && entry.Define.Name == name:
			live[entry.Define.Arity] = entry
		}
	}
	out := make([]MacroEntry, 0, len(live))
	for _, entry := range e.Entries() {
		if entry.Define != nil {
			if cur, ok := live[entry.Define.Arity]; ok && cur == entry {
				out = append(out, entry)
			}
		}
	}
	return out
}

// LowerContext carries everything lowering needs besides the form.
type LowerContext struct {
	File     FileID
	FileName string // base name, the value of ?FILE
	// Module is the -module name if one precedes the form, else "".
	Module     string
	OTPRelease int
	Macros     *MacroEnv
	// Offset is the start of the form; macros defined after it are not
	// visible.
	Offset int
}

// frame is one macro substitution in progress.
type frame struct {
	key    MacroKey
	call   *syntax.Node
	params map[string]*syntax.Node
	parent *frame
	depth  int
}

func (f *frame) onChain(key MacroKey) bool {
	for cur := f; cur != nil; cur = cur.parent {
		if cur.key == key {
			return true
		}
	}
	return false
}

type expansionKind int

const (
	expandMissing expansionKind = iota
	expandBuiltin
	expandReplacement
	// expandCall is ?NAME(Args) where only a parameterless NAME exists:
	// the expansion calls the replacement with the arguments.
	expandCall
)

type expansion struct {
	kind  expansionKind
	lit   *Literal
	node  *syntax.Node
	frame *frame
	args  []*syntax.Node
}

// resolveMacro finds what the macro call n expands to in the current
// frame. It returns expandMissing on unknown macros, recursion and
// cancellation.
func (l *lowerer) resolveMacro(n *syntax.Node) expansion {
	nameNode := n.Child(syntax.FieldName)
	if nameNode == nil || l.err != nil {
		return expansion{}
	}
	if err := l.ctx.Err(); err != nil {
		l.err = err
		return expansion{}
	}
	name := nameNode.Text()
	argsNode := n.Child(syntax.FieldArgs)
	var args []*syntax.Node
	if argsNode != nil {
		args = argsNode.Children
	}

	if argsNode != nil {
		key := MacroKey{Name: name, Arity: len(args)}
		if entry, ok := l.lc.Macros.Resolve(key, l.lc.Offset); ok {
			return l.enter(key, n, entry.Define, args)
		}
	}

	var head expansion
	if IsBuiltinMacro(name) {
		lit := l.builtin(name)
		if lit == nil {
			return expansion{}
		}
		head = expansion{kind: expandBuiltin, lit: lit}
	} else {
		key := MacroKey{Name: name, Arity: -1}
		entry, ok := l.lc.Macros.Resolve(key, l.lc.Offset)
		if !ok {
			return expansion{}
		}
		head = l.enter(key, n, entry.Define, nil)
		if head.kind == expandMissing {
			return head
		}
	}
	if argsNode == nil {
		return head
	}
	head.args = args
	if head.kind == expandReplacement {
		head.kind = expandCall
		return head
	}
	// A builtin called with arguments, ?FUNCTION_NAME(...).
	head.node = nil
	head.kind = expandCall
	return head
}

// enter opens a frame for def unless its key is already being expanded.
func (l *lowerer) enter(key MacroKey, call *syntax.Node, def *Define, args []*syntax.Node) expansion {
	if l.frame.onChain(key) || def.Replacement == nil {
		return expansion{}
	}
	depth := 1
	if l.frame != nil {
		depth = l.frame.depth + 1
	}
	if depth > MaxExpansionDepth {
		return expansion{}
	}
	fr := &frame{key: key, call: call, parent: l.frame, depth: depth}
	if len(def.Params) > 0 {
		fr.params = make(map[string]*syntax.Node, len(def.Params))
		for i, p := range def.Params {
			if i < len(args) {
				fr.params[p] = args[i]
			}
		}
	}
	return expansion{kind: expandReplacement, node: def.Replacement, frame: fr}
}

// builtin returns the value of a predefined macro, or nil where it has
// none (module macros before -module, function macros outside a function).
func (l *lowerer) builtin(name string) *Literal {
	switch name {
	case "FUNCTION_NAME":
		if l.function != nil {
			return AtomLit(l.function.Name)
		}
	case "FUNCTION_ARITY":
		if l.function != nil {
			return IntLit64(int64(l.function.Arity))
		}
	case "LINE":
		return IntLit64(0)
	case "MACHINE":
		return AtomLit("BEAM")
	case "OTP_RELEASE":
		rel := l.lc.OTPRelease
		if rel == 0 {
			rel = DefaultOTPRelease
		}
		return IntLit64(int64(rel))
	case "MODULE":
		if l.lc.Module != "" {
			return AtomLit(l.lc.Module)
		}
	case "MODULE_STRING":
		if l.lc.Module != "" {
			return StringLit(l.lc.Module)
		}
	case "FILE":
		return StringLit(l.lc.FileName)
	}
	return nil
}

// withFrame runs fn with fr as the current frame.
func (l *lowerer) withFrame(fr *frame, fn func()) {
	saved := l.frame
	l.frame = fr
	fn()
	l.frame = saved
}

// param returns the argument bound to a variable of the current frame.
func (l *lowerer) param(n *syntax.Node) (*syntax.Node, bool) {
	if l.frame == nil || l.frame.params == nil || !n.Is(syntax.KindVar) {
		return nil, false
	}
	arg, ok := l.frame.params[n.Text()]
	return arg, ok
}

// macroArgs lowers the arguments of a macro call as expressions in the
// current frame.
func (l *lowerer) macroArgs(n *syntax.Node) []ExprID {
	argsNode := n.Child(syntax.FieldArgs)
	if argsNode == nil {
		return nil
	}
	out := make([]ExprID, 0, len(argsNode.Children))
	for _, a := range argsNode.Children {
		out = append(out, l.lowerExpr(a))
	}
	return out
}

// resolveName resolves a record or field name, which may be written as a
// macro expanding to an atom.
func (l *lowerer) resolveName(n *syntax.Node) (string, bool) {
	switch {
	case n == nil:
		return "", false
	case n.Is(syntax.KindRecordName), n.Is(syntax.KindRecordFieldName):
		return l.resolveName(n.Child(syntax.FieldName))
	case n.Is(syntax.KindAtom):
		return n.Text(), true
	case n.Is(syntax.KindVar):
		if arg, ok := l.param(n); ok {
			var name string
			var found bool
			l.withFrame(l.frame.parent, func() { name, found = l.resolveName(arg) })
			return name, found
		}
		return n.Text(), true
	case n.Is(syntax.KindParenExpr):
		return l.resolveName(n.Child(syntax.FieldExpr))
	case n.Is(syntax.KindMacroCallExpr):
		exp := l.resolveMacro(n)
		switch exp.kind {
		case expandBuiltin:
			if exp.lit.Kind == LitAtom {
				return exp.lit.Str, true
			}
		case expandReplacement:
			var name string
			var found bool
			l.withFrame(exp.frame, func() { name, found = l.resolveName(exp.node) })
			return name, found
		}
	}
	return "", false
}

// concat evaluates adjacent string parts to one string. Every part must
// resolve to a string literal.
func (l *lowerer) concat(n *syntax.Node) (string, bool) {
	switch {
	case n == nil:
		return "", false
	case n.Is(syntax.KindString):
		return n.Text(), true
	case n.Is(syntax.KindStringConcat):
		var out string
		for _, part := range n.Children {
			s, ok := l.concat(part)
			if !ok {
				return "", false
			}
			out += s
		}
		return out, true
	case n.Is(syntax.KindParenExpr):
		return l.concat(n.Child(syntax.FieldExpr))
	case n.Is(syntax.KindVar):
		arg, ok := l.param(n)
		if !ok {
			return "", false
		}
		var s string
		l.withFrame(l.frame.parent, func() { s, ok = l.concat(arg) })
		return s, ok
	case n.Is(syntax.KindMacroCallExpr):
		exp := l.resolveMacro(n)
		switch exp.kind {
		case expandBuiltin:
			if exp.lit.Kind == LitString {
				return exp.lit.Str, true
			}
		case expandReplacement:
			var s string
			var ok bool
			l.withFrame(exp.frame, func() { s, ok = l.concat(exp.node) })
			return s, ok
		}
	}
	return "", false
}

// LocalMacroEntries returns the defines and undefs of fl in source order,
// each taking effect at its own form. If include is not nil it is called
// for every -include and the entries it returns are spliced in at that
// point.
func LocalMacroEntries(file FileID, fl *FormList, include func(*Include) []MacroEntry) []MacroEntry {
	var out []MacroEntry
	for _, idx := range fl.Forms() {
		switch idx.Kind {
		case FormDefine:
			d := &fl.Defines[idx.Index]
			out = append(out, MacroEntry{Define: d, File: file, Offset: d.Node.Span.Start.Offset})
		case FormPpDirective:
			pp := fl.PpDirectives[idx.Index]
			if pp.Kind == syntax.KindPpUndef && pp.Name != "" {
				out = append(out, MacroEntry{Undef: pp.Name, File: file, Offset: pp.Node.Span.Start.Offset})
			}
		case FormInclude:
			if include != nil {
				out = append(out, include(&fl.Includes[idx.Index])...)
			}
		}
	}
	return out
}
