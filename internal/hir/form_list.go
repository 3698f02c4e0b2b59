package hir

import (
	"strconv"

	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

// NameArity identifies a function, type or callback.
type NameArity struct {
	Name  string
	Arity int
}

func (na NameArity) String() string {
	return na.Name + "/" + strconv.Itoa(na.Arity)
}

// FormKind discriminates FormIdx.
type FormKind int

const (
	FormModuleAttribute FormKind = iota
	FormFunction
	FormTypeAlias
	FormSpec
	FormCallback
	FormRecord
	FormAttribute
	FormCompileOption
	FormDefine
	FormInclude
	FormExport
	FormExportType
	FormImport
	FormBehaviour
	FormDeprecated
	FormOptionalCallbacks
	FormPpDirective
)

var formKindNames = [...]string{
	FormModuleAttribute:   "module",
	FormFunction:          "function",
	FormTypeAlias:         "type",
	FormSpec:              "spec",
	FormCallback:          "callback",
	FormRecord:            "record",
	FormAttribute:         "attribute",
	FormCompileOption:     "compile",
	FormDefine:            "define",
	FormInclude:           "include",
	FormExport:            "export",
	FormExportType:        "export_type",
	FormImport:            "import",
	FormBehaviour:         "behaviour",
	FormDeprecated:        "deprecated",
	FormOptionalCallbacks: "optional_callbacks",
	FormPpDirective:       "pp",
}

func (k FormKind) String() string {
	if int(k) < len(formKindNames) {
		return formKindNames[k]
	}
	return "form(" + strconv.Itoa(int(k)) + ")"
}

// FormIdx points at one entry of a FormList. Index is relative to the
// slice for Kind.
type FormIdx struct {
	Kind  FormKind
	Index int
}

type ModuleAttribute struct {
	Name string
	Node *syntax.Node
}

type Function struct {
	Name NameArity
	Node *syntax.Node
}

type TypeAlias struct {
	Name   NameArity
	Params []string
	Opaque bool
	Node   *syntax.Node
}

// Spec is a -spec or -callback declaration. Module is set for the
// qualified '-spec mod:name(...)' form.
type Spec struct {
	Module string
	Name   NameArity
	Node   *syntax.Node
}

type Record struct {
	Name   string
	Fields []string
	Node   *syntax.Node
}

// Attribute is a wild '-name(Value).' attribute.
type Attribute struct {
	Name string
	Node *syntax.Node
}

type CompileOption struct {
	Node *syntax.Node
}

// Define is a -define. Arity is -1 for a define without a parameter list.
type Define struct {
	Name        string
	Arity       int
	Params      []string
	Replacement *syntax.Node
	Node        *syntax.Node
}

// Key returns the macro table key of the define.
func (d *Define) Key() MacroKey {
	return MacroKey{Name: d.Name, Arity: d.Arity}
}

type Include struct {
	Path string
	Lib  bool
	Node *syntax.Node
}

type Export struct {
	Entries []NameArity
	Node    *syntax.Node
}

type Import struct {
	Module  string
	Entries []NameArity
	Node    *syntax.Node
}

type Behaviour struct {
	Name string
	Node *syntax.Node
}

type Deprecated struct {
	Node *syntax.Node
}

// PpDirective is -undef, -ifdef, -ifndef, -else, -endif, -if or -elif.
type PpDirective struct {
	Kind syntax.NodeKind
	Name string
	Node *syntax.Node
}

// FormList indexes the top-level forms of one file.
type FormList struct {
	ModuleAttr        *ModuleAttribute
	Functions         []Function
	TypeAliases       []TypeAlias
	Specs             []Spec
	Callbacks         []Spec
	Records           []Record
	Attributes        []Attribute
	CompileOptions    []CompileOption
	Defines           []Define
	Includes          []Include
	Exports           []Export
	ExportTypes       []Export
	Imports           []Import
	Behaviours        []Behaviour
	Deprecations      []Deprecated
	OptionalCallbacks []Export
	PpDirectives      []PpDirective

	forms []FormIdx
}

// Forms returns every indexed form in source order.
func (fl *FormList) Forms() []FormIdx {
	return fl.forms
}

// Node returns the syntax node of the form at idx.
func (fl *FormList) Node(idx FormIdx) *syntax.Node {
	switch idx.Kind {
	case FormModuleAttribute:
		return fl.ModuleAttr.Node
	case FormFunction:
		return fl.Functions[idx.Index].Node
	case FormTypeAlias:
		return fl.TypeAliases[idx.Index].Node
	case FormSpec:
		return fl.Specs[idx.Index].Node
	case FormCallback:
		return fl.Callbacks[idx.Index].Node
	case FormRecord:
		return fl.Records[idx.Index].Node
	case FormAttribute:
		return fl.Attributes[idx.Index].Node
	case FormCompileOption:
		return fl.CompileOptions[idx.Index].Node
	case FormDefine:
		return fl.Defines[idx.Index].Node
	case FormInclude:
		return fl.Includes[idx.Index].Node
	case FormExport:
		return fl.Exports[idx.Index].Node
	case FormExportType:
		return fl.ExportTypes[idx.Index].Node
	case FormImport:
		return fl.Imports[idx.Index].Node
	case FormBehaviour:
		return fl.Behaviours[idx.Index].Node
	case FormDeprecated:
		return fl.Deprecations[idx.Index].Node
	case FormOptionalCallbacks:
		return fl.OptionalCallbacks[idx.Index].Node
	case FormPpDirective:
		return fl.PpDirectives[idx.Index].Node
	}
	return nil
}

// Count returns the number of forms of kind k.
func (fl *FormList) Count(k FormKind) int {
	switch k {
	case FormModuleAttribute:
		if fl.ModuleAttr == nil {
			return 0
		}
		return 1
	case FormFunction:
		return len(fl.Functions)
	case FormTypeAlias:
		return len(fl.TypeAliases)
	case FormSpec:
		return len(fl.Specs)
	case FormCallback:
		return len(fl.Callbacks)
	case FormRecord:
		return len(fl.Records)
	case FormAttribute:
		return len(fl.Attributes)
	case FormCompileOption:
		return len(fl.CompileOptions)
	case FormDefine:
		return len(fl.Defines)
	case FormInclude:
		return len(fl.Includes)
	case FormExport:
		return len(fl.Exports)
	case FormExportType:
		return len(fl.ExportTypes)
	case FormImport:
		return len(fl.Imports)
	case FormBehaviour:
		return len(fl.Behaviours)
	case FormDeprecated:
		return len(fl.Deprecations)
	case FormOptionalCallbacks:
		return len(fl.OptionalCallbacks)
	case FormPpDirective:
		return len(fl.PpDirectives)
	}
	return 0
}

// FindForm returns the index of the form whose syntax node is n.
func (fl *FormList) FindForm(n *syntax.Node) (FormIdx, bool) {
	for _, idx := range fl.forms {
		if fl.Node(idx) == n {
			return idx, true
		}
	}
	return FormIdx{}, false
}

// ModuleName returns the -module name, or "" if the file has none.
func (fl *FormList) ModuleName() string {
	if fl.ModuleAttr == nil {
		return ""
	}
	return fl.ModuleAttr.Name
}

func (fl *FormList) push(kind FormKind, n int) {
	fl.forms = append(fl.forms, FormIdx{Kind: kind, Index: n})
}

// NewFormList indexes the forms of file. Error forms are skipped.
func NewFormList(file *syntax.SourceFile) *FormList {
	fl := &FormList{}
	for _, n := range file.Forms() {
		switch n.Kind {
		case syntax.KindModuleAttribute:
			if fl.ModuleAttr == nil {
				fl.ModuleAttr = &ModuleAttribute{Name: atomText(n.Child(syntax.FieldName)), Node: n}
				fl.push(FormModuleAttribute, 0)
			}
		case syntax.KindFunDecl:
			fl.Functions = append(fl.Functions, Function{Name: functionName(n), Node: n})
			fl.push(FormFunction, len(fl.Functions)-1)
		case syntax.KindTypeAlias, syntax.KindOpaque:
			fl.TypeAliases = append(fl.TypeAliases, typeAlias(n))
			fl.push(FormTypeAlias, len(fl.TypeAliases)-1)
		case syntax.KindSpec:
			fl.Specs = append(fl.Specs, spec(n))
			fl.push(FormSpec, len(fl.Specs)-1)
		case syntax.KindCallback:
			fl.Callbacks = append(fl.Callbacks, spec(n))
			fl.push(FormCallback, len(fl.Callbacks)-1)
		case syntax.KindRecordDecl:
			fl.Records = append(fl.Records, record(n))
			fl.push(FormRecord, len(fl.Records)-1)
		case syntax.KindWildAttribute:
			name := n.Child(syntax.FieldName).Child(syntax.FieldName)
			fl.Attributes = append(fl.Attributes, Attribute{Name: name.Text(), Node: n})
			fl.push(FormAttribute, len(fl.Attributes)-1)
		case syntax.KindCompileOptionsAttribute:
			fl.CompileOptions = append(fl.CompileOptions, CompileOption{Node: n})
			fl.push(FormCompileOption, len(fl.CompileOptions)-1)
		case syntax.KindPpDefine:
			d, ok := define(n)
			if !ok {
				continue
			}
			fl.Defines = append(fl.Defines, d)
			fl.push(FormDefine, len(fl.Defines)-1)
		case syntax.KindPpInclude, syntax.KindPpIncludeLib:
			fl.Includes = append(fl.Includes, include(n))
			fl.push(FormInclude, len(fl.Includes)-1)
		case syntax.KindExportAttribute:
			fl.Exports = append(fl.Exports, Export{Entries: faEntries(n), Node: n})
			fl.push(FormExport, len(fl.Exports)-1)
		case syntax.KindExportTypeAttribute:
			fl.ExportTypes = append(fl.ExportTypes, Export{Entries: faEntries(n), Node: n})
			fl.push(FormExportType, len(fl.ExportTypes)-1)
		case syntax.KindOptionalCallbacksAttribute:
			fl.OptionalCallbacks = append(fl.OptionalCallbacks, Export{Entries: faEntries(n), Node: n})
			fl.push(FormOptionalCallbacks, len(fl.OptionalCallbacks)-1)
		case syntax.KindImportAttribute:
			fl.Imports = append(fl.Imports, Import{
				Module:  atomText(n.Child(syntax.FieldModule)),
				Entries: faEntries(n),
				Node:    n,
			})
			fl.push(FormImport, len(fl.Imports)-1)
		case syntax.KindBehaviourAttribute:
			fl.Behaviours = append(fl.Behaviours, Behaviour{Name: atomText(n.Child(syntax.FieldName)), Node: n})
			fl.push(FormBehaviour, len(fl.Behaviours)-1)
		case syntax.KindDeprecatedAttribute:
			fl.Deprecations = append(fl.Deprecations, Deprecated{Node: n})
			fl.push(FormDeprecated, len(fl.Deprecations)-1)
		case syntax.KindPpUndef, syntax.KindPpIfdef, syntax.KindPpIfndef,
			syntax.KindPpElse, syntax.KindPpEndif, syntax.KindPpIf, syntax.KindPpElif:
			fl.PpDirectives = append(fl.PpDirectives, PpDirective{
				Kind: n.Kind,
				Name: n.Child(syntax.FieldName).Text(),
				Node: n,
			})
			fl.push(FormPpDirective, len(fl.PpDirectives)-1)
		}
	}
	return fl
}

func atomText(n *syntax.Node) string {
	if n.Is(syntax.KindAtom) {
		return n.Text()
	}
	return ""
}

// functionName takes the name and arity of the first clause written out
// in full. Clauses produced by macros do not name the function.
func functionName(n *syntax.Node) NameArity {
	for _, c := range n.ChildrenOf(syntax.FieldClause) {
		if !c.Is(syntax.KindFunctionClause) {
			continue
		}
		name := c.Child(syntax.FieldName)
		if !name.Is(syntax.KindAtom) {
			continue
		}
		return NameArity{Name: name.Text(), Arity: childCount(c.Child(syntax.FieldArgs))}
	}
	return NameArity{}
}

func typeAlias(n *syntax.Node) TypeAlias {
	ta := TypeAlias{Opaque: n.Kind == syntax.KindOpaque, Node: n}
	name := n.Child(syntax.FieldName)
	ta.Name.Name = atomText(name.Child(syntax.FieldName))
	if args := name.Child(syntax.FieldArgs); args != nil {
		ta.Name.Arity = len(args.Children)
		for _, a := range args.Children {
			ta.Params = append(ta.Params, a.Text())
		}
	}
	return ta
}

func spec(n *syntax.Node) Spec {
	s := Spec{Node: n}
	if m := n.Child(syntax.FieldModule); m != nil {
		s.Module = atomText(m.Child(syntax.FieldName))
	}
	s.Name.Name = atomText(n.Child(syntax.FieldFun))
	if sig := n.Child(syntax.FieldSig); sig != nil {
		s.Name.Arity = childCount(sig.Child(syntax.FieldArgs))
	}
	return s
}

func record(n *syntax.Node) Record {
	r := Record{Name: atomText(n.Child(syntax.FieldName)), Node: n}
	for _, f := range n.ChildrenOf(syntax.FieldField) {
		r.Fields = append(r.Fields, atomText(f.Child(syntax.FieldName)))
	}
	return r
}

func define(n *syntax.Node) (Define, bool) {
	lhs := n.Child(syntax.FieldLhs)
	name := lhs.Child(syntax.FieldName)
	if name == nil {
		return Define{}, false
	}
	d := Define{Name: name.Text(), Arity: -1, Replacement: n.Child(syntax.FieldReplacement), Node: n}
	if args := lhs.Child(syntax.FieldArgs); args != nil {
		d.Arity = len(args.Children)
		for _, a := range args.Children {
			d.Params = append(d.Params, a.Text())
		}
	}
	return d, true
}

func include(n *syntax.Node) Include {
	inc := Include{Lib: n.Kind == syntax.KindPpIncludeLib, Node: n}
	for _, part := range n.ChildrenOf(syntax.FieldFile) {
		if part.Is(syntax.KindString) {
			inc.Path += part.Text()
		}
	}
	return inc
}

func faEntries(n *syntax.Node) []NameArity {
	var out []NameArity
	for _, fa := range n.ChildrenOf(syntax.FieldFun) {
		name := fa.Child(syntax.FieldFun)
		arity := fa.Child(syntax.FieldArity).Child(syntax.FieldValue)
		if !name.Is(syntax.KindAtom) || !arity.Is(syntax.KindInteger) {
			continue
		}
		a, err := strconv.Atoi(arity.Text())
		if err != nil {
			continue
		}
		out = append(out, NameArity{Name: name.Text(), Arity: a})
	}
	return out
}

func childCount(n *syntax.Node) int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}
