// Package defs classifies source tokens as definition sites or references
// and resolves references to the definitions they denote.
package defs

import (
	"iter"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

// SymbolDefinition is anything a token can name.
type SymbolDefinition interface {
	// Kind is a short lowercase label such as "function" or "record_field".
	Kind() string
	// Name is the display form: foo/1, #rec, #rec.field, ?NAME/2, Var.
	Name() string
	// SearchName is the bare text to look for when finding references.
	SearchName() string
	File() hir.FileID
	// Range is the span of the defining name, or the zero span when the
	// definition has no name in source.
	Range() token.Span
	// IsLocal reports whether the definition can only be referenced from
	// the file that defines it (or files including it).
	IsLocal() bool
}

// ModuleDef is a module. Node is its -module attribute, nil when the
// module name comes from the file name.
type ModuleDef struct {
	FileID hir.FileID
	Module string
	Node   *syntax.Node
}

func (d ModuleDef) Kind() string       { return "module" }
func (d ModuleDef) Name() string       { return d.Module }
func (d ModuleDef) SearchName() string { return d.Module }
func (d ModuleDef) File() hir.FileID   { return d.FileID }
func (d ModuleDef) IsLocal() bool      { return false }
func (d ModuleDef) Range() token.Span  { return nameSpan(d.Node.Child(syntax.FieldName)) }

type FunctionDef struct {
	*hir.FunctionInfo
}

func (d FunctionDef) Kind() string       { return "function" }
func (d FunctionDef) Name() string       { return d.Function.Name.String() }
func (d FunctionDef) SearchName() string { return d.Function.Name.Name }
func (d FunctionDef) File() hir.FileID   { return d.FunctionInfo.File }
func (d FunctionDef) IsLocal() bool      { return !d.Exported }

func (d FunctionDef) Range() token.Span {
	return nameSpan(d.Node.Child(syntax.FieldClause).Child(syntax.FieldName))
}

type RecordDef struct {
	*hir.RecordInfo
}

func (d RecordDef) Kind() string       { return "record" }
func (d RecordDef) Name() string       { return "#" + d.Record.Name }
func (d RecordDef) SearchName() string { return d.Record.Name }
func (d RecordDef) File() hir.FileID   { return d.RecordInfo.File }
func (d RecordDef) IsLocal() bool      { return true }
func (d RecordDef) Range() token.Span  { return nameSpan(d.Node.Child(syntax.FieldName)) }

// RecordFieldDef is one field of a record declaration.
type RecordFieldDef struct {
	Record *hir.RecordInfo
	Field  string
}

func (d RecordFieldDef) Kind() string       { return "record_field" }
func (d RecordFieldDef) Name() string       { return "#" + d.Record.Name + "." + d.Field }
func (d RecordFieldDef) SearchName() string { return d.Field }
func (d RecordFieldDef) File() hir.FileID   { return d.Record.File }
func (d RecordFieldDef) IsLocal() bool      { return true }

func (d RecordFieldDef) Range() token.Span {
	for _, f := range d.Record.Node.ChildrenOf(syntax.FieldField) {
		if name := f.Child(syntax.FieldName); name.Is(syntax.KindAtom) && name.Text() == d.Field {
			return name.Span
		}
	}
	return token.Span{}
}

// TypeDef is a -type or -opaque.
type TypeDef struct {
	*hir.TypeInfo
}

func (d TypeDef) Kind() string       { return "type" }
func (d TypeDef) Name() string       { return d.TypeAlias.Name.String() }
func (d TypeDef) SearchName() string { return d.TypeAlias.Name.Name }
func (d TypeDef) File() hir.FileID   { return d.TypeInfo.File }
func (d TypeDef) IsLocal() bool      { return !d.Exported }

func (d TypeDef) Range() token.Span {
	return nameSpan(d.Node.Child(syntax.FieldName).Child(syntax.FieldName))
}

type CallbackDef struct {
	*hir.CallbackInfo
}

func (d CallbackDef) Kind() string       { return "callback" }
func (d CallbackDef) Name() string       { return d.Spec.Name.String() }
func (d CallbackDef) SearchName() string { return d.Spec.Name.Name }
func (d CallbackDef) File() hir.FileID   { return d.CallbackInfo.File }
func (d CallbackDef) IsLocal() bool      { return true }
func (d CallbackDef) Range() token.Span  { return nameSpan(d.Node.Child(syntax.FieldFun)) }

// DefineDef is a -define, possibly from an included header.
type DefineDef struct {
	FileID hir.FileID
	Define *hir.Define
}

func (d DefineDef) Kind() string       { return "define" }
func (d DefineDef) Name() string       { return "?" + d.Define.Key().String() }
func (d DefineDef) SearchName() string { return d.Define.Name }
func (d DefineDef) File() hir.FileID   { return d.FileID }
func (d DefineDef) IsLocal() bool      { return true }

func (d DefineDef) Range() token.Span {
	return nameSpan(d.Define.Node.Child(syntax.FieldLhs).Child(syntax.FieldName))
}

// HeaderDef is an included file.
type HeaderDef struct {
	FileID hir.FileID
	Path   string
}

func (d HeaderDef) Kind() string       { return "header" }
func (d HeaderDef) Name() string       { return filepath.Base(d.Path) }
func (d HeaderDef) SearchName() string { return filepath.Base(d.Path) }
func (d HeaderDef) File() hir.FileID   { return d.FileID }
func (d HeaderDef) IsLocal() bool      { return false }
func (d HeaderDef) Range() token.Span  { return token.Span{} }

// VarDef is a binding occurrence of a variable in a function body.
type VarDef struct {
	FileID hir.FileID
	Form   hir.FormIdx
	Pat    hir.PatID
	Var    string
	Node   *syntax.Node
}

func (d VarDef) Kind() string       { return "var" }
func (d VarDef) Name() string       { return d.Var }
func (d VarDef) SearchName() string { return d.Var }
func (d VarDef) File() hir.FileID   { return d.FileID }
func (d VarDef) IsLocal() bool      { return true }
func (d VarDef) Range() token.Span  { return nameSpan(d.Node) }

func nameSpan(n *syntax.Node) token.Span {
	if n == nil {
		return token.Span{}
	}
	return n.Span
}

// ReferenceType tells a direct use of a symbol from a mention of it in
// an attribute such as -export or -spec.
type ReferenceType int

const (
	Direct ReferenceType = iota
	Other
)

func (t ReferenceType) String() string {
	if t == Other {
		return "other"
	}
	return "direct"
}

// ReferenceKind discriminates ReferenceClass.
type ReferenceKind int

const (
	RefDefinition ReferenceKind = iota
	RefMultiVar
	RefMultiMacro
)

// ReferenceClass is what a reference resolves to: one definition, every
// binding that can reach a variable use, or every arity of a macro name.
type ReferenceClass struct {
	Kind   ReferenceKind
	Def    SymbolDefinition
	Vars   []VarDef
	Macros []DefineDef
}

// All yields every definition the reference may denote.
func (r ReferenceClass) All() iter.Seq[SymbolDefinition] {
	return func(yield func(SymbolDefinition) bool) {
		switch r.Kind {
		case RefDefinition:
			if r.Def != nil {
				yield(r.Def)
			}
		case RefMultiVar:
			for _, v := range r.Vars {
				if !yield(v) {
					return
				}
			}
		case RefMultiMacro:
			for _, m := range r.Macros {
				if !yield(m) {
					return
				}
			}
		}
	}
}

// SymbolClass is the classification of one token. Def is set for a
// definition site; otherwise Refs and Type describe the reference.
type SymbolClass struct {
	Def  SymbolDefinition
	Refs ReferenceClass
	Type ReferenceType
}

// IsDefinition reports whether the token is a definition site.
func (c SymbolClass) IsDefinition() bool {
	return c.Def != nil
}

// All yields the definition, or every definition the reference denotes.
func (c SymbolClass) All() iter.Seq[SymbolDefinition] {
	if c.Def != nil {
		return func(yield func(SymbolDefinition) bool) { yield(c.Def) }
	}
	return c.Refs.All()
}

func (c SymbolClass) String() string {
	var sb strings.Builder
	if c.Def != nil {
		sb.WriteString("definition")
	} else {
		sb.WriteString("reference(" + c.Type.String() + ")")
	}
	first := true
	for d := range c.All() {
		if first {
			sb.WriteString(" ")
			first = false
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(d.Kind() + " " + d.Name())
	}
	return sb.String()
}

func definition(d SymbolDefinition) SymbolClass {
	return SymbolClass{Def: d}
}

func reference(d SymbolDefinition, typ ReferenceType) SymbolClass {
	return SymbolClass{Refs: ReferenceClass{Kind: RefDefinition, Def: d}, Type: typ}
}
