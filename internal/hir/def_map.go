package hir

import (
	"slices"
	"strconv"

	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

// FunctionInfo is a function defined in a file.
type FunctionInfo struct {
	Function
	File       FileID
	Form       FormIdx
	Exported   bool
	Deprecated bool
	// ParamNames holds one display name per parameter, taken from the
	// first clause that binds a plain variable in that position.
	ParamNames []string
}

type RecordInfo struct {
	Record
	File FileID
	Form FormIdx
}

type TypeInfo struct {
	TypeAlias
	File     FileID
	Form     FormIdx
	Exported bool
}

type CallbackInfo struct {
	Spec
	File     FileID
	Form     FormIdx
	Optional bool
}

type DefineInfo struct {
	Define
	File FileID
	Form FormIdx
}

// DeprecationKind is the shape of one -deprecated entry.
type DeprecationKind int

const (
	DeprecatedModule DeprecationKind = iota
	DeprecatedFunction
	DeprecatedUnrecognised
)

// Deprecation is one entry of a -deprecated attribute. AnyArity is set
// for the '_' arity.
type Deprecation struct {
	Kind     DeprecationKind
	Name     string
	Arity    int
	AnyArity bool
	Reason   string
	Node     *syntax.Node
}

func (d Deprecation) matches(na NameArity) bool {
	return d.Kind == DeprecatedFunction && d.Name == na.Name && (d.AnyArity || d.Arity == na.Arity)
}

// DefMap collects the definitions visible in one file: its own forms plus
// the records, types and macros of every header it includes.
type DefMap struct {
	File      FileID
	Module    string
	ExportAll bool

	functions     map[NameArity]*FunctionInfo
	exported      map[NameArity]bool
	exportedTypes map[NameArity]bool
	records       map[string]*RecordInfo
	types         map[NameArity]*TypeInfo
	callbacks     map[NameArity]*CallbackInfo
	defines       map[MacroKey]*DefineInfo
	deprecations  []Deprecation
	included      []FileID
}

// BuildDefMap indexes fl, the forms of file, and merges headers, the def
// maps of the files it includes. Local definitions win over included ones.
func BuildDefMap(file FileID, fl *FormList, headers []*DefMap) *DefMap {
	dm := &DefMap{
		File:          file,
		Module:        fl.ModuleName(),
		functions:     map[NameArity]*FunctionInfo{},
		exported:      map[NameArity]bool{},
		exportedTypes: map[NameArity]bool{},
		records:       map[string]*RecordInfo{},
		types:         map[NameArity]*TypeInfo{},
		callbacks:     map[NameArity]*CallbackInfo{},
		defines:       map[MacroKey]*DefineInfo{},
	}
	for _, h := range headers {
		dm.merge(h)
	}

	for _, e := range fl.Exports {
		for _, na := range e.Entries {
			dm.exported[na] = true
		}
	}
	for _, e := range fl.ExportTypes {
		for _, na := range e.Entries {
			dm.exportedTypes[na] = true
		}
	}
	for _, c := range fl.CompileOptions {
		if hasExportAll(c.Node.Child(syntax.FieldValue)) {
			dm.ExportAll = true
		}
	}
	for _, d := range fl.Deprecations {
		dm.deprecations = append(dm.deprecations, parseDeprecations(d.Node.Child(syntax.FieldValue))...)
	}

	optional := map[NameArity]bool{}
	for _, e := range fl.OptionalCallbacks {
		for _, na := range e.Entries {
			optional[na] = true
		}
	}

	for _, idx := range fl.Forms() {
		switch idx.Kind {
		case FormFunction:
			fn := fl.Functions[idx.Index]
			if fn.Name.Name == "" {
				continue
			}
			if _, dup := dm.functions[fn.Name]; dup {
				continue
			}
			info := &FunctionInfo{
				Function:   fn,
				File:       file,
				Form:       idx,
				Exported:   dm.ExportAll || dm.exported[fn.Name],
				ParamNames: paramNames(fn),
			}
			info.Deprecated = dm.isDeprecated(fn.Name, info.Exported)
			dm.functions[fn.Name] = info
		case FormRecord:
			r := fl.Records[idx.Index]
			dm.records[r.Name] = &RecordInfo{Record: r, File: file, Form: idx}
		case FormTypeAlias:
			ta := fl.TypeAliases[idx.Index]
			dm.types[ta.Name] = &TypeInfo{TypeAlias: ta, File: file, Form: idx, Exported: dm.exportedTypes[ta.Name]}
		case FormCallback:
			cb := fl.Callbacks[idx.Index]
			dm.callbacks[cb.Name] = &CallbackInfo{Spec: cb, File: file, Form: idx, Optional: optional[cb.Name]}
		case FormDefine:
			d := fl.Defines[idx.Index]
			dm.defines[d.Key()] = &DefineInfo{Define: d, File: file, Form: idx}
		}
	}
	return dm
}

func (dm *DefMap) merge(h *DefMap) {
	dm.included = append(dm.included, h.File)
	for _, f := range h.included {
		if !slices.Contains(dm.included, f) {
			dm.included = append(dm.included, f)
		}
	}
	for k, v := range h.records {
		dm.records[k] = v
	}
	for k, v := range h.types {
		dm.types[k] = v
	}
	for k, v := range h.defines {
		dm.defines[k] = v
	}
}

func (dm *DefMap) isDeprecated(na NameArity, exported bool) bool {
	for _, d := range dm.deprecations {
		if d.Kind == DeprecatedModule && exported {
			return true
		}
		if d.matches(na) {
			return true
		}
	}
	return false
}

// IsDeprecated reports whether na is marked deprecated, either by name or
// because the whole module is deprecated and na is exported.
func (dm *DefMap) IsDeprecated(na NameArity) bool {
	if fn, ok := dm.functions[na]; ok {
		return fn.Deprecated
	}
	return dm.isDeprecated(na, false)
}

// ModuleDeprecated reports a '-deprecated(module).' entry.
func (dm *DefMap) ModuleDeprecated() bool {
	return slices.ContainsFunc(dm.deprecations, func(d Deprecation) bool {
		return d.Kind == DeprecatedModule
	})
}

func (dm *DefMap) Deprecations() []Deprecation {
	return dm.deprecations
}

// IncludedFiles returns every header merged into the map, transitively.
func (dm *DefMap) IncludedFiles() []FileID {
	return dm.included
}

func (dm *DefMap) Function(na NameArity) (*FunctionInfo, bool) {
	fn, ok := dm.functions[na]
	return fn, ok
}

// Functions returns every function sorted by name and arity.
func (dm *DefMap) Functions() []*FunctionInfo {
	return sortedValues(dm.functions, compareNameArity)
}

// FunctionsNamed returns every arity defined for name.
func (dm *DefMap) FunctionsNamed(name string) []*FunctionInfo {
	var out []*FunctionInfo
	for _, fn := range dm.Functions() {
		if fn.Name.Name == name {
			out = append(out, fn)
		}
	}
	return out
}

// ExportedFunctions returns the exported functions sorted by name and
// arity. Exports naming undefined functions are not included.
func (dm *DefMap) ExportedFunctions() []*FunctionInfo {
	var out []*FunctionInfo
	for _, fn := range dm.Functions() {
		if fn.Exported {
			out = append(out, fn)
		}
	}
	return out
}

func (dm *DefMap) IsExported(na NameArity) bool {
	return dm.ExportAll || dm.exported[na]
}

func (dm *DefMap) Record(name string) (*RecordInfo, bool) {
	r, ok := dm.records[name]
	return r, ok
}

func (dm *DefMap) Records() []*RecordInfo {
	out := make([]*RecordInfo, 0, len(dm.records))
	for _, r := range dm.records {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *RecordInfo) int { return compareStrings(a.Name, b.Name) })
	return out
}

func (dm *DefMap) Type(na NameArity) (*TypeInfo, bool) {
	t, ok := dm.types[na]
	return t, ok
}

func (dm *DefMap) Types() []*TypeInfo {
	return sortedValues(dm.types, compareNameArity)
}

func (dm *DefMap) Callback(na NameArity) (*CallbackInfo, bool) {
	cb, ok := dm.callbacks[na]
	return cb, ok
}

func (dm *DefMap) Callbacks() []*CallbackInfo {
	return sortedValues(dm.callbacks, compareNameArity)
}

func (dm *DefMap) Define(key MacroKey) (*DefineInfo, bool) {
	d, ok := dm.defines[key]
	return d, ok
}

// Defines returns every macro sorted by name, then arity.
func (dm *DefMap) Defines() []*DefineInfo {
	return sortedValues(dm.defines, func(a, b MacroKey) int {
		return compareNameArity(NameArity(a), NameArity(b))
	})
}

// DefinesNamed returns every arity of the macro name.
func (dm *DefMap) DefinesNamed(name string) []*DefineInfo {
	var out []*DefineInfo
	for _, d := range dm.Defines() {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareNameArity(a, b NameArity) int {
	if c := compareStrings(a.Name, b.Name); c != 0 {
		return c
	}
	return a.Arity - b.Arity
}

func sortedValues[K comparable, V any](m map[K]V, cmp func(a, b K) int) []V {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp)
	out := make([]V, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

// hasExportAll looks for export_all as the option or inside an option
// list.
func hasExportAll(n *syntax.Node) bool {
	switch {
	case n.Is(syntax.KindAtom):
		return n.Text() == "export_all"
	case n.Is(syntax.KindList), n.Is(syntax.KindParenExpr):
		return slices.ContainsFunc(n.Children, hasExportAll)
	}
	return false
}

// parseDeprecations reads the value of -deprecated: module, {F, A},
// {F, A, Reason} or a list of those.
func parseDeprecations(n *syntax.Node) []Deprecation {
	switch {
	case n == nil:
		return nil
	case n.Is(syntax.KindParenExpr):
		return parseDeprecations(n.Child(syntax.FieldExpr))
	case n.Is(syntax.KindList):
		var out []Deprecation
		for _, c := range n.Children {
			out = append(out, parseDeprecations(c)...)
		}
		return out
	case n.Is(syntax.KindAtom) && n.Text() == "module":
		return []Deprecation{{Kind: DeprecatedModule, Node: n}}
	case n.Is(syntax.KindTuple):
		if d, ok := deprecatedFunction(n); ok {
			return []Deprecation{d}
		}
	}
	return []Deprecation{{Kind: DeprecatedUnrecognised, Node: n}}
}

func deprecatedFunction(n *syntax.Node) (Deprecation, bool) {
	elems := n.Children
	if len(elems) != 2 && len(elems) != 3 {
		return Deprecation{}, false
	}
	name, arity := elems[0], elems[1]
	if !name.Is(syntax.KindAtom) {
		return Deprecation{}, false
	}
	d := Deprecation{Kind: DeprecatedFunction, Name: name.Text(), Node: n}
	switch {
	case arity.Is(syntax.KindAtom) && arity.Text() == "_":
		d.AnyArity = true
	case arity.Is(syntax.KindInteger):
		a, err := strconv.Atoi(arity.Text())
		if err != nil {
			return Deprecation{}, false
		}
		d.Arity = a
	default:
		return Deprecation{}, false
	}
	if len(elems) == 3 {
		reason := elems[2]
		switch {
		case reason.Is(syntax.KindAtom):
			d.Reason = reason.Text()
		case reason.Is(syntax.KindString), reason.Is(syntax.KindStringConcat):
			s, ok := literalString(reason)
			if !ok {
				return Deprecation{}, false
			}
			d.Reason = s
		default:
			return Deprecation{}, false
		}
	}
	return d, true
}

// literalString joins a string or adjacent string literals. Parts that are
// not plain strings, such as macro calls, make the whole value unknown.
func literalString(n *syntax.Node) (string, bool) {
	switch {
	case n.Is(syntax.KindString):
		return n.Text(), true
	case n.Is(syntax.KindStringConcat):
		var out string
		for _, part := range n.Children {
			s, ok := literalString(part)
			if !ok {
				return "", false
			}
			out += s
		}
		return out, true
	}
	return "", false
}

// paramNames names each parameter from the first clause with a variable
// in that position, falling back to ArgN.
func paramNames(fn Function) []string {
	names := make([]string, fn.Name.Arity)
	for _, c := range fn.Node.ChildrenOf(syntax.FieldClause) {
		if !c.Is(syntax.KindFunctionClause) {
			continue
		}
		args := c.Child(syntax.FieldArgs)
		if args == nil || len(args.Children) != fn.Name.Arity {
			continue
		}
		for i, a := range args.Children {
			if names[i] == "" {
				names[i] = paramVar(a)
			}
		}
	}
	for i := range names {
		if names[i] == "" {
			names[i] = "Arg" + strconv.Itoa(i+1)
		}
	}
	return names
}

// paramVar returns the variable a parameter pattern binds as a whole,
// either 'X' or 'Pat = X'.
func paramVar(n *syntax.Node) string {
	switch {
	case n.Is(syntax.KindVar):
		if name := n.Text(); name != "_" && name[0] != '_' {
			return name
		}
	case n.Is(syntax.KindMatchExpr):
		if v := paramVar(n.Child(syntax.FieldRhs)); v != "" {
			return v
		}
		return paramVar(n.Child(syntax.FieldLhs))
	}
	return ""
}
