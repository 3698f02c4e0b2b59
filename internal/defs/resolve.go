package defs

import (
	"slices"
	"strconv"

	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
)

func definitionOf(d SymbolDefinition) SymbolClass { return definition(d) }
func referenceOf(d SymbolDefinition) SymbolClass  { return reference(d, Direct) }

// ---------- Modules ----------

func (c *classifier) module(name string) (ModuleDef, bool, error) {
	file, ok, err := c.snap.ResolveModule(c.ctx, name)
	if err != nil || !ok {
		return ModuleDef{}, false, err
	}
	fl, err := c.snap.FormList(c.ctx, file)
	if err != nil {
		return ModuleDef{}, false, err
	}
	d := ModuleDef{FileID: file, Module: name}
	if fl.ModuleAttr != nil {
		d.Node = fl.ModuleAttr.Node
	}
	return d, true, nil
}

func (c *classifier) moduleRef(leaf *syntax.Node, typ ReferenceType) (SymbolClass, bool, error) {
	if !leaf.Is(syntax.KindAtom) {
		return none, false, nil
	}
	d, ok, err := c.module(leaf.Text())
	if err != nil || !ok {
		return none, false, err
	}
	return reference(d, typ), true, nil
}

// ---------- Functions and types ----------

// function looks up na in module, or in the current file when module is
// empty. Local lookups fall back to -import entries and then to the
// functions exported by erlang, which are auto-imported.
func (c *classifier) function(module string, na hir.NameArity) (FunctionDef, bool, error) {
	if module != "" {
		return c.remoteFunction(module, na)
	}
	dm, err := c.defMap(c.file)
	if err != nil {
		return FunctionDef{}, false, err
	}
	if f, ok := dm.Function(na); ok {
		return FunctionDef{f}, true, nil
	}
	for _, imp := range c.fl.Imports {
		if slices.Contains(imp.Entries, na) {
			return c.remoteFunction(imp.Module, na)
		}
	}
	f, ok, err := c.remoteFunction("erlang", na)
	if err != nil || !ok || !f.Exported {
		return FunctionDef{}, false, err
	}
	return f, true, nil
}

func (c *classifier) remoteFunction(module string, na hir.NameArity) (FunctionDef, bool, error) {
	file, ok, err := c.snap.ResolveModule(c.ctx, module)
	if err != nil || !ok {
		return FunctionDef{}, false, err
	}
	dm, err := c.defMap(file)
	if err != nil {
		return FunctionDef{}, false, err
	}
	f, ok := dm.Function(na)
	if !ok {
		return FunctionDef{}, false, nil
	}
	return FunctionDef{f}, true, nil
}

func (c *classifier) typeAlias(module string, na hir.NameArity) (TypeDef, bool, error) {
	file := c.file
	if module != "" {
		var ok bool
		var err error
		file, ok, err = c.snap.ResolveModule(c.ctx, module)
		if err != nil || !ok {
			return TypeDef{}, false, err
		}
	}
	dm, err := c.defMap(file)
	if err != nil {
		return TypeDef{}, false, err
	}
	t, ok := dm.Type(na)
	if !ok {
		return TypeDef{}, false, nil
	}
	return TypeDef{t}, true, nil
}

func (c *classifier) functionDefinition(leaf, clause *syntax.Node) (SymbolClass, bool, error) {
	idx, ok := c.formOf(clause)
	if leaf.Field != syntax.FieldName || !ok || idx.Kind != hir.FormFunction {
		return none, false, nil
	}
	dm, err := c.defMap(c.file)
	if err != nil {
		return none, false, err
	}
	f, ok := dm.Function(c.fl.Functions[idx.Index].Name)
	if !ok {
		return none, false, nil
	}
	return definition(FunctionDef{f}), true, nil
}

func (c *classifier) typeDefinition(leaf, alias *syntax.Node) (SymbolClass, bool, error) {
	idx, ok := c.formOf(alias)
	if leaf.Field != syntax.FieldName || !ok || idx.Kind != hir.FormTypeAlias {
		return none, false, nil
	}
	dm, err := c.defMap(c.file)
	if err != nil {
		return none, false, err
	}
	t, ok := dm.Type(c.fl.TypeAliases[idx.Index].Name)
	if !ok {
		return none, false, nil
	}
	return definition(TypeDef{t}), true, nil
}

func (c *classifier) callbackDefinition(leaf, cb *syntax.Node) (SymbolClass, bool, error) {
	idx, ok := c.formOf(cb)
	if leaf.Field != syntax.FieldFun || !ok || idx.Kind != hir.FormCallback {
		return none, false, nil
	}
	dm, err := c.defMap(c.file)
	if err != nil {
		return none, false, err
	}
	d, ok := dm.Callback(c.fl.Callbacks[idx.Index].Name)
	if !ok {
		return none, false, nil
	}
	return definition(CallbackDef{d}), true, nil
}

func (c *classifier) specRef(leaf, spec *syntax.Node) (SymbolClass, bool, error) {
	idx, ok := c.formOf(spec)
	if leaf.Field != syntax.FieldFun || !ok || idx.Kind != hir.FormSpec {
		return none, false, nil
	}
	s := c.fl.Specs[idx.Index]
	module := s.Module
	if module == c.fl.ModuleName() {
		module = ""
	}
	f, ok, err := c.function(module, s.Name)
	if err != nil || !ok {
		return none, false, err
	}
	return reference(f, Other), true, nil
}

// fa resolves a name/arity entry by the attribute holding it.
func (c *classifier) fa(leaf, fa *syntax.Node) (SymbolClass, bool, error) {
	arity, ok, err := c.intOf(fa.Child(syntax.FieldArity).Child(syntax.FieldValue))
	if err != nil || !ok || !leaf.Is(syntax.KindAtom) {
		return none, false, err
	}
	na := hir.NameArity{Name: leaf.Text(), Arity: arity}
	dm, err := c.defMap(c.file)
	if err != nil {
		return none, false, err
	}

	var d SymbolDefinition
	switch holder := fa.Parent; holder.Kind {
	case syntax.KindExportAttribute:
		if f, ok := dm.Function(na); ok {
			d = FunctionDef{f}
		}
	case syntax.KindExportTypeAttribute:
		if t, ok := dm.Type(na); ok {
			d = TypeDef{t}
		}
	case syntax.KindOptionalCallbacksAttribute:
		if cb, ok := dm.Callback(na); ok {
			d = CallbackDef{cb}
		}
	case syntax.KindImportAttribute:
		module := holder.Child(syntax.FieldModule)
		if !module.Is(syntax.KindAtom) {
			return none, false, nil
		}
		f, ok, err := c.remoteFunction(module.Text(), na)
		if err != nil {
			return none, false, err
		}
		if ok {
			d = f
		}
	}
	if d == nil {
		return none, false, nil
	}
	return reference(d, Other), true, nil
}

// callRef resolves the callee of a call or fun capture. Calls written in
// type positions name types.
func (c *classifier) callRef(leaf, parent *syntax.Node) (SymbolClass, bool, error) {
	if !leaf.Is(syntax.KindAtom) {
		return none, false, nil
	}
	var module string
	var arity int
	inType := false
	switch parent.Kind {
	case syntax.KindCall:
		if leaf.Field != syntax.FieldExpr {
			return none, false, nil
		}
		arity = argCount(parent)
		inType = c.inType(parent)
	case syntax.KindRemote:
		call := parent.Parent
		if leaf.Field != syntax.FieldFun || parent.Field != syntax.FieldExpr || !call.Is(syntax.KindCall) {
			return none, false, nil
		}
		m, ok, err := c.atomOf(parent.Child(syntax.FieldModule).Child(syntax.FieldModule))
		if err != nil || !ok {
			return none, false, err
		}
		module = m
		arity = argCount(call)
		inType = c.inType(call)
	case syntax.KindInternalFun, syntax.KindExternalFun:
		if leaf.Field != syntax.FieldFun {
			return none, false, nil
		}
		a, ok, err := c.intOf(parent.Child(syntax.FieldArity).Child(syntax.FieldValue))
		if err != nil || !ok {
			return none, false, err
		}
		arity = a
		if parent.Kind == syntax.KindExternalFun {
			m, ok, err := c.atomOf(parent.Child(syntax.FieldModule).Child(syntax.FieldName))
			if err != nil || !ok {
				return none, false, err
			}
			module = m
		}
	default:
		return none, false, nil
	}

	na := hir.NameArity{Name: leaf.Text(), Arity: arity}
	if inType {
		t, ok, err := c.typeAlias(module, na)
		if err != nil || !ok {
			return none, false, err
		}
		return reference(t, Direct), true, nil
	}
	f, ok, err := c.function(module, na)
	if err != nil || !ok {
		return none, false, err
	}
	return reference(f, Direct), true, nil
}

func argCount(call *syntax.Node) int {
	if args := call.Child(syntax.FieldArgs); args != nil {
		return len(args.Children)
	}
	return 0
}

// inType reports whether n sits in a type position.
func (c *classifier) inType(n *syntax.Node) bool {
	if n.Ancestor(syntax.KindFieldType) != nil {
		return true
	}
	idx, ok := c.formOf(n)
	if !ok {
		return false
	}
	switch idx.Kind {
	case hir.FormTypeAlias, hir.FormSpec, hir.FormCallback:
		return true
	}
	return false
}

// mfaArgs gives the positions of the module, function and argument list
// arguments of a call that applies a function indirectly.
type mfaArgs struct{ m, f, a int }

var applyLike = map[string]mfaArgs{
	"erlang:apply/3":         {0, 1, 2},
	"erlang:spawn/3":         {0, 1, 2},
	"erlang:spawn/4":         {1, 2, 3},
	"erlang:spawn_link/3":    {0, 1, 2},
	"erlang:spawn_link/4":    {1, 2, 3},
	"erlang:spawn_monitor/3": {0, 1, 2},
	"erlang:spawn_opt/4":     {0, 1, 2},
	"erlang:hibernate/3":     {0, 1, 2},
	"proc_lib:spawn/3":       {0, 1, 2},
	"proc_lib:spawn_link/3":  {0, 1, 2},
	"rpc:call/4":             {1, 2, 3},
	"rpc:cast/4":             {1, 2, 3},
	"erpc:call/4":            {1, 2, 3},
	"timer:apply_after/4":    {1, 2, 3},
}

// applyRef resolves the function atom of apply(M, F, Args) and its kin.
func (c *classifier) applyRef(leaf, args *syntax.Node) (SymbolClass, bool, error) {
	call := args.Parent
	if !leaf.Is(syntax.KindAtom) || args.Field != syntax.FieldArgs || !call.Is(syntax.KindCall) {
		return none, false, nil
	}
	module := "erlang"
	callee := call.Child(syntax.FieldExpr)
	if callee.Is(syntax.KindRemote) {
		m := callee.Child(syntax.FieldModule).Child(syntax.FieldModule)
		if !m.Is(syntax.KindAtom) {
			return none, false, nil
		}
		module = m.Text()
		callee = callee.Child(syntax.FieldFun)
	}
	if !callee.Is(syntax.KindAtom) {
		return none, false, nil
	}
	pos, ok := applyLike[module+":"+callee.Text()+"/"+strconv.Itoa(len(args.Children))]
	if !ok || slices.Index(args.Children, leaf) != pos.f {
		return none, false, nil
	}

	target, ok, err := c.atomOf(args.Children[pos.m])
	if err != nil || !ok {
		return none, false, err
	}
	arity, ok, err := c.listLength(args.Children[pos.a])
	if err != nil || !ok {
		return none, false, err
	}
	f, ok, err := c.remoteFunction(target, hir.NameArity{Name: leaf.Text(), Arity: arity})
	if err != nil || !ok {
		return none, false, err
	}
	return reference(f, Other), true, nil
}

// ---------- Records ----------

func (c *classifier) recordRef(name string, mk func(SymbolDefinition) SymbolClass) (SymbolClass, bool, error) {
	dm, err := c.defMap(c.file)
	if err != nil {
		return none, false, err
	}
	r, ok := dm.Record(name)
	if !ok {
		return none, false, nil
	}
	return mk(RecordDef{r}), true, nil
}

// recordFieldRef handles a field name in a declaration, where parent is
// the RecordField, or in an expression, where parent is RecordFieldName.
func (c *classifier) recordFieldRef(leaf, parent *syntax.Node) (SymbolClass, bool, error) {
	if !leaf.Is(syntax.KindAtom) {
		return none, false, nil
	}
	holder := parent.Parent
	if parent.Is(syntax.KindRecordFieldName) && holder.Is(syntax.KindRecordField) {
		holder = holder.Parent
	}
	if holder == nil {
		return none, false, nil
	}
	nameNode := holder.Child(syntax.FieldName)
	if !holder.Is(syntax.KindRecordDecl) {
		nameNode = nameNode.Child(syntax.FieldName)
	}
	name, ok, err := c.atomOf(nameNode)
	if err != nil || !ok {
		return none, false, err
	}
	dm, err := c.defMap(c.file)
	if err != nil {
		return none, false, err
	}
	r, ok := dm.Record(name)
	if !ok || !slices.Contains(r.Fields, leaf.Text()) {
		return none, false, nil
	}
	d := RecordFieldDef{Record: r, Field: leaf.Text()}
	if holder.Is(syntax.KindRecordDecl) {
		return definition(d), true, nil
	}
	return reference(d, Direct), true, nil
}

// ---------- Macros and includes ----------

func (c *classifier) defineDefinition(leaf, define *syntax.Node) (SymbolClass, bool, error) {
	idx, ok := c.formOf(define)
	if leaf.Field != syntax.FieldName || !ok || idx.Kind != hir.FormDefine {
		return none, false, nil
	}
	return definition(DefineDef{FileID: c.file, Define: &c.fl.Defines[idx.Index]}), true, nil
}

// macroRef resolves ?NAME or ?NAME(Args) the way lowering does: the
// define of matching arity in effect at the form, else the define
// without a parameter list.
func (c *classifier) macroRef(leaf, call *syntax.Node) (SymbolClass, bool, error) {
	env, err := c.snap.MacroEnv(c.ctx, c.file)
	if err != nil {
		return none, false, err
	}
	at := formStart(call)
	name := leaf.Text()
	var entry hir.MacroEntry
	ok := false
	if args := call.Child(syntax.FieldArgs); args != nil {
		entry, ok = env.Resolve(hir.MacroKey{Name: name, Arity: len(args.Children)}, at)
	}
	if !ok {
		entry, ok = env.Resolve(hir.MacroKey{Name: name, Arity: -1}, at)
	}
	if !ok {
		return none, false, nil
	}
	return reference(DefineDef{FileID: entry.File, Define: entry.Define}, Direct), true, nil
}

// macroNameRef resolves the bare name of -undef, -ifdef and -ifndef,
// which covers every arity.
func (c *classifier) macroNameRef(leaf, directive *syntax.Node) (SymbolClass, bool, error) {
	env, err := c.snap.MacroEnv(c.ctx, c.file)
	if err != nil {
		return none, false, err
	}
	entries := env.Named(leaf.Text(), directive.Span.Start.Offset)
	switch len(entries) {
	case 0:
		return none, false, nil
	case 1:
		return reference(DefineDef{FileID: entries[0].File, Define: entries[0].Define}, Direct), true, nil
	}
	macros := make([]DefineDef, len(entries))
	for i, e := range entries {
		macros[i] = DefineDef{FileID: e.File, Define: e.Define}
	}
	return SymbolClass{Refs: ReferenceClass{Kind: RefMultiMacro, Macros: macros}, Type: Direct}, true, nil
}

func (c *classifier) headerRef(directive *syntax.Node) (SymbolClass, bool, error) {
	idx, ok := c.formOf(directive)
	if !ok || idx.Kind != hir.FormInclude {
		return none, false, nil
	}
	file, ok := c.snap.ResolveInclude(c.file, c.fl.Includes[idx.Index])
	if !ok {
		return none, false, nil
	}
	return reference(HeaderDef{FileID: file, Path: c.snap.Path(file)}, Direct), true, nil
}

func formStart(n *syntax.Node) int {
	if top := syntax.TopForm(n); top != nil {
		return top.Span.Start.Offset
	}
	return n.Span.Start.Offset
}

// ---------- Variables ----------

// classifyVar resolves a variable in a function body through scope
// analysis: a binding occurrence is a definition, a use refers to every
// binding that reaches it.
func (c *classifier) classifyVar(leaf *syntax.Node) (SymbolClass, bool, error) {
	idx, ok := c.formOf(leaf)
	if !leaf.Is(syntax.KindVar) || !ok || idx.Kind != hir.FormFunction {
		return none, false, nil
	}
	fb, err := c.snap.FunctionBody(c.ctx, c.file, idx.Index)
	if err != nil {
		return none, false, err
	}
	scopes, err := c.snap.FunctionScopes(c.ctx, c.file, idx.Index)
	if err != nil {
		return none, false, err
	}
	src := &fb.Body.Source

	var bindings []hir.PatID
	if pat, ok := src.PatFor(leaf); ok {
		if scopes.IsBinding(pat) {
			return definition(c.varDef(fb.Body, idx, pat)), true, nil
		}
		bindings = scopes.PatBindings(pat)
	} else if e, ok := src.ExprFor(leaf); ok {
		bindings = scopes.ExprBindings(e)
	}

	bindings = slices.Compact(slices.Sorted(slices.Values(bindings)))
	switch len(bindings) {
	case 0:
		return none, false, nil
	case 1:
		return reference(c.varDef(fb.Body, idx, bindings[0]), Direct), true, nil
	}
	vars := make([]VarDef, len(bindings))
	for i, b := range bindings {
		vars[i] = c.varDef(fb.Body, idx, b)
	}
	return SymbolClass{Refs: ReferenceClass{Kind: RefMultiVar, Vars: vars}, Type: Direct}, true, nil
}

func (c *classifier) varDef(b *hir.Body, idx hir.FormIdx, pat hir.PatID) VarDef {
	node, _ := b.Source.PatSyntax(pat)
	d := VarDef{FileID: c.file, Form: idx, Pat: pat, Node: node}
	if v, ok := b.Pat(pat).(hir.Var); ok {
		d.Var = string(v)
	} else {
		d.Var = node.Text()
	}
	return d
}

// ---------- Constants through macros ----------

// atomOf returns the atom n denotes, expanding a macro call through the
// lowered body of its form.
func (c *classifier) atomOf(n *syntax.Node) (string, bool, error) {
	switch {
	case n.Is(syntax.KindAtom):
		return n.Text(), true, nil
	case n.Is(syntax.KindMacroCallExpr):
		b, _, err := c.body(n)
		if err != nil || b == nil {
			return "", false, err
		}
		if id, ok := b.Source.ExprFor(n); ok {
			s, ok := b.ExprAtom(id)
			return s, ok, nil
		}
		if id, ok := b.Source.TypeExprFor(n); ok {
			s, ok := typeAtom(b, id)
			return s, ok, nil
		}
	}
	return "", false, nil
}

func typeAtom(b *hir.Body, id hir.TypeExprID) (string, bool) {
	for {
		t := b.TypeExpr(id)
		m, ok := t.(*hir.TypeMacroCall)
		if !ok {
			return hir.TypeAsAtom(t)
		}
		id = m.Expansion
	}
}

func (c *classifier) intOf(n *syntax.Node) (int, bool, error) {
	switch {
	case n.Is(syntax.KindInteger):
		i, err := strconv.Atoi(n.Text())
		return i, err == nil, nil
	case n.Is(syntax.KindMacroCallExpr):
		b, _, err := c.body(n)
		if err != nil || b == nil {
			return 0, false, err
		}
		id, ok := b.Source.ExprFor(n)
		if !ok {
			return 0, false, nil
		}
		for {
			m, ok := b.Expr(id).(*hir.ExprMacroCall)
			if !ok {
				break
			}
			id = m.Expansion
		}
		lit, ok := b.Expr(id).(*hir.Literal)
		if !ok || lit.Kind != hir.LitInteger || !lit.Int.IsInt64() {
			return 0, false, nil
		}
		return int(lit.Int.Int64()), true, nil
	}
	return 0, false, nil
}

func (c *classifier) listLength(n *syntax.Node) (int, bool, error) {
	b, _, err := c.body(n)
	if err != nil || b == nil {
		return 0, false, err
	}
	id, ok := b.Source.ExprFor(n)
	if !ok {
		return 0, false, nil
	}
	n2, ok := b.ListLength(id)
	return n2, ok, nil
}
