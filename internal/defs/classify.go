package defs

import (
	"context"

	"github.com/leapstack-labs/leaperl/internal/db"
	"github.com/leapstack-labs/leaperl/internal/hir"
	"github.com/leapstack-labs/leaperl/pkg/syntax"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

// Classify finds the token at offset in file and decides what it names.
// ok is false when the token names nothing that can be resolved; that is
// absence of information, not an error. Errors are only returned for
// cancellation and unknown files.
func Classify(ctx context.Context, snap *db.Snapshot, file hir.FileID, offset int) (SymbolClass, bool, error) {
	sf, err := snap.Parse(ctx, file)
	if err != nil {
		return SymbolClass{}, false, err
	}
	fl, err := snap.FormList(ctx, file)
	if err != nil {
		return SymbolClass{}, false, err
	}
	leaf := pickLeaf(sf, offset)
	if leaf == nil || leaf.Parent == nil {
		return SymbolClass{}, false, nil
	}
	c := &classifier{ctx: ctx, snap: snap, file: file, fl: fl}
	return c.classify(leaf, leaf.Parent)
}

// pickLeaf returns the leaf node of the best token touching offset.
// Names beat literals, and literals beat punctuation.
func pickLeaf(sf *syntax.SourceFile, offset int) *syntax.Node {
	best, bestRank := -1, 0
	for _, idx := range sf.TokensTouching(offset) {
		if r := tokenRank(sf.Tokens[idx].Type); r >= bestRank && r > 0 {
			best, bestRank = idx, r
		}
	}
	if best < 0 {
		return nil
	}
	owner := sf.TokenOwner(best)
	if !owner.Kind.IsLeaf() {
		return nil
	}
	return owner
}

func tokenRank(t token.TokenType) int {
	switch t {
	case token.ATOM, token.VAR:
		return 3
	case token.STRING, token.INTEGER, token.CHAR, token.FLOAT:
		return 2
	}
	return 0
}

type classifier struct {
	ctx  context.Context
	snap *db.Snapshot
	file hir.FileID
	fl   *hir.FormList
}

var none = SymbolClass{}

func (c *classifier) classify(leaf, parent *syntax.Node) (SymbolClass, bool, error) {
	switch parent.Kind {
	case syntax.KindModuleAttribute:
		if leaf.Field != syntax.FieldName || c.fl.ModuleAttr == nil {
			return none, false, nil
		}
		return definition(ModuleDef{FileID: c.file, Module: c.fl.ModuleAttr.Name, Node: c.fl.ModuleAttr.Node}), true, nil

	case syntax.KindBehaviourAttribute:
		return c.moduleRef(leaf, Direct)

	case syntax.KindImportAttribute:
		return c.moduleRef(leaf, Other)

	case syntax.KindFa:
		if leaf.Field != syntax.FieldFun {
			return none, false, nil
		}
		return c.fa(leaf, parent)

	case syntax.KindTypeName:
		return c.typeDefinition(leaf, parent.Parent)

	case syntax.KindRecordDecl:
		if leaf.Field != syntax.FieldName {
			return none, false, nil
		}
		return c.recordRef(leaf.Text(), definitionOf)

	case syntax.KindCallback:
		return c.callbackDefinition(leaf, parent)

	case syntax.KindFunctionClause:
		return c.functionDefinition(leaf, parent)

	case syntax.KindMacroLhs:
		return c.defineDefinition(leaf, parent.Parent)

	case syntax.KindSpec:
		return c.specRef(leaf, parent)

	case syntax.KindModule:
		if leaf.Is(syntax.KindAtom) {
			return c.moduleRef(leaf, Direct)
		}
		return c.classifyVar(leaf)

	case syntax.KindAttrName, syntax.KindBitTypeList, syntax.KindBitTypeUnit:
		return none, false, nil

	case syntax.KindRecordName:
		return c.recordRef(leaf.Text(), referenceOf)

	case syntax.KindRecordFieldName:
		return c.recordFieldRef(leaf, parent)

	case syntax.KindRecordField:
		if leaf.Field != syntax.FieldName {
			return c.fromWrapper(leaf)
		}
		return c.recordFieldRef(leaf, parent)

	case syntax.KindInternalFun, syntax.KindExternalFun, syntax.KindRemote, syntax.KindCall:
		if cls, ok, err := c.callRef(leaf, parent); ok || err != nil {
			return cls, ok, err
		}
		return c.classifyVar(leaf)

	case syntax.KindTryClass:
		return c.classifyVar(leaf)

	case syntax.KindMacroCallExpr:
		if leaf.Field != syntax.FieldName {
			return none, false, nil
		}
		return c.macroRef(leaf, parent)

	case syntax.KindPpUndef, syntax.KindPpIfdef, syntax.KindPpIfndef:
		return c.macroNameRef(leaf, parent)

	case syntax.KindPpInclude, syntax.KindPpIncludeLib:
		return c.headerRef(parent)

	case syntax.KindExprArgs:
		if cls, ok, err := c.applyRef(leaf, parent); ok || err != nil {
			return cls, ok, err
		}
		return c.fromWrapper(leaf)
	}
	return c.fromWrapper(leaf)
}

// fromWrapper handles tokens whose parent says nothing about them: an
// atom may name a module, a variable is resolved through scopes.
func (c *classifier) fromWrapper(leaf *syntax.Node) (SymbolClass, bool, error) {
	switch leaf.Kind {
	case syntax.KindAtom:
		return c.moduleRef(leaf, Direct)
	case syntax.KindVar:
		return c.classifyVar(leaf)
	}
	return none, false, nil
}

// formOf returns the index of the top-level form containing n.
func (c *classifier) formOf(n *syntax.Node) (hir.FormIdx, bool) {
	top := syntax.TopForm(n)
	if top == nil {
		return hir.FormIdx{}, false
	}
	for _, idx := range c.fl.Forms() {
		if c.fl.Node(idx) == top {
			return idx, true
		}
	}
	return hir.FormIdx{}, false
}

// body returns the lowered body of the form containing n, or nil.
func (c *classifier) body(n *syntax.Node) (*hir.Body, hir.FormIdx, error) {
	idx, ok := c.formOf(n)
	if !ok {
		return nil, idx, nil
	}
	b, err := c.snap.FormBody(c.ctx, c.file, idx)
	return b, idx, err
}

func (c *classifier) defMap(file hir.FileID) (*hir.DefMap, error) {
	return c.snap.DefMap(c.ctx, file)
}
