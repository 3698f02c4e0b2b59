// Package completion classifies the syntactic context of a cursor, so a
// completion provider can decide what kind of candidates to offer.
package completion

import (
	"github.com/leapstack-labs/leaperl/pkg/syntax"
	"github.com/leapstack-labs/leaperl/pkg/token"
)

// Ctx is the kind of position a cursor is in.
type Ctx int

const (
	Other Ctx = iota
	Expr
	Type
	Export
	ExportType
)

var ctxNames = [...]string{
	Other:      "other",
	Expr:       "expr",
	Type:       "type",
	Export:     "export",
	ExportType: "export_type",
}

func (c Ctx) String() string {
	if int(c) < len(ctxNames) {
		return ctxNames[c]
	}
	return "other"
}

// New classifies offset in file. It works on error-recovered trees and
// never fails. The checks run in a fixed order and the first that
// matches wins.
func New(file *syntax.SourceFile, offset int) Ctx {
	a := &at{file: file, offset: offset, ancestors: file.AncestorsAtOffset(offset)}
	switch {
	case a.isAtomColon() && a.isExpr():
		return Expr
	case a.find(syntax.KindExportAttribute) != nil:
		return Export
	case a.find(syntax.KindExportTypeAttribute) != nil:
		return ExportType
	case a.isAttribute():
		return Other
	case a.isTypeLevelParam() || a.isPattern():
		return Other
	case a.isType():
		return Type
	case a.isExpr():
		return Expr
	case a.find(syntax.KindPpDefine) != nil:
		return Expr
	}
	return Other
}

type at struct {
	file      *syntax.SourceFile
	offset    int
	ancestors []*syntax.Node // innermost first
}

func (a *at) find(k syntax.NodeKind) *syntax.Node {
	for _, n := range a.ancestors {
		if n.Kind == k {
			return n
		}
	}
	return nil
}

// isAtomColon reports a cursor right after 'module:'.
func (a *at) isAtomColon() bool {
	return len(a.ancestors) > 0 && a.ancestors[0].Is(syntax.KindRemoteModule)
}

// isAttribute is reserved for attributes other than the export lists;
// none currently get their own context.
func (a *at) isAttribute() bool {
	return false
}

// isTypeLevelParam reports a cursor in the head of a -type or -opaque,
// where the parameters are being named.
func (a *at) isTypeLevelParam() bool {
	alias := a.find(syntax.KindTypeAlias)
	if alias == nil {
		alias = a.find(syntax.KindOpaque)
	}
	head := alias.Child(syntax.FieldName)
	return head != nil && a.offset <= head.Span.End.Offset
}

// isPattern reports a cursor inside a pattern: a clause head, the
// pattern of a case, receive, try or catch clause, or the left side of
// a match. A match directly after 'case' inside an error node is the
// case subject being typed, not a pattern.
func (a *at) isPattern() bool {
	inError := a.find(syntax.KindError) != nil
	for _, n := range a.ancestors {
		parent := n.Parent
		if parent == nil {
			continue
		}
		var pat *syntax.Node
		switch parent.Kind {
		case syntax.KindCatchClause, syntax.KindCrClause:
			pat = parent.Child(syntax.FieldPat)
		case syntax.KindFunClause, syntax.KindFunctionClause:
			pat = parent.Child(syntax.FieldArgs)
		case syntax.KindMatchExpr:
			if inError {
				if prev := a.file.PrevSiblingToken(parent); prev >= 0 && a.file.Tokens[prev].Type == token.CASE {
					continue
				}
			}
			pat = parent.Child(syntax.FieldLhs)
		}
		if pat != nil && pat == n {
			return true
		}
	}
	return false
}

func (a *at) isType() bool {
	for _, n := range a.ancestors {
		switch n.Kind {
		case syntax.KindSpec, syntax.KindTypeAlias, syntax.KindOpaque, syntax.KindFieldType:
			return true
		case syntax.KindTypeName:
			return false
		}
	}
	return false
}

// isExpr reports whether a clause arrow precedes the cursor token, which
// must lie in the enclosing form. Anything under a type signature is
// never an expression.
func (a *at) isExpr() bool {
	var top *syntax.Node
	for _, n := range a.ancestors {
		if n.Kind == syntax.KindTypeSig {
			return false
		}
		if n.Kind == syntax.KindSourceFile {
			break
		}
		top = n
	}
	formStart := 0
	if top != nil && !top.Empty() {
		formStart = a.file.Tokens[top.FirstTok].Pos.Offset
	}

	idx, inTrivia, ok := a.file.LeftBiasedToken(a.offset)
	if !ok {
		return false
	}
	// In whitespace the cursor token is the gap after idx, so the scan
	// starts at idx itself.
	tokStart := a.file.Tokens[idx].Pos.Offset
	if inTrivia {
		tokStart = a.file.Tokens[idx].End.Offset
	} else {
		idx--
	}
	if tokStart < formStart {
		return false
	}
	for ; idx >= 0; idx-- {
		if a.file.Tokens[idx].Type == token.ARROW {
			return true
		}
	}
	return false
}
