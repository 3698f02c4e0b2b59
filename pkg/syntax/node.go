package syntax

import (
	"fmt"

	"github.com/leapstack-labs/leaperl/pkg/token"
)

// NodeKind identifies the syntactic construct a Node represents.
type NodeKind int

// Node kinds.
const (
	KindError NodeKind = iota
	KindSourceFile

	// Leaves wrapping a single token.
	KindAtom
	KindVar
	KindInteger
	KindFloat
	KindChar
	KindString

	// Forms.
	KindModuleAttribute
	KindBehaviourAttribute
	KindExportAttribute
	KindExportTypeAttribute
	KindImportAttribute
	KindOptionalCallbacksAttribute
	KindCompileOptionsAttribute
	KindDeprecatedAttribute
	KindWildAttribute
	KindTypeAlias
	KindOpaque
	KindSpec
	KindCallback
	KindRecordDecl
	KindFunDecl
	KindPpDefine
	KindPpInclude
	KindPpIncludeLib
	KindPpUndef
	KindPpIfdef
	KindPpIfndef
	KindPpElse
	KindPpEndif
	KindPpIf
	KindPpElif

	// Form parts.
	KindFa
	KindArity
	KindTypeName
	KindVarArgs
	KindTypeSig
	KindTypeGuards
	KindRecordField
	KindFieldType
	KindMacroLhs
	KindAttrName
	KindModule
	KindFunctionClause
	KindExprArgs
	KindGuard
	KindGuardClause
	KindClauseBody

	// Expressions, patterns and types.
	KindMatchExpr
	KindCondMatchExpr
	KindBinaryOpExpr
	KindUnaryOpExpr
	KindCatchExpr
	KindParenExpr
	KindTuple
	KindList
	KindBinary
	KindBinElement
	KindBitTypeList
	KindBitTypeUnit
	KindMapExpr
	KindMapExprUpdate
	KindMapField
	KindRecordExpr
	KindRecordUpdateExpr
	KindRecordIndexExpr
	KindRecordFieldExpr
	KindRecordName
	KindRecordFieldName
	KindCall
	KindRemote
	KindRemoteModule
	KindInternalFun
	KindExternalFun
	KindAnonymousFun
	KindFunClause
	KindListComprehension
	KindBinaryComprehension
	KindMapComprehension
	KindLcExprs
	KindListGenerator
	KindBinaryGenerator
	KindMapGenerator
	KindBlockExpr
	KindIfExpr
	KindIfClause
	KindCaseExpr
	KindCrClause
	KindReceiveExpr
	KindReceiveAfter
	KindTryExpr
	KindTryAfter
	KindCatchClause
	KindTryClass
	KindTryStack
	KindMaybeExpr
	KindMacroCallExpr
	KindMacroCallArgs
	KindMacroString
	KindStringConcat
	KindPipe
	KindRangeType
	KindAnnType
	KindDotdotdot
	KindFunType
	KindFunTypeSig
)

var kindNames = map[NodeKind]string{
	KindError:      "ERROR",
	KindSourceFile: "SOURCE_FILE",

	KindAtom:    "ATOM",
	KindVar:     "VAR",
	KindInteger: "INTEGER",
	KindFloat:   "FLOAT",
	KindChar:    "CHAR",
	KindString:  "STRING",

	KindModuleAttribute:            "MODULE_ATTRIBUTE",
	KindBehaviourAttribute:         "BEHAVIOUR_ATTRIBUTE",
	KindExportAttribute:            "EXPORT_ATTRIBUTE",
	KindExportTypeAttribute:        "EXPORT_TYPE_ATTRIBUTE",
	KindImportAttribute:            "IMPORT_ATTRIBUTE",
	KindOptionalCallbacksAttribute: "OPTIONAL_CALLBACKS_ATTRIBUTE",
	KindCompileOptionsAttribute:    "COMPILE_OPTIONS_ATTRIBUTE",
	KindDeprecatedAttribute:        "DEPRECATED_ATTRIBUTE",
	KindWildAttribute:              "WILD_ATTRIBUTE",
	KindTypeAlias:                  "TYPE_ALIAS",
	KindOpaque:                     "OPAQUE",
	KindSpec:                       "SPEC",
	KindCallback:                   "CALLBACK",
	KindRecordDecl:                 "RECORD_DECL",
	KindFunDecl:                    "FUN_DECL",
	KindPpDefine:                   "PP_DEFINE",
	KindPpInclude:                  "PP_INCLUDE",
	KindPpIncludeLib:               "PP_INCLUDE_LIB",
	KindPpUndef:                    "PP_UNDEF",
	KindPpIfdef:                    "PP_IFDEF",
	KindPpIfndef:                   "PP_IFNDEF",
	KindPpElse:                     "PP_ELSE",
	KindPpEndif:                    "PP_ENDIF",
	KindPpIf:                       "PP_IF",
	KindPpElif:                     "PP_ELIF",

	KindFa:             "FA",
	KindArity:          "ARITY",
	KindTypeName:       "TYPE_NAME",
	KindVarArgs:        "VAR_ARGS",
	KindTypeSig:        "TYPE_SIG",
	KindTypeGuards:     "TYPE_GUARDS",
	KindRecordField:    "RECORD_FIELD",
	KindFieldType:      "FIELD_TYPE",
	KindMacroLhs:       "MACRO_LHS",
	KindAttrName:       "ATTR_NAME",
	KindModule:         "MODULE",
	KindFunctionClause: "FUNCTION_CLAUSE",
	KindExprArgs:       "EXPR_ARGS",
	KindGuard:          "GUARD",
	KindGuardClause:    "GUARD_CLAUSE",
	KindClauseBody:     "CLAUSE_BODY",

	KindMatchExpr:           "MATCH_EXPR",
	KindCondMatchExpr:       "COND_MATCH_EXPR",
	KindBinaryOpExpr:        "BINARY_OP_EXPR",
	KindUnaryOpExpr:         "UNARY_OP_EXPR",
	KindCatchExpr:           "CATCH_EXPR",
	KindParenExpr:           "PAREN_EXPR",
	KindTuple:               "TUPLE",
	KindList:                "LIST",
	KindBinary:              "BINARY",
	KindBinElement:          "BIN_ELEMENT",
	KindBitTypeList:         "BIT_TYPE_LIST",
	KindBitTypeUnit:         "BIT_TYPE_UNIT",
	KindMapExpr:             "MAP_EXPR",
	KindMapExprUpdate:       "MAP_EXPR_UPDATE",
	KindMapField:            "MAP_FIELD",
	KindRecordExpr:          "RECORD_EXPR",
	KindRecordUpdateExpr:    "RECORD_UPDATE_EXPR",
	KindRecordIndexExpr:     "RECORD_INDEX_EXPR",
	KindRecordFieldExpr:     "RECORD_FIELD_EXPR",
	KindRecordName:          "RECORD_NAME",
	KindRecordFieldName:     "RECORD_FIELD_NAME",
	KindCall:                "CALL",
	KindRemote:              "REMOTE",
	KindRemoteModule:        "REMOTE_MODULE",
	KindInternalFun:         "INTERNAL_FUN",
	KindExternalFun:         "EXTERNAL_FUN",
	KindAnonymousFun:        "ANONYMOUS_FUN",
	KindFunClause:           "FUN_CLAUSE",
	KindListComprehension:   "LIST_COMPREHENSION",
	KindBinaryComprehension: "BINARY_COMPREHENSION",
	KindMapComprehension:    "MAP_COMPREHENSION",
	KindLcExprs:             "LC_EXPRS",
	KindListGenerator:       "LIST_GENERATOR",
	KindBinaryGenerator:     "BINARY_GENERATOR",
	KindMapGenerator:        "MAP_GENERATOR",
	KindBlockExpr:           "BLOCK_EXPR",
	KindIfExpr:              "IF_EXPR",
	KindIfClause:            "IF_CLAUSE",
	KindCaseExpr:            "CASE_EXPR",
	KindCrClause:            "CR_CLAUSE",
	KindReceiveExpr:         "RECEIVE_EXPR",
	KindReceiveAfter:        "RECEIVE_AFTER",
	KindTryExpr:             "TRY_EXPR",
	KindTryAfter:            "TRY_AFTER",
	KindCatchClause:         "CATCH_CLAUSE",
	KindTryClass:            "TRY_CLASS",
	KindTryStack:            "TRY_STACK",
	KindMaybeExpr:           "MAYBE_EXPR",
	KindMacroCallExpr:       "MACRO_CALL_EXPR",
	KindMacroCallArgs:       "MACRO_CALL_ARGS",
	KindMacroString:         "MACRO_STRING",
	KindStringConcat:        "STRING_CONCAT",
	KindPipe:                "PIPE",
	KindRangeType:           "RANGE_TYPE",
	KindAnnType:             "ANN_TYPE",
	KindDotdotdot:           "DOTDOTDOT",
	KindFunType:             "FUN_TYPE",
	KindFunTypeSig:          "FUN_TYPE_SIG",
}

func (k NodeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("NodeKind(%d)", int(k))
}

// IsLeaf reports whether nodes of this kind wrap exactly one token.
func (k NodeKind) IsLeaf() bool {
	return k >= KindAtom && k <= KindString
}

// IsForm reports whether the kind is a top-level form.
func (k NodeKind) IsForm() bool {
	return k >= KindModuleAttribute && k <= KindPpElif
}

// Field labels the role a child plays in its parent.
type Field int

// Child roles.
const (
	FieldNone Field = iota
	FieldName
	FieldArgs
	FieldGuard
	FieldBody
	FieldPat
	FieldLhs
	FieldRhs
	FieldExpr
	FieldValue
	FieldTy
	FieldModule
	FieldFun
	FieldArity
	FieldTail
	FieldSize
	FieldTypes
	FieldClass
	FieldStack
	FieldTimeout
	FieldAfter
	FieldElse
	FieldSig
	FieldResult
	FieldReplacement
	FieldFile
	FieldField
	FieldKey
	FieldCond
	FieldClause
	FieldOf
	FieldCatch
	FieldLcExprs
)

// Node is one node of the concrete syntax tree.
//
// Leaves (atoms, vars, numbers, chars, strings) carry their token in Tok.
// Structural nodes carry labelled children and, for operators, the
// operator token type in Op. FirstTok and EndTok delimit the node's tokens
// in the owning file's token slice (EndTok is exclusive).
type Node struct {
	Kind     NodeKind
	Field    Field
	Span     token.Span
	Parent   *Node
	Children []*Node
	Tok      token.Token
	Op       token.TokenType
	FirstTok int
	EndTok   int
}

// Text returns the decoded token text of a leaf.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return n.Tok.Text()
}

// Child returns the first child with the given field, or nil.
func (n *Node) Child(f Field) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == f {
			return c
		}
	}
	return nil
}

// ChildrenOf returns every child with the given field.
func (n *Node) ChildrenOf(f Field) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Field == f {
			out = append(out, c)
		}
	}
	return out
}

// Is reports whether n is non-nil and of kind k.
func (n *Node) Is(k NodeKind) bool {
	return n != nil && n.Kind == k
}

// Ancestors returns n and its parents up to the root, innermost first.
func (n *Node) Ancestors() []*Node {
	var out []*Node
	for cur := n; cur != nil; cur = cur.Parent {
		out = append(out, cur)
	}
	return out
}

// Ancestor returns the innermost ancestor (n included) of kind k.
func (n *Node) Ancestor(k NodeKind) *Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Kind == k {
			return cur
		}
	}
	return nil
}

// Walk visits n and its descendants in pre-order until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Empty reports whether the node covers no tokens.
func (n *Node) Empty() bool {
	return n.EndTok <= n.FirstTok
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	if n.Kind.IsLeaf() {
		return fmt.Sprintf("%s(%q)", n.Kind, n.Tok.Literal)
	}
	return fmt.Sprintf("%s@%d..%d", n.Kind, n.Span.Start.Offset, n.Span.End.Offset)
}
