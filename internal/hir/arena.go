// Package hir lowers Erlang syntax into arena-indexed semantic bodies.
//
// Each top-level form is lowered into its own Body. A Body owns four
// append-only arenas (expressions, patterns, constant terms and type
// expressions); nodes refer to each other with small integer handles that
// are only meaningful relative to the Body that minted them.
//
// Lowering never fails. Absent or malformed syntax lowers to Missing and
// the rest of the form carries on. Macro calls are expanded during
// lowering and recorded as MacroCall nodes that keep both the expansion and
// the independently lowered arguments.
package hir

// Arena is an append-only store addressed by dense, zero-based handles.
type Arena[ID ~uint32, T any] struct {
	items []T
}

// Alloc appends v and returns its handle.
func (a *Arena[ID, T]) Alloc(v T) ID {
	a.items = append(a.items, v)
	return ID(len(a.items) - 1)
}

// Get returns the node for id. It panics on a handle from another arena.
func (a *Arena[ID, T]) Get(id ID) T {
	return a.items[id]
}

// Len returns the number of allocated nodes.
func (a *Arena[ID, T]) Len() int {
	return len(a.items)
}

// All calls fn for every node in allocation order.
func (a *Arena[ID, T]) All(fn func(ID, T) bool) {
	for i, v := range a.items {
		if !fn(ID(i), v) {
			return
		}
	}
}

// Handles into the four arenas of a Body.
type (
	ExprID     uint32
	PatID      uint32
	TermID     uint32
	TypeExprID uint32
)

// AnyExprID identifies a node in any of the four arenas.
type AnyExprID struct {
	Kind AnyKind
	ID   uint32
}

// AnyKind selects the arena an AnyExprID points into.
type AnyKind int

const (
	AnyExpr AnyKind = iota
	AnyPat
	AnyTerm
	AnyTypeExpr
)

func ExprRef(id ExprID) AnyExprID         { return AnyExprID{Kind: AnyExpr, ID: uint32(id)} }
func PatRef(id PatID) AnyExprID           { return AnyExprID{Kind: AnyPat, ID: uint32(id)} }
func TermRef(id TermID) AnyExprID         { return AnyExprID{Kind: AnyTerm, ID: uint32(id)} }
func TypeExprRef(id TypeExprID) AnyExprID { return AnyExprID{Kind: AnyTypeExpr, ID: uint32(id)} }
