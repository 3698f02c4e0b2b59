package hir

import "slices"

// Scopes is the result of variable scope analysis over one function body.
// A variable pattern is either a binding occurrence or a use of bindings
// made earlier; a variable expression is always a use. Uses can see more
// than one binding when branches of a case, if, receive or try bind the
// same name.
type Scopes struct {
	bindings map[PatID]bool
	patUses  map[PatID][]PatID
	exprUses map[ExprID][]PatID
}

// IsBinding reports whether the variable pattern id introduces its name.
func (s *Scopes) IsBinding(id PatID) bool {
	return s.bindings[id]
}

// PatBindings returns the bindings a non-binding variable pattern refers
// to, in the order they occur in the body.
func (s *Scopes) PatBindings(id PatID) []PatID {
	return s.patUses[id]
}

// ExprBindings returns the bindings reaching the variable expression id.
func (s *Scopes) ExprBindings(id ExprID) []PatID {
	return s.exprUses[id]
}

// scopeEnv maps each visible variable name to the bindings that may have
// produced its value.
type scopeEnv map[string][]PatID

func (e scopeEnv) clone() scopeEnv {
	out := make(scopeEnv, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// mergeEnvs unions branch environments. Bindings of one name are kept in
// first-seen order without duplicates.
func mergeEnvs(envs []scopeEnv) scopeEnv {
	out := scopeEnv{}
	for _, e := range envs {
		for name, ids := range e {
			for _, id := range ids {
				if !slices.Contains(out[name], id) {
					out[name] = append(out[name], id)
				}
			}
		}
	}
	return out
}

type scopeWalker struct {
	body *Body
	s    *Scopes
}

// ComputeScopes analyses every clause of fb. Clauses are independent.
func ComputeScopes(fb *FunctionBody) *Scopes {
	w := &scopeWalker{
		body: fb.Body,
		s: &Scopes{
			bindings: map[PatID]bool{},
			patUses:  map[PatID][]PatID{},
			exprUses: map[ExprID][]PatID{},
		},
	}
	for _, c := range fb.Clauses {
		env := scopeEnv{}
		w.clause(c, env, false)
	}
	return w.s
}

// clause walks a function, fun or catch-like clause. With shadow set the
// head patterns bind fresh names even when the name is already visible.
func (w *scopeWalker) clause(c Clause, env scopeEnv, shadow bool) scopeEnv {
	var fresh map[string]bool
	if shadow {
		fresh = map[string]bool{}
	}
	for _, p := range c.Pats {
		w.pat(p, env, fresh)
	}
	w.guards(c.Guards, env)
	w.exprs(c.Exprs, env)
	return env
}

func (w *scopeWalker) guards(guards [][]ExprID, env scopeEnv) {
	for _, g := range guards {
		w.exprs(g, env)
	}
}

func (w *scopeWalker) exprs(ids []ExprID, env scopeEnv) {
	for _, id := range ids {
		w.expr(id, env)
	}
}

// crClauses walks each clause in its own copy of env and returns the
// merged environments.
func (w *scopeWalker) crClauses(clauses []CRClause, env scopeEnv) []scopeEnv {
	out := make([]scopeEnv, 0, len(clauses))
	for _, c := range clauses {
		branch := env.clone()
		w.pat(c.Pat, branch, nil)
		w.guards(c.Guards, branch)
		w.exprs(c.Exprs, branch)
		out = append(out, branch)
	}
	return out
}

// replace swaps the contents of env for next, so callers holding env see
// the merged result.
func replace(env, next scopeEnv) {
	for k := range env {
		delete(env, k)
	}
	for k, v := range next {
		env[k] = v
	}
}

// pat walks a pattern. fresh is non-nil when the pattern shadows: it holds
// the names already bound by the same head.
func (w *scopeWalker) pat(id PatID, env scopeEnv, fresh map[string]bool) {
	switch p := w.body.Pat(id).(type) {
	case Var:
		name := string(p)
		if name == "_" {
			return
		}
		if fresh != nil {
			if fresh[name] {
				w.s.patUses[id] = env[name]
				return
			}
			fresh[name] = true
		} else if bound, ok := env[name]; ok {
			w.s.patUses[id] = bound
			return
		}
		w.s.bindings[id] = true
		env[name] = []PatID{id}
	case *PatMatch:
		w.pat(p.Lhs, env, fresh)
		w.pat(p.Rhs, env, fresh)
	case *PatTuple:
		for _, c := range p.Pats {
			w.pat(c, env, fresh)
		}
	case *PatList:
		for _, c := range p.Pats {
			w.pat(c, env, fresh)
		}
		if p.Tail != nil {
			w.pat(*p.Tail, env, fresh)
		}
	case *PatBinary:
		for _, seg := range p.Segs {
			w.pat(seg.Elem, env, fresh)
			if seg.Size != nil {
				w.expr(*seg.Size, env)
			}
		}
	case *PatUnaryOp:
		w.pat(p.Pat, env, fresh)
	case *PatBinaryOp:
		w.pat(p.Lhs, env, fresh)
		w.pat(p.Rhs, env, fresh)
	case *PatRecord:
		for _, f := range p.Fields {
			w.pat(f.Value, env, fresh)
		}
	case *PatMap:
		for _, f := range p.Fields {
			w.expr(f.Key, env)
			w.pat(f.Value, env, fresh)
		}
	case *PatMacroCall:
		w.pat(p.Expansion, env, fresh)
		w.macroArgs(p.Args, env)
	}
}

// macroArgs records the variables of macro arguments as uses without
// letting them bind anything.
func (w *scopeWalker) macroArgs(args []ExprID, env scopeEnv) {
	scratch := env.clone()
	w.exprs(args, scratch)
}

func (w *scopeWalker) expr(id ExprID, env scopeEnv) {
	switch e := w.body.Expr(id).(type) {
	case Var:
		if bound, ok := env[string(e)]; ok {
			w.s.exprUses[id] = bound
		}
	case *ExprMatch:
		w.expr(e.Rhs, env)
		w.pat(e.Lhs, env, nil)
	case *ExprTuple:
		w.exprs(e.Exprs, env)
	case *ExprList:
		w.exprs(e.Exprs, env)
		if e.Tail != nil {
			w.expr(*e.Tail, env)
		}
	case *ExprBinary:
		for _, seg := range e.Segs {
			w.expr(seg.Elem, env)
			if seg.Size != nil {
				w.expr(*seg.Size, env)
			}
		}
	case *ExprUnaryOp:
		w.expr(e.Expr, env)
	case *ExprBinaryOp:
		w.expr(e.Lhs, env)
		w.expr(e.Rhs, env)
	case *ExprRecord:
		for _, f := range e.Fields {
			w.expr(f.Value, env)
		}
	case *ExprRecordUpdate:
		w.expr(e.Expr, env)
		for _, f := range e.Fields {
			w.expr(f.Value, env)
		}
	case *ExprRecordField:
		w.expr(e.Expr, env)
	case *ExprMap:
		for _, f := range e.Fields {
			w.expr(f.Key, env)
			w.expr(f.Value, env)
		}
	case *ExprMapUpdate:
		w.expr(e.Expr, env)
		for _, f := range e.Fields {
			w.expr(f.Key, env)
			w.expr(f.Value, env)
		}
	case *ExprCatch:
		w.expr(e.Expr, env)
	case *ExprMacroCall:
		w.expr(e.Expansion, env)
		w.macroArgs(e.Args, env)
	case *ExprCall:
		w.target(e.Target, env)
		w.exprs(e.Args, env)
	case *ExprCaptureFun:
		w.target(e.Target, env)
		w.expr(e.Arity, env)
	case *ExprComprehension:
		local := env.clone()
		for _, q := range e.Exprs {
			switch q.Kind {
			case Filter:
				w.expr(q.Expr, local)
			case MapGenerator:
				w.expr(q.Expr, local)
				fresh := map[string]bool{}
				w.pat(q.Pat, local, fresh)
				w.pat(q.Value, local, fresh)
			default:
				w.expr(q.Expr, local)
				w.pat(q.Pat, local, map[string]bool{})
			}
		}
		w.expr(e.Builder.Expr, local)
		if e.Builder.Kind == ComprehensionMap {
			w.expr(e.Builder.Value, local)
		}
	case *ExprBlock:
		w.exprs(e.Exprs, env)
	case *ExprIf:
		branches := make([]scopeEnv, 0, len(e.Clauses))
		for _, c := range e.Clauses {
			branch := env.clone()
			w.guards(c.Guards, branch)
			w.exprs(c.Exprs, branch)
			branches = append(branches, branch)
		}
		if len(branches) > 0 {
			replace(env, mergeEnvs(branches))
		}
	case *ExprCase:
		w.expr(e.Expr, env)
		if branches := w.crClauses(e.Clauses, env); len(branches) > 0 {
			replace(env, mergeEnvs(branches))
		}
	case *ExprReceive:
		branches := w.crClauses(e.Clauses, env)
		if e.After != nil {
			w.expr(e.After.Timeout, env)
			after := env.clone()
			w.exprs(e.After.Exprs, after)
			branches = append(branches, after)
		}
		if len(branches) > 0 {
			replace(env, mergeEnvs(branches))
		}
	case *ExprTry:
		w.try(e, env)
	case *ExprClosure:
		for _, c := range e.Clauses {
			local := env.clone()
			if e.Name != nil {
				w.pat(*e.Name, local, map[string]bool{})
			}
			w.clause(c, local, true)
		}
	case *ExprMaybe:
		local := env.clone()
		for _, m := range e.Exprs {
			w.expr(m.Expr, local)
			if m.Pat != nil {
				w.pat(*m.Pat, local, nil)
			}
		}
		w.crClauses(e.Else, env)
	}
}

func (w *scopeWalker) target(t CallTarget[ExprID], env scopeEnv) {
	if t.Remote {
		w.expr(t.Module, env)
	}
	w.expr(t.Name, env)
}

// try walks the protected body sequentially. Of clauses continue from it;
// catch clauses and the after block only see what was bound before try.
func (w *scopeWalker) try(e *ExprTry, env scopeEnv) {
	body := env.clone()
	w.exprs(e.Exprs, body)
	var branches []scopeEnv
	if len(e.Of) > 0 {
		branches = w.crClauses(e.Of, body)
	} else {
		branches = []scopeEnv{body}
	}
	for _, c := range e.Catch {
		branch := env.clone()
		if c.Class != nil {
			w.pat(*c.Class, branch, nil)
		}
		w.pat(c.Reason, branch, nil)
		if c.Stack != nil {
			w.pat(*c.Stack, branch, nil)
		}
		w.guards(c.Guards, branch)
		w.exprs(c.Exprs, branch)
		branches = append(branches, branch)
	}
	merged := mergeEnvs(branches)
	w.exprs(e.After, env.clone())
	replace(env, merged)
}
