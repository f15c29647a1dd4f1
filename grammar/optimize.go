package grammar

// isAlias reports whether s is just another name for the single symbol
// of its only rule.
func (g *Grammar) isAlias(s *Symbol) bool {
	if s.IsTerminal() || s.GenGrammar != nil || s.Props.IsSpecial() || s.Props.Parametric ||
		s.Props.Temperature != 0 || len(s.Rules) != 1 {
		return false
	}
	r := &s.Rules[0]
	return len(r.Rhs) == 1 && r.Condition.IsTrue() && r.RhsParams[0].IsNull()
}

// Optimize returns a copy of g with alias symbols collapsed into their
// targets and unreachable symbols dropped. Symbol names are kept.
func Optimize(g *Grammar) *Grammar {
	target := make([]SymIdx, len(g.symbols))
	for i := range g.symbols {
		target[i] = SymIdx(i)
		if g.isAlias(&g.symbols[i]) {
			target[i] = g.symbols[i].Rules[0].Rhs[0]
		}
	}
	var resolve func(s SymIdx, depth int) SymIdx
	resolve = func(s SymIdx, depth int) SymIdx {
		t := target[s]
		if t == s {
			return s
		}
		if depth > len(target) {
			// a cycle of aliases; keep it as is
			target[s] = s
			return s
		}
		t = resolve(t, depth+1)
		target[s] = t
		return t
	}
	for i := range target {
		resolve(SymIdx(i), 0)
	}

	reachable := make([]bool, len(g.symbols))
	stack := []SymIdx{target[g.start]}
	reachable[target[g.start]] = true
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, r := range g.symbols[s].Rules {
			for _, x := range r.Rhs {
				if x = target[x]; !reachable[x] {
					reachable[x] = true
					stack = append(stack, x)
				}
			}
		}
	}

	out := NewGrammar(g.Name)
	remap := make([]SymIdx, len(g.symbols))
	for i := range g.symbols {
		if !reachable[i] {
			continue
		}
		s := &g.symbols[i]
		props := s.Props
		props.IsStart = false
		idx := out.FreshSymbol(s.Name, props)
		out.symbols[idx].Lexeme = s.Lexeme
		out.symbols[idx].GenGrammar = s.GenGrammar
		remap[i] = idx
	}
	for i := range g.symbols {
		if !reachable[i] {
			continue
		}
		lhs := remap[i]
		for _, r := range g.symbols[i].Rules {
			rhs := make([]SymIdx, len(r.Rhs))
			for j, x := range r.Rhs {
				rhs[j] = remap[target[x]]
			}
			out.symbols[lhs].Rules = append(out.symbols[lhs].Rules, Rule{
				Lhs:       lhs,
				Rhs:       rhs,
				RhsParams: append([]ParamExpr(nil), r.RhsParams...),
				Condition: r.Condition,
			})
		}
	}
	out.SetStart(remap[target[g.start]])
	return out
}
