package syntax

// IsNonEmpty reports whether e matches at least one string. The search
// explores derivatives with an explicit worklist and gives up with
// ErrFuelExhausted after roughly maxFuel units of work; the caller decides
// how to treat that (usually as "possibly non-empty"). Definite answers are
// cached for the lifetime of the ExprSet.
func (s *ExprSet) IsNonEmpty(e ExprRef, maxFuel uint64) (bool, error) {
	if e == NoMatch {
		return false, nil
	}
	if s.Positive(e) {
		return true, nil
	}
	if r, ok := s.relevance[e]; ok {
		return r, nil
	}

	startCost := s.cost
	visited := map[ExprRef]bool{e: true}
	stack := []ExprRef{e}
	var steps uint64
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, br := range s.SymbolicDerivative(x) {
			t := br.Target
			if visited[t] {
				continue
			}
			if s.Positive(t) || s.relevance[t] {
				s.relevance[e] = true
				return true, nil
			}
			if r, ok := s.relevance[t]; ok && !r {
				continue
			}
			visited[t] = true
			stack = append(stack, t)
		}

		steps++
		if used := steps + s.cost - startCost; maxFuel > 0 && used > maxFuel {
			return false, fuelError(used, maxFuel)
		}
	}

	// the visited set is closed under derivatives and contains nothing
	// nullable, so every member is empty
	for x := range visited {
		s.relevance[x] = false
	}
	return false, nil
}

// IsNonEmptyConservative is IsNonEmpty where running out of fuel reads as
// "possibly non-empty".
func (s *ExprSet) IsNonEmptyConservative(e ExprRef, maxFuel uint64) bool {
	r, err := s.IsNonEmpty(e, maxFuel)
	if err != nil {
		return true
	}
	return r
}
