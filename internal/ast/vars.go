package ast

// Vars appends the named variables of p to dst in order of first
// occurrence, skipping names already present in dst.
func Vars(dst []string, p Pattern) []string {
	switch pat := p.(type) {
	case Var:
		for _, v := range dst {
			if v == pat.Name {
				return dst
			}
		}
		return append(dst, pat.Name)
	case Const:
		for _, arg := range pat.Args {
			dst = Vars(dst, arg)
		}
	case Call:
		for _, arg := range pat.Args {
			dst = Vars(dst, arg)
		}
	}
	return dst
}

// IsGround reports whether every variable in p is in bound and p contains
// no wildcards or calls.
func IsGround(p Pattern, bound map[string]bool) bool {
	switch pat := p.(type) {
	case Var:
		return bound[pat.Name]
	case Wildcard, Call:
		return false
	case Const:
		for _, arg := range pat.Args {
			if !IsGround(arg, bound) {
				return false
			}
		}
	}
	return true
}

// PremiseVars returns the variables of a premise: arguments then value.
func PremiseVars(dst []string, p *Premise) []string {
	for _, arg := range p.Args {
		dst = Vars(dst, arg)
	}
	return Vars(dst, p.ValueOrTrivial())
}

// ConclusionVars returns the variables of a conclusion.
func ConclusionVars(dst []string, c *Conclusion) []string {
	for _, arg := range c.Args {
		dst = Vars(dst, arg)
	}
	for _, v := range c.Values {
		dst = Vars(dst, v)
	}
	return dst
}

// Walk calls fn for p and every sub-pattern, parents first.
func Walk(p Pattern, fn func(Pattern)) {
	fn(p)
	switch pat := p.(type) {
	case Const:
		for _, arg := range pat.Args {
			Walk(arg, fn)
		}
	case Call:
		for _, arg := range pat.Args {
			Walk(arg, fn)
		}
	}
}
