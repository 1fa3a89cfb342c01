package types

// Equal is structural equality. Type variables are equal by ID alone, and
// refinements are equal up to the name of their bound variable and the order of their conjuncts
func Equal(a, b Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	switch a := a.(type) {
	case *Primitive:
		b, ok := b.(*Primitive)
		return ok && a.Name == b.Name
	case *TypeVar:
		b, ok := b.(*TypeVar)
		return ok && a.ID == b.ID
	case *Function:
		b, ok := b.(*Function)
		return ok && paramsEqual(a.Params, b.Params) && paramsEqual(a.KwParams, b.KwParams) && Equal(a.Return, b.Return)
	case *Record:
		b, ok := b.(*Record)
		if !ok || len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if a.Fields[i].Name != b.Fields[i].Name || !Equal(a.Fields[i].Type, b.Fields[i].Type) {
				return false
			}
		}
		return true
	case *Refinement:
		b, ok := b.(*Refinement)
		return ok && Equal(a.Base, b.Base) && conjunctionsEqual(a.Preds, a.Var, b.Preds, b.Var)
	case *Poly:
		b, ok := b.(*Poly)
		return ok && a.Name == b.Name && allEqual(a.Args, b.Args)
	case *TraitRef:
		b, ok := b.(*TraitRef)
		return ok && a.Name == b.Name && allEqual(a.Args, b.Args)
	case *And:
		b, ok := b.(*And)
		return ok && Equal(a.Lhs, b.Lhs) && Equal(a.Rhs, b.Rhs)
	case *Or:
		b, ok := b.(*Or)
		return ok && Equal(a.Lhs, b.Lhs) && Equal(a.Rhs, b.Rhs)
	case *Not:
		b, ok := b.(*Not)
		return ok && Equal(a.Inner, b.Inner)
	case *Const:
		b, ok := b.(*Const)
		return ok && ValueEqual(a.Value, b.Value)
	case *Enum:
		b, ok := b.(*Enum)
		if !ok || len(a.Values) != len(b.Values) {
			return false
		}
		for i := range a.Values {
			if !ValueEqual(a.Values[i], b.Values[i]) {
				return false
			}
		}
		return true
	case *Interval:
		b, ok := b.(*Interval)
		return ok && a.OpenHi == b.OpenHi && ValueEqual(a.Lo, b.Lo) && ValueEqual(a.Hi, b.Hi)
	default:
		return false
	}
}

func allEqual(as, bs []Type) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if !Equal(as[i], bs[i]) {
			return false
		}
	}
	return true
}

func paramsEqual(as, bs []Param) bool {
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i].Name != bs[i].Name || as[i].HasDefault != bs[i].HasDefault || !Equal(as[i].Type, bs[i].Type) {
			return false
		}
	}
	return true
}

// conjunctionsEqual compares two conjunctions as sets, after renaming both subjects to a common name
func conjunctionsEqual(as []Predicate, aVar string, bs []Predicate, bVar string) bool {
	as = dedupePreds(renameAll(Conjuncts(as...), aVar, "_"))
	bs = dedupePreds(renameAll(Conjuncts(bs...), bVar, "_"))
	return containsAll(as, bs) && containsAll(bs, as)
}

func renameAll(ps []Predicate, from, to string) []Predicate {
	renamed := make([]Predicate, len(ps))
	for i, p := range ps {
		renamed[i] = RenameSubject(p, from, to)
	}
	return renamed
}

// containsAll reports whether every predicate of sub appears syntactically in super
func containsAll(super, sub []Predicate) bool {
outer:
	for _, p := range sub {
		for _, q := range super {
			if PredicatesEqual(p, q) {
				continue outer
			}
		}
		return false
	}
	return true
}

// ContainsConjuncts reports whether every conjunct of sub, about subVar, appears
// syntactically among the conjuncts of super, about superVar
func ContainsConjuncts(super []Predicate, superVar string, sub []Predicate, subVar string) bool {
	return containsAll(renameAll(Conjuncts(super...), superVar, "_"), renameAll(Conjuncts(sub...), subVar, "_"))
}

func dedupePreds(ps []Predicate) []Predicate {
	out := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if !containsAll(out, []Predicate{p}) {
			out = append(out, p)
		}
	}
	return out
}
