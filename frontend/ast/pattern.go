package ast

// Pattern appears in the parameter position of a PatternFunc arm
type Pattern interface {
	Node
	patternNode()
}

var (
	_ Pattern = (*LitPattern)(nil)
	_ Pattern = (*VarPattern)(nil)
	_ Pattern = (*WildcardPattern)(nil)
)

// LitPattern matches exactly one constant value
type LitPattern struct {
	Range
	Literal *Literal
}

func (*LitPattern) patternNode() {}
func (p *LitPattern) Hash() uint64 {
	return newHasher("LitPattern").u64(p.Range.Hash()).node(p.Literal).sum()
}

// VarPattern binds the argument to Name. With a TypeAnn it only matches values of that type
type VarPattern struct {
	Range
	Name    string
	TypeAnn TypeExpr
}

func (*VarPattern) patternNode() {}
func (p *VarPattern) Hash() uint64 {
	return newHasher("VarPattern").u64(p.Range.Hash()).str(p.Name).node(p.TypeAnn).sum()
}

// WildcardPattern is _, or _: T
type WildcardPattern struct {
	Range
	TypeAnn TypeExpr
}

func (*WildcardPattern) patternNode() {}
func (p *WildcardPattern) Hash() uint64 {
	return newHasher("WildcardPattern").u64(p.Range.Hash()).node(p.TypeAnn).sum()
}
