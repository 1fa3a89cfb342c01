package ast

import (
	"strings"
)

func ExprString(expr Expr) string {
	ctx := newShowContext()
	ctx.showExpr(expr)
	return ctx.String()
}

func TypeExprString(t TypeExpr) string {
	ctx := newShowContext()
	ctx.showType(t)
	return ctx.String()
}

func PatternString(p Pattern) string {
	ctx := newShowContext()
	ctx.showPattern(p)
	return ctx.String()
}

type showContext struct {
	*strings.Builder
}

func newShowContext() *showContext {
	return &showContext{Builder: &strings.Builder{}}
}

func (ctx *showContext) list(n int, sep string, each func(int)) {
	for i := 0; i < n; i++ {
		if i != 0 {
			ctx.WriteString(sep)
		}
		each(i)
	}
}

func (ctx *showContext) showExpr(expr Expr) {
	if expr == nil {
		ctx.WriteString("nil")
		return
	}
	switch expr := expr.(type) {
	case *Literal:
		ctx.WriteString(expr.Text)
	case *Ident:
		ctx.WriteString(expr.Name)
	case *Call:
		ctx.showExpr(expr.Func)
		ctx.WriteString("(")
		ctx.list(len(expr.Args), ", ", func(i int) { ctx.showExpr(expr.Args[i]) })
		for i, kw := range expr.KwArgs {
			if i != 0 || len(expr.Args) != 0 {
				ctx.WriteString(", ")
			}
			ctx.WriteString(kw.Name + " := ")
			ctx.showExpr(kw.Value)
		}
		ctx.WriteString(")")
	case *Attr:
		ctx.showExpr(expr.Receiver)
		ctx.WriteString(".")
		if expr.Qualifier != nil {
			ctx.WriteString("(")
			ctx.showType(expr.Qualifier)
			ctx.WriteString(").")
		}
		ctx.WriteString(expr.Name)
	case *BinOp:
		ctx.WriteString("(")
		ctx.showExpr(expr.Lhs)
		ctx.WriteString(" " + expr.Op.String() + " ")
		ctx.showExpr(expr.Rhs)
		ctx.WriteString(")")
	case *UnaryOp:
		ctx.WriteString(expr.Op.String())
		ctx.showExpr(expr.Operand)
	case *Lambda:
		ctx.WriteString("(")
		ctx.list(len(expr.Params), ", ", func(i int) {
			p := expr.Params[i]
			ctx.WriteString(p.Name)
			if p.TypeAnn != nil {
				ctx.WriteString(": ")
				ctx.showType(p.TypeAnn)
			}
			if p.Default != nil {
				ctx.WriteString(" := ")
				ctx.showExpr(p.Default)
			}
		})
		ctx.WriteString(")")
		if expr.Return != nil {
			ctx.WriteString(": ")
			ctx.showType(expr.Return)
		}
		ctx.WriteString(" -> ")
		ctx.showExpr(expr.Body)
	case *PatternFunc:
		ctx.list(len(expr.Arms), "; ", func(i int) {
			arm := expr.Arms[i]
			ctx.list(len(arm.Patterns), " ", func(j int) { ctx.showPattern(arm.Patterns[j]) })
			ctx.WriteString(" -> ")
			ctx.showExpr(arm.Body)
		})
	case *If:
		ctx.WriteString("if ")
		ctx.showExpr(expr.Cond)
		ctx.WriteString(" then ")
		ctx.showExpr(expr.Then)
		ctx.WriteString(" else ")
		ctx.showExpr(expr.Else)
	case *Block:
		ctx.WriteString("{ ")
		for _, d := range expr.Decls {
			ctx.WriteString(d.Name + " = ")
			ctx.showExpr(d.Value)
			ctx.WriteString("; ")
		}
		ctx.showExpr(expr.Result)
		ctx.WriteString(" }")
	case *ArrayLit:
		ctx.WriteString("[")
		ctx.list(len(expr.Elems), ", ", func(i int) { ctx.showExpr(expr.Elems[i]) })
		ctx.WriteString("]")
	case *RecordLit:
		ctx.WriteString("{")
		ctx.list(len(expr.Fields), "; ", func(i int) {
			ctx.WriteString(expr.Fields[i].Name + " = ")
			ctx.showExpr(expr.Fields[i].Value)
		})
		ctx.WriteString("}")
	case *Assert:
		ctx.WriteString("assert ")
		ctx.showExpr(expr.Value)
		ctx.WriteString(" in ")
		ctx.showType(expr.Against)
	case *TypeLit:
		ctx.showType(expr.TypeExpr)
	default:
		ctx.WriteString("<unknown expression>")
	}
}

func (ctx *showContext) showType(t TypeExpr) {
	if t == nil {
		ctx.WriteString("_")
		return
	}
	switch t := t.(type) {
	case *TName:
		ctx.WriteString(t.Name)
	case *TApp:
		ctx.WriteString(t.Name + "(")
		ctx.list(len(t.Args), ", ", func(i int) { ctx.showType(t.Args[i]) })
		ctx.WriteString(")")
	case *TFunc:
		ctx.WriteString("(")
		showParam := func(p TParam) {
			if p.Name != "" {
				ctx.WriteString(p.Name + ": ")
			}
			ctx.showType(p.Type)
			if p.HasDefault {
				ctx.WriteString(" := _")
			}
		}
		ctx.list(len(t.Params), ", ", func(i int) { showParam(t.Params[i]) })
		for i, p := range t.KwParams {
			if i == 0 {
				if len(t.Params) != 0 {
					ctx.WriteString(", ")
				}
				ctx.WriteString("*, ")
			} else {
				ctx.WriteString(", ")
			}
			showParam(p)
		}
		ctx.WriteString(") -> ")
		ctx.showType(t.Return)
	case *TRecord:
		ctx.WriteString("{")
		ctx.list(len(t.Fields), "; ", func(i int) {
			ctx.WriteString(t.Fields[i].Name + " = ")
			ctx.showType(t.Fields[i].Type)
		})
		ctx.WriteString("}")
	case *TRefinement:
		ctx.WriteString("{" + t.Var + ": ")
		ctx.showType(t.Base)
		if len(t.Preds) != 0 {
			ctx.WriteString(" | ")
			ctx.list(len(t.Preds), " and ", func(i int) { ctx.showPred(t.Preds[i]) })
		}
		ctx.WriteString("}")
	case *TEnum:
		ctx.WriteString("{")
		ctx.list(len(t.Values), ", ", func(i int) { ctx.showExpr(t.Values[i]) })
		ctx.WriteString("}")
	case *TInterval:
		ctx.showExpr(t.Lo)
		if t.OpenHi {
			ctx.WriteString("..<")
		} else {
			ctx.WriteString("..")
		}
		ctx.showExpr(t.Hi)
	case *TOr:
		ctx.showType(t.Lhs)
		ctx.WriteString(" or ")
		ctx.showType(t.Rhs)
	case *TAnd:
		ctx.showType(t.Lhs)
		ctx.WriteString(" and ")
		ctx.showType(t.Rhs)
	case *TNot:
		ctx.WriteString("not ")
		ctx.showType(t.Inner)
	case *TValue:
		ctx.showExpr(t.Value)
	default:
		ctx.WriteString("<unknown type>")
	}
}

func (ctx *showContext) showPred(p PredExpr) {
	switch p := p.(type) {
	case *PCompare:
		ctx.showExpr(p.Lhs)
		ctx.WriteString(" " + p.Op.String() + " ")
		ctx.showExpr(p.Rhs)
	case *PAnd:
		ctx.WriteString("(")
		ctx.showPred(p.Lhs)
		ctx.WriteString(" and ")
		ctx.showPred(p.Rhs)
		ctx.WriteString(")")
	case *POr:
		ctx.WriteString("(")
		ctx.showPred(p.Lhs)
		ctx.WriteString(" or ")
		ctx.showPred(p.Rhs)
		ctx.WriteString(")")
	case *PNot:
		ctx.WriteString("not ")
		ctx.showPred(p.Inner)
	}
}

func (ctx *showContext) showPattern(p Pattern) {
	switch p := p.(type) {
	case *LitPattern:
		ctx.showExpr(p.Literal)
	case *VarPattern:
		ctx.WriteString(p.Name)
		if p.TypeAnn != nil {
			ctx.WriteString(": ")
			ctx.showType(p.TypeAnn)
		}
	case *WildcardPattern:
		ctx.WriteString("_")
		if p.TypeAnn != nil {
			ctx.WriteString(": ")
			ctx.showType(p.TypeAnn)
		}
	}
}
