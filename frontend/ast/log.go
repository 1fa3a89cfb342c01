package ast

import (
	"context"
	"log/slog"
)

// Slog wraps a Node as a slog.LogValuer so that it is only rendered
// when the record is actually logged
func Slog(n Node) slog.LogValuer {
	return nodeLogValuer{n}
}

type nodeLogValuer struct{ Node }

func (l nodeLogValuer) LogValue() slog.Value {
	switch n := l.Node.(type) {
	case Expr:
		return slog.StringValue(ExprString(n))
	case TypeExpr:
		return slog.StringValue(TypeExprString(n))
	case Pattern:
		return slog.StringValue(PatternString(n))
	case Decl:
		return slog.StringValue(n.DeclName())
	default:
		return slog.StringValue(RangeOf(n).String())
	}
}

// ExprHandler is a slog.Handler capable of lazy-printing syntax trees
func ExprHandler(underlying slog.Handler) slog.Handler {
	return &exprLogHandler{underlying: underlying}
}

func ExprLogger(underlying *slog.Logger) *slog.Logger {
	return slog.New(ExprHandler(underlying.Handler()))
}

type exprLogHandler struct {
	underlying slog.Handler
}

func (l *exprLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func wrapNodeAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() == slog.KindAny {
		if asNode, isNode := attr.Value.Any().(Node); isNode {
			attr.Value = slog.AnyValue(Slog(asNode))
		}
	}
	return attr
}

func (l *exprLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		newRecord.AddAttrs(wrapNodeAttr(attr))
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *exprLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	wrapped := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		wrapped[i] = wrapNodeAttr(attr)
	}
	return ExprHandler(l.underlying.WithAttrs(wrapped))
}

func (l *exprLogHandler) WithGroup(name string) slog.Handler {
	return ExprHandler(l.underlying.WithGroup(name))
}
