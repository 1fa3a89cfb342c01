package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync/atomic"
)

// sections components log under, set as the "section" attribute
const (
	SectionInference = "inference"
	SectionUnify     = "unify"
	SectionSubtype   = "subtype"
	SectionTraits    = "traits"
	SectionSymbols   = "symbols"
	SectionConstEval = "consteval"
	SectionDriver    = "driver"
)

var enabledSections atomic.Pointer[[]string]

func init() {
	SetSections([]string{SectionDriver})
}

// SetSections replaces the sections whose records below Warn are logged.
// A section matches every section it prefixes
func SetSections(sections []string) {
	cloned := slices.Clone(sections)
	enabledSections.Store(&cloned)
}

var level = new(slog.LevelVar)

func SetLevel(l slog.Level) { level.Set(l) }

var LoggerOpts = &slog.HandlerOptions{
	AddSource: true,
	Level:     level,
	ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == "time" {
			return slog.Attr{}
		}
		return a
	},
}

var DefaultLogger = slog.New(&filteringHandler{underlying: slog.NewTextHandler(os.Stdout, LoggerOpts)})

// Configure points DefaultLogger at w, as JSON or as text
func Configure(w io.Writer, json bool) {
	var underlying slog.Handler = slog.NewTextHandler(w, LoggerOpts)
	if json {
		underlying = slog.NewJSONHandler(w, LoggerOpts)
	}
	*DefaultLogger = *slog.New(&filteringHandler{underlying: underlying})
}

// Section returns a logger whose records are tagged with, and filtered by, section
func Section(name string) *slog.Logger {
	return DefaultLogger.With("section", name)
}

var _ slog.Handler = &filteringHandler{}

type filteringHandler struct {
	underlying slog.Handler
	sections   []string
}

func sectionEnabled(section string) bool {
	return slices.ContainsFunc(*enabledSections.Load(), func(enabled string) bool {
		return strings.HasPrefix(section, enabled)
	})
}

func (f filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return f.underlying.Enabled(ctx, level)
}

func (f filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelWarn {
		return f.underlying.Handle(ctx, record)
	}
	wantSection := slices.ContainsFunc(f.sections, sectionEnabled)
	record.Attrs(func(attr slog.Attr) bool {
		wantSection = wantSection || attr.Key == "section" && sectionEnabled(attr.Value.String())
		// iterate as long as we have not found our section
		return !wantSection
	})
	if !wantSection {
		return nil
	}
	return f.underlying.Handle(ctx, record)
}

func (f filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var newAttrs []slog.Attr
	sections := slices.Clone(f.sections)

	// keep the section attribute in filteringHandler, so that it is checked
	// against the sections enabled when the record is handled
	for _, attr := range attrs {
		if attr.Key == "section" {
			sections = append(sections, attr.Value.String())
		}
		newAttrs = append(newAttrs, attr)
	}
	return &filteringHandler{
		underlying: f.underlying.WithAttrs(newAttrs),
		sections:   sections,
	}
}

func (f filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{
		underlying: f.underlying.WithGroup(name),
		sections:   f.sections,
	}
}
