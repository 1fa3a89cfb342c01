package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/cottand/typecore/frontend"
	"github.com/cottand/typecore/frontend/ast"
	"github.com/cottand/typecore/frontend/ilerr"
	"github.com/cottand/typecore/frontend/traits"
	"github.com/cottand/typecore/internal/config"
	"github.com/cottand/typecore/internal/log"
	"github.com/cottand/typecore/internal/metrics"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var CheckCmd = &cobra.Command{
	Use:          "check fixture.yaml",
	Short:        "Type check the modules of a fixture",
	RunE:         runCheck,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
}

var (
	configPath *string
	logFormat  *string
	logLevel   *string
)

func init() {
	configPath = CheckCmd.Flags().StringP("config", "c", "", "path to a YAML configuration")
	logFormat = CheckCmd.Flags().String("log-format", "auto", "log format: auto, text or json")
	logLevel = CheckCmd.Flags().StringP("log-level", "l", "", "log level, overrides the configuration")
}

func terminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// configureLogs must run before any environment is created, as loggers are derived
// from log.DefaultLogger when an environment is
func configureLogs(opts config.Options) error {
	switch *logFormat {
	case "auto":
		log.Configure(os.Stderr, !terminal(os.Stderr))
	case "text", "json":
		log.Configure(os.Stderr, *logFormat == "json")
	default:
		return errors.Errorf("unknown log format %q", *logFormat)
	}
	if *logLevel != "" {
		opts.Log.Level = *logLevel
	}
	level, err := opts.Log.SlogLevel()
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if len(opts.Log.Sections) > 0 {
		log.SetSections(opts.Log.Sections)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	opts := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			return err
		}
		opts = loaded
	}
	modules, queries, opts, err := LoadFixture(args[0], opts)
	if err != nil {
		return err
	}
	if err := configureLogs(opts); err != nil {
		return err
	}

	m := metrics.Discard()
	results, err := frontend.CheckModules(cmd.Context(), modules, traits.New(opts, m), opts, m)
	if err != nil {
		return err
	}
	byModule := make(map[string]*frontend.Result, len(results))
	for _, res := range results {
		byModule[res.Module] = res
	}

	out := cmd.OutOrStdout()
	colored := false
	if f, ok := out.(*os.File); ok {
		colored = terminal(f)
	}
	render(out, colored, declarationsTable(results))
	if t, ok := diagnosticsTable(results); ok {
		render(out, colored, t)
	}
	if len(queries) > 0 {
		t, err := queriesTable(queries, byModule)
		if err != nil {
			return err
		}
		render(out, colored, t)
	}

	failed := 0
	for _, res := range results {
		if res.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d modules have errors", failed, len(results))
	}
	log.Section(log.SectionDriver).Debug("fixture checked", "fixture", args[0], "modules", len(results))
	return nil
}

func render(w io.Writer, colored bool, t table.Writer) {
	if colored {
		t.SetStyle(table.StyleColoredBright)
	} else {
		t.SetStyle(table.StyleLight)
	}
	_, _ = io.WriteString(w, t.Render()+"\n")
}

func declarationsTable(results []*frontend.Result) table.Writer {
	t := table.NewWriter()
	t.SetTitle("declarations")
	t.AppendHeader(table.Row{"module", "name", "type", "status"})
	for _, res := range results {
		for _, o := range res.Outcomes {
			typ, status := "", "ok"
			if o.Scheme != nil {
				typ = o.Scheme.String()
			}
			if o.Failed() {
				status = fmt.Sprintf("%d errors", len(o.Errors.Errors()))
			} else if n := len(o.Warnings.Errors()); n > 0 {
				status = fmt.Sprintf("ok, %d warnings", n)
			}
			t.AppendRow(table.Row{res.Module, o.Name, typ, status})
		}
		t.AppendSeparator()
	}
	return t
}

func diagnosticsTable(results []*frontend.Result) (table.Writer, bool) {
	t := table.NewWriter()
	t.SetTitle("diagnostics")
	t.AppendHeader(table.Row{"module", "line", "severity", "message"})
	rows := 0
	add := func(module, severity string, errs *ilerr.Errors) {
		for _, e := range errs.Errors() {
			t.AppendRow(table.Row{module, e.Pos(), severity, ilerr.FormatWithCode(e)})
			rows++
		}
	}
	for _, res := range results {
		add(res.Module, "error", res.Errors)
		add(res.Module, "warning", res.Warnings)
	}
	return t, rows > 0
}

func queriesTable(queries []Query, byModule map[string]*frontend.Result) (table.Writer, error) {
	t := table.NewWriter()
	t.SetTitle("queries")
	t.AppendHeader(table.Row{"module", "expression", "type"})
	for _, q := range queries {
		res, ok := byModule[q.Module]
		if !ok {
			return nil, errors.Errorf("query on unknown module %s", q.Module)
		}
		typ, err := res.Env.Checker.Expr(q.Expr)
		shown := ""
		if err != nil {
			shown = ilerr.FormatWithCode(ilerr.At(err, q.Expr))
			log.Section(log.SectionDriver).Debug("query failed", "module", q.Module, "error", err)
		} else {
			shown = typ.String()
		}
		t.AppendRow(table.Row{q.Module, ast.ExprString(q.Expr), shown})
	}
	return t, nil
}
