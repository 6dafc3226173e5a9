package cli

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/contentq/internal/content"
	"github.com/roach88/contentq/internal/integrity"
	"github.com/roach88/contentq/internal/store"
)

// whereOperators is ordered so that longer operators match before their
// prefixes ("IS NOT NULL" before "IS NULL", ">=" before ">").
var whereOperators = []string{
	"IS NOT NULL", "NOT BETWEEN", "NOT LIKE", "NOT IN", "IS NULL",
	"BETWEEN", "LIKE", "IN",
	">=", "<=", "!=", "<>", "=", ">", "<",
}

// Condition is one parsed --where flag.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// ParseCondition parses "field OP value". The value is read as YAML, so
// `true`, `10`, `[a, b]` and `null` decode to their typed forms and
// anything else stays a string. IS NULL and IS NOT NULL take no value.
func ParseCondition(s string) (Condition, error) {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("=!<>", r)
	})
	if end <= 0 {
		return Condition{}, fmt.Errorf("condition %q: expected \"field OP value\"", s)
	}
	field, rest := s[:end], strings.TrimSpace(s[end:])

	for _, op := range whereOperators {
		n := matchOperator(rest, op)
		if n < 0 {
			continue
		}
		raw := strings.TrimSpace(rest[n:])
		c := Condition{Field: field, Operator: op}
		if op == "IS NULL" || op == "IS NOT NULL" {
			if raw != "" {
				return Condition{}, fmt.Errorf("condition %q: %s takes no value", s, op)
			}
			return c, nil
		}
		if raw == "" {
			return Condition{}, fmt.Errorf("condition %q: missing value", s)
		}
		if err := yaml.Unmarshal([]byte(raw), &c.Value); err != nil {
			return Condition{}, fmt.Errorf("condition %q: value: %w", s, err)
		}
		return c, nil
	}
	return Condition{}, fmt.Errorf("condition %q: unknown operator", s)
}

// matchOperator returns the length of the prefix of s that spells op, or -1.
// Word operators match case-insensitively with any run of whitespace between
// words and must be followed by whitespace, "[" or the end of s.
func matchOperator(s, op string) int {
	words := strings.Fields(op)
	i := 0
	for w, word := range words {
		if w > 0 {
			start := i
			for i < len(s) && unicode.IsSpace(rune(s[i])) {
				i++
			}
			if i == start {
				return -1
			}
		}
		if len(s)-i < len(word) || !strings.EqualFold(s[i:i+len(word)], word) {
			return -1
		}
		i += len(word)
	}
	if unicode.IsLetter(rune(op[0])) && i < len(s) && !unicode.IsSpace(rune(s[i])) && s[i] != '[' {
		return -1
	}
	return i
}

// queryFlags are the builder flags shared by query and render.
type queryFlags struct {
	where  []string
	order  []string
	fields []string
	path   string
	skip   int
	limit  int
}

func (q *queryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&q.where, "where", "w", nil, `condition "field OP value" (repeatable, joined with AND)`)
	cmd.Flags().StringArrayVarP(&q.order, "order", "o", nil, "ordering field[:asc|desc] (repeatable)")
	cmd.Flags().StringSliceVar(&q.fields, "select", nil, "fields to return (default all)")
	cmd.Flags().StringVar(&q.path, "path", "", "match the path field exactly")
	cmd.Flags().IntVar(&q.skip, "skip", 0, "rows to skip (needs --limit)")
	cmd.Flags().IntVar(&q.limit, "limit", 0, "maximum rows to return (0 means no limit)")
}

// apply chains the flags onto b in a fixed order: path, conditions,
// projection, ordering, pagination.
func apply[T any](q *queryFlags, b *content.QueryBuilder[T]) (*content.QueryBuilder[T], error) {
	if q.path != "" {
		b = b.Path(q.path)
	}
	for _, w := range q.where {
		c, err := ParseCondition(w)
		if err != nil {
			return nil, NewExitError(ExitCommandError, err.Error())
		}
		b = b.Where(c.Field, c.Operator, c.Value)
	}
	if len(q.fields) > 0 {
		b = b.Select(q.fields...)
	}
	for _, o := range q.order {
		field, dir, _ := strings.Cut(o, ":")
		if dir == "" {
			dir = "asc"
		}
		b = b.OrderBy(field, dir)
	}
	if q.skip != 0 {
		b = b.Skip(q.skip)
	}
	if q.limit != 0 {
		b = b.Limit(q.limit)
	}
	if err := b.Err(); err != nil {
		return nil, queryExitError("invalid query", err)
	}
	return b, nil
}

// QueryOptions holds options for the query command.
type QueryOptions struct {
	*RootOptions
	queryFlags

	First  bool
	Count  bool
	Verify bool

	// Registry receives the query and verification metrics. Nil uses a
	// registry private to the invocation.
	Registry prometheus.Registerer
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <collection>",
		Short: "Run a query against a collection",
		Long: `Run a query against a collection and print the matching rows.

With --verify (the default) the collection is checked against its manifest
checksum first, re-importing its dump if needed, exactly as a served request
would be.`,
		Example: `  contentq query docs --where "draft = false" --order date:desc --limit 10
  contentq query docs --path /guide/intro --first
  contentq query docs --where "tag IN [go, sql]" --count`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0])
		},
	}

	opts.queryFlags.bind(cmd)
	cmd.Flags().BoolVar(&opts.First, "first", false, "print only the first row")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matching rows")
	cmd.Flags().BoolVar(&opts.Verify, "verify", true, "verify the collection before querying")
	cmd.MarkFlagsMutuallyExclusive("first", "count")

	return cmd
}

func runQuery(cmd *cobra.Command, opts *QueryOptions, collection string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	e, err := openEnv(opts.RootOptions, cmd.ErrOrStderr(), reg)
	if err != nil {
		return err
	}
	defer e.Close()

	b, err := apply(&opts.queryFlags, e.client.Query(collection))
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Verify {
		ctx = integrity.WithRequest(ctx, cmd.CommandPath())
	}

	if stmt, err := b.Build(); err == nil {
		formatter.VerboseLog("sql: %s args: %v", stmt.SQL, stmt.Args)
	}

	switch {
	case opts.Count:
		n, err := b.Count(ctx)
		if err != nil {
			return queryExitError("query failed", err)
		}
		if opts.Format == "json" {
			return formatter.Success(map[string]int64{"count": n})
		}
		return formatter.Success(n)

	case opts.First:
		row, found, err := b.First(ctx)
		if err != nil {
			return queryExitError("query failed", err)
		}
		rows := []store.Row{}
		if found {
			rows = append(rows, row)
		}
		return formatter.Rows(rows)

	default:
		rows, err := b.All(ctx)
		if err != nil {
			return queryExitError("query failed", err)
		}
		return formatter.Rows(rows)
	}
}

// RenderOptions holds options for the render command.
type RenderOptions struct {
	*RootOptions
	queryFlags
}

// RenderedStatement is the render command's JSON payload.
type RenderedStatement struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <collection>",
		Short: "Print the SQL a query would run",
		Long: `Print the parameterized SQL and bound arguments a query would run.

Only the manifest is read; the database is not opened.`,
		Example:       `  contentq render docs --where "draft = false" --select stem,title --limit 5`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, args[0])
		},
	}

	opts.queryFlags.bind(cmd)
	return cmd
}

func runRender(cmd *cobra.Command, opts *RenderOptions, collection string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	m, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	// Rendering never executes, so the client needs no gate or executor.
	b, err := apply(&opts.queryFlags, content.NewClient(m, nil, nil).Query(collection))
	if err != nil {
		return err
	}
	stmt, err := b.Build()
	if err != nil {
		return queryExitError("render failed", err)
	}

	args := stmt.Args
	if args == nil {
		args = []any{}
	}
	if opts.Format == "json" {
		return formatter.Success(RenderedStatement{SQL: stmt.SQL, Args: args})
	}
	fmt.Fprintln(formatter.Writer, stmt.SQL)
	for i, a := range args {
		fmt.Fprintf(formatter.Writer, "  $%d = %#v\n", i+1, a)
	}
	return nil
}
