package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/queryir"
	"github.com/roach88/dusa/internal/store"
	"github.com/roach88/dusa/internal/term"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database string
	Relation string   // optional - filter to one relation
	Args     []string // INDEX=LITERAL argument filters (needs Relation)
	Value    string   // value filter (needs Relation)
}

// RunSummary is one run in a listing.
type RunSummary struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	Status      string `json:"status"`
	Solutions   int64  `json:"solutions"`
	Steps       int64  `json:"steps"`
	Source      string `json:"source"`
	ProgramHash string `json:"program_hash"`
}

// ShownSolution is one recorded solution, rendered.
type ShownSolution struct {
	Seq   int64    `json:"seq"`
	Hash  string   `json:"hash"`
	Facts []string `json:"facts"`
}

// ShowResult holds the recorded output of one run.
type ShowResult struct {
	Run       RunSummary      `json:"run"`
	Relation  string          `json:"relation,omitempty"`
	Solutions []ShownSolution `json:"solutions"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Inspect recorded runs",
		Long: `Inspect the solution log written by "dusa solve --db".

Without a run id, lists every recorded run. With one, prints the run's
solutions in the order they were found; --relation narrows each
solution to the facts of one relation, and --arg / --value narrow it
further to facts with the given argument or value. Literals are JSON
data (3, true, {"string": "x"}); any other text names a constant.

Examples:
  dusa show --db ./runs.db
  dusa show --db ./runs.db 0192f1c4-...
  dusa show --db ./runs.db 0192f1c4-... --relation color --format json
  dusa show --db ./runs.db 0192f1c4-... --relation color --arg 0=a --value red`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runListRuns(opts, cmd)
			}
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Relation, "relation", "", "only show facts of this relation")
	cmd.Flags().StringArrayVar(&opts.Args, "arg", nil, "only show facts whose argument INDEX equals LITERAL (INDEX=LITERAL, repeatable)")
	cmd.Flags().StringVar(&opts.Value, "value", "", "only show facts with this value")

	return cmd
}

func runListRuns(opts *ShowOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	summaries := make([]RunSummary, len(runs))
	for i, run := range runs {
		summaries[i] = summarizeRun(run)
	}

	if opts.Format == "json" {
		return outputShowJSON(cmd.OutOrStdout(), summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "[%d] %s %-9s %d solution(s), %d step(s)  %s\n",
			s.Seq, s.ID, s.Status, s.Solutions, s.Steps, s.Source)
	}
	return nil
}

func runShow(opts *ShowOptions, runID string, cmd *cobra.Command) error {
	ctx := context.Background()

	filter, err := factFilter(opts)
	if err != nil {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		_ = formatter.Error(ErrCodeBadFilter, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeBadFilter, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		_ = formatter.Error(ErrCodeRunNotFound, fmt.Sprintf("no run %s", runID), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: no run %s", ErrCodeRunNotFound, runID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var solutions []ShownSolution
	if opts.Relation != "" {
		solutions, err = relationSolutions(ctx, st, queryir.Select{Run: runID, Relation: opts.Relation, Filter: filter})
	} else {
		solutions, err = allSolutions(ctx, st, runID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read solutions", err)
	}

	result := ShowResult{
		Run:       summarizeRun(run),
		Relation:  opts.Relation,
		Solutions: solutions,
	}

	if opts.Format == "json" {
		return outputShowJSON(cmd.OutOrStdout(), result)
	}
	return outputShowText(cmd.OutOrStdout(), result)
}

func summarizeRun(run store.Run) RunSummary {
	return RunSummary{
		ID:          run.ID,
		Seq:         run.Seq,
		Status:      run.Status,
		Solutions:   run.Solutions,
		Steps:       run.Steps,
		Source:      run.Source,
		ProgramHash: run.ProgramHash,
	}
}

// allSolutions renders every fact of every solution of a run.
func allSolutions(ctx context.Context, st *store.Store, runID string) ([]ShownSolution, error) {
	sols, err := st.ReadSolutions(ctx, runID)
	if err != nil {
		return nil, err
	}
	ts := term.NewStore()
	out := make([]ShownSolution, 0, len(sols))
	for _, sol := range sols {
		shown := ShownSolution{Seq: sol.Seq, Hash: sol.Hash, Facts: []string{}}
		for i, f := range sol.Facts {
			obj, ok := f.(ir.Object)
			if !ok {
				return nil, fmt.Errorf("solution %d fact %d: expected object, got %T", sol.Seq, i, f)
			}
			name, _ := obj["name"].(ir.String)
			args, _ := obj["args"].(ir.Array)
			line, err := formatFact(ts, string(name), args, obj["value"])
			if err != nil {
				return nil, fmt.Errorf("solution %d: %w", sol.Seq, err)
			}
			shown.Facts = append(shown.Facts, line)
		}
		out = append(out, shown)
	}
	return out, nil
}

// factFilter builds the predicate for --arg and --value. It returns nil
// when neither is set.
func factFilter(opts *ShowOptions) (queryir.Predicate, error) {
	if len(opts.Args) == 0 && opts.Value == "" {
		return nil, nil
	}
	if opts.Relation == "" {
		return nil, errors.New("--arg and --value require --relation")
	}

	var preds []queryir.Predicate
	for _, spec := range opts.Args {
		index, literal, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("--arg %q: want INDEX=LITERAL", spec)
		}
		i, err := strconv.Atoi(index)
		if err != nil || i < 0 {
			return nil, fmt.Errorf("--arg %q: index must be a non-negative integer", spec)
		}
		preds = append(preds, queryir.ArgEquals{Index: i, Value: parseLiteral(literal)})
	}
	if opts.Value != "" {
		preds = append(preds, queryir.ValueEquals{Value: parseLiteral(opts.Value)})
	}

	if len(preds) == 1 {
		return preds[0], nil
	}
	return queryir.And{Predicates: preds}, nil
}

// parseLiteral reads a filter literal as JSON data. Text that is not
// JSON, or is a bare JSON string, names a constant.
func parseLiteral(text string) ir.Value {
	v, err := ir.ParseValue([]byte(text))
	if err != nil {
		return ir.Object{"const": ir.String(text)}
	}
	if s, ok := v.(ir.String); ok {
		return ir.Object{"const": s}
	}
	return v
}

// relationSolutions renders the facts matched by q, grouped by the
// solution they belong to. Solutions without such facts are left out.
func relationSolutions(ctx context.Context, st *store.Store, q queryir.Select) ([]ShownSolution, error) {
	rows, err := st.QueryFacts(ctx, q)
	if err != nil {
		return nil, err
	}
	ts := term.NewStore()
	var out []ShownSolution
	for _, row := range rows {
		line, err := formatFact(ts, row.Relation, row.Args, row.Value)
		if err != nil {
			return nil, fmt.Errorf("solution %d: %w", row.Seq, err)
		}
		if len(out) == 0 || out[len(out)-1].Hash != row.SolutionHash {
			out = append(out, ShownSolution{Seq: row.Seq, Hash: row.SolutionHash})
		}
		last := &out[len(out)-1]
		last.Facts = append(last.Facts, line)
	}
	if out == nil {
		out = []ShownSolution{}
	}
	return out, nil
}

// formatFact renders a recorded fact the way a live solution prints it:
// "name arg1 arg2 is value", without " is ()" for unit values.
func formatFact(ts *term.Store, name string, args ir.Array, value ir.Value) (string, error) {
	var b strings.Builder
	b.WriteString(name)
	for i, arg := range args {
		d, err := ir.DecodeData(ts, arg)
		if err != nil {
			return "", fmt.Errorf("%s arg %d: %w", name, i, err)
		}
		b.WriteByte(' ')
		b.WriteString(ts.Format(d))
	}
	if value != nil {
		d, err := ir.DecodeData(ts, value)
		if err != nil {
			return "", fmt.Errorf("%s value: %w", name, err)
		}
		if d != ts.Trivial() {
			b.WriteString(" is ")
			b.WriteString(ts.Format(d))
		}
	}
	return b.String(), nil
}

// outputShowJSON outputs a show result as JSON.
func outputShowJSON(w io.Writer, data any) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}
	if r, ok := data.(ShowResult); ok {
		response.RunID = r.Run.ID
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputShowText outputs a show result as text.
func outputShowText(w io.Writer, result ShowResult) error {
	fmt.Fprintf(w, "Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Program: %s (%s)\n", result.Run.Source, truncateHash(result.Run.ProgramHash))
	fmt.Fprintf(w, "Status: %s after %d step(s)\n", result.Run.Status, result.Run.Steps)
	fmt.Fprintln(w)

	if len(result.Solutions) == 0 {
		fmt.Fprintln(w, "  (no solutions)")
		return nil
	}
	for _, sol := range result.Solutions {
		fmt.Fprintf(w, "  [%d] {%s}\n", sol.Seq, strings.Join(sol.Facts, ", "))
	}
	return nil
}

// truncateHash truncates a long hash for display.
func truncateHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:8] + "..." + h[len(h)-8:]
}
