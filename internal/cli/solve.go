package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/dusa/internal/engine"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/runner"
	"github.com/roach88/dusa/internal/store"
	"github.com/roach88/dusa/internal/term"
)

// SolveOptions holds flags for the solve command.
type SolveOptions struct {
	*RootOptions
	Database string
	Facts    string
	Limit    int
	MaxSteps int
	Shuffle  uint64

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to store.UUIDv7Generator.
	RunIDs store.RunIDGenerator
}

// SolutionOutput is one solution in JSON output.
type SolutionOutput struct {
	Seq   int64    `json:"seq"`
	Lines []string `json:"lines"`
	Facts ir.Array `json:"facts"`
}

// SolveResult holds the outcome of a solve.
type SolveResult struct {
	RunID       string           `json:"run_id"`
	ProgramHash string           `json:"program_hash"`
	Status      string           `json:"status"`
	Count       int              `json:"count"`
	Solutions   []SolutionOutput `json:"solutions"`
	Duplicates  int              `json:"duplicates,omitempty"`
	Steps       int              `json:"steps"`
	Branches    int              `json:"branches"`
	Conflicts   int              `json:"conflicts"`
}

// NewSolveCommand creates the solve command.
func NewSolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "solve <program>",
		Short: "Enumerate the solutions of a program",
		Long: `Enumerate the solutions of a CUE program or compiled .json program.

Solutions are printed as they are found. With --db every solution is
also recorded in a SQLite solution log under a new run id, for later
inspection with "dusa show".

Ctrl-C stops the search; the solutions found so far are kept and the
run is recorded as cancelled.

Examples:
  dusa solve ./coloring.cue
  dusa solve ./coloring.cue --limit 1 --format json
  dusa solve ./graph.json --facts edges.json --db ./runs.db
  dusa solve ./count.cue --max-steps 10000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite solution log")
	cmd.Flags().StringVar(&opts.Facts, "facts", "", "JSON file of external facts")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many solutions (0 = all)")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "step quota per solution (0 = default)")
	cmd.Flags().Uint64Var(&opts.Shuffle, "shuffle", 0, "seed for randomized agenda order (0 = off)")

	return cmd
}

func runSolve(opts *SolveOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, formatter.GetErrWriter())

	loaded, errs := LoadProgram(path)
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}
	logger.Debug("program loaded", "path", path, "hash", loaded.Hash)

	engineOpts := []engine.Option{engine.WithLogger(logger)}
	if opts.Facts != "" {
		facts, err := readFacts(opts.Facts, loaded.Store)
		if err != nil {
			_ = formatter.Error(ErrCodeBadFacts, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeBadFacts, err)
		}
		engineOpts = append(engineOpts, engine.WithFacts(facts...))
	}
	if opts.MaxSteps > 0 {
		engineOpts = append(engineOpts, engine.WithMaxSteps(opts.MaxSteps))
	}
	if opts.Shuffle != 0 {
		engineOpts = append(engineOpts, engine.WithShuffle(opts.Shuffle))
	}
	search, err := engine.NewSearch(loaded.Program, loaded.Store, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start search", err)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = store.UUIDv7Generator{}
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping search", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	result := SolveResult{ProgramHash: loaded.Hash, Solutions: []SolutionOutput{}}
	summary, runErr := runner.Record(ctx, st, search, runner.Config{
		RunID:       runIDs.Generate(),
		ProgramHash: loaded.Hash,
		Source:      path,
		Limit:       opts.Limit,
		Logger:      logger,
		OnSolution: func(seq int64, db *engine.Database) error {
			formatter.EndProgress()
			if formatter.Format == "json" {
				facts, err := db.Facts()
				if err != nil {
					return err
				}
				result.Solutions = append(result.Solutions, SolutionOutput{Seq: seq, Lines: db.Lines(), Facts: facts})
			} else {
				fmt.Fprintf(formatter.Writer, "Solution %d: %s\n", seq, db)
			}
			stats := search.Stats()
			formatter.Progress("%d solution(s), %d step(s)", stats.Solutions, stats.Steps)
			return nil
		},
	})
	formatter.EndProgress()

	result.RunID = summary.RunID
	result.Status = summary.Status
	result.Count = summary.Solutions
	result.Duplicates = summary.Duplicates
	result.Steps = summary.Stats.Steps
	result.Branches = summary.Stats.Branches
	result.Conflicts = summary.Stats.Conflicts

	switch {
	case runErr == nil:
	case engine.IsStepsExceededError(runErr):
		return outputSolveFailure(formatter, result, ErrCodeQuota, runErr)
	case errors.Is(runErr, context.Canceled):
		// Interrupted: report the partial result.
	default:
		return WrapExitError(ExitFailure, "search failed", runErr)
	}

	return outputSolveResult(formatter, result)
}

// readFacts loads external facts from a JSON array in the form the
// solution log stores them: [{"name": "edge", "args": [...], "value": ...}].
func readFacts(path string, ts *term.Store) ([]engine.Fact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	v, err := ir.ParseValue(data)
	if err != nil {
		return nil, fmt.Errorf("parsing facts: %w", err)
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("facts file must hold a JSON array, got %T", v)
	}
	return engine.DecodeFacts(ts, arr)
}

// outputSolveResult outputs the finished run.
func outputSolveResult(formatter *OutputFormatter, result SolveResult) error {
	if formatter.Format == "json" {
		return json.NewEncoder(formatter.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   result,
			RunID:  result.RunID,
		})
	}

	if result.Count == 0 {
		fmt.Fprintln(formatter.Writer, "No solutions.")
	}
	fmt.Fprintln(formatter.Writer)
	fmt.Fprintf(formatter.Writer, "Run %s: %d solution(s), %s after %d step(s)\n",
		result.RunID, result.Count, result.Status, result.Steps)
	return nil
}

// outputSolveFailure outputs a run stopped by the step quota. The
// solutions already printed stay valid.
func outputSolveFailure(formatter *OutputFormatter, result SolveResult, code string, err error) error {
	if formatter.Format == "json" {
		encErr := json.NewEncoder(formatter.Writer).Encode(CLIResponse{
			Status: "error",
			Data:   result,
			RunID:  result.RunID,
			Error: &CLIError{
				Code:    code,
				Message: err.Error(),
			},
		})
		if encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(formatter.Writer, "\nRun %s stopped: %v\n", result.RunID, err)
	}
	return WrapExitError(ExitFailure, code, err)
}
