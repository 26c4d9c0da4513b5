package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dusa/internal/compiler"
	"github.com/roach88/dusa/internal/engine"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/runner"
	"github.com/roach88/dusa/internal/store"
	"github.com/roach88/dusa/internal/term"
	"github.com/roach88/dusa/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic solution clock and run id.
type Harness struct {
	store  *store.Store
	clock  *testutil.DeterministicClock
	runIDs *testutil.FixedRunIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Load and compile the program
// 2. Import the scenario's external facts
// 3. Search, recording every solution in the database
// 4. Evaluate assertions against the solutions and the recorded run
//
// A run stopped by the step quota is not an error: its status is
// "quota" and assertions still run against the solutions found so far.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with cancellation.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		clock:  testutil.NewDeterministicClock(),
		runIDs: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ts := term.NewStore()
	prog, hash, err := compileScenario(scenario.Program, ts)
	if err != nil {
		return nil, err
	}

	facts, err := scenarioFacts(ts, scenario.Facts)
	if err != nil {
		return nil, fmt.Errorf("failed to import facts: %w", err)
	}

	opts := []engine.Option{engine.WithLogger(h.logger), engine.WithFacts(facts...)}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	if scenario.Shuffle != 0 {
		opts = append(opts, engine.WithShuffle(scenario.Shuffle))
	}
	search, err := engine.NewSearch(prog, ts, opts...)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	summary, err := runner.Record(ctx, h.store, search, runner.Config{
		RunID:       h.runIDs.Generate(),
		ProgramHash: hash,
		Source:      scenario.Program,
		Limit:       scenario.Limit,
		Seq:         h.clock,
		Logger:      h.logger,
		OnSolution: func(_ int64, db *engine.Database) error {
			result.AddSolution(db.Lines())
			return nil
		},
	})
	if err != nil && !engine.IsStepsExceededError(err) {
		return nil, fmt.Errorf("failed to run scenario %s: %w", scenario.Name, err)
	}
	result.Status = summary.Status
	result.RunID = summary.RunID
	result.Stats = summary.Stats

	actx := &AssertionContext{
		Store: h.store,
		Ctx:   ctx,
		RunID: summary.RunID,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// compileScenario loads a program and returns it with its content hash.
func compileScenario(path string, ts *term.Store) (*ir.Program, string, error) {
	p, err := compiler.LoadProgram(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load program: %w", err)
	}
	prog, issues := compiler.Compile(p, ts)
	if len(issues) > 0 {
		errs := make([]error, len(issues))
		for i, issue := range issues {
			errs[i] = issue
		}
		return nil, "", fmt.Errorf("failed to compile %s: %w", path, errors.Join(errs...))
	}
	encoded, err := ir.Encode(prog, ts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return prog, ir.ProgramHash(encoded), nil
}

// scenarioFacts converts YAML facts into engine facts. Bare strings are
// atoms and "()" is the unit value; objects use the {string} and
// {const, args} forms of the interchange format.
func scenarioFacts(ts *term.Store, specs []FactSpec) ([]engine.Fact, error) {
	arr := make(ir.Array, len(specs))
	for i, f := range specs {
		obj := ir.Object{"name": ir.String(f.Name)}
		args := ir.Array{}
		for j, a := range f.Args {
			v, err := ir.ToValue(a)
			if err != nil {
				return nil, fmt.Errorf("facts[%d] arg %d: %w", i, j, err)
			}
			args = append(args, atomize(v))
		}
		obj["args"] = args
		if f.Value != nil {
			v, err := ir.ToValue(f.Value)
			if err != nil {
				return nil, fmt.Errorf("facts[%d] value: %w", i, err)
			}
			obj["value"] = atomize(v)
		}
		arr[i] = obj
	}
	return engine.DecodeFacts(ts, arr)
}

func atomize(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.String:
		if val == "()" {
			return ir.Array{}
		}
		return ir.Object{"const": val}
	case ir.Object:
		args, ok := val["args"].(ir.Array)
		if !ok {
			return val
		}
		out := make(ir.Object, len(val))
		for k, elem := range val {
			out[k] = elem
		}
		converted := make(ir.Array, len(args))
		for i, a := range args {
			converted[i] = atomize(a)
		}
		out["args"] = converted
		return out
	default:
		return v
	}
}
