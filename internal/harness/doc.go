// Package harness provides conformance testing for Dusa programs.
//
// The harness compiles a program, runs the search to completion, records
// every solution in an in-memory solution log, and checks assertions
// against what was found.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: coloring
//	description: "A triangle has six proper 3-colorings"
//	program: programs/coloring.cue
//	facts:
//	  - name: edge
//	    args: [a, b]
//	limit: 0
//	max_steps: 10000
//	run_id: coloring-run
//	assertions:
//	  - type: solution_count
//	    count: 6
//	  - type: every_solution
//	    facts: ["vertex a"]
//	  - type: relation_count
//	    relation: color
//	    count: 18
//
// In facts, bare strings are atoms, "()" is the unit value, and
// {string: "..."} or {const: f, args: [...]} spell out other terms. Fact
// lines in assertions use the rendering of engine.Database.Lines, e.g.
// "color a is red" or "edge a b".
//
// # Assertion Types
//
//   - solution_count: exactly count solutions
//   - some_solution: some solution holds every listed fact
//   - every_solution: every solution holds every listed fact
//   - no_solution: no solution holds every listed fact
//   - solution_set: the solutions are exactly the listed ones, in any order
//   - relation_count: the solution log holds count facts of a relation
//   - run_status: the run ended as exhausted, limited, or quota
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed run id (from scenario.run_id, or testutil.DefaultRunID)
//   - Deterministic solution numbering (testutil.DeterministicClock)
//   - In-memory SQLite database (isolated per scenario)
//
// Golden snapshots sort solutions, so they are stable across agenda
// shuffling as well.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/coloring.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
