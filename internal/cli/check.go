package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/dusa/internal/compiler"
)

// CheckIssue is one problem found by check.
type CheckIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Pos     string `json:"pos,omitempty"`
}

// CheckResult holds check results.
type CheckResult struct {
	Valid     bool                        `json:"valid"`
	Hash      string                      `json:"hash,omitempty"`
	Relations int                         `json:"relations"`
	Issues    []CheckIssue                `json:"issues,omitempty"`
	Warnings  []compiler.RecursionWarning `json:"warnings,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <program>",
		Short: "Check a program without solving it",
		Long: `Check a CUE program (a .cue file or a package directory) or a
compiled .json program.

Reports every compile issue: arity mismatches, unbound conclusion
variables, builtin misuse, and so on. Recursive relation groups that
build new terms are reported as warnings, since saturation may never
be reached for them.

Examples:
  dusa check ./coloring.cue
  dusa check ./programs/graph --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Checking %s", path)
	loaded, errs := LoadProgram(path)
	if len(errs) > 0 {
		code, message, _ := errorCode(errs[0])
		if code == ErrCodeNotFound {
			_ = formatter.Error(code, message, nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
		}
		return outputCheckIssues(formatter, errs)
	}

	result := CheckResult{
		Valid:     true,
		Hash:      loaded.Hash,
		Relations: len(loaded.Program.Relations),
	}
	if loaded.Source != nil {
		result.Warnings = compiler.AnalyzeRecursion(loaded.Source)
	}
	formatter.VerboseLog("%d relation(s), %d step(s)", result.Relations, len(loaded.Program.Steps))

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ Program valid (%d relation(s))\n", result.Relations)
	for _, w := range result.Warnings {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", w.Level, w.Message)
	}
	return nil
}

// outputCheckIssues outputs every issue found.
func outputCheckIssues(formatter *OutputFormatter, errs []error) error {
	issues := make([]CheckIssue, len(errs))
	for i, err := range errs {
		code, message, pos := errorCode(err)
		issues[i] = CheckIssue{Code: code, Message: message, Pos: pos}
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   CheckResult{Valid: false, Issues: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Check failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("check failed with %d issue(s)", len(issues)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Check failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Pos != "" {
			fmt.Fprintln(formatter.Writer, issue.Pos)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}

	// Check failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("check failed with %d issue(s)", len(issues)))
}
