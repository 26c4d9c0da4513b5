package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Hash      string `json:"hash"`
	Relations int    `json:"relations"`
	Steps     int    `json:"steps"`
	Indexes   int    `json:"indexes"`
	Seeds     int    `json:"seeds"`
	Demands   int    `json:"demands"`
	Forbids   int    `json:"forbids"`
	Output    string `json:"output,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <program>",
		Short: "Compile a CUE program to canonical IR",
		Long: `Compile a CUE program to its canonical JSON intermediate form.

The output is independent of term interning order, so its hash
identifies the program. "dusa solve" accepts the .json file directly.

Without --output the IR is written to stdout.

Examples:
  dusa compile ./coloring.cue -o coloring.json
  dusa compile ./programs/graph > graph.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	formatter.VerboseLog("Compiling %s", path)
	loaded, errs := LoadProgram(path)
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	stats := CompilationStats{
		Hash:      loaded.Hash,
		Relations: len(loaded.Program.Relations),
		Steps:     len(loaded.Program.Steps),
		Seeds:     len(loaded.Program.Seeds),
		Demands:   len(loaded.Program.Demands),
		Forbids:   len(loaded.Program.Forbids),
		Output:    opts.Output,
	}
	for _, idx := range loaded.Program.Indexes {
		stats.Indexes += len(idx)
	}

	if opts.Output == "" {
		// The IR itself is the output; the summary goes to stderr.
		if _, err := formatter.Writer.Write(append(loaded.Encoded, '\n')); err != nil {
			return err
		}
		formatter.VerboseLog("hash %s", stats.Hash)
		return nil
	}

	if err := os.WriteFile(opts.Output, loaded.Encoded, 0644); err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
	}

	return outputCompileSuccess(formatter, stats)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, stats CompilationStats) error {
	if formatter.Format == "json" {
		return formatter.Success(stats)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d relation(s) into %d step(s), %d index(es)\n",
		stats.Relations, stats.Steps, stats.Indexes)
	fmt.Fprintf(formatter.Writer, "  seeds: %d, demands: %d, forbids: %d\n",
		stats.Seeds, stats.Demands, stats.Forbids)
	fmt.Fprintf(formatter.Writer, "  hash: %s\n", stats.Hash)
	fmt.Fprintf(formatter.Writer, "Wrote canonical IR to %s\n", stats.Output)
	return nil
}

// outputCompileErrors outputs every compilation error.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	cliErrors := make([]CLIError, len(errs))
	positions := make([]string, len(errs))
	for i, err := range errs {
		code, message, pos := errorCode(err)
		cliErrors[i] = CLIError{Code: code, Message: message}
		if pos != "" {
			cliErrors[i].Details = map[string]string{"pos": pos}
		}
		positions[i] = pos
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for i, e := range cliErrors {
		if positions[i] != "" {
			fmt.Fprintln(formatter.Writer, positions[i])
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}
