package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/dusa/internal/ast"
	"github.com/roach88/dusa/internal/compiler"
	"github.com/roach88/dusa/internal/ir"
	"github.com/roach88/dusa/internal/term"
)

// LoadResult is a program ready to solve, from CUE source or from
// compiled IR.
type LoadResult struct {
	Source  *ast.Program // nil when loaded from compiled IR
	Program *ir.Program
	Store   *term.Store
	Encoded []byte // canonical IR
	Hash    string
}

// LoadError represents an error that occurred while loading a program.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProgram loads a .cue file, a directory holding a CUE package, or a
// .json file written by "dusa compile".
//
// The returned errors are *LoadError values, or compiler.Issue values
// when the source parsed but did not compile. A non-nil result is only
// returned with no errors.
func LoadProgram(path string) (*LoadResult, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing program: %v", err)}}
	}

	if !info.IsDir() && filepath.Ext(path) == ".json" {
		return loadIR(path)
	}

	src, err := compiler.LoadProgram(path)
	if err != nil {
		return nil, []error{convertCompileError(err, path)}
	}
	return compileSource(src)
}

// compileSource runs the compiler pipeline on a parsed program.
func compileSource(src *ast.Program) (*LoadResult, []error) {
	ts := term.NewStore()
	prog, issues := compiler.Compile(src, ts)
	if len(issues) > 0 {
		errs := make([]error, len(issues))
		for i, issue := range issues {
			errs[i] = issue
		}
		return nil, errs
	}
	encoded, err := ir.Encode(prog, ts)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("encoding program: %v", err)}}
	}
	return &LoadResult{
		Source:  src,
		Program: prog,
		Store:   ts,
		Encoded: encoded,
		Hash:    ir.ProgramHash(encoded),
	}, nil
}

// loadIR decodes a compiled program. It is re-encoded so the hash matches
// the one "dusa compile" printed even if the file was reformatted.
func loadIR(path string) (*LoadResult, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading program: %v", err)}}
	}
	ts := term.NewStore()
	prog, err := ir.Decode(data, ts)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeDecodeFailed, Message: err.Error()}}
	}
	encoded, err := ir.Encode(prog, ts)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeDecodeFailed, Message: fmt.Sprintf("re-encoding program: %v", err)}}
	}
	return &LoadResult{
		Program: prog,
		Store:   ts,
		Encoded: encoded,
		Hash:    ir.ProgramHash(encoded),
	}, nil
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeLoadFailed,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// errorCode extracts a code, message and position from any loader error.
func errorCode(err error) (code, message, pos string) {
	var issue compiler.Issue
	if errors.As(err, &issue) {
		if issue.Pos.IsValid() {
			pos = issue.Pos.String()
		}
		return issue.Code, issue.Message, pos
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Pos.IsValid() {
			pos = fmt.Sprintf("%s:%d:%d", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
		return loadErr.Code, loadErr.Message, pos
	}
	return ErrCodeGeneric, err.Error(), ""
}

// Error code constants - unified across all CLI commands. Compile issues
// carry the compiler's own E2xx codes.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeLoadFailed   = "E004" // CUE load failed
	ErrCodeNotFound     = "E005" // Path not found
	ErrCodeBuildFailed  = "E006" // CUE build failed
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeDecodeFailed = "E008" // Compiled IR could not be decoded
	ErrCodeBadFacts     = "E009" // --facts input rejected

	// Program structure errors
	ErrCodeConclusion = "E101" // Missing or malformed conclusion
	ErrCodeChoices    = "E102" // Empty choice list
	ErrCodeName       = "E103" // Missing relation or builtin name
	ErrCodePattern    = "E104" // Unsupported pattern (e.g., float)

	// Run errors
	ErrCodeRunNotFound = "E301" // No run with that id
	ErrCodeQuota       = "E302" // Step quota exceeded
	ErrCodeBadFilter   = "E303" // --arg / --value rejected
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "cue":
		return ErrCodeBuildFailed
	case "load":
		return ErrCodeLoadFailed
	case "conclusion":
		return ErrCodeConclusion
	case "choices":
		return ErrCodeChoices
	case "name":
		return ErrCodeName
	case "pattern":
		return ErrCodePattern
	default:
		return ErrCodeGeneric
	}
}
