package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tsfans/query-translator/ir"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // input could not be translated
	ExitCommandError = 2 // bad flags, unreadable config or input
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
	// Reported is set once the error has been written by an OutputFormatter.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode returns ExitFailure for errors that are not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// IsReported reports whether err was already written to the command output.
func IsReported(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr) && exitErr.Reported
}

// Response is the JSON envelope for --format json.
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success prints text as-is in text mode and wraps data in the envelope in JSON mode.
func (f *OutputFormatter) Success(text string, data any) error {
	if f.Format == "json" {
		return f.encode(Response{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Failure writes err and returns an ExitError that is marked as reported.
func (f *OutputFormatter) Failure(code int, err error) error {
	kind := ir.Kind(err)
	if kind == "" {
		kind = "Error"
	}
	var writeErr error
	if f.Format == "json" {
		writeErr = f.encode(Response{Status: "error", Error: &ResponseError{Code: kind, Message: err.Error()}})
	} else {
		_, writeErr = fmt.Fprintf(f.Writer, "Error [%s]: %v\n", kind, err)
	}
	return &ExitError{Code: code, Message: kind, Err: err, Reported: writeErr == nil}
}

func (f *OutputFormatter) encode(v any) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
