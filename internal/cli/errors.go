// Package cli maps greq errors to process exit codes and user-facing messages.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/greq"
)

// Exit codes by error category.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitUsage      = 2
	ExitData       = 3
	ExitNotFound   = 4
	ExitAuth       = 5
	ExitConfig     = 7
	ExitNetwork    = 8
	ExitStatus     = 9
	ExitInternal   = 10
	ExitLinkBroken = 11
)

// ErrBrokenLinks is returned by `greq docs check` when links are broken.
var ErrBrokenLinks = greq.NewError(greq.CategoryStatus, "broken links found").Build()

// ErrorAdapter handles error presentation and exit code determination.
type ErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
}

// NewErrorAdapter creates a new adapter.
func NewErrorAdapter(verbose bool, logger *slog.Logger) *ErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorAdapter{verbose: verbose, logger: logger}
}

// ExitCodeFor determines the exit code for an error.
func (a *ErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}

	e, ok := greq.AsError(err)
	if !ok {
		return ExitGeneral
	}
	if e == ErrBrokenLinks {
		return ExitLinkBroken
	}
	switch e.Category() {
	case greq.CategoryValidation:
		return ExitUsage
	case greq.CategoryEncoding, greq.CategoryDecode, greq.CategoryBodyConsumed:
		return ExitData
	case greq.CategoryNotFound:
		return ExitNotFound
	case greq.CategoryAuth:
		return ExitAuth
	case greq.CategoryConfig:
		return ExitConfig
	case greq.CategoryNetwork:
		return ExitNetwork
	case greq.CategoryStatus:
		return ExitStatus
	case greq.CategoryInternal:
		return ExitInternal
	default:
		return ExitGeneral
	}
}

// FormatError renders err for the terminal. Verbose mode includes the cause
// chain; otherwise only the top-level message is shown.
func (a *ErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	e, ok := greq.AsError(err)
	if !ok || a.verbose {
		return fmt.Sprintf("Error: %v", err)
	}
	return fmt.Sprintf("Error: %s (%s)", e.Message(), e.Category())
}

// Handle prints err to w, logs it in verbose mode and returns its exit code.
func (a *ErrorAdapter) Handle(w io.Writer, err error) int {
	if err == nil {
		return ExitOK
	}
	if a.verbose {
		a.logError(err)
	}
	fmt.Fprintln(w, a.FormatError(err))
	return a.ExitCodeFor(err)
}

func (a *ErrorAdapter) logError(err error) {
	e, ok := greq.AsError(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	attrs := []slog.Attr{slog.String("category", string(e.Category()))}
	if e.Retryable() {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	for k, v := range e.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.LogAttrs(context.Background(), slog.LevelError, e.Message(), attrs...)
}
