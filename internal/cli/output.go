package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"cnft-drop/go-backend/internal/apperr"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitFailure    = 1 // unclassified
	ExitInvalid    = 2 // bad config, flags or input files
	ExitLocalState = 3 // state dir unreadable, locked or corrupt
	ExitSetup      = 4 // tree provisioning or metadata publish
	ExitSubmission = 5 // a mint failed; the report names the recipient
)

// ExitError carries the process exit code for an error that has already
// been reported to the user.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch apperr.KindOf(err) {
	case apperr.KindInvalidRequest:
		return ExitInvalid
	case apperr.KindPersistence, apperr.KindCorruptState:
		return ExitLocalState
	case apperr.KindProvisioning, apperr.KindPublish:
		return ExitSetup
	case apperr.KindSubmission:
		return ExitSubmission
	}
	return ExitFailure
}

// PrintError writes err for a human; ExitErrors were already reported and
// are skipped.
func PrintError(w io.Writer, err error) {
	var exitErr *ExitError
	if err == nil || errors.As(err, &exitErr) {
		return
	}
	prefix := color.New(color.FgRed, color.Bold).Sprint("error:")
	if kind := apperr.KindOf(err); kind != "" {
		_, _ = fmt.Fprintf(w, "%s [%s] %v\n", prefix, kind, err)
		return
	}
	_, _ = fmt.Fprintf(w, "%s %v\n", prefix, err)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// field prints one aligned "label value" row.
func field(w io.Writer, label string, value any) {
	_, _ = fmt.Fprintf(w, "%-10s %v\n", label, value)
}

func okMark() string   { return color.New(color.FgGreen).Sprint("✓") }
func failMark() string { return color.New(color.FgRed).Sprint("✗") }
