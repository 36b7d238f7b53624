// Package common holds the small pieces shared by every emuman command
// group: fatal/warning/error printers and a minimal text report
// renderer. It mirrors the teacher's top-level cmd/mutagen error
// helpers (cmd/error.go), narrowed to this tool's simpler one-shot CLI.
package common

import (
	stderrors "errors"
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/tuffy/emuman/pkg/report"
)

// Warning prints a warning message to standard error.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), message)
}

// Error prints an error message to standard error.
func Error(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}

// Fatal prints an error message to standard error and terminates the
// process with the usage-error exit code (spec §6 exit code 2 covers
// flag/argument mistakes; callers that need exit code 3 for a catalog
// or input error should use FatalCode directly).
func Fatal(err error) {
	Error(err)
	os.Exit(2)
}

// FatalCode prints an error message and exits with the given code.
func FatalCode(err error, code int) {
	Error(err)
	os.Exit(code)
}

// ExitError pins a command error to one of spec §6's exit codes (1 for
// "ran but some game wasn't OK", 3 for a catalog/input error), so the
// root command can report the right code without re-deriving it from
// the error's text.
type ExitError struct {
	Err  error
	Code int
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError wraps err with an explicit exit code.
func NewExitError(err error, code int) error {
	return &ExitError{Err: err, Code: code}
}

// ExitCode returns the code an ExitError carries, or the usage-error
// code (2) for any other error, matching cobra's own flag/argument
// validation failures, which never wrap as ExitError.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 2
}

// SortKey identifies one of the --sort orderings from spec §6.
type SortKey string

const (
	SortDescription SortKey = "description"
	SortCreator     SortKey = "creator"
	SortYear        SortKey = "year"
)

// GameMeta is the subset of catalog.Game fields the text reporter needs
// for --sort, decoupled from the catalog package so this file doesn't
// have to import it solely for a sort key.
type GameMeta struct {
	Name        string
	Description string
	Creator     string
	Year        string
}

// RenderReport writes a minimal text rendering of a Reporter's outcomes
// to stdout: this is the out-of-scope "tabular report rendering"
// collaborator's simplest possible stand-in (spec §1), just enough to
// make command invocations observable from the CLI.
func RenderReport(r *report.Reporter, meta map[string]GameMeta, sortKey SortKey, simple bool) {
	outcomes := r.Outcomes()
	sort.Slice(outcomes, func(i, j int) bool {
		a, b := outcomes[i].Game, outcomes[j].Game
		if sortKey == "" {
			return a < b
		}
		ma, mb := meta[a], meta[b]
		switch sortKey {
		case SortCreator:
			if ma.Creator != mb.Creator {
				return ma.Creator < mb.Creator
			}
		case SortYear:
			if ma.Year != mb.Year {
				return ma.Year < mb.Year
			}
		case SortDescription:
			if ma.Description != mb.Description {
				return ma.Description < mb.Description
			}
		}
		return a < b
	})

	for _, o := range outcomes {
		if o.OK() {
			if !simple {
				fmt.Printf("%s: OK\n", o.Game)
			}
			continue
		}
		fmt.Printf("%s: BAD", o.Game)
		if len(o.Missing) > 0 {
			fmt.Printf(" missing=%v", o.Missing)
		}
		if len(o.WrongDigest) > 0 {
			fmt.Printf(" wrong_digest=%v", o.WrongDigest)
		}
		if len(o.Extra) > 0 {
			fmt.Printf(" extra=%v", o.Extra)
		}
		if len(o.RenameConflicts) > 0 {
			fmt.Printf(" rename_conflicts=%v", o.RenameConflicts)
		}
		fmt.Println()
	}

	summary := r.Summary()
	fmt.Printf("%d ok, %d bad, %d missing, %d extras deleted, %s written, %s linked\n",
		summary.OK, summary.Bad, summary.Missing, summary.ExtrasDeleted,
		humanize.Bytes(uint64(summary.BytesWritten)), humanize.Bytes(uint64(summary.BytesLinked)))
}
