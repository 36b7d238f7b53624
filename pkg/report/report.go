// Package report implements the Reporter (spec §4.9): it aggregates
// per-game plan.Outcomes into a stream tagged by game name plus running
// summary counters, leaving sort order to the presentation layer. It is
// grounded on the teacher's status-aggregation style (pkg/synchronization
// "session state" accumulation), narrowed to this tool's flat
// ok/bad/missing/extras/bytes counters.
package report

import (
	"sync"

	"github.com/tuffy/emuman/pkg/materialize"
	"github.com/tuffy/emuman/pkg/plan"
)

// Summary tallies outcomes across every game processed by one command
// invocation, per spec §4.9's "{ok, bad, missing, extras_deleted,
// bytes_written, bytes_linked}".
type Summary struct {
	OK            int
	Bad           int
	Missing       int
	ExtrasDeleted int
	BytesWritten  int64
	BytesLinked   int64
}

// Reporter collects Outcomes as they are produced. Outcomes may arrive
// in any order — the Coordinator emits one per game as soon as that
// game's plan/materialize step completes, with no cross-game ordering
// guarantee (spec §5) — so Reporter is safe for concurrent use from
// multiple goroutines.
type Reporter struct {
	mu       sync.Mutex
	outcomes []plan.Outcome
	summary  Summary
}

// New creates an empty Reporter.
func New() *Reporter {
	return &Reporter{}
}

// Record adds one game's outcome and folds its materializer stats into
// the running summary. matStats may be the zero value for a read-only
// (verify) invocation, which performs no materialization.
func (r *Reporter) Record(outcome plan.Outcome, matStats materialize.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes = append(r.outcomes, outcome)
	if outcome.OK() {
		r.summary.OK++
	} else {
		r.summary.Bad++
	}
	if len(outcome.Missing) > 0 {
		r.summary.Missing++
	}
	r.summary.ExtrasDeleted += matStats.ExtrasDeleted
	r.summary.BytesWritten += matStats.BytesWritten
	r.summary.BytesLinked += matStats.BytesLinked
}

// Outcomes returns every recorded outcome, in recording order. Callers
// that need a presentation order (by description, creator, year — the
// --sort flag) sort this slice themselves; the Reporter does not sort.
func (r *Reporter) Outcomes() []plan.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]plan.Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Summary returns the current running totals.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// ExitCode maps the accumulated summary to the process exit code
// convention of spec §6: 0 if every game was OK, 1 if the command ran
// to completion but at least one game was not OK.
func (r *Reporter) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.summary.Bad > 0 {
		return 1
	}
	return 0
}
