package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ternarybob/modernizer/internal/models"
)

// Summary is the outcome of a batch run, one result per plugin in input order.
type Summary struct {
	RunID      string
	Mode       Mode
	Results    []*models.Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Count returns the number of results with the given outcome.
func (s *Summary) Count(outcome models.Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r != nil && r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed reports whether any plugin failed or was skipped.
func (s *Summary) Failed() bool {
	return s.Count(models.OutcomeFailed) > 0 || s.Count(models.OutcomeSkipped) > 0
}

// Print writes a human readable report.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Run %s (%s) finished in %s\n\n", s.RunID, s.Mode, s.FinishedAt.Sub(s.StartedAt).Round(time.Second))
	PrintResults(w, s.Results)
}

// PrintResults writes one block per result.
func PrintResults(w io.Writer, results []*models.Result) {
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(w, "%-40s %-14s %s", r.Plugin, r.Outcome, r.State)
		if r.JDK != 0 {
			fmt.Fprintf(w, " jdk=%d", r.JDK)
		}
		fmt.Fprintln(w)
		if r.ChangeRequestURL != "" {
			fmt.Fprintf(w, "    change request: %s\n", r.ChangeRequestURL)
		}
		if len(r.ChangedFiles) > 0 {
			fmt.Fprintf(w, "    changed files:  %s\n", strings.Join(r.ChangedFiles, ", "))
		}
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", warning)
		}
		for _, e := range r.Errors {
			fmt.Fprintf(w, "    error:   %s\n", e)
		}
	}
}
