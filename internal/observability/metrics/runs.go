package metrics

import (
	"github.com/pendergraft/veriforge/internal/report"
)

// RecordRun records a finished verification run and its per-contract
// outcomes.
func RecordRun(r *report.Report) {
	if !enabled {
		return
	}

	runsTotal.Inc()
	runDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())

	outcomesTotal.WithLabelValues("verified").Add(float64(len(r.Verified)))
	outcomesTotal.WithLabelValues("skipped").Add(float64(len(r.Skipped)))
	for _, outcome := range r.Failed {
		outcomesTotal.WithLabelValues(string(outcome.ErrorKind)).Inc()
	}
}

// RecordBuild records a build attempt. mode is "persistent" or "ephemeral".
func RecordBuild(mode string) {
	if !enabled {
		return
	}
	buildsTotal.WithLabelValues(mode).Inc()
}

// RecordFetchAttempt records a bytecode fetch attempt against one source
// tier.
func RecordFetchAttempt(tier string) {
	if !enabled {
		return
	}
	fetchAttemptsTotal.WithLabelValues(tier).Inc()
}
