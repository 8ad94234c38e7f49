package status

import (
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Reporter records block completions and turns snapshots into progress
// reports with a trailing-window ETA.
type Reporter struct {
	window      time.Duration
	out         io.Writer
	logger      *slog.Logger
	completions []time.Time
}

// NewReporter returns a reporter averaging over window. out may be nil to
// disable rendering; logger may be nil to disable logging.
func NewReporter(window time.Duration, out io.Writer, logger *slog.Logger) *Reporter {
	return &Reporter{window: window, out: out, logger: logger}
}

// RecordCompletion notes that a block finished at t.
func (r *Reporter) RecordCompletion(t time.Time) {
	r.completions = append(r.completions, t)
}

func (r *Reporter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.completions) && r.completions[i].Before(cutoff) {
		i++
	}
	r.completions = r.completions[i:]
}

// Rate returns completions per second over the trailing window ending at now.
func (r *Reporter) Rate(now time.Time) float64 {
	if r.window <= 0 {
		return 0
	}
	r.prune(now)
	return float64(len(r.completions)) / r.window.Seconds()
}

// Estimate fills in the rate and ETA of a snapshot taken at snap.Time.
func (r *Reporter) Estimate(snap *Snapshot) {
	snap.Rate = r.Rate(snap.Time)
	snap.ETA = nil
	remaining := snap.Totals().Remaining()
	if snap.Rate <= 0 {
		if remaining == 0 {
			zero := time.Duration(0)
			snap.ETA = &zero
		}
		return
	}
	eta := time.Duration(float64(remaining) / snap.Rate * float64(time.Second))
	snap.ETA = &eta
}

// Report estimates, logs and renders a snapshot.
func (r *Reporter) Report(snap Snapshot) Snapshot {
	r.Estimate(&snap)
	totals := snap.Totals()
	if r.logger != nil {
		r.logger.Info("📊 Progress",
			"done", totals.Done+totals.Skipped,
			"failed", totals.Failed,
			"remaining", totals.Remaining(),
			"workers", snap.Workers,
			"rate", fmt.Sprintf("%.2f/s", snap.Rate),
			"eta", FormatETA(snap.ETA),
		)
	}
	if r.out != nil {
		fmt.Fprintln(r.out, Render(snap))
	}
	return snap
}

// FormatETA renders an ETA, or "unknown" when it cannot be estimated.
func FormatETA(eta *time.Duration) string {
	if eta == nil {
		return "unknown"
	}
	return eta.Round(time.Second).String()
}
