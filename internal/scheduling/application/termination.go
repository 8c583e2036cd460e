package application

import "time"

// TerminationOptions bounds a search run (spec §4.9).
type TerminationOptions struct {
	MaxDuration        time.Duration // 0 disables the wall-clock bound
	MaxBacktracks      int           // 0 disables the backtrack-count bound
	QualityThreshold   float64       // 0 disables early exit on quality
}

// TerminationController polls three independent stop conditions during
// search: wall-clock timeout, backtrack-count cap, and an early exit
// once a quality threshold is reached. It is safe to poll from both the
// backtracking searcher and the local-search optimizer.
type TerminationController struct {
	options   TerminationOptions
	startedAt time.Time // the caller-supplied, possibly-historical SolveOptions.Now; kept for reference only
	realStart time.Time // wall-clock anchor the MaxDuration bound is actually measured against
	reason    string
}

// NewTerminationController starts the clock immediately; construct it
// right before the search it bounds begins. now is the caller-supplied
// reproducible clock value (SolveOptions.Now); it never drives the
// MaxDuration bound, since a frozen or historical now would otherwise
// make every timeout fire (or never fire) the instant ShouldStop is
// first polled. The wall-clock bound is measured from this
// construction call's own real time.Now() instead.
func NewTerminationController(options TerminationOptions, now time.Time) *TerminationController {
	return &TerminationController{options: options, startedAt: now, realStart: time.Now()}
}

// ShouldStop is polled at every search-tree node expansion and between
// local-search iterations. quality is the caller's current estimate of
// 0.8*scheduling_rate + 0.2*utilization_fraction (spec §4.9).
func (t *TerminationController) ShouldStop(backtracks int, quality float64) bool {
	if t.options.MaxDuration > 0 && time.Since(t.realStart) >= t.options.MaxDuration {
		t.reason = "TIMED_OUT"
		return true
	}
	if t.options.MaxBacktracks > 0 && backtracks >= t.options.MaxBacktracks {
		t.reason = "BACKTRACK_LIMIT"
		return true
	}
	if t.options.QualityThreshold > 0 && quality >= t.options.QualityThreshold {
		t.reason = "QUALITY_REACHED"
		return true
	}
	return false
}

// Reason reports why the most recent ShouldStop call returned true, or
// "" if the search ran to completion without ever tripping a bound.
func (t *TerminationController) Reason() string {
	return t.reason
}

// Elapsed reports the real wall-clock time spent since the controller
// was created.
func (t *TerminationController) Elapsed() time.Duration {
	return time.Since(t.realStart)
}
