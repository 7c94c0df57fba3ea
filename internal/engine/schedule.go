package engine

import "time"

// shutdownDue reports whether the daily shutdown instant fell within (last, now].
// A zero last means there is no previous evaluation to compare against.
func shutdownDue(cfg ScheduledShutdown, loc *time.Location, last, now time.Time) bool {
	if !cfg.Enabled || last.IsZero() || !now.After(last) {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	at := time.Date(y, m, d, 0, 0, cfg.AtSecondsOfDay, 0, loc)
	if at.After(now) {
		at = time.Date(y, m, d-1, 0, 0, cfg.AtSecondsOfDay, 0, loc)
	}
	return at.After(last)
}
