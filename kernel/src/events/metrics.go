package events

import "stats"

/// Metrics holds the event engine's introspection counters: how many
/// times each priority's queue head was polled, and how many times a
/// queue head aged into the next-higher priority. Exported as package
/// state, not per-Runner, since kprof reports one kernel-wide snapshot;
/// gated by stats.Stats the same way every counter in this tree is, so
/// reading it costs nothing when profiling is off.
var Metrics struct {
	PollsByPriority  [NumPriorities]stats.Counter_t
	AgingPromotions  stats.Counter_t
}

func recordPoll(priority int32) {
	if priority >= 0 && int(priority) < NumPriorities {
		Metrics.PollsByPriority[priority].Inc()
	}
}
