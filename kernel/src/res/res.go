// Package res turns the bare counters in package limits into scoped
// reservations: a caller asks for n units up front, gets back a handle
// if the system-wide budget has room, and releases the handle exactly
// once when whatever it was charging against goes away. Limits elsewhere
// describe per-process resource budgets without wiring enforcement to a
// lifecycle; the release-on-teardown discipline here closes that gap.
package res

import "limits"

/// PageReservation is a claim on limits.Syslimit.Mfspgs: some number of
/// physical pages reserved for a process's mmap growth beyond its first
/// mapping. Zero value is a valid, empty reservation.
type PageReservation struct {
	pages int
}

/// ReservePages claims n pages from the system-wide mmap page budget.
/// Returns (nil, false) without side effects if the budget doesn't have
/// room; n <= 0 always succeeds and claims nothing.
func ReservePages(n int) (*PageReservation, bool) {
	if n <= 0 {
		return &PageReservation{}, true
	}
	if !limits.Syslimit.Mfspgs.Taken(uint(n)) {
		return nil, false
	}
	return &PageReservation{pages: n}, true
}

/// Merge folds another reservation's claim into r, so a process with
/// several mmap calls can track its growth as a single handle.
func (r *PageReservation) Merge(other *PageReservation) {
	if r == nil || other == nil {
		return
	}
	r.pages += other.pages
	other.pages = 0
}

/// Pages reports how many pages this reservation currently holds.
func (r *PageReservation) Pages() int {
	if r == nil {
		return 0
	}
	return r.pages
}

/// Release returns every page this reservation holds to the system
/// budget. Safe to call on a nil receiver or an already-released
/// reservation; idempotent.
func (r *PageReservation) Release() {
	if r == nil || r.pages == 0 {
		return
	}
	limits.Syslimit.Mfspgs.Given(uint(r.pages))
	r.pages = 0
}

/// EventReservation is a claim on limits.Syslimit.Events: one
/// outstanding event identifier. Unlike pages, event accounting never
/// blocks scheduling on exhaustion (a kernel that could fail to
/// schedule its own preemption bookkeeping would deadlock); exhaustion
/// is only counted in limits.Lhits and a claim is never refused. An
/// event identifier is held until the runner drops the event (Ready or
/// cancelled).
type EventReservation struct {
	held bool
}

/// ReserveEvent accounts for one more outstanding event identifier
/// against limits.Syslimit.Events, always succeeding: a refusal here
/// would mean the event engine itself couldn't schedule its next
/// future, which this tree has nothing sensible to do about, so
/// exhaustion is tracked (limits.Lhits) rather than enforced.
func ReserveEvent() *EventReservation {
	if !limits.Syslimit.Events.Take() {
		limits.Lhits++
		return &EventReservation{held: false}
	}
	return &EventReservation{held: true}
}

/// Release returns the claimed event identifier slot. Safe to call on
/// a nil receiver or an already-released reservation.
func (r *EventReservation) Release() {
	if r == nil || !r.held {
		return
	}
	limits.Syslimit.Events.Give()
	r.held = false
}
