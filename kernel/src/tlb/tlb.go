// Package tlb implements cross-core TLB invalidation. A core that
// changes a present mapping another core's pmap could have cached posts
// the range to every other core's mailbox and sends it an IPI; each core
// drains its own mailbox and flushes the named range before resuming, the
// same store-then-signal handoff the original tlb_shootdown function
// uses, minus the APIC specifics (IPISender, which interrupts.Init wires
// to apic.SendIPI one target core at a time, stands in for
// send_ipi_all_cores).
package tlb

import "sync"

import "mem"
import "stats"

/// Shootdowns counts how many cross-core invalidations Shootdown has
/// posted (one increment per other core's mailbox a Shootdown call
/// posts to), for kprof to report.
var Shootdowns stats.Counter_t

/// Request describes one pending invalidation.
type Request struct {
	Pmap    mem.Pa_t
	Startva uintptr
	Pgcount int
}

type mailbox struct {
	sync.Mutex
	pending []Request
}

var mailboxes [256]mailbox

/// IPISender abstracts sending the shootdown interrupt to another core.
/// Set by interrupts.Init; nil during tests, where Shootdown only posts
/// to the mailboxes and the test calls Drain itself.
var IPISender func(core int)

/// Flusher is invoked locally to actually drop cached translations for a
/// range; tests or a hosted build without a page-table simulation can
/// leave this nil, in which case Drain is a pure bookkeeping operation.
var Flusher func(Request)

/// Shootdown invalidates pgcount pages starting at startva for pmap on
/// every core other than me. The caller's own core must flush its
/// translations directly; Shootdown only handles the cross-core case.
func Shootdown(me int, ncores int, pmap mem.Pa_t, startva uintptr, pgcount int) {
	if pgcount == 0 {
		return
	}
	req := Request{Pmap: pmap, Startva: startva, Pgcount: pgcount}
	for c := 0; c < ncores; c++ {
		if c == me {
			continue
		}
		mb := &mailboxes[c]
		mb.Lock()
		mb.pending = append(mb.pending, req)
		mb.Unlock()
		Shootdowns.Inc()
		if IPISender != nil {
			IPISender(c)
		}
	}
}

/// Drain is called by a core's IPI handler (or directly by a test) to
/// process every invalidation posted to its mailbox.
func Drain(me int) {
	mb := &mailboxes[me]
	mb.Lock()
	reqs := mb.pending
	mb.pending = nil
	mb.Unlock()
	if Flusher == nil {
		return
	}
	for _, r := range reqs {
		Flusher(r)
	}
}
