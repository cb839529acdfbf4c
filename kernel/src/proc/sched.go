package proc

import "defs"
import "events"
import "stats"

/// Preemptions counts how many times Preempt actually cancelled a
/// running ring-3 future and rescheduled it, for kprof to report
/// alongside the event engine's own counters.
var Preemptions stats.Counter_t

// ring3Future is the event the engine polls to run a process. Poll
// performs the transition into Running state on its first call and
// then suspends: a real ring-3 entry returns control to the kernel
// only via interrupt or syscall, both of which are represented here as
// an external call to Preempt or Exit rather than a value the future
// itself produces, so Poll has nothing left to check after the first
// call except whether the process has since exited.
type ring3Future struct {
	p       *Proc_t
	entered bool
}

func (f *ring3Future) Poll(w events.Waker) events.Poll {
	if f.p.State() == Terminated {
		return events.Ready
	}
	if !f.entered {
		f.entered = true
		f.p.setState(Running)
	}
	return events.Pending
}

/// ScheduleRing3 enqueues p to run on cpu's event runner at the
/// lowest (process) priority, matching schedule_process: kernel work
/// always preempts a ring-3 future.
func ScheduleRing3(cpu int, p *Proc_t) *events.Event {
	p.setState(Ready)
	return events.ScheduleProcess(cpu, &ring3Future{p: p}, uint32(p.Pid))
}

/// Preempt is the higher-level routine the local timer interrupt calls
/// on every tick. If the event currently running on cpu belongs to the
/// kernel (pid 0) it is a no-op — the caller still signals end of
/// interrupt and returns. Otherwise it snapshots the running process's
/// registers, records the kernel stack state it was preempted from,
/// marks it Blocked, and schedules a fresh future (ScheduleRing3 marks
/// it Ready again) that re-enters ring 3 for the same pid the next time
/// it's polled.
func Preempt(cpu int, snapshot Regs_t, kernelRsp, kernelRip uint64) bool {
	r := events.RunnerFor(cpu)
	if r == nil {
		return false
	}
	ev := r.CurrentEvent()
	if ev == nil || ev.Pid == 0 {
		return false
	}

	p, ok := Lookup(defs.Pid_t(ev.Pid))
	if !ok {
		return false
	}

	p.mu.Lock()
	p.regs = snapshot
	p.KernelRsp = kernelRsp
	p.KernelRip = kernelRip
	p.mu.Unlock()
	p.setState(Blocked)

	ev.Cancel()
	ScheduleRing3(cpu, p)
	Preemptions.Inc()
	return true
}
