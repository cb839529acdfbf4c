package events

import "sync"

var (
	registryMu sync.RWMutex
	runners    = make(map[int]*Runner)
)

/// Register installs a fresh runner for the given core id. Called once
/// per core during bring-up.
func Register(cpu int) *Runner {
	registryMu.Lock()
	defer registryMu.Unlock()
	r := NewRunner()
	runners[cpu] = r
	return r
}

/// RunnerFor returns the runner registered for cpu, or nil if Register
/// hasn't been called for it yet.
func RunnerFor(cpu int) *Runner {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return runners[cpu]
}

/// ScheduleKernel schedules kernel-owned work onto cpu's runner.
func ScheduleKernel(cpu int, fut Future, priority int) *Event {
	r := RunnerFor(cpu)
	if r == nil {
		panic("no runner registered for cpu")
	}
	return r.ScheduleKernel(fut, priority)
}

/// ScheduleProcess schedules a process's future onto cpu's runner.
func ScheduleProcess(cpu int, fut Future, pid uint32) *Event {
	r := RunnerFor(cpu)
	if r == nil {
		panic("no runner registered for cpu")
	}
	return r.ScheduleProcess(fut, pid)
}

/// CurrentRunningEventPid reports which process owns the event cpu's
/// runner is polling right now, 0 if none.
func CurrentRunningEventPid(cpu int) uint32 {
	r := RunnerFor(cpu)
	if r == nil {
		return 0
	}
	if e := r.CurrentEvent(); e != nil {
		return e.Pid
	}
	return 0
}

/// CurrentRunningEventPriority reports the priority of cpu's currently
/// running event, or the lowest priority if none is running.
func CurrentRunningEventPriority(cpu int) int {
	r := RunnerFor(cpu)
	if r == nil {
		return NumPriorities - 1
	}
	if e := r.CurrentEvent(); e != nil {
		return int(e.Priority)
	}
	return NumPriorities - 1
}
