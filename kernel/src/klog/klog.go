// Package klog is the kernel's diagnostic sink. biscuit prints
// straight to stdout with fmt.Printf from wherever a subsystem needs to
// say something (mem.Phys_init, the scheduler's debug prints); this
// tree keeps that habit but also retains the last Capacity bytes in a
// circbuf.Circbuf_t so a live kernel can be asked to dump its recent
// history (the hosted stand-in for reading the serial port's scrollback
// off real hardware).
package klog

import "fmt"
import "sync"

import "circbuf"

/// Capacity is the size of the retained log ring.
const Capacity = 64 * 1024

var (
	mu  sync.Mutex
	buf circbuf.Circbuf_t

	initted bool
)

func ensure() {
	if !initted {
		buf.Cb_init(Capacity)
		initted = true
	}
}

/// Printf formats and writes a diagnostic line to stdout and appends it
/// to the retained ring, the sink every package's bring-up and
/// fault-handling logging goes through.
func Printf(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	fmt.Print(s)

	mu.Lock()
	ensure()
	appendRing([]byte(s))
	mu.Unlock()
}

// appendRing writes b into the ring, evicting the oldest bytes first if
// it would otherwise overflow — unlike a socket's recv circbuf, a log
// has nothing upstream to apply backpressure to, so it must drop old
// history instead of refusing new writes.
func appendRing(b []byte) {
	if len(b) > Capacity {
		b = b[len(b)-Capacity:]
	}
	if room := buf.Left(); room < len(b) {
		buf.Advtail(len(b) - room)
	}
	buf.Write(b)
}

/// Snapshot copies out everything currently retained in the ring,
/// oldest first, without consuming it.
func Snapshot() []byte {
	mu.Lock()
	defer mu.Unlock()
	ensure()
	used := buf.Used()
	if used == 0 {
		return nil
	}
	out := make([]byte, used)
	a, b := buf.Rawread(0)
	n := copy(out, a)
	copy(out[n:], b)
	return out
}
