package caller

import (
	"fmt"
	"runtime"
)

// Callerdump logs the call stack starting at the given depth, for
// attaching to a fatal kernel panic so the log line carries context a
// bare goroutine panic's stack trace doesn't: file:line for every frame
// back to the call that triggered it, collapsed into one log line
// instead of Go's multi-line dump.
func Callerdump(start int, logf func(format string, args ...interface{})) {
	i := start
	s := ""
	for {
		_, f, l, ok := runtime.Caller(i)
		if !ok {
			break
		}
		i++
		if s == "" {
			s = fmt.Sprintf("%s:%d", f, l)
		} else {
			s += fmt.Sprintf("\t<-%s:%d", f, l)
		}
	}
	logf("%s\n", s)
}
