// Package console is the sys_print (syscall 3) sink: it takes whatever
// bytes a user process hands the kernel and gets them onto the serial
// log safely. With no UART driver in this tree, it writes to klog
// instead, doing the width-normalization a real serial console would
// skip.
package console

import "golang.org/x/text/width"

import "klog"

// Print folds user-supplied bytes through width.Fold before logging
// them. A fullwidth or halfwidth-form rune sitting next to a control
// character can desynchronize a terminal's column tracking; folding to
// the narrow/ASCII-compatible form first means a hostile or merely
// buggy user buffer can't do that to the serial console.
func Print(b []byte) int {
	folded := width.Fold.Bytes(b)
	klog.Printf("%s", folded)
	return len(b)
}
