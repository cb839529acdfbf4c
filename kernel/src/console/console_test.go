package console

import "bytes"
import "testing"

import "klog"

func TestPrintReturnsOriginalByteCount(t *testing.T) {
	msg := []byte("hello, world\n")
	n := Print(msg)
	if n != len(msg) {
		t.Fatalf("expected %d, got %d", len(msg), n)
	}
}

func TestPrintFoldsFullwidthForms(t *testing.T) {
	// U+FF21 FULLWIDTH LATIN CAPITAL LETTER A folds to ASCII 'A'.
	msg := []byte("ＡＢＣ")
	Print(msg)

	snap := klog.Snapshot()
	if !bytes.Contains(snap, []byte("ABC")) {
		t.Fatalf("expected folded ASCII form in log, got %q", snap)
	}
}
