package kprof

import "os"
import "path/filepath"
import "testing"

func TestSnapshotProducesAValidProfile(t *testing.T) {
	p := Snapshot()
	if err := p.CheckValid(); err != nil {
		t.Fatal(err)
	}
	if len(p.Sample) == 0 {
		t.Fatal("expected at least one sample in the snapshot")
	}
	if len(p.SampleType) != 1 {
		t.Fatalf("expected exactly one sample type, got %d", len(p.SampleType))
	}
}

func TestWriteFileProducesNonemptyOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.pprof")
	if err := WriteFile(path); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("expected a nonempty pprof file")
	}
}
