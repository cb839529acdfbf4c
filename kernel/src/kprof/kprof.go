// Package kprof turns this kernel's scattered stats.Counter_t fields
// (the event engine's per-priority poll counts and aging promotions,
// the scheduler's preemption count, the TLB layer's shootdown count)
// into a single pprof profile.Profile and writes it to disk, so the
// same counters a hardware sampling buffer would collect come out in a
// format `go tool pprof` already knows how to render.
package kprof

import "fmt"
import "os"

import "github.com/google/pprof/profile"

import "events"
import "proc"
import "tlb"

/// Snapshot converts the kernel's current counters into a pprof Profile
/// with one sample per counter. Samples carry no call-stack location
/// (there is no execution profile being sampled, only cumulative
/// counts), so each is distinguished purely by its Label["name"].
func Snapshot() *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "count", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "snapshot", Unit: "count"},
		Period:     1,
	}

	add := func(name string, value int64) {
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{value},
			Label: map[string][]string{"name": {name}},
		})
	}

	for i, c := range events.Metrics.PollsByPriority {
		add(fmt.Sprintf("polls_priority_%d", i), int64(c))
	}
	add("aging_promotions", int64(events.Metrics.AgingPromotions))
	add("preemptions", int64(proc.Preemptions))
	add("tlb_shootdowns", int64(tlb.Shootdowns))

	return p
}

/// WriteFile snapshots the kernel's counters and writes them to path in
/// pprof's gzipped wire format, the same file `go tool pprof` reads.
func WriteFile(path string) error {
	p := Snapshot()
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("kprof: invalid profile: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("kprof: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := p.Write(f); err != nil {
		return fmt.Errorf("kprof: writing %s: %w", path, err)
	}
	return nil
}
