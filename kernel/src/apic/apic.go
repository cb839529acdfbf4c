// Package apic simulates the per-core local APIC: timer calibration,
// periodic/one-shot tick delivery, end-of-interrupt, and inter-processor
// interrupts. Hosted, with no real APIC hardware to program, a
// LocalApic is a goroutine wrapped around a time.Ticker, and SendIPI is
// a direct call into whatever vector table interrupts.Init installed
// for the target core.
package apic

import "errors"
import "sync"
import "time"

/// CpuFrequencyHz is the periodic timer's tick rate, as if it were an
/// x2APIC configuration constant.
const CpuFrequencyHz = 100

/// TickInterval is the wall-clock period of one timer tick at
/// CpuFrequencyHz.
const TickInterval = time.Second / CpuFrequencyHz

/// MaxCores bounds how many local APICs this package tracks.
const MaxCores = 32

const (
	TimerVector    uint8 = 32
	ErrorVector    uint8 = 33
	SpuriousVector uint8 = 0xFF
)

var (
	ErrCalibrationFailed = errors.New("apic: timer calibration failed")
	ErrTimerOverflow     = errors.New("apic: timer program overflowed")
	ErrAlreadyInit       = errors.New("apic: core already initialized")
	ErrNoSuchCore        = errors.New("apic: no local apic for that core")
)

// hostedTicksPerMs stands in for calibrate_apic_timer's PIT-measured
// value. There's no PIT to race against in this tree, so calibration
// just returns a fixed, documented constant instead of measuring one.
const hostedTicksPerMs = 1_000_000

/// CalibrateTimer returns the ticks-per-millisecond the timer would use.
/// Always succeeds in this hosted build.
func CalibrateTimer() (uint32, error) {
	return hostedTicksPerMs, nil
}

/// LocalApic is one core's simulated APIC: a ticker driving its timer
/// vector and a handler to invoke on each tick and on IPI delivery.
type LocalApic struct {
	cpu int

	mu       sync.Mutex
	ticker   *time.Ticker
	stop     chan struct{}
	periodic bool

	onTimer func()
	onIPI   func(vector uint8)
	eoiN    uint64
}

var (
	coresMu sync.Mutex
	cores   [MaxCores]*LocalApic
)

/// Init brings up the local APIC for cpu. onTimer is invoked from a
/// dedicated goroutine on every timer tick; onIPI is invoked when
/// SendIPI targets this core. Either may be nil.
func Init(cpu int, onTimer func(), onIPI func(vector uint8)) (*LocalApic, error) {
	coresMu.Lock()
	defer coresMu.Unlock()
	if cpu < 0 || cpu >= MaxCores {
		return nil, ErrNoSuchCore
	}
	if cores[cpu] != nil {
		return nil, ErrAlreadyInit
	}
	a := &LocalApic{cpu: cpu, onTimer: onTimer, onIPI: onIPI}
	cores[cpu] = a
	return a, nil
}

/// Lookup returns the local APIC previously installed for cpu, if any.
func Lookup(cpu int) (*LocalApic, bool) {
	coresMu.Lock()
	defer coresMu.Unlock()
	if cpu < 0 || cpu >= MaxCores || cores[cpu] == nil {
		return nil, false
	}
	return cores[cpu], true
}

/// ConfigureTimer programs this core's timer. A periodic timer refires
/// every interval until StopTimer; a one-shot fires once.
func (a *LocalApic) ConfigureTimer(interval time.Duration, periodic bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	a.periodic = periodic
	stop := make(chan struct{})
	a.stop = stop
	if periodic {
		t := time.NewTicker(interval)
		a.ticker = t
		go a.pump(t.C, stop)
	} else {
		go a.pumpOnce(interval, stop)
	}
}

func (a *LocalApic) pump(c <-chan time.Time, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-c:
			if a.onTimer != nil {
				a.onTimer()
			}
		}
	}
}

func (a *LocalApic) pumpOnce(interval time.Duration, stop chan struct{}) {
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-stop:
	case <-timer.C:
		if a.onTimer != nil {
			a.onTimer()
		}
	}
}

func (a *LocalApic) stopLocked() {
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
}

/// StopTimer disables this core's timer.
func (a *LocalApic) StopTimer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

/// EOI signals end-of-interrupt; tracked only for diagnostics here since
/// there's no real interrupt controller to unmask.
func (a *LocalApic) EOI() {
	a.mu.Lock()
	a.eoiN++
	a.mu.Unlock()
}

/// EOICount reports how many EOIs this core has signaled, for tests.
func (a *LocalApic) EOICount() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eoiN
}

/// SendIPI delivers vector to target's registered IPI handler. Unlike
/// real hardware, delivery is synchronous with respect to the sender;
/// there's no delivery-status register to poll.
func SendIPI(vector uint8, target int) error {
	a, ok := Lookup(target)
	if !ok {
		return ErrNoSuchCore
	}
	a.mu.Lock()
	h := a.onIPI
	a.mu.Unlock()
	if h != nil {
		h(vector)
	}
	return nil
}
