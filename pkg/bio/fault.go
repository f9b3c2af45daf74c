package bio

import "sync"

// FaultAction controls what happens when a [Fault] failpoint triggers.
type FaultAction int

const (
	// FaultDropWrite silently discards the triggering WriteAt call: it
	// reports success to the caller but the bytes never reach the
	// underlying Device. This simulates a write that was buffered by the
	// OS and never made it to stable storage before a crash. The NEXT Flush
	// call then panics.
	FaultDropWrite FaultAction = iota

	// FaultPanicOnFlush lets the triggering write reach the underlying
	// Device and makes the NEXT Flush call panic instead of returning,
	// simulating a process crash at the barrier.
	FaultPanicOnFlush
)

// FaultConfig configures [Fault] crash injection.
//
// This is modeled directly on pkg/fs.CrashFailpointConfig: trigger on the
// Nth eligible write (1-indexed), then apply Action. spec.md §8 scenario 6
// calls for exactly this: "on the N-th write, silently drop the write and
// then flush panics."
type FaultConfig struct {
	// AfterWrite triggers the failpoint on the AfterWrite'th WriteAt call
	// (1-indexed). Zero disables write-count triggering.
	AfterWrite uint64

	// Action controls what happens when the failpoint triggers.
	Action FaultAction
}

// Fault wraps a [Device] and injects a single deterministic failure,
// intended for exercising spec.md §8 scenario 6 (crash safety): for a given
// N, drop the Nth write and panic on the next flush, then reopen the file
// and confirm the previously-committed tree is intact.
type Fault struct {
	dev Device
	cfg FaultConfig

	mu        sync.Mutex
	writes    uint64
	triggered bool
	armed     bool // true from the trigger until the next Flush
}

// NewFault wraps dev with the given [FaultConfig].
func NewFault(dev Device, cfg FaultConfig) *Fault {
	return &Fault{dev: dev, cfg: cfg}
}

func (f *Fault) ReadAt(buf []byte, offset uint64) error {
	return f.dev.ReadAt(buf, offset)
}

func (f *Fault) WriteAt(buf []byte, offset uint64) error {
	f.mu.Lock()
	f.writes++

	hit := f.cfg.AfterWrite != 0 && f.writes == f.cfg.AfterWrite
	drop := hit && f.cfg.Action == FaultDropWrite
	if hit {
		f.triggered = true
		f.armed = true
	}
	f.mu.Unlock()

	if drop {
		// Report success without touching the underlying device: bytes are
		// "written" from the caller's point of view but never committed.
		return nil
	}

	return f.dev.WriteAt(buf, offset)
}

func (f *Fault) Resize(length uint64) error {
	return f.dev.Resize(length)
}

func (f *Fault) Size() (uint64, error) {
	return f.dev.Size()
}

func (f *Fault) Flush() error {
	f.mu.Lock()
	shouldPanic := f.armed
	f.armed = false
	f.mu.Unlock()

	if shouldPanic {
		panic("bio: simulated crash at flush barrier")
	}

	return f.dev.Flush()
}

func (f *Fault) Close() error {
	return f.dev.Close()
}

// Triggered reports whether the configured failpoint has fired.
func (f *Fault) Triggered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.triggered
}

var _ Device = (*Fault)(nil)
