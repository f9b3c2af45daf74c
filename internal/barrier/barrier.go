// Package barrier implements the write-ordering discipline from spec.md
// §4.7: a single boolean flag controls whether a "sync point" turns into a
// real [bio.Device.Flush] call. Both the allocator and the B-tree engine
// share one [Controller] instance so that toggling the barrier off (for a
// benchmarking mode) affects every durability point in the database
// uniformly.
package barrier

import "github.com/calvinalkan/redbtree/pkg/bio"

// Controller decides whether a sync point actually calls through to the
// underlying [bio.Device].
//
// A Controller returned by [New] starts with the barrier enabled, the
// default. The zero value has the barrier disabled and no device.
type Controller struct {
	dev     bio.Device
	enabled bool
}

// New returns a Controller with the barrier enabled, flushing dev on
// every call to [Controller.Flush].
func New(dev bio.Device) *Controller {
	return &Controller{dev: dev, enabled: true}
}

// Flush materializes a sync point: if the barrier is enabled it calls
// through to the underlying [bio.Device.Flush]; otherwise it is a no-op and
// crash consistency is forfeited for that sync point, per spec.md §4.7.
func (c *Controller) Flush() error {
	if !c.enabled {
		return nil
	}

	return c.dev.Flush()
}

// SetBarrier enables or disables the barrier for all subsequent [Controller.Flush] calls.
func (c *Controller) SetBarrier(on bool) {
	c.enabled = on
}

// Enabled reports the current barrier state.
func (c *Controller) Enabled() bool {
	return c.enabled
}
