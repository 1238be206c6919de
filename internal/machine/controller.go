// Package machine implements the VM lifecycle controller: one controller
// owns one hypervisor handle, one serialized dispatch queue, and one
// terminal-stop latch, and is bound to exactly one bundle for its lifetime.
package machine

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/plumetools/vmhelper/internal/bundle"
	"github.com/plumetools/vmhelper/internal/dispatch"
	"github.com/plumetools/vmhelper/pkg/hypervisor"
)

// DefaultStopGracePeriod is how long a graceful stop request gets before the
// controller escalates to a forceful stop.
const DefaultStopGracePeriod = 10 * time.Second

// Options configures a controller.
type Options struct {
	// StopGracePeriod overrides DefaultStopGracePeriod when positive.
	StopGracePeriod time.Duration

	// OnInstallProgress, when set, receives fractional restore progress
	// in [0, 1]. Called from the dispatch worker; must not block on the
	// controller.
	OnInstallProgress func(float64)
}

// Controller drives one VM through create/load, restore, start and stop.
// Every hypervisor-mutating call is funneled through a single-worker
// dispatch queue, so operations are totally ordered and the driver never
// sees concurrent calls. Not reusable across VMs.
type Controller struct {
	driver hypervisor.Driver
	queue  *dispatch.Queue
	halted *dispatch.Latch
	grace  time.Duration

	onInstallProgress func(float64)

	mu        sync.Mutex
	state     State
	bundle    *bundle.Bundle
	stopTimer *time.Timer
}

// NewController creates a controller around an unbound driver.
func NewController(driver hypervisor.Driver, opts Options) *Controller {
	grace := opts.StopGracePeriod
	if grace <= 0 {
		grace = DefaultStopGracePeriod
	}
	return &Controller{
		driver:            driver,
		queue:             dispatch.NewQueue(),
		halted:            dispatch.NewLatch(),
		grace:             grace,
		onInstallProgress: opts.OnInstallProgress,
		state:             StateUnbound,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Bundle returns the bound bundle, or nil before binding completes.
func (c *Controller) Bundle() *bundle.Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bundle
}

// CreateAndBind creates a new bundle at bundlePath, deriving a fresh
// identity from the restore image, and binds the hypervisor handle to it.
func (c *Controller) CreateAndBind(bundlePath, restoreImagePath string, cfg bundle.Config) error {
	if err := c.requireState(StateUnbound); err != nil {
		return err
	}

	identity, err := dispatch.Call(c.queue, func(p *dispatch.Promise[hypervisor.Identity]) {
		id, err := c.driver.DeriveIdentity(restoreImagePath)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(id)
	})
	if err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	b, err := bundle.Create(bundlePath, identity, cfg)
	if err != nil {
		c.fail()
		return err
	}

	return c.bind(b)
}

// LoadAndBind loads the bundle at bundlePath and rebuilds the same device
// configuration deterministically from the stored identity.
func (c *Controller) LoadAndBind(bundlePath string) error {
	if err := c.requireState(StateUnbound); err != nil {
		return err
	}

	b, err := bundle.Load(bundlePath)
	if err != nil {
		c.fail()
		return err
	}

	return c.bind(b)
}

// bind builds the hypervisor handle from the bundle and transitions to
// StateBound. On validation failure the controller is Failed.
func (c *Controller) bind(b *bundle.Bundle) error {
	cfg := &hypervisor.VMConfig{
		CPUCount:    b.CPUCount,
		RAMSize:     b.RAMSize,
		DiskPath:    b.DiskPath(),
		NVRAMPath:   b.NVRAMPath(),
		CreateNVRAM: !b.NVRAMExists(),
		Identity:    b.Identity,
	}

	_, err := dispatch.Call(c.queue, func(p *dispatch.Promise[struct{}]) {
		if err := c.driver.Bind(cfg); err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(struct{}{})
	})
	if err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}

	c.mu.Lock()
	c.bundle = b
	c.state = StateBound
	c.mu.Unlock()

	go c.pumpEvents()
	return nil
}

// pumpEvents forwards guest-initiated notifications into the terminal latch.
// Runs on its own goroutine from bind until the driver closes the channel;
// it never waits on the dispatch queue.
func (c *Controller) pumpEvents() {
	for ev := range c.driver.Events() {
		switch ev.Kind {
		case hypervisor.EventGuestStopped:
			c.halt(nil)
		case hypervisor.EventGuestError:
			c.halt(fmt.Errorf("%w: %v", ErrGuestError, ev.Err))
		}
	}
}

// Restore installs the guest OS from the restore image onto the bound disk.
// Blocks until the hypervisor reports completion or failure. Rejected with
// ErrStateViolation if the bundle already completed a restore.
func (c *Controller) Restore(restoreImagePath string) error {
	c.mu.Lock()
	if c.state != StateBound {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: restore requires %s, controller is %s", ErrStateViolation, StateBound, state)
	}
	if c.bundle.Installed {
		c.mu.Unlock()
		return fmt.Errorf("%w: bundle has already been restored", ErrStateViolation)
	}
	c.mu.Unlock()

	_, err := dispatch.Call(c.queue, func(p *dispatch.Promise[struct{}]) {
		if err := c.driver.Install(restoreImagePath, c.onInstallProgress); err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(struct{}{})
	})
	if err != nil {
		c.fail()
		return fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	c.mu.Lock()
	b := c.bundle
	b.Installed = true
	c.mu.Unlock()

	if err := b.Save(); err != nil {
		return fmt.Errorf("record restore completion: %w", err)
	}
	return nil
}

// Start boots the VM. If the hypervisor reports the handle cannot be started
// this is a no-op with a warning, not an error.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state != StateBound {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: start requires %s, controller is %s", ErrStateViolation, StateBound, state)
	}
	c.state = StateStarting
	c.mu.Unlock()

	started, err := dispatch.Call(c.queue, func(p *dispatch.Promise[bool]) {
		if !c.driver.CanStart() {
			p.Resolve(false)
			return
		}
		if err := c.driver.Start(); err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(true)
	})
	if err != nil {
		c.fail()
		return fmt.Errorf("start VM: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.terminal() {
		// The guest already halted while the start call was in flight; the
		// terminal state is the final word.
		return nil
	}
	if !started {
		fmt.Fprintf(os.Stderr, "Warning: hypervisor reports the VM cannot be started; ignoring\n")
		c.state = StateBound
		return nil
	}
	c.state = StateRunning

	if err := c.bundle.MarkRunning(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not write run marker: %v\n", err)
	}
	return nil
}

// Stop requests a graceful guest shutdown, then forces a stop after the
// grace period. Idempotent: a second call while a stop is outstanding is a
// no-op, and calling it after the VM halted is also a no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	switch {
	case c.state == StateStopping || c.state.terminal():
		c.mu.Unlock()
		return nil
	case c.state != StateRunning:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: stop requires %s, controller is %s", ErrStateViolation, StateRunning, state)
	}
	c.state = StateStopping

	// Escalate to a forceful stop once the grace period expires. The
	// host-level stop is safe to issue even on an already-stopping guest;
	// whichever path halts the guest first wins and the timer is cancelled
	// when the terminal latch trips.
	c.stopTimer = time.AfterFunc(c.grace, func() {
		c.queue.Submit(func() {
			if c.halted.Tripped() {
				return
			}
			if err := c.driver.Stop(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: force stop failed: %v\n", err)
			}
		})
	})
	c.mu.Unlock()

	c.queue.Submit(func() {
		ok, err := c.driver.RequestStop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: graceful stop request failed: %v\n", err)
		} else if !ok {
			fmt.Fprintf(os.Stderr, "Warning: guest does not accept stop requests; waiting for forceful stop\n")
		}
	})
	return nil
}

// WaitForStop blocks until the VM reaches a stopped or failed state, however
// that happens: Stop() completing, a guest-initiated shutdown, or a guest
// error. Callable any number of times from any goroutine; returns the
// terminal cause (nil for a clean stop).
func (c *Controller) WaitForStop() error {
	return c.halted.Wait()
}

// halt records the terminal state and trips the latch. First cause wins;
// late calls are no-ops.
func (c *Controller) halt(cause error) {
	c.mu.Lock()
	if c.stopTimer != nil {
		c.stopTimer.Stop()
		c.stopTimer = nil
	}
	if !c.state.terminal() {
		if cause != nil {
			c.state = StateFailed
		} else {
			c.state = StateStopped
		}
	}
	b := c.bundle
	c.mu.Unlock()

	if b != nil {
		if err := b.ClearRunMarker(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}
	c.halted.Trip(cause)
}

func (c *Controller) fail() {
	c.mu.Lock()
	if !c.state.terminal() {
		c.state = StateFailed
	}
	c.mu.Unlock()
}

func (c *Controller) requireState(want State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != want {
		return fmt.Errorf("%w: requires %s, controller is %s", ErrStateViolation, want, c.state)
	}
	return nil
}
