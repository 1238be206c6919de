// Package hypervisor wraps the host virtualization framework behind a small
// driver interface. The real implementation uses macOS Virtualization.framework
// (see driver_darwin.go); other platforms get a stub that fails at construction.
package hypervisor

import "runtime"

// Driver is the interface to one virtual machine handle.
// A driver is bound to at most one VM for its entire lifetime.
type Driver interface {
	// DeriveIdentity inspects a restore image and mints a fresh identity
	// whose hardware model is the image's most capable supported
	// configuration. Does not require a bound VM.
	DeriveIdentity(restoreImagePath string) (Identity, error)

	// Bind builds and validates the hypervisor VM handle from cfg.
	// Must be called exactly once, before any other lifecycle call.
	Bind(cfg *VMConfig) error

	// Install provisions the guest OS from the restore image onto the bound
	// disk. Long-running; blocks until completion and reports fractional
	// progress in [0, 1] through progress (may be nil).
	Install(restoreImagePath string, progress func(float64)) error

	// CanStart reports whether the bound VM can be started.
	CanStart() bool

	// Start boots the bound VM.
	Start() error

	// RequestStop asks the guest to shut down gracefully. A true return only
	// means the request was delivered, not that the guest has stopped.
	RequestStop() (bool, error)

	// Stop forcefully stops the VM. Safe to issue on an already-stopping
	// guest.
	Stop() error

	// Events delivers guest-initiated notifications (stop, error). The
	// channel is valid after Bind and is closed when the VM reaches a
	// terminal state.
	Events() <-chan Event

	// RunDisplay presents the VM's display surface and blocks until the
	// window is closed. Must be called from the main goroutine.
	RunDisplay() error

	Info() Info
}

// EventKind identifies a guest-initiated notification.
type EventKind int

const (
	// EventGuestStopped means the guest shut down on its own schedule.
	EventGuestStopped EventKind = iota
	// EventGuestError means the guest hit a runtime failure; Event.Err is set.
	EventGuestError
)

// Event is a guest-initiated notification delivered on Events().
type Event struct {
	Kind EventKind
	Err  error
}

// Info contains driver metadata.
type Info struct {
	Name    string // "vz"
	Version string
	Arch    string // "arm64" or "amd64"
}

// SupportedPlatform returns true if the current platform has a hypervisor driver.
func SupportedPlatform() bool {
	return runtime.GOOS == "darwin"
}
