package machine

import "errors"

var (
	// ErrConfigInvalid means the hypervisor rejected the assembled VM
	// configuration (unsupported hardware model, bad device combination).
	ErrConfigInvalid = errors.New("machine: hypervisor rejected configuration")

	// ErrInstallFailed means the restore source could not be loaded or the
	// hypervisor rejected the install.
	ErrInstallFailed = errors.New("machine: guest install failed")

	// ErrGuestError is a guest-reported runtime failure.
	ErrGuestError = errors.New("machine: guest reported an error")

	// ErrStateViolation means an operation was invoked outside its required
	// state.
	ErrStateViolation = errors.New("machine: operation not allowed in current state")
)
