package hypervisor

import "errors"

// Configuration errors
var (
	ErrInvalidCPUCount    = errors.New("hypervisor: CPU count must be at least 1")
	ErrInsufficientMemory = errors.New("hypervisor: memory must be at least 512MB")
	ErrMissingDisk        = errors.New("hypervisor: disk image path is required")
	ErrMissingNVRAM       = errors.New("hypervisor: nvram image path is required")
	ErrMissingIdentity    = errors.New("hypervisor: machine identity is incomplete")
	ErrModelUnsupported   = errors.New("hypervisor: hardware model not supported on this host")
)

// Runtime errors
var (
	ErrNotBound     = errors.New("hypervisor: VM not bound")
	ErrAlreadyBound = errors.New("hypervisor: VM already bound")
)

// Platform errors
var (
	ErrUnsupportedPlatform = errors.New("hypervisor: platform not supported")
)
