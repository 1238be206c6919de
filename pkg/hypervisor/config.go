package hypervisor

// VMConfig holds everything needed to bind one VM handle.
type VMConfig struct {
	// CPUCount is the number of virtual CPUs.
	CPUCount uint

	// RAMSize is the amount of memory in bytes.
	RAMSize uint64

	// DiskPath is the path to the raw disk image.
	DiskPath string

	// NVRAMPath is the path to the auxiliary storage (firmware/NVRAM) image.
	NVRAMPath string

	// CreateNVRAM initializes the auxiliary storage for Identity's hardware
	// model instead of opening an existing image. Set only on first bind of
	// a freshly created bundle.
	CreateNVRAM bool

	// Identity is the persisted machine identity to bind with.
	Identity Identity
}

const minRAMSize = 512 * 1024 * 1024

// Validate performs basic validation before the hypervisor sees the config.
func (c *VMConfig) Validate() error {
	if c.CPUCount < 1 {
		return ErrInvalidCPUCount
	}
	if c.RAMSize < minRAMSize {
		return ErrInsufficientMemory
	}
	if c.DiskPath == "" {
		return ErrMissingDisk
	}
	if c.NVRAMPath == "" {
		return ErrMissingNVRAM
	}
	return c.Identity.Validate()
}
