// Package bundle reads and writes the on-disk directory holding one VM's
// persisted state: its raw disk image, its NVRAM (auxiliary storage) image,
// and the config.json descriptor combining identity and configuration.
package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/plumetools/vmhelper/pkg/hypervisor"
)

// Fixed file names inside a bundle directory.
const (
	DiskImageName  = "disk.img"
	NVRAMImageName = "nvram.img"
	ConfigName     = "config.json"

	runMarkerName = ".vm-running"
)

var (
	ErrExists   = errors.New("bundle: path already exists")
	ErrNotFound = errors.New("bundle: config.json not found")
	ErrCorrupt  = errors.New("bundle: config.json is corrupt")
)

// Config holds the values chosen at creation time. CPUCount and RAMSize are
// persisted and re-applied on every load; DiskSize only sizes the disk image
// at creation and is never re-validated.
type Config struct {
	CPUCount uint
	RAMSize  uint64
	DiskSize uint64
}

// Bundle is a loaded or freshly created bundle directory.
type Bundle struct {
	path string

	// Identity is immutable for the life of the bundle.
	Identity hypervisor.Identity

	CPUCount uint
	RAMSize  uint64

	// Installed records whether a restore has completed successfully.
	Installed bool

	// OSVersion and Arch are written into config.json by external tooling
	// after guest updates; preserved verbatim across Save.
	OSVersion string
	Arch      string
}

// descriptor is the on-disk form of config.json. Required fields are
// pointers so that absence is distinguishable from a zero value; the two
// binary identity tokens use encoding/json's base64 representation.
type descriptor struct {
	CPUCount          *uint   `json:"cpu_count"`
	RAMSize           *uint64 `json:"ram_size"`
	MachineIdentifier []byte  `json:"machine_identifier"`
	HardwareModel     []byte  `json:"hardware_model"`
	MACAddress        *string `json:"mac_address"`
	Installed         bool    `json:"installed,omitempty"`
	OSVersion         string  `json:"os_ver,omitempty"`
	Arch              string  `json:"arch,omitempty"`
}

// Create makes a new bundle directory at path: the directory tree, a sparse
// disk image of cfg.DiskSize bytes, and the descriptor. Fails with ErrExists
// if path already exists; the NVRAM image is initialized by the hypervisor
// on first bind (its format depends on the hardware model).
func Create(path string, id hypervisor.Identity, cfg Config) (*Bundle, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat bundle path: %w", err)
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create bundle directory: %w", err)
	}

	if err := createSparseImage(filepath.Join(path, DiskImageName), cfg.DiskSize); err != nil {
		return nil, fmt.Errorf("create disk image: %w", err)
	}

	b := &Bundle{
		path:     path,
		Identity: id,
		CPUCount: cfg.CPUCount,
		RAMSize:  cfg.RAMSize,
	}
	if err := b.Save(); err != nil {
		return nil, err
	}
	return b, nil
}

// Load reads the bundle at path. Fails with ErrNotFound if the descriptor is
// absent and ErrCorrupt if any required field is missing or malformed.
// Identity fields are never defaulted or regenerated.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(filepath.Join(path, ConfigName))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	switch {
	case d.CPUCount == nil || *d.CPUCount < 1:
		return nil, fmt.Errorf("%w: missing or invalid cpu_count", ErrCorrupt)
	case d.RAMSize == nil || *d.RAMSize == 0:
		return nil, fmt.Errorf("%w: missing or invalid ram_size", ErrCorrupt)
	case len(d.MachineIdentifier) == 0:
		return nil, fmt.Errorf("%w: missing machine_identifier", ErrCorrupt)
	case len(d.HardwareModel) == 0:
		return nil, fmt.Errorf("%w: missing hardware_model", ErrCorrupt)
	case d.MACAddress == nil:
		return nil, fmt.Errorf("%w: missing mac_address", ErrCorrupt)
	}

	// The stored MAC text is preserved verbatim so the descriptor
	// round-trips exactly; it only has to parse.
	if _, err := hypervisor.NormalizeMAC(*d.MACAddress); err != nil {
		return nil, fmt.Errorf("%w: invalid mac_address %q", ErrCorrupt, *d.MACAddress)
	}

	return &Bundle{
		path: path,
		Identity: hypervisor.Identity{
			MachineIdentifier: d.MachineIdentifier,
			HardwareModel:     d.HardwareModel,
			MACAddress:        *d.MACAddress,
		},
		CPUCount:  *d.CPUCount,
		RAMSize:   *d.RAMSize,
		Installed: d.Installed,
		OSVersion: d.OSVersion,
		Arch:      d.Arch,
	}, nil
}

// Save rewrites the descriptor. Idempotent; never touches the disk or NVRAM
// image contents.
func (b *Bundle) Save() error {
	d := descriptor{
		CPUCount:          &b.CPUCount,
		RAMSize:           &b.RAMSize,
		MachineIdentifier: b.Identity.MachineIdentifier,
		HardwareModel:     b.Identity.HardwareModel,
		MACAddress:        &b.Identity.MACAddress,
		Installed:         b.Installed,
		OSVersion:         b.OSVersion,
		Arch:              b.Arch,
	}

	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor: %w", err)
	}

	// Write atomically
	path := filepath.Join(b.path, ConfigName)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write descriptor: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Path returns the bundle directory path.
func (b *Bundle) Path() string { return b.path }

// DiskPath returns the path of the raw disk image.
func (b *Bundle) DiskPath() string { return filepath.Join(b.path, DiskImageName) }

// NVRAMPath returns the path of the auxiliary storage image.
func (b *Bundle) NVRAMPath() string { return filepath.Join(b.path, NVRAMImageName) }

// NVRAMExists reports whether the auxiliary storage image has been
// initialized yet.
func (b *Bundle) NVRAMExists() bool {
	_, err := os.Stat(b.NVRAMPath())
	return err == nil
}

func createSparseImage(path string, size uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Truncate creates a sparse file on Linux/macOS
	return f.Truncate(int64(size))
}
