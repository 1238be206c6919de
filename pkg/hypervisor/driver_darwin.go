//go:build darwin

package hypervisor

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"

	"github.com/Code-Hex/vz/v3"
)

// Display geometry for the Mac graphics device.
const (
	displayWidth  = 1920
	displayHeight = 1200
	displayPPI    = 80
)

// vzDriver implements Driver using macOS Virtualization.framework.
// All mutating calls are expected to arrive serialized (the controller's
// dispatch queue takes care of that); the driver itself does no locking.
type vzDriver struct {
	cfg    *VMConfig
	vm     *vz.VirtualMachine
	vmCfg  *vz.VirtualMachineConfiguration
	events chan Event
}

// NewDriver creates a new vz-based driver for macOS.
func NewDriver() (Driver, error) {
	return &vzDriver{
		events: make(chan Event, 2),
	}, nil
}

func (d *vzDriver) Info() Info {
	return Info{
		Name:    "vz",
		Version: "1.0.0",
		Arch:    runtime.GOARCH,
	}
}

func (d *vzDriver) DeriveIdentity(restoreImagePath string) (Identity, error) {
	img, err := vz.LoadMacOSRestoreImageFromPath(restoreImagePath)
	if err != nil {
		return Identity{}, fmt.Errorf("vzDriver: load restore image: %w", err)
	}

	req := img.MostFeaturefulSupportedConfiguration()
	if req == nil {
		return Identity{}, fmt.Errorf("vzDriver: restore image has no configuration supported on this host")
	}
	model := req.HardwareModel()
	if !model.Supported() {
		return Identity{}, ErrModelUnsupported
	}

	machineID, err := vz.NewMacMachineIdentifier()
	if err != nil {
		return Identity{}, fmt.Errorf("vzDriver: generate machine identifier: %w", err)
	}
	mac, err := vz.NewRandomLocallyAdministeredMACAddress()
	if err != nil {
		return Identity{}, fmt.Errorf("vzDriver: generate MAC address: %w", err)
	}

	return Identity{
		MachineIdentifier: machineID.DataRepresentation(),
		HardwareModel:     model.DataRepresentation(),
		MACAddress:        mac.String(),
	}, nil
}

func (d *vzDriver) Bind(cfg *VMConfig) error {
	if d.vm != nil {
		return ErrAlreadyBound
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	machineID, err := vz.NewMacMachineIdentifierWithData(cfg.Identity.MachineIdentifier)
	if err != nil {
		return fmt.Errorf("vzDriver: decode machine identifier: %w", err)
	}
	model, err := vz.NewMacHardwareModelWithData(cfg.Identity.HardwareModel)
	if err != nil {
		return fmt.Errorf("vzDriver: decode hardware model: %w", err)
	}
	if !model.Supported() {
		return ErrModelUnsupported
	}

	var aux *vz.MacAuxiliaryStorage
	if cfg.CreateNVRAM {
		aux, err = vz.NewMacAuxiliaryStorage(cfg.NVRAMPath, vz.WithCreatingStorage(model))
	} else {
		aux, err = vz.NewMacAuxiliaryStorage(cfg.NVRAMPath)
	}
	if err != nil {
		return fmt.Errorf("vzDriver: auxiliary storage: %w", err)
	}

	bootLoader, err := vz.NewMacOSBootLoader()
	if err != nil {
		return fmt.Errorf("vzDriver: create boot loader: %w", err)
	}

	vmCfg, err := vz.NewVirtualMachineConfiguration(bootLoader, cfg.CPUCount, cfg.RAMSize)
	if err != nil {
		return fmt.Errorf("vzDriver: create VM config: %w", err)
	}

	platform, err := vz.NewMacPlatformConfiguration(
		vz.WithMacAuxiliaryStorage(aux),
		vz.WithMacHardwareModel(model),
		vz.WithMacMachineIdentifier(machineID),
	)
	if err != nil {
		return fmt.Errorf("vzDriver: create platform config: %w", err)
	}
	vmCfg.SetPlatformVirtualMachineConfiguration(platform)

	// Graphics, keyboard and pointing device: needed both for rungui and for
	// the guest's first-boot setup assistant.
	graphics, err := vz.NewMacGraphicsDeviceConfiguration()
	if err != nil {
		return fmt.Errorf("vzDriver: create graphics device: %w", err)
	}
	display, err := vz.NewMacGraphicsDisplayConfiguration(displayWidth, displayHeight, displayPPI)
	if err != nil {
		return fmt.Errorf("vzDriver: create display config: %w", err)
	}
	graphics.SetDisplays(display)
	vmCfg.SetGraphicsDevicesVirtualMachineConfiguration([]vz.GraphicsDeviceConfiguration{graphics})

	keyboard, err := vz.NewUSBKeyboardConfiguration()
	if err != nil {
		return fmt.Errorf("vzDriver: create keyboard config: %w", err)
	}
	vmCfg.SetKeyboardsVirtualMachineConfiguration([]vz.KeyboardConfiguration{keyboard})

	pointing, err := vz.NewUSBScreenCoordinatePointingDeviceConfiguration()
	if err != nil {
		return fmt.Errorf("vzDriver: create pointing device config: %w", err)
	}
	vmCfg.SetPointingDevicesVirtualMachineConfiguration([]vz.PointingDeviceConfiguration{pointing})

	diskAttachment, err := vz.NewDiskImageStorageDeviceAttachment(cfg.DiskPath, false)
	if err != nil {
		return fmt.Errorf("vzDriver: create disk attachment: %w", err)
	}
	blockDevice, err := vz.NewVirtioBlockDeviceConfiguration(diskAttachment)
	if err != nil {
		return fmt.Errorf("vzDriver: create block device: %w", err)
	}
	vmCfg.SetStorageDevicesVirtualMachineConfiguration([]vz.StorageDeviceConfiguration{blockDevice})

	natAttachment, err := vz.NewNATNetworkDeviceAttachment()
	if err != nil {
		return fmt.Errorf("vzDriver: create NAT attachment: %w", err)
	}
	netConfig, err := vz.NewVirtioNetworkDeviceConfiguration(natAttachment)
	if err != nil {
		return fmt.Errorf("vzDriver: create network config: %w", err)
	}
	hwAddr, err := net.ParseMAC(cfg.Identity.MACAddress)
	if err != nil {
		return fmt.Errorf("vzDriver: parse MAC address: %w", err)
	}
	macAddr, err := vz.NewMACAddress(hwAddr)
	if err != nil {
		return fmt.Errorf("vzDriver: create MAC address: %w", err)
	}
	netConfig.SetMACAddress(macAddr)
	vmCfg.SetNetworkDevicesVirtualMachineConfiguration([]*vz.VirtioNetworkDeviceConfiguration{netConfig})

	ok, err := vmCfg.Validate()
	if err != nil {
		return fmt.Errorf("vzDriver: invalid configuration: %w", err)
	}
	if !ok {
		return fmt.Errorf("vzDriver: configuration rejected by the framework")
	}

	vm, err := vz.NewVirtualMachine(vmCfg)
	if err != nil {
		return fmt.Errorf("vzDriver: create VM: %w", err)
	}

	d.cfg = cfg
	d.vmCfg = vmCfg
	d.vm = vm

	go d.watch()

	return nil
}

// watch forwards terminal state transitions as guest events. Runs until the
// VM reaches a terminal state, then closes the event channel.
func (d *vzDriver) watch() {
	for range d.vm.StateChangedNotify() {
		switch d.vm.State() {
		case vz.VirtualMachineStateStopped:
			d.events <- Event{Kind: EventGuestStopped}
			close(d.events)
			return
		case vz.VirtualMachineStateError:
			d.events <- Event{
				Kind: EventGuestError,
				Err:  fmt.Errorf("vzDriver: guest entered error state"),
			}
			close(d.events)
			return
		}
	}
}

func (d *vzDriver) Install(restoreImagePath string, progress func(float64)) error {
	if d.vm == nil {
		return ErrNotBound
	}

	installer, err := vz.NewMacOSInstaller(d.vm, restoreImagePath)
	if err != nil {
		return fmt.Errorf("vzDriver: create installer: %w", err)
	}

	if progress != nil {
		go func() {
			ticker := time.NewTicker(500 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-installer.Done():
					return
				case <-ticker.C:
					progress(installer.FractionCompleted())
				}
			}
		}()
	}

	if err := installer.Install(context.Background()); err != nil {
		return fmt.Errorf("vzDriver: install: %w", err)
	}
	return nil
}

func (d *vzDriver) CanStart() bool {
	if d.vm == nil {
		return false
	}
	return d.vm.CanStart()
}

func (d *vzDriver) Start() error {
	if d.vm == nil {
		return ErrNotBound
	}
	if err := d.vm.Start(); err != nil {
		return fmt.Errorf("vzDriver: start VM: %w", err)
	}
	return nil
}

func (d *vzDriver) RequestStop() (bool, error) {
	if d.vm == nil {
		return false, ErrNotBound
	}
	if !d.vm.CanRequestStop() {
		return false, nil
	}
	ok, err := d.vm.RequestStop()
	if err != nil {
		return false, fmt.Errorf("vzDriver: request stop: %w", err)
	}
	return ok, nil
}

func (d *vzDriver) Stop() error {
	if d.vm == nil {
		return ErrNotBound
	}
	if err := d.vm.Stop(); err != nil {
		return fmt.Errorf("vzDriver: force stop: %w", err)
	}
	return nil
}

func (d *vzDriver) Events() <-chan Event {
	return d.events
}

func (d *vzDriver) RunDisplay() error {
	if d.vm == nil {
		return ErrNotBound
	}
	if err := d.vm.StartGraphicApplication(displayWidth, displayHeight); err != nil {
		return fmt.Errorf("vzDriver: run display: %w", err)
	}
	return nil
}
