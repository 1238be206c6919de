package hypervisor

import (
	"errors"
	"testing"
)

func TestNormalizeMAC(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"already canonical", "a2:b0:44:1e:c1:01", "a2:b0:44:1e:c1:01", false},
		{"uppercase", "A2:B0:44:1E:C1:01", "a2:b0:44:1e:c1:01", false},
		{"unpadded octets", "a2:0:ee:5:c1:1", "a2:00:ee:05:c1:01", false},
		{"too few octets", "a2:b0:44:1e:c1", "", true},
		{"too many octets", "a2:b0:44:1e:c1:01:02", "", true},
		{"non-hex octet", "a2:b0:44:zz:c1:01", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeMAC(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NormalizeMAC(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeMAC(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeMAC(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIdentityValidate(t *testing.T) {
	valid := Identity{
		MachineIdentifier: []byte("mid"),
		HardwareModel:     []byte("model"),
		MACAddress:        "a2:b0:44:1e:c1:01",
	}

	tests := []struct {
		name   string
		mutate func(id *Identity)
		ok     bool
	}{
		{"complete", func(id *Identity) {}, true},
		{"missing machine identifier", func(id *Identity) { id.MachineIdentifier = nil }, false},
		{"missing hardware model", func(id *Identity) { id.HardwareModel = nil }, false},
		{"bad MAC", func(id *Identity) { id.MACAddress = "bogus" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := valid
			tt.mutate(&id)
			err := id.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrMissingIdentity) {
				t.Errorf("Validate() = %v, want ErrMissingIdentity", err)
			}
		})
	}
}

func TestVMConfigValidate(t *testing.T) {
	valid := func() *VMConfig {
		return &VMConfig{
			CPUCount:  4,
			RAMSize:   4 << 30,
			DiskPath:  "/bundle/disk.img",
			NVRAMPath: "/bundle/nvram.img",
			Identity: Identity{
				MachineIdentifier: []byte("mid"),
				HardwareModel:     []byte("model"),
				MACAddress:        "a2:b0:44:1e:c1:01",
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *VMConfig)
		want   error
	}{
		{"zero CPUs", func(c *VMConfig) { c.CPUCount = 0 }, ErrInvalidCPUCount},
		{"tiny RAM", func(c *VMConfig) { c.RAMSize = 64 << 20 }, ErrInsufficientMemory},
		{"no disk", func(c *VMConfig) { c.DiskPath = "" }, ErrMissingDisk},
		{"no nvram", func(c *VMConfig) { c.NVRAMPath = "" }, ErrMissingNVRAM},
		{"no identity", func(c *VMConfig) { c.Identity = Identity{} }, ErrMissingIdentity},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}
