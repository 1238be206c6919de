package hypervisor

import (
	"fmt"
	"net"
	"strings"
)

// Identity is the immutable triple a VM must retain across restarts. The two
// binary tokens are opaque blobs produced by the hypervisor; the MAC address
// is kept in its textual colon-hex form.
//
// Once persisted in a bundle these values are never regenerated: the guest's
// notion of machine identity is derived from them.
type Identity struct {
	// MachineIdentifier is the opaque token the guest OS uses to recognize
	// this VM as the same machine across restarts.
	MachineIdentifier []byte

	// HardwareModel constrains which guest OS builds may boot.
	HardwareModel []byte

	// MACAddress is the guest's link-layer address, normalized colon-hex.
	MACAddress string
}

// Validate reports whether the identity is complete and well-formed.
func (id Identity) Validate() error {
	if len(id.MachineIdentifier) == 0 || len(id.HardwareModel) == 0 {
		return ErrMissingIdentity
	}
	if _, err := net.ParseMAC(id.MACAddress); err != nil {
		return fmt.Errorf("%w: bad MAC address %q", ErrMissingIdentity, id.MACAddress)
	}
	return nil
}

// NormalizeMAC canonicalizes a colon-separated MAC address: each octet is
// padded to two lowercase hex digits. Some tools (notably arp) print octets
// without leading zeros.
func NormalizeMAC(mac string) (string, error) {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return "", fmt.Errorf("hypervisor: malformed MAC address %q", mac)
	}
	for i, p := range parts {
		if len(p) == 1 {
			p = "0" + p
		}
		parts[i] = strings.ToLower(p)
	}
	out := strings.Join(parts, ":")
	if _, err := net.ParseMAC(out); err != nil {
		return "", fmt.Errorf("hypervisor: malformed MAC address %q", mac)
	}
	return out, nil
}
