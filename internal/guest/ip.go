// Package guest provides host-side access to a running guest: IP discovery
// through the ARP table and command execution over SSH.
package guest

import (
	"errors"
	"fmt"
	"os/exec"
	"regexp"

	"github.com/plumetools/vmhelper/pkg/hypervisor"
)

// ErrNoARPEntry means the guest's MAC has not shown up in the host ARP table
// yet; the guest may still be booting or has no network activity.
var ErrNoARPEntry = errors.New("guest: no ARP entry for MAC address")

// arpEntry matches lines of `arp -a` output: "host (192.168.64.3) at
// a2:b0:4:... on bridge100 ...". Octets may lack leading zeros.
var arpEntry = regexp.MustCompile(`\(([0-9A-Fa-f.:]+)\) at ((?:[0-9A-Fa-f]{1,2}:){5}[0-9A-Fa-f]{1,2})`)

// LookupIP resolves the guest's IP address by scanning the host ARP table
// for its MAC address. The NAT network has no host-visible lease database,
// so the ARP cache is the only place the mapping appears.
func LookupIP(mac string) (string, error) {
	out, err := exec.Command("arp", "-a").Output()
	if err != nil {
		return "", fmt.Errorf("run arp: %w", err)
	}
	return findInARPTable(string(out), mac)
}

// findInARPTable scans arp -a output for the entry matching mac.
func findInARPTable(table, mac string) (string, error) {
	want, err := hypervisor.NormalizeMAC(mac)
	if err != nil {
		return "", err
	}

	for _, m := range arpEntry.FindAllStringSubmatch(table, -1) {
		got, err := hypervisor.NormalizeMAC(m[2])
		if err != nil {
			continue
		}
		if got == want {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoARPEntry, want)
}
