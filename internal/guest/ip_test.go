package guest

import (
	"errors"
	"testing"
)

// Typical macOS `arp -a` output; the guest's MAC shows up with unpadded
// octets, which must still match the canonical form from the descriptor.
const arpOutput = `router.local (192.168.64.1) at 3e:22:fb:1:2:aa on bridge100 ifscope [bridge]
? (192.168.64.3) at a2:b0:44:1e:c1:1 on bridge100 ifscope [bridge]
? (192.168.64.255) at ff:ff:ff:ff:ff:ff on bridge100 ifscope [bridge]
mdns.mcast.net (224.0.0.251) at 1:0:5e:0:0:fb on en0 ifscope permanent [ethernet]`

func TestFindInARPTable(t *testing.T) {
	tests := []struct {
		name    string
		mac     string
		want    string
		wantErr error
	}{
		{"canonical MAC", "a2:b0:44:1e:c1:01", "192.168.64.3", nil},
		{"uppercase MAC", "A2:B0:44:1E:C1:01", "192.168.64.3", nil},
		{"gateway entry", "3e:22:fb:01:02:aa", "192.168.64.1", nil},
		{"absent MAC", "aa:bb:cc:dd:ee:ff", "", ErrNoARPEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findInARPTable(arpOutput, tt.mac)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("findInARPTable = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("findInARPTable: %v", err)
			}
			if got != tt.want {
				t.Errorf("findInARPTable = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFindInARPTableBadMAC(t *testing.T) {
	if _, err := findInARPTable(arpOutput, "not-a-mac"); err == nil {
		t.Error("findInARPTable accepted a malformed MAC")
	}
}

func TestFindInARPTableEmptyTable(t *testing.T) {
	if _, err := findInARPTable("", "a2:b0:44:1e:c1:01"); !errors.Is(err, ErrNoARPEntry) {
		t.Errorf("findInARPTable = %v, want ErrNoARPEntry", err)
	}
}
