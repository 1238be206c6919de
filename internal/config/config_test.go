package config

import (
	"runtime"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Point the file search away from any real user config.
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CPUs != uint(runtime.NumCPU()) {
		t.Errorf("CPUs = %d, want %d", cfg.CPUs, runtime.NumCPU())
	}
	if ram, err := cfg.RAMBytes(); err != nil || ram != 8<<30 {
		t.Errorf("RAMBytes = (%d, %v), want 8GB", ram, err)
	}
	if disk, err := cfg.DiskBytes(); err != nil || disk != 100<<30 {
		t.Errorf("DiskBytes = (%d, %v), want 100GB", disk, err)
	}
	if cfg.Username != "admin" {
		t.Errorf("Username = %q, want admin", cfg.Username)
	}
	if cfg.StopGracePeriod != 10*time.Second {
		t.Errorf("StopGracePeriod = %v, want 10s", cfg.StopGracePeriod)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("VMHELPER_CPUS", "2")
	t.Setenv("VMHELPER_RAM_SIZE", "4GB")
	t.Setenv("VMHELPER_STOP_GRACE_PERIOD", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.CPUs != 2 {
		t.Errorf("CPUs = %d, want 2", cfg.CPUs)
	}
	if ram, err := cfg.RAMBytes(); err != nil || ram != 4<<30 {
		t.Errorf("RAMBytes = (%d, %v), want 4GB", ram, err)
	}
	if cfg.StopGracePeriod != 30*time.Second {
		t.Errorf("StopGracePeriod = %v, want 30s", cfg.StopGracePeriod)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1024", 1024, false},
		{"8GB", 8 << 30, false},
		{"512MB", 512 << 20, false},
		{"100GB", 100 << 30, false},
		{"", 0, true},
		{"lots", 0, true},
		{"-5GB", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSize(%q) = %d, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSize(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
