// Package config provides defaults for bundle creation and runtime knobs,
// loaded from an optional config file and VMHELPER_* environment variables.
// Command-line arguments always take precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/spf13/viper"
)

// Config holds all vmhelper configuration.
type Config struct {
	// CPUs is the default number of virtual CPUs for new bundles.
	CPUs uint

	// RAMSize is the default RAM for new bundles, human-readable ("8GB").
	RAMSize string

	// DiskSize is the default disk size for new bundles ("100GB").
	DiskSize string

	// Username is the guest login used by the shell subcommand.
	Username string

	// SSHKeyPath is the private key for guest SSH access. Empty means
	// <bundle>/../id_ed25519, where external tooling drops the key.
	SSHKeyPath string

	// StopGracePeriod is how long a graceful shutdown request gets before
	// the VM is stopped forcefully.
	StopGracePeriod time.Duration
}

// Load reads configuration from file, environment, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("cpus", runtime.NumCPU())
	v.SetDefault("ram_size", "8GB")
	v.SetDefault("disk_size", "100GB")
	v.SetDefault("username", "admin")
	v.SetDefault("ssh_key_path", "")
	v.SetDefault("stop_grace_period", "10s")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}
	v.SetEnvPrefix("VMHELPER")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		CPUs:            v.GetUint("cpus"),
		RAMSize:         v.GetString("ram_size"),
		DiskSize:        v.GetString("disk_size"),
		Username:        v.GetString("username"),
		SSHKeyPath:      v.GetString("ssh_key_path"),
		StopGracePeriod: v.GetDuration("stop_grace_period"),
	}, nil
}

// RAMBytes parses the configured RAM size.
func (c *Config) RAMBytes() (uint64, error) {
	return ParseSize(c.RAMSize)
}

// DiskBytes parses the configured disk size.
func (c *Config) DiskBytes() (uint64, error) {
	return ParseSize(c.DiskSize)
}

// ParseSize parses a human-readable byte size ("8GB", "512MB", or a bare
// byte count).
func ParseSize(s string) (uint64, error) {
	var size datasize.ByteSize
	if err := size.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return size.Bytes(), nil
}

// configDir returns the platform config directory for vmhelper.
// macOS: ~/Library/Application Support/vmhelper
// elsewhere: ~/.config/vmhelper (or XDG_CONFIG_HOME)
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "vmhelper"), nil
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "vmhelper"), nil
		}
		return filepath.Join(home, ".config", "vmhelper"), nil
	}
}
