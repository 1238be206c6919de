package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/plumetools/vmhelper/internal/bundle"
	"github.com/plumetools/vmhelper/internal/config"
	"github.com/plumetools/vmhelper/internal/guest"
	"github.com/spf13/cobra"
)

var ipCmd = &cobra.Command{
	Use:   "ip <bundle-path>",
	Short: "Print the running VM's IP address",
	Long: `Resolve the VM's IP address by looking up its persisted MAC
address in the host ARP table. The VM must be running and have produced
some network traffic for an entry to exist.`,
	Args: cobra.ExactArgs(1),
	RunE: runIP,
}

var shellCmd = &cobra.Command{
	Use:   "shell <bundle-path> <command...>",
	Short: "Run a command in the running VM over SSH",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runShell,
}

func runIP(cmd *cobra.Command, args []string) error {
	b, err := bundle.Load(args[0])
	if err != nil {
		return err
	}

	ip, err := guest.LookupIP(b.Identity.MACAddress)
	if err != nil {
		return err
	}
	fmt.Println(ip)
	return nil
}

func runShell(cmd *cobra.Command, args []string) error {
	bundlePath := args[0]
	command := strings.Join(args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	b, err := bundle.Load(bundlePath)
	if err != nil {
		return err
	}

	ip, err := guest.LookupIP(b.Identity.MACAddress)
	if err != nil {
		return err
	}

	keyPath := cfg.SSHKeyPath
	if keyPath == "" {
		// External tooling keeps the key next to the bundle.
		keyPath = filepath.Join(filepath.Dir(bundlePath), "id_ed25519")
	}

	client := &guest.Client{
		Addr:    ip,
		User:    cfg.Username,
		KeyPath: keyPath,
	}
	return client.Run(command, os.Stdout, os.Stderr)
}
