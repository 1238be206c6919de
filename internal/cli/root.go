// Package cli provides the command-line interface for vmhelper: one run
// mode is chosen per process from the subcommand, and each mode is a fixed
// sequence of controller calls.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/plumetools/vmhelper/internal/machine"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vmhelper",
	Short: "vmhelper - create and run macOS VM bundles",
	Long: `vmhelper manages the lifecycle of a single persisted macOS virtual
machine: creating a bundle from a restore image (IPSW), reinstalling the
guest OS, and running it headless or with a display window.

A bundle is a directory holding the VM's disk image, NVRAM image, and
config.json identity descriptor.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runguiCmd)
	rootCmd.AddCommand(ipCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(versionCmd)
}

// stopOnInterrupt arranges for the first SIGINT/SIGTERM to request a
// graceful VM stop; the caller is expected to be blocked in WaitForStop.
// Repeated signals while the stop is in flight are ignored.
func stopOnInterrupt(ctrl *machine.Controller) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var stopOnce sync.Once
	go func() {
		for range sigCh {
			stopOnce.Do(func() {
				fmt.Fprintln(os.Stderr, "\nStopping VM...")
				if err := ctrl.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: stop failed: %v\n", err)
				}
			})
		}
	}()

	return func() { signal.Stop(sigCh) }
}

// printInstallProgress renders restore progress on one line.
func printInstallProgress(frac float64) {
	fmt.Printf("\rInstalling macOS: %3.0f%%", frac*100)
}
