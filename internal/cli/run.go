package cli

import (
	"fmt"

	"github.com/plumetools/vmhelper/internal/bundle"
	"github.com/plumetools/vmhelper/internal/config"
	"github.com/plumetools/vmhelper/internal/machine"
	"github.com/plumetools/vmhelper/pkg/hypervisor"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <bundle-path>",
	Short: "Run the VM headless until it stops",
	Long: `Boot the VM from an existing bundle and block until the guest
shuts down, fails, or an interrupt requests a stop.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var runguiCmd = &cobra.Command{
	Use:   "rungui <bundle-path>",
	Short: "Run the VM with a display window",
	Long: `Boot the VM from an existing bundle and present its display in a
window. Closing the window shuts the VM down.`,
	Args: cobra.ExactArgs(1),
	RunE: runRunGUI,
}

// startFromBundle performs the shared load-and-boot sequence for the run
// modes and returns the controller and its driver.
func startFromBundle(bundlePath string) (*machine.Controller, hypervisor.Driver, error) {
	if pid, running := bundle.RunningPID(bundlePath); running {
		return nil, nil, fmt.Errorf("VM is already running (PID %d)", pid)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	driver, err := hypervisor.NewDriver()
	if err != nil {
		return nil, nil, fmt.Errorf("create hypervisor driver: %w", err)
	}

	ctrl := machine.NewController(driver, machine.Options{
		StopGracePeriod: cfg.StopGracePeriod,
	})

	if err := ctrl.LoadAndBind(bundlePath); err != nil {
		return nil, nil, err
	}
	if err := ctrl.Start(); err != nil {
		return nil, nil, err
	}
	return ctrl, driver, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	ctrl, _, err := startFromBundle(args[0])
	if err != nil {
		return err
	}

	restore := stopOnInterrupt(ctrl)
	defer restore()

	fmt.Println("VM running; interrupt to stop")
	if err := ctrl.WaitForStop(); err != nil {
		return err
	}
	return nil
}

func runRunGUI(cmd *cobra.Command, args []string) error {
	ctrl, driver, err := startFromBundle(args[0])
	if err != nil {
		return err
	}

	restore := stopOnInterrupt(ctrl)
	defer restore()

	// Blocks until the window is closed. The VM keeps running underneath,
	// so closing the window triggers the stop sequence.
	if err := driver.RunDisplay(); err != nil {
		return err
	}

	if err := ctrl.Stop(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: stop failed: %v\n", err)
	}
	if err := ctrl.WaitForStop(); err != nil {
		return err
	}
	return nil
}
