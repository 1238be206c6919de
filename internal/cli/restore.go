package cli

import (
	"fmt"

	"github.com/plumetools/vmhelper/internal/bundle"
	"github.com/plumetools/vmhelper/internal/config"
	"github.com/plumetools/vmhelper/internal/machine"
	"github.com/plumetools/vmhelper/pkg/hypervisor"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <bundle-path> <restore-image>",
	Short: "Install macOS into an existing bundle from a restore image",
	Long: `Load an existing bundle and install the guest OS from the given
restore image (IPSW), preserving the bundle's machine identity. Refused if
the bundle has already completed a restore.`,
	Args: cobra.ExactArgs(2),
	RunE: runRestore,
}

func runRestore(cmd *cobra.Command, args []string) error {
	bundlePath, restoreImage := args[0], args[1]

	if pid, running := bundle.RunningPID(bundlePath); running {
		return fmt.Errorf("VM is already running (PID %d); cannot restore a running VM", pid)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	driver, err := hypervisor.NewDriver()
	if err != nil {
		return fmt.Errorf("create hypervisor driver: %w", err)
	}

	ctrl := machine.NewController(driver, machine.Options{
		StopGracePeriod:   cfg.StopGracePeriod,
		OnInstallProgress: printInstallProgress,
	})

	if err := ctrl.LoadAndBind(bundlePath); err != nil {
		return err
	}

	restore := stopOnInterrupt(ctrl)
	defer restore()

	if err := ctrl.Restore(restoreImage); err != nil {
		return err
	}
	fmt.Println("\nInstall complete")

	if err := ctrl.WaitForStop(); err != nil {
		return err
	}
	return nil
}
