package cli

import (
	"fmt"
	"strconv"

	"github.com/plumetools/vmhelper/internal/bundle"
	"github.com/plumetools/vmhelper/internal/config"
	"github.com/plumetools/vmhelper/internal/machine"
	"github.com/plumetools/vmhelper/pkg/hypervisor"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <bundle-path> <restore-image> [cpu-count] [ram-size] [disk-size]",
	Short: "Create a new VM bundle and install macOS from a restore image",
	Long: `Create a new VM bundle at the given path, derive a fresh machine
identity from the restore image (IPSW), and install the guest OS.

CPU count, RAM size and disk size default to the configured values when
omitted. Sizes accept human-readable forms like 8GB or 100GB as well as
plain byte counts. The command fails if the bundle path already exists.`,
	Args: cobra.RangeArgs(2, 5),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	bundlePath, restoreImage := args[0], args[1]

	bcfg := bundle.Config{CPUCount: cfg.CPUs}
	if bcfg.RAMSize, err = cfg.RAMBytes(); err != nil {
		return err
	}
	if bcfg.DiskSize, err = cfg.DiskBytes(); err != nil {
		return err
	}

	if len(args) > 2 {
		cpus, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil || cpus < 1 {
			return fmt.Errorf("invalid cpu count %q", args[2])
		}
		bcfg.CPUCount = uint(cpus)
	}
	if len(args) > 3 {
		if bcfg.RAMSize, err = config.ParseSize(args[3]); err != nil {
			return err
		}
	}
	if len(args) > 4 {
		if bcfg.DiskSize, err = config.ParseSize(args[4]); err != nil {
			return err
		}
	}

	driver, err := hypervisor.NewDriver()
	if err != nil {
		return fmt.Errorf("create hypervisor driver: %w", err)
	}

	ctrl := machine.NewController(driver, machine.Options{
		StopGracePeriod:   cfg.StopGracePeriod,
		OnInstallProgress: printInstallProgress,
	})

	fmt.Printf("Creating bundle at %s\n", bundlePath)
	if err := ctrl.CreateAndBind(bundlePath, restoreImage, bcfg); err != nil {
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
