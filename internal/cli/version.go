package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the vmhelper version, overridable at build time.
var Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vmhelper %s (%s/%s)\n", Version, runtime.GOOS, runtime.GOARCH)
	},
}
