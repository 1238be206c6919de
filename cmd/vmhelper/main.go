// Package main is the entry point for vmhelper.
package main

import (
	"fmt"
	"os"

	"github.com/plumetools/vmhelper/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
