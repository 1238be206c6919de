package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Run marker: a .vm-running file holding the owner PID. It lets other
// processes (and later invocations of this tool) detect that the bundle's VM
// is live without talking to the hypervisor.

// MarkRunning writes the run marker with the current PID.
func (b *Bundle) MarkRunning() error {
	path := filepath.Join(b.path, runMarkerName)
	return os.WriteFile(path, []byte(fmt.Sprintf("%d", os.Getpid())), 0644)
}

// ClearRunMarker removes the run marker. Missing marker is not an error.
func (b *Bundle) ClearRunMarker() error {
	err := os.Remove(filepath.Join(b.path, runMarkerName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run marker: %w", err)
	}
	return nil
}

// RunningPID returns the PID in the run marker if the marker exists and that
// process is still alive. A stale marker (dead owner) reads as not running.
func RunningPID(bundlePath string) (int, bool) {
	data, err := os.ReadFile(filepath.Join(bundlePath, runMarkerName))
	if err != nil {
		return 0, false
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}
