//go:build windows

package supervisor

import "os/exec"

// configureSysProcAttr is a no-op on Windows; process-group signaling is
// handled in signal_windows.go.
func configureSysProcAttr(cmd *exec.Cmd) {}
