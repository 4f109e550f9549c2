//go:build windows

package supervisor

import "os"

// Windows has no process groups in the Unix sense; both paths terminate
// the process by handle.

func terminateGroup(pid int) error {
	return killGroup(pid)
}

func killGroup(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
