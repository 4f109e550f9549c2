//go:build !windows

package supervisor

import "syscall"

// terminateGroup asks the server's process group to exit.
func terminateGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// killGroup forcibly terminates the server's process group.
func killGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
