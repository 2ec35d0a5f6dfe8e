//go:build windows

package cargoproc

import "os/exec"

// setupProcessGroup is a no-op on Windows; killProcessGroup falls back to
// killing the direct child only, which is a reasonable approximation in
// the absence of job-object plumbing.
func setupProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
