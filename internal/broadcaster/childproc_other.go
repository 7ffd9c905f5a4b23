//go:build !linux

package broadcaster

import (
	"os/exec"
	"syscall"
)

// configureChildProcess isolates the child into its own process group.
// Pdeathsig has no portable equivalent outside Linux, so on other
// platforms a crashed supervisor relies on stop()'s explicit kill instead
// of kernel-delivered cleanup.
func configureChildProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
