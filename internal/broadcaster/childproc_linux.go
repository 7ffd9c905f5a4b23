//go:build linux

package broadcaster

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureChildProcess asks the kernel to deliver SIGKILL to the
// transcoder child if this process dies before it does, so a crashed
// supervisor never leaves an orphaned ffmpeg behind. Setpgid isolates the
// child from signals sent to our own process group (e.g. Ctrl-C at a
// shared terminal), leaving stop() as the only way to kill it.
func configureChildProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: unix.SIGKILL,
	}
}
