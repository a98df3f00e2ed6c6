//go:build !windows

package capture

import (
	"os/exec"
	"syscall"
)

// detach moves the recorder into its own process group so terminal signals
// aimed at the foreground job do not reach it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
