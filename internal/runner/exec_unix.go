//go:build unix

package runner

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
	"gotest.tools/gotestfail/log"
)

var (
	killSignal    = unix.SIGTERM
	timeoutSignal = unix.SIGKILL
)

// setProcessGroup starts the command in a new process group so that any
// children it starts can be signaled with it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate signals the process group of proc, and falls back to signaling
// only proc when that fails.
func terminate(proc *os.Process, sig syscall.Signal) error {
	err := unix.Kill(-proc.Pid, sig)
	if err == nil {
		return nil
	}
	log.Debugf("failed to signal process group %d: %v", proc.Pid, err)
	return proc.Signal(sig)
}
