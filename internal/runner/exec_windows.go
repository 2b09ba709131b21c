package runner

import (
	"os"
	"os/exec"
	"syscall"
)

var (
	killSignal    = syscall.SIGTERM
	timeoutSignal = syscall.SIGKILL
)

func setProcessGroup(*exec.Cmd) {}

// terminate kills proc. Process groups are not used on windows.
func terminate(proc *os.Process, _ syscall.Signal) error {
	return proc.Kill()
}
