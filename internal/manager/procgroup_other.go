//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package manager

import (
	"errors"
	"os"
	"os/exec"
)

// No process groups here: signal the leader only.
var (
	termSignal os.Signal = os.Kill
	killSignal os.Signal = os.Kill
)

func setProcessGroup(cmd *exec.Cmd) {}

func signalGroup(cmd *exec.Cmd, sig os.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
