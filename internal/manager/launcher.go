package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"servingd/pkg/types"
)

// Process is a handle to a spawned model server.
type Process interface {
	Pid() int
	// TerminateGroup sends SIGTERM to the process group and escalates to
	// SIGKILL after grace. It returns once the leader has been reaped or the
	// kill signal has been sent.
	TerminateGroup(grace time.Duration) error
	// Done is closed when the process exits.
	Done() <-chan struct{}
}

// LaunchSpec is a fully substituted command for one model version.
type LaunchSpec struct {
	Key     types.ModelKey
	Command []string
	Env     []string
	Dir     string
	Port    int
}

// Launcher starts model server processes.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Process, error)
}

// ExecLauncher starts each model server in its own process group so the
// whole tree (env manager wrapper, gunicorn workers) can be signalled at once.
type ExecLauncher struct {
	Logger *zerolog.Logger
}

// NewExecLauncher returns a launcher that forwards child output to logger at
// debug level. A nil logger discards it.
func NewExecLauncher(logger *zerolog.Logger) *ExecLauncher {
	return &ExecLauncher{Logger: logger}
}

func (l *ExecLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if len(spec.Command) == 0 {
		return nil, errors.New("empty launch command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// exec.Command rather than CommandContext: the process outlives the
	// request that spawned it.
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.Dir = spec.Dir
	setProcessGroup(cmd)
	cmd.WaitDelay = 2 * time.Second
	if l.Logger != nil {
		lg := l.Logger.With().Str("model", spec.Key.String()).Int("port", spec.Port).Logger()
		cmd.Stdout = newLogLineWriter(lg, "stdout")
		cmd.Stderr = newLogLineWriter(lg, "stderr")
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Command[0], err)
	}
	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	once    sync.Once
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) TerminateGroup(grace time.Duration) error {
	var err error
	p.once.Do(func() {
		select {
		case <-p.done:
			// Leader already gone; still sweep stragglers in its group.
			_ = signalGroup(p.cmd, killSignal)
			return
		default:
		}
		if err = signalGroup(p.cmd, termSignal); err != nil {
			return
		}
		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case <-p.done:
			_ = signalGroup(p.cmd, killSignal)
		case <-t.C:
			err = signalGroup(p.cmd, killSignal)
			<-p.done
		}
	})
	return err
}
