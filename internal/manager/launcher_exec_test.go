//go:build linux || darwin

package manager

import (
	"context"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"servingd/pkg/types"
)

// buildFakeModelServer builds the fake scoring server and returns its path.
func buildFakeModelServer(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_model_server")
	cmd := exec.Command("go", "build", "-o", bin, "./testdata/fake_model_server.go")
	cmd.Dir = "."
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("build fake server: %v: %s", err, string(out))
	}
	return bin
}

// freeTCPPort finds a port nothing listens on right now.
func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

type binResolver struct {
	bin  string
	mode string
}

func (r binResolver) Resolve(ctx context.Context, key types.ModelKey) (types.LaunchPlan, error) {
	return types.LaunchPlan{Command: []string{r.bin, "-h", "{host}", "-p", "{port}", "-mode", r.mode}}, nil
}

func TestExecLauncher_PredictAndKill(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeModelServer(t)
	port := freeTCPPort(t)
	m, err := NewWithConfig(ManagerConfig{
		Resolver:    binResolver{bin: bin, mode: "delay"},
		MinPort:     port,
		MaxPort:     port,
		BackoffBase: 50 * time.Millisecond,
		KillGrace:   2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// The server binds late; the first attempts fail and are retried.
	out, err := m.Predict(ctx, "fake", 1, []byte(`{"columns":["a","b"],"data":[[1,2],[3,4]]}`))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if string(out) != "[2,2]\n" {
		t.Fatalf("unexpected output %q", out)
	}

	res, err := m.Kill("fake", 1)
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	if res.PID <= 0 || res.Port != port {
		t.Fatalf("unexpected kill result %+v", res)
	}
	// The whole group is gone once Kill returns.
	if err := syscall.Kill(-res.PID, 0); err != syscall.ESRCH {
		t.Fatalf("process group %d still alive: %v", res.PID, err)
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), 200*time.Millisecond)
	if err == nil {
		conn.Close()
		t.Fatalf("port %d still accepting after kill", port)
	}
}

func TestExecLauncher_ModelErrorNotRetried(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeModelServer(t)
	port := freeTCPPort(t)
	m, err := NewWithConfig(ManagerConfig{
		Resolver:    binResolver{bin: bin, mode: "error"},
		MinPort:     port,
		MaxPort:     port,
		BackoffBase: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer m.StopAll(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	_, err = m.Predict(ctx, "fake", 1, []byte(`{"columns":["a"],"data":[[1]]}`))
	if !IsModelExecutionError(err) {
		t.Fatalf("expected model execution error, got %v", err)
	}
}

func TestExecLauncher_EmptyCommand(t *testing.T) {
	l := NewExecLauncher(nil)
	if _, err := l.Launch(context.Background(), LaunchSpec{}); err == nil {
		t.Fatalf("expected error for empty command")
	}
}
