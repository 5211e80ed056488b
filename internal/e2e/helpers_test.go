//go:build linux || darwin

// Package e2e drives the HTTP surface against a real orchestrator that
// spawns actual scoring processes.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"servingd/internal/httpapi"
	"servingd/internal/manager"
	"servingd/internal/registry"
	"servingd/pkg/types"
)

// buildFakeModelServer compiles the scoring server stand-in shared with the
// manager tests.
func buildFakeModelServer(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "fake_model_server")
	cmd := exec.Command("go", "build", "-o", bin, "../manager/testdata/fake_model_server.go")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=0")
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build fake server: %v: %s", err, out)
	}
	return bin
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

// newServer wires a catalog with one entry per fake server mode behind the
// HTTP mux. Models: iris/1 (ok), slow/1 (binds late), broken/1 (model errors).
func newServer(t *testing.T) (*httptest.Server, *manager.Manager) {
	t.Helper()
	if testing.Short() {
		t.Skip("short mode")
	}
	bin := buildFakeModelServer(t)
	entry := func(name, mode string) registry.Entry {
		return registry.Entry{
			Name:    name,
			Version: 1,
			Command: []string{bin, "-h", "{host}", "-p", "{port}", "-mode", mode},
			Runtime: types.RuntimeDescriptor{Flavor: "fake"},
		}
	}
	cat, err := registry.NewCatalog([]registry.Entry{entry("iris", "ok"), entry("slow", "delay"), entry("broken", "error")})
	if err != nil {
		t.Fatal(err)
	}
	port := freeTCPPort(t)
	ring := manager.NewRingPublisher(0)
	mgr, err := manager.NewWithConfig(manager.ManagerConfig{
		Resolver:            cat,
		Publisher:           ring,
		MinPort:             port,
		MaxPort:             port,
		MaxConcurrentModels: 1,
		MaxRetries:          8,
		BackoffBase:         25 * time.Millisecond,
		KillGrace:           2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(httpapi.NewMux(mgr, ring))
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mgr.StopAll(ctx)
	})
	return srv, mgr
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	return do(t, req)
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func decodeOutcome(t *testing.T, body []byte) types.Outcome {
	t.Helper()
	var out types.Outcome
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode outcome: %v: %s", err, body)
	}
	return out
}
