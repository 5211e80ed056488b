package manager

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"servingd/internal/registry"
	"servingd/pkg/types"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1_700_000_000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeProcess is an in-memory Process.
type fakeProcess struct {
	pid        int
	done       chan struct{}
	once       sync.Once
	terminated atomic.Int32
	termErr    error
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) TerminateGroup(time.Duration) error {
	p.terminated.Add(1)
	p.exit()
	return p.termErr
}

// exit simulates the process dying on its own.
func (p *fakeProcess) exit() { p.once.Do(func() { close(p.done) }) }

// fakeLauncher records launches and hands out fakeProcesses.
type fakeLauncher struct {
	mu       sync.Mutex
	nextPID  int
	specs    []LaunchSpec
	procs    []*fakeProcess
	err      error
	delay    time.Duration
	termErrs map[string]error // by key string
}

func (l *fakeLauncher) Launch(ctx context.Context, spec LaunchSpec) (Process, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.nextPID++
	p := newFakeProcess(1000 + l.nextPID)
	if l.termErrs != nil {
		p.termErr = l.termErrs[spec.Key.String()]
	}
	l.specs = append(l.specs, spec)
	l.procs = append(l.procs, p)
	return p, nil
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.specs)
}

func (l *fakeLauncher) proc(i int) *fakeProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.procs[i]
}

func (l *fakeLauncher) spec(i int) LaunchSpec {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.specs[i]
}

// staticResolver serves every key except those listed as unknown.
type staticResolver struct {
	unknown map[types.ModelKey]bool
}

func (r staticResolver) Resolve(ctx context.Context, key types.ModelKey) (types.LaunchPlan, error) {
	if r.unknown[key] {
		return types.LaunchPlan{}, registry.ErrNotFound
	}
	return types.LaunchPlan{
		Command: []string{"model-server", "--host", "{host}", "--port", "{port}"},
		Env:     []string{"MODEL=" + key.String()},
		Runtime: types.RuntimeDescriptor{Flavor: "sklearn"},
	}, nil
}

// roundTripFunc adapts a function to http.RoundTripper.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type testEnv struct {
	m        *Manager
	clock    *fakeClock
	launcher *fakeLauncher
	events   *RingPublisher
	sleeps   []time.Duration
}

// newTestManager builds a manager over fakes. mutate may adjust the config
// before construction.
func newTestManager(t *testing.T, mutate func(*ManagerConfig)) *testEnv {
	t.Helper()
	env := &testEnv{clock: newFakeClock(), launcher: &fakeLauncher{}, events: NewRingPublisher(64)}
	cfg := ManagerConfig{
		Resolver:  staticResolver{},
		Launcher:  env.launcher,
		Publisher: env.events,
		MinPort:   5001,
		MaxPort:   5010,
		TTL:       5 * time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := NewWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	m.now = env.clock.Now
	m.startTime = env.clock.Now()
	m.sleep = func(ctx context.Context, d time.Duration) error {
		env.sleeps = append(env.sleeps, d)
		return ctx.Err()
	}
	env.m = m
	return env
}
