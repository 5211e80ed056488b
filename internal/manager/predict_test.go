package manager

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"servingd/pkg/types"
)

const splitPayload = `{"columns":["alcohol","chlorides"],"data":[[12.8,0.029]]}`

func withTransport(rt roundTripFunc) func(*ManagerConfig) {
	return func(c *ManagerConfig) { c.HTTPClient = &http.Client{Transport: rt} }
}

func TestPredict_Success(t *testing.T) {
	var gotURL, gotCT, gotBody string
	env := newTestManager(t, withTransport(func(r *http.Request) (*http.Response, error) {
		gotURL = r.URL.String()
		gotCT = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		return jsonResponse(200, `[5.57]`), nil
	}))
	out, err := env.m.Predict(context.Background(), "ElasticNet", 3, []byte(splitPayload))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if string(out) != `[5.57]` {
		t.Fatalf("unexpected output %s", out)
	}
	if gotURL != "http://127.0.0.1:5001/invocations" || gotCT != "application/json" || gotBody != splitPayload {
		t.Fatalf("unexpected request url=%s ct=%s body=%s", gotURL, gotCT, gotBody)
	}
	if len(env.sleeps) != 0 {
		t.Fatalf("no backoff expected, got %v", env.sleeps)
	}
}

func TestPredict_BackoffScheduleThenExhausted(t *testing.T) {
	var calls atomic.Int32
	env := newTestManager(t, func(c *ManagerConfig) {
		c.MaxRetries = 4
		c.BackoffBase = time.Second
		c.HTTPClient = &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			calls.Add(1)
			return nil, errors.New("connection refused")
		})}
	})
	_, err := env.m.Predict(context.Background(), "m", 1, []byte(splitPayload))
	var re *RetriesExhaustedError
	if !errors.As(err, &re) {
		t.Fatalf("expected retries exhausted, got %v", err)
	}
	if re.Attempts != 4 || re.Key != (types.ModelKey{Name: "m", Version: 1}) {
		t.Fatalf("unexpected exhausted error: %+v", re)
	}
	if !IsTransportFailure(re.Last) {
		t.Fatalf("last cause should be a transport failure: %v", re.Last)
	}
	if calls.Load() != 4 {
		t.Fatalf("expected 4 attempts, got %d", calls.Load())
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(env.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", env.sleeps, want)
	}
	var total time.Duration
	for i, d := range env.sleeps {
		if d != want[i] {
			t.Fatalf("sleep %d = %v, want %v", i, d, want[i])
		}
		total += d
	}
	if total != 14*time.Second {
		t.Fatalf("total backoff %v, want 14s", total)
	}
}

func TestPredict_ModelErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	env := newTestManager(t, withTransport(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return jsonResponse(400, `{"error_code":"BAD_REQUEST","message":"x","error_message":"Incompatible input types","stack_trace":"..."}`), nil
	}))
	_, err := env.m.Predict(context.Background(), "m", 1, []byte(splitPayload))
	var me *ModelExecutionError
	if !errors.As(err, &me) {
		t.Fatalf("expected model execution error, got %v", err)
	}
	if me.Code != "BAD_REQUEST" || me.Message != "Incompatible input types" || me.HTTPStatus != 400 {
		t.Fatalf("unexpected model error: %+v", me)
	}
	if calls.Load() != 1 || len(env.sleeps) != 0 {
		t.Fatalf("model errors must not be retried: calls=%d sleeps=%v", calls.Load(), env.sleeps)
	}
}

func TestPredict_RecoversAfterTransientFailures(t *testing.T) {
	var calls atomic.Int32
	before := testutil.ToFloat64(predictAttempts.WithLabelValues("transport_failure"))
	env := newTestManager(t, withTransport(func(*http.Request) (*http.Response, error) {
		switch calls.Add(1) {
		case 1:
			return nil, errors.New("connection refused")
		case 2:
			return jsonResponse(200, ``), nil
		default:
			return jsonResponse(200, `{"predictions":[1,0]}`), nil
		}
	}))
	out, err := env.m.Predict(context.Background(), "m", 1, []byte(splitPayload))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if string(out) != `{"predictions":[1,0]}` {
		t.Fatalf("unexpected output %s", out)
	}
	if len(env.sleeps) != 2 {
		t.Fatalf("expected 2 backoffs, got %v", env.sleeps)
	}
	if got := testutil.ToFloat64(predictAttempts.WithLabelValues("transport_failure")) - before; got != 2 {
		t.Fatalf("transport failure counter delta = %v, want 2", got)
	}
}

func TestPredict_RespawnsKilledProcessDuringRetry(t *testing.T) {
	var env *testEnv
	var calls atomic.Int32
	env = newTestManager(t, withTransport(func(*http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			// The process is killed between serve and invoke.
			if _, err := env.m.Kill("m", 1); err != nil {
				t.Errorf("kill: %v", err)
			}
			return nil, errors.New("connection reset")
		}
		return jsonResponse(200, `[1]`), nil
	}))
	if _, err := env.m.Predict(context.Background(), "m", 1, []byte(splitPayload)); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if env.launcher.launches() != 2 {
		t.Fatalf("expected a respawn, launches=%d", env.launcher.launches())
	}
}

func TestPredict_ContextCancelledDuringBackoff(t *testing.T) {
	env := newTestManager(t, withTransport(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}))
	ctx, cancel := context.WithCancel(context.Background())
	env.m.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	_, err := env.m.Predict(ctx, "m", 1, []byte(splitPayload))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPredict_ServeErrorSurfaces(t *testing.T) {
	env := newTestManager(t, func(c *ManagerConfig) { c.MinPort, c.MaxPort = 5001, 5001 })
	if _, err := env.m.Serve(context.Background(), "other", 1); err != nil {
		t.Fatal(err)
	}
	env.m.cfg.MaxConcurrentModels = 0
	_, err := env.m.Predict(context.Background(), "m", 1, []byte(splitPayload))
	if !IsResourceExhausted(err) {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
}

func TestClassifyInvocation(t *testing.T) {
	key := types.ModelKey{Name: "m", Version: 1}
	cases := []struct {
		name      string
		status    int
		body      string
		ok        bool
		terminal  bool
		transport bool
	}{
		{"array", 200, `[1,2,3]`, true, false, false},
		{"object", 200, `{"predictions":[1]}`, true, false, false},
		{"empty", 200, ``, false, false, true},
		{"whitespace", 200, "  \n", false, false, true},
		{"malformed", 200, `[1,`, false, false, true},
		{"scalar", 200, `42`, false, false, true},
		{"html 502", 502, `<html>bad gateway</html>`, false, false, true},
		{"500 object", 500, `{"detail":"oops"}`, false, false, true},
		{"error code only", 200, `{"error_code":"INTERNAL_ERROR"}`, false, true, false},
		{"error message 500", 500, `{"error_message":"boom"}`, false, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := classifyInvocation(key, 5001, tc.status, []byte(tc.body))
			if tc.ok {
				if err != nil || string(out) != tc.body {
					t.Fatalf("expected success, got out=%s err=%v", out, err)
				}
				return
			}
			if IsModelExecutionError(err) != tc.terminal || IsTransportFailure(err) != tc.transport {
				t.Fatalf("misclassified: %v", err)
			}
		})
	}
}

// TestPredict_OverLoopback exercises the real HTTP path against a listener on
// the pool's only port.
func TestPredict_OverLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invocations" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[0.5]`)
	}))
	defer srv.Close()
	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	env := newTestManager(t, func(c *ManagerConfig) { c.MinPort, c.MaxPort = port, port })
	out, err := env.m.Predict(context.Background(), "m", 1, []byte(splitPayload))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if string(out) != `[0.5]` {
		t.Fatalf("unexpected output %s", out)
	}
}

func TestBackoff_DoublesAndSaturates(t *testing.T) {
	if got := backoff(time.Second, 1); got != 2*time.Second {
		t.Fatalf("attempt 1: %v", got)
	}
	if got := backoff(time.Second, 5); got != 32*time.Second {
		t.Fatalf("attempt 5: %v", got)
	}
	for _, attempt := range []int{34, 40, 63, 100} {
		if got := backoff(time.Second, attempt); got <= 0 {
			t.Fatalf("attempt %d overflowed to %v", attempt, got)
		}
	}
	if got := backoff(0, 3); got != 0 {
		t.Fatalf("zero base: %v", got)
	}
}
