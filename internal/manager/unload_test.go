package manager

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKill_ReturnsRecordAndFreesPort(t *testing.T) {
	env := newTestManager(t, nil)
	served, err := env.m.Serve(context.Background(), "m", 1)
	if err != nil {
		t.Fatal(err)
	}
	res, err := env.m.Kill("m", 1)
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	if res.Port != served.Port || res.PID != served.PID || !res.LastAccess.Equal(served.LastAccess) {
		t.Fatalf("kill result %+v does not match served %+v", res, served)
	}
	if env.m.ports.Free() != 10 {
		t.Fatalf("port not released")
	}
	if _, err := env.m.Kill("m", 1); !IsNotFound(err) {
		t.Fatalf("second kill: expected not found, got %v", err)
	}
	again, err := env.m.Serve(context.Background(), "m", 1)
	if err != nil {
		t.Fatal(err)
	}
	if again.Port != served.Port || !again.Spawned {
		t.Fatalf("expected fresh spawn on the same port, got %+v", again)
	}
}

func TestKill_UnknownIsNotFound(t *testing.T) {
	env := newTestManager(t, nil)
	if _, err := env.m.Kill("nope", 1); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestKill_TerminateErrorStillRemoves(t *testing.T) {
	env := newTestManager(t, nil)
	env.launcher.termErrs = map[string]error{"m_1": errors.New("operation not permitted")}
	if _, err := env.m.Serve(context.Background(), "m", 1); err != nil {
		t.Fatal(err)
	}
	if _, err := env.m.Kill("m", 1); err == nil {
		t.Fatalf("expected terminate error to surface")
	}
	if env.m.records.Len() != 0 || env.m.ports.Free() != 10 {
		t.Fatalf("record or port left behind after failed terminate")
	}
}

func TestStopAll_HonorsContext(t *testing.T) {
	env := newTestManager(t, nil)
	for v := 1; v <= 3; v++ {
		if _, err := env.m.Serve(context.Background(), "m", v); err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := env.m.StopAll(ctx); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if n := len(env.m.ListEndpoints()); n != 0 {
		t.Fatalf("expected no endpoints, got %d", n)
	}
}
