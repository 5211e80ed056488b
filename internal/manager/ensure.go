package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"servingd/internal/registry"
	"servingd/pkg/types"
)

// Serve makes sure a process for name/version is running and returns its
// port. An existing live record is reused and its last access refreshed;
// otherwise a process is spawned, evicting the least recently used model
// first when the concurrency cap is reached. Concurrent calls for the same
// key share one spawn.
//
// The returned port may not accept connections yet; readiness is handled by
// the retry loop in Predict.
func (m *Manager) Serve(ctx context.Context, name string, version int) (ServeResult, error) {
	key := types.ModelKey{Name: name, Version: version}
	if strings.TrimSpace(name) == "" {
		return ServeResult{}, errors.New("model name is empty")
	}
	if m.closing.Load() {
		return ServeResult{}, errShuttingDown
	}
	if res, ok := m.reuse(key); ok {
		return res, nil
	}
	// Spawn detached from the caller so one cancelled request does not fail
	// every caller waiting on the same key.
	v, err, shared := m.spawns.Do(key.String(), func() (any, error) {
		return m.spawn(context.WithoutCancel(ctx), key)
	})
	if err != nil {
		return ServeResult{}, err
	}
	res := v.(ServeResult)
	if shared {
		// Waiters that joined another call's spawn refresh the record too.
		if rec, ok := m.records.Touch(key, m.now()); ok {
			res = ServeResult{Key: key, Port: rec.Port, PID: rec.PID(), LastAccess: rec.LastAccess, Spawned: res.Spawned}
		}
	}
	return res, nil
}

// reuse returns the live record for key with a refreshed last access. A
// record whose process has exited is reclaimed and reported as absent.
func (m *Manager) reuse(key types.ModelKey) (ServeResult, bool) {
	rec, ok := m.records.Get(key)
	if !ok {
		return ServeResult{}, false
	}
	if rec.exited() {
		m.reclaim(key, rec.Process)
		return ServeResult{}, false
	}
	rec, ok = m.records.Touch(key, m.now())
	if !ok {
		return ServeResult{}, false
	}
	return ServeResult{Key: key, Port: rec.Port, PID: rec.PID(), LastAccess: rec.LastAccess}, true
}

// reclaim drops a record whose process exited on its own and frees its port.
func (m *Manager) reclaim(key types.ModelKey, proc Process) {
	rec, ok := m.records.removeIf(key, func(r ServingRecord) bool { return r.Process == proc })
	if !ok {
		return
	}
	_ = rec.Process.TerminateGroup(m.cfg.KillGrace)
	m.releasePort(key, rec.Port)
	m.evictionsTotal.Add(1)
	killsTotal.WithLabelValues(reasonExited).Inc()
	m.log.Warn().Str("model", key.String()).Int("port", rec.Port).Int("pid", rec.PID()).Msg("manager event=reclaim reason=exited")
	m.publish("reclaim", key, map[string]any{"port": rec.Port, "pid": rec.PID()})
	updateGauges(m)
}

func (m *Manager) spawn(ctx context.Context, key types.ModelKey) (ServeResult, error) {
	m.spawnMu.Lock()
	defer m.spawnMu.Unlock()

	// Another spawn may have completed while we waited for the lock.
	if res, ok := m.reuse(key); ok {
		return res, nil
	}
	if m.closing.Load() {
		return ServeResult{}, errShuttingDown
	}

	// Resolve before touching live models.
	plan, err := m.cfg.Resolver.Resolve(ctx, key)
	if err != nil {
		m.publish("spawn_failed", key, map[string]any{"error": err.Error()})
		if errors.Is(err, registry.ErrNotFound) {
			return ServeResult{}, ErrNotFound(key)
		}
		return ServeResult{}, fmt.Errorf("resolve %s: %w", key, err)
	}
	if len(plan.Command) == 0 || strings.TrimSpace(plan.Command[0]) == "" {
		return ServeResult{}, fmt.Errorf("resolve %s: empty launch command", key)
	}

	port, err := m.acquirePort()
	if err != nil {
		m.publish("spawn_failed", key, map[string]any{"error": err.Error()})
		return ServeResult{}, err
	}
	spec := LaunchSpec{
		Key:     key,
		Command: substitutePlaceholders(plan.Command, m.cfg.Host, port),
		Env:     substitutePlaceholders(plan.Env, m.cfg.Host, port),
		Dir:     plan.Dir,
		Port:    port,
	}
	proc, err := m.cfg.Launcher.Launch(ctx, spec)
	if err != nil {
		m.releasePort(key, port)
		m.log.Error().Err(err).Str("model", key.String()).Int("port", port).Msg("manager event=spawn_failed")
		m.publish("spawn_failed", key, map[string]any{"port": port, "error": err.Error()})
		return ServeResult{}, fmt.Errorf("launch %s: %w", key, err)
	}
	// Evict only once the new process is running.
	if err := m.makeRoom(); err != nil {
		_ = proc.TerminateGroup(m.cfg.KillGrace)
		m.releasePort(key, port)
		return ServeResult{}, err
	}
	now := m.now()
	rec := ServingRecord{Key: key, Port: port, Process: proc, LastAccess: now, StartedAt: now, Runtime: plan.Runtime}
	if err := m.records.Put(key, rec); err != nil {
		// Unreachable while spawnMu is held; undo rather than leak.
		_ = proc.TerminateGroup(m.cfg.KillGrace)
		m.releasePort(key, port)
		return ServeResult{}, err
	}
	m.spawnsTotal.Add(1)
	spawnsTotal.Inc()
	m.log.Info().Str("model", key.String()).Int("port", port).Int("pid", proc.Pid()).Msg("manager event=spawn")
	m.publish("spawn", key, map[string]any{"port": port, "pid": proc.Pid()})
	updateGauges(m)
	return ServeResult{Key: key, Port: port, PID: proc.Pid(), LastAccess: now, Spawned: true}, nil
}

// acquirePort takes the lowest free port. When the pool is empty and the
// cap is reached, the least recently used model gives up its port first.
// Callers hold spawnMu.
func (m *Manager) acquirePort() (int, error) {
	port, err := m.ports.Acquire()
	if err == nil || !IsResourceExhausted(err) || !m.atCapacity() {
		return port, err
	}
	if err := m.makeRoom(); err != nil {
		return 0, err
	}
	return m.ports.Acquire()
}

func (m *Manager) atCapacity() bool {
	limit := m.cfg.MaxConcurrentModels
	return limit > 0 && m.records.Len() >= limit
}

// makeRoom evicts least recently used models until a new one fits under the
// concurrency cap. Callers hold spawnMu.
func (m *Manager) makeRoom() error {
	for m.atCapacity() {
		victim, ok := m.records.LeastRecentlyUsed()
		if !ok {
			return resourceExhaustedError{what: "concurrency cap reached with no evictable model"}
		}
		if _, err := m.stop(victim, reasonLRU); err != nil && !IsNotFound(err) {
			return err
		}
	}
	return nil
}

func substitutePlaceholders(in []string, host string, port int) []string {
	if len(in) == 0 {
		return nil
	}
	r := strings.NewReplacer("{port}", strconv.Itoa(port), "{host}", host)
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = r.Replace(s)
	}
	return out
}
