package manager

import (
	"context"
	"fmt"

	"servingd/pkg/types"
)

// Kill terminates the process serving name/version, frees its port and
// removes its record. It returns the record as it was before removal.
func (m *Manager) Kill(name string, version int) (KillResult, error) {
	return m.stop(types.ModelKey{Name: name, Version: version}, reasonManual)
}

// stop removes the record for key first, so no caller can be handed a port
// that is about to go away, then tears the process group down.
func (m *Manager) stop(key types.ModelKey, reason string) (KillResult, error) {
	rec, ok := m.records.Remove(key)
	if !ok {
		return KillResult{}, ErrNotFound(key)
	}
	return m.teardown(rec, reason)
}

func (m *Manager) teardown(rec ServingRecord, reason string) (KillResult, error) {
	key := rec.Key
	res := KillResult{Key: key, Port: rec.Port, PID: rec.PID(), LastAccess: rec.LastAccess}
	var termErr error
	if rec.Process != nil {
		termErr = rec.Process.TerminateGroup(m.cfg.KillGrace)
	}
	m.releasePort(key, rec.Port)
	if reason != reasonManual {
		m.evictionsTotal.Add(1)
	}
	killsTotal.WithLabelValues(reason).Inc()
	updateGauges(m)
	if termErr != nil {
		m.log.Error().Err(termErr).Str("model", key.String()).Int("pid", res.PID).Str("reason", reason).Msg("manager event=kill_failed")
		m.publish("kill_failed", key, map[string]any{"pid": res.PID, "reason": reason, "error": termErr.Error()})
		return res, fmt.Errorf("terminate %s (pid %d): %w", key, res.PID, termErr)
	}
	m.log.Info().Str("model", key.String()).Int("port", res.Port).Int("pid", res.PID).Str("reason", reason).Msg("manager event=kill")
	m.publish("kill", key, map[string]any{"port": res.Port, "pid": res.PID, "reason": reason})
	return res, nil
}

func (m *Manager) releasePort(key types.ModelKey, port int) {
	if err := m.ports.Release(port); err != nil {
		m.log.Error().Err(err).Str("model", key.String()).Int("port", port).Msg("manager event=port_release_failed")
	}
}

// StopAll refuses new work and terminates every live process. It returns
// early with ctx's error if ctx is done first.
func (m *Manager) StopAll(ctx context.Context) error {
	m.closing.Store(true)
	// Wait for an in-flight spawn so its record is visible below.
	m.spawnMu.Lock()
	m.spawnMu.Unlock()
	for _, rec := range m.records.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r, ok := m.records.Remove(rec.Key); ok {
			_, _ = m.teardown(r, reasonShutdown)
		}
	}
	return nil
}
