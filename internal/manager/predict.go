package manager

import (
	"context"
	"math"
	"time"

	"servingd/pkg/types"
)

// Predict forwards payload to the process serving name/version, spawning it
// if needed. Transport failures are retried up to MaxRetries attempts with
// BackoffBase*2^attempt between them, re-serving before each retry so a
// killed or crashed process is respawned. A model error payload is returned
// at once as a *ModelExecutionError.
func (m *Manager) Predict(ctx context.Context, name string, version int, payload []byte) ([]byte, error) {
	key := types.ModelKey{Name: name, Version: version}
	res, err := m.Serve(ctx, name, version)
	if err != nil {
		return nil, err
	}
	port := res.Port
	var last error
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			res, err := m.Serve(ctx, name, version)
			if err != nil {
				return nil, err
			}
			port = res.Port
		}
		out, err := m.invoke(ctx, key, port, payload)
		if err == nil {
			predictAttempts.WithLabelValues("success").Inc()
			return out, nil
		}
		if !IsTransportFailure(err) {
			predictAttempts.WithLabelValues("model_error").Inc()
			m.log.Warn().Err(err).Str("model", key.String()).Int("attempt", attempt).Msg("manager event=predict_model_error")
			return nil, err
		}
		predictAttempts.WithLabelValues("transport_failure").Inc()
		last = err
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		if attempt == m.cfg.MaxRetries {
			break
		}
		wait := backoff(m.cfg.BackoffBase, attempt)
		m.log.Debug().Err(err).Str("model", key.String()).Int("attempt", attempt).Dur("backoff", wait).Msg("manager event=predict_retry")
		if err := m.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	m.log.Error().Err(last).Str("model", key.String()).Int("attempts", m.cfg.MaxRetries).Msg("manager event=predict_exhausted")
	m.publish("predict_exhausted", key, map[string]any{"attempts": m.cfg.MaxRetries, "error": last.Error()})
	return nil, &RetriesExhaustedError{Key: key, Attempts: m.cfg.MaxRetries, Last: last}
}

// backoff returns base*2^attempt, saturating instead of overflowing.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt >= 62 || base > math.MaxInt64>>attempt {
		return math.MaxInt64
	}
	return base << attempt
}
