package manager

import (
	"errors"
	"sort"

	"servingd/pkg/types"
)

// LeastRecentlyUsed returns the live model with the oldest last access.
func (m *Manager) LeastRecentlyUsed() (types.ModelKey, bool) {
	return m.records.LeastRecentlyUsed()
}

// SweepExpired kills every model idle for at least the TTL. Failures are
// isolated per model and reported without stopping the sweep.
func (m *Manager) SweepExpired() SweepReport {
	now := m.now()
	ttl := m.cfg.TTL
	report := SweepReport{Failed: map[types.ModelKey]error{}}
	snapshot := m.records.All()
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].LastAccess.Before(snapshot[j].LastAccess) })
	for _, rec := range snapshot {
		if now.Sub(rec.LastAccess) < ttl {
			continue
		}
		// Re-check under the registry lock: a Serve may have refreshed the
		// record since the snapshot was taken.
		cur, ok := m.records.removeIf(rec.Key, func(r ServingRecord) bool {
			return now.Sub(r.LastAccess) >= ttl
		})
		if !ok {
			continue
		}
		if _, err := m.teardown(cur, reasonTTL); err != nil {
			report.Failed[rec.Key] = err
			continue
		}
		report.Evicted = append(report.Evicted, rec.Key)
	}
	if len(report.Evicted) > 0 || len(report.Failed) > 0 {
		m.log.Info().Int("evicted", len(report.Evicted)).Int("failed", len(report.Failed)).Msg("manager event=sweep")
	}
	return report
}

// Err folds the per-model failures of a sweep into one error.
func (r SweepReport) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, err := range r.Failed {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
