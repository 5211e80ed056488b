package manager

import (
	"sort"

	"servingd/pkg/types"
)

// ListEndpoints returns a snapshot of every live model, ordered by key.
func (m *Manager) ListEndpoints() []types.EndpointInfo {
	recs := m.records.All()
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Key.Name != recs[j].Key.Name {
			return recs[i].Key.Name < recs[j].Key.Name
		}
		return recs[i].Key.Version < recs[j].Key.Version
	})
	out := make([]types.EndpointInfo, 0, len(recs))
	for _, rec := range recs {
		out = append(out, endpointInfo(rec))
	}
	return out
}

func endpointInfo(rec ServingRecord) types.EndpointInfo {
	return types.EndpointInfo{
		ModelName:    rec.Key.Name,
		ModelVersion: rec.Key.Version,
		Port:         rec.Port,
		PID:          rec.PID(),
		LastAccess:   rec.LastAccess.Unix(),
		StartedAt:    rec.StartedAt.Unix(),
		Runtime:      rec.Runtime,
	}
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	min, max := m.ports.Range()
	now := m.now()
	return types.StatusResponse{
		LiveModels:          m.records.Len(),
		MaxConcurrentModels: m.cfg.MaxConcurrentModels,
		FreePorts:           m.ports.Free(),
		MinPort:             min,
		MaxPort:             max,
		TTLSeconds:          int64(m.cfg.TTL.Seconds()),
		MaxRetries:          m.cfg.MaxRetries,
		UptimeSeconds:       int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:      now.Unix(),
		SpawnsTotal:         m.spawnsTotal.Load(),
		EvictionsTotal:      m.evictionsTotal.Load(),
		Endpoints:           m.ListEndpoints(),
	}
}
