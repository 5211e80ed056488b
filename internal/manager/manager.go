package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"servingd/pkg/types"
)

// ArtifactResolver maps a model version to the command that serves it.
type ArtifactResolver interface {
	Resolve(ctx context.Context, key types.ModelKey) (types.LaunchPlan, error)
}

// Manager owns every model server process: it spawns them on demand, tracks
// their ports and last use, and tears them down on request, on TTL expiry or
// to make room under the concurrency cap.
type Manager struct {
	cfg       ManagerConfig
	log       zerolog.Logger
	ports     *PortPool
	records   *ProcessRegistry
	publisher EventPublisher

	// spawns dedupes concurrent Serve calls per key; spawnMu serializes the
	// capacity check with the spawn that follows it.
	spawns  *singleflight.Group
	spawnMu sync.Mutex

	closing   atomic.Bool
	startTime time.Time

	spawnsTotal    atomic.Uint64
	evictionsTotal atomic.Uint64

	// Overridable in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Ready reports whether the manager accepts new work.
func (m *Manager) Ready() bool {
	return !m.closing.Load()
}

// SetPublisher installs an EventPublisher; nil restores the no-op publisher.
// Call it before the manager starts serving.
func (m *Manager) SetPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

func (m *Manager) publish(name string, key types.ModelKey, fields map[string]any) {
	m.publisher.Publish(Event{At: m.now(), Name: name, Model: key.String(), Fields: fields})
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
