package manager

import (
	"time"

	"servingd/pkg/types"
)

// ServingRecord is the bookkeeping entry of one live model process.
type ServingRecord struct {
	Key        types.ModelKey
	Port       int
	Process    Process
	LastAccess time.Time
	StartedAt  time.Time
	Runtime    types.RuntimeDescriptor
}

// PID returns the process id, or 0 without a process.
func (r ServingRecord) PID() int {
	if r.Process == nil {
		return 0
	}
	return r.Process.Pid()
}

// exited reports whether the record's process has terminated on its own.
func (r ServingRecord) exited() bool {
	if r.Process == nil {
		return true
	}
	select {
	case <-r.Process.Done():
		return true
	default:
		return false
	}
}

// ServeResult is returned by Serve.
type ServeResult struct {
	Key        types.ModelKey
	Port       int
	PID        int
	LastAccess time.Time
	// Spawned is true when this call started the process.
	Spawned bool
}

// KillResult describes a process torn down by Kill, for diagnostics.
type KillResult struct {
	Key        types.ModelKey
	Port       int
	PID        int
	LastAccess time.Time
}

// SweepReport summarizes one TTL sweep.
type SweepReport struct {
	Evicted []types.ModelKey
	Failed  map[types.ModelKey]error
}

// Kill reasons used in events and metrics.
const (
	reasonManual   = "manual"
	reasonTTL      = "ttl"
	reasonLRU      = "lru"
	reasonExited   = "exited"
	reasonShutdown = "shutdown"
)
