package manager

import (
	"fmt"
	"sort"
	"sync"
)

// PortPool hands out TCP ports from a fixed range, lowest first.
// A port is either free in the pool or held by exactly one caller.
type PortPool struct {
	mu       sync.Mutex
	min, max int
	free     []int // sorted ascending
}

// NewPortPool returns a pool holding every port in [min, max].
func NewPortPool(min, max int) (*PortPool, error) {
	if min <= 0 || max > 65535 || min > max {
		return nil, fmt.Errorf("invalid port range %d-%d", min, max)
	}
	free := make([]int, 0, max-min+1)
	for p := min; p <= max; p++ {
		free = append(free, p)
	}
	return &PortPool{min: min, max: max, free: free}, nil
}

// Acquire removes and returns the lowest free port.
func (p *PortPool) Acquire() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return 0, resourceExhaustedError{what: fmt.Sprintf("no free port in range %d-%d", p.min, p.max)}
	}
	port := p.free[0]
	p.free = p.free[1:]
	return port, nil
}

// Release returns port to the pool. Releasing a port that is already free or
// outside the range is an error.
func (p *PortPool) Release(port int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if port < p.min || port > p.max {
		return fmt.Errorf("port %d outside range %d-%d", port, p.min, p.max)
	}
	i := sort.SearchInts(p.free, port)
	if i < len(p.free) && p.free[i] == port {
		return fmt.Errorf("port %d already free", port)
	}
	p.free = append(p.free, 0)
	copy(p.free[i+1:], p.free[i:])
	p.free[i] = port
	return nil
}

// Free reports the number of free ports.
func (p *PortPool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Range returns the configured bounds.
func (p *PortPool) Range() (min, max int) { return p.min, p.max }
