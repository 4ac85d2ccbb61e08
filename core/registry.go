package core

import (
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ErrRegistryExhausted is returned when every identifier is already taken.
var ErrRegistryExhausted = errors.New("all ICMP identifiers are in use")

// DefaultRegistry is the process-wide registry used by sessions without a seed identifier.
var DefaultRegistry = NewRegistry()

// Registry hands out ICMP identifiers that are unique among the active sessions of the process,
// so replies can be told apart when several sessions run at the same time.
type Registry struct {
	mu    sync.Mutex
	inUse map[uint16]struct{}
	rnd   *rand.Rand
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		inUse: make(map[uint16]struct{}),
		rnd:   rand.New(rand.NewSource(time.Now().UTC().UnixNano())),
	}
}

// Allocate reserves a random identifier in [1, 65535] that is not currently in use.
func (r *Registry) Allocate() (uint16, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.inUse) >= math.MaxUint16 {
		return 0, ErrRegistryExhausted
	}

	for {
		id := uint16(r.rnd.Intn(math.MaxUint16) + 1)
		if _, ok := r.inUse[id]; !ok {
			r.inUse[id] = struct{}{}
			return id, nil
		}
	}
}

// Release makes the identifier available again.
func (r *Registry) Release(id uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.inUse, id)
}

// Acquire allocates an identifier and returns a release func that is safe to call more than once.
func (r *Registry) Acquire() (uint16, func(), error) {
	id, err := r.Allocate()
	if err != nil {
		return 0, func() {}, err
	}

	var once sync.Once
	return id, func() { once.Do(func() { r.Release(id) }) }, nil
}

// InUse returns how many identifiers are currently reserved.
func (r *Registry) InUse() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.inUse)
}

// IsInUse returns whether id is currently reserved.
func (r *Registry) IsInUse(id uint16) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.inUse[id]
	return ok
}
