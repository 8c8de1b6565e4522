package pipeline

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrInFlight is returned when a document is already being processed.
var ErrInFlight = errors.New("document is already being processed")

// Registry tracks document ids with a run in progress.
type Registry struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{active: make(map[uuid.UUID]struct{})}
}

// Acquire claims id. The returned release func must be called when the run ends.
func (r *Registry) Acquire(id uuid.UUID) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[id]; busy {
		return nil, ErrInFlight
	}
	r.active[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.active, id)
			r.mu.Unlock()
		})
	}, nil
}

func (r *Registry) Active(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.active[id]
	return busy
}
