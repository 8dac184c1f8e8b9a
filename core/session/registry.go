package session

import "context"

// Registry opens the session stores of client contexts.
type Registry struct {
	slots  Slots
	finder ProfileFinder
}

func NewRegistry(slots Slots, finder ProfileFinder) *Registry {
	return &Registry{slots: slots, finder: finder}
}

// Open returns the store of contextID, restored from its slots.
func (r *Registry) Open(ctx context.Context, contextID string) (*Store, error) {
	s := NewStore(contextID, r.slots, r.finder)
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
