// Package inmemkv keeps session slots in process memory.
package inmemkv

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/eduspace/core/session"
)

var NowFunc = time.Now // mockable

type (
	entry struct {
		value     string
		expiresAt time.Time // zero: never
	}

	Slots struct {
		mutex sync.RWMutex
		ttl   time.Duration
		table map[string]map[string]entry // {contextID: {key: entry}}
	}
)

var _ session.Slots = (*Slots)(nil)

// New returns slots whose values expire ttl after being written (0: never).
func New(ttl time.Duration) *Slots {
	return &Slots{ttl: ttl, table: make(map[string]map[string]entry)}
}

func (s *Slots) Get(_ context.Context, contextID, key string) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	e, ok := s.table[contextID][key]
	if !ok || (!e.expiresAt.IsZero() && !NowFunc().Before(e.expiresAt)) {
		return "", session.ErrSlotEmpty
	}
	return e.value, nil
}

func (s *Slots) Set(_ context.Context, contextID, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	slots, ok := s.table[contextID]
	if !ok {
		slots = make(map[string]entry)
		s.table[contextID] = slots
	}
	e := entry{value: value}
	if s.ttl > 0 {
		e.expiresAt = NowFunc().Add(s.ttl)
	}
	slots[key] = e
	return nil
}

func (s *Slots) Delete(_ context.Context, contextID string, keys ...string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, key := range keys {
		delete(s.table[contextID], key)
	}
	if len(s.table[contextID]) == 0 {
		delete(s.table, contextID)
	}
	return nil
}
