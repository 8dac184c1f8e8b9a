// Package session holds the authenticated identity of a client context.
// A client context is what a browser tab was to the dashboards: it owns at most one session,
// mirrored to two durable slots so that it survives restarts.
package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core/user"
)

// Slot keys
const (
	SlotUser = "sms_user"
	SlotUID  = "uid"
)

var (
	NowFunc = time.Now // mockable

	// ErrSlotEmpty is returned by Slots.Get when nothing is stored under the key.
	ErrSlotEmpty = errors.New("empty slot")
)

type (
	Session struct {
		Identity      user.Identity `json:"identity"`
		EstablishedAt time.Time     `json:"establishedAt"`
	}

	// Slots is the durable key-value store sessions are mirrored to, partitioned by client context.
	Slots interface {
		Get(ctx context.Context, contextID, key string) (string, error)
		Set(ctx context.Context, contextID, key, value string) error
		Delete(ctx context.Context, contextID string, keys ...string) error
	}

	// ProfileFinder resolves the stored profile of an authenticated principal.
	ProfileFinder interface {
		FindIdentity(ctx context.Context, uid string) (user.Identity, error)
	}

	// Principal is what the auth provider knows about a signed-in user.
	Principal struct {
		UID   string
		Email string
	}

	// ProviderState is an auth provider notification. A nil Principal means signed out.
	ProviderState struct {
		Principal *Principal
	}

	// persisted is the content of the SlotUser slot.
	persisted struct {
		user.Identity
		EstablishedAt time.Time `json:"establishedAt"`
	}

	// Store is the session store of one client context. It is safe for concurrent use.
	Store struct {
		contextID string
		slots     Slots
		finder    ProfileFinder

		mutex   sync.RWMutex
		current *Session
	}
)

func (s Session) Role() user.Role { return s.Identity.Role }

// NewStore returns an empty store for contextID. Use Registry.Open to restore persisted sessions.
func NewStore(contextID string, slots Slots, finder ProfileFinder) *Store {
	return &Store{contextID: contextID, slots: slots, finder: finder}
}

func (s *Store) ContextID() string { return s.contextID }

// Current returns the active session, if any.
func (s *Store) Current() (Session, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.current == nil {
		return Session{}, false
	}
	return *s.current, true
}

// Set replaces the active session and mirrors it to the slots.
func (s *Store) Set(ctx context.Context, sess Session) error {
	if sess.EstablishedAt.IsZero() {
		sess.EstablishedAt = NowFunc().UTC()
	}

	s.mutex.Lock()
	s.current = &sess
	s.mutex.Unlock()

	return s.persist(ctx, sess)
}

// Clear destroys the active session and both slots.
func (s *Store) Clear(ctx context.Context) error {
	s.mutex.Lock()
	s.current = nil
	s.mutex.Unlock()

	if err := s.slots.Delete(ctx, s.contextID, SlotUser, SlotUID); err != nil {
		return errors.Wrap(err, "clearing session slots")
	}
	return nil
}

func (s *Store) persist(ctx context.Context, sess Session) error {
	data, err := json.Marshal(persisted{Identity: sess.Identity, EstablishedAt: sess.EstablishedAt})
	if err != nil {
		return errors.Wrap(err, "marshalling session")
	}
	if err := s.slots.Set(ctx, s.contextID, SlotUser, string(data)); err != nil {
		return errors.Wrap(err, "persisting session")
	}
	if err := s.slots.Set(ctx, s.contextID, SlotUID, sess.Identity.UID); err != nil {
		return errors.Wrap(err, "persisting session uid")
	}
	return nil
}

// loadPersisted reads the SlotUser slot. A corrupt slot counts as empty.
func (s *Store) loadPersisted(ctx context.Context) (*Session, error) {
	data, err := s.slots.Get(ctx, s.contextID, SlotUser)
	if err != nil {
		if errors.Cause(err) == ErrSlotEmpty {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading session slot")
	}
	var p persisted
	if err := json.Unmarshal([]byte(data), &p); err != nil || p.UID == "" {
		return nil, nil
	}
	return &Session{Identity: p.Identity, EstablishedAt: p.EstablishedAt}, nil
}

// restore loads the persisted session into memory.
func (s *Store) restore(ctx context.Context) error {
	sess, err := s.loadPersisted(ctx)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	s.current = sess
	s.mutex.Unlock()
	return nil
}

// OnAuthStateChanged applies an auth provider notification.
// A reported principal replaces the session with its profile's identity, or with a
// roleless identity holding only the provider's fields when the profile cannot be resolved.
// Without a principal the persisted session, if any, becomes active.
func (s *Store) OnAuthStateChanged(ctx context.Context, p *Principal) (Session, bool, error) {
	if p == nil {
		sess, err := s.loadPersisted(ctx)
		if err != nil {
			return Session{}, false, err
		}
		s.mutex.Lock()
		s.current = sess
		s.mutex.Unlock()
		if sess == nil {
			return Session{}, false, nil
		}
		return *sess, true, nil
	}

	ident, err := s.finder.FindIdentity(ctx, p.UID)
	if err != nil {
		ident = user.Identity{UID: p.UID, Email: p.Email}
	} else {
		ident.UID = p.UID
		if ident.Email == "" {
			ident.Email = p.Email
		}
	}

	sess := Session{Identity: ident, EstablishedAt: NowFunc().UTC()}
	if err := s.Set(ctx, sess); err != nil {
		return sess, true, err
	}
	return sess, true, nil
}

// Watch applies provider notifications until ctx ends or states is closed.
// onErr, when not nil, receives persistence failures.
func (s *Store) Watch(ctx context.Context, states <-chan ProviderState, onErr func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if _, _, err := s.OnAuthStateChanged(ctx, state.Principal); err != nil && onErr != nil {
				onErr(err)
			}
		}
	}
}
