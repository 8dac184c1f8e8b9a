// Package inmemdocstore is the in-memory document store used in development and tests.
package inmemdocstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/eduspace/core/docstore"
)

var NowFunc = time.Now // mockable

type (
	collection map[string]docstore.Document // {id: doc}

	Store struct {
		mutex       sync.RWMutex
		collections map[string]collection

		subsMutex sync.Mutex
		subs      map[string]map[*subscription]struct{} // {collection: subs}
	}

	subscription struct {
		collection string
		query      docstore.Query
		fn         docstore.Listener
		notify     chan struct{}
		done       chan struct{}
		once       sync.Once
	}
)

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string]collection),
		subs:        make(map[string]map[*subscription]struct{}),
	}
}

func (s *Store) coll(name string) collection {
	c, ok := s.collections[name]
	if !ok {
		c = make(collection)
		s.collections[name] = c
	}
	return c
}

func clone(doc docstore.Document) docstore.Document {
	doc.Fields = docstore.CloneFields(doc.Fields)
	return doc
}

// query returns sorted (by id) copies of the docs of a collection matching q.
// The caller must hold the read lock.
func (s *Store) query(name string, q docstore.Query) []docstore.Document {
	c := s.collections[name]
	docs := make([]docstore.Document, 0, len(c))
	for _, doc := range c {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	res := q.Apply(docs)
	for i := range res {
		res[i] = clone(res[i])
	}
	return res
}

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, docstore.NewBackendError("list", collection, err)
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.query(collection, q), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, docstore.NewBackendError("get", collection, err)
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if doc, ok := s.collections[collection][id]; ok {
		return clone(doc), nil
	}
	return docstore.Document{}, docstore.ErrNotFound
}

func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, docstore.NewBackendError("create", collection, err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	now := NowFunc().UTC()
	doc := docstore.Document{
		ID:         id,
		Fields:     docstore.CloneFields(fields),
		CreateTime: now,
		UpdateTime: now,
	}
	if doc.Fields == nil {
		doc.Fields = make(docstore.Fields)
	}

	s.mutex.Lock()
	s.coll(collection)[id] = doc
	s.mutex.Unlock()

	s.publish(collection)
	return clone(doc), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return docstore.NewBackendError("update", collection, err)
	}

	s.mutex.Lock()
	doc, ok := s.collections[collection][id]
	if !ok {
		s.mutex.Unlock()
		return docstore.ErrNotFound
	}
	merged := docstore.CloneFields(doc.Fields)
	for k, v := range fields {
		merged[k] = docstore.Normalize(v)
	}
	doc.Fields = merged
	doc.UpdateTime = NowFunc().UTC()
	s.collections[collection][id] = doc
	s.mutex.Unlock()

	s.publish(collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return docstore.NewBackendError("delete", collection, err)
	}

	s.mutex.Lock()
	_, existed := s.collections[collection][id]
	delete(s.collections[collection], id)
	s.mutex.Unlock()

	if existed {
		s.publish(collection)
	}
	return nil
}

// Subscribe delivers snapshots from a dedicated goroutine so that slow listeners never block writers.
// Bursts of writes may be coalesced into a single snapshot.
func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query, fn docstore.Listener) (docstore.Unsubscribe, error) {
	if err := ctx.Err(); err != nil {
		return nil, docstore.NewBackendError("subscribe", collection, err)
	}

	sub := &subscription{
		collection: collection,
		query:      q,
		fn:         fn,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	sub.notify <- struct{}{} // initial snapshot

	s.subsMutex.Lock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[*subscription]struct{})
	}
	s.subs[collection][sub] = struct{}{}
	s.subsMutex.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			s.subsMutex.Lock()
			delete(s.subs[collection], sub)
			s.subsMutex.Unlock()
			close(sub.done)
		})
	}

	go s.deliver(ctx, sub)
	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-sub.done:
		}
	}()
	return unsubscribe, nil
}

func (s *Store) deliver(ctx context.Context, sub *subscription) {
	for {
		select {
		case <-sub.done:
			return
		case <-ctx.Done():
			return
		case <-sub.notify:
			s.mutex.RLock()
			docs := s.query(sub.collection, sub.query)
			s.mutex.RUnlock()

			select {
			case <-sub.done:
				return
			default:
				sub.fn(docs, nil)
			}
		}
	}
}

func (s *Store) publish(collection string) {
	s.subsMutex.Lock()
	defer s.subsMutex.Unlock()
	for sub := range s.subs[collection] {
		select {
		case sub.notify <- struct{}{}:
		default: // a snapshot is already pending
		}
	}
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.collections[collection])
}
