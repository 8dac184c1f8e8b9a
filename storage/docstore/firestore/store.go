// Package firestoredocstore implements the document store on Cloud Firestore.
package firestoredocstore

import (
	"context"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/trezcool/eduspace/core/docstore"
)

type Store struct {
	client *firestore.Client
}

var _ docstore.Store = (*Store)(nil)

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

// wrapErr classifies a Firestore error into the docstore taxonomy.
func wrapErr(op, collection string, err error) error {
	if status.Code(err) == codes.NotFound {
		return docstore.ErrNotFound
	}
	return docstore.NewBackendError(op, collection, err)
}

func toDocument(snap *firestore.DocumentSnapshot) docstore.Document {
	return docstore.Document{
		ID:         snap.Ref.ID,
		Fields:     docstore.CloneFields(snap.Data()),
		CreateTime: snap.CreateTime,
		UpdateTime: snap.UpdateTime,
	}
}

func (s *Store) buildQuery(collection string, q docstore.Query) firestore.Query {
	fq := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		fq = fq.Where(f.Field, string(f.Op), f.Value)
	}
	for _, ord := range q.Ordering {
		dir := firestore.Desc
		if ord.Ascending {
			dir = firestore.Asc
		}
		fq = fq.OrderBy(ord.Field, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	iter := s.buildQuery(collection, q).Documents(ctx)
	defer iter.Stop()

	docs := make([]docstore.Document, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, docstore.NewBackendError("list", collection, err)
		}
		docs = append(docs, toDocument(snap))
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return docstore.Document{}, wrapErr("get", collection, err)
	}
	return toDocument(snap), nil
}

func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.Document, error) {
	coll := s.client.Collection(collection)
	ref := coll.NewDoc()
	if id != "" {
		ref = coll.Doc(id)
	}
	data := map[string]interface{}(docstore.CloneFields(fields))
	if data == nil {
		data = make(map[string]interface{})
	}

	res, err := ref.Set(ctx, data)
	if err != nil {
		return docstore.Document{}, wrapErr("create", collection, err)
	}
	return docstore.Document{
		ID:         ref.ID,
		Fields:     docstore.Fields(data),
		CreateTime: res.UpdateTime,
		UpdateTime: res.UpdateTime,
	}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		// FieldPath keeps names such as "Registered-Course" from being parsed as paths
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: docstore.Normalize(v)})
	}
	if _, err := s.client.Collection(collection).Doc(id).Update(ctx, updates); err != nil {
		return errors.Wrap(wrapErr("update", collection, err), "updating document")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return wrapErr("delete", collection, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query, fn docstore.Listener) (docstore.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	iter := s.buildQuery(collection, q).Snapshots(ctx)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			iter.Stop()
		})
	}

	go func() {
		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() == nil && err != iterator.Done && status.Code(err) != codes.Canceled {
					fn(nil, docstore.NewBackendError("subscribe", collection, err))
				}
				return
			}
			fn(readSnapshot(collection, snap))
		}
	}()
	return unsubscribe, nil
}

func readSnapshot(collection string, snap *firestore.QuerySnapshot) ([]docstore.Document, error) {
	docs := make([]docstore.Document, 0, snap.Size)
	for {
		ds, err := snap.Documents.Next()
		if err == iterator.Done {
			return docs, nil
		}
		if err != nil {
			return nil, docstore.NewBackendError("subscribe", collection, err)
		}
		docs = append(docs, toDocument(ds))
	}
}
