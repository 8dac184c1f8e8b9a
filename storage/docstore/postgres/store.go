// Package pgdocstore stores documents as JSONB rows of a single Postgres table.
// Equality filters are pushed down with `@>`; the remaining filters, ordering and
// limit are applied in process. Subscriptions use LISTEN/NOTIFY.
package pgdocstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core/docstore"
)

const notifyChannel = "docstore_changes"

type (
	Store struct {
		db  *sqlx.DB
		dsn string
	}

	row struct {
		ID        string         `db:"id"`
		Fields    types.JSONText `db:"fields"`
		CreatedAt time.Time      `db:"created_at"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
)

var _ docstore.Store = (*Store)(nil)

// New returns a store on db. dsn is used to open LISTEN connections.
func New(db *sqlx.DB, dsn string) *Store {
	return &Store{db: db, dsn: dsn}
}

func (r row) document() (docstore.Document, error) {
	fields := make(docstore.Fields)
	if err := r.Fields.Unmarshal(&fields); err != nil {
		return docstore.Document{}, errors.Wrap(err, "unmarshalling fields")
	}
	return docstore.Document{
		ID:         r.ID,
		Fields:     fields,
		CreateTime: r.CreatedAt.UTC(),
		UpdateTime: r.UpdatedAt.UTC(),
	}, nil
}

func marshalFields(fields docstore.Fields) (types.JSONText, error) {
	if fields == nil {
		fields = make(docstore.Fields)
	}
	b, err := json.Marshal(docstore.CloneFields(fields))
	if err != nil {
		return nil, errors.Wrap(err, "marshalling fields")
	}
	return types.JSONText(b), nil
}

// containment builds the `@>` operand of the scalar equality filters of q.
func containment(q docstore.Query) docstore.Fields {
	var contained docstore.Fields
	for _, f := range q.Filters {
		if f.Op != docstore.OpEqual {
			continue
		}
		switch v := docstore.Normalize(f.Value).(type) {
		case string, bool, int64, float64:
			if contained == nil {
				contained = make(docstore.Fields)
			}
			contained[f.Field] = v
		}
	}
	return contained
}

func (s *Store) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	query := "SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1"
	args := []interface{}{collection}
	if contained := containment(q); contained != nil {
		operand, err := marshalFields(contained)
		if err != nil {
			return nil, err
		}
		query += " AND fields @> $2::jsonb"
		args = append(args, operand)
	}
	query += " ORDER BY id"

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, docstore.NewBackendError("list", collection, err)
	}

	docs := make([]docstore.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, docstore.NewBackendError("list", collection, err)
		}
		docs = append(docs, doc)
	}
	return q.Apply(docs), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	var r row
	err := s.db.GetContext(ctx, &r,
		"SELECT id, fields, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2",
		collection, id)
	if err == sql.ErrNoRows {
		return docstore.Document{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Document{}, docstore.NewBackendError("get", collection, err)
	}
	doc, err := r.document()
	if err != nil {
		return docstore.Document{}, docstore.NewBackendError("get", collection, err)
	}
	return doc, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	data, err := marshalFields(fields)
	if err != nil {
		return docstore.Document{}, err
	}

	var r row
	err = s.db.GetContext(ctx, &r, `
		INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields, updated_at = now()
		RETURNING id, fields, created_at, updated_at`,
		collection, id, data)
	if err != nil {
		return docstore.Document{}, docstore.NewBackendError("create", collection, err)
	}
	doc, err := r.document()
	if err != nil {
		return docstore.Document{}, docstore.NewBackendError("create", collection, err)
	}
	return doc, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	data, err := marshalFields(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET fields = fields || $3::jsonb, updated_at = now() WHERE collection = $1 AND id = $2",
		collection, id, data)
	if err != nil {
		return docstore.NewBackendError("update", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return docstore.NewBackendError("update", collection, err)
	}
	if n == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE collection = $1 AND id = $2", collection, id); err != nil {
		return docstore.NewBackendError("delete", collection, err)
	}
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, q docstore.Query, fn docstore.Listener) (docstore.Unsubscribe, error) {
	listener := pq.NewListener(s.dsn, 100*time.Millisecond, 10*time.Second, nil)
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, docstore.NewBackendError("subscribe", collection, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = listener.Close()
		})
	}

	snapshot := func() {
		docs, err := s.List(ctx, collection, q)
		if ctx.Err() != nil {
			return
		}
		fn(docs, err)
	}

	go func() {
		defer unsubscribe()
		snapshot()
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// n is nil after a reconnection: changes may have been missed
				if n == nil || n.Extra == collection {
					snapshot()
				}
			case <-time.After(90 * time.Second):
				go func() { _ = listener.Ping() }()
			}
		}
	}()
	return unsubscribe, nil
}
