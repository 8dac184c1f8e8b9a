package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core/docstore"
	"github.com/trezcool/eduspace/core/user"
)

func CreateProfile(
	t *testing.T,
	store docstore.Store,
	uid, loginID, firstName, lastName, email, pwd string,
	role user.Role,
	createdAt ...time.Time,
) user.Profile {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	prof := user.Profile{
		LoginID:   loginID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Role:      role,
		Password:  pwd,
		CreatedAt: tstamp,
	}
	doc, err := store.Create(context.Background(), docstore.Users, uid, docstore.Encode(prof))
	if err != nil {
		t.Fatalf("createProfile() failed: %v", err)
	}
	prof.UID = doc.ID
	return prof
}

// SeedDoc stores raw fields, the way documents written by older clients look.
func SeedDoc(t *testing.T, store docstore.Store, collection, id string, fields docstore.Fields) docstore.Document {
	doc, err := store.Create(context.Background(), collection, id, fields)
	if err != nil {
		t.Fatalf("seedDoc() failed: %v", err)
	}
	return doc
}

// ErrInjected is returned by a FailingStore for the operations it is told to fail.
var ErrInjected = docstore.NewBackendError("inject", "", errors.New("injected failure"))

// FailingStore wraps a Store and fails every operation on the collections in FailOn.
// Op restricts the failure to one operation ("list", "get", "create", "update",
// "delete" or "subscribe"); empty fails them all.
type FailingStore struct {
	docstore.Store

	mu     sync.Mutex
	FailOn map[string]bool
	Op     string
}

var _ docstore.Store = (*FailingStore)(nil)

func NewFailingStore(store docstore.Store, op string, collections ...string) *FailingStore {
	fs := &FailingStore{Store: store, FailOn: make(map[string]bool), Op: op}
	for _, coll := range collections {
		fs.FailOn[coll] = true
	}
	return fs
}

func (fs *FailingStore) fails(op, collection string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.FailOn[collection] && (fs.Op == "" || fs.Op == op)
}

func (fs *FailingStore) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	if fs.fails("list", collection) {
		return nil, ErrInjected
	}
	return fs.Store.List(ctx, collection, q)
}

func (fs *FailingStore) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	if fs.fails("get", collection) {
		return docstore.Document{}, ErrInjected
	}
	return fs.Store.Get(ctx, collection, id)
}

func (fs *FailingStore) Create(ctx context.Context, collection, id string, fields docstore.Fields) (docstore.Document, error) {
	if fs.fails("create", collection) {
		return docstore.Document{}, ErrInjected
	}
	return fs.Store.Create(ctx, collection, id, fields)
}

func (fs *FailingStore) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if fs.fails("update", collection) {
		return ErrInjected
	}
	return fs.Store.Update(ctx, collection, id, fields)
}

func (fs *FailingStore) Delete(ctx context.Context, collection, id string) error {
	if fs.fails("delete", collection) {
		return ErrInjected
	}
	return fs.Store.Delete(ctx, collection, id)
}

func (fs *FailingStore) Subscribe(ctx context.Context, collection string, q docstore.Query, fn docstore.Listener) (docstore.Unsubscribe, error) {
	if fs.fails("subscribe", collection) {
		return nil, ErrInjected
	}
	return fs.Store.Subscribe(ctx, collection, q, fn)
}
