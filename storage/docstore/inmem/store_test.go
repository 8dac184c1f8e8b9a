package inmemdocstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/eduspace/core/docstore"
)

func TestStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	store := New()

	doc, err := store.Create(ctx, docstore.Courses, "", docstore.Fields{"CourseTitle": "Algebra"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)

	got, err := store.Get(ctx, docstore.Courses, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Algebra", got.String("CourseTitle"))
	assert.False(t, got.CreateTime.IsZero())

	// explicit id overwrites
	_, err = store.Create(ctx, docstore.Courses, doc.ID, docstore.Fields{"CourseTitle": "Geometry"})
	require.NoError(t, err)
	got, err = store.Get(ctx, docstore.Courses, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, docstore.Fields{"CourseTitle": "Geometry"}, got.Fields)
	assert.Equal(t, 1, store.Len(docstore.Courses))
}

func TestStore_GetNotFound(t *testing.T) {
	_, err := New().Get(context.Background(), docstore.Users, "nope")
	assert.True(t, docstore.IsNotFound(err))
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	fields := docstore.Fields{"records": map[string]interface{}{"s1": "present"}}
	doc, err := store.Create(ctx, docstore.Attendance, "a1", fields)
	require.NoError(t, err)

	fields["records"].(map[string]interface{})["s1"] = "absent"
	doc.Fields["records"].(map[string]interface{})["s1"] = "absent"

	got, err := store.Get(ctx, docstore.Attendance, "a1")
	require.NoError(t, err)
	assert.Equal(t, "present", got.Fields["records"].(map[string]interface{})["s1"])
}

func TestStore_Update(t *testing.T) {
	ctx := context.Background()
	store := New()
	_, err := store.Create(ctx, docstore.Courses, "c1", docstore.Fields{"CourseTitle": "Algebra", "AvailableSeats": 30})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, docstore.Courses, "c1", docstore.Fields{"AvailableSeats": 29}))
	got, err := store.Get(ctx, docstore.Courses, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Algebra", got.String("CourseTitle"))
	assert.Equal(t, int64(29), got.Fields["AvailableSeats"])

	err = store.Update(ctx, docstore.Courses, "nope", docstore.Fields{"x": 1})
	assert.True(t, docstore.IsNotFound(err))
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := New()
	_, err := store.Create(ctx, docstore.Content, "x", docstore.Fields{"title": "Intro"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, docstore.Content, "x"))
	require.NoError(t, store.Delete(ctx, docstore.Content, "x"))
	require.NoError(t, store.Delete(ctx, "Unknown", "x"))
	assert.Equal(t, 0, store.Len(docstore.Content))
}

func TestStore_List(t *testing.T) {
	ctx := context.Background()
	store := New()
	for id, cat := range map[string]string{"a": "math", "b": "art", "c": "math"} {
		_, err := store.Create(ctx, docstore.Courses, id, docstore.Fields{"CourseCategory": cat})
		require.NoError(t, err)
	}

	docs, err := store.List(ctx, docstore.Courses, docstore.Where("CourseCategory", docstore.OpEqual, "math"))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "c", docs[1].ID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.List(cancelled, docstore.Courses, docstore.Query{})
	assert.True(t, docstore.IsUnavailable(err))
}

func TestStore_Subscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := New()

	snapshots := make(chan []docstore.Document, 10)
	unsubscribe, err := store.Subscribe(ctx, docstore.Attendance, docstore.Where("subject", docstore.OpEqual, "math"),
		func(docs []docstore.Document, err error) {
			assert.NoError(t, err)
			snapshots <- docs
		})
	require.NoError(t, err)

	next := func() []docstore.Document {
		select {
		case docs := <-snapshots:
			return docs
		case <-time.After(time.Second):
			t.Fatal("no snapshot delivered")
			return nil
		}
	}

	assert.Empty(t, next(), "initial snapshot")

	_, err = store.Create(ctx, docstore.Attendance, "a1", docstore.Fields{"subject": "math"})
	require.NoError(t, err)
	assert.Len(t, next(), 1)

	unsubscribe()
	unsubscribe() // no-op

	_, err = store.Create(ctx, docstore.Attendance, "a2", docstore.Fields{"subject": "math"})
	require.NoError(t, err)
	select {
	case <-snapshots:
		t.Fatal("snapshot delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStore_SubscribeEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := New()

	delivered := make(chan struct{}, 10)
	_, err := store.Subscribe(ctx, docstore.ExamResults, docstore.Query{}, func([]docstore.Document, error) {
		delivered <- struct{}{}
	})
	require.NoError(t, err)
	<-delivered // initial snapshot

	cancel()
	assert.Eventually(t, func() bool {
		store.subsMutex.Lock()
		defer store.subsMutex.Unlock()
		return len(store.subs[docstore.ExamResults]) == 0
	}, time.Second, 5*time.Millisecond)
}
