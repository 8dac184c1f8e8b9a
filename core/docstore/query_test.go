package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Match(t *testing.T) {
	now := time.Now().UTC()
	fields := Fields{
		"title": "Algebra",
		"seats": int64(30),
		"score": 12.5,
		"open":  true,
		"at":    now,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "eq string", filter: Filter{"title", OpEqual, "Algebra"}, want: true},
		{name: "eq string mismatch", filter: Filter{"title", OpEqual, "Physics"}, want: false},
		{name: "eq across numeric types", filter: Filter{"seats", OpEqual, 30}, want: true},
		{name: "neq", filter: Filter{"title", OpNotEqual, "Physics"}, want: true},
		{name: "lt", filter: Filter{"score", OpLess, 13}, want: true},
		{name: "lte", filter: Filter{"seats", OpLessEqual, 30.0}, want: true},
		{name: "gt", filter: Filter{"seats", OpGreater, 30}, want: false},
		{name: "gte time", filter: Filter{"at", OpGreaterEqual, now.Add(-time.Minute)}, want: true},
		{name: "in", filter: Filter{"title", OpIn, []string{"Physics", "Algebra"}}, want: true},
		{name: "in mismatch", filter: Filter{"title", OpIn, []string{"Physics"}}, want: false},
		{name: "in non-slice", filter: Filter{"title", OpIn, "Algebra"}, want: false},
		{name: "bool", filter: Filter{"open", OpEqual, true}, want: true},
		{name: "missing field", filter: Filter{"nope", OpNotEqual, "x"}, want: false},
		{name: "incomparable", filter: Filter{"title", OpLess, 3}, want: false},
		{name: "named string type", filter: Filter{"title", OpEqual, namedString("Algebra")}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(fields))
		})
	}
}

type namedString string

func TestQuery_Apply(t *testing.T) {
	docs := []Document{
		{ID: "a", Fields: Fields{"cat": "math", "n": int64(3)}},
		{ID: "b", Fields: Fields{"cat": "math", "n": int64(1)}},
		{ID: "c", Fields: Fields{"cat": "art", "n": int64(2)}},
		{ID: "d", Fields: Fields{"cat": "math", "n": int64(2)}},
	}

	tests := []struct {
		name    string
		q       Query
		wantIDs []string
	}{
		{name: "empty query", q: Query{}, wantIDs: []string{"a", "b", "c", "d"}},
		{name: "filter", q: Where("cat", OpEqual, "math"), wantIDs: []string{"a", "b", "d"}},
		{name: "filter + order asc", q: Where("cat", OpEqual, "math").OrderBy("n", true), wantIDs: []string{"b", "d", "a"}},
		{name: "order desc + limit", q: Query{}.OrderBy("n", false).WithLimit(2), wantIDs: []string{"a", "c"}},
		{name: "two filters", q: Where("cat", OpEqual, "math").Where("n", OpGreaterEqual, 2), wantIDs: []string{"a", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.q.Apply(docs)
			ids := make([]string, 0, len(res))
			for _, doc := range res {
				ids = append(ids, doc.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestQuery_WhereDoesNotAlias(t *testing.T) {
	base := Where("a", OpEqual, 1).Where("b", OpEqual, 2)
	q1 := base.Where("c", OpEqual, 3)
	q2 := base.Where("d", OpEqual, 4)
	assert.Equal(t, "c", q1.Filters[2].Field)
	assert.Equal(t, "d", q2.Filters[2].Field)
	assert.Len(t, base.Filters, 2)
}

func TestOrdering_String(t *testing.T) {
	assert.Equal(t, "timestamp DESC", Ordering{Field: "timestamp"}.String())
	assert.Equal(t, "date ASC", Ordering{Field: "date", Ascending: true}.String())
}
