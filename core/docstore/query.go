package docstore

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Op is a filter comparison operator.
type Op string

// Operators
const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpIn           Op = "in"
)

type (
	Filter struct {
		Field string
		Op    Op
		Value interface{}
	}

	Ordering struct {
		Field     string
		Ascending bool
	}

	// Query selects documents of a collection. Filters are ANDed.
	Query struct {
		Filters  []Filter
		Ordering []Ordering
		Limit    int // 0: no limit
	}
)

func (ord Ordering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Where starts a query with a single filter.
func Where(field string, op Op, value interface{}) Query {
	return Query{}.Where(field, op, value)
}

func (q Query) Where(field string, op Op, value interface{}) Query {
	q.Filters = append(q.Filters[:len(q.Filters):len(q.Filters)], Filter{Field: field, Op: op, Value: value})
	return q
}

func (q Query) OrderBy(field string, ascending bool) Query {
	q.Ordering = append(q.Ordering[:len(q.Ordering):len(q.Ordering)], Ordering{Field: field, Ascending: ascending})
	return q
}

func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Match reports whether fields satisfy every filter.
func (q Query) Match(fields Fields) bool {
	for _, f := range q.Filters {
		if !f.Match(fields) {
			return false
		}
	}
	return true
}

// Match reports whether fields satisfy the filter. A missing field never matches.
func (f Filter) Match(fields Fields) bool {
	val, ok := fields[f.Field]
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return Equal(val, f.Value)
	case OpNotEqual:
		return !Equal(val, f.Value)
	case OpIn:
		rv := reflect.ValueOf(f.Value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return false
		}
		for i := 0; i < rv.Len(); i++ {
			if Equal(val, rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}

	cmp, ok := Compare(val, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	}
	return false
}

// Apply filters, sorts and limits docs in place of a backend query engine.
func (q Query) Apply(docs []Document) []Document {
	res := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if q.Match(doc.Fields) {
			res = append(res, doc)
		}
	}
	if len(q.Ordering) > 0 {
		sort.SliceStable(res, func(i, j int) bool {
			for _, ord := range q.Ordering {
				cmp, _ := Compare(res[i].Fields[ord.Field], res[j].Fields[ord.Field])
				if cmp == 0 {
					continue
				}
				if ord.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
			return false
		})
	}
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res
}

// Equal compares two field values, treating every numeric type alike.
func Equal(a, b interface{}) bool {
	if cmp, ok := Compare(a, b); ok {
		return cmp == 0
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two field values of the same family (number, string, bool, time).
// ok is false when the values cannot be ordered against each other.
func Compare(a, b interface{}) (cmp int, ok bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.String {
		if rb.Kind() != reflect.String {
			return 0, false
		}
		return strings.Compare(ra.String(), rb.String()), true
	}
	if ra.Kind() == reflect.Bool {
		if rb.Kind() != reflect.Bool {
			return 0, false
		}
		av, bv := ra.Bool(), rb.Bool()
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}

	av, aok := a.(time.Time)
	bv, bok := b.(time.Time)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case av.Before(bv):
		return -1, true
	case av.After(bv):
		return 1, true
	}
	return 0, true
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
