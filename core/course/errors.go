package course

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrPartialCascade = errors.New("course deleted but some related documents were not")
)

// CollectionFailure records why related documents of one collection could not be deleted.
type CollectionFailure struct {
	Collection string `json:"collection"`
	Err        error  `json:"-"`
}

// CascadeError is returned by Delete when the course itself was deleted
// but one or more related collections still reference it.
type CascadeError struct {
	CourseID string
	Failed   []CollectionFailure
}

func (e *CascadeError) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		msgs = append(msgs, fmt.Sprintf("%s: %v", f.Collection, f.Err))
	}
	return fmt.Sprintf("deleting course %s: related documents left in %s", e.CourseID, strings.Join(msgs, "; "))
}

func (e *CascadeError) Is(target error) bool { return target == ErrPartialCascade }

// Collections returns the names of the collections that failed, in processing order.
func (e *CascadeError) Collections() []string {
	names := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		names = append(names, f.Collection)
	}
	return names
}
