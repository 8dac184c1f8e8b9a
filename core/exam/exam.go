// Package exam records exam marks and serves them back per student.
package exam

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/docstore"
)

var NowFunc = time.Now // mockable

// DefaultSubject labels results recorded without a subject.
const DefaultSubject = "Academic Result"

// Marks maps subject names to scores.
type Marks map[string]float64

// Result is an `ExamResults` document: the marks of every student for one exam.
type Result struct {
	ID         string           `json:"id" doc:",id"`
	ExamName   string           `json:"examName" doc:"examName" validate:"required"`
	Subject    string           `json:"subject" doc:"subject"`
	Results    map[string]Marks `json:"results" doc:"results"`
	RecordedBy string           `json:"recordedBy" doc:"recordedBy,omitempty"`
	Timestamp  time.Time        `json:"timestamp" doc:"timestamp,omitempty"`
}

// NewResult contains information needed to record an exam.
type NewResult struct {
	ExamName string           `json:"examName" validate:"required,notblank"`
	Subject  string           `json:"subject"`
	Results  map[string]Marks `json:"results" validate:"required,min=1,dive,keys,required,endkeys,required,dive,keys,required,endkeys,min=0"`
}

func (nr *NewResult) clean() {
	nr.ExamName = core.CleanString(nr.ExamName)
	nr.Subject = core.CleanString(nr.Subject)
}

// StudentResult is the view of one exam for one student.
type StudentResult struct {
	ID        string    `json:"id"`
	ExamName  string    `json:"examName"`
	Subject   string    `json:"subject"`
	Marks     Marks     `json:"marks"`
	Timestamp time.Time `json:"timestamp"`
}

type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

// Record stores the marks of an exam.
func (svc *Service) Record(ctx context.Context, recordedBy string, nr NewResult) (Result, error) {
	nr.clean()
	if err := core.Validate.Struct(nr); err != nil {
		return Result{}, err
	}

	res := Result{
		ExamName:   nr.ExamName,
		Subject:    nr.Subject,
		Results:    nr.Results,
		RecordedBy: recordedBy,
		Timestamp:  NowFunc().UTC(),
	}
	doc, err := svc.store.Create(ctx, docstore.ExamResults, "", docstore.Encode(res))
	if err != nil {
		return Result{}, errors.Wrap(err, "recording exam results")
	}
	res.ID = doc.ID
	return res, nil
}

var newestFirst = docstore.Query{}.OrderBy("timestamp", false)

func resultsFor(uid string, docs []docstore.Document) []StudentResult {
	res := make([]StudentResult, 0)
	for _, doc := range docs {
		var r Result
		if err := docstore.Decode(doc, &r); err != nil {
			continue
		}
		marks, ok := r.Results[uid]
		if !ok {
			continue
		}
		subject := r.Subject
		if subject == "" {
			subject = DefaultSubject
		}
		res = append(res, StudentResult{ID: r.ID, ExamName: r.ExamName, Subject: subject, Marks: marks, Timestamp: r.Timestamp})
	}
	return res
}

// ResultsForStudent returns the exams a student has marks for, newest first.
func (svc *Service) ResultsForStudent(ctx context.Context, uid string) ([]StudentResult, error) {
	docs, err := svc.store.List(ctx, docstore.ExamResults, newestFirst)
	if err != nil {
		return nil, errors.Wrap(err, "listing exam results")
	}
	return resultsFor(uid, docs), nil
}

// Subscribe delivers the results of a student each time exam results change, until ctx ends.
func (svc *Service) Subscribe(ctx context.Context, uid string, fn func([]StudentResult, error)) error {
	return docstore.Watch(ctx, svc.store, docstore.ExamResults, newestFirst, func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, err)
			return
		}
		fn(resultsFor(uid, docs), nil)
	})
}
