// Package attendance records daily presence per subject and derives student statistics.
package attendance

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
	"github.com/trezcool/eduspace/core/docstore"
)

var NowFunc = time.Now // mockable

type Status string

// Statuses
const (
	Present Status = "present"
	Absent  Status = "absent"
)

var (
	statusTag  = "attendance_status"
	statusText = "status must be either present or absent"
)

func init() {
	_ = core.Validate.RegisterValidation(statusTag, func(fl validator.FieldLevel) bool {
		s := Status(fl.Field().String())
		return s == Present || s == Absent
	})
	core.RegisterCustomTranslation(core.Validate, core.Translator, statusTag, statusText)
}

// Record holds the attendance of one (date, subject) pair.
// Records written before subjects were tracked have an empty Subject.
type Record struct {
	ID         string            `json:"id" doc:",id"`
	Date       string            `json:"date" doc:"date" validate:"required,isodate"`
	Subject    string            `json:"subject" doc:"subject"`
	Records    map[string]Status `json:"records" doc:"records" validate:"dive,keys,required,endkeys,attendance_status"`
	RecordedBy string            `json:"recordedBy" doc:"recordedBy,omitempty"`
	Timestamp  time.Time         `json:"timestamp" doc:"timestamp,omitempty"`
}

// NewRecord contains information needed to mark attendance.
type NewRecord struct {
	Date    string            `json:"date" validate:"required,isodate"`
	Subject string            `json:"subject"`
	Records map[string]Status `json:"records" validate:"required,min=1,dive,keys,required,endkeys,attendance_status"`
}

func (nr *NewRecord) clean() {
	nr.Date = core.CleanString(nr.Date)
	nr.Subject = core.CleanString(nr.Subject)
}

// Entry is the attendance of one student on one day.
type Entry struct {
	RecordID string `json:"id"`
	Date     string `json:"date"`
	Subject  string `json:"subject"`
	Status   Status `json:"status"`
}

type Stats struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Percentage int `json:"percentage"`
}

// ComputeStats counts entries; anything but present counts as absent.
// Percentage is the rounded share of present entries, 0 when there are none.
func ComputeStats(entries []Entry) Stats {
	stats := Stats{Total: len(entries)}
	for _, e := range entries {
		if e.Status == Present {
			stats.Present++
		} else {
			stats.Absent++
		}
	}
	if stats.Total > 0 {
		stats.Percentage = int(math.Round(float64(stats.Present) / float64(stats.Total) * 100))
	}
	return stats
}

type Service struct {
	store docstore.Store
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store}
}

func decodeAll(docs []docstore.Document) []Record {
	res := make([]Record, 0, len(docs))
	for _, doc := range docs {
		var rec Record
		if err := docstore.Decode(doc, &rec); err != nil {
			continue
		}
		res = append(res, rec)
	}
	return res
}

func keyQuery(date, subject string) docstore.Query {
	return docstore.Where("date", docstore.OpEqual, date).Where("subject", docstore.OpEqual, subject)
}

// Mark stores the attendance of a (date, subject) pair, replacing the statuses
// of an existing record for the same pair.
func (svc *Service) Mark(ctx context.Context, recordedBy string, nr NewRecord) (Record, error) {
	nr.clean()
	if err := core.Validate.Struct(nr); err != nil {
		return Record{}, err
	}

	rec := Record{
		Date:       nr.Date,
		Subject:    nr.Subject,
		Records:    nr.Records,
		RecordedBy: recordedBy,
		Timestamp:  NowFunc().UTC(),
	}

	existing, err := svc.store.List(ctx, docstore.Attendance, keyQuery(nr.Date, nr.Subject).WithLimit(1))
	if err != nil {
		return Record{}, errors.Wrap(err, "looking up attendance")
	}
	if len(existing) > 0 {
		rec.ID = existing[0].ID
		fields := docstore.Fields{
			"records":    docstore.Normalize(rec.Records),
			"recordedBy": rec.RecordedBy,
			"timestamp":  rec.Timestamp,
		}
		if err := svc.store.Update(ctx, docstore.Attendance, rec.ID, fields); err != nil {
			return Record{}, errors.Wrap(err, "updating attendance")
		}
		return rec, nil
	}

	doc, err := svc.store.Create(ctx, docstore.Attendance, "", docstore.Encode(rec))
	if err != nil {
		return Record{}, errors.Wrap(err, "marking attendance")
	}
	rec.ID = doc.ID
	return rec, nil
}

// ListForDate returns the records of a day sorted by subject.
func (svc *Service) ListForDate(ctx context.Context, date string) ([]Record, error) {
	docs, err := svc.store.List(ctx, docstore.Attendance, docstore.Where("date", docstore.OpEqual, date))
	if err != nil {
		return nil, errors.Wrap(err, "listing attendance")
	}
	recs := decodeAll(docs)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Subject < recs[j].Subject })
	return recs, nil
}

var historyQuery = docstore.Query{}.OrderBy("date", false)

// entriesFor extracts the entries of a student from records, newest first.
func entriesFor(uid string, recs []Record) []Entry {
	entries := make([]Entry, 0)
	for _, rec := range recs {
		if status, ok := rec.Records[uid]; ok && status != "" {
			entries = append(entries, Entry{RecordID: rec.ID, Date: rec.Date, Subject: rec.Subject, Status: status})
		}
	}
	return entries
}

// StudentHistory returns the entries of a student, newest first, with their stats.
func (svc *Service) StudentHistory(ctx context.Context, uid string) ([]Entry, Stats, error) {
	docs, err := svc.store.List(ctx, docstore.Attendance, historyQuery)
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, "listing attendance")
	}
	entries := entriesFor(uid, decodeAll(docs))
	return entries, ComputeStats(entries), nil
}

// Subscribe delivers the history of a student each time attendance changes, until ctx ends.
func (svc *Service) Subscribe(ctx context.Context, uid string, fn func([]Entry, Stats, error)) error {
	return docstore.Watch(ctx, svc.store, docstore.Attendance, historyQuery, func(docs []docstore.Document, err error) {
		if err != nil {
			fn(nil, Stats{}, err)
			return
		}
		entries := entriesFor(uid, decodeAll(docs))
		fn(entries, ComputeStats(entries), nil)
	})
}
