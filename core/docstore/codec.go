package docstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/trezcool/eduspace/core"
)

// ErrMalformed is matched by every DecodeError.
var ErrMalformed = errors.New("malformed document")

// DecodeError is returned when a document does not fit its record type.
type DecodeError struct {
	ID  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("document %q: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrMalformed }

var timeType = reflect.TypeOf(time.Time{})

type tagInfo struct {
	name      string
	isID      bool
	omitEmpty bool
}

// parseTag reads `doc:"name[,omitempty]"` or `doc:",id"`.
// ok is false for `doc:"-"` and untagged fields.
func parseTag(fld reflect.StructField) (tagInfo, bool) {
	tag, found := fld.Tag.Lookup("doc")
	if !found || tag == "-" || fld.PkgPath != "" {
		return tagInfo{}, false
	}
	parts := strings.Split(tag, ",")
	info := tagInfo{name: parts[0]}
	for _, opt := range parts[1:] {
		switch opt {
		case "id":
			info.isID = true
		case "omitempty":
			info.omitEmpty = true
		}
	}
	if info.name == "" && !info.isID {
		info.name = fld.Name
	}
	return info, true
}

// Encode maps a `doc`-tagged record onto document fields.
// Values are normalized to the types every backend returns: string, bool, int64,
// float64, time.Time (UTC), []interface{} and map[string]interface{}.
func Encode(record interface{}) Fields {
	rv := reflect.Indirect(reflect.ValueOf(record))
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return encodeStruct(rv)
}

func encodeStruct(rv reflect.Value) Fields {
	fields := make(Fields)
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		info, ok := parseTag(rt.Field(i))
		if !ok || info.isID {
			continue
		}
		fv := rv.Field(i)
		if info.omitEmpty && fv.IsZero() {
			continue
		}
		fields[info.name] = normalizeValue(fv)
	}
	return fields
}

// Normalize deep-copies a field value into the normalized types produced by Encode.
func Normalize(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	return normalizeValue(reflect.ValueOf(v))
}

// CloneFields deep-copies fields.
func CloneFields(fields Fields) Fields {
	if fields == nil {
		return nil
	}
	clone := make(Fields, len(fields))
	for k, v := range fields {
		clone[k] = Normalize(v)
	}
	return clone
}

func normalizeValue(rv reflect.Value) interface{} {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		m := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[fmt.Sprint(iter.Key().Interface())] = normalizeValue(iter.Value())
		}
		return m
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		s := make([]interface{}, rv.Len())
		for i := range s {
			s[i] = normalizeValue(rv.Index(i))
		}
		return s
	case reflect.Struct:
		if rv.Type() == timeType {
			return rv.Interface().(time.Time).UTC()
		}
		return map[string]interface{}(encodeStruct(rv))
	}
	return rv.Interface()
}

// Decode maps doc onto the `doc`-tagged record pointed to by dst, then validates it.
// The field tagged `doc:",id"` receives the document id.
func Decode(doc Document, dst interface{}) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.New("docstore: Decode expects a non-nil struct pointer")
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "doc",
		WeaklyTypedInput: true, // form inputs are stored as text
		DecodeHook:       mapstructure.ComposeDecodeHookFunc(trimNumberHook, utcTimeHook),
		Result:           dst,
	})
	if err != nil {
		return errors.Wrap(err, "creating decoder")
	}
	if err := decoder.Decode(map[string]interface{}(doc.Fields)); err != nil {
		return &DecodeError{ID: doc.ID, Err: err}
	}
	setID(rv.Elem(), doc.ID)

	if err := core.Validate.Struct(dst); err != nil {
		return &DecodeError{ID: doc.ID, Err: err}
	}
	return nil
}

// setID runs after decoding: a field tagged `doc:",id"` may share its name with a stored key.
func setID(rv reflect.Value, id string) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		info, ok := parseTag(rt.Field(i))
		if ok && info.isID && rv.Field(i).Kind() == reflect.String {
			rv.Field(i).SetString(id)
			return
		}
	}
}

func trimNumberHook(from, to reflect.Kind, data interface{}) (interface{}, error) {
	if from != reflect.String {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return strings.TrimSpace(data.(string)), nil
	}
	return data, nil
}

// utcTimeHook accepts native times (firestore, memory) and RFC 3339 text (postgres JSON).
func utcTimeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType {
		return data, nil
	}
	switch v := data.(type) {
	case time.Time:
		return v.UTC(), nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, errors.Wrap(err, "parsing time")
		}
		return t.UTC(), nil
	}
	return data, nil
}
