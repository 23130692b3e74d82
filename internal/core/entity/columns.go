// Package entity maps structs tagged with `db` onto table columns.
package entity

import (
	"reflect"
	"sync"
)

// Columns extracts column names from the "db" tags of T.
// Embedded structs are flattened. Called once per repository at construction.
//
// Usage:
//
//	columns := entity.Columns[warehouse.Warehouse]()
//	// Returns: ["id", "code", "name", "address", ...]
func Columns[T any]() []string {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil
	}
	return columnsOf(t)
}

func columnsOf(t reflect.Type) []string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	meta := metadataOf(t)
	cols := make([]string, 0, len(meta.fields))
	for _, fi := range meta.fields {
		cols = append(cols, fi.dbTag)
	}
	for _, idx := range meta.embedded {
		cols = append(cols, columnsOf(t.Field(idx).Type)...)
	}
	return cols
}

// fieldInfo describes one column-tagged struct field.
type fieldInfo struct {
	index int
	dbTag string
}

// typeMetadata contains cached reflection metadata for a type.
type typeMetadata struct {
	fields   []fieldInfo
	embedded []int
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func metadataOf(t reflect.Type) *typeMetadata {
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			meta.embedded = append(meta.embedded, i)
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}
		meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
	}

	typeCache.Store(t, meta)
	return meta
}

// ToMap converts a struct to a map keyed by its "db" tags.
// nil pointers and non-struct values yield nil.
func ToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	res := make(map[string]any)
	toMapValue(rv, res)
	return res
}

// toMapValue walks rv without leaving reflection, so promoted columns of
// unexported embedded structs stay reachable.
func toMapValue(rv reflect.Value, res map[string]any) {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return
	}

	meta := metadataOf(rv.Type())
	for _, fi := range meta.fields {
		res[fi.dbTag] = rv.Field(fi.index).Interface()
	}
	for _, idx := range meta.embedded {
		toMapValue(rv.Field(idx), res)
	}
}
