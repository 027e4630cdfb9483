package repository

import (
	"cmp"
	"reflect"
)

// Aggregate is a persisted domain entity identified by a totally ordered key.
// Implementations are GORM models whose primary key field holds the identifier.
type Aggregate[K cmp.Ordered] interface {
	AggregateID() K
}

// AggregateInfo names the accessor an aggregate type is stored under.
//
// Name is conventionally the implementation type name. Model is a prototype
// value (usually a pointer to the zero struct) used to derive the table.
// Preload lists associations loaded with every read and saved or removed
// together with the root.
type AggregateInfo struct {
	Name    string
	Model   any
	Preload []string
}

func isNilAggregate(agg any) bool {
	if agg == nil {
		return true
	}
	v := reflect.ValueOf(agg)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
