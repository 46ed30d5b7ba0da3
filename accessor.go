package dynpatch

import (
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"unsafe"
)

type (
	// SearchPathAccessor reads and replaces the search list of a loader.
	SearchPathAccessor interface {
		Load() (*Elements, error)                //current published list
		CompareAndSwap(old, next *Elements) bool //publish next if old is still current
	}
	// Shape names the private fields leading from a loader to its search list.
	Shape struct {
		Container string //field of the loader struct, a pointer to the container struct
		Entries   string //field of the container struct, an atomic.Pointer[Elements]
	}
	slotAccessor struct {
		slot *atomic.Pointer[Elements]
	}
)

// DefaultShape matches Loader.
var DefaultShape = Shape{Container: "pathList", Entries: "elements"}

var slotType = reflect.TypeOf(atomic.Pointer[Elements]{})

// Introspect locate the search list of loader by its private fields. loader must be a non-nil pointer to a
// struct shaped as described by shape, exported fields are not required.
func Introspect(loader any, shape Shape) (SearchPathAccessor, error) {
	v := reflect.ValueOf(loader)
	if v.Kind() != reflect.Pointer {
		return nil, fail(IntrospectionError, "loader", "", fmt.Errorf("%T is not a pointer", loader))
	}
	if v.IsNil() {
		return nil, fail(NullStateError, "loader", "", fmt.Errorf("nil %T", loader))
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return nil, fail(IntrospectionError, "loader", "", fmt.Errorf("%T is not a struct pointer", loader))
	}
	c := v.FieldByName(shape.Container)
	if !c.IsValid() {
		return nil, fail(IntrospectionError, "container", "", fmt.Errorf("%s has no field %s", v.Type(), shape.Container))
	}
	if c.Kind() != reflect.Pointer || c.Type().Elem().Kind() != reflect.Struct {
		return nil, fail(IntrospectionError, "container", "", fmt.Errorf("%s.%s is %s", v.Type(), shape.Container, c.Type()))
	}
	if c.IsNil() {
		return nil, fail(NullStateError, "container", "", fmt.Errorf("%s.%s is nil", v.Type(), shape.Container))
	}
	c = c.Elem()
	e := c.FieldByName(shape.Entries)
	if !e.IsValid() {
		return nil, fail(IntrospectionError, "entries", "", fmt.Errorf("%s has no field %s", c.Type(), shape.Entries))
	}
	if e.Type() != slotType {
		return nil, fail(IntrospectionError, "entries", "", fmt.Errorf("%s.%s is %s, want %s", c.Type(), shape.Entries, e.Type(), slotType))
	}
	return slotAccessor{slot: (*atomic.Pointer[Elements])(unsafe.Pointer(e.UnsafeAddr()))}, nil
}

func (s slotAccessor) Load() (*Elements, error) {
	e := s.slot.Load()
	if e == nil {
		return nil, fail(NullStateError, "entries", "", errors.New("search list never published"))
	}
	return e, nil
}

func (s slotAccessor) CompareAndSwap(old, next *Elements) bool {
	return s.slot.CompareAndSwap(old, next)
}
