package cryo

import (
	"database/sql"
	"fmt"
	"reflect"
)

var (
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	enumType    = reflect.TypeOf((*Enum)(nil)).Elem()
)

// TypeKind is the semantic kind of a property type
type TypeKind int

const (
	KindPrimitive TypeKind = iota
	KindEnum
	KindObject
)

func (k TypeKind) String() string {
	switch k {
	case KindEnum:
		return "enum"
	case KindObject:
		return "object"
	}
	return "primitive"
}

// Factory creates a blank instance of an object type
//
// the returned value must be a non-nil pointer to the object type - no
// initialisation logic of the type should be run
type Factory func() any

// TypeDescriptor describes the declared type of a property
type TypeDescriptor struct {
	rt      reflect.Type
	kind    TypeKind
	factory Factory
}

// TypeOf creates a TypeDescriptor for the declared type
//
// structs (or pointers to structs) that are not scannable are objects, named types implementing Enum are enums,
// everything else is primitive
func TypeOf(rt reflect.Type) *TypeDescriptor {
	td := &TypeDescriptor{rt: rt, kind: KindPrimitive}
	switch {
	case rt == nil:
	case isObjectType(rt):
		td.kind = KindObject
	case rt.Implements(enumType) || (rt.Kind() == reflect.Ptr && rt.Elem().Implements(enumType)):
		td.kind = KindEnum
	}
	return td
}

// ObjectTypeOf creates an object TypeDescriptor regardless of scannability
//
// rt must be a struct or pointer to struct
func ObjectTypeOf(rt reflect.Type) (*TypeDescriptor, error) {
	if rt == nil || derefType(rt).Kind() != reflect.Struct {
		return nil, metadataf("%v not an object type", rt)
	}
	if pointerDepth(rt) > 1 {
		return nil, metadataf("%v has more than one level of pointer", rt)
	}
	return &TypeDescriptor{rt: rt, kind: KindObject}, nil
}

// WithFactory returns a copy of the descriptor using the supplied factory for blank instances
func (td *TypeDescriptor) WithFactory(f Factory) *TypeDescriptor {
	cp := *td
	cp.factory = f
	return &cp
}

// Type is the declared type (e.g. *Address)
func (td *TypeDescriptor) Type() reflect.Type {
	return td.rt
}

// Kind is the semantic kind
func (td *TypeDescriptor) Kind() TypeKind {
	return td.kind
}

// IsObject returns true when the type is decomposed into further properties
func (td *TypeDescriptor) IsObject() bool {
	return td.kind == KindObject
}

// IsPointer returns true when the declared type is a pointer (i.e. the value can be absent)
func (td *TypeDescriptor) IsPointer() bool {
	return td.rt != nil && td.rt.Kind() == reflect.Ptr
}

// ObjectType is the struct type behind the declared type
func (td *TypeDescriptor) ObjectType() reflect.Type {
	if td.rt == nil {
		return nil
	}
	return derefType(td.rt)
}

// New creates a blank instance of the object type, returned as a pointer
func (td *TypeDescriptor) New() (reflect.Value, error) {
	if td.kind != KindObject {
		return reflect.Value{}, metadataf("%v not a class", td.rt)
	}
	ot := td.ObjectType()
	if td.factory == nil {
		return reflect.New(ot), nil
	}
	v := reflect.ValueOf(td.factory())
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() || v.Type().Elem() != ot {
		return reflect.Value{}, metadataf("factory for %v returned %s", ot, typeName(v))
	}
	return v, nil
}

func (td *TypeDescriptor) String() string {
	if td.rt == nil {
		return "<nil>"
	}
	return td.rt.String()
}

func isObjectType(rt reflect.Type) bool {
	t := derefType(rt)
	return t.Kind() == reflect.Struct && !isScannable(t)
}

func isScannable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return true
	}
	// time.Time isn't a Scanner but every driver handles it
	if t.PkgPath() == "time" && t.Name() == "Time" {
		return true
	}
	return t.Implements(scannerType) || reflect.PointerTo(t).Implements(scannerType)
}

func pointerDepth(t reflect.Type) (depth int) {
	for ; t.Kind() == reflect.Ptr; t = t.Elem() {
		depth++
	}
	return depth
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func typeName(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	return fmt.Sprintf("%v", v.Type())
}
