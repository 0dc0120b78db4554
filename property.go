package cryo

import (
	"reflect"
	"strings"
)

// PathSeparator separates property names in a property path
const PathSeparator = "."

// Property is a node in an entity's property tree
//
// A Property is either a leaf bound to a Column, or an interior (embeddable) property whose value is
// decomposed into child properties. The root of a tree is an entity property (see NewEntityProperty) which
// represents the entity itself.
//
// Trees are built once (NewEntityProperty, NewProperty, SetChildren, CreateColumn) and are read-only thereafter.
type Property struct {
	name        string
	path        string
	index       []int
	typ         *TypeDescriptor
	parent      *Property
	annotations Annotations
	column      *Column
	children    map[string]*Property
	order       []*Property
	ancestors   []*Property
	entityType  reflect.Type
}

// NewEntityProperty creates the root property of an entity tree
//
// entityType must be a struct type (or pointer to struct type)
func NewEntityProperty(entityType reflect.Type, annotations ...Annotation) (*Property, error) {
	td, err := ObjectTypeOf(entityType)
	if err != nil {
		return nil, err
	}
	ot := td.ObjectType()
	return &Property{
		typ:         &TypeDescriptor{rt: ot, kind: KindObject},
		annotations: annotations,
		entityType:  ot,
	}, nil
}

// NewProperty creates a property for the named field of the parent's object type
func NewProperty(parent *Property, fieldName string, annotations ...Annotation) (*Property, error) {
	if parent == nil {
		return nil, metadataf("property %q has no parent", fieldName)
	}
	if !parent.typ.IsObject() {
		return nil, metadataf("%s type of %v is not a class", parent.FullName(), parent.typ)
	}
	f, ok := parent.typ.ObjectType().FieldByName(fieldName)
	if !ok || len(f.Index) != 1 {
		return nil, metadataf("%v has no field %q", parent.typ.ObjectType(), fieldName)
	}
	if !f.IsExported() {
		return nil, metadataf("%v field %q is not exported", parent.typ.ObjectType(), fieldName)
	}
	td := TypeOf(f.Type)
	if Annotations(annotations).Has(Embeddable) && !td.IsObject() {
		if td, ok = objectOrNil(f.Type); !ok {
			return nil, metadataf("embeddable %v.%s type of %v is not a class", parent.typ.ObjectType(), fieldName, f.Type)
		}
	}
	return newProperty(parent, f, td, annotations)
}

// NewPropertyWithType is the same as NewProperty but uses the supplied type descriptor (e.g. one with a Factory)
func NewPropertyWithType(parent *Property, fieldName string, td *TypeDescriptor, annotations ...Annotation) (*Property, error) {
	if parent == nil {
		return nil, metadataf("property %q has no parent", fieldName)
	}
	f, ok := parent.typ.ObjectType().FieldByName(fieldName)
	if !ok || len(f.Index) != 1 {
		return nil, metadataf("%v has no field %q", parent.typ.ObjectType(), fieldName)
	}
	if td == nil || td.Type() != f.Type {
		return nil, metadataf("type descriptor %v does not match field %s type of %v", td, fieldName, f.Type)
	}
	return newProperty(parent, f, td, annotations)
}

func objectOrNil(rt reflect.Type) (*TypeDescriptor, bool) {
	td, err := ObjectTypeOf(rt)
	return td, err == nil
}

func newProperty(parent *Property, f reflect.StructField, td *TypeDescriptor, annotations []Annotation) (*Property, error) {
	if td.IsObject() && pointerDepth(td.Type()) > 1 {
		return nil, metadataf("%v.%s type of %v has more than one level of pointer", parent.typ.ObjectType(), f.Name, f.Type)
	}
	p := &Property{
		name:        f.Name,
		index:       f.Index,
		typ:         td,
		parent:      parent,
		annotations: annotations,
		entityType:  parent.entityType,
	}
	if parent.isEntity() {
		p.path = f.Name
	} else {
		p.path = parent.path + PathSeparator + f.Name
	}
	ancestors, err := p.buildAncestors()
	if err != nil {
		return nil, err
	}
	p.ancestors = ancestors
	return p, nil
}

// buildAncestors lists the enclosing properties, root first, excluding the entity property
func (p *Property) buildAncestors() ([]*Property, error) {
	var ancestors []*Property
	for a := p.parent; a != nil && !a.isEntity(); a = a.parent {
		if !a.typ.IsObject() {
			return nil, metadataf("%v not class", a.typ)
		}
		ancestors = append(ancestors, a)
	}
	for i, j := 0, len(ancestors)-1; i < j; i, j = i+1, j-1 {
		ancestors[i], ancestors[j] = ancestors[j], ancestors[i]
	}
	return ancestors, nil
}

func (p *Property) isEntity() bool {
	return p.parent == nil
}

// Name is the local property (field) name - empty for the entity property
func (p *Property) Name() string {
	return p.name
}

// Path is the dot separated path from the entity root
func (p *Property) Path() string {
	return p.path
}

// FullName is the entity type name followed by the path
func (p *Property) FullName() string {
	if p.path == "" {
		return p.entityType.String()
	}
	return p.entityType.String() + PathSeparator + p.path
}

// Type is the property's type descriptor
func (p *Property) Type() *TypeDescriptor {
	return p.typ
}

// Parent is the enclosing property (nil for the entity property)
func (p *Property) Parent() *Property {
	return p.parent
}

// EntityType is the struct type of the tree's entity
func (p *Property) EntityType() reflect.Type {
	return p.entityType
}

// Ancestors is the chain of enclosing properties, root first, that must exist before this property can be written
func (p *Property) Ancestors() []*Property {
	return append([]*Property{}, p.ancestors...)
}

// Column is the leaf column (nil for interior properties)
func (p *Property) Column() *Column {
	return p.column
}

// IsLeaf returns true if the property is bound to a column
func (p *Property) IsLeaf() bool {
	return p.column != nil
}

// Children returns the child properties in declaration order
func (p *Property) Children() []*Property {
	return append([]*Property{}, p.order...)
}

// Child returns the named child property
func (p *Property) Child(name string) (*Property, bool) {
	c, ok := p.children[name]
	return c, ok
}

// Annotations returns the property's own resolved annotations (not inherited ones)
func (p *Property) Annotations() Annotations {
	return p.annotations
}

// Annotation returns the first annotation of the given kind declared on this property or, failing that, on
// the nearest enclosing property that declares one
func (p *Property) Annotation(kind AnnotationKind) (Annotation, bool) {
	for n := p; n != nil; n = n.parent {
		if a, ok := n.annotations.Find(kind); ok {
			return a, true
		}
	}
	return Annotation{}, false
}

// HasAnnotation returns true if Annotation would find one of the given kind
func (p *Property) HasAnnotation(kind AnnotationKind) bool {
	_, ok := p.Annotation(kind)
	return ok
}

// SetChildren sets the child properties (in declaration order) of an interior property
func (p *Property) SetChildren(children ...*Property) error {
	if p.column != nil {
		return metadataf("%s already bound to column %q", p.FullName(), p.column.name)
	}
	if p.children == nil {
		p.children = make(map[string]*Property, len(children))
	}
	for _, c := range children {
		if c == nil || c.parent != p {
			return metadataf("child of %s does not belong to it", p.FullName())
		}
		if _, exists := p.children[c.name]; exists {
			return metadataf("duplicate property %s", c.FullName())
		}
		p.children[c.name] = c
		p.order = append(p.order, c)
	}
	return nil
}

// CreateColumn binds a leaf property to a column
//
// if converter is nil, IdentityConverter is used
func (p *Property) CreateColumn(columnName string, converter AttributeConverter) error {
	if p.isEntity() {
		return metadataf("entity %v cannot be bound to a column", p.entityType)
	}
	if len(p.children) > 0 {
		return metadataf("%s has children, cannot bind to column %q", p.FullName(), columnName)
	}
	if p.column != nil {
		return metadataf("%s already bound to column %q", p.FullName(), p.column.name)
	}
	c, err := newColumn(columnName, p, converter)
	if err != nil {
		return err
	}
	p.column = c
	return nil
}

// Validate checks that every property in the subtree is either a leaf or has children (but not both)
func (p *Property) Validate() error {
	hasChildren := len(p.children) > 0
	switch {
	case p.column == nil && !hasChildren:
		return metadataf("%s has neither column nor children", p.FullName())
	case p.column != nil && hasChildren:
		return metadataf("%s has both column and children", p.FullName())
	}
	for _, c := range p.order {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Columns returns all columns in the subtree - children are visited in declaration order, depth first
func (p *Property) Columns() []*Column {
	if p.column != nil {
		return []*Column{p.column}
	}
	result := make([]*Column, 0, len(p.order))
	for _, c := range p.order {
		result = append(result, c.Columns()...)
	}
	return result
}

// SubProperty resolves a dot separated path relative to this property
func (p *Property) SubProperty(path string) (*Property, bool) {
	head, rest, more := strings.Cut(path, PathSeparator)
	c, ok := p.children[head]
	if !ok {
		return nil, false
	}
	if !more {
		return c, true
	}
	return c.SubProperty(rest)
}

// Value returns the property's current value on the entity
//
// entity must be an instance of the tree's entity type (or a pointer to one). If an enclosing object is
// absent, the value is absent (nil). Leaf values are dereferenced; interior values are returned as a pointer
// to the object where the entity is addressable.
func (p *Property) Value(entity any) (any, error) {
	rv, err := p.checkEntity(entity)
	if err != nil {
		return nil, err
	}
	v, ok := p.reflectValue(rv)
	if !ok {
		return nil, nil
	}
	if p.column != nil {
		value, _ := leafValue(v)
		return value, nil
	}
	if v.CanAddr() {
		return v.Addr().Interface(), nil
	}
	return v.Interface(), nil
}

// reflectValue resolves the property value - interior values are the (dereferenced) struct value
func (p *Property) reflectValue(entity reflect.Value) (reflect.Value, bool) {
	if p.isEntity() {
		return derefValue(entity)
	}
	pv, ok := p.parent.reflectValue(entity)
	if !ok {
		return reflect.Value{}, false
	}
	fv := pv.FieldByIndex(p.index)
	if p.column != nil {
		return fv, true
	}
	return derefValue(fv)
}

func derefValue(v reflect.Value) (reflect.Value, bool) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	return v, v.IsValid()
}

// SetValue writes the value into the property on the entity
//
// entity must be a non-nil pointer to the tree's entity type. Absent enclosing objects are created as blank
// instances (see TypeDescriptor.New) and attached; existing enclosing objects are never replaced.
func (p *Property) SetValue(entity any, value any) error {
	if p.isEntity() {
		return metadataf("cannot set entity %v", p.entityType)
	}
	rv, err := p.checkEntity(entity)
	if err != nil {
		return err
	}
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return typeMismatchf("expected *%v, got %s", p.entityType, typeName(rv))
	}
	model := rv.Elem()
	for _, a := range p.ancestors {
		fv := model.FieldByIndex(a.index)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				nv, err := a.typ.New()
				if err != nil {
					return err
				}
				fv.Set(nv)
			}
			fv = fv.Elem()
		}
		model = fv
	}
	if err := assign(model.FieldByIndex(p.index), value); err != nil {
		return errorWithPath(err, p)
	}
	return nil
}

func errorWithPath(err error, p *Property) error {
	switch {
	case IsTypeMismatch(err), IsInvalidValue(err):
		return wrapf(err, "%s", p.FullName())
	}
	return err
}

// ColumnValues decomposes the value this property represents into column values
//
// for a leaf, propertyValue is converted by the column's converter (absent values are not converted); for an
// interior property, propertyValue must be an object of the property's declared type
func (p *Property) ColumnValues(propertyValue any) (map[string]any, error) {
	if p.column != nil {
		v, err := p.column.toStorage(propertyValue)
		if err != nil {
			return nil, err
		}
		return map[string]any{p.column.name: v}, nil
	}
	v := reflect.ValueOf(propertyValue)
	if !v.IsValid() {
		return nil, invalidValuef("expected %s type of %v, got nil", p.FullName(), p.typ)
	}
	sv, ok := derefValue(v)
	if !ok || sv.Kind() != reflect.Struct {
		return nil, invalidValuef("expected %s type of %v, got %v", p.FullName(), p.typ, v.Type())
	}
	if sv.Type() != p.typ.ObjectType() {
		return nil, markInvalid(typeMismatchf("expected %s type of %v, got %v", p.FullName(), p.typ, v.Type()))
	}
	result := make(map[string]any)
	if err := p.collectColumnValues(sv, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Property) collectColumnValues(sv reflect.Value, result map[string]any) error {
	for _, c := range p.order {
		fv := sv.FieldByIndex(c.index)
		if c.column != nil {
			raw, _ := leafValue(fv)
			v, err := c.column.toStorage(raw)
			if err != nil {
				return err
			}
			result[c.column.name] = v
			continue
		}
		if cv, ok := derefValue(fv); ok {
			if err := c.collectColumnValues(cv, result); err != nil {
				return err
			}
		} else {
			for _, col := range c.Columns() {
				result[col.name] = nil
			}
		}
	}
	return nil
}

func (p *Property) checkEntity(entity any) (reflect.Value, error) {
	rv := reflect.ValueOf(entity)
	if !rv.IsValid() {
		return rv, typeMismatchf("expected %v, got nil", p.entityType)
	}
	t := rv.Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t != p.entityType {
		return rv, typeMismatchf("expected %v, got %v", p.entityType, rv.Type())
	}
	return rv, nil
}
