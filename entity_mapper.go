package cryo

import (
	"reflect"
)

// EntityMapper maps entities of type T to column values and back
//
// An EntityMapper holds no per-call state and may be used concurrently against different entities
type EntityMapper[T any] interface {
	// Freeze converts the entity to column values
	//
	// if ignoreNull is true, absent values are omitted - otherwise every column is present (absent values as nil)
	Freeze(entity *T, ignoreNull bool) (map[string]any, error)
	// Thaw creates a new entity populated from the column values
	//
	// keys that are neither column names nor leaf property paths are ignored
	Thaw(columnValues map[string]any) (*T, error)
	// ThawInto populates an existing entity from the column values
	ThawInto(entity *T, columnValues map[string]any) error
	// GetValue reads the storage value of the named column from the entity
	GetValue(entity *T, columnName string) (any, error)
	// SetValue writes a storage value of the named column into the entity
	SetValue(entity *T, columnName string, value any) error
	// IdToPrimaryKey converts an id to primary key column values
	//
	// for a single column primary key, id is the property value; for a composite key, id may be an
	// ordered []any, a map keyed by column name (or property path), an embeddable id object or an entity
	IdToPrimaryKey(id any) (map[string]any, error)
	// Columns returns all columns in declaration order
	Columns() []*Column
	// Column returns the named column
	Column(name string) (*Column, bool)
	// PrimaryKey returns the primary key columns
	PrimaryKey() []*Column
	// NaturalKey returns the natural key columns
	NaturalKey() []*Column
	// GeneratedColumn returns the (first) generated column
	GeneratedColumn() (*Column, bool)
	// CreationTimestamps returns the creation timestamp columns
	CreationTimestamps() []*Column
	// UpdateTimestamps returns the update timestamp columns
	UpdateTimestamps() []*Column
	// Root returns the entity property (root of the property tree)
	Root() *Property
	// EntityType returns the struct type of T
	EntityType() reflect.Type
}

type entityMapper[T any] struct {
	root       *Property
	columns    []*Column
	byName     map[string]*Column
	primaryKey []*Column
}

var _ EntityMapper[struct{}] = (*entityMapper[struct{}])(nil)

// NewEntityMapper creates an EntityMapper over the root (entity) property of T
//
// the tree is validated and must not be modified afterwards
func NewEntityMapper[T any](root *Property) (EntityMapper[T], error) {
	if root == nil || !root.isEntity() {
		return nil, metadataf("root must be an entity property")
	}
	if rt := reflect.TypeOf((*T)(nil)).Elem(); root.entityType != rt {
		return nil, typeMismatchf("root entity type %v does not match %v", root.entityType, rt)
	}
	if err := root.Validate(); err != nil {
		return nil, err
	}
	m := &entityMapper[T]{
		root:    root,
		columns: root.Columns(),
	}
	m.byName = make(map[string]*Column, len(m.columns))
	for _, c := range m.columns {
		if _, exists := m.byName[c.name]; exists {
			return nil, metadataf("duplicate column mapping %q", c.name)
		}
		m.byName[c.name] = c
		if c.id {
			m.primaryKey = append(m.primaryKey, c)
		}
	}
	return m, nil
}

// MustNewEntityMapper is the same as NewEntityMapper except that it panics on error
func MustNewEntityMapper[T any](root *Property) EntityMapper[T] {
	m, err := NewEntityMapper[T](root)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *entityMapper[T]) Freeze(entity *T, ignoreNull bool) (map[string]any, error) {
	if entity == nil {
		return nil, invalidValuef("cannot freeze nil %v", m.root.entityType)
	}
	result := make(map[string]any, len(m.columns))
	for _, c := range m.columns {
		v, err := c.Value(entity)
		if err != nil {
			return nil, err
		}
		if v == nil && ignoreNull {
			continue
		}
		result[c.name] = v
	}
	return result, nil
}

func (m *entityMapper[T]) Thaw(columnValues map[string]any) (*T, error) {
	entity := new(T)
	if err := m.ThawInto(entity, columnValues); err != nil {
		return nil, err
	}
	return entity, nil
}

func (m *entityMapper[T]) ThawInto(entity *T, columnValues map[string]any) error {
	if entity == nil {
		return invalidValuef("cannot thaw into nil %v", m.root.entityType)
	}
	for name, value := range columnValues {
		c, ok := m.resolve(name)
		if !ok {
			continue
		}
		if err := c.SetValue(entity, value); err != nil {
			return err
		}
	}
	return nil
}

// resolve finds the column by name, falling back to a leaf property path
func (m *entityMapper[T]) resolve(name string) (*Column, bool) {
	if c, ok := m.byName[name]; ok {
		return c, true
	}
	if p, ok := m.root.SubProperty(name); ok && p.column != nil {
		return p.column, true
	}
	return nil, false
}

func (m *entityMapper[T]) GetValue(entity *T, columnName string) (any, error) {
	c, ok := m.byName[columnName]
	if !ok {
		return nil, wrapf(ErrUnknownColumn, "%q", columnName)
	}
	return c.Value(entity)
}

func (m *entityMapper[T]) SetValue(entity *T, columnName string, value any) error {
	c, ok := m.byName[columnName]
	if !ok {
		return wrapf(ErrUnknownColumn, "%q", columnName)
	}
	return c.SetValue(entity, value)
}

func (m *entityMapper[T]) IdToPrimaryKey(id any) (map[string]any, error) {
	switch len(m.primaryKey) {
	case 0:
		return nil, metadataf("%v has no primary key", m.root.entityType)
	case 1:
		pk := m.primaryKey[0]
		if _, present := leafValue(reflect.ValueOf(id)); !present {
			return nil, invalidValuef("nil id for %v", m.root.entityType)
		}
		if v, ok := m.entityId(id, pk); ok {
			return v, nil
		}
		v, err := pk.toStorage(id)
		if err != nil {
			return nil, err
		}
		return map[string]any{pk.name: v}, nil
	}
	return m.compositeKey(id)
}

// entityId handles an id supplied as an entity of the mapper's own type
func (m *entityMapper[T]) entityId(id any, pk *Column) (map[string]any, bool) {
	if e, ok := id.(*T); ok && e != nil {
		if v, err := pk.Value(e); err == nil {
			return map[string]any{pk.name: v}, true
		}
	}
	return nil, false
}

func (m *entityMapper[T]) compositeKey(id any) (map[string]any, error) {
	result := make(map[string]any, len(m.primaryKey))
	switch v := id.(type) {
	case []any:
		if len(v) != len(m.primaryKey) {
			return nil, invalidValuef("expected %d primary key values, got %d", len(m.primaryKey), len(v))
		}
		for i, pk := range m.primaryKey {
			cv, err := pk.toStorage(v[i])
			if err != nil {
				return nil, err
			}
			result[pk.name] = cv
		}
		return result, nil
	case map[string]any:
		for _, pk := range m.primaryKey {
			pv, ok := v[pk.name]
			if !ok {
				pv, ok = v[pk.PropertyPath()]
			}
			if !ok {
				return nil, invalidValuef("missing primary key value %q", pk.name)
			}
			cv, err := pk.toStorage(pv)
			if err != nil {
				return nil, err
			}
			result[pk.name] = cv
		}
		if len(v) != len(m.primaryKey) {
			return nil, invalidValuef("expected %d primary key values, got %d", len(m.primaryKey), len(v))
		}
		return result, nil
	case *T:
		if v == nil {
			break
		}
		for _, pk := range m.primaryKey {
			cv, err := pk.Value(v)
			if err != nil {
				return nil, err
			}
			result[pk.name] = cv
		}
		return result, nil
	}
	if owner := m.primaryKeyOwner(); owner != nil && id != nil {
		rv, ok := derefValue(reflect.ValueOf(id))
		if ok && rv.Type() == owner.typ.ObjectType() {
			all, err := owner.ColumnValues(id)
			if err != nil {
				return nil, err
			}
			for _, pk := range m.primaryKey {
				result[pk.name] = all[pk.name]
			}
			return result, nil
		}
	}
	return nil, invalidValuef("cannot convert %T to composite primary key of %v (%d columns)", id, m.root.entityType, len(m.primaryKey))
}

// primaryKeyOwner finds the nearest interior property enclosing every primary key column
func (m *entityMapper[T]) primaryKeyOwner() *Property {
	owner := m.primaryKey[0].property.parent
	for owner != nil && !owner.isEntity() {
		all := true
		for _, pk := range m.primaryKey[1:] {
			if !isWithin(pk.property, owner) {
				all = false
				break
			}
		}
		if all {
			return owner
		}
		owner = owner.parent
	}
	return nil
}

func isWithin(p *Property, ancestor *Property) bool {
	for a := p.parent; a != nil; a = a.parent {
		if a == ancestor {
			return true
		}
	}
	return false
}

func (m *entityMapper[T]) Columns() []*Column {
	return append([]*Column{}, m.columns...)
}

func (m *entityMapper[T]) Column(name string) (*Column, bool) {
	c, ok := m.byName[name]
	return c, ok
}

func (m *entityMapper[T]) PrimaryKey() []*Column {
	return append([]*Column{}, m.primaryKey...)
}

func (m *entityMapper[T]) NaturalKey() []*Column {
	return m.filter((*Column).IsNaturalKey)
}

func (m *entityMapper[T]) GeneratedColumn() (*Column, bool) {
	for _, c := range m.columns {
		if c.IsGenerated() {
			return c, true
		}
	}
	return nil, false
}

func (m *entityMapper[T]) CreationTimestamps() []*Column {
	return m.filter((*Column).IsCreationTimestamp)
}

func (m *entityMapper[T]) UpdateTimestamps() []*Column {
	return m.filter((*Column).IsUpdateTimestamp)
}

func (m *entityMapper[T]) filter(pred func(*Column) bool) []*Column {
	result := make([]*Column, 0)
	for _, c := range m.columns {
		if pred(c) {
			result = append(result, c)
		}
	}
	return result
}

func (m *entityMapper[T]) Root() *Property {
	return m.root
}

func (m *entityMapper[T]) EntityType() reflect.Type {
	return m.root.entityType
}
