package cryo

import (
	"reflect"
)

// GenerationStrategy is the policy by which a generated column value is produced
type GenerationStrategy string

const (
	GenerationAutoIncrement GenerationStrategy = "auto-increment"
	GenerationAssigned      GenerationStrategy = "assigned"
	GenerationSequence      GenerationStrategy = "sequence"
)

func (s GenerationStrategy) valid() bool {
	switch s {
	case GenerationAutoIncrement, GenerationAssigned, GenerationSequence:
		return true
	}
	return false
}

// Column binds a leaf Property to a physical column
type Column struct {
	name              string
	property          *Property
	converter         AttributeConverter
	id                bool
	naturalId         bool
	generateStrategy  GenerationStrategy
	creationTimestamp bool
	updateTimestamp   bool
}

func newColumn(name string, property *Property, converter AttributeConverter) (*Column, error) {
	if name == "" {
		return nil, metadataf("%s has empty column name", property.FullName())
	}
	if converter == nil {
		converter = IdentityConverter{}
	}
	c := &Column{
		name:              name,
		property:          property,
		converter:         converter,
		id:                property.HasAnnotation(Id),
		naturalId:         property.HasAnnotation(NaturalId),
		creationTimestamp: property.HasAnnotation(CreationTimestamp),
		updateTimestamp:   property.HasAnnotation(UpdateTimestamp),
	}
	if gv, ok := property.Annotation(GeneratedValue); ok {
		c.generateStrategy = GenerationAutoIncrement
		if gv.Value != "" {
			c.generateStrategy = GenerationStrategy(gv.Value)
		}
		if !c.generateStrategy.valid() {
			return nil, metadataf("%s unknown generation strategy %q", property.FullName(), gv.Value)
		}
	}
	return c, nil
}

// Name is the physical column name
func (c *Column) Name() string {
	return c.name
}

// Property is the leaf property the column is bound to
func (c *Column) Property() *Property {
	return c.property
}

// PropertyPath is the path of the bound property
func (c *Column) PropertyPath() string {
	return c.property.path
}

// Converter is the column's attribute converter
func (c *Column) Converter() AttributeConverter {
	return c.converter
}

// Type is the declared type of the bound property
func (c *Column) Type() reflect.Type {
	return c.property.typ.Type()
}

// IsPrimaryKey returns true if the column is (part of) the primary key
func (c *Column) IsPrimaryKey() bool {
	return c.id
}

// IsNaturalKey returns true if the column is (part of) the natural key
func (c *Column) IsNaturalKey() bool {
	return c.naturalId
}

// IsGenerated returns true if the column value is generated
func (c *Column) IsGenerated() bool {
	return c.generateStrategy != ""
}

// GenerationStrategy returns the generation strategy (if the column is generated)
func (c *Column) GenerationStrategy() (GenerationStrategy, bool) {
	return c.generateStrategy, c.generateStrategy != ""
}

// IsCreationTimestamp returns true if the column holds the entity creation time
func (c *Column) IsCreationTimestamp() bool {
	return c.creationTimestamp
}

// IsUpdateTimestamp returns true if the column holds the entity last update time
func (c *Column) IsUpdateTimestamp() bool {
	return c.updateTimestamp
}

// Value reads the column value from the entity - present values are converted to their storage form
func (c *Column) Value(entity any) (any, error) {
	v, err := c.property.Value(entity)
	if err != nil {
		return nil, err
	}
	return c.toStorage(v)
}

// SetValue writes a storage value into the entity - present values are converted from their storage form
func (c *Column) SetValue(entity any, value any) error {
	var attr any
	if value != nil {
		var err error
		if attr, err = c.converter.FromStorage(value, c); err != nil {
			return err
		}
	}
	return c.property.SetValue(entity, attr)
}

func (c *Column) toStorage(value any) (any, error) {
	v, present := leafValue(reflect.ValueOf(value))
	if !present {
		return nil, nil
	}
	return c.converter.ToStorage(v, c)
}

func (c *Column) String() string {
	return c.name
}
