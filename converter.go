package cryo

import (
	"sync"
)

// AttributeConverter converts a property value to its storage form and back
//
// converters are only ever called with present (non-nil) values
type AttributeConverter interface {
	// ToStorage converts the property value to the value stored in the column
	ToStorage(value any, column *Column) (any, error)
	// FromStorage converts the stored column value to the property value
	FromStorage(value any, column *Column) (any, error)
}

// ConverterFuncs is an AttributeConverter made from a pair of funcs
//
// a nil func passes values through unchanged
type ConverterFuncs struct {
	To   func(value any, column *Column) (any, error)
	From func(value any, column *Column) (any, error)
}

var _ AttributeConverter = ConverterFuncs{}

func (cf ConverterFuncs) ToStorage(value any, column *Column) (any, error) {
	if cf.To == nil {
		return value, nil
	}
	return cf.To(value, column)
}

func (cf ConverterFuncs) FromStorage(value any, column *Column) (any, error) {
	if cf.From == nil {
		return value, nil
	}
	return cf.From(value, column)
}

// IdentityConverter passes values through unchanged
//
// values read from storage are still coerced into the property type on write (numeric widening/narrowing,
// []byte to string etc.)
type IdentityConverter struct{}

var _ AttributeConverter = IdentityConverter{}

func (IdentityConverter) ToStorage(value any, column *Column) (any, error) {
	return value, nil
}

func (IdentityConverter) FromStorage(value any, column *Column) (any, error) {
	return value, nil
}

var (
	convertersMu sync.RWMutex
	converters   = map[string]AttributeConverter{
		"identity":     IdentityConverter{},
		"bool":         BoolConverter{},
		"bool_int":     BoolConverter{AsInt: true},
		"decimal":      DecimalConverter{},
		"json":         JSONConverter{},
		"yaml":         YAMLConverter{},
		"uuid":         UUIDConverter{},
		"ulid":         ULIDConverter{},
		"time":         TimeConverter{},
		"enum":         EnumConverter{},
		"enum_ordinal": EnumConverter{Ordinal: true},
	}
)

// RegisterConverter registers a named converter (usable with the "convert=" tag option)
//
// should only be called during initialisation - before any metadata is built
func RegisterConverter(name string, converter AttributeConverter) {
	convertersMu.Lock()
	defer convertersMu.Unlock()
	converters[name] = converter
}

// ConverterNamed returns the named converter
func ConverterNamed(name string) (AttributeConverter, bool) {
	convertersMu.RLock()
	defer convertersMu.RUnlock()
	c, ok := converters[name]
	return c, ok
}
