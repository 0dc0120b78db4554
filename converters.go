package cryo

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// BoolConverter converts bool properties
//
// Particularly useful for MySql which only supports BOOL columns as TINYINT
type BoolConverter struct {
	// AsInt stores booleans as 1/0
	AsInt bool
}

var _ AttributeConverter = BoolConverter{}

func (b BoolConverter) ToStorage(value any, column *Column) (any, error) {
	v, ok := value.(bool)
	if !ok {
		return nil, errors.Newf("type %T is not a bool", value)
	}
	if b.AsInt {
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return v, nil
}

func (b BoolConverter) FromStorage(value any, column *Column) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return strconv.ParseBool(string(v))
	case string:
		return strconv.ParseBool(v)
	}
	return nil, errors.Newf("type %T is not a bool", value)
}

// DecimalConverter converts decimal.Decimal properties - stored as their string form
type DecimalConverter struct{}

var _ AttributeConverter = DecimalConverter{}

func (DecimalConverter) ToStorage(value any, column *Column) (any, error) {
	if d, ok := value.(decimal.Decimal); ok {
		return d.String(), nil
	}
	return nil, errors.Newf("type %T is not a decimal", value)
}

func (DecimalConverter) FromStorage(value any, column *Column) (any, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case float32:
		return decimal.NewFromFloat(float64(v)), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int64:
		return decimal.New(v, 0), nil
	case []byte:
		return decimal.NewFromString(unquote(string(v)))
	case string:
		return decimal.NewFromString(unquote(v))
	}
	return nil, errors.Newf("type %T is not a decimal", value)
}

func unquote(s string) string {
	if len(s) > 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}

// JSONConverter stores property values as JSON documents
type JSONConverter struct{}

var _ AttributeConverter = JSONConverter{}

func (JSONConverter) ToStorage(value any, column *Column) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (JSONConverter) FromStorage(value any, column *Column) (any, error) {
	return decodeDocument(value, column, json.Unmarshal)
}

// YAMLConverter stores property values as YAML documents
type YAMLConverter struct{}

var _ AttributeConverter = YAMLConverter{}

func (YAMLConverter) ToStorage(value any, column *Column) (any, error) {
	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (YAMLConverter) FromStorage(value any, column *Column) (any, error) {
	return decodeDocument(value, column, yaml.Unmarshal)
}

func decodeDocument(value any, column *Column, unmarshal func([]byte, any) error) (any, error) {
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, errors.Newf("type %T is not a document", value)
	}
	t := derefType(column.Type())
	ptr := reflect.New(t)
	if err := unmarshal(data, ptr.Interface()); err != nil {
		return nil, err
	}
	return ptr.Elem().Interface(), nil
}

// UUIDConverter converts uuid.UUID properties - stored as their string form
type UUIDConverter struct{}

var _ AttributeConverter = UUIDConverter{}

func (UUIDConverter) ToStorage(value any, column *Column) (any, error) {
	if id, ok := value.(uuid.UUID); ok {
		return id.String(), nil
	}
	return nil, errors.Newf("type %T is not a uuid", value)
}

func (UUIDConverter) FromStorage(value any, column *Column) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v, nil
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	}
	return nil, errors.Newf("type %T is not a uuid", value)
}

// ULIDConverter converts ulid.ULID properties - stored as their string form
type ULIDConverter struct{}

var _ AttributeConverter = ULIDConverter{}

func (ULIDConverter) ToStorage(value any, column *Column) (any, error) {
	if id, ok := value.(ulid.ULID); ok {
		return id.String(), nil
	}
	return nil, errors.Newf("type %T is not a ulid", value)
}

func (ULIDConverter) FromStorage(value any, column *Column) (any, error) {
	switch v := value.(type) {
	case ulid.ULID:
		return v, nil
	case string:
		return ulid.Parse(v)
	case []byte:
		if len(v) == 16 {
			var id ulid.ULID
			copy(id[:], v)
			return id, nil
		}
		return ulid.Parse(string(v))
	}
	return nil, errors.Newf("type %T is not a ulid", value)
}

// TimeConverter converts time.Time properties
//
// with an empty Layout times are passed to the driver as is; otherwise they are stored formatted with the layout
type TimeConverter struct {
	Layout   string
	Location *time.Location
}

var _ AttributeConverter = TimeConverter{}

func (tc TimeConverter) ToStorage(value any, column *Column) (any, error) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, errors.Newf("type %T is not a time", value)
	}
	if tc.Location != nil {
		t = t.In(tc.Location)
	}
	if tc.Layout == "" {
		return t, nil
	}
	return t.Format(tc.Layout), nil
}

func (tc TimeConverter) FromStorage(value any, column *Column) (any, error) {
	var t time.Time
	switch v := value.(type) {
	case time.Time:
		t = v
	case int64:
		t = time.Unix(v, 0).UTC()
	case []byte:
		return tc.FromStorage(string(v), column)
	case string:
		layout := tc.Layout
		if layout == "" {
			layout = time.RFC3339Nano
		}
		var err error
		if t, err = time.Parse(layout, v); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Newf("type %T is not a time", value)
	}
	if tc.Location != nil {
		t = t.In(tc.Location)
	}
	return t, nil
}

// Enum is implemented by enum types so that EnumConverter can resolve stored values
//
// EnumValues must be callable on the zero value and return every value in ordinal order
type Enum interface {
	fmt.Stringer
	EnumValues() []Enum
}

// EnumConverter converts Enum properties - stored by name (String) or, if Ordinal, by position in EnumValues
type EnumConverter struct {
	Ordinal bool
}

var _ AttributeConverter = EnumConverter{}

func (ec EnumConverter) ToStorage(value any, column *Column) (any, error) {
	e, ok := value.(Enum)
	if !ok {
		return nil, errors.Newf("type %T is not an enum", value)
	}
	if !ec.Ordinal {
		return e.String(), nil
	}
	for i, v := range e.EnumValues() {
		if v == e {
			return int64(i), nil
		}
	}
	return nil, invalidValuef("%v is not a value of %T", e, e)
}

func (ec EnumConverter) FromStorage(value any, column *Column) (any, error) {
	zero, ok := reflect.Zero(derefType(column.Type())).Interface().(Enum)
	if !ok {
		return nil, errors.Newf("%v is not an enum", column.Type())
	}
	values := zero.EnumValues()
	if ec.Ordinal {
		var i int64
		switch v := value.(type) {
		case int64:
			i = v
		case []byte:
			return ec.FromStorage(string(v), column)
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, err
			}
			i = n
		default:
			return nil, errors.Newf("type %T is not an enum ordinal", value)
		}
		if i < 0 || i >= int64(len(values)) {
			return nil, invalidValuef("ordinal %d out of range for %T", i, zero)
		}
		return values[i], nil
	}
	var name string
	switch v := value.(type) {
	case string:
		name = v
	case []byte:
		name = string(v)
	default:
		return nil, errors.Newf("type %T is not an enum name", value)
	}
	for _, v := range values {
		if v.String() == name {
			return v, nil
		}
	}
	return nil, invalidValuef("%q is not a value of %T", name, zero)
}
