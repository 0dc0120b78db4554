package cryo

import (
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/iancoleman/strcase"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/go-andiamo/cryo/config"
)

const sqlTag = "sql"

var (
	timeType    = reflect.TypeOf(time.Time{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
	ulidType    = reflect.TypeOf(ulid.ULID{})
)

// UseTagName is a type that can be passed as an option to NewBuilder
// and determines the field tag name to use for field column mappings
//
// If this option is not passed to NewBuilder, then the default "sql" tag is used
type UseTagName string

// RequireTags is a type that can be passed as an option to NewBuilder
// and determines whether fields without a tag are skipped
type RequireTags bool

// Naming is a type that can be passed as an option to NewBuilder
// and determines how column names are derived from field names (when not named by tag or FieldColumnNamer)
type Naming string

const (
	// NamingSnake derives snake_case column names (the default)
	NamingSnake Naming = "snake"
	// NamingCamel derives lowerCamelCase column names
	NamingCamel Naming = "camel"
	// NamingField uses the field name as is
	NamingField Naming = "field"
)

func (n Naming) apply(name string) string {
	switch n {
	case NamingCamel:
		return strcase.ToLowerCamel(name)
	case NamingField:
		return name
	}
	return strcase.ToSnake(name)
}

// FieldColumnNamer is an interface that can be passed as an option to NewBuilder
// and is used to derive the column name to use for a given field
//
// A column name given in the field tag takes precedence over any FieldColumnNamer
type FieldColumnNamer interface {
	// ColumnName returns the column name to use for the given struct field
	//
	// The returned name is only used if second return arg is true
	ColumnName(structType reflect.Type, fld reflect.StructField) (string, bool)
}

// ConverterResolver is an interface that can be passed as an option to NewBuilder
// and is used to choose the converter for a leaf field
//
// An explicit "convert=" tag option takes precedence over any ConverterResolver
type ConverterResolver interface {
	// Converter returns the converter for the field type - only used if second return arg is true
	Converter(fieldType reflect.Type, annotations Annotations) (AttributeConverter, bool)
}

// Factories is a type that can be passed as an option to NewBuilder
// and supplies the blank instance factory for embeddable types
type Factories map[reflect.Type]Factory

// Builder builds property trees from struct field tags
//
// tag format is `sql:"column_name,option,option=value"` where options are:
//
//	id                      primary key column
//	natural_id              natural key column
//	generated[=strategy]    generated value (auto-increment, assigned or sequence)
//	created_at              creation timestamp
//	updated_at              update timestamp
//	embedded                force the field to be an embeddable
//	prefix=p                prefix for all column names within an embeddable
//	convert=name            use the named converter (see RegisterConverter)
//	enum[=ordinal]          enum field (stored by name, or by ordinal)
//
// and `sql:"-"` skips the field. Annotations on an embeddable apply to all of its columns.
type Builder struct {
	tagName     string
	requireTags bool
	naming      Naming
	namers      []FieldColumnNamer
	resolvers   []ConverterResolver
	factories   Factories
	timeLayout  string
	boolAsInt   bool
	enumOrdinal bool
}

// NewBuilder creates a new Builder
//
// options can be any of UseTagName, RequireTags, Naming, FieldColumnNamer, ConverterResolver, Factories or config.Config
func NewBuilder(options ...any) (*Builder, error) {
	b := &Builder{
		tagName:   sqlTag,
		naming:    NamingSnake,
		factories: Factories{},
	}
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case UseTagName:
				if option != "" {
					b.tagName = string(option)
				}
			case RequireTags:
				b.requireTags = bool(option)
			case Naming:
				b.naming = option
			case FieldColumnNamer:
				b.namers = append(b.namers, option)
			case ConverterResolver:
				b.resolvers = append(b.resolvers, option)
			case Factories:
				for k, v := range option {
					b.factories[k] = v
				}
			case config.Config:
				b.applyConfig(option)
			case *config.Config:
				b.applyConfig(*option)
			default:
				return nil, errors.Newf("unknown option type: %T", o)
			}
		}
	}
	switch b.naming {
	case NamingSnake, NamingCamel, NamingField:
	default:
		return nil, errors.Newf("unknown naming %q", b.naming)
	}
	return b, nil
}

// MustNewBuilder is the same as NewBuilder except that it panics on error
func MustNewBuilder(options ...any) *Builder {
	b, err := NewBuilder(options...)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) applyConfig(cfg config.Config) {
	if cfg.TagName != "" {
		b.tagName = cfg.TagName
	}
	if cfg.Naming != "" {
		b.naming = Naming(cfg.Naming)
	}
	b.requireTags = cfg.RequireTags
	b.timeLayout = cfg.TimeLayout
	b.boolAsInt = cfg.BoolAsInt
	b.enumOrdinal = cfg.EnumOrdinal
}

// BuildMapper builds the property tree for T and creates an EntityMapper over it
func BuildMapper[T any](b *Builder) (EntityMapper[T], error) {
	root, err := b.Build(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return NewEntityMapper[T](root)
}

// Build builds the property tree for the entity type
func (b *Builder) Build(entityType reflect.Type) (*Property, error) {
	root, err := NewEntityProperty(entityType)
	if err != nil {
		return nil, err
	}
	st := root.typ.ObjectType()
	if err = b.buildChildren(root, st, "", map[reflect.Type]bool{st: true}); err != nil {
		return nil, err
	}
	if err = root.Validate(); err != nil {
		return nil, err
	}
	if err = checkDuplicateColumns(root); err != nil {
		return nil, err
	}
	log().Debugw("built entity metadata", "entity", st.String(), "columns", len(root.Columns()))
	return root, nil
}

func (b *Builder) buildChildren(parent *Property, st reflect.Type, prefix string, visiting map[reflect.Type]bool) error {
	children := make([]*Property, 0, st.NumField())
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		tag, hasTag := f.Tag.Lookup(b.tagName)
		if tag == "-" || (b.requireTags && !hasTag) {
			continue
		}
		opts, err := parseTag(tag)
		if err != nil {
			return metadataf("%v.%s: %v", st, f.Name, err)
		}
		var child *Property
		if opts.embedded || (TypeOf(f.Type).IsObject() && opts.convert == "") {
			child, err = b.buildEmbeddable(parent, f, opts, prefix, visiting)
		} else {
			child, err = b.buildLeaf(parent, st, f, opts, prefix)
		}
		if err != nil {
			return err
		}
		children = append(children, child)
	}
	return parent.SetChildren(children...)
}

func (b *Builder) buildEmbeddable(parent *Property, f reflect.StructField, opts tagOptions, prefix string, visiting map[reflect.Type]bool) (*Property, error) {
	ot := derefType(f.Type)
	if ot.Kind() != reflect.Struct {
		return nil, metadataf("embeddable %s.%s type of %v is not a class", parent.FullName(), f.Name, f.Type)
	}
	if visiting[ot] {
		return nil, metadataf("recursive embeddable %v at %s.%s", ot, parent.FullName(), f.Name)
	}
	annotations := append(opts.annotations, Mark(Embeddable))
	var p *Property
	var err error
	if factory, ok := b.factories[ot]; ok {
		var td *TypeDescriptor
		if td, err = ObjectTypeOf(f.Type); err == nil {
			p, err = NewPropertyWithType(parent, f.Name, td.WithFactory(factory), annotations...)
		}
	} else {
		p, err = NewProperty(parent, f.Name, annotations...)
	}
	if err != nil {
		return nil, err
	}
	visiting[ot] = true
	defer delete(visiting, ot)
	if err = b.buildChildren(p, ot, prefix+opts.prefix, visiting); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Builder) buildLeaf(parent *Property, st reflect.Type, f reflect.StructField, opts tagOptions, prefix string) (*Property, error) {
	if opts.prefix != "" {
		return nil, metadataf("%s.%s prefix is only valid on embeddables", parent.FullName(), f.Name)
	}
	p, err := NewProperty(parent, f.Name, opts.annotations...)
	if err != nil {
		return nil, err
	}
	name := opts.name
	if name == "" {
		for _, namer := range b.namers {
			if n, ok := namer.ColumnName(st, f); ok && n != "" {
				name = n
				break
			}
		}
	}
	if name == "" {
		name = b.naming.apply(f.Name)
	}
	converter, err := b.converterFor(p, opts)
	if err != nil {
		return nil, err
	}
	if err = p.CreateColumn(prefix+name, converter); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *Builder) converterFor(p *Property, opts tagOptions) (AttributeConverter, error) {
	if opts.convert != "" {
		if c, ok := ConverterNamed(opts.convert); ok {
			return c, nil
		}
		return nil, metadataf("%s unknown converter %q", p.FullName(), opts.convert)
	}
	ft := p.typ.Type()
	if a, ok := p.Annotation(Enumerated); ok {
		return EnumConverter{Ordinal: a.Value == "ordinal" || (a.Value == "" && b.enumOrdinal)}, nil
	}
	for _, r := range b.resolvers {
		if c, ok := r.Converter(ft, p.annotations); ok {
			return c, nil
		}
	}
	switch dt := derefType(ft); {
	case dt == decimalType:
		return DecimalConverter{}, nil
	case dt == uuidType:
		return UUIDConverter{}, nil
	case dt == ulidType:
		return ULIDConverter{}, nil
	case dt == timeType:
		if b.timeLayout != "" {
			return TimeConverter{Layout: b.timeLayout}, nil
		}
	case p.typ.Kind() == KindEnum:
		return EnumConverter{Ordinal: b.enumOrdinal}, nil
	case dt.Kind() == reflect.Bool && b.boolAsInt:
		return BoolConverter{AsInt: true}, nil
	}
	return IdentityConverter{}, nil
}

func checkDuplicateColumns(root *Property) error {
	seen := make(map[string]struct{})
	for _, c := range root.Columns() {
		if _, exists := seen[c.name]; exists {
			return metadataf("duplicate column mapping %q", c.name)
		}
		seen[c.name] = struct{}{}
	}
	return nil
}

type tagOptions struct {
	name        string
	annotations Annotations
	embedded    bool
	prefix      string
	convert     string
}

func parseTag(tag string) (tagOptions, error) {
	var opts tagOptions
	parts := strings.Split(tag, ",")
	opts.name = strings.TrimSpace(parts[0])
	if opts.name != "" {
		opts.annotations = append(opts.annotations, Mark(ColumnName, opts.name))
	}
	for _, part := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "":
		case "id":
			opts.annotations = append(opts.annotations, Mark(Id))
		case "natural_id":
			opts.annotations = append(opts.annotations, Mark(NaturalId))
		case "generated":
			opts.annotations = append(opts.annotations, Mark(GeneratedValue, value))
		case "created_at":
			opts.annotations = append(opts.annotations, Mark(CreationTimestamp))
		case "updated_at":
			opts.annotations = append(opts.annotations, Mark(UpdateTimestamp))
		case "embedded":
			opts.embedded = true
		case "prefix":
			opts.prefix = value
		case "convert":
			opts.convert = value
			opts.annotations = append(opts.annotations, Mark(Convert, value))
		case "enum":
			opts.annotations = append(opts.annotations, Mark(Enumerated, value))
		default:
			return opts, errors.Newf("unknown tag option %q", key)
		}
	}
	return opts, nil
}
