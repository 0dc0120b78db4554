package cryo

// AnnotationKind identifies a declarative marker resolved for a property
type AnnotationKind int

const (
	// Id marks a primary key column
	Id AnnotationKind = iota + 1
	// NaturalId marks a natural (business) key column
	NaturalId
	// GeneratedValue marks a generated column - the annotation Value is the GenerationStrategy
	GeneratedValue
	// CreationTimestamp marks a column set when the entity is created
	CreationTimestamp
	// UpdateTimestamp marks a column set whenever the entity is updated
	UpdateTimestamp
	// ColumnName carries an explicit column name in its Value
	ColumnName
	// Embeddable marks a property whose value is decomposed into further columns
	Embeddable
	// Enumerated marks an enum property - a Value of "ordinal" stores the ordinal instead of the name
	Enumerated
	// Convert names the converter (see Converters) in its Value
	Convert
)

var annotationKindNames = map[AnnotationKind]string{
	Id:                "Id",
	NaturalId:         "NaturalId",
	GeneratedValue:    "GeneratedValue",
	CreationTimestamp: "CreationTimestamp",
	UpdateTimestamp:   "UpdateTimestamp",
	ColumnName:        "Column",
	Embeddable:        "Embeddable",
	Enumerated:        "Enumerated",
	Convert:           "Convert",
}

func (k AnnotationKind) String() string {
	if s, ok := annotationKindNames[k]; ok {
		return s
	}
	return "Unknown"
}

// Annotation is a declarative marker on a property
type Annotation struct {
	Kind  AnnotationKind
	Value string
}

// Mark is a convenience for creating an Annotation
func Mark(kind AnnotationKind, value ...string) Annotation {
	a := Annotation{Kind: kind}
	if len(value) > 0 {
		a.Value = value[0]
	}
	return a
}

// Annotations is a resolved set of annotations
type Annotations []Annotation

// Find returns the first annotation of the given kind
func (as Annotations) Find(kind AnnotationKind) (Annotation, bool) {
	for _, a := range as {
		if a.Kind == kind {
			return a, true
		}
	}
	return Annotation{}, false
}

// Has returns true if an annotation of the given kind is present
func (as Annotations) Has(kind AnnotationKind) bool {
	_, ok := as.Find(kind)
	return ok
}
