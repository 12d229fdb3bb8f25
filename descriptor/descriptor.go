// Package descriptor defines the language-agnostic view of a model type that the
// compiler consumes: kinds, fields, constraints, defaults and vendor extensions.
// Descriptors are plain data owned by whoever produced them (typically the describe
// package); the compiler only reads them.
package descriptor

// Kind classifies a type descriptor.
type Kind int

const (
	// KindPrimitive is a scalar value (string, integer, number, boolean, ...).
	KindPrimitive Kind = iota
	// KindRecord is an object with named fields.
	KindRecord
	// KindArray is an ordered sequence of one element type.
	KindArray
	// KindMapping is a string-keyed map of one value type.
	KindMapping
	// KindUnion is a sum of member types, optionally discriminated.
	KindUnion
	// KindEnum is a closed set of literal values.
	KindEnum
	// KindRef is an explicit indirection to a named type. It exists so that
	// cyclic type graphs can be declared without cyclic Go initialization.
	KindRef
)

// String returns the kind name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindRecord:
		return "record"
	case KindArray:
		return "array"
	case KindMapping:
		return "mapping"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindRef:
		return "ref"
	}
	return "unknown"
}

// Primitive identifies the scalar sub-kind of a KindPrimitive descriptor.
// The compiler maps each value onto a schema type/format pair.
type Primitive string

const (
	String   Primitive = "string"
	Integer  Primitive = "integer"
	Number   Primitive = "number"
	Boolean  Primitive = "boolean"
	DateTime Primitive = "date-time"
	Date     Primitive = "date"
	UUID     Primitive = "uuid"
	Bytes    Primitive = "bytes"
	// Any is the absence of a type constraint; it compiles to an empty fragment
	// that admits every JSON value.
	Any Primitive = "any"
)

// TypeDescriptor is the uniform view of one model type or one field type.
// Which members are meaningful depends on Kind; everything else is ignored.
type TypeDescriptor struct {
	Kind Kind

	// Name is the declared short name for named types; empty for anonymous
	// shapes. Scope is the declaring scope (package or module path) used for
	// collision disambiguation. Named records, unions and enums are extracted
	// into the document's definitions table; anonymous shapes stay inline.
	Name  string
	Scope string

	Description string

	// Primitive is set for KindPrimitive.
	Primitive Primitive

	// Fields is the ordered field list for KindRecord. Extends, when set,
	// points at the named base record this record extends; the compiler
	// preserves the relationship as an allOf edge instead of flattening.
	Fields  []Field
	Extends *TypeDescriptor

	// Elem is the element type for KindArray and the value type for
	// KindMapping (string keys are implied).
	Elem *TypeDescriptor

	// Members is the ordered member list for KindUnion. Discriminator names
	// the field whose literal value selects the member; it is empty for plain
	// undiscriminated unions. Member order is preserved in the output.
	Members       []UnionMember
	Discriminator string

	// EnumValues is the ordered literal list for KindEnum.
	EnumValues []interface{}

	// Target is the referenced named type for KindRef.
	Target *TypeDescriptor

	// Constraints, Default and Example pass through onto the compiled fragment.
	Constraints *Constraints
	Default     interface{}
	Example     interface{}

	// Extensions are model-level vendor extensions, merged after structural
	// compilation.
	Extensions ExtensionSet
}

// Field is one named field of a record descriptor.
type Field struct {
	Name        string
	Type        *TypeDescriptor
	Required    bool
	Description string
	Default     interface{}
	Example     interface{}
	Extensions  ExtensionSet
}

// UnionMember pairs a union member type with the discriminant literal that
// selects it. Value is only meaningful on discriminated unions.
type UnionMember struct {
	Value string
	Type  *TypeDescriptor
}

// Named reports whether the descriptor declares a name of its own.
func (t *TypeDescriptor) Named() bool {
	return t != nil && t.Name != ""
}

// QualifiedName returns "scope.Name" for named types and the bare name when no
// scope was declared.
func (t *TypeDescriptor) QualifiedName() string {
	if t.Scope == "" {
		return t.Name
	}
	return t.Scope + "." + t.Name
}

// Deref follows KindRef indirections until it reaches a concrete descriptor.
// A nil target is returned as-is; the compiler reports it.
func (t *TypeDescriptor) Deref() *TypeDescriptor {
	seen := map[*TypeDescriptor]bool{}
	for t != nil && t.Kind == KindRef && !seen[t] {
		seen[t] = true
		t = t.Target
	}
	return t
}

// NewRecord builds a named record descriptor.
func NewRecord(scope, name string, fields ...Field) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindRecord, Scope: scope, Name: name, Fields: fields}
}

// NewObject builds an anonymous record descriptor.
func NewObject(fields ...Field) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindRecord, Fields: fields}
}

// NewPrimitive builds a primitive descriptor.
func NewPrimitive(p Primitive) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindPrimitive, Primitive: p}
}

// NewArray builds an array descriptor over elem.
func NewArray(elem *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindArray, Elem: elem}
}

// NewMapping builds a string-keyed mapping descriptor over value.
func NewMapping(value *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindMapping, Elem: value}
}

// NewEnum builds a named enum descriptor from its literal values.
func NewEnum(scope, name string, values ...interface{}) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindEnum, Scope: scope, Name: name, EnumValues: values}
}

// NewUnion builds an undiscriminated union in declaration order.
func NewUnion(members ...*TypeDescriptor) *TypeDescriptor {
	u := &TypeDescriptor{Kind: KindUnion}
	for _, m := range members {
		u.Members = append(u.Members, UnionMember{Type: m})
	}
	return u
}

// NewDiscriminatedUnion builds a union selected by the named discriminant field.
func NewDiscriminatedUnion(discriminator string, members ...UnionMember) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindUnion, Discriminator: discriminator, Members: members}
}

// NewRef builds an indirection to a named type, breaking descriptor-level
// declaration cycles.
func NewRef(target *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindRef, Target: target}
}
