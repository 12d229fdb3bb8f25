package compiler

import (
	"fmt"
	"sort"

	"github.com/go-openapi/spec"

	"github.com/griffnb/apischema/descriptor"
)

// primitiveSchemaType is the fixed primitive-to-schema mapping. Sub-kinds with
// a richer wire form carry a format annotation.
var primitiveSchemaType = map[descriptor.Primitive]struct {
	Type   string
	Format string
}{
	descriptor.String:   {Type: "string"},
	descriptor.Integer:  {Type: "integer"},
	descriptor.Number:   {Type: "number"},
	descriptor.Boolean:  {Type: "boolean"},
	descriptor.DateTime: {Type: "string", Format: "date-time"},
	descriptor.Date:     {Type: "string", Format: "date"},
	descriptor.UUID:     {Type: "string", Format: "uuid"},
	descriptor.Bytes:    {Type: "string", Format: "byte"},
}

// builder maps one type descriptor onto one schema fragment. It knows nothing
// about naming or deduplication: nested named types are delegated to the
// registry and come back as reference tokens, everything else is inlined.
type builder struct {
	registry *Registry
	warnings []Warning
}

func newBuilder(registry *Registry) *builder {
	return &builder{registry: registry}
}

// build compiles the concrete fragment for a descriptor. The at argument is
// the path within the type graph, used for warnings and error context.
func (b *builder) build(t *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	d := t.Deref()
	if d == nil {
		return nil, fmt.Errorf("%s: nil type descriptor", at)
	}

	var (
		schema *spec.Schema
		err    error
	)
	switch d.Kind {
	case descriptor.KindPrimitive:
		schema, err = b.buildPrimitive(d, at)
	case descriptor.KindRecord:
		schema, err = b.buildRecord(d, at)
	case descriptor.KindArray:
		schema, err = b.buildArray(d, at)
	case descriptor.KindMapping:
		schema, err = b.buildMapping(d, at)
	case descriptor.KindUnion:
		schema, err = b.buildUnion(d, at)
	case descriptor.KindEnum:
		schema, err = b.buildEnum(d, at)
	default:
		return nil, fmt.Errorf("%s: unsupported descriptor kind %s", at, d.Kind)
	}
	if err != nil {
		return nil, err
	}

	if d.Description != "" {
		schema.Description = d.Description
	}
	if d.Default != nil {
		schema.Default = d.Default
	}
	if d.Example != nil {
		schema.Example = d.Example
	}
	b.applyConstraints(schema, d.Constraints, at)
	return schema, nil
}

// buildNested compiles a descriptor in field/element position: named types
// become reference tokens through the registry, anonymous shapes are inlined.
func (b *builder) buildNested(t *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	d := t.Deref()
	if d == nil {
		return nil, fmt.Errorf("%s: nil type descriptor", at)
	}
	if d.Named() {
		return b.registry.Resolve(d)
	}
	return b.build(d, at)
}

func (b *builder) buildPrimitive(d *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	if d.Primitive == descriptor.Any {
		// No type constraint: admits any JSON value.
		return &spec.Schema{}, nil
	}
	mapped, ok := primitiveSchemaType[d.Primitive]
	if !ok {
		return nil, fmt.Errorf("%s: unknown primitive %q", at, d.Primitive)
	}
	schema := &spec.Schema{SchemaProps: spec.SchemaProps{Type: []string{mapped.Type}}}
	schema.Format = mapped.Format
	return schema, nil
}

func (b *builder) buildRecord(d *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	properties := make(map[string]spec.Schema, len(d.Fields))
	var required []string

	for _, field := range d.Fields {
		fieldAt := at + "." + field.Name
		fieldSchema, err := b.buildNested(field.Type, fieldAt)
		if err != nil {
			return nil, err
		}
		if !IsRefSchema(fieldSchema) {
			if field.Description != "" {
				fieldSchema.Description = field.Description
			}
			if field.Default != nil {
				fieldSchema.Default = field.Default
			}
			if field.Example != nil {
				fieldSchema.Example = field.Example
			}
		}
		properties[field.Name] = *fieldSchema
		if field.Required {
			required = append(required, field.Name)
		}
	}

	own := &spec.Schema{
		SchemaProps: spec.SchemaProps{
			Type:       []string{"object"},
			Properties: properties,
		},
	}
	if len(required) > 0 {
		own.Required = required
	}

	if d.Extends == nil {
		return own, nil
	}

	// Extended records keep the is-a relationship as data: allOf over a
	// reference to the base plus the own-fields fragment.
	baseRef, err := b.registry.Resolve(d.Extends)
	if err != nil {
		return nil, fmt.Errorf("%s: base of %s: %w", at, d.QualifiedName(), err)
	}
	return spec.ComposedSchema(*baseRef, *own), nil
}

func (b *builder) buildArray(d *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	items, err := b.buildNested(d.Elem, at+"[]")
	if err != nil {
		return nil, err
	}
	return spec.ArrayProperty(items), nil
}

func (b *builder) buildMapping(d *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	values, err := b.buildNested(d.Elem, at+"{}")
	if err != nil {
		return nil, err
	}
	return spec.MapProperty(values), nil
}

func (b *builder) buildUnion(d *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	if len(d.Members) == 0 {
		return nil, fmt.Errorf("%s: union has no members", at)
	}

	oneOf := make([]spec.Schema, 0, len(d.Members))
	mapping := make(map[string]interface{}, len(d.Members))
	for i, member := range d.Members {
		memberAt := fmt.Sprintf("%s|%d", at, i)
		memberSchema, err := b.buildNested(member.Type, memberAt)
		if err != nil {
			return nil, err
		}
		if d.Discriminator != "" {
			// A discriminator mapping needs stable definition names, so
			// every member of a discriminated union must be a named type.
			name := refName(memberSchema)
			if name == "" {
				return nil, fmt.Errorf("%s: discriminated union member %d is not a named type", at, i)
			}
			if member.Value == "" {
				return nil, fmt.Errorf("%s: discriminated union member %q has no discriminant value", at, name)
			}
			mapping[member.Value] = name
		}
		oneOf = append(oneOf, *memberSchema)
	}

	schema := &spec.Schema{SchemaProps: spec.SchemaProps{OneOf: oneOf}}
	if d.Discriminator != "" {
		schema.ExtraProps = map[string]interface{}{
			"discriminator": map[string]interface{}{
				"propertyName": d.Discriminator,
				"mapping":      mapping,
			},
		}
	}
	return schema, nil
}

func (b *builder) buildEnum(d *descriptor.TypeDescriptor, at string) (*spec.Schema, error) {
	if len(d.EnumValues) == 0 {
		return nil, fmt.Errorf("%s: enum has no values", at)
	}

	kinds := map[string]bool{}
	for _, value := range d.EnumValues {
		kinds[literalKind(value)] = true
	}
	schemaType, ok := enumSchemaType(kinds)
	if !ok {
		name := d.QualifiedName()
		if name == "" {
			name = at
		}
		return nil, &MixedEnumTypeError{Enum: name, Kinds: sortedKeys(kinds)}
	}

	return &spec.Schema{
		SchemaProps: spec.SchemaProps{
			Type: []string{schemaType},
			Enum: append([]interface{}{}, d.EnumValues...),
		},
	}, nil
}

// literalKind classifies an enum literal into a primitive kind bucket.
func literalKind(value interface{}) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// enumSchemaType resolves the kind set to a single schema type. Integer and
// float literals are numeric-compatible; any other mix is rejected.
func enumSchemaType(kinds map[string]bool) (string, bool) {
	if len(kinds) == 1 {
		for kind := range kinds {
			switch kind {
			case "string", "boolean", "integer", "number":
				return kind, true
			}
		}
		return "", false
	}
	if len(kinds) == 2 && kinds["integer"] && kinds["number"] {
		return "number", true
	}
	return "", false
}

// applyConstraints passes known constraints through verbatim and drops
// unsupported kinds with a recorded warning.
func (b *builder) applyConstraints(schema *spec.Schema, c *descriptor.Constraints, at string) {
	if c.Empty() {
		return
	}
	schema.MinLength = c.MinLength
	schema.MaxLength = c.MaxLength
	if c.Pattern != "" {
		schema.Pattern = c.Pattern
	}
	schema.Minimum = c.Minimum
	schema.Maximum = c.Maximum
	schema.ExclusiveMinimum = c.ExclusiveMinimum
	schema.ExclusiveMaximum = c.ExclusiveMaximum
	schema.MultipleOf = c.MultipleOf
	schema.MinItems = c.MinItems
	schema.MaxItems = c.MaxItems
	schema.UniqueItems = c.UniqueItems
	if c.Format != "" {
		schema.Format = c.Format
	}
	for _, name := range sortedConstraintNames(c.Other) {
		b.warnings = append(b.warnings, Warning{
			Target:     at,
			Constraint: name,
			Message:    fmt.Sprintf("unsupported constraint %q dropped", name),
		})
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedConstraintNames(other map[string]interface{}) []string {
	names := make([]string, 0, len(other))
	for name := range other {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
