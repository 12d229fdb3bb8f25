// Package describe derives type descriptors from Go values through reflection.
// It is the introspection collaborator in front of the compiler: struct tags
// carry the field names, requiredness, constraints and vendor extensions that
// end up on the compiled fragments.
package describe

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/griffnb/apischema/descriptor"
)

// Enumer is implemented by named types that enumerate their legal values.
// Types implementing it describe as enum descriptors instead of their
// underlying primitive.
type Enumer interface {
	Enum() []interface{}
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	uuidType   = reflect.TypeOf(uuid.UUID{})
	bytesType  = reflect.TypeOf([]byte(nil))
	enumerType = reflect.TypeOf((*Enumer)(nil)).Elem()
)

// Describer derives descriptors and caches named struct types so cyclic
// structs terminate and repeated fields share one descriptor. A Describer is
// not safe for concurrent use.
type Describer struct {
	cache map[reflect.Type]*descriptor.TypeDescriptor
}

// New creates an empty describer.
func New() *Describer {
	return &Describer{cache: make(map[reflect.Type]*descriptor.TypeDescriptor)}
}

// Describe derives the descriptor for a value's type.
func Describe(v interface{}) (*descriptor.TypeDescriptor, error) {
	return New().Describe(v)
}

// Describe derives the descriptor for a value's type.
func (d *Describer) Describe(v interface{}) (*descriptor.TypeDescriptor, error) {
	if v == nil {
		return nil, fmt.Errorf("cannot describe nil")
	}
	return d.DescribeType(reflect.TypeOf(v))
}

// DescribeType derives the descriptor for a reflected type.
func (d *Describer) DescribeType(t reflect.Type) (*descriptor.TypeDescriptor, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if cached, ok := d.cache[t]; ok {
		return cached, nil
	}

	switch t {
	case timeType:
		return descriptor.NewPrimitive(descriptor.DateTime), nil
	case uuidType:
		return descriptor.NewPrimitive(descriptor.UUID), nil
	case bytesType:
		return descriptor.NewPrimitive(descriptor.Bytes), nil
	}

	if enum, ok, err := d.describeEnum(t); ok || err != nil {
		return enum, err
	}

	switch t.Kind() {
	case reflect.String:
		return descriptor.NewPrimitive(descriptor.String), nil
	case reflect.Bool:
		return descriptor.NewPrimitive(descriptor.Boolean), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return descriptor.NewPrimitive(descriptor.Integer), nil
	case reflect.Float32, reflect.Float64:
		return descriptor.NewPrimitive(descriptor.Number), nil
	case reflect.Interface:
		return descriptor.NewPrimitive(descriptor.Any), nil
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return descriptor.NewPrimitive(descriptor.Bytes), nil
		}
		elem, err := d.DescribeType(t.Elem())
		if err != nil {
			return nil, err
		}
		return descriptor.NewArray(elem), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map type %s has non-string keys", t)
		}
		value, err := d.DescribeType(t.Elem())
		if err != nil {
			return nil, err
		}
		return descriptor.NewMapping(value), nil
	case reflect.Struct:
		return d.describeStruct(t)
	default:
		return nil, fmt.Errorf("cannot describe %s type %s", t.Kind(), t)
	}
}

// describeEnum recognizes named types implementing Enumer, on the value or the
// pointer receiver.
func (d *Describer) describeEnum(t reflect.Type) (*descriptor.TypeDescriptor, bool, error) {
	if t.Name() == "" {
		return nil, false, nil
	}
	var instance Enumer
	switch {
	case t.Implements(enumerType):
		instance = reflect.New(t).Elem().Interface().(Enumer)
	case reflect.PtrTo(t).Implements(enumerType):
		instance = reflect.New(t).Interface().(Enumer)
	default:
		return nil, false, nil
	}
	values := instance.Enum()
	if len(values) == 0 {
		return nil, true, fmt.Errorf("enum type %s enumerates no values", t)
	}
	return descriptor.NewEnum(t.PkgPath(), sanitizeTypeName(t.Name()), values...), true, nil
}

func (d *Describer) describeStruct(t reflect.Type) (*descriptor.TypeDescriptor, error) {
	record := &descriptor.TypeDescriptor{
		Kind:  descriptor.KindRecord,
		Scope: t.PkgPath(),
		Name:  sanitizeTypeName(t.Name()),
	}
	// Cached before the field walk so self-referential structs resolve to the
	// same descriptor instead of recursing forever.
	if record.Named() {
		d.cache[t] = record
	}

	for i := 0; i < t.NumField(); i++ {
		structField := t.Field(i)
		jsonName, jsonSkip := parseJSONTag(structField)

		if structField.Anonymous && structField.Tag.Get("json") == "" {
			if err := d.describeEmbedded(record, structField, t); err != nil {
				return nil, err
			}
			continue
		}
		if structField.PkgPath != "" || jsonSkip {
			continue
		}

		fieldType, err := d.DescribeType(structField.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t, structField.Name, err)
		}
		field := descriptor.Field{
			Name:        jsonName,
			Type:        fieldType,
			Required:    hasBindingOption(structField, "required"),
			Description: structField.Tag.Get("description"),
		}

		if constraints, err := parseConstraintTags(structField); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", t, structField.Name, err)
		} else if !constraints.Empty() {
			// Constraints bind to the field's own fragment; a named type shared
			// across fields cannot carry per-field bounds.
			if fieldType.Named() {
				return nil, fmt.Errorf("%s.%s: constraint tags on named type %s", t, structField.Name, fieldType.QualifiedName())
			}
			fieldType.Constraints = constraints
		}

		if raw, ok := structField.Tag.Lookup("default"); ok {
			field.Default, err = parseLiteral(raw, fieldType)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: default: %w", t, structField.Name, err)
			}
		}
		if raw, ok := structField.Tag.Lookup("example"); ok {
			field.Example, err = parseLiteral(raw, fieldType)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: example: %w", t, structField.Name, err)
			}
		}
		if raw, ok := structField.Tag.Lookup("extensions"); ok {
			field.Extensions = parseExtensionsTag(raw)
		}

		record.Fields = append(record.Fields, field)
	}
	return record, nil
}

// describeEmbedded maps an embedded named struct onto the record's extends
// edge. A record extends at most one base.
func (d *Describer) describeEmbedded(record *descriptor.TypeDescriptor, structField reflect.StructField, owner reflect.Type) error {
	embedded := structField.Type
	for embedded.Kind() == reflect.Ptr {
		embedded = embedded.Elem()
	}
	if embedded.Kind() != reflect.Struct {
		return fmt.Errorf("%s embeds non-struct %s", owner, embedded)
	}
	if record.Extends != nil {
		return fmt.Errorf("%s embeds more than one struct", owner)
	}
	base, err := d.DescribeType(embedded)
	if err != nil {
		return err
	}
	if !base.Named() {
		return fmt.Errorf("%s embeds unnamed struct", owner)
	}
	record.Extends = base
	return nil
}

// parseJSONTag resolves a field's wire name from its json tag, falling back to
// the Go field name.
func parseJSONTag(field reflect.StructField) (name string, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", true
	}
	name = strings.Split(tag, ",")[0]
	if name == "" {
		name = field.Name
	}
	return name, false
}

func hasBindingOption(field reflect.StructField, option string) bool {
	for _, part := range strings.Split(field.Tag.Get("binding"), ",") {
		if strings.TrimSpace(part) == option {
			return true
		}
	}
	return false
}

func parseConstraintTags(field reflect.StructField) (*descriptor.Constraints, error) {
	constraints := &descriptor.Constraints{}

	if raw, ok := field.Tag.Lookup("minimum"); ok {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("minimum: %w", err)
		}
		constraints.Minimum = &value
	}
	if raw, ok := field.Tag.Lookup("maximum"); ok {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("maximum: %w", err)
		}
		constraints.Maximum = &value
	}
	if raw, ok := field.Tag.Lookup("multipleOf"); ok {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("multipleOf: %w", err)
		}
		constraints.MultipleOf = &value
	}
	if raw, ok := field.Tag.Lookup("minLength"); ok {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("minLength: %w", err)
		}
		constraints.MinLength = &value
	}
	if raw, ok := field.Tag.Lookup("maxLength"); ok {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("maxLength: %w", err)
		}
		constraints.MaxLength = &value
	}
	constraints.Pattern = field.Tag.Get("pattern")
	constraints.Format = field.Tag.Get("format")
	return constraints, nil
}

// parseLiteral converts a tag literal into the field type's value space.
func parseLiteral(raw string, t *descriptor.TypeDescriptor) (interface{}, error) {
	d := t.Deref()
	if d == nil || d.Kind != descriptor.KindPrimitive {
		return raw, nil
	}
	switch d.Primitive {
	case descriptor.Integer:
		return strconv.ParseInt(raw, 10, 64)
	case descriptor.Number:
		return strconv.ParseFloat(raw, 64)
	case descriptor.Boolean:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// parseExtensionsTag parses the comma-separated extensions tag. Entries are
// key=value pairs; a bare key declares a true flag. Keys missing the x- prefix
// get it prepended.
func parseExtensionsTag(raw string) descriptor.ExtensionSet {
	set := descriptor.ExtensionSet{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, found := strings.Cut(entry, "=")
		if !strings.HasPrefix(key, descriptor.ExtensionPrefix) {
			key = descriptor.ExtensionPrefix + key
		}
		if found {
			set[key] = value
		} else {
			set[key] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// sanitizeTypeName flattens generic instantiation names: "Page[pkg.User]"
// becomes "Page_pkg.User_".
func sanitizeTypeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ',', ' ', '*', '/':
			return '_'
		}
		return r
	}, name)
}
