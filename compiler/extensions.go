package compiler

import (
	"sort"

	"github.com/go-openapi/spec"

	"github.com/griffnb/apischema/descriptor"
)

// reservedKeywords are the structural schema keywords a vendor extension must
// never shadow. The namespace prefix already rules these out for well-formed
// keys; the merger still checks explicitly so a malformed key fails loudly
// instead of corrupting the fragment.
var reservedKeywords = map[string]bool{
	"$ref":                 true,
	"additionalProperties": true,
	"allOf":                true,
	"anyOf":                true,
	"default":              true,
	"definitions":          true,
	"description":          true,
	"discriminator":        true,
	"enum":                 true,
	"format":               true,
	"items":                true,
	"not":                  true,
	"oneOf":                true,
	"pattern":              true,
	"properties":           true,
	"required":             true,
	"title":                true,
	"type":                 true,
}

// mergeExtensions applies every collected extension set onto its compiled
// fragment. Application is all-or-nothing: the first pass only validates, so
// a collision aborts before any fragment has been touched.
func (c *Compiler) mergeExtensions(doc *Document, bindings []Binding) error {
	for _, apply := range []bool{false, true} {
		for _, entry := range c.registry.sortedEntries() {
			if entry.schema == nil {
				continue
			}
			if err := mergeFragment(entry.desc, entry.schema, entry.name, apply); err != nil {
				return err
			}
		}
		for i, binding := range bindings {
			if len(binding.Extensions) == 0 {
				continue
			}
			if err := checkKeys(binding.Extensions, "operation "+binding.Operation); err != nil {
				return err
			}
			if !apply {
				continue
			}
			op := &doc.Operations[i]
			if op.Extensions == nil {
				op.Extensions = make(map[string]interface{}, len(binding.Extensions))
			}
			for key, value := range binding.Extensions {
				op.Extensions[key] = value
			}
		}
	}
	return nil
}

// mergeFragment walks a descriptor and its compiled fragment in parallel,
// shallow-merging model-level and field-level extension sets at the matching
// positions. Named nested types are skipped; their own definition entry is
// merged separately.
func mergeFragment(d *descriptor.TypeDescriptor, schema *spec.Schema, target string, apply bool) error {
	d = d.Deref()
	if d == nil || schema == nil {
		return nil
	}

	if len(d.Extensions) > 0 {
		if err := checkKeys(d.Extensions, target); err != nil {
			return err
		}
		if apply {
			addExtensions(schema, d.Extensions)
		}
	}

	switch d.Kind {
	case descriptor.KindRecord:
		own := schema
		if d.Extends != nil && len(schema.AllOf) == 2 {
			own = &schema.AllOf[1]
		}
		for _, field := range d.Fields {
			property, ok := own.Properties[field.Name]
			if !ok {
				continue
			}
			fieldTarget := target + "." + field.Name
			if len(field.Extensions) > 0 {
				if err := checkKeys(field.Extensions, fieldTarget); err != nil {
					return err
				}
				if apply {
					addExtensions(&property, field.Extensions)
				}
			}
			if inline := field.Type.Deref(); inline != nil && !inline.Named() {
				if err := mergeFragment(inline, &property, fieldTarget, apply); err != nil {
					return err
				}
			}
			if apply {
				own.Properties[field.Name] = property
			}
		}
	case descriptor.KindArray:
		if inline := d.Elem.Deref(); inline != nil && !inline.Named() && schema.Items != nil && schema.Items.Schema != nil {
			return mergeFragment(inline, schema.Items.Schema, target+"[]", apply)
		}
	case descriptor.KindMapping:
		if inline := d.Elem.Deref(); inline != nil && !inline.Named() && schema.AdditionalProperties != nil && schema.AdditionalProperties.Schema != nil {
			return mergeFragment(inline, schema.AdditionalProperties.Schema, target+"{}", apply)
		}
	case descriptor.KindUnion:
		for i, member := range d.Members {
			inline := member.Type.Deref()
			if inline == nil || inline.Named() || i >= len(schema.OneOf) {
				continue
			}
			if err := mergeFragment(inline, &schema.OneOf[i], target, apply); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkKeys rejects extension keys that shadow structural keywords or skip
// the namespace prefix. Keys are checked in sorted order so the reported key
// is deterministic.
func checkKeys(set descriptor.ExtensionSet, target string) error {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if reservedKeywords[key] {
			return &ExtensionKeyCollisionError{
				Key:    key,
				Target: target,
				Reason: "collides with a reserved structural keyword",
			}
		}
		if !descriptor.Namespaced(key) {
			return &ExtensionKeyCollisionError{
				Key:    key,
				Target: target,
				Reason: "missing the " + descriptor.ExtensionPrefix + " namespace prefix",
			}
		}
	}
	return nil
}

func addExtensions(schema *spec.Schema, set descriptor.ExtensionSet) {
	if schema.Extensions == nil {
		schema.Extensions = spec.Extensions{}
	}
	for key, value := range set {
		schema.Extensions[key] = value
	}
}
