package compiler

import (
	"sort"
	"strings"

	"github.com/go-openapi/spec"
)

// assertClosure verifies the reference-closure invariant: every reference
// token appearing anywhere in the document resolves to exactly one entry in
// the definitions table, and no reserved entry was left uncompiled. A failure
// here is a registry/builder defect, never a legitimate input condition.
func (c *Compiler) assertClosure(doc *Document) error {
	for _, entry := range c.registry.sortedEntries() {
		if entry.state != stateComplete {
			return &UnresolvedReferenceError{
				Ref:      RefPrefix + entry.name,
				Location: "registry entry left in progress",
			}
		}
	}

	refs := collectDocumentRefs(doc)
	names := make([]string, 0, len(refs))
	for ref := range refs {
		names = append(names, ref)
	}
	sort.Strings(names)

	for _, ref := range names {
		name := strings.TrimPrefix(ref, RefPrefix)
		if name == ref {
			return &UnresolvedReferenceError{Ref: ref, Location: refs[ref]}
		}
		if _, ok := doc.Definitions[name]; !ok {
			return &UnresolvedReferenceError{Ref: ref, Location: refs[ref]}
		}
	}
	return nil
}

// collectDocumentRefs walks every fragment in the document and returns the
// unique set of reference strings mapped to the location each was first seen.
func collectDocumentRefs(doc *Document) map[string]string {
	refs := make(map[string]string)
	for _, op := range doc.Operations {
		if op.Request != nil {
			collectSchemaRefs(op.Request, "operation "+op.Operation+" request", refs)
		}
		for _, response := range op.Responses {
			collectSchemaRefs(response.Schema, "operation "+op.Operation+" response "+response.Outcome, refs)
		}
	}

	names := make([]string, 0, len(doc.Definitions))
	for name := range doc.Definitions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		schema := doc.Definitions[name]
		collectSchemaRefs(&schema, "definition "+name, refs)
	}
	return refs
}

// collectSchemaRefs recursively walks a fragment tree and records every
// reference string it contains.
func collectSchemaRefs(s *spec.Schema, location string, refs map[string]string) {
	if s == nil {
		return
	}
	if IsRefSchema(s) {
		ref := s.Ref.Ref.String()
		if _, exists := refs[ref]; !exists {
			refs[ref] = location
		}
	}

	propertyNames := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		propertyNames = append(propertyNames, name)
	}
	sort.Strings(propertyNames)
	for _, name := range propertyNames {
		property := s.Properties[name]
		collectSchemaRefs(&property, location+"."+name, refs)
	}

	if s.Items != nil {
		collectSchemaRefs(s.Items.Schema, location+"[]", refs)
		for i := range s.Items.Schemas {
			collectSchemaRefs(&s.Items.Schemas[i], location+"[]", refs)
		}
	}
	if s.AdditionalProperties != nil {
		collectSchemaRefs(s.AdditionalProperties.Schema, location+"{}", refs)
	}
	for i := range s.AllOf {
		collectSchemaRefs(&s.AllOf[i], location, refs)
	}
	for i := range s.OneOf {
		collectSchemaRefs(&s.OneOf[i], location, refs)
	}
	for i := range s.AnyOf {
		collectSchemaRefs(&s.AnyOf[i], location, refs)
	}
	collectSchemaRefs(s.Not, location, refs)
}
