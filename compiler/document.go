package compiler

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-openapi/spec"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/griffnb/apischema/descriptor"
)

// Binding binds one operation or channel identifier to its request type and
// an ordered sequence of outcome/response types. Bindings are supplied by the
// routing collaborator; their order defines document-section order only.
type Binding struct {
	// Operation is the operation or channel identifier, unique per document.
	Operation string
	// Request is the request or message payload type; nil when the operation
	// carries no body.
	Request *descriptor.TypeDescriptor
	// Responses are the per-outcome response types, in declaration order.
	Responses []ResponseBinding
	// Extensions are operation-level vendor extensions.
	Extensions descriptor.ExtensionSet
}

// ResponseBinding pairs an outcome label (an HTTP status code, a message
// name, anything the caller keys responses by) with a response type.
type ResponseBinding struct {
	Outcome string
	Type    *descriptor.TypeDescriptor
}

// OperationSchemas is one operation's entry in the compiled document: its
// request and response fragments, which are reference tokens whenever the
// bound type was extracted into the definitions table.
type OperationSchemas struct {
	Operation  string                 `json:"operation"`
	Request    *spec.Schema           `json:"request,omitempty"`
	Responses  []ResponseSchema       `json:"responses,omitempty"`
	Extensions map[string]interface{} `json:"extensions,omitempty"`
}

// ResponseSchema is one compiled response fragment keyed by its outcome.
type ResponseSchema struct {
	Outcome string       `json:"outcome"`
	Schema  *spec.Schema `json:"schema"`
}

// Document is the compiled output: the per-operation schema bindings plus the
// definitions table every reference token resolves into.
type Document struct {
	Operations  []OperationSchemas `json:"operations"`
	Definitions spec.Definitions   `json:"definitions"`
}

// Compiler drives one document compilation. It owns its registry for the
// whole run, so a Compiler must not be shared between goroutines or reused
// for a second document; independent compilations each get their own.
type Compiler struct {
	registry *Registry
	builder  *builder
	compiled bool
}

// New creates a compiler for a single document compilation.
func New() *Compiler {
	registry := NewRegistry()
	return &Compiler{
		registry: registry,
		builder:  newBuilder(registry),
	}
}

// Compile walks every type reachable from the bindings, extracts named types
// into deterministic definitions, applies vendor extensions and asserts the
// reference-closure invariant. Fatal conditions abort the whole call; a
// document is never returned half-built.
func (c *Compiler) Compile(bindings []Binding) (*Document, error) {
	if c.compiled {
		return nil, fmt.Errorf("compiler already ran; a Compiler backs exactly one document")
	}
	c.compiled = true

	doc := &Document{Operations: make([]OperationSchemas, 0, len(bindings))}

	seen := make(map[string]bool, len(bindings))
	for _, binding := range bindings {
		if binding.Operation == "" {
			return nil, fmt.Errorf("binding with empty operation identifier")
		}
		if seen[binding.Operation] {
			return nil, fmt.Errorf("duplicate operation binding %q", binding.Operation)
		}
		seen[binding.Operation] = true

		op := OperationSchemas{Operation: binding.Operation}

		if binding.Request != nil {
			schema, err := c.rootSchema(binding.Request, binding.Operation, derivedName(binding.Operation)+"Request")
			if err != nil {
				return nil, fmt.Errorf("operation %s request: %w", binding.Operation, err)
			}
			op.Request = schema
		}

		anonymous := anonymousResponseCount(binding.Responses)
		for _, response := range binding.Responses {
			name := derivedName(binding.Operation) + "Response"
			if anonymous > 1 {
				name += sanitizeName(response.Outcome)
			}
			schema, err := c.rootSchema(response.Type, binding.Operation, name)
			if err != nil {
				return nil, fmt.Errorf("operation %s response %s: %w", binding.Operation, response.Outcome, err)
			}
			op.Responses = append(op.Responses, ResponseSchema{Outcome: response.Outcome, Schema: schema})
		}

		doc.Operations = append(doc.Operations, op)
	}

	// Drain the work queue breadth-first: compiling one entry may surface
	// further named types, which join the back of the queue. Order is
	// deterministic because it follows binding order and field declaration
	// order only.
	for {
		entry, ok := c.registry.next()
		if !ok {
			break
		}
		schema, err := c.builder.build(entry.desc, entry.name)
		if err != nil {
			return nil, err
		}
		c.registry.complete(entry.identity, schema)
	}

	if err := c.mergeExtensions(doc, bindings); err != nil {
		return nil, err
	}

	doc.Definitions = c.registry.Definitions()

	if err := c.assertClosure(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Warnings returns the non-fatal conditions recorded during compilation.
func (c *Compiler) Warnings() []Warning {
	return c.builder.warnings
}

// rootSchema compiles a binding root. Named types and anonymous
// record/union/enum shapes are extracted into definitions (the latter under
// an operation-derived name) and come back as reference tokens; bare
// primitives, arrays and mappings stay inline.
func (c *Compiler) rootSchema(t *descriptor.TypeDescriptor, operation, derived string) (*spec.Schema, error) {
	d := t.Deref()
	if d == nil {
		return nil, fmt.Errorf("nil type descriptor")
	}
	if d.Named() {
		return c.registry.Resolve(d)
	}
	switch d.Kind {
	case descriptor.KindRecord, descriptor.KindUnion, descriptor.KindEnum:
		return c.registry.ResolveAs(d, derived)
	default:
		return c.builder.build(d, operation)
	}
}

func anonymousResponseCount(responses []ResponseBinding) int {
	n := 0
	for _, response := range responses {
		d := response.Type.Deref()
		if d != nil && !d.Named() && d.Kind == descriptor.KindRecord {
			n++
		}
	}
	return n
}

var titleCaser = cases.Title(language.English)

// derivedName turns an operation identifier into a definition-name stem:
// "createUser" and "create_user" both become "CreateUser".
func derivedName(operation string) string {
	parts := strings.FieldsFunc(operation, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var b strings.Builder
	for _, part := range parts {
		if strings.IndexFunc(part, unicode.IsUpper) < 0 {
			// All-lowercase segments go through the language-aware caser.
			b.WriteString(titleCaser.String(part))
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}
