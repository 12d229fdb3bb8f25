// Package openapi assembles OpenAPI documents from operation bindings. It sits
// on top of the compiler package: every request and response type flows through
// one shared compilation so the definitions table is deduplicated across the
// whole document.
package openapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-openapi/spec"

	"github.com/griffnb/apischema/compiler"
	"github.com/griffnb/apischema/descriptor"
)

// Info carries the document-level metadata block.
type Info struct {
	Title          string
	Version        string
	Description    string
	TermsOfService string
	ContactName    string
	ContactEmail   string
	ContactURL     string
	LicenseName    string
	LicenseURL     string
}

// Config configures a document builder.
type Config struct {
	Info     Info
	Host     string
	BasePath string
	// Schemes lists the transfer protocols, e.g. "https". Optional.
	Schemes []string
}

// RequestBody is an operation's body payload.
type RequestBody struct {
	Type        *descriptor.TypeDescriptor
	Description string
	// Array marks the body as an array of the given type.
	Array bool
}

// Response is one status-keyed operation outcome. A nil Type produces a
// schema-less response entry.
type Response struct {
	Status      int
	Description string
	Type        *descriptor.TypeDescriptor
	Array       bool
}

// Operation binds one method+path route to its payload types and metadata.
type Operation struct {
	Method      string
	Path        string
	ID          string
	Summary     string
	Description string
	Tags        []string
	Deprecated  bool
	Request     *RequestBody
	Responses   []Response
	Extensions  descriptor.ExtensionSet
}

var supportedMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true,
}

// Builder collects operations and tag declarations, then compiles them into a
// single document. A Builder backs one document; it is not safe for concurrent
// use.
type Builder struct {
	config     Config
	operations []Operation
	methods    map[string]map[string]bool // path -> method set
	ids        map[string]bool
	tagOrder   []string
	tags       map[string]string
	warnings   []compiler.Warning
}

// NewBuilder creates a document builder.
func NewBuilder(config Config) *Builder {
	return &Builder{
		config:  config,
		methods: make(map[string]map[string]bool),
		ids:     make(map[string]bool),
		tags:    make(map[string]string),
	}
}

// DeclareTag registers a tag with its description. Declaring the same tag
// twice is fine as long as the descriptions agree; conflicting descriptions
// are rejected because the output has a single tags table.
func (b *Builder) DeclareTag(name, description string) error {
	if name == "" {
		return fmt.Errorf("tag with empty name")
	}
	existing, ok := b.tags[name]
	if !ok {
		b.tagOrder = append(b.tagOrder, name)
		b.tags[name] = description
		return nil
	}
	if description == "" || existing == description {
		return nil
	}
	if existing == "" {
		b.tags[name] = description
		return nil
	}
	return fmt.Errorf("tag %q declared with conflicting descriptions %q and %q", name, existing, description)
}

// Add registers an operation. The method must be a supported HTTP method and
// each method+path pair may be bound once. Tags referenced by the operation
// are declared on the fly without a description.
func (b *Builder) Add(op Operation) error {
	method := strings.ToLower(strings.TrimSpace(op.Method))
	if !supportedMethods[method] {
		return fmt.Errorf("unsupported method %q on path %q", op.Method, op.Path)
	}
	if op.Path == "" || !strings.HasPrefix(op.Path, "/") {
		return fmt.Errorf("path %q must start with /", op.Path)
	}
	op.Method = method

	if b.methods[op.Path] == nil {
		b.methods[op.Path] = make(map[string]bool)
	}
	if b.methods[op.Path][method] {
		return fmt.Errorf("duplicate operation %s %s", strings.ToUpper(method), op.Path)
	}
	b.methods[op.Path][method] = true

	if op.ID == "" {
		op.ID = deriveOperationID(method, op.Path)
	}
	if b.ids[op.ID] {
		return fmt.Errorf("duplicate operation id %q", op.ID)
	}
	b.ids[op.ID] = true

	for _, tag := range op.Tags {
		if err := b.DeclareTag(tag, ""); err != nil {
			return err
		}
	}

	b.operations = append(b.operations, op)
	return nil
}

// Build compiles every bound type and assembles the document. Compilation
// failures abort the build; nothing is emitted half-done.
func (b *Builder) Build() (*spec.Swagger, error) {
	bindings := make([]compiler.Binding, 0, len(b.operations))
	for _, op := range b.operations {
		binding := compiler.Binding{Operation: op.ID, Extensions: op.Extensions}
		if op.Request != nil {
			binding.Request = payloadType(op.Request.Type, op.Request.Array)
		}
		for _, response := range op.Responses {
			if response.Type == nil {
				continue
			}
			binding.Responses = append(binding.Responses, compiler.ResponseBinding{
				Outcome: strconv.Itoa(response.Status),
				Type:    payloadType(response.Type, response.Array),
			})
		}
		bindings = append(bindings, binding)
	}

	c := compiler.New()
	doc, err := c.Compile(bindings)
	if err != nil {
		return nil, err
	}
	b.warnings = c.Warnings()

	compiled := make(map[string]compiler.OperationSchemas, len(doc.Operations))
	for _, op := range doc.Operations {
		compiled[op.Operation] = op
	}

	paths := &spec.Paths{Paths: make(map[string]spec.PathItem, len(b.methods))}
	for _, op := range b.operations {
		operation, err := b.assembleOperation(op, compiled[op.ID])
		if err != nil {
			return nil, err
		}
		item := paths.Paths[op.Path]
		setOperation(&item, op.Method, operation)
		paths.Paths[op.Path] = item
	}

	swagger := &spec.Swagger{
		SwaggerProps: spec.SwaggerProps{
			Swagger:     "2.0",
			Info:        b.assembleInfo(),
			Host:        b.config.Host,
			BasePath:    b.config.BasePath,
			Schemes:     b.config.Schemes,
			Consumes:    []string{"application/json"},
			Produces:    []string{"application/json"},
			Paths:       paths,
			Definitions: doc.Definitions,
			Tags:        b.assembleTags(),
		},
	}
	return swagger, nil
}

// Warnings returns the compiler warnings recorded by the last Build call.
func (b *Builder) Warnings() []compiler.Warning {
	return b.warnings
}

func (b *Builder) assembleInfo() *spec.Info {
	info := &spec.Info{
		InfoProps: spec.InfoProps{
			Title:          b.config.Info.Title,
			Version:        b.config.Info.Version,
			Description:    b.config.Info.Description,
			TermsOfService: b.config.Info.TermsOfService,
		},
	}
	if b.config.Info.ContactName != "" || b.config.Info.ContactEmail != "" || b.config.Info.ContactURL != "" {
		info.Contact = &spec.ContactInfo{
			ContactInfoProps: spec.ContactInfoProps{
				Name:  b.config.Info.ContactName,
				Email: b.config.Info.ContactEmail,
				URL:   b.config.Info.ContactURL,
			},
		}
	}
	if b.config.Info.LicenseName != "" || b.config.Info.LicenseURL != "" {
		info.License = &spec.License{
			LicenseProps: spec.LicenseProps{
				Name: b.config.Info.LicenseName,
				URL:  b.config.Info.LicenseURL,
			},
		}
	}
	return info
}

func (b *Builder) assembleTags() []spec.Tag {
	if len(b.tagOrder) == 0 {
		return nil
	}
	tags := make([]spec.Tag, 0, len(b.tagOrder))
	for _, name := range b.tagOrder {
		tags = append(tags, spec.Tag{TagProps: spec.TagProps{Name: name, Description: b.tags[name]}})
	}
	return tags
}

func (b *Builder) assembleOperation(op Operation, schemas compiler.OperationSchemas) (*spec.Operation, error) {
	operation := &spec.Operation{
		OperationProps: spec.OperationProps{
			ID:          op.ID,
			Summary:     op.Summary,
			Description: op.Description,
			Tags:        op.Tags,
			Deprecated:  op.Deprecated,
		},
	}

	for _, name := range templateParams(op.Path) {
		param := spec.Parameter{
			ParamProps: spec.ParamProps{
				Name:     name,
				In:       "path",
				Required: true,
			},
			SimpleSchema: spec.SimpleSchema{Type: "string"},
		}
		operation.Parameters = append(operation.Parameters, param)
	}

	if op.Request != nil {
		if schemas.Request == nil {
			return nil, fmt.Errorf("operation %s: request body compiled to no schema", op.ID)
		}
		operation.Parameters = append(operation.Parameters, spec.Parameter{
			ParamProps: spec.ParamProps{
				Name:        "body",
				In:          "body",
				Description: op.Request.Description,
				Required:    true,
				Schema:      schemas.Request,
			},
		})
	}

	compiledResponses := make(map[string]*spec.Schema, len(schemas.Responses))
	for _, response := range schemas.Responses {
		compiledResponses[response.Outcome] = response.Schema
	}

	responses := &spec.Responses{ResponsesProps: spec.ResponsesProps{
		StatusCodeResponses: make(map[int]spec.Response, len(op.Responses)),
	}}
	for _, response := range op.Responses {
		if _, dup := responses.StatusCodeResponses[response.Status]; dup {
			return nil, fmt.Errorf("operation %s: duplicate response status %d", op.ID, response.Status)
		}
		description := response.Description
		if description == "" {
			description = http.StatusText(response.Status)
		}
		responses.StatusCodeResponses[response.Status] = spec.Response{
			ResponseProps: spec.ResponseProps{
				Description: description,
				Schema:      compiledResponses[strconv.Itoa(response.Status)],
			},
		}
	}
	if len(responses.StatusCodeResponses) > 0 {
		operation.Responses = responses
	}

	if len(schemas.Extensions) > 0 {
		operation.Extensions = spec.Extensions{}
		for key, value := range schemas.Extensions {
			operation.Extensions[key] = value
		}
	}
	return operation, nil
}

func payloadType(t *descriptor.TypeDescriptor, array bool) *descriptor.TypeDescriptor {
	if array {
		return descriptor.NewArray(t)
	}
	return t
}

func setOperation(item *spec.PathItem, method string, operation *spec.Operation) {
	switch method {
	case "get":
		item.Get = operation
	case "put":
		item.Put = operation
	case "post":
		item.Post = operation
	case "delete":
		item.Delete = operation
	case "options":
		item.Options = operation
	case "head":
		item.Head = operation
	case "patch":
		item.Patch = operation
	}
}

// templateParams extracts the {param} names of a path template in order.
func templateParams(path string) []string {
	var names []string
	for _, segment := range strings.Split(path, "/") {
		if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") && len(segment) > 2 {
			names = append(names, segment[1:len(segment)-1])
		}
	}
	return names
}

// deriveOperationID builds a stable operation id from the route when the
// caller supplies none: "get /pets/{petId}" becomes "getPetsPetId".
func deriveOperationID(method, path string) string {
	var b strings.Builder
	b.WriteString(method)
	for _, segment := range strings.Split(path, "/") {
		segment = strings.Trim(segment, "{}")
		if segment == "" {
			continue
		}
		runes := []rune(segment)
		b.WriteRune(toUpper(runes[0]))
		b.WriteString(string(runes[1:]))
	}
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
