// Package asyncapi assembles AsyncAPI documents from channel bindings. Message
// payloads compile through the same registry-backed core as the OpenAPI
// surface, then every reference token is rewritten into the components-table
// format this dialect uses.
package asyncapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-openapi/spec"

	"github.com/griffnb/apischema/compiler"
	"github.com/griffnb/apischema/descriptor"
)

// SchemaRefPrefix is the reference-token prefix of this dialect.
const SchemaRefPrefix = "#/components/schemas/"

// Info carries the document-level metadata block.
type Info struct {
	Title       string
	Version     string
	Description string
}

// Server declares one named server channels may bind to.
type Server struct {
	URL         string
	Protocol    string
	Description string
}

// Parameter declares one channel template parameter.
type Parameter struct {
	Name        string
	Description string
}

// Message is one direction of a channel: its operation identity and payload.
type Message struct {
	OperationID string
	Summary     string
	Description string
	Payload     *descriptor.TypeDescriptor
	Extensions  descriptor.ExtensionSet
}

// Channel binds a channel name to its publish/subscribe messages, template
// parameters and server references.
type Channel struct {
	Name        string
	Description string
	Parameters  []Parameter
	Servers     []string
	Publish     *Message
	Subscribe   *Message
}

// Builder collects servers and channels, then compiles them into a document.
// A Builder backs one document; it is not safe for concurrent use.
type Builder struct {
	id          string
	info        Info
	serverOrder []string
	servers     map[string]Server
	channels    []Channel
	names       map[string]bool
	warnings    []compiler.Warning
}

// NewBuilder creates a document builder. The id is the application identifier
// (a URI or URN); it may be empty.
func NewBuilder(id string, info Info) *Builder {
	return &Builder{
		id:      id,
		info:    info,
		servers: make(map[string]Server),
		names:   make(map[string]bool),
	}
}

// AddServer declares a named server. Redeclaring a name is an error.
func (b *Builder) AddServer(name string, server Server) error {
	if name == "" {
		return fmt.Errorf("server with empty name")
	}
	if _, exists := b.servers[name]; exists {
		return fmt.Errorf("duplicate server %q", name)
	}
	if server.URL == "" || server.Protocol == "" {
		return fmt.Errorf("server %q needs a url and a protocol", name)
	}
	b.serverOrder = append(b.serverOrder, name)
	b.servers[name] = server
	return nil
}

// AddChannel registers a channel. The channel's template parameters must match
// its declared parameters exactly, and it must carry at least one message.
func (b *Builder) AddChannel(channel Channel) error {
	if channel.Name == "" {
		return fmt.Errorf("channel with empty name")
	}
	if b.names[channel.Name] {
		return fmt.Errorf("duplicate channel %q", channel.Name)
	}
	if channel.Publish == nil && channel.Subscribe == nil {
		return fmt.Errorf("channel %q has neither publish nor subscribe", channel.Name)
	}
	if err := checkParameters(channel); err != nil {
		return err
	}

	b.names[channel.Name] = true
	b.channels = append(b.channels, channel)
	return nil
}

// checkParameters verifies that the {param} placeholders in the channel name
// and the declared parameter list are the same set.
func checkParameters(channel Channel) error {
	placeholders := templateParams(channel.Name)
	inName := make(map[string]bool, len(placeholders))
	for _, name := range placeholders {
		inName[name] = true
	}

	declared := make(map[string]bool, len(channel.Parameters))
	for _, param := range channel.Parameters {
		if declared[param.Name] {
			return fmt.Errorf("channel %q declares parameter %q twice", channel.Name, param.Name)
		}
		declared[param.Name] = true
		if !inName[param.Name] {
			return fmt.Errorf("channel %q declares parameter %q missing from the channel name", channel.Name, param.Name)
		}
	}
	for _, name := range placeholders {
		if !declared[name] {
			return fmt.Errorf("channel %q uses undeclared parameter {%s}", channel.Name, name)
		}
	}
	return nil
}

// Document is the assembled output, shaped for direct JSON/YAML emission.
type Document struct {
	AsyncAPI   string                   `json:"asyncapi"`
	ID         string                   `json:"id,omitempty"`
	Info       InfoObject               `json:"info"`
	Servers    map[string]ServerObject  `json:"servers,omitempty"`
	Channels   map[string]ChannelObject `json:"channels"`
	Components *Components              `json:"components,omitempty"`
}

type InfoObject struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

type ServerObject struct {
	URL         string `json:"url"`
	Protocol    string `json:"protocol"`
	Description string `json:"description,omitempty"`
}

type ChannelObject struct {
	Description string                     `json:"description,omitempty"`
	Parameters  map[string]ParameterObject `json:"parameters,omitempty"`
	Servers     []string                   `json:"servers,omitempty"`
	Publish     *OperationObject           `json:"publish,omitempty"`
	Subscribe   *OperationObject           `json:"subscribe,omitempty"`
}

type ParameterObject struct {
	Description string       `json:"description,omitempty"`
	Schema      *spec.Schema `json:"schema,omitempty"`
}

type OperationObject struct {
	OperationID string                 `json:"operationId"`
	Summary     string                 `json:"summary,omitempty"`
	Description string                 `json:"description,omitempty"`
	Message     *MessageObject         `json:"message,omitempty"`
	Extensions  map[string]interface{} `json:"-"`
}

// MarshalJSON flattens the operation's vendor extensions into the object
// alongside the fixed fields.
func (o OperationObject) MarshalJSON() ([]byte, error) {
	type operationAlias OperationObject
	raw, err := json.Marshal(operationAlias(o))
	if err != nil || len(o.Extensions) == 0 {
		return raw, err
	}
	merged := make(map[string]interface{})
	if err := json.Unmarshal(raw, &merged); err != nil {
		return nil, err
	}
	for key, value := range o.Extensions {
		merged[key] = value
	}
	return json.Marshal(merged)
}

type MessageObject struct {
	Name    string       `json:"name,omitempty"`
	Payload *spec.Schema `json:"payload,omitempty"`
}

type Components struct {
	Schemas map[string]spec.Schema `json:"schemas,omitempty"`
}

// Build compiles every payload and assembles the document. Server references
// are validated here because servers may be declared after the channels that
// use them.
func (b *Builder) Build() (*Document, error) {
	for _, channel := range b.channels {
		for _, ref := range channel.Servers {
			if _, ok := b.servers[ref]; !ok {
				return nil, fmt.Errorf("channel %q references undeclared server %q", channel.Name, ref)
			}
		}
	}

	bindings := make([]compiler.Binding, 0, len(b.channels)*2)
	ids := make(map[string]bool)
	for _, channel := range b.channels {
		for _, direction := range []struct {
			message   *Message
			subscribe bool
		}{{channel.Publish, false}, {channel.Subscribe, true}} {
			if direction.message == nil {
				continue
			}
			id := direction.message.OperationID
			if id == "" {
				id = deriveOperationID(channel.Name, direction.subscribe)
			}
			if ids[id] {
				return nil, fmt.Errorf("duplicate operation id %q", id)
			}
			ids[id] = true

			binding := compiler.Binding{Operation: id, Extensions: direction.message.Extensions}
			if direction.message.Payload != nil {
				binding.Responses = []compiler.ResponseBinding{{Outcome: "message", Type: direction.message.Payload}}
			}
			bindings = append(bindings, binding)
		}
	}

	c := compiler.New()
	compiled, err := c.Compile(bindings)
	if err != nil {
		return nil, err
	}
	b.warnings = c.Warnings()

	payloads := make(map[string]*spec.Schema, len(compiled.Operations))
	extensions := make(map[string]map[string]interface{}, len(compiled.Operations))
	for _, op := range compiled.Operations {
		if len(op.Responses) > 0 {
			schema := *op.Responses[0].Schema
			rewriteSchemaRefs(&schema)
			payloads[op.Operation] = &schema
		}
		extensions[op.Operation] = op.Extensions
	}

	doc := &Document{
		AsyncAPI: "2.6.0",
		ID:       b.id,
		Info: InfoObject{
			Title:       b.info.Title,
			Version:     b.info.Version,
			Description: b.info.Description,
		},
		Channels: make(map[string]ChannelObject, len(b.channels)),
	}

	if len(b.serverOrder) > 0 {
		doc.Servers = make(map[string]ServerObject, len(b.serverOrder))
		for _, name := range b.serverOrder {
			server := b.servers[name]
			doc.Servers[name] = ServerObject{URL: server.URL, Protocol: server.Protocol, Description: server.Description}
		}
	}

	operationObject := func(channel Channel, message *Message, subscribe bool) *OperationObject {
		if message == nil {
			return nil
		}
		id := message.OperationID
		if id == "" {
			id = deriveOperationID(channel.Name, subscribe)
		}
		op := &OperationObject{
			OperationID: id,
			Summary:     message.Summary,
			Description: message.Description,
			Extensions:  extensions[id],
		}
		if payload, ok := payloads[id]; ok {
			op.Message = &MessageObject{Name: id, Payload: payload}
		}
		return op
	}

	for _, channel := range b.channels {
		obj := ChannelObject{
			Description: channel.Description,
			Servers:     channel.Servers,
			Publish:     operationObject(channel, channel.Publish, false),
			Subscribe:   operationObject(channel, channel.Subscribe, true),
		}
		if len(channel.Parameters) > 0 {
			obj.Parameters = make(map[string]ParameterObject, len(channel.Parameters))
			for _, param := range channel.Parameters {
				obj.Parameters[param.Name] = ParameterObject{
					Description: param.Description,
					Schema:      &spec.Schema{SchemaProps: spec.SchemaProps{Type: []string{"string"}}},
				}
			}
		}
		doc.Channels[channel.Name] = obj
	}

	if len(compiled.Definitions) > 0 {
		schemas := make(map[string]spec.Schema, len(compiled.Definitions))
		for name, schema := range compiled.Definitions {
			rewriteSchemaRefs(&schema)
			schemas[name] = schema
		}
		doc.Components = &Components{Schemas: schemas}
	}
	return doc, nil
}

// Warnings returns the compiler warnings recorded by the last Build call.
func (b *Builder) Warnings() []compiler.Warning {
	return b.warnings
}

// rewriteSchemaRefs rewrites every definitions-table reference token in place
// into this dialect's components-table format.
func rewriteSchemaRefs(s *spec.Schema) {
	if s == nil {
		return
	}
	if ref := s.Ref.Ref.String(); strings.HasPrefix(ref, compiler.RefPrefix) {
		s.Ref = spec.MustCreateRef(SchemaRefPrefix + ref[len(compiler.RefPrefix):])
	}
	for name, property := range s.Properties {
		rewriteSchemaRefs(&property)
		s.Properties[name] = property
	}
	if s.Items != nil {
		rewriteSchemaRefs(s.Items.Schema)
		for i := range s.Items.Schemas {
			rewriteSchemaRefs(&s.Items.Schemas[i])
		}
	}
	if s.AdditionalProperties != nil {
		rewriteSchemaRefs(s.AdditionalProperties.Schema)
	}
	for i := range s.AllOf {
		rewriteSchemaRefs(&s.AllOf[i])
	}
	for i := range s.OneOf {
		rewriteSchemaRefs(&s.OneOf[i])
	}
	for i := range s.AnyOf {
		rewriteSchemaRefs(&s.AnyOf[i])
	}
	rewriteSchemaRefs(s.Not)
}

// templateParams extracts the {param} names of a channel name in order.
func templateParams(name string) []string {
	var names []string
	rest := name
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			return names
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			return names
		}
		if closing > 1 {
			names = append(names, rest[open+1:open+closing])
		}
		rest = rest[open+closing+1:]
	}
}

// deriveOperationID builds a stable operation id from the channel name when a
// message supplies none: "user/{id}/signedup" subscribe becomes
// "subscribeUserIdSignedup".
func deriveOperationID(channel string, subscribe bool) string {
	var b strings.Builder
	if subscribe {
		b.WriteString("subscribe")
	} else {
		b.WriteString("publish")
	}
	for _, segment := range strings.FieldsFunc(channel, func(r rune) bool {
		return r == '/' || r == '.' || r == '{' || r == '}' || r == '-' || r == '_'
	}) {
		runes := []rune(segment)
		if runes[0] >= 'a' && runes[0] <= 'z' {
			runes[0] -= 'a' - 'A'
		}
		b.WriteString(string(runes))
	}
	return b.String()
}
