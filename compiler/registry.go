package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-openapi/spec"

	"github.com/griffnb/apischema/descriptor"
)

// RefPrefix is the reference-token prefix shared by every definition in a
// compiled document.
const RefPrefix = "#/definitions/"

// RefSchema builds a reference fragment pointing at the named definition.
func RefSchema(name string) *spec.Schema {
	return spec.RefSchema(RefPrefix + name)
}

// IsRefSchema determines whether a fragment is a reference fragment.
func IsRefSchema(schema *spec.Schema) bool {
	if schema == nil {
		return false
	}
	return schema.Ref.Ref.GetURL() != nil
}

// refName extracts the definition name from a reference fragment, or "" when
// the fragment is not a reference in the document's own token format.
func refName(schema *spec.Schema) string {
	if !IsRefSchema(schema) {
		return ""
	}
	ref := schema.Ref.Ref.String()
	if !strings.HasPrefix(ref, RefPrefix) {
		return ""
	}
	return ref[len(RefPrefix):]
}

type entryState int

const (
	stateInProgress entryState = iota
	stateComplete
)

// definitionEntry is one reserved definition: its assigned name, the identity
// it was reserved for, the source descriptor and, once compiled, the fragment.
// Entries live only for the duration of one document compilation.
type definitionEntry struct {
	name     string
	identity string
	state    entryState
	desc     *descriptor.TypeDescriptor
	schema   *spec.Schema
}

// Registry tracks which named types have been or are being compiled, assigns
// each a unique deterministic definition name and memoizes the result. An
// entry in stateInProgress is the recursion breaker: re-resolving it hands
// back the existing reference token without re-entering compilation.
//
// A Registry backs exactly one document compilation and assumes exclusive,
// single-goroutine access for its lifetime.
type Registry struct {
	entries map[string]*definitionEntry // identity key -> entry
	names   map[string]*definitionEntry // assigned name -> entry
	queue   []*definitionEntry          // reserved entries awaiting compilation, FIFO
}

// NewRegistry creates an empty registry for one compilation run.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*definitionEntry),
		names:   make(map[string]*definitionEntry),
	}
}

// Resolve returns the reference token for a named type, reserving a
// definition entry on first sight and queueing it for compilation.
func (r *Registry) Resolve(t *descriptor.TypeDescriptor) (*spec.Schema, error) {
	d := t.Deref()
	if d == nil {
		return nil, fmt.Errorf("cannot resolve nil type descriptor")
	}
	if !d.Named() {
		return nil, fmt.Errorf("cannot resolve anonymous %s descriptor without a derived name", d.Kind)
	}
	entry, err := r.resolve(d, sanitizeName(d.Name))
	if err != nil {
		return nil, err
	}
	return RefSchema(entry.name), nil
}

// ResolveAs registers a type under a caller-derived base name. It is how
// anonymous request and response records receive operation-derived definition
// names.
func (r *Registry) ResolveAs(t *descriptor.TypeDescriptor, base string) (*spec.Schema, error) {
	d := t.Deref()
	if d == nil {
		return nil, fmt.Errorf("cannot resolve nil type descriptor")
	}
	entry, err := r.resolve(d, sanitizeName(base))
	if err != nil {
		return nil, err
	}
	return RefSchema(entry.name), nil
}

func (r *Registry) resolve(d *descriptor.TypeDescriptor, base string) (*definitionEntry, error) {
	identity := d.Identity()
	if entry, ok := r.entries[identity]; ok {
		return entry, nil
	}

	candidates := r.nameCandidates(d, base)
	for _, name := range candidates {
		if _, taken := r.names[name]; taken {
			continue
		}
		entry := &definitionEntry{
			name:     name,
			identity: identity,
			state:    stateInProgress,
			desc:     d,
		}
		r.entries[identity] = entry
		r.names[name] = entry
		r.queue = append(r.queue, entry)
		return entry, nil
	}

	// Every candidate is taken by another identity. Structurally identical
	// shapes may collapse onto the existing entry; anything else is a hard
	// conflict, reported rather than silently merged.
	last := candidates[len(candidates)-1]
	holder := r.names[last]
	if holder.desc != nil && holder.desc.Fingerprint() == d.Fingerprint() {
		r.entries[identity] = holder
		return holder, nil
	}
	return nil, &NamingConflictError{
		Name:                last,
		ExistingType:        holder.desc.QualifiedName(),
		ExistingIdentity:    holder.identity,
		ConflictingType:     d.QualifiedName(),
		ConflictingIdentity: identity,
	}
}

// nameCandidates builds the disambiguation ladder for a type: the short name,
// then the last scope segment qualified name, then the full sanitized scope
// path ("github.com/acme/shop/models" becomes "github_com_acme_shop_models").
func (r *Registry) nameCandidates(d *descriptor.TypeDescriptor, base string) []string {
	candidates := []string{base}
	if d.Scope == "" {
		return candidates
	}
	if seg := lastScopeSegment(d.Scope); seg != "" {
		candidates = append(candidates, sanitizeName(seg)+"."+base)
	}
	full := fullPathDefName(d.Scope) + "." + base
	if full != candidates[len(candidates)-1] {
		candidates = append(candidates, full)
	}
	return candidates
}

// next pops the oldest reserved entry still awaiting compilation.
func (r *Registry) next() (*definitionEntry, bool) {
	if len(r.queue) == 0 {
		return nil, false
	}
	entry := r.queue[0]
	r.queue = r.queue[1:]
	return entry, true
}

// complete stores the compiled fragment for an in-progress entry.
func (r *Registry) complete(identity string, schema *spec.Schema) {
	entry, ok := r.entries[identity]
	if !ok {
		return
	}
	entry.schema = schema
	entry.state = stateComplete
}

// pending returns how many reserved entries have not been completed yet.
func (r *Registry) pending() int {
	n := 0
	for _, entry := range r.names {
		if entry.state != stateComplete {
			n++
		}
	}
	return n
}

// Definitions assembles the name -> fragment map of every completed entry.
func (r *Registry) Definitions() spec.Definitions {
	definitions := make(spec.Definitions, len(r.names))
	for name, entry := range r.names {
		if entry.state == stateComplete && entry.schema != nil {
			definitions[name] = *entry.schema
		}
	}
	return definitions
}

// sortedEntries returns the registered entries ordered by assigned name so
// downstream passes apply deterministically.
func (r *Registry) sortedEntries() []*definitionEntry {
	entries := make([]*definitionEntry, 0, len(r.names))
	for _, entry := range r.names {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries
}

// sanitizeName keeps letters, digits, '.', '_' and '-'; anything else (path
// separators, generic brackets, spaces) becomes '_'.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, name)
}

// lastScopeSegment extracts the final path segment of a declaring scope.
// "github.com/acme/shop/models" -> "models".
func lastScopeSegment(scope string) string {
	if idx := strings.LastIndex(scope, "/"); idx >= 0 {
		return scope[idx+1:]
	}
	return scope
}

// fullPathDefName converts a declaring scope to the flat definition-name
// format: path separators and dots become underscores.
func fullPathDefName(scope string) string {
	return strings.Map(func(r rune) rune {
		if r == '\\' || r == '/' || r == '.' {
			return '_'
		}
		return r
	}, scope)
}
