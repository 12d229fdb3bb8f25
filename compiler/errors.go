// Package compiler turns type descriptors into a single coherent schema
// document: a reference registry assigns stable definition names and breaks
// recursion, a node builder maps each descriptor onto a schema fragment, the
// document compiler drives the walk over operation bindings, and an extension
// merger applies vendor extensions as a final pass.
package compiler

import "fmt"

// NamingConflictError is returned when two structurally incompatible types
// would be forced onto the same definition name after exhausting every
// disambiguation candidate. The registry never silently merges unrelated types.
type NamingConflictError struct {
	Name                string
	ExistingType        string
	ExistingIdentity    string
	ConflictingType     string
	ConflictingIdentity string
}

func (e *NamingConflictError) Error() string {
	return fmt.Sprintf("naming conflict on definition %q: %s (%s) and %s (%s) are structurally incompatible",
		e.Name, e.ExistingType, e.ExistingIdentity, e.ConflictingType, e.ConflictingIdentity)
}

// MixedEnumTypeError is returned when an enum's literal values span
// incompatible primitive kinds.
type MixedEnumTypeError struct {
	Enum  string
	Kinds []string
}

func (e *MixedEnumTypeError) Error() string {
	return fmt.Sprintf("enum %s mixes incompatible literal kinds %v", e.Enum, e.Kinds)
}

// UnresolvedReferenceError is returned when the compiled document contains a
// reference token with no matching definition. It indicates a registry or
// builder defect, never a legitimate input condition.
type UnresolvedReferenceError struct {
	Ref      string
	Location string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %q at %s", e.Ref, e.Location)
}

// ExtensionKeyCollisionError is returned when a vendor-extension key would
// shadow a structural schema keyword or is missing the namespace prefix.
type ExtensionKeyCollisionError struct {
	Key    string
	Target string
	Reason string
}

func (e *ExtensionKeyCollisionError) Error() string {
	return fmt.Sprintf("extension key %q on %s: %s", e.Key, e.Target, e.Reason)
}

// Warning is a non-fatal condition recorded during compilation. The only
// producer today is an unsupported constraint kind, which is dropped from the
// output rather than failing the compile.
type Warning struct {
	// Target is the type or field path the warning applies to.
	Target string
	// Constraint is the dropped constraint name.
	Constraint string
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Target, w.Message)
}
