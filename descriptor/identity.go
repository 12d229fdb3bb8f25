package descriptor

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// identityNamespace seeds the deterministic identity UUIDs. It never changes;
// identity keys must be stable across processes and compilations.
var identityNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Identity returns the stable identity key of the descriptor: a name-derived
// key for declared types, a shape-derived key for anonymous ones. It is a
// deterministic UUID, never pointer identity, so it is portable across runs.
func (t *TypeDescriptor) Identity() string {
	t = t.Deref()
	if t == nil {
		return ""
	}
	if t.Named() {
		return uuid.NewSHA1(identityNamespace, []byte("name:"+t.QualifiedName())).String()
	}
	return uuid.NewSHA1(identityNamespace, []byte("shape:"+t.Fingerprint())).String()
}

// Fingerprint renders the structural shape of the descriptor as a canonical
// string. Nested named types appear by qualified name rather than being
// expanded, which both keeps the walk finite on cyclic graphs and makes two
// shapes differ when they reference different named types.
func (t *TypeDescriptor) Fingerprint() string {
	var b strings.Builder
	writeFingerprint(t, &b, map[*TypeDescriptor]bool{})
	return b.String()
}

func writeFingerprint(t *TypeDescriptor, b *strings.Builder, seen map[*TypeDescriptor]bool) {
	t = t.Deref()
	if t == nil {
		b.WriteString("nil")
		return
	}
	if seen[t] {
		b.WriteString("cycle(" + t.QualifiedName() + ")")
		return
	}
	seen[t] = true
	defer delete(seen, t)

	switch t.Kind {
	case KindPrimitive:
		b.WriteString("p:" + string(t.Primitive))
	case KindRecord:
		b.WriteString("r{")
		if t.Extends != nil {
			b.WriteString("^" + t.Extends.QualifiedName() + ";")
		}
		for _, f := range t.Fields {
			fmt.Fprintf(b, "%s:%t:", f.Name, f.Required)
			writeNested(f.Type, b, seen)
			b.WriteString(";")
		}
		b.WriteString("}")
	case KindArray:
		b.WriteString("a[")
		writeNested(t.Elem, b, seen)
		b.WriteString("]")
	case KindMapping:
		b.WriteString("m[")
		writeNested(t.Elem, b, seen)
		b.WriteString("]")
	case KindUnion:
		b.WriteString("u<" + t.Discriminator + ";")
		for _, m := range t.Members {
			b.WriteString(m.Value + "=")
			writeNested(m.Type, b, seen)
			b.WriteString(";")
		}
		b.WriteString(">")
	case KindEnum:
		b.WriteString("e(")
		for _, v := range t.EnumValues {
			fmt.Fprintf(b, "%T:%v;", v, v)
		}
		b.WriteString(")")
	default:
		b.WriteString("?")
	}
}

// writeNested writes a nested type by qualified name when it is a named type,
// expanding only anonymous shapes.
func writeNested(t *TypeDescriptor, b *strings.Builder, seen map[*TypeDescriptor]bool) {
	d := t.Deref()
	if d != nil && d.Named() {
		b.WriteString("n:" + d.QualifiedName())
		return
	}
	writeFingerprint(d, b, seen)
}
