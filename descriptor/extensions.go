package descriptor

import (
	"fmt"
	"sort"
	"strings"
)

// ExtensionPrefix is the namespace every vendor-extension key must carry.
// It keeps custom keys from ever shadowing structural schema keywords and is
// the only externally visible format contract the compiler owns.
const ExtensionPrefix = "x-"

// ExtensionSet maps namespaced vendor-extension keys to JSON-compatible
// values. Sets attach at model, field or operation granularity and are merged
// onto compiled fragments after structural compilation.
type ExtensionSet map[string]interface{}

// Namespaced reports whether key carries the vendor-extension prefix.
func Namespaced(key string) bool {
	return strings.HasPrefix(key, ExtensionPrefix) && len(key) > len(ExtensionPrefix)
}

// Validate checks that every key in the set is namespaced. It does not check
// for structural-keyword collisions; the merger does that against the target
// dialect's reserved words.
func (e ExtensionSet) Validate() error {
	for _, key := range e.Keys() {
		if !Namespaced(key) {
			return fmt.Errorf("extension key %q is not namespaced with %q", key, ExtensionPrefix)
		}
	}
	return nil
}

// Keys returns the keys in sorted order so merge application is deterministic.
func (e ExtensionSet) Keys() []string {
	keys := make([]string, 0, len(e))
	for key := range e {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
