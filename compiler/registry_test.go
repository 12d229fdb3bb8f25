package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griffnb/apischema/descriptor"
)

func TestResolve_FirstSightReservesAndQueues(t *testing.T) {
	r := NewRegistry()
	user := descriptor.NewRecord("models", "User")

	ref, err := r.Resolve(user)
	require.NoError(t, err)
	assert.Equal(t, "#/definitions/User", ref.Ref.Ref.String())
	assert.Equal(t, 1, r.pending())

	entry, ok := r.next()
	require.True(t, ok)
	assert.Equal(t, "User", entry.name)

	_, ok = r.next()
	assert.False(t, ok)
}

func TestResolve_InProgressReturnsExistingToken(t *testing.T) {
	r := NewRegistry()
	node := descriptor.NewRecord("models", "Node")
	node.Fields = []descriptor.Field{{Name: "next", Type: node}}

	first, err := r.Resolve(node)
	require.NoError(t, err)

	// The entry is still in progress; re-resolving must hand back the same
	// token without queueing a second compilation. This is what breaks
	// recursion on self-referential types.
	_, ok := r.next()
	require.True(t, ok)

	second, err := r.Resolve(node)
	require.NoError(t, err)
	assert.Equal(t, first.Ref.Ref.String(), second.Ref.Ref.String())

	_, ok = r.next()
	assert.False(t, ok)
}

func TestResolve_AnonymousWithoutDerivedNameFails(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(descriptor.NewObject())
	assert.Error(t, err)
}

func TestResolve_CollisionDisambiguatedByScope(t *testing.T) {
	r := NewRegistry()
	storeItem := descriptor.NewRecord("github.com/acme/store/models", "Item",
		descriptor.Field{Name: "sku", Type: descriptor.NewPrimitive(descriptor.String)})
	billingItem := descriptor.NewRecord("github.com/acme/billing/items", "Item",
		descriptor.Field{Name: "amount", Type: descriptor.NewPrimitive(descriptor.Number)})

	first, err := r.Resolve(storeItem)
	require.NoError(t, err)
	second, err := r.Resolve(billingItem)
	require.NoError(t, err)

	assert.Equal(t, "#/definitions/Item", first.Ref.Ref.String())
	assert.Equal(t, "#/definitions/items.Item", second.Ref.Ref.String())
}

func TestResolve_CollisionDeterministicAcrossRuns(t *testing.T) {
	build := func() []string {
		r := NewRegistry()
		a := descriptor.NewRecord("store/models", "Item")
		b := descriptor.NewRecord("billing/models", "Item")
		refA, err := r.Resolve(a)
		require.NoError(t, err)
		refB, err := r.Resolve(b)
		require.NoError(t, err)
		return []string{refA.Ref.Ref.String(), refB.Ref.Ref.String()}
	}
	assert.Equal(t, build(), build())
}

func TestResolve_RedeclarationCollapses(t *testing.T) {
	r := NewRegistry()
	a := descriptor.NewRecord("models", "Item", descriptor.Field{Name: "id", Type: descriptor.NewPrimitive(descriptor.String)})
	b := descriptor.NewRecord("models", "Item", descriptor.Field{Name: "id", Type: descriptor.NewPrimitive(descriptor.String)})

	refA, err := r.Resolve(a)
	require.NoError(t, err)
	refB, err := r.Resolve(b)
	require.NoError(t, err)

	assert.Equal(t, refA.Ref.Ref.String(), refB.Ref.Ref.String())
	assert.Equal(t, 1, r.pending())
}

func TestResolve_ExhaustedCandidatesMergeIdenticalShapes(t *testing.T) {
	r := NewRegistry()
	named := descriptor.NewRecord("", "Payload",
		descriptor.Field{Name: "body", Type: descriptor.NewPrimitive(descriptor.String), Required: true})
	anonymous := descriptor.NewObject(
		descriptor.Field{Name: "body", Type: descriptor.NewPrimitive(descriptor.String), Required: true})

	refNamed, err := r.Resolve(named)
	require.NoError(t, err)
	refAnon, err := r.ResolveAs(anonymous, "Payload")
	require.NoError(t, err)

	// Same shape forced onto the same exhausted name merges instead of
	// conflicting; only one entry exists.
	assert.Equal(t, refNamed.Ref.Ref.String(), refAnon.Ref.Ref.String())
	assert.Equal(t, 1, r.pending())
}

func TestResolve_ExhaustedCandidatesIncompatibleShapesConflict(t *testing.T) {
	r := NewRegistry()
	named := descriptor.NewRecord("", "Payload",
		descriptor.Field{Name: "body", Type: descriptor.NewPrimitive(descriptor.String)})
	incompatible := descriptor.NewObject(
		descriptor.Field{Name: "count", Type: descriptor.NewPrimitive(descriptor.Integer)})

	_, err := r.Resolve(named)
	require.NoError(t, err)
	_, err = r.ResolveAs(incompatible, "Payload")
	require.Error(t, err)

	var conflict *NamingConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Payload", conflict.Name)
	assert.NotEqual(t, conflict.ExistingIdentity, conflict.ConflictingIdentity)
}

func TestSanitizeName_GenericBrackets(t *testing.T) {
	assert.Equal(t, "Page_User_", sanitizeName("Page[User]"))
}

func TestFullPathDefName(t *testing.T) {
	assert.Equal(t, "github_com_acme_shop_models", fullPathDefName("github.com/acme/shop/models"))
}

func TestDefinitions_OnlyCompletedEntries(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve(descriptor.NewRecord("models", "User"))
	require.NoError(t, err)
	assert.Empty(t, r.Definitions())

	entry, ok := r.next()
	require.True(t, ok)
	r.complete(entry.identity, RefSchema("User"))
	assert.Len(t, r.Definitions(), 1)
	assert.Equal(t, 0, r.pending())
}
