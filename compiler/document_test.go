package compiler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griffnb/apischema/descriptor"
)

func createUserBindings() []Binding {
	request := descriptor.NewObject(
		descriptor.Field{Name: "name", Type: descriptor.NewPrimitive(descriptor.String), Required: true},
		descriptor.Field{Name: "age", Type: descriptor.NewPrimitive(descriptor.Integer)},
	)
	response := descriptor.NewObject(
		descriptor.Field{Name: "id", Type: descriptor.NewPrimitive(descriptor.String)},
		descriptor.Field{Name: "name", Type: descriptor.NewPrimitive(descriptor.String)},
	)
	return []Binding{{
		Operation: "createUser",
		Request:   request,
		Responses: []ResponseBinding{{Outcome: "200", Type: response}},
	}}
}

func TestCompile_EndToEndCreateUser(t *testing.T) {
	doc, err := New().Compile(createUserBindings())
	require.NoError(t, err)

	require.Len(t, doc.Definitions, 2)
	request, ok := doc.Definitions["CreateUserRequest"]
	require.True(t, ok)
	assert.Equal(t, []string{"name"}, request.Required)

	response, ok := doc.Definitions["CreateUserResponse"]
	require.True(t, ok)
	assert.Nil(t, response.Required)

	require.Len(t, doc.Operations, 1)
	op := doc.Operations[0]
	assert.Equal(t, "#/definitions/CreateUserRequest", op.Request.Ref.Ref.String())
	require.Len(t, op.Responses, 1)
	assert.Equal(t, "200", op.Responses[0].Outcome)
	assert.Equal(t, "#/definitions/CreateUserResponse", op.Responses[0].Schema.Ref.Ref.String())
}

func TestCompile_Deterministic(t *testing.T) {
	compile := func() []byte {
		doc, err := New().Compile(createUserBindings())
		require.NoError(t, err)
		raw, err := json.Marshal(doc)
		require.NoError(t, err)
		return raw
	}
	assert.Equal(t, compile(), compile())
}

func TestCompile_SelfReferentialRecordTerminates(t *testing.T) {
	node := descriptor.NewRecord("models", "Node")
	node.Fields = []descriptor.Field{
		{Name: "value", Type: descriptor.NewPrimitive(descriptor.String)},
		{Name: "next", Type: node},
	}

	doc, err := New().Compile([]Binding{{
		Operation: "getNode",
		Responses: []ResponseBinding{{Outcome: "200", Type: node}},
	}})
	require.NoError(t, err)

	definition, ok := doc.Definitions["Node"]
	require.True(t, ok)
	next := definition.Properties["next"]
	assert.Equal(t, "#/definitions/Node", next.Ref.Ref.String())
}

func TestCompile_MutualRecursionTerminates(t *testing.T) {
	a := descriptor.NewRecord("models", "A")
	b := descriptor.NewRecord("models", "B")
	a.Fields = []descriptor.Field{{Name: "b", Type: b}}
	b.Fields = []descriptor.Field{{Name: "a", Type: a}}

	doc, err := New().Compile([]Binding{{
		Operation: "getA",
		Responses: []ResponseBinding{{Outcome: "200", Type: a}},
	}})
	require.NoError(t, err)

	defA, ok := doc.Definitions["A"]
	require.True(t, ok)
	defB, ok := doc.Definitions["B"]
	require.True(t, ok)
	refB := defA.Properties["b"].Ref.Ref
	refA := defB.Properties["a"].Ref.Ref
	assert.Equal(t, "#/definitions/B", refB.String())
	assert.Equal(t, "#/definitions/A", refA.String())
}

func TestCompile_DuplicateOperationRejected(t *testing.T) {
	bindings := append(createUserBindings(), createUserBindings()...)
	_, err := New().Compile(bindings)
	assert.Error(t, err)
}

func TestCompile_CompilerNotReusable(t *testing.T) {
	c := New()
	_, err := c.Compile(createUserBindings())
	require.NoError(t, err)
	_, err = c.Compile(createUserBindings())
	assert.Error(t, err)
}

func TestCompile_NamedTypesKeepDeclaredNames(t *testing.T) {
	user := descriptor.NewRecord("models", "User",
		descriptor.Field{Name: "id", Type: descriptor.NewPrimitive(descriptor.UUID), Required: true})

	doc, err := New().Compile([]Binding{{
		Operation: "getUser",
		Responses: []ResponseBinding{{Outcome: "200", Type: user}},
	}})
	require.NoError(t, err)
	assert.Contains(t, doc.Definitions, "User")
	assert.NotContains(t, doc.Definitions, "GetUserResponse")
}

func TestCompile_MultipleAnonymousResponsesSuffixedByOutcome(t *testing.T) {
	ok200 := descriptor.NewObject(descriptor.Field{Name: "id", Type: descriptor.NewPrimitive(descriptor.String)})
	fail422 := descriptor.NewObject(descriptor.Field{Name: "error", Type: descriptor.NewPrimitive(descriptor.String)})

	doc, err := New().Compile([]Binding{{
		Operation: "createUser",
		Responses: []ResponseBinding{
			{Outcome: "200", Type: ok200},
			{Outcome: "422", Type: fail422},
		},
	}})
	require.NoError(t, err)
	assert.Contains(t, doc.Definitions, "CreateUserResponse200")
	assert.Contains(t, doc.Definitions, "CreateUserResponse422")
}

func TestCompile_InlineRootsForNonRecordTypes(t *testing.T) {
	users := descriptor.NewArray(descriptor.NewRecord("models", "User",
		descriptor.Field{Name: "id", Type: descriptor.NewPrimitive(descriptor.String)}))

	doc, err := New().Compile([]Binding{{
		Operation: "listUsers",
		Responses: []ResponseBinding{{Outcome: "200", Type: users}},
	}})
	require.NoError(t, err)

	schema := doc.Operations[0].Responses[0].Schema
	assert.Equal(t, []string{"array"}, []string(schema.Type))
	assert.Equal(t, "#/definitions/User", schema.Items.Schema.Ref.Ref.String())
	assert.Contains(t, doc.Definitions, "User")
}

func TestCompile_WarningsSurfaced(t *testing.T) {
	quota := descriptor.NewRecord("models", "Quota")
	field := descriptor.NewPrimitive(descriptor.Integer)
	field.Constraints = &descriptor.Constraints{Other: map[string]interface{}{"divisibleByThree": true}}
	quota.Fields = []descriptor.Field{{Name: "limit", Type: field}}

	c := New()
	_, err := c.Compile([]Binding{{
		Operation: "getQuota",
		Responses: []ResponseBinding{{Outcome: "200", Type: quota}},
	}})
	require.NoError(t, err)

	warnings := c.Warnings()
	require.Len(t, warnings, 1)
	assert.Equal(t, "divisibleByThree", warnings[0].Constraint)
	assert.Equal(t, "Quota.limit", warnings[0].Target)
}

func TestDerivedName(t *testing.T) {
	assert.Equal(t, "CreateUser", derivedName("createUser"))
	assert.Equal(t, "CreateUser", derivedName("create_user"))
	assert.Equal(t, "CreateUser", derivedName("create-user"))
	assert.Equal(t, "GetHTTPStatus", derivedName("getHTTPStatus"))
}
