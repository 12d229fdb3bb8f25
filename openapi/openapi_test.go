package openapi

import (
	"encoding/json"
	"testing"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/griffnb/apischema/descriptor"
)

func petDescriptor() *descriptor.TypeDescriptor {
	return descriptor.NewRecord("petstore/models", "Pet",
		descriptor.Field{Name: "id", Type: descriptor.NewPrimitive(descriptor.Integer), Required: true},
		descriptor.Field{Name: "name", Type: descriptor.NewPrimitive(descriptor.String), Required: true},
	)
}

func testConfig() Config {
	return Config{Info: Info{Title: "Pet Store", Version: "1.0.0"}}
}

func TestBuild_PathsAndDefinitions(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Add(Operation{
		Method: "post",
		Path:   "/pets",
		ID:     "createPet",
		Request: &RequestBody{
			Type: descriptor.NewObject(
				descriptor.Field{Name: "name", Type: descriptor.NewPrimitive(descriptor.String), Required: true},
			),
		},
		Responses: []Response{{Status: 201, Type: petDescriptor()}},
	}))

	swagger, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "2.0", swagger.Swagger)
	assert.Contains(t, swagger.Definitions, "Pet")
	assert.Contains(t, swagger.Definitions, "CreatePetRequest")

	item, ok := swagger.Paths.Paths["/pets"]
	require.True(t, ok)
	require.NotNil(t, item.Post)
	assert.Equal(t, "createPet", item.Post.ID)

	require.Len(t, item.Post.Parameters, 1)
	body := item.Post.Parameters[0]
	assert.Equal(t, "body", body.In)
	require.NotNil(t, body.Schema)
	assert.Equal(t, "#/definitions/CreatePetRequest", body.Schema.Ref.Ref.String())

	created, ok := item.Post.Responses.StatusCodeResponses[201]
	require.True(t, ok)
	assert.Equal(t, "Created", created.Description)
	assert.Equal(t, "#/definitions/Pet", created.Schema.Ref.Ref.String())
}

func TestBuild_PathParametersFromTemplate(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Add(Operation{
		Method:    "get",
		Path:      "/pets/{petId}",
		ID:        "getPet",
		Responses: []Response{{Status: 200, Type: petDescriptor()}},
	}))

	swagger, err := b.Build()
	require.NoError(t, err)

	operation := swagger.Paths.Paths["/pets/{petId}"].Get
	require.Len(t, operation.Parameters, 1)
	param := operation.Parameters[0]
	assert.Equal(t, "petId", param.Name)
	assert.Equal(t, "path", param.In)
	assert.True(t, param.Required)
	assert.Equal(t, "string", param.Type)
}

func TestBuild_ArrayResponseStaysInline(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Add(Operation{
		Method:    "get",
		Path:      "/pets",
		ID:        "listPets",
		Responses: []Response{{Status: 200, Type: petDescriptor(), Array: true}},
	}))

	swagger, err := b.Build()
	require.NoError(t, err)

	schema := swagger.Paths.Paths["/pets"].Get.Responses.StatusCodeResponses[200].Schema
	require.NotNil(t, schema)
	assert.Equal(t, []string{"array"}, []string(schema.Type))
	assert.Equal(t, "#/definitions/Pet", schema.Items.Schema.Ref.Ref.String())
}

func TestBuild_SchemaLessResponse(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Add(Operation{
		Method:    "delete",
		Path:      "/pets/{petId}",
		ID:        "deletePet",
		Responses: []Response{{Status: 204}},
	}))

	swagger, err := b.Build()
	require.NoError(t, err)

	response := swagger.Paths.Paths["/pets/{petId}"].Delete.Responses.StatusCodeResponses[204]
	assert.Equal(t, "No Content", response.Description)
	assert.Nil(t, response.Schema)
}

func TestAdd_DuplicateMethodOnPathRejected(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Add(Operation{Method: "get", Path: "/pets", ID: "listPets"}))
	assert.Error(t, b.Add(Operation{Method: "GET", Path: "/pets", ID: "listPetsAgain"}))
}

func TestAdd_DuplicateOperationIDRejected(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Add(Operation{Method: "get", Path: "/pets", ID: "pets"}))
	assert.Error(t, b.Add(Operation{Method: "post", Path: "/pets", ID: "pets"}))
}

func TestAdd_UnsupportedMethodRejected(t *testing.T) {
	b := NewBuilder(testConfig())
	assert.Error(t, b.Add(Operation{Method: "fetch", Path: "/pets"}))
}

func TestDeclareTag_ConflictingDescriptionsRejected(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.DeclareTag("pets", "Pet management"))
	require.NoError(t, b.DeclareTag("pets", "Pet management"))
	require.NoError(t, b.DeclareTag("pets", ""))
	assert.Error(t, b.DeclareTag("pets", "Something else"))
}

func TestBuild_TagsInDeclarationOrder(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.DeclareTag("pets", "Pet management"))
	require.NoError(t, b.Add(Operation{
		Method: "get", Path: "/pets", ID: "listPets", Tags: []string{"pets", "store"},
	}))

	swagger, err := b.Build()
	require.NoError(t, err)

	require.Len(t, swagger.Tags, 2)
	assert.Equal(t, "pets", swagger.Tags[0].Name)
	assert.Equal(t, "Pet management", swagger.Tags[0].Description)
	assert.Equal(t, "store", swagger.Tags[1].Name)
}

func TestBuild_OperationExtensions(t *testing.T) {
	b := NewBuilder(testConfig())
	require.NoError(t, b.Add(Operation{
		Method:     "get",
		Path:       "/pets",
		ID:         "listPets",
		Extensions: descriptor.ExtensionSet{"x-rate-limit": 100},
	}))

	swagger, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, 100, swagger.Paths.Paths["/pets"].Get.Extensions["x-rate-limit"])
}

func TestDeriveOperationID(t *testing.T) {
	assert.Equal(t, "getPetsPetId", deriveOperationID("get", "/pets/{petId}"))
	assert.Equal(t, "postPets", deriveOperationID("post", "/pets"))
}

func TestBuild_RoundTripsThroughExternalParser(t *testing.T) {
	b := NewBuilder(Config{
		Info: Info{
			Title:       "Pet Store",
			Version:     "1.0.0",
			Description: "A sample pet store",
			LicenseName: "MIT",
		},
		Host:     "api.example.com",
		BasePath: "/v1",
	})
	require.NoError(t, b.DeclareTag("pets", "Pet management"))
	require.NoError(t, b.Add(Operation{
		Method:    "get",
		Path:      "/pets/{petId}",
		ID:        "getPet",
		Tags:      []string{"pets"},
		Responses: []Response{{Status: 200, Type: petDescriptor()}, {Status: 404}},
	}))

	swagger, err := b.Build()
	require.NoError(t, err)

	raw, err := json.Marshal(swagger)
	require.NoError(t, err)

	var parsed openapi2.T
	require.NoError(t, json.Unmarshal(raw, &parsed))

	assert.Equal(t, "2.0", parsed.Swagger)
	assert.Equal(t, "Pet Store", parsed.Info.Title)
	assert.Equal(t, "api.example.com", parsed.Host)

	item, ok := parsed.Paths["/pets/{petId}"]
	require.True(t, ok)
	require.NotNil(t, item.Get)
	assert.Equal(t, "getPet", item.Get.OperationID)
	assert.Contains(t, parsed.Definitions, "Pet")
}
