package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/griffnb/apischema/asyncapi"
	"github.com/griffnb/apischema/describe"
	"github.com/griffnb/apischema/descriptor"
	"github.com/griffnb/apischema/gen"
	"github.com/griffnb/apischema/openapi"
)

const (
	outputFlag      = "output"
	outputTypesFlag = "outputTypes"
	quietFlag       = "quiet"
)

var genFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    outputFlag,
		Aliases: []string{"o"},
		Value:   "./docs",
		Usage:   "Output directory for all the generated files (openapi.json, asyncapi.yaml, ...)",
	},
	&cli.StringFlag{
		Name:    outputTypesFlag,
		Aliases: []string{"ot"},
		Value:   "json,yaml",
		Usage:   "Output types of generated files like json,yaml",
	},
	&cli.BoolFlag{
		Name:    quietFlag,
		Aliases: []string{"q"},
		Usage:   "Make the logger quiet.",
	},
}

func genAction(ctx *cli.Context) error {
	outputTypes := strings.Split(ctx.String(outputTypesFlag), ",")
	if len(outputTypes) == 0 {
		return fmt.Errorf("no output types specified")
	}

	var out io.Writer = os.Stderr
	if ctx.Bool(quietFlag) {
		out = io.Discard
	}
	logger := zerolog.New(out).With().Timestamp().Logger()

	g := gen.New()
	g.SetLogger(logger)

	return g.Build(&gen.Config{
		OutputDir:   ctx.String(outputFlag),
		OutputTypes: outputTypes,
	}, []gen.Document{
		{Instance: "openapi", Build: buildOpenAPI},
		{Instance: "asyncapi", Build: buildAsyncAPI},
	})
}

func buildOpenAPI() (interface{}, error) {
	d := describe.New()

	pet, err := d.Describe(Pet{})
	if err != nil {
		return nil, err
	}
	order, err := d.Describe(Order{})
	if err != nil {
		return nil, err
	}
	user, err := d.Describe(User{})
	if err != nil {
		return nil, err
	}
	apiResponse, err := d.Describe(APIResponse{})
	if err != nil {
		return nil, err
	}
	inventory, err := d.Describe(map[string]int{})
	if err != nil {
		return nil, err
	}

	b := openapi.NewBuilder(openapi.Config{
		Info: openapi.Info{
			Title:        "Swagger Petstore",
			Version:      "1.0.17",
			Description:  "This is a sample Pet Store Server.",
			ContactEmail: "apiteam@swagger.io",
			LicenseName:  "Apache 2.0",
			LicenseURL:   "http://www.apache.org/licenses/LICENSE-2.0.html",
		},
		BasePath: "/api/v3",
	})

	if err := b.DeclareTag("pet", "Everything about your Pets"); err != nil {
		return nil, err
	}
	if err := b.DeclareTag("store", "Access to Petstore orders"); err != nil {
		return nil, err
	}
	if err := b.DeclareTag("user", "Operations about user"); err != nil {
		return nil, err
	}

	operations := []openapi.Operation{
		{
			Method: "put", Path: "/pet", ID: "updatePet",
			Summary:     "Update an existing pet",
			Description: "Update an existing pet by Id",
			Tags:        []string{"pet"},
			Request:     &openapi.RequestBody{Type: pet, Description: "Update an existent pet in the store"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: pet},
				{Status: 400, Description: "Invalid ID supplied"},
				{Status: 404, Description: "Pet not found"},
			},
		},
		{
			Method: "post", Path: "/pet", ID: "addPet",
			Summary: "Add a new pet to the store",
			Tags:    []string{"pet"},
			Request: &openapi.RequestBody{Type: pet, Description: "Create a new pet in the store"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: pet},
				{Status: 405, Description: "Invalid input"},
			},
		},
		{
			Method: "get", Path: "/pet/{petId}", ID: "getPetById",
			Summary:     "Find pet by ID",
			Description: "Returns a single pet",
			Tags:        []string{"pet"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: pet},
				{Status: 400, Description: "Invalid ID supplied"},
				{Status: 404, Description: "Pet not found"},
			},
		},
		{
			Method: "delete", Path: "/pet/{petId}", ID: "deletePet",
			Summary: "Deletes a pet",
			Tags:    []string{"pet"},
			Responses: []openapi.Response{
				{Status: 400, Description: "Invalid pet value"},
			},
		},
		{
			Method: "post", Path: "/pet/{petId}/uploadImage", ID: "uploadFile",
			Summary: "uploads an image",
			Tags:    []string{"pet"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: apiResponse},
			},
		},
		{
			Method: "get", Path: "/store/inventory", ID: "getInventory",
			Summary:     "Returns pet inventories by status",
			Description: "Returns a map of status codes to quantities",
			Tags:        []string{"store"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: inventory},
			},
		},
		{
			Method: "post", Path: "/store/order", ID: "placeOrder",
			Summary: "Place an order for a pet",
			Tags:    []string{"store"},
			Request: &openapi.RequestBody{Type: order},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: order},
				{Status: 405, Description: "Invalid input"},
			},
		},
		{
			Method: "get", Path: "/store/order/{orderId}", ID: "getOrderById",
			Summary: "Find purchase order by ID",
			Tags:    []string{"store"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: order},
				{Status: 400, Description: "Invalid ID supplied"},
				{Status: 404, Description: "Order not found"},
			},
		},
		{
			Method: "delete", Path: "/store/order/{orderId}", ID: "deleteOrder",
			Summary: "Delete purchase order by ID",
			Tags:    []string{"store"},
			Responses: []openapi.Response{
				{Status: 400, Description: "Invalid ID supplied"},
				{Status: 404, Description: "Order not found"},
			},
		},
		{
			Method: "post", Path: "/user", ID: "createUser",
			Summary:     "Create user",
			Description: "This can only be done by the logged in user.",
			Tags:        []string{"user"},
			Request:     &openapi.RequestBody{Type: user, Description: "Created user object"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: user},
			},
		},
		{
			Method: "post", Path: "/user/createWithList", ID: "createUsersWithListInput",
			Summary: "Creates list of users with given input array",
			Tags:    []string{"user"},
			Request: &openapi.RequestBody{Type: user, Array: true},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: user},
			},
		},
		{
			Method: "get", Path: "/user/{username}", ID: "getUserByName",
			Summary: "Get user by user name",
			Tags:    []string{"user"},
			Responses: []openapi.Response{
				{Status: 200, Description: "Successful operation", Type: user},
				{Status: 400, Description: "Invalid username supplied"},
				{Status: 404, Description: "User not found"},
			},
		},
		{
			Method: "delete", Path: "/user/{username}", ID: "deleteUser",
			Summary:     "Delete user",
			Description: "This can only be done by the logged in user.",
			Tags:        []string{"user"},
			Responses: []openapi.Response{
				{Status: 400, Description: "Invalid username supplied"},
				{Status: 404, Description: "User not found"},
			},
		},
	}
	for _, operation := range operations {
		if err := b.Add(operation); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

func buildAsyncAPI() (interface{}, error) {
	d := describe.New()

	order, err := d.Describe(Order{})
	if err != nil {
		return nil, err
	}
	pet, err := d.Describe(Pet{})
	if err != nil {
		return nil, err
	}

	b := asyncapi.NewBuilder("urn:example:petstore", asyncapi.Info{
		Title:       "Petstore Events",
		Version:     "1.0.17",
		Description: "Order and pet lifecycle events of the pet store.",
	})
	if err := b.AddServer("production", asyncapi.Server{
		URL:         "broker.petstore.example.com",
		Protocol:    "amqp",
		Description: "Production event broker",
	}); err != nil {
		return nil, err
	}

	if err := b.AddChannel(asyncapi.Channel{
		Name:    "store/order/placed",
		Servers: []string{"production"},
		Publish: &asyncapi.Message{
			OperationID: "orderPlaced",
			Summary:     "A new order was placed",
			Payload:     order,
		},
	}); err != nil {
		return nil, err
	}
	if err := b.AddChannel(asyncapi.Channel{
		Name:       "pet/{petId}/status",
		Parameters: []asyncapi.Parameter{{Name: "petId", Description: "ID of the pet"}},
		Servers:    []string{"production"},
		Subscribe: &asyncapi.Message{
			OperationID: "petStatusChanged",
			Summary:     "A pet's store status changed",
			Payload:     pet,
			Extensions:  descriptor.ExtensionSet{"x-retention-days": 7},
		},
	}); err != nil {
		return nil, err
	}

	return b.Build()
}

func main() {
	app := cli.NewApp()
	app.Usage = "Generate OpenAPI and AsyncAPI documents for the pet store model set."
	app.Flags = genFlags
	app.Action = genAction

	if err := app.Run(os.Args); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Fatal().Err(err).Msg("generation failed")
	}
}
