package main

import "time"

// The pet store model set. Field tags drive the describe package: json names,
// requiredness, constraints, examples and vendor extensions.

type PetStatus string

func (PetStatus) Enum() []interface{} {
	return []interface{}{"available", "pending", "sold"}
}

type OrderStatus string

func (OrderStatus) Enum() []interface{} {
	return []interface{}{"placed", "approved", "delivered"}
}

type Category struct {
	ID   int64  `json:"id" example:"1"`
	Name string `json:"name" example:"Dogs"`
}

type Tag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Pet struct {
	ID        int64     `json:"id" example:"10"`
	Name      string    `json:"name" binding:"required" example:"doggie" minLength:"1"`
	Category  *Category `json:"category"`
	PhotoURLs []string  `json:"photoUrls" binding:"required"`
	Tags      []Tag     `json:"tags"`
	Status    PetStatus `json:"status" description:"pet status in the store"`
}

type Order struct {
	ID       int64       `json:"id" example:"10"`
	PetID    int64       `json:"petId" example:"198772"`
	Quantity int         `json:"quantity" example:"7" minimum:"1"`
	ShipDate time.Time   `json:"shipDate"`
	Status   OrderStatus `json:"status" description:"Order Status"`
	Complete bool        `json:"complete"`
}

type Address struct {
	Street string `json:"street" example:"437 Lytton"`
	City   string `json:"city" example:"Palo Alto"`
	State  string `json:"state" example:"CA"`
	Zip    string `json:"zip" example:"94301"`
}

type Customer struct {
	ID       int64     `json:"id" example:"100000"`
	Username string    `json:"username" example:"fehguy"`
	Address  []Address `json:"address"`
}

type User struct {
	ID         int64  `json:"id" example:"10"`
	Username   string `json:"username" example:"theUser"`
	FirstName  string `json:"firstName" example:"John"`
	LastName   string `json:"lastName" example:"James"`
	Email      string `json:"email" format:"email" example:"john@email.com"`
	Password   string `json:"password" extensions:"x-sensitive"`
	Phone      string `json:"phone" example:"12345"`
	UserStatus int    `json:"userStatus" description:"User Status" example:"1"`
}

type APIResponse struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}
