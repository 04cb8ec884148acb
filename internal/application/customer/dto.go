package customer

import (
	"time"

	"github.com/erp/customerdir/internal/domain/customer"
)

// RegisterRequest is the body of a create request
type RegisterRequest struct {
	Name   string `json:"name" binding:"required,min=1,max=200"`
	Email  string `json:"email" binding:"required,email,max=200"`
	Age    int    `json:"age" binding:"required,min=1,max=150"`
	Gender string `json:"gender" binding:"required,oneof=MALE FEMALE male female"`
}

// UpdateRequest is the body of an update request. Absent fields are left untouched.
type UpdateRequest struct {
	Name   *string `json:"name" binding:"omitempty,min=1,max=200"`
	Email  *string `json:"email" binding:"omitempty,email,max=200"`
	Age    *int    `json:"age" binding:"omitempty,min=1,max=150"`
	Gender *string `json:"gender" binding:"omitempty,oneof=MALE FEMALE male female"`
}

// Response is a customer in API responses
type Response struct {
	ID        customer.ID     `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Age       int             `json:"age"`
	Gender    customer.Gender `json:"gender"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ToResponse converts a domain customer to a Response
func ToResponse(c *customer.Customer) Response {
	return Response{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Age:       c.Age,
		Gender:    c.Gender,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToResponses converts a slice of domain customers
func ToResponses(customers []customer.Customer) []Response {
	out := make([]Response, len(customers))
	for i := range customers {
		out[i] = ToResponse(&customers[i])
	}
	return out
}

func (r RegisterRequest) candidate() (customer.Candidate, error) {
	gender, err := customer.ParseGender(r.Gender)
	if err != nil {
		return customer.Candidate{}, err
	}
	return customer.Candidate{Name: r.Name, Email: r.Email, Age: r.Age, Gender: gender}, nil
}

func (r UpdateRequest) patch() (customer.Patch, error) {
	p := customer.Patch{Name: r.Name, Email: r.Email, Age: r.Age}
	if r.Gender != nil {
		gender, err := customer.ParseGender(*r.Gender)
		if err != nil {
			return customer.Patch{}, err
		}
		p.Gender = &gender
	}
	return p, nil
}
