package customer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/erp/customerdir/internal/domain/shared"
)

const (
	maxNameLength  = 200
	maxEmailLength = 200
	maxAge         = 150
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ID identifies a customer. It is assigned by the store and stable across refetches.
type ID int64

// String returns the decimal form used in resource paths
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a decimal customer id
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, shared.NewDomainError("INVALID_ID", fmt.Sprintf("invalid customer id %q", s))
	}
	return ID(n), nil
}

// Gender of a customer
type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

// ParseGender parses a gender case-insensitively
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToUpper(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", shared.NewDomainError("INVALID_GENDER", "Gender must be MALE or FEMALE")
	}
	return g, nil
}

// Valid reports whether g is a known gender
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Record is a customer as returned by the store
type Record struct {
	ID     ID     `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Age    int    `json:"age"`
	Gender Gender `json:"gender"`
}

// Candidate is the payload of a create or update request
type Candidate struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Age    int    `json:"age"`
	Gender Gender `json:"gender"`
}

// Validate applies the customer field rules to every field of c
func (c Candidate) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if err := validateEmail(c.Email); err != nil {
		return err
	}
	if err := validateAge(c.Age); err != nil {
		return err
	}
	return validateGender(c.Gender)
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name   *string
	Email  *string
	Age    *int
	Gender *Gender
}

// PatchFrom builds a Patch that sets every field of c
func PatchFrom(c Candidate) Patch {
	p := Patch{}
	if c.Name != "" {
		p.Name = &c.Name
	}
	if c.Email != "" {
		p.Email = &c.Email
	}
	if c.Age != 0 {
		p.Age = &c.Age
	}
	if c.Gender != "" {
		p.Gender = &c.Gender
	}
	return p
}

// Customer is the aggregate root of the customer directory
type Customer struct {
	ID        ID
	Name      string
	Email     string
	Age       int
	Gender    Gender
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCustomer creates a customer from a validated candidate.
// The ID is assigned when the customer is first saved.
func NewCustomer(c Candidate) (*Customer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	return &Customer{
		Name:      strings.TrimSpace(c.Name),
		Email:     strings.ToLower(strings.TrimSpace(c.Email)),
		Age:       c.Age,
		Gender:    c.Gender,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Apply sets the fields of p that differ from the current values.
// It returns the names of the fields that changed; nothing is modified
// when a changed field fails validation.
func (c *Customer) Apply(p Patch) ([]string, error) {
	next := *c
	var changed []string

	if p.Name != nil {
		if name := strings.TrimSpace(*p.Name); name != c.Name {
			if err := validateName(name); err != nil {
				return nil, err
			}
			next.Name = name
			changed = append(changed, "name")
		}
	}
	if p.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*p.Email)); email != c.Email {
			if err := validateEmail(email); err != nil {
				return nil, err
			}
			next.Email = email
			changed = append(changed, "email")
		}
	}
	if p.Age != nil && *p.Age != c.Age {
		if err := validateAge(*p.Age); err != nil {
			return nil, err
		}
		next.Age = *p.Age
		changed = append(changed, "age")
	}
	if p.Gender != nil && *p.Gender != c.Gender {
		if err := validateGender(*p.Gender); err != nil {
			return nil, err
		}
		next.Gender = *p.Gender
		changed = append(changed, "gender")
	}

	if len(changed) == 0 {
		return nil, nil
	}
	next.UpdatedAt = time.Now()
	*c = next
	return changed, nil
}

// Record returns the store representation of the customer
func (c *Customer) Record() Record {
	return Record{
		ID:     c.ID,
		Name:   c.Name,
		Email:  c.Email,
		Age:    c.Age,
		Gender: c.Gender,
	}
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Customer name cannot be empty")
	}
	if len(name) > maxNameLength {
		return shared.NewDomainError("INVALID_NAME", "Customer name cannot exceed 200 characters")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot be empty")
	}
	if len(email) > maxEmailLength {
		return shared.NewDomainError("INVALID_EMAIL", "Email cannot exceed 200 characters")
	}
	if !emailPattern.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Invalid email format")
	}
	return nil
}

func validateAge(age int) error {
	if age <= 0 || age > maxAge {
		return shared.NewDomainError("INVALID_AGE", "Age must be between 1 and 150")
	}
	return nil
}

func validateGender(g Gender) error {
	if !g.Valid() {
		return shared.NewDomainError("INVALID_GENDER", "Gender must be MALE or FEMALE")
	}
	return nil
}
