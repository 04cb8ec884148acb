package models

import (
	"time"

	"github.com/erp/customerdir/internal/domain/customer"
)

// CustomerModel is the persistence model for the Customer aggregate
type CustomerModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Email     string          `gorm:"type:varchar(200);not null;uniqueIndex:customer_email_unique"`
	Age       int             `gorm:"not null"`
	Gender    customer.Gender `gorm:"type:varchar(10);not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "customer"
}

// ToDomain converts the persistence model to a domain Customer
func (m *CustomerModel) ToDomain() *customer.Customer {
	return &customer.Customer{
		ID:        customer.ID(m.ID),
		Name:      m.Name,
		Email:     m.Email,
		Age:       m.Age,
		Gender:    m.Gender,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain Customer
func (m *CustomerModel) FromDomain(c *customer.Customer) {
	m.ID = int64(c.ID)
	m.Name = c.Name
	m.Email = c.Email
	m.Age = c.Age
	m.Gender = c.Gender
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// CustomerModelFromDomain creates a CustomerModel from a domain Customer
func CustomerModelFromDomain(c *customer.Customer) *CustomerModel {
	m := &CustomerModel{}
	m.FromDomain(c)
	return m
}
