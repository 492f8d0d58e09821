// Package workshop defines the repair-shop bounded context: customers,
// their vehicles, service orders and the parts inventory they consume.
// The aggregates live together because they navigate to each other.
package workshop

import (
	"net/mail"
	"strings"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

// ---------------------------------------------------------------------------
// Customer aggregate root
// ---------------------------------------------------------------------------

// Customer is a person or company that brings vehicles in for service.
type Customer struct {
	domain.AggregateRoot `json:"-"`

	ID       domain.EntityID `json:"id"`
	Name     string          `json:"name"`
	Document domain.Document `json:"document"`
	Email    string          `json:"email,omitempty"`
	Phone    string          `json:"phone,omitempty"`
	Active   bool            `json:"active"`

	CreatedAt domain.Timestamp `json:"created_at"`
	UpdatedAt domain.Timestamp `json:"updated_at"`

	// Navigations, loaded only when included.
	Vehicles []*Vehicle `json:"-"`
}

// NewCustomer creates an active customer.
func NewCustomer(name string, document domain.Document, email, phone string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}
	if !document.Valid() {
		return nil, domain.ErrInvalidDocument
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, domain.ErrInvalidEmail
		}
	}
	c := &Customer{
		ID:        domain.NewID(),
		Name:      name,
		Document:  document,
		Email:     email,
		Phone:     phone,
		Active:    true,
		CreatedAt: domain.Now(),
		UpdatedAt: domain.Now(),
	}
	c.RecordEvent(domain.NewEvent(domain.EventCustomerRegistered, c.ID, map[string]string{
		"name":     c.Name,
		"document": c.Document.String(),
	}))
	return c, nil
}

func (c *Customer) Identity() domain.EntityID { return c.ID }
func (c *Customer) IsActive() bool            { return c.Active }

// UpdateContact changes the customer's email and phone.
func (c *Customer) UpdateContact(email, phone string) error {
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return domain.ErrInvalidEmail
		}
	}
	c.Email = email
	c.Phone = phone
	c.UpdatedAt = domain.Now()
	c.RecordEvent(domain.NewEvent(domain.EventCustomerUpdated, c.ID, nil))
	return nil
}

// Deactivate soft-deletes the customer.
func (c *Customer) Deactivate() {
	c.Active = false
	c.UpdatedAt = domain.Now()
	c.RecordEvent(domain.NewEvent(domain.EventCustomerDeactivated, c.ID, nil))
}

// CustomerRepository is the persistence contract for customers.
type CustomerRepository = domain.Repository[Customer]
