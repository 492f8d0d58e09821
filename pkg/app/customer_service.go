package app

import (
	"context"
	"fmt"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
)

// ---------------------------------------------------------------------------
// Customer application service
// ---------------------------------------------------------------------------

// CustomerService orchestrates customer registration and lookup.
type CustomerService struct {
	repo workshop.CustomerRepository
}

// NewCustomerService creates a new customer application service.
func NewCustomerService(repo workshop.CustomerRepository) *CustomerService {
	return &CustomerService{repo: repo}
}

// Register creates a customer. The document must not belong to anyone else.
func (s *CustomerService) Register(ctx context.Context, name, document, email, phone string) (*workshop.Customer, error) {
	doc, err := domain.NewDocument(document)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.FindOne(ctx, workshop.NewCustomerByDocument(doc))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", workshop.ErrDocumentTaken, doc)
	}

	c, err := workshop.NewCustomer(name, doc, email, phone)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get loads a customer with their vehicles and each vehicle's orders.
func (s *CustomerService) Get(ctx context.Context, id domain.EntityID) (*workshop.Customer, error) {
	c, err := s.repo.FindOne(ctx, workshop.NewCustomerWithVehicles(id))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, id)
	}
	return c, nil
}

// FindByDocument returns the customer holding document, or nil.
func (s *CustomerService) FindByDocument(ctx context.Context, document string) (*workshop.Customer, error) {
	doc, err := domain.NewDocument(document)
	if err != nil {
		return nil, err
	}
	return s.repo.FindOne(ctx, workshop.NewCustomerByDocument(doc))
}

// Search returns read-only customers whose name contains fragment.
func (s *CustomerService) Search(ctx context.Context, fragment string) ([]*workshop.Customer, error) {
	return s.repo.FindNoTracking(ctx, workshop.NewCustomerByName(fragment))
}

// List returns the list-view rows of active customers.
func (s *CustomerService) List(ctx context.Context) ([]workshop.CustomerSummary, error) {
	return domain.ListProjected[workshop.Customer, workshop.CustomerSummary](ctx, s.repo, workshop.NewCustomerSummaries())
}

// UpdateContact changes a customer's email and phone.
func (s *CustomerService) UpdateContact(ctx context.Context, id domain.EntityID, email, phone string) error {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.UpdateContact(email, phone); err != nil {
		return err
	}
	return s.repo.Update(ctx, c)
}

// Deactivate soft-deletes a customer.
func (s *CustomerService) Deactivate(ctx context.Context, id domain.EntityID) error {
	return s.repo.SoftDelete(ctx, id)
}
