package app

import (
	"context"
	"fmt"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// Vehicle application service
// ---------------------------------------------------------------------------

// VehicleService orchestrates vehicle registration and service history.
type VehicleService struct {
	vehicles  workshop.VehicleRepository
	customers workshop.CustomerRepository
	orders    workshop.ServiceOrderRepository
}

// NewVehicleService creates a new vehicle application service.
func NewVehicleService(vehicles workshop.VehicleRepository, customers workshop.CustomerRepository, orders workshop.ServiceOrderRepository) *VehicleService {
	return &VehicleService{vehicles: vehicles, customers: customers, orders: orders}
}

// Register adds a vehicle to an active customer. Plates are unique.
func (s *VehicleService) Register(ctx context.Context, customerID domain.EntityID, plate, brand, model string, year int) (*workshop.Vehicle, error) {
	owner, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !owner.IsActive() {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrInactive, customerID)
	}
	p, err := domain.NewPlate(plate)
	if err != nil {
		return nil, err
	}
	taken, err := s.vehicles.FindOne(ctx, workshop.NewVehicleByPlate(p))
	if err != nil {
		return nil, err
	}
	if taken != nil {
		return nil, fmt.Errorf("%w: %s", workshop.ErrPlateTaken, p)
	}

	v, err := workshop.NewVehicle(customerID, p, brand, model, year)
	if err != nil {
		return nil, err
	}
	if err := s.vehicles.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// FindByPlate returns the vehicle with its owner, or nil.
func (s *VehicleService) FindByPlate(ctx context.Context, plate string) (*workshop.Vehicle, error) {
	p, err := domain.NewPlate(plate)
	if err != nil {
		return nil, err
	}
	return s.vehicles.FindOne(ctx, workshop.NewVehicleByPlate(p))
}

// ListByCustomer returns a customer's active vehicles.
func (s *VehicleService) ListByCustomer(ctx context.Context, customerID domain.EntityID) ([]*workshop.Vehicle, error) {
	return s.vehicles.FindNoTracking(ctx, workshop.NewVehiclesOfCustomer(customerID))
}

// History returns a vehicle's service orders, newest first.
func (s *VehicleService) History(ctx context.Context, vehicleID domain.EntityID) ([]*workshop.ServiceOrder, error) {
	q, err := query.Evaluate(s.orders.Source(query.NoTracking), workshop.NewOrdersOfVehicle(vehicleID))
	if err != nil {
		return nil, err
	}
	return q.OrderByDescending(query.Selector[workshop.ServiceOrder](func(o query.Expr) query.Expr {
		return query.Field(o, "OpenedAt")
	})).ToSlice(ctx)
}

// Deactivate soft-deletes a vehicle.
func (s *VehicleService) Deactivate(ctx context.Context, id domain.EntityID) error {
	return s.vehicles.SoftDelete(ctx, id)
}
