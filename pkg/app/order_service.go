package app

import (
	"context"
	"fmt"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
)

// ---------------------------------------------------------------------------
// Service order application service
// ---------------------------------------------------------------------------

// ServiceOrderService runs the repair lifecycle. Steps that touch more than
// one aggregate (an order line reserves stock, completion consumes it) run
// inside a single unit of work.
type ServiceOrderService struct {
	uow      domain.UnitOfWork
	orders   workshop.ServiceOrderRepository
	items    workshop.OrderItemRepository
	parts    workshop.PartRepository
	vehicles workshop.VehicleRepository
}

// NewServiceOrderService creates a new service order application service.
func NewServiceOrderService(
	uow domain.UnitOfWork,
	orders workshop.ServiceOrderRepository,
	items workshop.OrderItemRepository,
	parts workshop.PartRepository,
	vehicles workshop.VehicleRepository,
) *ServiceOrderService {
	return &ServiceOrderService{uow: uow, orders: orders, items: items, parts: parts, vehicles: vehicles}
}

// Open receives an active vehicle into the shop.
func (s *ServiceOrderService) Open(ctx context.Context, vehicleID domain.EntityID, description string) (*workshop.ServiceOrder, error) {
	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if !v.IsActive() {
		return nil, fmt.Errorf("%w: vehicle %s", domain.ErrInactive, vehicleID)
	}
	o, err := workshop.OpenOrder(v.CustomerID, v.ID, description)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	logger.InfoCF("orders", "Order opened", map[string]interface{}{
		"order_id": o.ID.String(),
		"plate":    v.Plate.String(),
	})
	return o, nil
}

// Details loads an order with its customer, vehicle, lines and parts.
func (s *ServiceOrderService) Details(ctx context.Context, id domain.EntityID) (*workshop.ServiceOrder, error) {
	o, err := s.orders.FindOne(ctx, workshop.NewOrderDetails(id))
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: order %s", domain.ErrNotFound, id)
	}
	return o, nil
}

// ListOpen returns read-only copies of every order still in the shop.
func (s *ServiceOrderService) ListOpen(ctx context.Context) ([]*workshop.ServiceOrder, error) {
	return s.orders.FindNoTracking(ctx, workshop.NewOpenOrders())
}

// ListByStatus returns read-only copies of the orders in any of statuses.
func (s *ServiceOrderService) ListByStatus(ctx context.Context, statuses ...workshop.OrderStatus) ([]*workshop.ServiceOrder, error) {
	return s.orders.FindNoTracking(ctx, workshop.NewOrdersByStatus(statuses...))
}

// AddPart adds qty units of a part to the order and reserves them.
func (s *ServiceOrderService) AddPart(ctx context.Context, orderID, partID domain.EntityID, qty int) (*workshop.OrderItem, error) {
	var item *workshop.OrderItem
	err := s.inUnit(ctx, func() error {
		o, err := s.Details(ctx, orderID)
		if err != nil {
			return err
		}
		part, err := s.parts.FindByID(ctx, partID)
		if err != nil {
			return err
		}
		if !part.IsActive() {
			return fmt.Errorf("%w: part %s", domain.ErrInactive, part.SKU)
		}
		if err := part.Reserve(qty); err != nil {
			return err
		}
		if item, err = o.AddItem(part, qty); err != nil {
			return err
		}
		if err := s.items.Create(ctx, item); err != nil {
			return err
		}
		if err := s.parts.Update(ctx, part); err != nil {
			return err
		}
		return s.orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// StartDiagnosis moves a received order to diagnosis.
func (s *ServiceOrderService) StartDiagnosis(ctx context.Context, id domain.EntityID) error {
	return s.Advance(ctx, id, workshop.StatusDiagnosing)
}

// Diagnose records the findings and labor cost on an order in diagnosis.
func (s *ServiceOrderService) Diagnose(ctx context.Context, id domain.EntityID, diagnosis string, labor domain.Money) error {
	o, err := s.Details(ctx, id)
	if err != nil {
		return err
	}
	if err := o.Diagnose(diagnosis, labor); err != nil {
		return err
	}
	return s.orders.Update(ctx, o)
}

// Quote sends the order for customer approval.
func (s *ServiceOrderService) Quote(ctx context.Context, id domain.EntityID) error {
	o, err := s.Details(ctx, id)
	if err != nil {
		return err
	}
	o.Recalculate()
	if err := o.Quote(); err != nil {
		return err
	}
	return s.orders.Update(ctx, o)
}

// Approve records the customer's approval and starts the work.
func (s *ServiceOrderService) Approve(ctx context.Context, id domain.EntityID) error {
	return s.Advance(ctx, id, workshop.StatusInProgress)
}

// Advance moves the order to next. Completion consumes the reserved parts;
// cancellation releases them.
func (s *ServiceOrderService) Advance(ctx context.Context, id domain.EntityID, next workshop.OrderStatus) error {
	return s.inUnit(ctx, func() error {
		o, err := s.Details(ctx, id)
		if err != nil {
			return err
		}
		prev := o.Status
		if err := o.Advance(next); err != nil {
			return err
		}
		switch {
		case next == workshop.StatusCompleted:
			err = s.settleStock(ctx, o, func(p *workshop.Part, qty int) error { return p.Consume(qty) })
		case next == workshop.StatusCancelled && prev != workshop.StatusCompleted:
			err = s.settleStock(ctx, o, func(p *workshop.Part, qty int) error { p.Release(qty); return nil })
		}
		if err != nil {
			return err
		}
		return s.orders.Update(ctx, o)
	})
}

// Cancel cancels an order and releases its reserved parts.
func (s *ServiceOrderService) Cancel(ctx context.Context, id domain.EntityID) error {
	return s.Advance(ctx, id, workshop.StatusCancelled)
}

func (s *ServiceOrderService) settleStock(ctx context.Context, o *workshop.ServiceOrder, apply func(*workshop.Part, int) error) error {
	for _, it := range o.Items {
		if it.Part == nil {
			return fmt.Errorf("%w: part %s", domain.ErrNotFound, it.PartID)
		}
		if err := apply(it.Part, it.Quantity); err != nil {
			return err
		}
		if err := s.parts.Update(ctx, it.Part); err != nil {
			return err
		}
	}
	return nil
}

// inUnit runs fn in a unit of work, committing on success.
func (s *ServiceOrderService) inUnit(ctx context.Context, fn func() error) error {
	if err := s.uow.Begin(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		s.rollback()
		return err
	}
	if err := s.uow.Commit(ctx); err != nil {
		s.rollback()
		return err
	}
	return nil
}

// rollback discards the unit. A failure is logged; the caller reports the
// error that caused the rollback.
func (s *ServiceOrderService) rollback() {
	if err := s.uow.Rollback(); err != nil {
		logger.WarnCF("orders", "Rollback failed", map[string]interface{}{"error": err.Error()})
	}
}
