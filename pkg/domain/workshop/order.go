package workshop

import (
	"fmt"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

// OrderStatus is a step of the service order lifecycle.
type OrderStatus string

const (
	StatusReceived         OrderStatus = "received"
	StatusDiagnosing       OrderStatus = "diagnosing"
	StatusAwaitingApproval OrderStatus = "awaiting_approval"
	StatusInProgress       OrderStatus = "in_progress"
	StatusCompleted        OrderStatus = "completed"
	StatusDelivered        OrderStatus = "delivered"
	StatusCancelled        OrderStatus = "cancelled"
)

func (s OrderStatus) String() string { return string(s) }

// Final reports whether no further transition is possible.
func (s OrderStatus) Final() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// transitions lists the allowed next states for each status.
var transitions = map[OrderStatus][]OrderStatus{
	StatusReceived:         {StatusDiagnosing, StatusCancelled},
	StatusDiagnosing:       {StatusAwaitingApproval, StatusCancelled},
	StatusAwaitingApproval: {StatusInProgress, StatusCancelled},
	StatusInProgress:       {StatusCompleted, StatusCancelled},
	StatusCompleted:        {StatusDelivered},
}

// CanTransitionTo reports whether next directly follows s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OpenStatuses are the statuses of orders still in the shop.
func OpenStatuses() []OrderStatus {
	return []OrderStatus{StatusReceived, StatusDiagnosing, StatusAwaitingApproval, StatusInProgress, StatusCompleted}
}

// ---------------------------------------------------------------------------
// ServiceOrder aggregate root
// ---------------------------------------------------------------------------

// ServiceOrder tracks a repair job for one vehicle from reception to
// delivery.
type ServiceOrder struct {
	domain.AggregateRoot `json:"-"`

	ID          domain.EntityID `json:"id"`
	CustomerID  domain.EntityID `json:"customer_id"`
	VehicleID   domain.EntityID `json:"vehicle_id"`
	Status      OrderStatus     `json:"status"`
	Description string          `json:"description"`
	Diagnosis   string          `json:"diagnosis,omitempty"`
	LaborCost   domain.Money    `json:"labor_cost"`
	Total       domain.Money    `json:"total"`
	Active      bool            `json:"active"`

	OpenedAt    domain.Timestamp `json:"opened_at"`
	UpdatedAt   domain.Timestamp `json:"updated_at"`
	CompletedAt domain.Timestamp `json:"completed_at"`

	Customer *Customer    `json:"-"`
	Vehicle  *Vehicle     `json:"-"`
	Items    []*OrderItem `json:"-"`
}

// OpenOrder receives a vehicle into the shop.
func OpenOrder(customerID, vehicleID domain.EntityID, description string) (*ServiceOrder, error) {
	if customerID.IsZero() {
		return nil, ErrMissingCustomer
	}
	if vehicleID.IsZero() {
		return nil, ErrMissingVehicle
	}
	now := domain.Now()
	o := &ServiceOrder{
		ID:          domain.NewID(),
		CustomerID:  customerID,
		VehicleID:   vehicleID,
		Status:      StatusReceived,
		Description: description,
		Active:      true,
		OpenedAt:    now,
		UpdatedAt:   now,
	}
	o.RecordEvent(domain.NewEvent(domain.EventOrderOpened, o.ID, map[string]string{
		"vehicle_id": vehicleID.String(),
	}))
	return o, nil
}

func (o *ServiceOrder) Identity() domain.EntityID { return o.ID }
func (o *ServiceOrder) IsActive() bool            { return o.Active }

// Deactivate soft-deletes the order. Open orders are cancelled first.
func (o *ServiceOrder) Deactivate() {
	if !o.Status.Final() && o.Status != StatusCompleted {
		_ = o.Advance(StatusCancelled)
	}
	o.Active = false
	o.UpdatedAt = domain.Now()
}

// Advance moves the order to next if the lifecycle allows it.
func (o *ServiceOrder) Advance(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, next)
	}
	prev := o.Status
	o.Status = next
	o.UpdatedAt = domain.Now()
	if next == StatusCompleted {
		o.CompletedAt = o.UpdatedAt
	}

	o.RecordEvent(domain.NewEvent(domain.EventOrderStatusChanged, o.ID, map[string]string{
		"from": prev.String(),
		"to":   next.String(),
	}))
	switch next {
	case StatusCompleted:
		o.RecordEvent(domain.NewEvent(domain.EventOrderCompleted, o.ID, nil))
	case StatusCancelled:
		o.RecordEvent(domain.NewEvent(domain.EventOrderCancelled, o.ID, nil))
	}
	return nil
}

// Diagnose records the mechanic's findings and the labor quote.
func (o *ServiceOrder) Diagnose(diagnosis string, labor domain.Money) error {
	if o.Status != StatusDiagnosing {
		return fmt.Errorf("%w: diagnosis while %s", ErrInvalidTransition, o.Status)
	}
	o.Diagnosis = diagnosis
	o.LaborCost = labor
	o.Recalculate()
	return nil
}

// Quote sends the order to the customer for approval.
func (o *ServiceOrder) Quote() error {
	if err := o.Advance(StatusAwaitingApproval); err != nil {
		return err
	}
	o.RecordEvent(domain.NewEvent(domain.EventOrderQuoted, o.ID, map[string]string{
		"total": o.Total.String(),
	}))
	return nil
}

// AddItem appends a part line. Items can only change before approval.
func (o *ServiceOrder) AddItem(part *Part, qty int) (*OrderItem, error) {
	if o.Status != StatusReceived && o.Status != StatusDiagnosing {
		return nil, fmt.Errorf("%w: items are frozen while %s", ErrInvalidTransition, o.Status)
	}
	item, err := NewOrderItem(o.ID, part, qty)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, item)
	o.Recalculate()
	o.RecordEvent(domain.NewEvent(domain.EventOrderItemAdded, o.ID, map[string]string{
		"part_id":  part.ID.String(),
		"quantity": fmt.Sprint(qty),
	}))
	return item, nil
}

// Recalculate sets Total from the labor cost and the loaded items.
func (o *ServiceOrder) Recalculate() {
	total := o.LaborCost
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	o.Total = total
	o.UpdatedAt = domain.Now()
}

// ServiceOrderRepository is the persistence contract for service orders.
type ServiceOrderRepository = domain.Repository[ServiceOrder]

// ---------------------------------------------------------------------------
// OrderItem
// ---------------------------------------------------------------------------

// OrderItem is a part line on a service order. The unit price is frozen
// when the line is added.
type OrderItem struct {
	ID        domain.EntityID `json:"id"`
	OrderID   domain.EntityID `json:"order_id"`
	PartID    domain.EntityID `json:"part_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice domain.Money    `json:"unit_price"`

	Part *Part `json:"-"`
}

// NewOrderItem prices qty units of part for orderID.
func NewOrderItem(orderID domain.EntityID, part *Part, qty int) (*OrderItem, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	if part == nil {
		return nil, ErrMissingPart
	}
	return &OrderItem{
		ID:        domain.NewID(),
		OrderID:   orderID,
		PartID:    part.ID,
		Quantity:  qty,
		UnitPrice: part.Price,
		Part:      part,
	}, nil
}

func (i *OrderItem) Identity() domain.EntityID { return i.ID }

// Subtotal is quantity times unit price.
func (i *OrderItem) Subtotal() domain.Money { return i.UnitPrice.Times(i.Quantity) }

// OrderItemRepository is the persistence contract for order items.
type OrderItemRepository = domain.Repository[OrderItem]
