package workshop

import (
	"fmt"
	"strings"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

// ---------------------------------------------------------------------------
// Part aggregate root (inventory)
// ---------------------------------------------------------------------------

// Part is a stock-keeping unit. Reserved units are promised to approved
// orders but not yet consumed.
type Part struct {
	domain.AggregateRoot `json:"-"`

	ID          domain.EntityID `json:"id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       domain.Money    `json:"price"`
	Stock       int             `json:"stock"`
	Reserved    int             `json:"reserved"`
	MinStock    int             `json:"min_stock"`
	Active      bool            `json:"active"`

	CreatedAt domain.Timestamp `json:"created_at"`
	UpdatedAt domain.Timestamp `json:"updated_at"`
}

// NewPart creates an active part with an initial stock.
func NewPart(sku, name string, price domain.Money, stock, minStock int) (*Part, error) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return nil, ErrEmptySKU
	}
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	if stock < 0 || minStock < 0 || price < 0 {
		return nil, ErrInvalidQuantity
	}
	p := &Part{
		ID:        domain.NewID(),
		SKU:       sku,
		Name:      name,
		Price:     price,
		Stock:     stock,
		MinStock:  minStock,
		Active:    true,
		CreatedAt: domain.Now(),
		UpdatedAt: domain.Now(),
	}
	p.RecordEvent(domain.NewEvent(domain.EventPartCreated, p.ID, map[string]string{"sku": sku}))
	return p, nil
}

func (p *Part) Identity() domain.EntityID { return p.ID }
func (p *Part) IsActive() bool            { return p.Active }

func (p *Part) Deactivate() {
	p.Active = false
	p.UpdatedAt = domain.Now()
}

// Available is the stock not yet promised to an order.
func (p *Part) Available() int { return p.Stock - p.Reserved }

// IsLow reports whether stock is at or below the minimum.
func (p *Part) IsLow() bool { return p.Stock <= p.MinStock }

// Reserve promises qty units to an order.
func (p *Part) Reserve(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if p.Available() < qty {
		return fmt.Errorf("%w: %s has %d available, want %d", ErrInsufficientStock, p.SKU, p.Available(), qty)
	}
	p.Reserved += qty
	p.UpdatedAt = domain.Now()
	p.RecordEvent(domain.NewEvent(domain.EventStockReserved, p.ID, map[string]int{"quantity": qty}))
	return nil
}

// Release returns qty reserved units to the available pool.
func (p *Part) Release(qty int) {
	p.Reserved = max(p.Reserved-qty, 0)
	p.UpdatedAt = domain.Now()
	p.RecordEvent(domain.NewEvent(domain.EventStockReleased, p.ID, map[string]int{"quantity": qty}))
}

// Consume removes qty reserved units from stock once the work is done.
func (p *Part) Consume(qty int) error {
	if qty > p.Reserved {
		return fmt.Errorf("%w: consume %d of %d reserved", ErrInsufficientStock, qty, p.Reserved)
	}
	p.Reserved -= qty
	p.Stock -= qty
	p.UpdatedAt = domain.Now()
	if p.IsLow() {
		p.RecordEvent(domain.NewEvent(domain.EventStockLow, p.ID, map[string]int{
			"stock":     p.Stock,
			"min_stock": p.MinStock,
		}))
	}
	return nil
}

// Restock adds qty units to stock.
func (p *Part) Restock(qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	p.Stock += qty
	p.UpdatedAt = domain.Now()
	p.RecordEvent(domain.NewEvent(domain.EventRestocked, p.ID, map[string]int{"quantity": qty}))
	return nil
}

// PartRepository is the persistence contract for parts.
type PartRepository = domain.Repository[Part]
