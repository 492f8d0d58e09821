package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
)

// InventoryService manages the parts catalog and stock levels.
type InventoryService struct {
	parts workshop.PartRepository
}

func NewInventoryService(parts workshop.PartRepository) *InventoryService {
	return &InventoryService{parts: parts}
}

// AddPart registers a part. SKUs are unique.
func (s *InventoryService) AddPart(ctx context.Context, sku, name string, price domain.Money, stock, minStock int) (*workshop.Part, error) {
	existing, err := s.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: sku %s", workshop.ErrSKUTaken, existing.SKU)
	}
	p, err := workshop.NewPart(sku, name, price, stock, minStock)
	if err != nil {
		return nil, err
	}
	if err := s.parts.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// FindBySKU returns the part with sku, or nil.
func (s *InventoryService) FindBySKU(ctx context.Context, sku string) (*workshop.Part, error) {
	return s.parts.FindOne(ctx, workshop.NewPartBySKU(strings.ToUpper(strings.TrimSpace(sku))))
}

// Restock adds qty units to the part with sku.
func (s *InventoryService) Restock(ctx context.Context, sku string, qty int) (*workshop.Part, error) {
	p, err := s.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: sku %s", domain.ErrNotFound, sku)
	}
	if err := p.Restock(qty); err != nil {
		return nil, err
	}
	if err := s.parts.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// LowStock returns read-only copies of the parts at or below minimum.
func (s *InventoryService) LowStock(ctx context.Context) ([]*workshop.Part, error) {
	return s.parts.FindNoTracking(ctx, workshop.NewLowStockParts())
}

// StockReport returns one row per active part.
func (s *InventoryService) StockReport(ctx context.Context) ([]workshop.StockLevel, error) {
	return domain.ListProjected[workshop.Part, workshop.StockLevel](ctx, s.parts, workshop.NewPartStockView())
}

// Deactivate removes a part from the catalog without deleting its history.
func (s *InventoryService) Deactivate(ctx context.Context, id domain.EntityID) error {
	return s.parts.SoftDelete(ctx, id)
}
