package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/app"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/user"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo customers, vehicles, parts and orders",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, c, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer c.Close()
		return seed(ctx, c)
	},
}

type seedCustomer struct {
	name, document, email, phone string
	plate, brand, model          string
	year                         int
}

var (
	seedCustomers = []seedCustomer{
		{"Ana Souza", "123.456.789-01", "ana@example.com", "11 99999-0001", "ABC1D23", "Fiat", "Uno", 2018},
		{"Bruno Lima", "987.654.321-00", "bruno@example.com", "11 99999-0002", "BRA2E19", "VW", "Gol", 2015},
		{"Transportes Rápidos Ltda", "12.345.678/0001-90", "frota@rapidos.com.br", "11 3333-4444", "RIO4F56", "Mercedes", "Sprinter", 2021},
	}
	seedParts = []struct {
		sku, name       string
		price           float64
		stock, minStock int
	}{
		{"PAD-FR", "Front brake pads", 180, 6, 2},
		{"OIL-5W30", "Engine oil 5W30 (1L)", 45, 24, 8},
		{"FLT-OIL", "Oil filter", 35, 2, 4},
		{"BLT-TIM", "Timing belt", 260, 1, 1},
	}
)

// seed is idempotent: records that already exist are skipped.
func seed(ctx context.Context, c *app.Container) error {
	if _, err := c.UserService.Create(ctx, "Administrator", "admin@oficina.local", user.RoleAdmin, "!seed"); err != nil && !errors.Is(err, user.ErrEmailTaken) {
		return err
	}

	parts := make(map[string]*workshop.Part, len(seedParts))
	for _, sp := range seedParts {
		p, err := c.InventoryService.AddPart(ctx, sp.sku, sp.name, domain.Reais(sp.price), sp.stock, sp.minStock)
		if errors.Is(err, workshop.ErrSKUTaken) {
			p, err = c.InventoryService.FindBySKU(ctx, sp.sku)
		}
		if err != nil {
			return fmt.Errorf("part %s: %w", sp.sku, err)
		}
		parts[sp.sku] = p
	}

	var created int
	for i, sc := range seedCustomers {
		cust, err := c.CustomerService.Register(ctx, sc.name, sc.document, sc.email, sc.phone)
		if errors.Is(err, workshop.ErrDocumentTaken) {
			continue
		}
		if err != nil {
			return fmt.Errorf("customer %s: %w", sc.name, err)
		}
		v, err := c.VehicleService.Register(ctx, cust.ID, sc.plate, sc.brand, sc.model, sc.year)
		if err != nil {
			return fmt.Errorf("vehicle %s: %w", sc.plate, err)
		}
		if err := seedOrder(ctx, c, v, i, parts); err != nil {
			return fmt.Errorf("order for %s: %w", sc.plate, err)
		}
		created++
	}

	logger.InfoCF("seed", "Seed finished", map[string]interface{}{
		"customers": created,
		"parts":     len(parts),
	})
	return nil
}

// seedOrder leaves each demo order at a different lifecycle step.
func seedOrder(ctx context.Context, c *app.Container, v *workshop.Vehicle, step int, parts map[string]*workshop.Part) error {
	svc := c.OrderService
	o, err := svc.Open(ctx, v.ID, "Periodic maintenance")
	if err != nil {
		return err
	}
	if step == 0 {
		return nil
	}
	if err := svc.StartDiagnosis(ctx, o.ID); err != nil {
		return err
	}
	if _, err := svc.AddPart(ctx, o.ID, parts["OIL-5W30"].ID, 4); err != nil {
		return err
	}
	if _, err := svc.AddPart(ctx, o.ID, parts["FLT-OIL"].ID, 1); err != nil {
		return err
	}
	if err := svc.Diagnose(ctx, o.ID, "Oil and filter change due", domain.Reais(120)); err != nil {
		return err
	}
	if err := svc.Quote(ctx, o.ID); err != nil {
		return err
	}
	if step == 1 {
		return nil
	}
	if err := svc.Approve(ctx, o.ID); err != nil {
		return err
	}
	return svc.Advance(ctx, o.ID, workshop.StatusCompleted)
}
