// Package app provides application services that orchestrate domain operations.
// These services sit between the CLI and the domain layer, coordinating use
// cases across the workshop aggregates.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/config"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/user"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/infrastructure/eventbus"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/infrastructure/persistence"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/jobs"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/notify"
)

// ---------------------------------------------------------------------------
// Application container: dependency injection root
// ---------------------------------------------------------------------------

// Container holds all application services and their dependencies.
// It acts as a composition root for dependency injection.
type Container struct {
	// Domain event bus
	EventBus domain.EventBus

	// Change tracker and transactional boundary
	DB *persistence.Context

	// Repositories
	Customers workshop.CustomerRepository
	Vehicles  workshop.VehicleRepository
	Orders    workshop.ServiceOrderRepository
	Items     workshop.OrderItemRepository
	Parts     workshop.PartRepository
	Users     user.Repository

	// Application services
	CustomerService  *CustomerService
	VehicleService   *VehicleService
	OrderService     *ServiceOrderService
	InventoryService *InventoryService
	UserService      *UserService

	Notifier  notify.Notifier
	Scheduler *jobs.Scheduler
}

// NewContainer creates a fully wired application container over db. The
// context must have been created with bus.
func NewContainer(db *persistence.Context, bus domain.EventBus, notifier notify.Notifier) *Container {
	c := &Container{
		EventBus:  bus,
		DB:        db,
		Customers: persistence.NewRepository[workshop.Customer](db),
		Vehicles:  persistence.NewRepository[workshop.Vehicle](db),
		Orders:    persistence.NewRepository[workshop.ServiceOrder](db),
		Items:     persistence.NewRepository[workshop.OrderItem](db),
		Parts:     persistence.NewRepository[workshop.Part](db),
		Users:     persistence.NewRepository[user.User](db),
		Notifier:  notifier,
		Scheduler: jobs.NewScheduler(bus),
	}
	c.CustomerService = NewCustomerService(c.Customers)
	c.VehicleService = NewVehicleService(c.Vehicles, c.Customers, c.Orders)
	c.OrderService = NewServiceOrderService(db, c.Orders, c.Items, c.Parts, c.Vehicles)
	c.InventoryService = NewInventoryService(c.Parts)
	c.UserService = NewUserService(c.Users)

	bus.SubscribeAll(auditEvent)
	bus.Subscribe(domain.EventStockLow, c.alertLowStock)
	return c
}

// Bootstrap opens the configured backend and wires a container over it.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Container, error) {
	backend, err := OpenBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	bus := eventbus.New()
	db := persistence.NewContext(backend, persistence.NewWorkshopCatalog(), bus)

	c := NewContainer(db, bus, NewNotifier(cfg.Notify))
	if cfg.Jobs.Enabled {
		if err := c.ScheduleJobs(cfg.Jobs); err != nil {
			backend.Close()
			return nil, err
		}
	}
	logger.InfoCF("app", "Container ready", map[string]interface{}{
		"backend": backend.Name(),
		"jobs":    len(c.Scheduler.Status()),
	})
	return c, nil
}

// OpenBackend opens the storage driver named in cfg.
func OpenBackend(ctx context.Context, cfg config.StorageConfig) (persistence.Backend, error) {
	switch cfg.Driver {
	case "sqlite":
		return persistence.OpenSQLite(ctx, cfg.DSN)
	case "memory", "":
		return persistence.NewMemoryBackend(cfg.DataDir)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// NewNotifier always logs and also posts to Slack when a webhook is set.
func NewNotifier(cfg config.NotifyConfig) notify.Notifier {
	out := notify.Multi{notify.LogNotifier{}}
	if cfg.SlackWebhookURL != "" {
		out = append(out, notify.NewSlackNotifier(cfg.SlackWebhookURL, cfg.SlackChannel))
	}
	return out
}

// ScheduleJobs registers the periodic alerts.
func (c *Container) ScheduleJobs(cfg config.JobsConfig) error {
	if err := c.Scheduler.Add(cfg.LowStockCron, jobs.NewLowStockAlert(c.Parts, c.Notifier)); err != nil {
		return err
	}
	return c.Scheduler.Add(cfg.StaleOrderCron, jobs.NewStaleOrderReminder(c.Orders, c.Notifier, cfg.StaleAfter))
}

// Close stops event dispatch and releases the backend.
func (c *Container) Close() error {
	if closer, ok := c.EventBus.(interface{ Close() }); ok {
		closer.Close()
	}
	return c.DB.Backend().Close()
}

func auditEvent(e domain.Event) {
	logger.DebugCF("events", string(e.EventType()), map[string]interface{}{
		"aggregate": e.AggregateID().String(),
	})
}

// alertLowStock reports a part that dropped to its minimum after an order
// consumed it.
func (c *Container) alertLowStock(e domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := notify.Message{
		Title:    "Part reached minimum stock",
		Severity: domain.SeverityWarning,
	}
	if p, err := c.Parts.FindNoTracking(ctx, workshop.NewPartsByID([]domain.EntityID{e.AggregateID()})); err == nil && len(p) == 1 {
		msg.Lines = []string{fmt.Sprintf("%s %s: %d in stock, minimum %d", p[0].SKU, p[0].Name, p[0].Stock, p[0].MinStock)}
		if p[0].Stock == 0 {
			msg.Severity = domain.SeverityCritical
		}
	} else {
		msg.Lines = []string{"part " + e.AggregateID().String()}
	}
	if err := c.Notifier.Notify(ctx, msg); err != nil {
		logger.WarnCF("app", "Low stock notification failed", map[string]interface{}{"error": err.Error()})
	}
}
