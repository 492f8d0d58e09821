package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/notify"
)

// ---------------------------------------------------------------------------
// Low stock alert
// ---------------------------------------------------------------------------

// LowStockAlert reports active parts at or below their minimum stock.
type LowStockAlert struct {
	parts    domain.Reader[workshop.Part]
	notifier notify.Notifier
}

func NewLowStockAlert(parts domain.Reader[workshop.Part], notifier notify.Notifier) *LowStockAlert {
	return &LowStockAlert{parts: parts, notifier: notifier}
}

func (j *LowStockAlert) Name() string { return "low-stock-alert" }

func (j *LowStockAlert) Run(ctx context.Context) error {
	parts, err := j.parts.FindNoTracking(ctx, workshop.NewLowStockParts())
	if err != nil {
		return fmt.Errorf("load low stock parts: %w", err)
	}
	if len(parts) == 0 {
		return nil
	}

	severity := domain.SeverityWarning
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = fmt.Sprintf("%s %s: %d in stock, %d reserved, minimum %d", p.SKU, p.Name, p.Stock, p.Reserved, p.MinStock)
		if p.Stock == 0 {
			severity = domain.SeverityCritical
		}
	}
	return j.notifier.Notify(ctx, notify.Message{
		Title:    fmt.Sprintf("%d part(s) below minimum stock", len(parts)),
		Severity: severity,
		Lines:    lines,
	})
}

// ---------------------------------------------------------------------------
// Stale order reminder
// ---------------------------------------------------------------------------

// StaleOrderReminder reports quotes the customer has not answered within
// the configured window.
type StaleOrderReminder struct {
	orders   domain.Reader[workshop.ServiceOrder]
	notifier notify.Notifier
	after    time.Duration
	now      func() time.Time
}

func NewStaleOrderReminder(orders domain.Reader[workshop.ServiceOrder], notifier notify.Notifier, after time.Duration) *StaleOrderReminder {
	return &StaleOrderReminder{orders: orders, notifier: notifier, after: after, now: time.Now}
}

func (j *StaleOrderReminder) Name() string { return "stale-order-reminder" }

func (j *StaleOrderReminder) Run(ctx context.Context) error {
	now := j.now()
	orders, err := j.orders.FindNoTracking(ctx, workshop.NewStaleOrders(now.Add(-j.after)))
	if err != nil {
		return fmt.Errorf("load stale orders: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	lines := make([]string, len(orders))
	for i, o := range orders {
		vehicle, customer := "?", "?"
		if o.Vehicle != nil {
			vehicle = fmt.Sprintf("%s %s %s", o.Vehicle.Plate, o.Vehicle.Brand, o.Vehicle.Model)
		}
		if o.Customer != nil {
			customer = o.Customer.Name
			if o.Customer.Phone != "" {
				customer += " (" + o.Customer.Phone + ")"
			}
		}
		waiting := now.Sub(o.UpdatedAt.Time).Truncate(time.Hour)
		lines[i] = fmt.Sprintf("%s | %s | %s | quote %s waiting %s", o.ID, vehicle, customer, o.Total, waiting)
	}
	return j.notifier.Notify(ctx, notify.Message{
		Title:    fmt.Sprintf("%d quote(s) awaiting customer approval", len(orders)),
		Severity: domain.SeverityInfo,
		Lines:    lines,
	})
}
