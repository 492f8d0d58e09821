package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/infrastructure/persistence"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/notify"
)

type captured struct{ msgs []notify.Message }

func (c *captured) Notify(_ context.Context, msg notify.Message) error {
	c.msgs = append(c.msgs, msg)
	return nil
}

func newStore(t *testing.T) *persistence.Context {
	t.Helper()
	b, err := persistence.NewMemoryBackend("")
	require.NoError(t, err)
	return persistence.NewContext(b, persistence.NewWorkshopCatalog(), nil)
}

func TestLowStockAlert(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	parts := persistence.NewRepository[workshop.Part](db)
	out := &captured{}
	job := NewLowStockAlert(parts, out)

	require.NoError(t, job.Run(ctx))
	assert.Empty(t, out.msgs, "nothing to report")

	empty, err := workshop.NewPart("PAD-1", "Brake pad", domain.Reais(120), 0, 2)
	require.NoError(t, err)
	fine, err := workshop.NewPart("OIL-1", "Oil", domain.Reais(45), 20, 2)
	require.NoError(t, err)
	require.NoError(t, parts.CreateMany(ctx, []*workshop.Part{empty, fine}))

	require.NoError(t, job.Run(ctx))
	require.Len(t, out.msgs, 1)
	msg := out.msgs[0]
	assert.Equal(t, "1 part(s) below minimum stock", msg.Title)
	assert.Equal(t, domain.SeverityCritical, msg.Severity)
	assert.Equal(t, []string{"PAD-1 Brake pad: 0 in stock, 0 reserved, minimum 2"}, msg.Lines)
}

func TestStaleOrderReminder(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	customers := persistence.NewRepository[workshop.Customer](db)
	vehicles := persistence.NewRepository[workshop.Vehicle](db)
	orders := persistence.NewRepository[workshop.ServiceOrder](db)

	c, err := workshop.NewCustomer("Ana Souza", "12345678901", "", "11 99999-0000")
	require.NoError(t, err)
	require.NoError(t, customers.Create(ctx, c))
	v, err := workshop.NewVehicle(c.ID, "ABC1D23", "Fiat", "Uno", 2018)
	require.NoError(t, err)
	require.NoError(t, vehicles.Create(ctx, v))

	o, err := workshop.OpenOrder(c.ID, v.ID, "noise")
	require.NoError(t, err)
	require.NoError(t, o.Advance(workshop.StatusDiagnosing))
	require.NoError(t, o.Diagnose("worn belt", domain.Reais(150)))
	require.NoError(t, o.Quote())
	require.NoError(t, orders.Create(ctx, o))

	out := &captured{}
	job := NewStaleOrderReminder(orders, out, 48*time.Hour)

	job.now = func() time.Time { return o.UpdatedAt.Add(time.Hour) }
	require.NoError(t, job.Run(ctx))
	assert.Empty(t, out.msgs, "quote is still fresh")

	job.now = func() time.Time { return o.UpdatedAt.Add(72 * time.Hour) }
	require.NoError(t, job.Run(ctx))
	require.Len(t, out.msgs, 1)
	assert.Equal(t, "1 quote(s) awaiting customer approval", out.msgs[0].Title)
	require.Len(t, out.msgs[0].Lines, 1)
	assert.Contains(t, out.msgs[0].Lines[0], "ABC1D23 Fiat Uno")
	assert.Contains(t, out.msgs[0].Lines[0], "Ana Souza (11 99999-0000)")
	assert.Contains(t, out.msgs[0].Lines[0], "R$ 150.00")
	assert.Contains(t, out.msgs[0].Lines[0], "waiting 72h0m0s")
}
