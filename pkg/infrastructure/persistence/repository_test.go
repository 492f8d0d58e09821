package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/user"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/infrastructure/eventbus"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// backends runs fn once per storage backend. The SQLite run is skipped when
// the driver is unavailable (CGO disabled).
func backends(t *testing.T, fn func(t *testing.T, b Backend)) {
	t.Run("memory", func(t *testing.T) {
		b, err := NewMemoryBackend("")
		require.NoError(t, err)
		fn(t, b)
	})
	t.Run("sqlite", func(t *testing.T) {
		b, err := OpenSQLite(context.Background(), ":memory:")
		if err != nil {
			t.Skipf("sqlite unavailable: %v", err)
		}
		t.Cleanup(func() { b.Close() })
		fn(t, b)
	})
}

type fixture struct {
	db        *Context
	bus       *eventbus.InProcessEventBus
	customers *Repository[workshop.Customer]
	vehicles  *Repository[workshop.Vehicle]
	orders    *Repository[workshop.ServiceOrder]
	items     *Repository[workshop.OrderItem]
	parts     *Repository[workshop.Part]
}

func newFixture(b Backend) *fixture {
	bus := eventbus.New()
	db := NewContext(b, NewWorkshopCatalog(), bus)
	return &fixture{
		db:        db,
		bus:       bus,
		customers: NewRepository[workshop.Customer](db),
		vehicles:  NewRepository[workshop.Vehicle](db),
		orders:    NewRepository[workshop.ServiceOrder](db),
		items:     NewRepository[workshop.OrderItem](db),
		parts:     NewRepository[workshop.Part](db),
	}
}

// reopen returns a fixture with a fresh context over the same backend.
func (f *fixture) reopen() *fixture { return newFixture(f.db.Backend()) }

func (f *fixture) customer(t *testing.T, name, doc string) *workshop.Customer {
	t.Helper()
	c, err := workshop.NewCustomer(name, domain.Document(doc), "", "")
	require.NoError(t, err)
	require.NoError(t, f.customers.Create(context.Background(), c))
	return c
}

func (f *fixture) vehicle(t *testing.T, owner *workshop.Customer, plate string) *workshop.Vehicle {
	t.Helper()
	p, err := domain.NewPlate(plate)
	require.NoError(t, err)
	v, err := workshop.NewVehicle(owner.ID, p, "Fiat", "Uno", 2018)
	require.NoError(t, err)
	require.NoError(t, f.vehicles.Create(context.Background(), v))
	return v
}

func (f *fixture) order(t *testing.T, v *workshop.Vehicle, desc string) *workshop.ServiceOrder {
	t.Helper()
	o, err := workshop.OpenOrder(v.CustomerID, v.ID, desc)
	require.NoError(t, err)
	require.NoError(t, f.orders.Create(context.Background(), o))
	return o
}

func TestIdentityMap(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		c := f.customer(t, "Ana Souza", "12345678901")

		first, err := f.customers.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Same(t, c, first, "created entities stay tracked")

		fresh := f.reopen()
		one, err := fresh.customers.FindByID(ctx, c.ID)
		require.NoError(t, err)
		two, err := fresh.customers.FindOne(ctx, workshop.NewCustomerByDocument("12345678901"))
		require.NoError(t, err)
		assert.Same(t, one, two)
		assert.NotSame(t, c, one, "contexts do not share instances")

		copies, err := fresh.customers.FindNoTracking(ctx, workshop.NewActiveCustomers())
		require.NoError(t, err)
		require.Len(t, copies, 1)
		assert.NotSame(t, one, copies[0])
		assert.False(t, fresh.db.IsTracked(&workshop.Customer{ID: domain.NewID()}))
	})
}

func TestSaveChangesDetectsModifications(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		c := f.customer(t, "Ana Souza", "12345678901")

		n, err := f.db.SaveChanges(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "nothing changed since the insert")

		c.Name = "Ana S. Lima"
		n, err = f.db.SaveChanges(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		loaded, err := f.reopen().customers.FindByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana S. Lima", loaded.Name)
	})
}

func TestNoTrackingReadsAreNotSaved(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		f.customer(t, "Ana Souza", "12345678901")

		g := f.reopen()
		copies, err := g.customers.FindNoTracking(ctx, workshop.NewCustomerByName("Ana"))
		require.NoError(t, err)
		require.Len(t, copies, 1)
		copies[0].Name = "changed"

		n, err := g.db.SaveChanges(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestIncludesLoadNestedNavigations(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		ana := f.customer(t, "Ana Souza", "12345678901")
		other := f.customer(t, "Bruno Reis", "98765432100")
		uno := f.vehicle(t, ana, "ABC1D23")
		gol := f.vehicle(t, ana, "XYZ9K87")
		f.vehicle(t, other, "QWE4R56")
		f.order(t, uno, "oil change")
		f.order(t, uno, "brakes")

		g := f.reopen()
		c, err := g.customers.FindOne(ctx, workshop.NewCustomerWithVehicles(ana.ID))
		require.NoError(t, err)
		require.NotNil(t, c)
		require.Len(t, c.Vehicles, 2)
		assert.Equal(t, uno.ID, c.Vehicles[0].ID)
		assert.Equal(t, gol.ID, c.Vehicles[1].ID)
		require.Len(t, c.Vehicles[0].ServiceOrders, 2)
		assert.Equal(t, "oil change", c.Vehicles[0].ServiceOrders[0].Description)
		assert.NotNil(t, c.Vehicles[1].ServiceOrders)
		assert.Empty(t, c.Vehicles[1].ServiceOrders)

		v, err := g.vehicles.FindOne(ctx, workshop.NewVehicleByPlate("ABC1D23"))
		require.NoError(t, err)
		require.NotNil(t, v.Customer)
		assert.Same(t, c, v.Customer, "navigations resolve through the identity map")
	})
}

func TestOrderDetailsLoadsItemsAndParts(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		ana := f.customer(t, "Ana Souza", "12345678901")
		uno := f.vehicle(t, ana, "ABC1D23")
		o := f.order(t, uno, "revision")

		oil, err := workshop.NewPart("oil-5w30", "Oil 5W30", domain.Reais(45), 10, 2)
		require.NoError(t, err)
		filter, err := workshop.NewPart("flt-01", "Oil filter", domain.Reais(30), 4, 1)
		require.NoError(t, err)
		require.NoError(t, f.parts.CreateMany(ctx, []*workshop.Part{oil, filter}))

		i1, err := o.AddItem(oil, 4)
		require.NoError(t, err)
		i2, err := o.AddItem(filter, 1)
		require.NoError(t, err)
		require.NoError(t, f.items.CreateMany(ctx, []*workshop.OrderItem{i1, i2}))
		require.NoError(t, f.orders.Update(ctx, o))

		got, err := f.reopen().orders.FindOne(ctx, workshop.NewOrderDetails(o.ID))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, ana.Name, got.Customer.Name)
		assert.Equal(t, uno.Plate, got.Vehicle.Plate)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "OIL-5W30", got.Items[0].Part.SKU)
		assert.Equal(t, "FLT-01", got.Items[1].Part.SKU)
		assert.Equal(t, domain.Reais(210), got.Total)
	})
}

func TestFindOneRejectsMultipleMatches(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		f := newFixture(b)
		f.customer(t, "Ana Souza", "12345678901")
		f.customer(t, "Caio Ana", "11222333000144")

		_, err := f.customers.FindOne(context.Background(), workshop.NewCustomerByName("Ana"))
		assert.ErrorIs(t, err, query.ErrMultipleResults)

		none, err := f.customers.FindOne(context.Background(), workshop.NewCustomerByName("Zé"))
		require.NoError(t, err)
		assert.Nil(t, none)
	})
}

func TestFilterOnNavigationIsRejected(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		f := newFixture(b)
		f.vehicle(t, f.customer(t, "Ana Souza", "12345678901"), "ABC1D23")

		byOwner := query.Matching[workshop.Vehicle](func(v query.Expr) query.Expr {
			return query.Contains(query.Field(query.Field(v, "Customer"), "Name"), query.Const("Ana"))
		})
		_, err := f.vehicles.Find(context.Background(), byOwner)
		assert.ErrorIs(t, err, ErrNavigationFilter)

		withoutVehicles := query.Matching[workshop.Customer](func(c query.Expr) query.Expr {
			return query.Eq(query.Len(query.Field(c, "Vehicles")), query.Const(0))
		})
		_, err = f.customers.FindNoTracking(context.Background(), withoutVehicles)
		assert.ErrorIs(t, err, ErrNavigationFilter)
	})
}

func TestSoftDeleteAndDelete(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		ana := f.customer(t, "Ana Souza", "12345678901")
		bia := f.customer(t, "Bia Lima", "98765432100")

		require.NoError(t, f.customers.SoftDelete(ctx, ana.ID))
		active, err := f.reopen().customers.Count(ctx, workshop.NewActiveCustomers())
		require.NoError(t, err)
		assert.Equal(t, 1, active)

		require.NoError(t, f.customers.Delete(ctx, bia.ID))
		_, err = f.reopen().customers.FindByID(ctx, bia.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.ErrorIs(t, f.customers.Delete(ctx, bia.ID), domain.ErrNotFound)

		uno := f.vehicle(t, ana, "ABC1D23")
		o := f.order(t, uno, "noise")
		part, err := workshop.NewPart("BLT-1", "Belt", domain.Reais(80), 3, 1)
		require.NoError(t, err)
		require.NoError(t, f.parts.Create(ctx, part))
		item, err := o.AddItem(part, 1)
		require.NoError(t, err)
		require.NoError(t, f.items.Create(ctx, item))
		assert.ErrorIs(t, f.items.SoftDelete(ctx, item.ID), ErrNotSoftDeletable)
	})
}

func TestEventsArePublishedAfterSave(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		var seen []domain.EventType
		f.bus.SubscribeAll(func(e domain.Event) { seen = append(seen, e.EventType()) })

		c := f.customer(t, "Ana Souza", "12345678901")
		assert.Equal(t, []domain.EventType{domain.EventCustomerRegistered}, seen)

		require.NoError(t, c.UpdateContact("ana@example.com", ""))
		require.NoError(t, f.customers.Update(ctx, c))
		assert.Equal(t, domain.EventCustomerUpdated, seen[len(seen)-1])
		assert.False(t, c.HasPendingEvents())
	})
}

func TestUnitOfWorkCommit(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		var seen int
		f.bus.SubscribeAll(func(domain.Event) { seen++ })

		require.NoError(t, f.db.Begin())
		assert.ErrorIs(t, f.db.Begin(), ErrTransactionActive)

		c := f.customer(t, "Ana Souza", "12345678901")
		f.vehicle(t, c, "ABC1D23")
		n, err := f.reopen().customers.Count(ctx, query.All[workshop.Customer]())
		require.NoError(t, err)
		assert.Zero(t, n, "writes wait for commit")
		assert.Zero(t, seen)

		require.NoError(t, f.db.Commit(ctx))
		assert.Equal(t, 2, seen)
		n, err = f.reopen().vehicles.Count(ctx, workshop.NewVehiclesOfCustomer(c.ID))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		assert.ErrorIs(t, f.db.Commit(ctx), ErrNoTransaction)
	})
}

func TestUnitOfWorkRollback(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		c := f.customer(t, "Ana Souza", "12345678901")

		require.NoError(t, f.db.Begin())
		c.Name = "Renamed"
		require.NoError(t, f.customers.Update(ctx, c))
		added := f.customer(t, "Bia Lima", "98765432100")
		require.NoError(t, f.db.Rollback())

		assert.Equal(t, "Ana Souza", c.Name)
		assert.False(t, f.db.IsTracked(added))
		n, err := f.db.SaveChanges(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		assert.ErrorIs(t, f.db.Rollback(), ErrNoTransaction)
	})
}

func TestRemoveCancelsPendingInsert(t *testing.T) {
	f := newFixture(mustMemory(t))
	require.NoError(t, f.db.Begin())
	c := f.customer(t, "Ana Souza", "12345678901")
	require.NoError(t, f.db.Remove(c))
	require.NoError(t, f.db.Commit(context.Background()))
	assert.Zero(t, f.db.Backend().(*MemoryBackend).Count(KindCustomers))
}

func TestListProjected(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		ana := f.customer(t, "Ana Souza", "12345678901")
		f.vehicle(t, ana, "ABC1D23")
		f.vehicle(t, ana, "XYZ9K87")
		bia := f.customer(t, "Bia Lima", "98765432100")
		require.NoError(t, f.customers.SoftDelete(ctx, bia.ID))
		f.customer(t, "Caio Reis", "11222333000144")

		rows, err := domain.ListProjected[workshop.Customer, workshop.CustomerSummary](ctx, f.reopen().customers, workshop.NewCustomerSummaries())
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, workshop.CustomerSummary{ID: ana.ID, Name: "Ana Souza", Document: "12345678901", VehicleCount: 2}, rows[0])
		assert.Equal(t, 0, rows[1].VehicleCount)
	})
}

func TestStaleOrdersAndLowStock(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		f := newFixture(b)
		ana := f.customer(t, "Ana Souza", "12345678901")
		uno := f.vehicle(t, ana, "ABC1D23")
		waiting := f.order(t, uno, "suspension")
		require.NoError(t, waiting.Advance(workshop.StatusDiagnosing))
		require.NoError(t, waiting.Quote())
		require.NoError(t, f.orders.Update(ctx, waiting))
		f.order(t, uno, "fresh")

		stale, err := f.reopen().orders.FindNoTracking(ctx, workshop.NewStaleOrders(waiting.UpdatedAt.Add(time.Second)))
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, waiting.ID, stale[0].ID)
		assert.Equal(t, uno.Plate, stale[0].Vehicle.Plate)

		none, err := f.reopen().orders.FindNoTracking(ctx, workshop.NewStaleOrders(waiting.UpdatedAt.Add(-time.Second)))
		require.NoError(t, err)
		assert.Empty(t, none)

		low, err := workshop.NewPart("PAD-1", "Brake pad", domain.Reais(120), 1, 2)
		require.NoError(t, err)
		ok, err := workshop.NewPart("PAD-2", "Brake pad XL", domain.Reais(150), 8, 2)
		require.NoError(t, err)
		require.NoError(t, f.parts.CreateMany(ctx, []*workshop.Part{low, ok}))
		parts, err := f.reopen().parts.Find(ctx, workshop.NewLowStockParts())
		require.NoError(t, err)
		require.Len(t, parts, 1)
		assert.Equal(t, "PAD-1", parts[0].SKU)
	})
}

func TestUsersRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, b Backend) {
		ctx := context.Background()
		db := NewContext(b, NewWorkshopCatalog(), nil)
		users := NewRepository[user.User](db)

		u, err := user.New("Rita", "Rita@Oficina.com", user.RoleMechanic, "hash")
		require.NoError(t, err)
		require.NoError(t, users.Create(ctx, u))

		got, err := NewRepository[user.User](NewContext(b, NewWorkshopCatalog(), nil)).
			FindOne(ctx, user.NewByEmail("RITA@oficina.com"))
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.RoleMechanic, got.Role)
	})
}

func TestNewRepositoryPanicsForUnregisteredType(t *testing.T) {
	type stray struct{ ID domain.EntityID }
	db := NewContext(mustMemory(t), NewWorkshopCatalog(), nil)
	assert.Panics(t, func() { NewRepository[stray](db) })
}

func mustMemory(t *testing.T) *MemoryBackend {
	t.Helper()
	b, err := NewMemoryBackend("")
	require.NoError(t, err)
	return b
}
