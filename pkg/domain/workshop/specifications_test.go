package workshop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

func customers(t *testing.T) []*Customer {
	t.Helper()
	mk := func(name, doc string, active bool) *Customer {
		d, err := domain.NewDocument(doc)
		require.NoError(t, err)
		c, err := NewCustomer(name, d, "", "")
		require.NoError(t, err)
		c.Active = active
		return c
	}
	ana := mk("Ana Souza", "123.456.789-01", true)
	bia := mk("Bia Lima", "98765432100", false)
	caio := mk("Caio Ana", "11.222.333/0001-44", true)

	plate, _ := domain.NewPlate("abc-1d23")
	v, err := NewVehicle(ana.ID, plate, "Fiat", "Uno", 2015)
	require.NoError(t, err)
	ana.Vehicles = []*Vehicle{v}
	return []*Customer{ana, bia, caio}
}

func names(items []*Customer) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.Name
	}
	return out
}

func TestCustomerSpecifications(t *testing.T) {
	ctx := context.Background()
	src := query.FromSlice(customers(t))

	tests := []struct {
		name string
		spec query.Specification[Customer]
		want []string
	}{
		{"active", NewActiveCustomers(), []string{"Ana Souza", "Caio Ana"}},
		{"by name", NewCustomerByName("Ana"), []string{"Ana Souza", "Caio Ana"}},
		{"by document", NewCustomerByDocument("98765432100"), []string{"Bia Lima"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := query.Evaluate(src, tt.spec)
			require.NoError(t, err)
			got, err := q.ToSlice(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}
}

func TestCombinedCustomerSpecification(t *testing.T) {
	spec, err := query.And[Customer](NewCustomerByName("Ana"), NewCustomerByDocument("11222333000144"))
	require.NoError(t, err)

	q, err := query.Evaluate(query.FromSlice(customers(t)), spec)
	require.NoError(t, err)
	got, err := q.ToSlice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Caio Ana"}, names(got))
}

func TestIncludePaths(t *testing.T) {
	tests := []struct {
		name string
		spec interface{ Includes() []query.IncludePath }
		want []string
	}{
		{"customer with vehicles", NewCustomerWithVehicles(domain.NewID()), []string{"Vehicles.ServiceOrders"}},
		{"order details", NewOrderDetails(domain.NewID()), []string{"Customer", "Vehicle", "Items.Part"}},
		{"vehicle by plate", NewVehicleByPlate("ABC1D23"), []string{"Customer"}},
		{"items of order", NewItemsOfOrder(domain.NewID()), []string{"Part"}},
		{"low stock", NewLowStockParts(), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, p := range tt.spec.Includes() {
				got = append(got, p.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomerSummariesProjection(t *testing.T) {
	q, err := query.EvaluateProjection[Customer, CustomerSummary](query.FromSlice(customers(t)), NewCustomerSummaries())
	require.NoError(t, err)
	rows, err := q.ToSlice(context.Background())
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Ana Souza", rows[0].Name)
	assert.Equal(t, 1, rows[0].VehicleCount)
	assert.Equal(t, 0, rows[1].VehicleCount)
}

func TestInventorySpecifications(t *testing.T) {
	a, _ := NewPart("A", "Pad", domain.Reais(10), 1, 2)
	b, _ := NewPart("B", "Disc", domain.Reais(90), 8, 2)
	c, _ := NewPart("C", "Hose", domain.Reais(5), 0, 0)
	c.Deactivate()
	src := query.FromSlice([]*Part{a, b, c})
	ctx := context.Background()

	q, err := query.Evaluate(src, NewLowStockParts())
	require.NoError(t, err)
	low, err := q.ToSlice(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "A", low[0].SKU)

	q, err = query.Evaluate(src, NewPartBySKU("B"))
	require.NoError(t, err)
	one, err := q.SingleOrDefault(ctx)
	require.NoError(t, err)
	assert.Same(t, b, one)

	view, err := query.EvaluateProjection[Part, StockLevel](src, NewPartStockView())
	require.NoError(t, err)
	rows, err := view.ToSlice(ctx)
	require.NoError(t, err)
	assert.Equal(t, []StockLevel{
		{SKU: "A", Name: "Pad", Stock: 1, MinStock: 2, UnitPrice: domain.Reais(10)},
		{SKU: "B", Name: "Disc", Stock: 8, MinStock: 2, UnitPrice: domain.Reais(90)},
	}, rows)
}

func TestOrderSpecifications(t *testing.T) {
	ctx := context.Background()
	old, _ := OpenOrder(domain.NewID(), domain.NewID(), "")
	old.Status = StatusAwaitingApproval
	old.UpdatedAt = domain.TimestampFrom(time.Now().Add(-72 * time.Hour))

	fresh, _ := OpenOrder(domain.NewID(), domain.NewID(), "")
	fresh.Status = StatusAwaitingApproval

	done, _ := OpenOrder(domain.NewID(), domain.NewID(), "")
	done.Status = StatusDelivered

	src := query.FromSlice([]*ServiceOrder{old, fresh, done})

	q, err := query.Evaluate(src, NewStaleOrders(time.Now().Add(-48*time.Hour)))
	require.NoError(t, err)
	stale, err := q.ToSlice(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Same(t, old, stale[0])

	q, err = query.Evaluate(src, NewOpenOrders())
	require.NoError(t, err)
	n, err := q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	q, err = query.Evaluate(src, NewOrdersByStatus(StatusDelivered, StatusCancelled))
	require.NoError(t, err)
	n, err = q.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewCustomerValidation(t *testing.T) {
	_, err := NewCustomer(" ", "12345678901", "", "")
	assert.ErrorIs(t, err, ErrEmptyName)
	_, err = NewCustomer("Ana", "123", "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
	_, err = NewCustomer("Ana", "12345678901", "not-an-email", "")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}
