package persistence

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

func TestTranslate(t *testing.T) {
	cutoff := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	byName, _ := query.Or[workshop.Customer](
		workshop.NewCustomerByName("Ana"),
		workshop.NewCustomerByDocument("12345678901"),
	)

	tests := []struct {
		name     string
		filter   *query.Lambda
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "no filter",
			filter:   nil,
			wantSQL:  "1 = 1",
			wantArgs: nil,
		},
		{
			name:     "conjunction",
			filter:   workshop.NewVehiclesOfCustomer("c1").Predicate(),
			wantSQL:  "((COALESCE(json_extract(body, ?), '') = ?) AND (COALESCE(json_extract(body, ?), 0) = ?))",
			wantArgs: []any{"$.customer_id", "c1", "$.active", 1},
		},
		{
			name:     "combined specifications are inlined",
			filter:   byName.Predicate(),
			wantSQL:  "((instr(COALESCE(json_extract(body, ?), ''), ?) > 0) OR (COALESCE(json_extract(body, ?), '') = ?))",
			wantArgs: []any{"$.name", "Ana", "$.document", "12345678901"},
		},
		{
			name:     "in",
			filter:   workshop.NewOrdersByStatus(workshop.StatusReceived, workshop.StatusDiagnosing).Predicate(),
			wantSQL:  "(COALESCE(json_extract(body, ?), '') IN (?, ?))",
			wantArgs: []any{"$.status", "received", "diagnosing"},
		},
		{
			name:     "empty in",
			filter:   workshop.NewOrdersByStatus().Predicate(),
			wantSQL:  "(1 = 0)",
			wantArgs: nil,
		},
		{
			name:    "time comparison",
			filter:  workshop.NewStaleOrders(cutoff).Predicate(),
			wantSQL: "((COALESCE(json_extract(body, ?), '') = ?) AND (julianday(json_extract(body, ?)) < julianday(?)))",
			wantArgs: []any{
				"$.status", "awaiting_approval",
				"$.updated_at", "2026-10-01T12:00:00Z",
			},
		},
		{
			name:     "member to member",
			filter:   workshop.NewLowStockParts().Predicate(),
			wantSQL:  "((COALESCE(json_extract(body, ?), 0) = ?) AND (COALESCE(json_extract(body, ?), 0) <= COALESCE(json_extract(body, ?), 0)))",
			wantArgs: []any{"$.active", 1, "$.stock", "$.min_stock"},
		},
		{
			name: "negation and prefix",
			filter: query.Where[workshop.Part](func(p query.Expr) query.Expr {
				return query.Negate(query.HasPrefix(query.Field(p, "SKU"), query.Const("OIL")))
			}),
			wantSQL:  "NOT (instr(COALESCE(json_extract(body, ?), ''), ?) = 1)",
			wantArgs: []any{"$.sku", "OIL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := translate(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestTranslateRejectsNavigations(t *testing.T) {
	tests := []struct {
		name   string
		filter *query.Lambda
	}{
		{
			name: "member through navigation",
			filter: query.Where[workshop.ServiceOrder](func(o query.Expr) query.Expr {
				return query.Eq(query.Field(o, "Customer.Name"), query.Const("Ana"))
			}),
		},
		{
			name: "any over collection",
			filter: query.Where[workshop.Customer](func(c query.Expr) query.Expr {
				return query.Any(query.Field(c, "Vehicles"), query.Where[workshop.Vehicle](func(v query.Expr) query.Expr {
					return query.Gt(query.Field(v, "Year"), query.Const(2020))
				}))
			}),
		},
		{
			name: "length of collection",
			filter: query.Where[workshop.Customer](func(c query.Expr) query.Expr {
				return query.Eq(query.Len(query.Field(c, "Vehicles")), query.Const(0))
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := translate(tt.filter)
			assert.ErrorIs(t, err, ErrUntranslatable)
		})
	}
}

func TestNullComparison(t *testing.T) {
	filter := query.Where[workshop.Vehicle](func(v query.Expr) query.Expr {
		return query.Ne(query.Field(v, "Customer"), query.Const(nil))
	})
	_, _, err := translate(filter)
	assert.ErrorIs(t, err, ErrUntranslatable, "navigation pointers are not stored")

	type note struct {
		Author *string `json:"author"`
	}
	filter = query.Where[note](func(n query.Expr) query.Expr {
		return query.Eq(query.Field(n, "Author"), query.Const(nil))
	})
	sql, args, err := translate(filter)
	require.NoError(t, err)
	assert.Equal(t, "(json_extract(body, ?) IS NULL)", sql)
	assert.Equal(t, []any{"$.author"}, args)
}

func TestJSONKey(t *testing.T) {
	typ := reflect.TypeFor[workshop.Customer]()
	key, ok := jsonKey(typ, "CreatedAt")
	assert.True(t, ok)
	assert.Equal(t, "created_at", key)
	_, ok = jsonKey(typ, "Vehicles")
	assert.False(t, ok)
}
