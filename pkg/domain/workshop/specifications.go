package workshop

import (
	"time"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// Customer specifications
// ---------------------------------------------------------------------------

// ActiveCustomers matches customers that have not been soft-deleted.
type ActiveCustomers struct{ query.Base[Customer] }

func NewActiveCustomers() *ActiveCustomers {
	s := &ActiveCustomers{}
	s.Where(isActive)
	return s
}

// CustomerByName matches customers whose name contains fragment.
type CustomerByName struct{ query.Base[Customer] }

func NewCustomerByName(fragment string) *CustomerByName {
	s := &CustomerByName{}
	s.Where(func(c query.Expr) query.Expr {
		return query.Contains(query.Field(c, "Name"), query.Const(fragment))
	})
	return s
}

// CustomerByDocument matches the customer holding a CPF/CNPJ.
type CustomerByDocument struct{ query.Base[Customer] }

func NewCustomerByDocument(doc domain.Document) *CustomerByDocument {
	s := &CustomerByDocument{}
	s.Where(func(c query.Expr) query.Expr {
		return query.Eq(query.Field(c, "Document"), query.Const(doc))
	})
	return s
}

// CustomerWithVehicles loads one customer with their vehicles and each
// vehicle's service history.
type CustomerWithVehicles struct{ query.Base[Customer] }

func NewCustomerWithVehicles(id domain.EntityID) *CustomerWithVehicles {
	s := &CustomerWithVehicles{}
	s.Where(byID(id))
	s.AddIncludeNested(
		query.Selector[Customer](func(c query.Expr) query.Expr { return query.Field(c, "Vehicles") }),
		query.Selector[Vehicle](func(v query.Expr) query.Expr { return query.Field(v, "ServiceOrders") }),
	)
	return s
}

// CustomerSummary is the list-view row for a customer.
type CustomerSummary struct {
	ID           domain.EntityID
	Name         string
	Document     domain.Document
	VehicleCount int
}

// CustomerSummaries projects active customers into list rows. The vehicle
// count needs the Vehicles navigation, so it is included.
type CustomerSummaries struct{ query.Base[Customer] }

func NewCustomerSummaries() *CustomerSummaries {
	s := &CustomerSummaries{}
	s.Where(isActive)
	s.AddInclude(query.Selector[Customer](func(c query.Expr) query.Expr { return query.Field(c, "Vehicles") }))
	s.SetProjection(query.Project[Customer, CustomerSummary](func(c query.Expr) query.Expr {
		return query.NewOf[CustomerSummary](
			query.Bind("ID", query.Field(c, "ID")),
			query.Bind("Name", query.Field(c, "Name")),
			query.Bind("Document", query.Field(c, "Document")),
			query.Bind("VehicleCount", query.Len(query.Field(c, "Vehicles"))),
		)
	}))
	return s
}

// ---------------------------------------------------------------------------
// Vehicle specifications
// ---------------------------------------------------------------------------

// VehicleByPlate matches a vehicle by plate and loads its owner.
type VehicleByPlate struct{ query.Base[Vehicle] }

func NewVehicleByPlate(plate domain.Plate) *VehicleByPlate {
	s := &VehicleByPlate{}
	s.Where(func(v query.Expr) query.Expr {
		return query.Eq(query.Field(v, "Plate"), query.Const(plate))
	})
	s.AddInclude(query.Selector[Vehicle](func(v query.Expr) query.Expr { return query.Field(v, "Customer") }))
	return s
}

// VehiclesOfCustomer matches the active vehicles of one customer.
type VehiclesOfCustomer struct{ query.Base[Vehicle] }

func NewVehiclesOfCustomer(customerID domain.EntityID) *VehiclesOfCustomer {
	s := &VehiclesOfCustomer{}
	s.Where(func(v query.Expr) query.Expr {
		return query.AndAlso(
			query.Eq(query.Field(v, "CustomerID"), query.Const(customerID)),
			query.Eq(query.Field(v, "Active"), query.Const(true)),
		)
	})
	return s
}

// ---------------------------------------------------------------------------
// Service order specifications
// ---------------------------------------------------------------------------

// OrdersByStatus matches orders in any of the given statuses.
type OrdersByStatus struct{ query.Base[ServiceOrder] }

func NewOrdersByStatus(statuses ...OrderStatus) *OrdersByStatus {
	s := &OrdersByStatus{}
	s.Where(func(o query.Expr) query.Expr {
		return query.In(query.Field(o, "Status"), query.Const(statuses))
	})
	return s
}

// OpenOrders matches orders still in the shop.
func NewOpenOrders() *OrdersByStatus { return NewOrdersByStatus(OpenStatuses()...) }

// OrderDetails loads one order with everything its detail page shows.
type OrderDetails struct{ query.Base[ServiceOrder] }

func NewOrderDetails(id domain.EntityID) *OrderDetails {
	s := &OrderDetails{}
	s.Where(byID(id))
	s.AddInclude(query.Selector[ServiceOrder](func(o query.Expr) query.Expr { return query.Field(o, "Customer") }))
	s.AddInclude(query.Selector[ServiceOrder](func(o query.Expr) query.Expr { return query.Field(o, "Vehicle") }))
	s.AddInclude(query.Selector[ServiceOrder](func(o query.Expr) query.Expr {
		return query.Select(query.Field(o, "Items"),
			query.Selector[OrderItem](func(i query.Expr) query.Expr { return query.Field(i, "Part") }))
	}))
	return s
}

// OrdersOfVehicle matches the service history of a vehicle, newest first
// once ordered by the caller.
type OrdersOfVehicle struct{ query.Base[ServiceOrder] }

func NewOrdersOfVehicle(vehicleID domain.EntityID) *OrdersOfVehicle {
	s := &OrdersOfVehicle{}
	s.Where(func(o query.Expr) query.Expr {
		return query.Eq(query.Field(o, "VehicleID"), query.Const(vehicleID))
	})
	return s
}

// StaleOrders matches orders waiting for customer approval since before
// the cutoff. The vehicle and customer are loaded for the reminder.
type StaleOrders struct{ query.Base[ServiceOrder] }

func NewStaleOrders(before time.Time) *StaleOrders {
	s := &StaleOrders{}
	s.Where(func(o query.Expr) query.Expr {
		return query.AndAlso(
			query.Eq(query.Field(o, "Status"), query.Const(StatusAwaitingApproval)),
			query.Lt(query.Field(o, "UpdatedAt"), query.Const(domain.TimestampFrom(before))),
		)
	})
	s.AddInclude(query.Selector[ServiceOrder](func(o query.Expr) query.Expr { return query.Field(o, "Customer") }))
	s.AddInclude(query.Selector[ServiceOrder](func(o query.Expr) query.Expr { return query.Field(o, "Vehicle") }))
	return s
}

// ItemsOfOrder matches the lines of one order with their parts.
type ItemsOfOrder struct{ query.Base[OrderItem] }

func NewItemsOfOrder(orderID domain.EntityID) *ItemsOfOrder {
	s := &ItemsOfOrder{}
	s.Where(func(i query.Expr) query.Expr {
		return query.Eq(query.Field(i, "OrderID"), query.Const(orderID))
	})
	s.AddIncludePath(query.Path().Member("Part"))
	return s
}

// ---------------------------------------------------------------------------
// Inventory specifications
// ---------------------------------------------------------------------------

// LowStockParts matches active parts at or below their minimum stock.
type LowStockParts struct{ query.Base[Part] }

func NewLowStockParts() *LowStockParts {
	s := &LowStockParts{}
	s.Where(func(p query.Expr) query.Expr {
		return query.AndAlso(
			query.Eq(query.Field(p, "Active"), query.Const(true)),
			query.Le(query.Field(p, "Stock"), query.Field(p, "MinStock")),
		)
	})
	return s
}

// PartBySKU matches a part by its stock-keeping code.
type PartBySKU struct{ query.Base[Part] }

func NewPartBySKU(sku string) *PartBySKU {
	s := &PartBySKU{}
	s.Where(func(p query.Expr) query.Expr {
		return query.Eq(query.Field(p, "SKU"), query.Const(sku))
	})
	return s
}

// PartsByID matches a batch of parts.
type PartsByID struct{ query.Base[Part] }

func NewPartsByID(ids []domain.EntityID) *PartsByID {
	s := &PartsByID{}
	s.Where(func(p query.Expr) query.Expr {
		return query.In(query.Field(p, "ID"), query.Const(ids))
	})
	return s
}

// StockLevel is the inventory report row for a part.
type StockLevel struct {
	SKU       string
	Name      string
	Stock     int
	Reserved  int
	MinStock  int
	UnitPrice domain.Money
}

// PartStockView projects active parts into stock report rows.
type PartStockView struct{ query.Base[Part] }

func NewPartStockView() *PartStockView {
	s := &PartStockView{}
	s.Where(isActive)
	s.SetProjection(query.Project[Part, StockLevel](func(p query.Expr) query.Expr {
		return query.NewOf[StockLevel](
			query.Bind("SKU", query.Field(p, "SKU")),
			query.Bind("Name", query.Field(p, "Name")),
			query.Bind("Stock", query.Field(p, "Stock")),
			query.Bind("Reserved", query.Field(p, "Reserved")),
			query.Bind("MinStock", query.Field(p, "MinStock")),
			query.Bind("UnitPrice", query.Field(p, "Price")),
		)
	}))
	return s
}

// ---------------------------------------------------------------------------

func isActive(x query.Expr) query.Expr {
	return query.Eq(query.Field(x, "Active"), query.Const(true))
}

func byID(id domain.EntityID) func(query.Expr) query.Expr {
	return func(x query.Expr) query.Expr {
		return query.Eq(query.Field(x, "ID"), query.Const(id))
	}
}
