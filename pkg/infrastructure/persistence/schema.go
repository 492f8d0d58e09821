package persistence

import (
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/user"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain/workshop"
)

// Storage kinds.
const (
	KindCustomers  = "customers"
	KindVehicles   = "vehicles"
	KindOrders     = "service_orders"
	KindOrderItems = "order_items"
	KindParts      = "parts"
	KindUsers      = "users"
)

// NewWorkshopCatalog registers every entity of the back office and the
// navigations between them.
func NewWorkshopCatalog() *Catalog {
	c := NewCatalog()
	Register[workshop.Customer](c, KindCustomers)
	Register[workshop.Vehicle](c, KindVehicles)
	Register[workshop.ServiceOrder](c, KindOrders)
	Register[workshop.OrderItem](c, KindOrderItems)
	Register[workshop.Part](c, KindParts)
	Register[user.User](c, KindUsers)

	HasMany[workshop.Customer, workshop.Vehicle](c, "Vehicles", "CustomerID")
	BelongsTo[workshop.Vehicle, workshop.Customer](c, "Customer", "CustomerID")
	HasMany[workshop.Vehicle, workshop.ServiceOrder](c, "ServiceOrders", "VehicleID")
	BelongsTo[workshop.ServiceOrder, workshop.Customer](c, "Customer", "CustomerID")
	BelongsTo[workshop.ServiceOrder, workshop.Vehicle](c, "Vehicle", "VehicleID")
	HasMany[workshop.ServiceOrder, workshop.OrderItem](c, "Items", "OrderID")
	BelongsTo[workshop.OrderItem, workshop.Part](c, "Part", "PartID")
	return c
}
