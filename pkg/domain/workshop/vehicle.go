package workshop

import (
	"time"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

// ---------------------------------------------------------------------------
// Vehicle aggregate root
// ---------------------------------------------------------------------------

// Vehicle belongs to a customer and is the subject of service orders.
type Vehicle struct {
	domain.AggregateRoot `json:"-"`

	ID         domain.EntityID `json:"id"`
	CustomerID domain.EntityID `json:"customer_id"`
	Plate      domain.Plate    `json:"plate"`
	Brand      string          `json:"brand"`
	Model      string          `json:"model"`
	Year       int             `json:"year"`
	Active     bool            `json:"active"`

	CreatedAt domain.Timestamp `json:"created_at"`
	UpdatedAt domain.Timestamp `json:"updated_at"`

	Customer      *Customer       `json:"-"`
	ServiceOrders []*ServiceOrder `json:"-"`
}

// NewVehicle registers a vehicle for customerID.
func NewVehicle(customerID domain.EntityID, plate domain.Plate, brand, model string, year int) (*Vehicle, error) {
	if customerID.IsZero() {
		return nil, ErrMissingCustomer
	}
	if year < 1900 || year > time.Now().Year()+1 {
		return nil, ErrInvalidYear
	}
	v := &Vehicle{
		ID:         domain.NewID(),
		CustomerID: customerID,
		Plate:      plate,
		Brand:      brand,
		Model:      model,
		Year:       year,
		Active:     true,
		CreatedAt:  domain.Now(),
		UpdatedAt:  domain.Now(),
	}
	v.RecordEvent(domain.NewEvent(domain.EventVehicleRegistered, v.ID, map[string]string{
		"plate":       v.Plate.String(),
		"customer_id": customerID.String(),
	}))
	return v, nil
}

func (v *Vehicle) Identity() domain.EntityID { return v.ID }
func (v *Vehicle) IsActive() bool            { return v.Active }

// Deactivate soft-deletes the vehicle.
func (v *Vehicle) Deactivate() {
	v.Active = false
	v.UpdatedAt = domain.Now()
	v.RecordEvent(domain.NewEvent(domain.EventVehicleDeactivated, v.ID, nil))
}

// VehicleRepository is the persistence contract for vehicles.
type VehicleRepository = domain.Repository[Vehicle]
