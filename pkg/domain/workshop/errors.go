package workshop

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrEmptyName         Error = "name is required"
	ErrEmptySKU          Error = "sku is required"
	ErrMissingCustomer   Error = "customer is required"
	ErrMissingVehicle    Error = "vehicle is required"
	ErrMissingPart       Error = "part is required"
	ErrInvalidYear       Error = "invalid model year"
	ErrInvalidQuantity   Error = "quantity must be positive"
	ErrInvalidTransition Error = "invalid order status transition"
	ErrInsufficientStock Error = "insufficient stock"
	ErrPlateTaken        Error = "plate already registered"
	ErrDocumentTaken     Error = "document already registered"
	ErrSKUTaken          Error = "sku already registered"
)
