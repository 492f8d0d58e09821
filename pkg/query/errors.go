package query

// ---------------------------------------------------------------------------
// Query errors
// ---------------------------------------------------------------------------

// QueryError is a programming-defect signal raised while building or
// evaluating a specification. None of these are transient; they surface
// before any store round-trip.
type QueryError string

func (e QueryError) Error() string { return string(e) }

const (
	ErrNullArgument               QueryError = "query: specification argument is nil"
	ErrUnsupportedExpressionShape QueryError = "query: unsupported include expression shape"
	ErrInvalidProjection          QueryError = "query: invalid projection requested"
	ErrDuplicateProjection        QueryError = "query: projection already registered"
	ErrUnknownMember              QueryError = "query: unknown member"
	ErrTypeMismatch               QueryError = "query: operand types do not match"
	ErrNotEvaluable               QueryError = "query: expression cannot be evaluated"
	ErrMultipleResults            QueryError = "query: sequence contains more than one element"
)
