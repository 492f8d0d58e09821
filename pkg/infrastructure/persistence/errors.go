package persistence

type StoreError string

func (e StoreError) Error() string { return string(e) }

const (
	ErrUnregistered      StoreError = "entity type not registered"
	ErrUnknownNavigation StoreError = "unknown navigation"
	ErrDuplicateKey      StoreError = "duplicate key"
	ErrNotSoftDeletable  StoreError = "entity does not support soft delete"
	ErrUntranslatable    StoreError = "predicate cannot be translated to SQL"
	ErrNavigationFilter  StoreError = "filter reads a navigation that is not stored"
	ErrTransactionActive StoreError = "unit of work already active"
	ErrNoTransaction     StoreError = "no active unit of work"
	ErrNotTracked        StoreError = "entity is not tracked"
)
