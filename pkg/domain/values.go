package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Shared value objects: used across bounded contexts
// ---------------------------------------------------------------------------

// Money is an amount in cents. Integer cents keep sums exact.
type Money int64

// Reais builds Money from a whole-currency amount.
func Reais(v float64) Money { return Money(v*100 + 0.5) }

// String renders the amount as "R$ 12.34".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%sR$ %d.%02d", sign, v/100, v%100)
}

// Times multiplies the amount by a quantity.
func (m Money) Times(qty int) Money { return m * Money(qty) }

// ---------------------------------------------------------------------------

// Document is a taxpayer number: 11 digits (CPF) for people, 14 (CNPJ) for
// companies. Stored digits-only.
type Document string

// NewDocument strips punctuation and checks the digit count.
func NewDocument(raw string) (Document, error) {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	d := Document(b.String())
	if !d.Valid() {
		return "", ErrInvalidDocument
	}
	return d, nil
}

func (d Document) String() string { return string(d) }

// Valid reports whether the document has a CPF or CNPJ length.
func (d Document) Valid() bool { return len(d) == 11 || len(d) == 14 }

// IsCompany reports whether the document is a CNPJ.
func (d Document) IsCompany() bool { return len(d) == 14 }

// ---------------------------------------------------------------------------

var platePattern = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z0-9][0-9]{2}$`)

// Plate is a vehicle license plate in the old (ABC1234) or Mercosul
// (ABC1D23) format, stored upper-case without separators.
type Plate string

// NewPlate normalizes and validates a plate.
func NewPlate(raw string) (Plate, error) {
	p := Plate(strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(raw)))
	if !platePattern.MatchString(string(p)) {
		return "", ErrInvalidPlate
	}
	return p, nil
}

func (p Plate) String() string { return string(p) }

// ---------------------------------------------------------------------------

// Severity classifies log and notification severity.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) String() string { return string(s) }

// ---------------------------------------------------------------------------
// Shared domain errors
// ---------------------------------------------------------------------------

type DomainError string

func (e DomainError) Error() string { return string(e) }

const (
	ErrNotFound        DomainError = "entity not found"
	ErrInvalidDocument DomainError = "document must have 11 (CPF) or 14 (CNPJ) digits"
	ErrInvalidPlate    DomainError = "invalid license plate"
	ErrInvalidEmail    DomainError = "invalid email address"
	ErrInactive        DomainError = "entity is inactive"
)
