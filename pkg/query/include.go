package query

import (
	"fmt"
	"reflect"
	"strings"
)

// Segment is one navigation step of an include path.
type Segment struct {
	Name       string
	Collection bool
}

// IncludePath names a chain of related data to eager-load, always rooted at
// the specification's entity type. The zero value is the empty path.
type IncludePath struct {
	segments []Segment
}

// Path starts an empty include path for the fluent builder:
//
//	query.Path().Collection("Vehicles").Collection("ServiceOrders")
func Path() IncludePath { return IncludePath{} }

// NewPath builds a path from segments.
func NewPath(segments ...Segment) IncludePath {
	return IncludePath{segments: append([]Segment(nil), segments...)}
}

// Member appends a reference navigation.
func (p IncludePath) Member(name string) IncludePath {
	return p.with(Segment{Name: name})
}

// Collection appends a collection navigation.
func (p IncludePath) Collection(name string) IncludePath {
	return p.with(Segment{Name: name, Collection: true})
}

// Concat appends other's segments to p.
func (p IncludePath) Concat(other IncludePath) IncludePath {
	out := make([]Segment, 0, len(p.segments)+len(other.segments))
	out = append(out, p.segments...)
	return IncludePath{segments: append(out, other.segments...)}
}

func (p IncludePath) with(s Segment) IncludePath {
	out := make([]Segment, len(p.segments), len(p.segments)+1)
	copy(out, p.segments)
	return IncludePath{segments: append(out, s)}
}

// Segments returns a copy of the path's segments.
func (p IncludePath) Segments() []Segment { return append([]Segment(nil), p.segments...) }

// Len returns the number of segments.
func (p IncludePath) Len() int { return len(p.segments) }

// IsZero reports whether the path is empty.
func (p IncludePath) IsZero() bool { return len(p.segments) == 0 }

// String joins the segment names with dots, e.g. "Vehicles.ServiceOrders".
func (p IncludePath) String() string {
	names := make([]string, len(p.segments))
	for i, s := range p.segments {
		names[i] = s.Name
	}
	return strings.Join(names, ".")
}

// Validate checks the path against the Go shape of root, including that each
// segment's collection flag agrees with the field type.
func (p IncludePath) Validate(root reflect.Type) error {
	if p.IsZero() {
		return fmt.Errorf("%w: empty include path", ErrUnknownMember)
	}
	t := indirect(root)
	for _, s := range p.segments {
		if t.Kind() != reflect.Struct {
			return fmt.Errorf("%w: %s on non-struct %s", ErrUnknownMember, s.Name, t)
		}
		f, ok := t.FieldByName(s.Name)
		if !ok || !f.IsExported() {
			return fmt.Errorf("%w: %s.%s", ErrUnknownMember, t, s.Name)
		}
		if isCollection(f.Type) != s.Collection {
			return fmt.Errorf("%w: %s.%s collection=%t", ErrTypeMismatch, t, s.Name, s.Collection)
		}
		t = navTarget(f.Type)
	}
	return nil
}

func isCollection(t reflect.Type) bool {
	return t.Kind() == reflect.Slice
}

// navTarget returns the entity type reached through a navigation field.
func navTarget(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	return indirect(t)
}
