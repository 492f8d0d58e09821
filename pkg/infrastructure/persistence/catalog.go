// Package persistence provides the storage adapter behind the domain
// repository contract: an entity catalog, pluggable document backends
// (in-memory/JSON files and SQLite), a change-tracking context and the
// query provider that executes specification plans.
package persistence

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
)

// ---------------------------------------------------------------------------
// Entity catalog
// ---------------------------------------------------------------------------

var (
	idType           = reflect.TypeFor[domain.EntityID]()
	identifiableType = reflect.TypeFor[domain.Identifiable]()
)

// navigation describes how an owner field is filled: every target whose
// TargetKey equals the owner's OwnerKey.
type navigation struct {
	Name       string
	Target     reflect.Type
	Collection bool
	OwnerKey   string
	TargetKey  string
}

type entityType struct {
	kind string
	typ  reflect.Type
	navs map[string]navigation
}

// Catalog maps Go entity types to storage kinds and records the navigations
// between them. It is built once at startup and read-only afterwards.
// Registration errors are programming defects and panic.
type Catalog struct {
	byType map[reflect.Type]*entityType
	byKind map[string]*entityType
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byType: make(map[reflect.Type]*entityType),
		byKind: make(map[string]*entityType),
	}
}

// Register maps T to kind. *T must implement domain.Identifiable.
func Register[T any](c *Catalog, kind string) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("persistence: register %s: not a struct", t))
	}
	if !reflect.PointerTo(t).Implements(identifiableType) {
		panic(fmt.Sprintf("persistence: register %s: *%s does not implement domain.Identifiable", kind, t.Name()))
	}
	if _, dup := c.byKind[kind]; dup {
		panic(fmt.Sprintf("persistence: kind %q registered twice", kind))
	}
	if _, dup := c.byType[t]; dup {
		panic(fmt.Sprintf("persistence: type %s registered twice", t))
	}
	et := &entityType{kind: kind, typ: t, navs: make(map[string]navigation)}
	c.byType[t] = et
	c.byKind[kind] = et
}

// HasMany declares a collection navigation: owner field nav ([]*R) holds
// every R whose foreignKey equals the owner's ID.
func HasMany[T, R any](c *Catalog, nav, foreignKey string) {
	c.addNavigation(reflect.TypeFor[T](), reflect.TypeFor[R](), nav, true, "ID", foreignKey)
}

// BelongsTo declares a reference navigation: owner field nav (*R) holds the
// R whose ID equals the owner's foreignKey.
func BelongsTo[T, R any](c *Catalog, nav, foreignKey string) {
	c.addNavigation(reflect.TypeFor[T](), reflect.TypeFor[R](), nav, false, foreignKey, "ID")
}

func (c *Catalog) addNavigation(owner, target reflect.Type, name string, collection bool, ownerKey, targetKey string) {
	oe, ok := c.byType[owner]
	if !ok {
		panic(fmt.Sprintf("persistence: navigation %s.%s: owner not registered", owner.Name(), name))
	}
	if _, ok := c.byType[target]; !ok {
		panic(fmt.Sprintf("persistence: navigation %s.%s: target %s not registered", owner.Name(), name, target.Name()))
	}

	f, ok := owner.FieldByName(name)
	if !ok {
		panic(fmt.Sprintf("persistence: %s has no field %s", owner.Name(), name))
	}
	want := reflect.PointerTo(target)
	if collection {
		want = reflect.SliceOf(want)
	}
	if f.Type != want {
		panic(fmt.Sprintf("persistence: %s.%s is %s, want %s", owner.Name(), name, f.Type, want))
	}
	mustKey(owner, ownerKey)
	mustKey(target, targetKey)

	oe.navs[name] = navigation{
		Name:       name,
		Target:     target,
		Collection: collection,
		OwnerKey:   ownerKey,
		TargetKey:  targetKey,
	}
}

func mustKey(t reflect.Type, name string) {
	f, ok := t.FieldByName(name)
	if !ok || f.Type != idType {
		panic(fmt.Sprintf("persistence: %s.%s must be a domain.EntityID", t.Name(), name))
	}
}

// KindOf returns the storage kind registered for t (a struct or pointer to
// struct).
func (c *Catalog) KindOf(t reflect.Type) (string, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	et, ok := c.byType[t]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnregistered, t)
	}
	return et.kind, nil
}

// Kinds lists the registered kinds in name order.
func (c *Catalog) Kinds() []string {
	out := make([]string, 0, len(c.byKind))
	for k := range c.byKind {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Catalog) navigation(owner reflect.Type, name string) (navigation, error) {
	et, ok := c.byType[owner]
	if !ok {
		return navigation{}, fmt.Errorf("%w: %s", ErrUnregistered, owner)
	}
	nav, ok := et.navs[name]
	if !ok {
		return navigation{}, fmt.Errorf("%w: %s.%s", ErrUnknownNavigation, owner.Name(), name)
	}
	return nav, nil
}
