package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/metrics"
)

// ---------------------------------------------------------------------------
// Change-tracking context
// ---------------------------------------------------------------------------

type entryState int

const (
	stateUnchanged entryState = iota
	stateAdded
	stateModified
	stateDeleted
)

type entryKey struct {
	kind string
	id   domain.EntityID
}

// entry is one tracked entity with the JSON it had when last read or saved.
type entry struct {
	key      entryKey
	entity   any // pointer to the entity struct
	snapshot []byte
	state    entryState
}

// Context is the unit-of-change over a Backend. Tracked reads go through an
// identity map, so one entity is one pointer per Context; SaveChanges diffs
// each tracked entity against its snapshot and writes the changes as one
// batch. Domain events buffered on saved aggregates are published after
// the batch lands.
//
// Outside a unit of work, repository writes are saved immediately. Between
// Begin and Commit they accumulate and are written together.
type Context struct {
	backend Backend
	catalog *Catalog
	bus     domain.EventBus

	mu      sync.Mutex
	entries map[entryKey]*entry
	order   []entryKey
	inTx    bool
}

var _ domain.UnitOfWork = (*Context)(nil)

// NewContext creates a context. bus may be nil.
func NewContext(backend Backend, catalog *Catalog, bus domain.EventBus) *Context {
	return &Context{
		backend: backend,
		catalog: catalog,
		bus:     bus,
		entries: make(map[entryKey]*entry),
	}
}

// Backend returns the storage backend.
func (c *Context) Backend() Backend { return c.backend }

// Catalog returns the entity catalog.
func (c *Context) Catalog() *Catalog { return c.catalog }

func (c *Context) keyOf(entity any) (entryKey, error) {
	id, ok := entity.(domain.Identifiable)
	if !ok || reflect.ValueOf(entity).Kind() != reflect.Pointer {
		return entryKey{}, fmt.Errorf("%w: %T", ErrUnregistered, entity)
	}
	kind, err := c.catalog.KindOf(reflect.TypeOf(entity))
	if err != nil {
		return entryKey{}, err
	}
	return entryKey{kind: kind, id: id.Identity()}, nil
}

// attach registers an entity read from storage. If the identity is already
// tracked the existing instance is returned and the fresh copy dropped.
func (c *Context) attach(kind string, id domain.EntityID, entity any, body []byte) any {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := entryKey{kind: kind, id: id}
	if e, ok := c.entries[k]; ok {
		return e.entity
	}
	c.track(&entry{key: k, entity: entity, snapshot: body, state: stateUnchanged})
	return entity
}

func (c *Context) track(e *entry) {
	c.entries[e.key] = e
	c.order = append(c.order, e.key)
}

// Add marks entity for insertion on the next save.
func (c *Context) Add(entity any) error {
	k, err := c.keyOf(entity)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[k]; ok {
		if e.state == stateDeleted {
			e.entity, e.state = entity, stateModified
			return nil
		}
		return fmt.Errorf("%w: %s/%s", ErrDuplicateKey, k.kind, k.id)
	}
	c.track(&entry{key: k, entity: entity, state: stateAdded})
	return nil
}

// Update marks entity as modified. Untracked entities are attached so that
// detached copies can be written back.
func (c *Context) Update(entity any) error {
	k, err := c.keyOf(entity)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.track(&entry{key: k, entity: entity, state: stateModified})
		return nil
	}
	if e.entity != entity {
		// A detached copy replaces the tracked instance.
		e.entity = entity
	}
	if e.state == stateUnchanged {
		e.state = stateModified
	}
	return nil
}

// Remove marks entity for deletion. Removing an entity added in the same
// unit cancels the insert.
func (c *Context) Remove(entity any) error {
	k, err := c.keyOf(entity)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.track(&entry{key: k, entity: entity, state: stateDeleted})
		return nil
	}
	if e.state == stateAdded {
		c.forget(k)
		return nil
	}
	e.state = stateDeleted
	return nil
}

func (c *Context) forget(k entryKey) {
	delete(c.entries, k)
	for i, o := range c.order {
		if o == k {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// IsTracked reports whether entity's identity is tracked.
func (c *Context) IsTracked(entity any) bool {
	k, err := c.keyOf(entity)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[k]
	return ok
}

// SaveChanges writes every pending change as one batch and returns the
// number of mutations applied. Unchanged entities whose JSON no longer
// matches their snapshot are detected as modified.
func (c *Context) SaveChanges(ctx context.Context) (int, error) {
	c.mu.Lock()
	n, events, err := c.saveLocked(ctx)
	c.mu.Unlock()
	metrics.RecordCommit(err)
	c.publish(events)
	return n, err
}

// publish runs outside the lock so handlers may use the context.
func (c *Context) publish(events []domain.Event) {
	if c.bus == nil {
		return
	}
	for _, ev := range events {
		c.bus.Publish(ev)
	}
}

func (c *Context) saveLocked(ctx context.Context) (int, []domain.Event, error) {
	type pending struct {
		e    *entry
		body []byte
	}
	var (
		muts []Mutation
		work []pending
	)
	for _, k := range c.order {
		e := c.entries[k]
		var body []byte
		if e.state != stateDeleted {
			b, err := json.Marshal(e.entity)
			if err != nil {
				return 0, nil, fmt.Errorf("marshal %s/%s: %w", k.kind, k.id, err)
			}
			body = b
		}

		var op Op
		switch e.state {
		case stateAdded:
			op = OpInsert
		case stateDeleted:
			op = OpDelete
		case stateModified:
			op = OpUpdate
		case stateUnchanged:
			if bytes.Equal(body, e.snapshot) {
				continue
			}
			op = OpUpdate
		}
		muts = append(muts, Mutation{Op: op, Kind: k.kind, Doc: Document{ID: k.id, Active: isActive(e.entity), Body: body}})
		work = append(work, pending{e: e, body: body})
	}
	if len(muts) == 0 {
		return 0, nil, nil
	}

	if err := c.backend.Apply(ctx, muts); err != nil {
		return 0, nil, err
	}

	counts := make(map[[2]string]int)
	var events []domain.Event
	for i, p := range work {
		m := muts[i]
		counts[[2]string{m.Kind, m.Op.String()}]++
		if src, ok := p.e.entity.(domain.EventSource); ok {
			events = append(events, src.PullEvents()...)
		}
		if m.Op == OpDelete {
			c.forget(p.e.key)
			continue
		}
		p.e.snapshot, p.e.state = p.body, stateUnchanged
	}
	for k, n := range counts {
		metrics.RecordMutation(k[0], k[1], n)
	}

	logger.DebugCF("persistence", "Changes saved", map[string]interface{}{
		"mutations": len(muts),
		"events":    len(events),
		"backend":   c.backend.Name(),
	})
	return len(muts), events, nil
}

func isActive(entity any) bool {
	if sd, ok := entity.(domain.SoftDeletable); ok {
		return sd.IsActive()
	}
	return true
}

// autoSave saves unless a unit of work is open.
func (c *Context) autoSave(ctx context.Context) error {
	c.mu.Lock()
	inTx := c.inTx
	c.mu.Unlock()
	if inTx {
		return nil
	}
	_, err := c.SaveChanges(ctx)
	return err
}

// Detach stops tracking every entity.
func (c *Context) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[entryKey]*entry)
	c.order = nil
}

// ---------------------------------------------------------------------------
// domain.UnitOfWork
// ---------------------------------------------------------------------------

func (c *Context) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inTx {
		return ErrTransactionActive
	}
	c.inTx = true
	return nil
}

// Commit saves every pending change and closes the unit of work. On
// failure the unit stays open so the caller can Rollback.
func (c *Context) Commit(ctx context.Context) error {
	c.mu.Lock()
	if !c.inTx {
		c.mu.Unlock()
		return ErrNoTransaction
	}
	_, events, err := c.saveLocked(ctx)
	if err == nil {
		c.inTx = false
	}
	c.mu.Unlock()

	metrics.RecordCommit(err)
	if err != nil {
		return err
	}
	c.publish(events)
	return nil
}

// Rollback discards pending inserts and deletes and restores modified
// entities from their snapshots. Restored entities lose loaded
// navigations and buffered events.
func (c *Context) Rollback() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inTx {
		return ErrNoTransaction
	}
	c.inTx = false

	for _, k := range append([]entryKey(nil), c.order...) {
		e := c.entries[k]
		if e.snapshot == nil {
			c.forget(k)
			continue
		}
		if err := restore(e.entity, e.snapshot); err != nil {
			return err
		}
		e.state = stateUnchanged
	}
	return nil
}

func restore(entity any, snapshot []byte) error {
	v := reflect.ValueOf(entity).Elem()
	v.Set(reflect.Zero(v.Type()))
	if err := json.Unmarshal(snapshot, entity); err != nil {
		return fmt.Errorf("restore %T: %w", entity, err)
	}
	return nil
}

func (c *Context) RegisterNew(aggregate interface{}) {
	if err := c.Add(aggregate); err != nil {
		logger.WarnCF("persistence", "RegisterNew rejected", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Context) RegisterDirty(aggregate interface{}) {
	if err := c.Update(aggregate); err != nil {
		logger.WarnCF("persistence", "RegisterDirty rejected", map[string]interface{}{"error": err.Error()})
	}
}

func (c *Context) RegisterDeleted(aggregate interface{}) {
	if err := c.Remove(aggregate); err != nil {
		logger.WarnCF("persistence", "RegisterDeleted rejected", map[string]interface{}{"error": err.Error()})
	}
}
