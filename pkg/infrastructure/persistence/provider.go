package persistence

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"strings"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// Query provider
// ---------------------------------------------------------------------------

// provider executes query plans for T against a Context: the folded filter
// goes to the backend, ordering and paging run over the decoded rows, and
// include paths are loaded level by level with one batched In query per
// navigation.
type provider[T any] struct {
	db   *Context
	kind string
}

var _ query.Provider[struct{}] = (*provider[struct{}])(nil)

func (p *provider[T]) Execute(ctx context.Context, plan query.Plan) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		items, err := p.load(ctx, plan)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (p *provider[T]) load(ctx context.Context, plan query.Plan) ([]*T, error) {
	typ := reflect.TypeFor[T]()
	rows, err := p.db.read(ctx, p.kind, typ, plan.Predicate(typ), plan.Tracking)
	if err != nil {
		return nil, err
	}
	items := make([]*T, len(rows))
	for i, r := range rows {
		items[i] = r.Interface().(*T)
	}

	items, err = query.ApplyWindow(items, plan)
	if err != nil {
		return nil, err
	}

	owners := make([]reflect.Value, len(items))
	for i, item := range items {
		owners[i] = reflect.ValueOf(item)
	}
	for _, path := range plan.Includes {
		if err := p.db.include(ctx, owners, typ, strings.Split(path, "."), plan.Tracking); err != nil {
			return nil, fmt.Errorf("include %s: %w", path, err)
		}
	}
	return items, nil
}

// read scans kind and decodes each document into a *typ. Tracked reads are
// resolved through the identity map.
func (c *Context) read(ctx context.Context, kind string, typ reflect.Type, filter *query.Lambda, mode query.TrackingMode) ([]reflect.Value, error) {
	docs, err := c.backend.Scan(ctx, kind, typ, filter)
	if err != nil {
		return nil, err
	}
	out := make([]reflect.Value, 0, len(docs))
	for _, d := range docs {
		v, err := decode(typ, d.Body)
		if err != nil {
			return nil, err
		}
		if mode == query.Tracked {
			v = reflect.ValueOf(c.attach(kind, d.ID, v.Interface(), d.Body))
		}
		out = append(out, v)
	}
	return out, nil
}

// include fills the navigation named by path[0] on every owner, then
// recurses into the loaded targets for the rest of the path.
func (c *Context) include(ctx context.Context, owners []reflect.Value, ownerType reflect.Type, path []string, mode query.TrackingMode) error {
	if len(path) == 0 || len(owners) == 0 {
		return nil
	}
	nav, err := c.catalog.navigation(ownerType, path[0])
	if err != nil {
		return err
	}
	kind, err := c.catalog.KindOf(nav.Target)
	if err != nil {
		return err
	}

	keys := make([]domain.EntityID, 0, len(owners))
	seen := make(map[domain.EntityID]bool, len(owners))
	for _, o := range owners {
		k := o.Elem().FieldByName(nav.OwnerKey).Interface().(domain.EntityID)
		if !k.IsZero() && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var targets []reflect.Value
	if len(keys) > 0 {
		x := query.Param("x", nav.Target)
		filter := query.NewLambda(query.In(query.Field(x, nav.TargetKey), query.Const(keys)), x)
		if targets, err = c.read(ctx, kind, nav.Target, filter, mode); err != nil {
			return err
		}
	}

	groups := make(map[domain.EntityID][]reflect.Value, len(keys))
	for _, t := range targets {
		k := t.Elem().FieldByName(nav.TargetKey).Interface().(domain.EntityID)
		groups[k] = append(groups[k], t)
	}

	for _, o := range owners {
		k := o.Elem().FieldByName(nav.OwnerKey).Interface().(domain.EntityID)
		field := o.Elem().FieldByName(nav.Name)
		matched := groups[k]
		if nav.Collection {
			s := reflect.MakeSlice(field.Type(), 0, len(matched))
			s = reflect.Append(s, matched...)
			field.Set(s)
			continue
		}
		if len(matched) > 0 {
			field.Set(matched[0])
		} else {
			field.Set(reflect.Zero(field.Type()))
		}
	}

	return c.include(ctx, targets, nav.Target, path[1:], mode)
}
