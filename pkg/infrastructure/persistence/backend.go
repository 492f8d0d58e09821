package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// Backend: document storage behind the tracking context
// ---------------------------------------------------------------------------

// Document is one stored entity: its identity, active flag and JSON body.
type Document struct {
	ID     domain.EntityID
	Active bool
	Body   []byte
}

// Op is a mutation kind.
type Op int

const (
	OpInsert Op = iota
	OpUpdate
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	}
	return "delete"
}

// Mutation is a single write. Body is unused for deletes.
type Mutation struct {
	Op   Op
	Kind string
	Doc  Document
}

// Backend stores documents by kind. Scan returns the documents of kind
// that satisfy filter (a boolean lambda over typ, nil for all) in insertion
// order. Apply writes a batch atomically: either every mutation lands or
// none does.
type Backend interface {
	Name() string
	Scan(ctx context.Context, kind string, typ reflect.Type, filter *query.Lambda) ([]Document, error)
	Apply(ctx context.Context, muts []Mutation) error
	Close() error
}

// decode unmarshals body into a new *typ.
func decode(typ reflect.Type, body []byte) (reflect.Value, error) {
	ptr := reflect.New(typ)
	if err := json.Unmarshal(body, ptr.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decode %s: %w", typ.Name(), err)
	}
	return ptr, nil
}

// checkFilter rejects filters that read a navigation. Navigations are not
// part of the stored body, so such a filter would see nil on every document.
// Load the related aggregate and filter on its foreign key instead.
func checkFilter(filter *query.Lambda) error {
	if filter == nil {
		return nil
	}
	var err error
	query.Inspect(filter, func(e query.Expr) bool {
		m, ok := e.(*query.Member)
		if !ok || err != nil {
			return err == nil
		}
		if _, stored := jsonKey(m.Target().Type(), m.Name()); !stored {
			err = fmt.Errorf("%w: %s", ErrNavigationFilter, m)
		}
		return err == nil
	})
	return err
}

// filterDocuments evaluates filter in process against each decoded
// document. Backends use it when they cannot push the filter down.
func filterDocuments(typ reflect.Type, filter *query.Lambda, docs []Document) ([]Document, error) {
	if filter == nil {
		return docs, nil
	}
	out := docs[:0:0]
	for _, d := range docs {
		v, err := decode(typ, d.Body)
		if err != nil {
			return nil, err
		}
		ok, err := query.Matches(filter, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}
