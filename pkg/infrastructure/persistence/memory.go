package persistence

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/metrics"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// In-memory backend with optional JSON file persistence
// ---------------------------------------------------------------------------

// storedDocument is the on-disk envelope, one file per entity.
type storedDocument struct {
	ID     domain.EntityID `json:"id"`
	Seq    uint64          `json:"seq"`
	Active bool            `json:"active"`
	Body   json.RawMessage `json:"body"`
}

// MemoryBackend keeps every document in memory. When baseDir is set each
// write is also persisted as <baseDir>/<kind>/<id>.json and the directory is
// loaded back on open. Filters are interpreted in process.
type MemoryBackend struct {
	baseDir string
	kinds   map[string]map[domain.EntityID]storedDocument
	seq     uint64
	mu      sync.RWMutex
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates a backend. An empty baseDir keeps everything in
// memory only.
func NewMemoryBackend(baseDir string) (*MemoryBackend, error) {
	b := &MemoryBackend{
		baseDir: baseDir,
		kinds:   make(map[string]map[domain.EntityID]storedDocument),
	}
	if baseDir == "" {
		return b, nil
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", baseDir, err)
	}
	if err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

// load reads every <kind>/<id>.json file under baseDir. Unreadable files
// are skipped with a warning.
func (b *MemoryBackend) load() error {
	kinds, err := os.ReadDir(b.baseDir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", b.baseDir, err)
	}
	for _, k := range kinds {
		if !k.IsDir() {
			continue
		}
		dir := filepath.Join(b.baseDir, k.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read dir %s: %w", dir, err)
		}
		docs := make(map[domain.EntityID]storedDocument, len(entries))
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				logger.WarnCF("persistence", "Skipping unreadable document", map[string]interface{}{
					"file":  entry.Name(),
					"error": err.Error(),
				})
				continue
			}
			var sd storedDocument
			if err := json.Unmarshal(data, &sd); err != nil {
				logger.WarnCF("persistence", "Skipping malformed document", map[string]interface{}{
					"file":  entry.Name(),
					"error": err.Error(),
				})
				continue
			}
			docs[sd.ID] = sd
			b.seq = max(b.seq, sd.Seq)
		}
		b.kinds[k.Name()] = docs
	}
	return nil
}

func (b *MemoryBackend) Name() string { return "memory" }

// Scan returns the matching documents of kind in insertion order.
func (b *MemoryBackend) Scan(ctx context.Context, kind string, typ reflect.Type, filter *query.Lambda) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	start := time.Now()

	b.mu.RLock()
	stored := make([]storedDocument, 0, len(b.kinds[kind]))
	for _, sd := range b.kinds[kind] {
		stored = append(stored, sd)
	}
	b.mu.RUnlock()

	slices.SortFunc(stored, func(a, c storedDocument) int { return cmp.Compare(a.Seq, c.Seq) })
	docs := make([]Document, len(stored))
	for i, sd := range stored {
		docs[i] = Document{ID: sd.ID, Active: sd.Active, Body: sd.Body}
	}

	docs, err := filterDocuments(typ, filter, docs)
	if err != nil {
		return nil, err
	}
	metrics.RecordQuery(kind, b.Name(), false, len(docs), time.Since(start))
	return docs, nil
}

// Apply validates the whole batch against the current state before
// changing anything, so a failing batch leaves the store untouched.
func (b *MemoryBackend) Apply(ctx context.Context, muts []Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	// Track the ids each mutation will see, so batches that insert and then
	// delete the same id validate correctly.
	present := make(map[string]map[domain.EntityID]bool)
	exists := func(kind string, id domain.EntityID) bool {
		if m, ok := present[kind]; ok {
			if v, seen := m[id]; seen {
				return v
			}
		}
		_, ok := b.kinds[kind][id]
		return ok
	}
	set := func(kind string, id domain.EntityID, v bool) {
		if present[kind] == nil {
			present[kind] = make(map[domain.EntityID]bool)
		}
		present[kind][id] = v
	}
	for _, m := range muts {
		switch m.Op {
		case OpInsert:
			if exists(m.Kind, m.Doc.ID) {
				return fmt.Errorf("%w: %s/%s", ErrDuplicateKey, m.Kind, m.Doc.ID)
			}
			set(m.Kind, m.Doc.ID, true)
		case OpUpdate, OpDelete:
			if !exists(m.Kind, m.Doc.ID) {
				return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, m.Kind, m.Doc.ID)
			}
			set(m.Kind, m.Doc.ID, m.Op == OpUpdate)
		}
	}

	for _, m := range muts {
		docs := b.kinds[m.Kind]
		if docs == nil {
			docs = make(map[domain.EntityID]storedDocument)
			b.kinds[m.Kind] = docs
		}
		switch m.Op {
		case OpInsert:
			b.seq++
			docs[m.Doc.ID] = storedDocument{ID: m.Doc.ID, Seq: b.seq, Active: m.Doc.Active, Body: m.Doc.Body}
		case OpUpdate:
			sd := docs[m.Doc.ID]
			sd.Active, sd.Body = m.Doc.Active, m.Doc.Body
			docs[m.Doc.ID] = sd
		case OpDelete:
			delete(docs, m.Doc.ID)
		}
		if err := b.persist(m); err != nil {
			return err
		}
	}
	return nil
}

func (b *MemoryBackend) persist(m Mutation) error {
	if b.baseDir == "" {
		return nil
	}
	dir := filepath.Join(b.baseDir, m.Kind)
	path := filepath.Join(dir, string(m.Doc.ID)+".json")
	if m.Op == OpDelete {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	data, err := json.Marshal(b.kinds[m.Kind][m.Doc.ID])
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Count returns the number of stored documents of kind.
func (b *MemoryBackend) Count(kind string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.kinds[kind])
}

func (b *MemoryBackend) Close() error { return nil }
