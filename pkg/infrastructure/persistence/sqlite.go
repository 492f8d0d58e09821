package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/domain"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/logger"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/metrics"
	"github.com/LTeruyaQ/TechChallenge-SOAT1-sub005/pkg/query"
)

// ---------------------------------------------------------------------------
// SQLite backend
// ---------------------------------------------------------------------------

const schemaSQL = `CREATE TABLE IF NOT EXISTS documents (
	kind   TEXT    NOT NULL,
	id     TEXT    NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	body   TEXT    NOT NULL,
	PRIMARY KEY (kind, id)
)`

// SQLiteBackend stores every kind in one documents table with the entity
// serialized as JSON. Filters are translated to SQL over json_extract; a
// filter with no SQL rendering is evaluated in process after loading the
// whole kind.
type SQLiteBackend struct {
	db *sql.DB
}

var _ Backend = (*SQLiteBackend)(nil)

// OpenSQLite opens dsn with the sqlite3 driver and creates the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// A single connection serializes writers and keeps :memory: databases
	// alive across calls.
	db.SetMaxOpenConns(1)
	b := NewSQLiteBackend(db)
	if err := b.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// NewSQLiteBackend wraps an open database. Call Migrate before use.
func NewSQLiteBackend(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// Migrate creates the documents table if it does not exist.
func (b *SQLiteBackend) Migrate(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) Scan(ctx context.Context, kind string, typ reflect.Type, filter *query.Lambda) ([]Document, error) {
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	start := time.Now()
	where, args, err := translate(filter)
	pushdown := err == nil
	if !pushdown {
		if !errors.Is(err, ErrUntranslatable) {
			return nil, err
		}
		logger.DebugCF("persistence", "Filtering in process", map[string]interface{}{
			"kind":   kind,
			"reason": err.Error(),
		})
		where, args = "1 = 1", nil
	}

	stmt := "SELECT id, active, body FROM documents WHERE kind = ? AND " + where + " ORDER BY rowid"
	rows, err := b.db.QueryContext(ctx, stmt, append([]any{kind}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", kind, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d    Document
			body string
		)
		if err := rows.Scan(&d.ID, &d.Active, &body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		d.Body = []byte(body)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", kind, err)
	}

	if !pushdown {
		if docs, err = filterDocuments(typ, filter, docs); err != nil {
			return nil, err
		}
	}
	metrics.RecordQuery(kind, b.Name(), pushdown, len(docs), time.Since(start))
	return docs, nil
}

// Apply runs the batch in one transaction.
func (b *SQLiteBackend) Apply(ctx context.Context, muts []Mutation) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, m := range muts {
		if err = applyOne(ctx, tx, m); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func applyOne(ctx context.Context, tx *sql.Tx, m Mutation) error {
	var (
		res sql.Result
		err error
	)
	switch m.Op {
	case OpInsert:
		var exists int
		err = tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM documents WHERE kind = ? AND id = ?", m.Kind, m.Doc.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("insert %s/%s: %w", m.Kind, m.Doc.ID, err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateKey, m.Kind, m.Doc.ID)
		}
		res, err = tx.ExecContext(ctx, "INSERT INTO documents (kind, id, active, body) VALUES (?, ?, ?, ?)",
			m.Kind, m.Doc.ID, m.Doc.Active, string(m.Doc.Body))
	case OpUpdate:
		res, err = tx.ExecContext(ctx, "UPDATE documents SET active = ?, body = ? WHERE kind = ? AND id = ?",
			m.Doc.Active, string(m.Doc.Body), m.Kind, m.Doc.ID)
	case OpDelete:
		res, err = tx.ExecContext(ctx, "DELETE FROM documents WHERE kind = ? AND id = ?", m.Kind, m.Doc.ID)
	}
	if err != nil {
		return fmt.Errorf("%s %s/%s: %w", m.Op, m.Kind, m.Doc.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, m.Kind, m.Doc.ID)
	}
	return nil
}

func (b *SQLiteBackend) Close() error { return b.db.Close() }
