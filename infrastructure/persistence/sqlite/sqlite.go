// Package sqlite 嵌入式拓扑仓储：每个拓扑一行，完整快照存 JSON 列
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"microgrid/domain/shared"
	"microgrid/domain/topology"
	"microgrid/infrastructure/snapshot"
	"microgrid/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Open opens (and migrates) the database at path; ":memory:" is allowed
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("SQLite database opened", zap.String("path", path))
	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS topologies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		data JSON NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_topologies_status ON topologies(status);
	CREATE INDEX IF NOT EXISTS idx_topologies_created ON topologies(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Repository implements topology.Repository on SQLite
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) NextIdentity() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Save inserts new topologies and updates existing ones under the version check
func (r *Repository) Save(ctx context.Context, t *topology.MicrogridTopology) error {
	q := querier(ctx, r.db)

	nextVersion := t.Version() + 1
	doc := snapshot.FromDomain(t)
	doc.Version = nextVersion
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}
	updatedAt := formatTime(t.UpdatedAt())

	if t.IsNew() {
		_, err := q.ExecContext(ctx, `
			INSERT INTO topologies (id, name, status, version, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, t.ID(), t.Name(), string(t.Status()), nextVersion, string(data), formatTime(t.CreatedAt()), updatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return shared.NewConflictError("topology", "topology already exists: "+t.ID())
			}
			return fmt.Errorf("failed to insert topology: %w", err)
		}
	} else {
		res, err := q.ExecContext(ctx, `
			UPDATE topologies
			SET name = ?, status = ?, version = ?, data = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`, t.Name(), string(t.Status()), nextVersion, string(data), updatedAt, t.ID(), t.Version())
		if err != nil {
			return fmt.Errorf("failed to update topology: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			exists, err := r.exists(ctx, q, t.ID())
			if err != nil {
				return err
			}
			if !exists {
				return topology.NewTopologyNotFoundError(t.ID())
			}
			return topology.NewConcurrentModificationError(t.ID())
		}
	}

	t.IncrementVersionForSave()
	return nil
}

func (r *Repository) exists(ctx context.Context, q queryer, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM topologies WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query topology: %w", err)
	}
	return true, nil
}

// FindByID loads the snapshot; the version column is authoritative
func (r *Repository) FindByID(ctx context.Context, id string) (*topology.MicrogridTopology, error) {
	var (
		data    []byte
		version int
	)
	err := querier(ctx, r.db).QueryRowContext(ctx, `
		SELECT data, version FROM topologies WHERE id = ?
	`, id).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, topology.NewTopologyNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query topology: %w", err)
	}
	return decode(data, version)
}

// FindAll loads every topology in creation order and filters by spec.
// A bare status specification is answered by the index.
func (r *Repository) FindAll(ctx context.Context, spec shared.Specification[*topology.MicrogridTopology]) ([]*topology.MicrogridTopology, error) {
	query := `SELECT data, version FROM topologies`
	var args []any
	if s, ok := spec.(topology.ByStatusSpecification); ok {
		query += ` WHERE status = ?`
		args = append(args, string(s.Status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := querier(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query topologies: %w", err)
	}
	defer rows.Close()

	var out []*topology.MicrogridTopology
	for rows.Next() {
		var (
			data    []byte
			version int
		)
		if err := rows.Scan(&data, &version); err != nil {
			return nil, fmt.Errorf("failed to scan topology: %w", err)
		}
		t, err := decode(data, version)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating topologies: %w", err)
	}
	return shared.Filter(ctx, spec, out), nil
}

func (r *Repository) Remove(ctx context.Context, id string) error {
	res, err := querier(ctx, r.db).ExecContext(ctx, `DELETE FROM topologies WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete topology: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return topology.NewTopologyNotFoundError(id)
	}
	return nil
}

func decode(data []byte, version int) (*topology.MicrogridTopology, error) {
	var doc snapshot.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal topology data: %w", err)
	}
	doc.Version = version
	return doc.Restore()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ topology.Repository = (*Repository)(nil)
