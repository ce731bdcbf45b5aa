// Package sqlite persists the registry in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pvefleet/internal/registry"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

var _ registry.Store = (*Store)(nil)

// Open creates the database file (and parent directory) if needed and applies
// the schema. The unique index on (host_id, container_id) backs the registry's
// de-duplication invariant.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open registry db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set registry db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set registry db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS hosts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	address TEXT NOT NULL DEFAULT '',
	user TEXT NOT NULL DEFAULT '',
	port INTEGER NOT NULL DEFAULT 0,
	key_path TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS scripts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	source_path TEXT NOT NULL DEFAULT '',
	container_id TEXT,
	host_id INTEGER,
	execution_mode TEXT NOT NULL DEFAULT 'local',
	status TEXT NOT NULL DEFAULT 'in_progress',
	output_log TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS scripts_host_container
	ON scripts (host_id, container_id)
	WHERE host_id IS NOT NULL AND container_id IS NOT NULL
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize registry schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *Store) CreateHost(ctx context.Context, h registry.Host) (registry.Host, error) {
	name := strings.TrimSpace(h.Name)
	if name == "" {
		return registry.Host{}, fmt.Errorf("host name is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO hosts (name, address, user, port, key_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		name, h.Address, h.User, h.Port, h.KeyPath, now(),
	)
	if err != nil {
		return registry.Host{}, fmt.Errorf("create host %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return registry.Host{}, fmt.Errorf("create host %q: %w", name, err)
	}
	h.ID = id
	h.Name = name
	return h, nil
}

func (s *Store) GetHost(ctx context.Context, id int64) (registry.Host, bool, error) {
	var h registry.Host
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, user, port, key_path FROM hosts WHERE id = ?`, id,
	).Scan(&h.ID, &h.Name, &h.Address, &h.User, &h.Port, &h.KeyPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.Host{}, false, nil
		}
		return registry.Host{}, false, fmt.Errorf("query host %d: %w", id, err)
	}
	return h, true, nil
}

func (s *Store) ListHosts(ctx context.Context) ([]registry.Host, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, user, port, key_path FROM hosts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close()

	out := make([]registry.Host, 0)
	for rows.Next() {
		var h registry.Host
		if err := rows.Scan(&h.ID, &h.Name, &h.Address, &h.User, &h.Port, &h.KeyPath); err != nil {
			return nil, fmt.Errorf("scan host row: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate host rows: %w", err)
	}
	return out, nil
}

func (s *Store) DeleteHost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hosts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete host %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func (s *Store) CreateRecord(ctx context.Context, r registry.ScriptRecord) (registry.ScriptRecord, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return registry.ScriptRecord{}, fmt.Errorf("record name is required")
	}
	mode := r.ExecutionMode
	if mode == "" {
		mode = registry.ModeLocal
	}
	status := r.Status
	if status == "" {
		status = registry.InstallInProgress
	}

	updated := now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scripts (name, source_path, container_id, host_id, execution_mode, status, output_log, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, r.SourcePath, nullString(r.ContainerID), nullInt(r.HostID),
		string(mode), string(status), r.OutputLog, updated,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return registry.ScriptRecord{}, registry.ErrDuplicateRecord
		}
		return registry.ScriptRecord{}, fmt.Errorf("create record %q: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return registry.ScriptRecord{}, fmt.Errorf("create record %q: %w", name, err)
	}
	r.ID = id
	r.Name = name
	r.ExecutionMode = mode
	r.Status = status
	r.UpdatedAt = updated
	return r, nil
}

func (s *Store) GetRecordByKey(ctx context.Context, hostID int64, containerID string) (registry.ScriptRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		recordSelect+` WHERE host_id = ? AND container_id = ?`, hostID, containerID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.ScriptRecord{}, false, nil
		}
		return registry.ScriptRecord{}, false, fmt.Errorf("query record host=%d container=%s: %w", hostID, containerID, err)
	}
	return rec, true, nil
}

func (s *Store) ListRecords(ctx context.Context) ([]registry.ScriptRecord, error) {
	return s.listRecords(ctx, recordSelect+` ORDER BY name, id`)
}

func (s *Store) ListRemoteRecords(ctx context.Context) ([]registry.ScriptRecord, error) {
	return s.listRecords(ctx,
		recordSelect+` WHERE execution_mode = 'remote'
		 AND host_id IS NOT NULL AND container_id IS NOT NULL ORDER BY host_id, container_id`)
}

func (s *Store) listRecords(ctx context.Context, query string) ([]registry.ScriptRecord, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make([]registry.ScriptRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateRecordStatus(ctx context.Context, id int64, status registry.InstallStatus, outputLog string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scripts SET status = ?, output_log = ?, updated_at = ? WHERE id = ?`,
		string(status), outputLog, now(), id,
	)
	if err != nil {
		return fmt.Errorf("update record %d status: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

const recordSelect = `SELECT id, name, source_path, container_id, host_id, execution_mode, status, output_log, updated_at FROM scripts`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (registry.ScriptRecord, error) {
	var (
		rec         registry.ScriptRecord
		containerID sql.NullString
		hostID      sql.NullInt64
		mode        string
		status      string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &rec.SourcePath, &containerID, &hostID,
		&mode, &status, &rec.OutputLog, &rec.UpdatedAt); err != nil {
		return registry.ScriptRecord{}, err
	}
	rec.ContainerID = containerID.String
	rec.HostID = hostID.Int64
	rec.ExecutionMode = registry.ExecutionMode(mode)
	rec.Status = registry.InstallStatus(status)
	return rec, nil
}

func nullString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
