package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mwantia/remotedisk/backend"
	"github.com/mwantia/remotedisk/data"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ChunkLimit keeps each IN-list delete below the SQLite bound-variable cap.
const ChunkLimit = 500

// SQLiteBackend stores remote objects in a single SQLite table. The dbPath
// can be ":memory:" for an in-memory database or a file path.
//
// Each keeper chunk becomes one DELETE statement, so a chunk disappears
// atomically.
type SQLiteBackend struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, err
	}

	sb := &SQLiteBackend{db: db}
	if err := sb.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return sb, nil
}

// initSchema creates the database schema.
func (sb *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS disk_objects (
		key TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		size INTEGER NOT NULL CHECK(size >= 0),
		created_at INTEGER NOT NULL
	);
	`

	_, err := sb.db.Exec(schema)
	return err
}

// Name returns the identifier name defined for this backend
func (*SQLiteBackend) Name() string {
	return "sqlite"
}

// Open is part of the lifecycle behaviour and gets called when opening this backend.
func (sb *SQLiteBackend) Open(ctx context.Context) error {
	return sb.db.PingContext(ctx)
}

// Close is part of the lifecycle behaviour and gets called when closing this backend.
func (sb *SQLiteBackend) Close(ctx context.Context) error {
	return sb.db.Close()
}

// GetCapabilities returns a list of capabilities supported by this backend.
func (sb *SQLiteBackend) GetCapabilities() *backend.BackendCapabilities {
	return &backend.BackendCapabilities{
		Capabilities: []backend.BackendCapability{
			backend.CapabilityObjectStorage,
			backend.CapabilityBatchDelete,
		},
		ChunkLimit: ChunkLimit,
	}
}

// PutObject stores an object under the given key.
func (sb *SQLiteBackend) PutObject(ctx context.Context, key string, content []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	_, err := sb.db.ExecContext(ctx, `
		INSERT INTO disk_objects (key, content, size, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, size = excluded.size`,
		key, content, len(content), time.Now().Unix())

	return err
}

// StatObject returns the stored size of an object.
func (sb *SQLiteBackend) StatObject(ctx context.Context, key string) (int64, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	var size int64
	err := sb.db.QueryRowContext(ctx, "SELECT size FROM disk_objects WHERE key = ?", key).Scan(&size)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", data.ErrNotFound, key)
	}
	if err != nil {
		return 0, err
	}

	return size, nil
}

// CreatePathKeeper returns a keeper bounded by this backend's chunk limit.
func (sb *SQLiteBackend) CreatePathKeeper() (*backend.PathKeeper, error) {
	return backend.NewPathKeeper(ChunkLimit), nil
}

// RemoveFromRemote deletes every accumulated object, one DELETE statement
// per chunk.
func (sb *SQLiteBackend) RemoveFromRemote(ctx context.Context, keeper *backend.PathKeeper) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	for _, chunk := range keeper.Chunks() {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		args := make([]any, len(chunk))
		for i, key := range chunk {
			args[i] = key
		}

		query := fmt.Sprintf("DELETE FROM disk_objects WHERE key IN (%s)", placeholders)
		if _, err := sb.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to delete %d objects: %w", len(chunk), err)
		}
	}

	return nil
}
