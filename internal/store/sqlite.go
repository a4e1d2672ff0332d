// ABOUTME: SQLite implementation of the conversation, memory and job stores
// ABOUTME: Uses modernc.org/sqlite by default, mattn/go-sqlite3 when the sqlite3 driver is selected

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // pure Go, default
	DriverMattn   = "sqlite3" // cgo
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db        *sql.DB
	logger    *slog.Logger
	memoryTTL time.Duration
	now       func() time.Time
}

// Option customises a SQLiteStore
type Option func(*SQLiteStore)

// WithMemoryTTL sets the expiry for well-known memory keys (default 30 days).
func WithMemoryTTL(ttl time.Duration) Option {
	return func(s *SQLiteStore) { s.memoryTTL = ttl }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) { s.now = now }
}

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger.With("component", "store")
		}
	}
}

// NewSQLiteStore opens a SQLite store at path with the default pure-Go driver.
// The schema is created if it doesn't exist; parent directories are created if needed.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	return OpenSQLiteStore(DriverModernc, path, opts...)
}

// OpenSQLiteStore opens a SQLite store using the named driver.
func OpenSQLiteStore(driver, path string, opts ...Option) (*SQLiteStore, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single connection: writers are serialized by database/sql and an
	// in-memory database stays alive for the lifetime of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s := &SQLiteStore{
		db:        db,
		logger:    slog.Default().With("component", "store"),
		memoryTTL: DefaultMemoryTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("SQLite store initialized", "path", path, "driver", driver)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			state_json      TEXT NOT NULL,
			updated_at      TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS customer_memory (
			project_id       TEXT NOT NULL,
			customer_id      TEXT NOT NULL,
			data_json        TEXT NOT NULL,
			key_updated_json TEXT NOT NULL DEFAULT '{}',
			updated_at       TEXT NOT NULL,
			PRIMARY KEY (project_id, customer_id)
		);

		CREATE TABLE IF NOT EXISTS jobs (
			job_id          TEXT PRIMARY KEY,
			status          TEXT NOT NULL,
			conversation_id TEXT NOT NULL,
			message_id      TEXT,
			response_text   TEXT,
			error_text      TEXT,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			CHECK (status IN ('pending', 'running', 'succeeded', 'failed')),
			CHECK (response_text IS NULL OR error_text IS NULL)
		);

		CREATE INDEX IF NOT EXISTS idx_jobs_conversation ON jobs(conversation_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies idempotent column additions for older databases.
func (s *SQLiteStore) runMigrations() error {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('customer_memory') WHERE name = 'key_updated_json'`).Scan(&exists)
	if err == nil {
		return nil
	}
	if _, err := s.db.Exec(`ALTER TABLE customer_memory ADD COLUMN key_updated_json TEXT NOT NULL DEFAULT '{}'`); err != nil {
		return fmt.Errorf("adding key_updated_json column to customer_memory: %w", err)
	}
	s.logger.Info("applied migration", "column", "key_updated_json", "table", "customer_memory")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// GetConversation loads a conversation state by id.
// Returns ErrNotFound if the conversation doesn't exist.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*ConversationState, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM conversations WHERE conversation_id = ?`, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}

	var state ConversationState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("decoding conversation %s: %w", id, err)
	}
	if state.CustomerMemory == nil {
		state.CustomerMemory = map[string]string{}
	}
	return &state, nil
}

// PutConversation writes the whole state, replacing any previous version.
func (s *SQLiteStore) PutConversation(ctx context.Context, state *ConversationState) error {
	if state.ConversationID == "" {
		return errors.New("conversation_id is required")
	}
	state.UpdatedAt = s.now().UTC()

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding conversation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (conversation_id, state_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at
	`, state.ConversationID, string(raw), state.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}

	s.logger.Debug("saved conversation", "conversation_id", state.ConversationID, "messages", len(state.Messages))
	return nil
}

// GetMemory returns the customer's memory with expired keys filtered out.
func (s *SQLiteStore) GetMemory(ctx context.Context, projectID, customerID string) (*CustomerMemory, error) {
	mem, err := s.readMemory(ctx, s.db, projectID, customerID)
	if err != nil {
		return nil, err
	}
	filterExpired(mem, s.memoryTTL, s.now())
	return mem, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) readMemory(ctx context.Context, q queryRower, projectID, customerID string) (*CustomerMemory, error) {
	var dataJSON, keysJSON, updatedAt string
	err := q.QueryRowContext(ctx, `
		SELECT data_json, key_updated_json, updated_at
		FROM customer_memory WHERE project_id = ? AND customer_id = ?
	`, projectID, customerID).Scan(&dataJSON, &keysJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer memory: %w", err)
	}

	mem := &CustomerMemory{
		ProjectID:    projectID,
		CustomerID:   customerID,
		Data:         map[string]string{},
		KeyUpdatedAt: map[string]time.Time{},
	}
	if err := json.Unmarshal([]byte(dataJSON), &mem.Data); err != nil {
		return nil, fmt.Errorf("decoding customer memory: %w", err)
	}

	var rawKeys map[string]string
	if err := json.Unmarshal([]byte(keysJSON), &rawKeys); err != nil {
		s.logger.Warn("unreadable memory key timestamps", "project_id", projectID, "customer_id", customerID, "error", err)
	}
	for k, v := range rawKeys {
		// An unparsable timestamp stays as the zero time and counts as expired.
		ts, _ := time.Parse(time.RFC3339Nano, v)
		mem.KeyUpdatedAt[k] = ts
	}
	mem.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return mem, nil
}

// UpsertMemory replaces the customer's slot data. Per-key timestamps are
// refreshed only for keys whose value changed.
func (s *SQLiteStore) UpsertMemory(ctx context.Context, projectID, customerID string, data map[string]string) (*CustomerMemory, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning memory upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var prevData map[string]string
	var prevTS map[string]time.Time
	prev, err := s.readMemory(ctx, tx, projectID, customerID)
	switch {
	case err == nil:
		prevData, prevTS = prev.Data, prev.KeyUpdatedAt
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	now := s.now().UTC()
	mem := &CustomerMemory{
		ProjectID:    projectID,
		CustomerID:   customerID,
		Data:         make(map[string]string, len(data)),
		KeyUpdatedAt: mergeKeyTimestamps(prevData, prevTS, data, now),
		UpdatedAt:    now,
	}
	for k, v := range data {
		mem.Data[k] = v
	}

	rawKeys := make(map[string]string, len(mem.KeyUpdatedAt))
	for k, ts := range mem.KeyUpdatedAt {
		rawKeys[k] = ts.Format(time.RFC3339Nano)
	}
	dataJSON, err := json.Marshal(mem.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding customer memory: %w", err)
	}
	keysJSON, err := json.Marshal(rawKeys)
	if err != nil {
		return nil, fmt.Errorf("encoding memory timestamps: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO customer_memory (project_id, customer_id, data_json, key_updated_json, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id, customer_id) DO UPDATE SET
			data_json = excluded.data_json,
			key_updated_json = excluded.key_updated_json,
			updated_at = excluded.updated_at
	`, projectID, customerID, string(dataJSON), string(keysJSON), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("upserting customer memory: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing customer memory: %w", err)
	}

	s.logger.Debug("upserted customer memory", "project_id", projectID, "customer_id", customerID, "keys", len(data))
	return mem, nil
}

// DeleteMemory removes everything stored for the customer. Deleting a
// missing record is not an error.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, projectID, customerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM customer_memory WHERE project_id = ? AND customer_id = ?`,
		projectID, customerID)
	if err != nil {
		return fmt.Errorf("deleting customer memory: %w", err)
	}
	return nil
}

// CreateJob inserts a new job record. Jobs must start pending.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *JobRecord) error {
	if job.JobID == "" {
		return errors.New("job_id is required")
	}
	if job.Status == "" {
		job.Status = JobPending
	}
	if job.Status != JobPending {
		return fmt.Errorf("%w: jobs are created pending, got %s", ErrInvalidTransition, job.Status)
	}
	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, status, conversation_id, message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, job.JobID, string(job.Status), job.ConversationID, nullString(job.MessageID),
		job.CreatedAt.Format(time.RFC3339Nano), job.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id. Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*JobRecord, error) {
	var (
		job                            JobRecord
		status                         string
		messageID, response, errorText sql.NullString
		createdAt, updatedAt           string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT job_id, status, conversation_id, message_id, response_text, error_text, created_at, updated_at
		FROM jobs WHERE job_id = ?
	`, id).Scan(&job.JobID, &status, &job.ConversationID, &messageID, &response, &errorText, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying job: %w", err)
	}

	job.Status = JobStatus(status)
	job.MessageID = messageID.String
	job.ResponseText = response.String
	job.ErrorText = errorText.String
	if job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if job.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &job, nil
}

// TransitionJob moves a job from one status to another. The update is
// conditional on the current status, so a concurrent or repeated
// transition fails with ErrInvalidTransition instead of going backwards.
func (s *SQLiteStore) TransitionJob(ctx context.Context, id string, from JobStatus, update JobUpdate) (*JobRecord, error) {
	if err := update.validate(from); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, response_text = ?, error_text = ?, updated_at = ?
		WHERE job_id = ? AND status = ?
	`, string(update.Status), nullString(update.ResponseText), nullString(update.ErrorText),
		s.now().UTC().Format(time.RFC3339Nano), id, string(from))
	if err != nil {
		return nil, fmt.Errorf("updating job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking job update: %w", err)
	}
	if n == 0 {
		if _, err := s.GetJob(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidTransition
	}
	return s.GetJob(ctx, id)
}

// nullString maps "" to SQL NULL
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*SQLiteStore)(nil)
