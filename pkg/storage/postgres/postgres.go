// Package postgres provides a PostgreSQL implementation of storage.CallStore.
// It uses pgx/v5 for connection pooling and JSONB for the request and
// response bodies.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/modelapi/pkg/api"
	"github.com/rhuss/modelapi/pkg/storage"
)

// Store is a PostgreSQL-backed CallStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.CallStore at compile time.
var _ storage.CallStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

const selectColumns = `
	SELECT id, provider, model, connection_key, status, error,
	       request, response, elapsed_ms,
	       usage_input_tokens, usage_output_tokens, usage_total_tokens,
	       created_at
	FROM model_calls`

// SaveCall persists a call record.
func (s *Store) SaveCall(ctx context.Context, rec *storage.CallRecord) error {
	if rec.Call == nil {
		return errors.New("saving call: record has no ModelCall")
	}
	tenantID := storage.TenantFrom(ctx)

	var usageIn, usageOut, usageTotal *int
	if rec.Usage != nil {
		usageIn, usageOut, usageTotal = &rec.Usage.InputTokens, &rec.Usage.OutputTokens, &rec.Usage.TotalTokens
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO model_calls (
			id, tenant_id, provider, model, connection_key, status, error,
			request, response, elapsed_ms,
			usage_input_tokens, usage_output_tokens, usage_total_tokens,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		rec.ID(), tenantID, rec.Provider, rec.Model, rec.ConnectionKey, rec.Status, nullString(rec.Error),
		nullJSON(rec.Call.Request()), nullJSON(rec.Call.Response()), float64(rec.Call.Time())/float64(time.Millisecond),
		usageIn, usageOut, usageTotal,
		rec.Call.CreatedAt(),
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting call: %w", err)
	}

	return nil
}

// GetCall retrieves a call record by id.
func (s *Store) GetCall(ctx context.Context, id string) (*storage.CallRecord, error) {
	query := selectColumns + " WHERE id = $1"
	args := []any{id}
	if tenantID := storage.TenantFrom(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	rec, err := scanRecord(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying call: %w", err)
	}
	return rec, nil
}

// ListCalls returns matching records, newest first.
func (s *Store) ListCalls(ctx context.Context, opts storage.ListOptions) ([]*storage.CallRecord, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if tenantID := storage.TenantFrom(ctx); tenantID != "" {
		add("tenant_id = $%d", tenantID)
	}
	if opts.Provider != "" {
		add("provider = $%d", opts.Provider)
	}
	if opts.Model != "" {
		add("model = $%d", opts.Model)
	}
	if opts.Status != "" {
		add("status = $%d", opts.Status)
	}
	if !opts.Since.IsZero() {
		add("created_at >= $%d", opts.Since)
	}
	if opts.After != "" {
		// Keyset pagination on (created_at, id) relative to the cursor row.
		add("(created_at, id) < (SELECT created_at, id FROM model_calls WHERE id = $%d)", opts.After)
	}

	query := selectColumns
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, opts.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	records := []*storage.CallRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing calls: %w", err)
	}
	return records, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (*storage.CallRecord, error) {
	var (
		id, provider, model, connKey, status string
		errText                              *string
		request, response                    []byte
		elapsedMS                            float64
		usageIn, usageOut, usageTotal        *int
		createdAt                            time.Time
	)
	if err := row.Scan(
		&id, &provider, &model, &connKey, &status, &errText,
		&request, &response, &elapsedMS,
		&usageIn, &usageOut, &usageTotal,
		&createdAt,
	); err != nil {
		return nil, err
	}

	rec := &storage.CallRecord{
		Call: api.RestoreModelCall(id, request, response,
			time.Duration(elapsedMS*float64(time.Millisecond)), createdAt.UTC()),
		Provider:      provider,
		Model:         model,
		ConnectionKey: connKey,
		Status:        status,
	}
	if errText != nil {
		rec.Error = *errText
	}
	if usageIn != nil && usageOut != nil && usageTotal != nil {
		rec.Usage = &api.ModelUsage{InputTokens: *usageIn, OutputTokens: *usageOut, TotalTokens: *usageTotal}
	}
	return rec, nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
