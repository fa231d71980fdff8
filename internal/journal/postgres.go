package journal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// PostgresStore is a journal backed by a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects, pings and applies the embedded migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies all embedded SQL files in lexical order. Files are idempotent.
func (s *PostgresStore) migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if _, err := s.pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() { s.pool.Close() }

// Append inserts e and sets e.ID. Returns ErrDuplicateKey if the tx hash is already journaled.
func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	if err := e.validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO swap_journal (
			created_at, wallet, venue, token_in, token_out, hop, amount, per_mille,
			tx_hash, outcome, reason, gas_used, fee_paid
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13::numeric)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		e.Time.UTC(),
		e.Wallet,
		e.Venue,
		e.TokenIn,
		e.TokenOut,
		e.Hop,
		numericText(e.Amount),
		e.PerMille,
		e.TxHash,
		e.Outcome,
		e.Reason,
		int64(e.GasUsed),
		numericText(e.FeePaid),
	).Scan(&e.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// List returns entries ordered by id.
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := `
		SELECT id, created_at, wallet, venue, token_in, token_out, hop, amount::text, per_mille,
		       tx_hash, outcome, reason, gas_used, fee_paid::text
		FROM swap_journal
		WHERE ($1::text = '' OR wallet = $1::text)
		ORDER BY id
	`
	args := []any{opts.Wallet}
	if opts.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, opts.Limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e           Entry
			amount, fee *string
			gasUsed     int64
		)
		if err := rows.Scan(&e.ID, &e.Time, &e.Wallet, &e.Venue, &e.TokenIn, &e.TokenOut, &e.Hop,
			&amount, &e.PerMille, &e.TxHash, &e.Outcome, &e.Reason, &gasUsed, &fee); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		e.GasUsed = uint64(gasUsed)
		e.Amount = parseNumeric(amount)
		e.FeePaid = parseNumeric(fee)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return out, nil
}

func numericText(x *big.Int) *string {
	if x == nil {
		return nil
	}
	s := x.String()
	return &s
}

func parseNumeric(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
