package journal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

const pgErrUniqueViolation = "23505"

// PostgresStore is a Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgres connects, pings and migrates the database at dsn.
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

	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// migratePostgres applies every embedded migration in lexical order. Each
// file is idempotent.
func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	files, err := fs.Glob(postgresMigrations, "migrations/postgres/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, name := range files {
		body, err := postgresMigrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(body)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}

	const query = `
		INSERT INTO swaps (tx_hash, log_index, block, source, target, caller, amount_in, amount_out, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		r.TxHash.Hex(),
		int64(r.LogIndex),
		int64(r.Block),
		r.Source.Hex(),
		r.Target.Hex(),
		r.Caller.Hex(),
		r.AmountIn.Dec(),
		r.AmountOut.Dec(),
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT tx_hash, log_index, block, source, target, caller, amount_in::text, amount_out::text, recorded_at
	FROM swaps
`

func (s *PostgresStore) ListByDirection(ctx context.Context, source, target common.Address, limit int) ([]*Record, error) {
	query := selectColumns + `WHERE source = $1 AND target = $2 ORDER BY id DESC LIMIT $3`
	rows, err := s.pool.Query(ctx, query, source.Hex(), target.Hex(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query swaps by direction: %w", err)
	}
	return scanRecords(rows)
}

func (s *PostgresStore) ListByCaller(ctx context.Context, caller common.Address, limit int) ([]*Record, error) {
	query := selectColumns + `WHERE caller = $1 ORDER BY id DESC LIMIT $2`
	rows, err := s.pool.Query(ctx, query, caller.Hex(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query swaps by caller: %w", err)
	}
	return scanRecords(rows)
}

func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM swaps`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count swaps: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanRecords(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var row swapRow
		if err := rows.Scan(
			&row.TxHash, &row.LogIndex, &row.Block,
			&row.Source, &row.Target, &row.Caller,
			&row.AmountIn, &row.AmountOut, &row.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan swap: %w", err)
		}
		r, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swaps: %w", err)
	}
	return out, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return false
}
