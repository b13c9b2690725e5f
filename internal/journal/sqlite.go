package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

// swapRow is the table shape shared by the SQL backends.
type swapRow struct {
	bun.BaseModel `bun:"table:swaps"`

	ID        int64  `bun:"id,pk,autoincrement"`
	TxHash    string `bun:"tx_hash,notnull,unique:swaps_tx_log"`
	LogIndex  int64  `bun:"log_index,notnull,unique:swaps_tx_log"`
	Block     int64  `bun:"block,notnull"`
	Source    string `bun:"source,notnull"`
	Target    string `bun:"target,notnull"`
	Caller    string `bun:"caller,notnull"`
	AmountIn  string `bun:"amount_in,notnull"`
	AmountOut string `bun:"amount_out,notnull"`
	Timestamp int64  `bun:"recorded_at,notnull"`
}

func newSwapRow(r *Record) *swapRow {
	return &swapRow{
		TxHash:    r.TxHash.Hex(),
		LogIndex:  int64(r.LogIndex),
		Block:     int64(r.Block),
		Source:    r.Source.Hex(),
		Target:    r.Target.Hex(),
		Caller:    r.Caller.Hex(),
		AmountIn:  r.AmountIn.Dec(),
		AmountOut: r.AmountOut.Dec(),
		Timestamp: r.Timestamp,
	}
}

func (row *swapRow) record() (*Record, error) {
	in, err := parseAmount(row.AmountIn)
	if err != nil {
		return nil, err
	}
	out, err := parseAmount(row.AmountOut)
	if err != nil {
		return nil, err
	}
	return &Record{
		TxHash:    common.HexToHash(row.TxHash),
		LogIndex:  uint(row.LogIndex),
		Block:     uint64(row.Block),
		Source:    common.HexToAddress(row.Source),
		Target:    common.HexToAddress(row.Target),
		Caller:    common.HexToAddress(row.Caller),
		AmountIn:  in,
		AmountOut: out,
		Timestamp: row.Timestamp,
	}, nil
}

// SQLiteStore is a Store backed by an embedded SQLite database.
type SQLiteStore struct {
	db *bun.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serialises writers anyway, and ":memory:" is per connection.
	sqlDB.SetMaxOpenConns(1)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.NewCreateTable().Model((*swapRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create swaps table: %w", err)
	}
	for name, cols := range map[string][]string{
		"swaps_direction_idx": {"source", "target"},
		"swaps_caller_idx":    {"caller"},
	} {
		_, err := db.NewCreateIndex().Model((*swapRow)(nil)).Index(name).Column(cols...).IfNotExists().Exec(ctx)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create index %s: %w", name, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	if _, err := s.db.NewInsert().Model(newSwapRow(r)).Exec(ctx); err != nil {
		if isUniqueConstraint(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert swap: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListByDirection(ctx context.Context, source, target common.Address, limit int) ([]*Record, error) {
	var rows []swapRow
	err := s.db.NewSelect().Model(&rows).
		Where("source = ?", source.Hex()).
		Where("target = ?", target.Hex()).
		OrderExpr("id DESC").
		Limit(clampLimit(limit)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query swaps by direction: %w", err)
	}
	return toRecords(rows)
}

func (s *SQLiteStore) ListByCaller(ctx context.Context, caller common.Address, limit int) ([]*Record, error) {
	var rows []swapRow
	err := s.db.NewSelect().Model(&rows).
		Where("caller = ?", caller.Hex()).
		OrderExpr("id DESC").
		Limit(clampLimit(limit)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("query swaps by caller: %w", err)
	}
	return toRecords(rows)
}

func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().Model((*swapRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count swaps: %w", err)
	}
	return int64(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func toRecords(rows []swapRow) ([]*Record, error) {
	out := make([]*Record, 0, len(rows))
	for i := range rows {
		r, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// isUniqueConstraint matches the driver's message rather than importing its
// error types.
func isUniqueConstraint(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
