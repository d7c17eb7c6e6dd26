package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sawpanic/klinenode/internal/klerrors"
)

// sqliteDialect targets the embedded backend: one file, one connection,
// WAL journaling, is_final as 0/1.
type sqliteDialect struct{}

func (sqliteDialect) placeholderFormat() sq.PlaceholderFormat { return sq.Question }

func (sqliteDialect) upsertSuffix(table string) string {
	return "ON CONFLICT(symbol, open_time) DO UPDATE SET " +
		"open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close, " +
		"volume=excluded.volume, close_time=excluded.close_time, quote_volume=excluded.quote_volume, " +
		"trades=excluded.trades, taker_buy_base=excluded.taker_buy_base, " +
		"taker_buy_quote=excluded.taker_buy_quote, is_final=excluded.is_final"
}

func (sqliteDialect) finalValue(isFinal bool) interface{} {
	if isFinal {
		return int64(1)
	}
	return int64(0)
}

func (sqliteDialect) finalFromRow(v interface{}) bool {
	switch n := v.(type) {
	case int64:
		return n != 0
	case int:
		return n != 0
	case bool:
		return n
	default:
		return false
	}
}

// SQLiteStore is the embedded Bar Store backend: a single pooled connection
// to a local file, WAL mode, busy-timeout retries instead of a connection
// pool (grounded on ClusterCockpit-cc-backend's sqlite handling).
type SQLiteStore struct {
	sqlStore
	path string
}

// NewSQLiteStore builds a Store against a local SQLite file path (the part
// of DB_URL after "sqlite://").
func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", s.path)
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("%w: open sqlite %s: %v", klerrors.ErrStore, s.path, err)
	}
	// SQLite has no concurrent-writer story worth pooling; one connection
	// avoids SQLITE_BUSY races outright.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, sqliteDDL()); err != nil {
		db.Close()
		return fmt.Errorf("%w: ensure schema: %v", klerrors.ErrStore, err)
	}

	s.db = db
	s.dlct = sqliteDialect{}
	return nil
}
