package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/sawpanic/klinenode/internal/klerrors"
)

// postgresDialect targets the networked backend: pooled connections,
// dollar placeholders, native upsert via ON CONFLICT, is_final as boolean.
type postgresDialect struct{}

func (postgresDialect) placeholderFormat() sq.PlaceholderFormat { return sq.Dollar }

func (postgresDialect) upsertSuffix(table string) string {
	return "ON CONFLICT (symbol, open_time) DO UPDATE SET " +
		"open=excluded.open, high=excluded.high, low=excluded.low, close=excluded.close, " +
		"volume=excluded.volume, close_time=excluded.close_time, quote_volume=excluded.quote_volume, " +
		"trades=excluded.trades, taker_buy_base=excluded.taker_buy_base, " +
		"taker_buy_quote=excluded.taker_buy_quote, is_final=excluded.is_final"
}

func (postgresDialect) finalValue(isFinal bool) interface{} { return isFinal }

func (postgresDialect) finalFromRow(v interface{}) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	default:
		return false
	}
}

// PostgresStore is the networked Bar Store backend: a connection pool sized
// from DB_POOL_SIZE (grounded on ClusterCockpit-cc-backend's pooled
// dbConnection, adapted here to lib/pq instead of MySQL).
type PostgresStore struct {
	sqlStore
	dsn      string
	poolSize int
}

// NewPostgresStore builds a Store against a postgres:// DSN with the pool
// sized by poolSize, configured from DB_POOL_SIZE.
func NewPostgresStore(dsn string, poolSize int) *PostgresStore {
	return &PostgresStore{dsn: dsn, poolSize: poolSize}
}

func (s *PostgresStore) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(ctx, "postgres", s.dsn)
	if err != nil {
		return fmt.Errorf("%w: open postgres: %v", klerrors.ErrStore, err)
	}
	size := s.poolSize
	if size < 1 {
		size = 1
	}
	db.SetMaxOpenConns(size)
	db.SetMaxIdleConns(size)
	db.SetConnMaxLifetime(30 * time.Minute)

	if _, err := db.ExecContext(ctx, postgresDDL()); err != nil {
		db.Close()
		return fmt.Errorf("%w: ensure schema: %v", klerrors.ErrStore, err)
	}

	s.db = db
	s.dlct = postgresDialect{}
	return nil
}
