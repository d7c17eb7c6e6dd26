package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/klinenode/internal/klerrors"
	"github.com/sawpanic/klinenode/internal/model"
)

// barColumns lists the shared column order used by every INSERT/SELECT
// against the seven identically-shaped timeframe tables.
var barColumns = []string{
	"symbol", "open_time", "open", "high", "low", "close", "volume",
	"close_time", "quote_volume", "trades", "taker_buy_base",
	"taker_buy_quote", "is_final",
}

// dialect isolates the handful of ways SQLite and PostgreSQL diverge for
// this schema: placeholder style, upsert syntax, and the is_final column
// type.
type dialect interface {
	placeholderFormat() sq.PlaceholderFormat
	upsertSuffix(table string) string
	finalValue(isFinal bool) interface{}
	finalFromRow(v interface{}) bool
}

// sqlStore is the shared Store implementation for both backends; only the
// dialect and the *sqlx.DB construction differ.
type sqlStore struct {
	db   *sqlx.DB
	dlct dialect
}

func (s *sqlStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) Upsert(ctx context.Context, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tf := bars[0].Timeframe
	for _, b := range bars {
		if b.Timeframe != tf {
			return fmt.Errorf("%w: upsert batch mixes timeframes", klerrors.ErrStore)
		}
	}
	table := tf.Table()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", klerrors.ErrStore, err)
	}
	defer tx.Rollback()

	builder := sq.Insert(table).Columns(barColumns...).PlaceholderFormat(s.dlct.placeholderFormat())
	for _, b := range bars {
		builder = builder.Values(
			b.Symbol, b.OpenTime, b.Open, b.High, b.Low, b.Close, b.Volume,
			b.CloseTime, b.QuoteVolume, b.Trades, b.TakerBuyBase,
			b.TakerBuyQuote, s.dlct.finalValue(true),
		)
	}
	query, args, err := builder.Suffix(s.dlct.upsertSuffix(table)).ToSql()
	if err != nil {
		return fmt.Errorf("%w: build upsert: %v", klerrors.ErrStore, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: exec upsert: %v", klerrors.ErrStore, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit upsert: %v", klerrors.ErrStore, err)
	}
	return nil
}

func (s *sqlStore) Query(ctx context.Context, p QueryParams) ([]model.Bar, error) {
	if p.StartMs != nil && p.EndMs != nil && *p.StartMs > *p.EndMs {
		return nil, nil
	}
	limit := p.Limit
	if limit <= 0 {
		return nil, nil
	}

	// Select the most recent Limit rows in range, then re-sort ascending,
	// so callers get the most recent bars but sorted by open_time.
	inner := sq.Select(barColumns...).From(p.Timeframe.Table()).
		Where(sq.Eq{"symbol": p.Symbol}).
		OrderBy("open_time DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(s.dlct.placeholderFormat())
	if p.StartMs != nil {
		inner = inner.Where(sq.GtOrEq{"open_time": *p.StartMs})
	}
	if p.EndMs != nil {
		inner = inner.Where(sq.LtOrEq{"open_time": *p.EndMs})
	}
	if p.OnlyFinal {
		inner = inner.Where(sq.Eq{"is_final": s.dlct.finalValue(true)})
	}

	query, args, err := inner.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build query: %v", klerrors.ErrStore, err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: exec query: %v", klerrors.ErrStore, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		b, err := s.scanBar(rows, p.Timeframe)
		if err != nil {
			return nil, fmt.Errorf("%w: scan row: %v", klerrors.ErrStore, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %v", klerrors.ErrStore, err)
	}

	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func (s *sqlStore) scanBar(rows *sqlx.Rows, tf model.Timeframe) (model.Bar, error) {
	var b model.Bar
	var finalRaw interface{}
	b.Timeframe = tf
	err := rows.Scan(
		&b.Symbol, &b.OpenTime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume,
		&b.CloseTime, &b.QuoteVolume, &b.Trades, &b.TakerBuyBase,
		&b.TakerBuyQuote, &finalRaw,
	)
	if err != nil {
		return b, err
	}
	b.IsFinal = s.dlct.finalFromRow(finalRaw)
	return b, nil
}

func (s *sqlStore) MaxOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error) {
	return s.boundary(ctx, tf, "MAX(open_time)")
}

func (s *sqlStore) MinOpenTime(ctx context.Context, tf model.Timeframe) (int64, bool, error) {
	return s.boundary(ctx, tf, "MIN(open_time)")
}

func (s *sqlStore) boundary(ctx context.Context, tf model.Timeframe, agg string) (int64, bool, error) {
	query, args, err := sq.Select(agg).From(tf.Table()).
		PlaceholderFormat(s.dlct.placeholderFormat()).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("%w: build boundary query: %v", klerrors.ErrStore, err)
	}
	var v sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("%w: exec boundary query: %v", klerrors.ErrStore, err)
	}
	if !v.Valid {
		return 0, false, nil
	}
	return v.Int64, true, nil
}
