package store

import (
	"fmt"
	"strings"

	"github.com/sawpanic/klinenode/internal/model"
)

// ddlTemplate is expanded once per timeframe table. %[1]s is the table name;
// %[2]s is the SQL type used for is_final and %[3]s its default, which differ
// by backend: an integer 0/1 on the embedded backend, boolean on the
// networked one.
const ddlTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	symbol TEXT NOT NULL,
	open_time BIGINT NOT NULL,
	open DOUBLE PRECISION NOT NULL,
	high DOUBLE PRECISION NOT NULL,
	low DOUBLE PRECISION NOT NULL,
	close DOUBLE PRECISION NOT NULL,
	volume DOUBLE PRECISION NOT NULL,
	close_time BIGINT NOT NULL,
	quote_volume DOUBLE PRECISION NOT NULL DEFAULT 0,
	trades BIGINT NOT NULL DEFAULT 0,
	taker_buy_base DOUBLE PRECISION NOT NULL DEFAULT 0,
	taker_buy_quote DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_final %[2]s NOT NULL DEFAULT %[3]s,
	PRIMARY KEY(symbol, open_time)
);`

const sqliteIndexTemplate = `CREATE INDEX IF NOT EXISTS idx_%[1]s_open_time ON %[1]s(open_time);`

// ddlStatements expands the template across all seven timeframe tables.
func ddlStatements(isFinalType, isFinalDefault string) []string {
	stmts := make([]string, 0, len(model.AllTimeframes)*2)
	for _, tf := range model.AllTimeframes {
		table := tf.Table()
		stmts = append(stmts, fmt.Sprintf(ddlTemplate, table, isFinalType, isFinalDefault))
		stmts = append(stmts, fmt.Sprintf(sqliteIndexTemplate, table))
	}
	return stmts
}

func sqliteDDL() string {
	return strings.Join(ddlStatements("INTEGER", "1"), "\n")
}

func postgresDDL() string {
	return strings.Join(ddlStatements("BOOLEAN", "true"), "\n")
}
