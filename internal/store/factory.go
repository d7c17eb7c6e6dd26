package store

import (
	"fmt"
	"strings"

	"github.com/sawpanic/klinenode/internal/klerrors"
)

// New builds the Store backend named by dbURL's scheme: "sqlite://" for the
// embedded file backend, "postgres://"/"postgresql://" for the networked
// pool. dbURL comes from DB_URL.
func New(dbURL string, poolSize int) (Store, error) {
	switch {
	case strings.HasPrefix(dbURL, "sqlite://"):
		path := strings.TrimPrefix(dbURL, "sqlite://")
		return NewSQLiteStore(path), nil
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return NewPostgresStore(dbURL, poolSize), nil
	default:
		return nil, fmt.Errorf("%w: unsupported DB_URL scheme in %q", klerrors.ErrConfig, dbURL)
	}
}
