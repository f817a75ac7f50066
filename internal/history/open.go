package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/symptom-dx-server/internal/domain"
)

// Driver names accepted in configuration.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the store selected by cfg.Driver. It returns a nil store
// and nil error when history is disabled.
func Open(ctx context.Context, cfg domain.HistoryConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverNone:
		return nil, nil
	case DriverSQLite:
		store, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		store, err := NewPostgresStoreFromURL(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history driver: %s", cfg.Driver)
	}
}
