// Package storage selects the persistence backend from configuration.
package storage

import (
	"context"
	"fmt"

	"stayhub/internal/domain"
	"stayhub/internal/shared"
	boltstore "stayhub/internal/storage/bolt"
	mysqlrepo "stayhub/internal/storage/mysql"
)

func Open(ctx context.Context, cfg shared.Config) (domain.Store, error) {
	switch cfg.StoreDriver {
	case "", "mysql":
		r, err := mysqlrepo.Open(ctx, cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	case "bolt":
		s, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want mysql or bolt)", cfg.StoreDriver)
	}
}
