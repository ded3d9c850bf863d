package repository

import (
	"context"
	"fmt"

	"github.com/sumire/federation/internal/domain"
)

// Store is the identity store contract shared by SQLStore and MemoryStore,
// plus the lifecycle the commands need.
type Store interface {
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByProviderID(ctx context.Context, kind domain.ProviderKind, subject string) (*domain.Identity, error)
	CredentialFor(ctx context.Context, email string) (identityID, hash string, err error)
	Create(ctx context.Context, draft domain.Identity) (*domain.Identity, error)
	Update(ctx context.Context, id string, mutate func(*domain.Identity) error) (*domain.Identity, error)
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// OpenStore returns the store for driver: "memory" for a process-local store,
// otherwise a SQL dialect name. SQL stores are migrated before they are
// returned.
func OpenStore(ctx context.Context, driver, dsn string) (Store, error) {
	if driver == "memory" {
		return NewMemoryStore(), nil
	}

	dialect := Dialect(driver)
	if dialect != DialectPostgres && dialect != DialectSQLite {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}
	s, err := Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
