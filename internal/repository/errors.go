package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sumire/federation/internal/domain"
)

const (
	emailConstraint    = "identities_email_key_uniq"
	providerConstraint = "identity_providers_kind_subject_uniq"
)

// classifyWriteError maps unique violations onto the store's duplicate errors.
// Other errors are wrapped with op.
func classifyWriteError(err error, op string) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case emailConstraint:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateEmail)
		case providerConstraint:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateProviderID)
		}
		return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
	}

	// SQLite reports the offending columns in the message.
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") {
		switch {
		case strings.Contains(msg, "identities.email_key"):
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateEmail)
		case strings.Contains(msg, "identity_providers.subject_id"):
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateProviderID)
		}
		return fmt.Errorf("%s: %w: %v", op, domain.ErrConflict, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
