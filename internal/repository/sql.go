package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/sumire/federation/internal/domain"
)

func init() {
	sqlx.BindDriver(string(DialectSQLite), sqlx.QUESTION)
}

// SQLStore persists identities with sqlx over Postgres or SQLite.
//
// Uniqueness of emails and provider ids is enforced by table constraints, so
// concurrent creates race in the database and exactly one wins.
type SQLStore struct {
	db      *sqlx.DB
	dialect Dialect
}

// Open connects to dsn and returns a store for dialect.
func Open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// Each connection to an in-memory SQLite database is its own database.
		db.SetMaxOpenConns(1)
	}
	return NewSQLStore(db, dialect), nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sqlx.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// Migrate creates the schema if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type identityRow struct {
	ID         string    `db:"id"`
	Email      string    `db:"email"`
	Credential string    `db:"credential"`
	Name       string    `db:"name"`
	Picture    string    `db:"picture"`
	Location   string    `db:"location"`
	Website    string    `db:"website"`
	Gender     string    `db:"gender"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type providerRow struct {
	Kind      domain.ProviderKind `db:"kind"`
	SubjectID string              `db:"subject_id"`
}

const identityColumns = `id, email, credential, name, picture, location, website, gender, created_at, updated_at`

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	Rebind(string) string
}

// FindByID returns the identity with id or domain.ErrNotFound.
func (s *SQLStore) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	return s.findBy(ctx, s.db, "id = ?", id)
}

// FindByEmail looks up an identity by email, ignoring case.
func (s *SQLStore) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return s.findBy(ctx, s.db, "email_key = ?", domain.NormalizeEmail(email))
}

// FindByProviderID returns the identity that holds subject at kind.
func (s *SQLStore) FindByProviderID(ctx context.Context, kind domain.ProviderKind, subject string) (*domain.Identity, error) {
	var id string
	err := sqlx.GetContext(ctx, s.db, &id,
		s.db.Rebind(`SELECT identity_id FROM identity_providers WHERE kind = ? AND subject_id = ?`),
		kind, subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find identity by provider %s/%s: %w", kind, subject, err)
	}
	return s.FindByID(ctx, id)
}

// CredentialFor returns the identity id and password hash registered for email.
func (s *SQLStore) CredentialFor(ctx context.Context, email string) (string, string, error) {
	var row struct {
		ID         string `db:"id"`
		Credential string `db:"credential"`
	}
	err := s.db.GetContext(ctx, &row,
		s.db.Rebind(`SELECT id, credential FROM identities WHERE email_key = ?`),
		domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", domain.ErrNotFound
		}
		return "", "", fmt.Errorf("credential for email: %w", err)
	}
	return row.ID, row.Credential, nil
}

// Create inserts draft and its provider links in one transaction. It fails
// with domain.ErrDuplicateEmail or domain.ErrDuplicateProviderID when another
// identity already holds the email or one of the provider ids.
func (s *SQLStore) Create(ctx context.Context, draft domain.Identity) (*domain.Identity, error) {
	if strings.TrimSpace(draft.Email) == "" {
		return nil, fmt.Errorf("create identity: %w: email is required", domain.ErrInvalidInput)
	}

	ident := draft.Clone()
	if ident.ID == "" {
		ident.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	ident.CreatedAt = now
	ident.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO identities (email_key, `+identityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		domain.NormalizeEmail(ident.Email), ident.ID, ident.Email, ident.Credential,
		ident.Profile.Name, ident.Profile.Picture, ident.Profile.Location, ident.Profile.Website, ident.Profile.Gender,
		ident.CreatedAt, ident.UpdatedAt)
	if err != nil {
		return nil, classifyWriteError(err, "insert identity")
	}

	if err := writeLinks(ctx, tx, ident); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classifyWriteError(err, "commit create")
	}
	return ident, nil
}

// Update loads the identity, applies mutate and writes the result back in one
// transaction. An error from mutate aborts the update and is returned as is.
func (s *SQLStore) Update(ctx context.Context, id string, mutate func(*domain.Identity) error) (*domain.Identity, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	where := "id = ?"
	if s.dialect == DialectPostgres {
		where += " FOR UPDATE"
	}
	ident, err := s.findBy(ctx, tx, where, id)
	if err != nil {
		return nil, err
	}

	if err := mutate(ident); err != nil {
		return nil, err
	}
	if strings.TrimSpace(ident.Email) == "" {
		return nil, fmt.Errorf("update identity: %w: email is required", domain.ErrInvalidInput)
	}
	ident.ID = id
	ident.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE identities SET
			email = ?, email_key = ?, credential = ?,
			name = ?, picture = ?, location = ?, website = ?, gender = ?,
			updated_at = ?
		WHERE id = ?`),
		ident.Email, domain.NormalizeEmail(ident.Email), ident.Credential,
		ident.Profile.Name, ident.Profile.Picture, ident.Profile.Location, ident.Profile.Website, ident.Profile.Gender,
		ident.UpdatedAt, id)
	if err != nil {
		return nil, classifyWriteError(err, "update identity")
	}

	for _, stmt := range []string{
		`DELETE FROM identity_providers WHERE identity_id = ?`,
		`DELETE FROM identity_tokens WHERE identity_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, tx.Rebind(stmt), id); err != nil {
			return nil, fmt.Errorf("update identity links: %w", err)
		}
	}
	if err := writeLinks(ctx, tx, ident); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyWriteError(err, "commit update")
	}
	return ident, nil
}

func writeLinks(ctx context.Context, tx *sqlx.Tx, ident *domain.Identity) error {
	for kind, subject := range ident.ProviderIDs {
		if subject == "" {
			continue
		}
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO identity_providers (identity_id, kind, subject_id) VALUES (?, ?, ?)`),
			ident.ID, kind, subject)
		if err != nil {
			return classifyWriteError(err, "insert provider link")
		}
	}
	for pos, t := range ident.Tokens {
		_, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO identity_tokens (identity_id, position, kind, access_token, refresh_token, token_secret)
				VALUES (?, ?, ?, ?, ?, ?)`),
			ident.ID, pos, t.Kind, t.AccessToken, t.RefreshToken, t.TokenSecret)
		if err != nil {
			return classifyWriteError(err, "insert token")
		}
	}
	return nil
}

func (s *SQLStore) findBy(ctx context.Context, q queryer, where string, arg any) (*domain.Identity, error) {
	var row identityRow
	err := sqlx.GetContext(ctx, q, &row, q.Rebind(`SELECT `+identityColumns+` FROM identities WHERE `+where), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}

	var providers []providerRow
	if err := sqlx.SelectContext(ctx, q, &providers,
		q.Rebind(`SELECT kind, subject_id FROM identity_providers WHERE identity_id = ?`), row.ID); err != nil {
		return nil, fmt.Errorf("load provider links: %w", err)
	}

	var tokens []domain.Token
	if err := sqlx.SelectContext(ctx, q, &tokens,
		q.Rebind(`SELECT kind, access_token, refresh_token, token_secret
			FROM identity_tokens WHERE identity_id = ? ORDER BY position`), row.ID); err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}

	ident := &domain.Identity{
		ID:          row.ID,
		Email:       row.Email,
		Credential:  row.Credential,
		ProviderIDs: make(map[domain.ProviderKind]string, len(providers)),
		Tokens:      tokens,
		Profile: domain.Profile{
			Name:     row.Name,
			Picture:  row.Picture,
			Location: row.Location,
			Website:  row.Website,
			Gender:   row.Gender,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	for _, p := range providers {
		ident.ProviderIDs[p.Kind] = p.SubjectID
	}
	return ident, nil
}
