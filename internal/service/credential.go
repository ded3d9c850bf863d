package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/metrics"
)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

// CredentialVerifier implements the local email and password path.
type CredentialVerifier struct {
	store    IdentityStore
	metrics  *metrics.Metrics
	validate *validator.Validate
	cost     int
	// dummy is compared against when the email is unknown so both failure
	// paths cost one bcrypt comparison.
	dummy []byte
}

// NewCredentialVerifier creates a CredentialVerifier. m may be nil.
func NewCredentialVerifier(store IdentityStore, m *metrics.Metrics) *CredentialVerifier {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &CredentialVerifier{
		store:    store,
		metrics:  m,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
		dummy:    dummy,
	}
}

// Authenticate checks plaintext against the credential stored for email.
// Unknown emails, identities without a password and wrong passwords all
// yield the same invalid_credential outcome. The error is only set when the
// store fails.
func (v *CredentialVerifier) Authenticate(ctx context.Context, email, plaintext string) (domain.Outcome, error) {
	out := domain.Outcome{Provider: domain.ProviderLocal}

	id, ok, err := v.verify(ctx, email, plaintext)
	if err != nil {
		v.metrics.RecordLocalLogin("error")
		return domain.Outcome{}, err
	}
	if !ok {
		out.Kind = domain.OutcomeInvalidCredential
		out.Err = domain.ErrInvalidCredential
		v.metrics.RecordLocalLogin(string(out.Kind))
		return out, nil
	}

	ident, err := v.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			out.Kind = domain.OutcomeInvalidCredential
			out.Err = domain.ErrInvalidCredential
			v.metrics.RecordLocalLogin(string(out.Kind))
			return out, nil
		}
		v.metrics.RecordLocalLogin("error")
		return domain.Outcome{}, fmt.Errorf("load identity: %w", err)
	}

	out.Kind = domain.OutcomeSignedIn
	out.Identity = ident
	v.metrics.RecordLocalLogin(string(out.Kind))
	return out, nil
}

// VerifyCredential reports whether plaintext matches the password stored for
// email. It returns false for every failure, store errors included.
func (v *CredentialVerifier) VerifyCredential(ctx context.Context, email, plaintext string) bool {
	_, ok, err := v.verify(ctx, email, plaintext)
	if err != nil {
		slog.Error("verify credential", "error", err)
		return false
	}
	return ok
}

func (v *CredentialVerifier) verify(ctx context.Context, email, plaintext string) (string, bool, error) {
	id, hash, err := v.store.CredentialFor(ctx, domain.NormalizeEmail(email))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", false, fmt.Errorf("credential lookup: %w", err)
	}
	if err != nil || hash == "" {
		_ = bcrypt.CompareHashAndPassword(v.dummy, []byte(plaintext))
		return "", false, nil
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) != nil {
		return "", false, nil
	}
	return id, true, nil
}

// Register creates a local identity. An email that is already taken, by a
// local or a provider identity, fails with domain.ErrConflict.
func (v *CredentialVerifier) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = domain.NormalizeEmail(email)
	if err := v.validate.Var(email, "required,email"); err != nil {
		return nil, &domain.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	hash, err := v.hash(password)
	if err != nil {
		return nil, err
	}

	ident, err := v.store.Create(ctx, domain.Identity{Email: email, Credential: hash})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: account with that email address already exists", domain.ErrConflict)
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	slog.Info("local identity registered", "identity_id", ident.ID)
	return ident, nil
}

// SetPassword replaces the password of identity id. Provider-only identities
// gain a local credential this way.
func (v *CredentialVerifier) SetPassword(ctx context.Context, id, password string) error {
	hash, err := v.hash(password)
	if err != nil {
		return err
	}
	_, err = v.store.Update(ctx, id, func(ident *domain.Identity) error {
		ident.Credential = hash
		return nil
	})
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	return nil
}

func (v *CredentialVerifier) hash(password string) (string, error) {
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return "", &domain.ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be between %d and %d characters", minPasswordLen, maxPasswordLen),
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
