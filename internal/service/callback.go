package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sumire/federation/internal/domain"
	"github.com/sumire/federation/internal/metrics"
	"github.com/sumire/federation/internal/provider"
)

// CallbackService is the single inbound entry point for completed provider
// handshakes. It picks the normalizer for the callback's kind and hands the
// result to the Resolver.
type CallbackService struct {
	registry     *provider.Registry
	resolver     *Resolver
	metrics      *metrics.Metrics
	fetchTimeout time.Duration
}

// NewCallbackService creates a CallbackService. fetchTimeout bounds the
// normalizer, including any secondary profile fetch; zero means no bound.
// m may be nil.
func NewCallbackService(registry *provider.Registry, resolver *Resolver, m *metrics.Metrics, fetchTimeout time.Duration) *CallbackService {
	return &CallbackService{
		registry:     registry,
		resolver:     resolver,
		metrics:      m,
		fetchTimeout: fetchTimeout,
	}
}

// Handle resolves one provider callback for the caller described by sess.
// The returned error is set for unknown providers, anonymous callbacks to
// API-only providers and store failures.
func (s *CallbackService) Handle(ctx context.Context, cb provider.Callback, sess domain.SessionContext) (domain.Outcome, error) {
	start := time.Now()
	out, err := s.handle(ctx, cb, sess)
	s.record(cb.Kind, out, err, time.Since(start))
	return out, err
}

// Reject turns a handshake failure that happened before a payload was
// available into an outcome. Errors that are not provider failures are
// returned unchanged.
func (s *CallbackService) Reject(kind domain.ProviderKind, cause error) (domain.Outcome, error) {
	out, ok := failureOutcome(kind, cause)
	if !ok {
		s.record(kind, domain.Outcome{}, cause, 0)
		return domain.Outcome{}, cause
	}
	s.record(kind, out, nil, 0)
	return out, nil
}

func (s *CallbackService) handle(ctx context.Context, cb provider.Callback, sess domain.SessionContext) (domain.Outcome, error) {
	entry, err := s.registry.Get(cb.Kind)
	if err != nil {
		return domain.Outcome{}, err
	}

	token := cb.Token
	token.Kind = entry.Kind
	if entry.APIOnly {
		return s.resolver.Attach(ctx, token, sess)
	}

	profile, err := s.normalize(ctx, entry, cb.Payload)
	if err != nil {
		if out, ok := failureOutcome(entry.Kind, err); ok {
			return out, nil
		}
		return domain.Outcome{}, fmt.Errorf("normalize %s: %w", entry.Kind, err)
	}
	if profile.Kind != entry.Kind {
		return domain.Outcome{
			Kind:     domain.OutcomeMalformedProfile,
			Provider: entry.Kind,
			Err:      fmt.Errorf("%w: %s normalizer returned kind %q", domain.ErrMalformedProfile, entry.Kind, profile.Kind),
		}, nil
	}

	// OpenID assertions carry no access token; the verified subject stands in
	// for it so the Guard sees a token of this kind.
	if entry.Protocol == provider.ProtocolOpenID && token.AccessToken == "" {
		token.AccessToken = profile.SubjectID
	}

	return s.resolver.Resolve(ctx, profile, token, sess)
}

func (s *CallbackService) normalize(ctx context.Context, entry provider.Entry, payload []byte) (domain.ProviderProfile, error) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	return entry.Normalizer.Normalize(ctx, payload)
}

func failureOutcome(kind domain.ProviderKind, err error) (domain.Outcome, bool) {
	out := domain.Outcome{Provider: kind, Err: err}
	switch {
	case errors.Is(err, domain.ErrMalformedProfile):
		out.Kind = domain.OutcomeMalformedProfile
	case errors.Is(err, domain.ErrProviderUnavailable), errors.Is(err, context.DeadlineExceeded):
		out.Kind = domain.OutcomeProviderUnavailable
	default:
		return domain.Outcome{}, false
	}
	return out, true
}

func (s *CallbackService) record(kind domain.ProviderKind, out domain.Outcome, err error, elapsed time.Duration) {
	if err != nil {
		slog.Error("provider callback failed", "provider", kind, "error", err)
		s.metrics.RecordOutcome(string(kind), "error", elapsed)
		return
	}

	attrs := []any{"provider", kind, "outcome", out.Kind}
	if out.Identity != nil {
		attrs = append(attrs, "identity_id", out.Identity.ID)
	}
	switch out.Kind {
	case domain.OutcomeMalformedProfile, domain.OutcomeProviderUnavailable, domain.OutcomeSessionInvalid, domain.OutcomeRetry:
		if out.Err != nil {
			attrs = append(attrs, "error", out.Err)
		}
		slog.Warn("provider callback resolved", attrs...)
	default:
		slog.Info("provider callback resolved", attrs...)
	}
	s.metrics.RecordOutcome(string(kind), string(out.Kind), elapsed)
}
