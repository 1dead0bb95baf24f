package tokens

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RevokeOutcome reports the state of a token after a revoke request.
// Transitioned is true only on the call that actually performed the
// transition to REVOKED; a repeat call on the same token observes the
// terminal state and reports Transitioned false. Callers use this to keep
// outbound revoke notifications at-most-once.
type RevokeOutcome struct {
	Token        *Token
	Transitioned bool
}

// Service owns the token state machine: PENDING -> CONFIRMED | REVOKED,
// CONFIRMED -> REVOKED. Lookups that miss and transitions that lose a race
// are recovered as no-ops, because duplicate provider notifications must be
// safe to ignore. Only store failures are returned as errors.
type Service struct {
	repo    Repo
	nowTime func() time.Time
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes a token lifecycle Service backed by repo.
func NewService(repo Repo, options ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("[NewService] token repo is required")
	}

	service := &Service{
		repo:    repo,
		nowTime: time.Now,
	}

	for _, opt := range options {
		opt(service)
	}

	return service, nil
}

// CreatePending registers a new authorization session: a PENDING token
// addressed by its session secret, carrying the URL to send the browser back
// to once the session reaches a terminal outcome.
func (s *Service) CreatePending(sessionSecret, tppRedirectURL string, accessTokenExpiresAt time.Time) (*Token, error) {
	token := &Token{
		ID:                   uuid.New().String(),
		SessionSecret:        sessionSecret,
		Status:               StatusPending,
		TPPRedirectURL:       tppRedirectURL,
		CreatedAt:            s.nowTime(),
		AccessTokenExpiresAt: accessTokenExpiresAt,
	}
	if err := s.repo.Create(token); err != nil {
		return nil, errors.Wrap(err, "[CreatePending] repo.Create")
	}
	return token, nil
}

// FindBySessionSecret resolves the pending or confirmed token bound to an
// authorization session. Returns (nil, nil) when no token matches.
func (s *Service) FindBySessionSecret(secret string) (*Token, error) {
	token, err := s.repo.FindBySessionSecret(secret)
	if errors.Is(err, TokenNotFoundErr) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FindBySessionSecret] repo.FindBySessionSecret")
	}
	return token, nil
}

// Confirm transitions the token for secret from PENDING to CONFIRMED, binding
// the user id and access token and attaching the consent (nil for global
// consent). An unknown secret, an already-consumed session or a lost race all
// return (nil, nil): the session was consumed elsewhere and there is nothing
// further to do. A second Confirm with the same secret is therefore a no-op.
func (s *Service) Confirm(secret, userID, accessToken string, consent *Consent) (*Token, error) {
	token, err := s.repo.FindBySessionSecret(secret)
	if errors.Is(err, TokenNotFoundErr) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Confirm] repo.FindBySessionSecret")
	}
	if token.Status != StatusPending {
		return nil, nil
	}

	if consent != nil && consent.GrantedAt.IsZero() {
		consent.GrantedAt = s.nowTime()
	}

	confirmed, err := s.repo.AtomicTransition(token.ID, StatusPending, StatusConfirmed, &Update{
		UserID:      userID,
		AccessToken: accessToken,
		Consent:     consent,
	})
	if errors.Is(err, StatusConflictErr) || errors.Is(err, TokenNotFoundErr) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Confirm] repo.AtomicTransition")
	}
	return confirmed, nil
}

// RevokeBySessionSecret transitions the token for secret to REVOKED from any
// non-terminal state. The outcome reports the token as observed, so the
// caller can distinguish "revoked now" from "already revoked" and from
// "unknown session" (nil token).
func (s *Service) RevokeBySessionSecret(secret string) (RevokeOutcome, error) {
	token, err := s.repo.FindBySessionSecret(secret)
	if errors.Is(err, TokenNotFoundErr) {
		return RevokeOutcome{}, nil
	}
	if err != nil {
		return RevokeOutcome{}, errors.Wrap(err, "[RevokeBySessionSecret] repo.FindBySessionSecret")
	}
	return s.revoke(token)
}

// RevokeByUserAndAccessToken transitions the user's token identified by
// accessToken to REVOKED. Same outcome semantics as RevokeBySessionSecret.
func (s *Service) RevokeByUserAndAccessToken(userID, accessToken string) (RevokeOutcome, error) {
	token, err := s.repo.FindByUserAndAccessToken(userID, accessToken)
	if errors.Is(err, TokenNotFoundErr) {
		return RevokeOutcome{}, nil
	}
	if err != nil {
		return RevokeOutcome{}, errors.Wrap(err, "[RevokeByUserAndAccessToken] repo.FindByUserAndAccessToken")
	}
	return s.revoke(token)
}

func (s *Service) revoke(token *Token) (RevokeOutcome, error) {
	if token.Revoked() {
		return RevokeOutcome{Token: token, Transitioned: false}, nil
	}

	revoked, err := s.repo.AtomicTransition(token.ID, token.Status, StatusRevoked, nil)
	if errors.Is(err, StatusConflictErr) || errors.Is(err, TokenNotFoundErr) {
		// Lost the race: report the token as observed at the check.
		return RevokeOutcome{Token: token, Transitioned: false}, nil
	}
	if err != nil {
		return RevokeOutcome{}, errors.Wrap(err, "[revoke] repo.AtomicTransition")
	}
	return RevokeOutcome{Token: revoked, Transitioned: true}, nil
}

// CollectActiveAccessTokens returns the access tokens of the user's CONFIRMED
// tokens, ordered by creation time. Used for consent inventory.
func (s *Service) CollectActiveAccessTokens(userID string) ([]string, error) {
	tokens, err := s.repo.ListByUserAndStatus(userID, StatusConfirmed)
	if err != nil {
		return nil, errors.Wrap(err, "[CollectActiveAccessTokens] repo.ListByUserAndStatus")
	}

	accessTokens := make([]string, 0, len(tokens))
	for _, t := range tokens {
		accessTokens = append(accessTokens, t.AccessToken)
	}
	return accessTokens, nil
}
