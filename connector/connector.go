// Package connector is the entry point the authentication provider invokes
// to report authorization outcomes. It composes the token lifecycle service,
// the payment extra codec and the callback dispatcher into one orchestrator
// answering "what should happen now" and returning the URL the browser
// should be sent back to.
package connector

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mnewlive/compliance-connector/callbacks"
	"github.com/mnewlive/compliance-connector/paymentextra"
	"github.com/mnewlive/compliance-connector/tokens"
)

// Service handles provider notifications. Every entry point recovers domain
// conditions (unknown session, duplicate notification, malformed extra)
// locally and returns a value; only store failures surface as errors.
// Notifications are best-effort and never roll back a committed transition.
type Service struct {
	tokens     *tokens.Service
	dispatcher *callbacks.Dispatcher
}

// New initializes the orchestrator with its two collaborators.
func New(tokenService *tokens.Service, dispatcher *callbacks.Dispatcher) (*Service, error) {
	if tokenService == nil {
		return nil, errors.New("[connector.New] token service is required")
	}
	if dispatcher == nil {
		return nil, errors.New("[connector.New] callback dispatcher is required")
	}
	return &Service{tokens: tokenService, dispatcher: dispatcher}, nil
}

// StartAuthorizationSession registers a pending token for a new authorization
// session, before the user is redirected to the authentication provider.
func (s *Service) StartAuthorizationSession(sessionSecret, tppRedirectURL string, accessTokenExpiresAt time.Time) (*tokens.Token, error) {
	token, err := s.tokens.CreatePending(sessionSecret, tppRedirectURL, accessTokenExpiresAt)
	if err != nil {
		return nil, errors.Wrap(err, "[StartAuthorizationSession] tokens.CreatePending")
	}
	return token, nil
}

// IsUserConsentRequired reports whether the authorization session identified
// by sessionSecret needs a per-resource consent prompt: true iff a token
// exists for the secret and its consent is not global.
func (s *Service) IsUserConsentRequired(sessionSecret string) (bool, error) {
	token, err := s.tokens.FindBySessionSecret(sessionSecret)
	if err != nil {
		return false, errors.Wrap(err, "[IsUserConsentRequired] tokens.FindBySessionSecret")
	}
	return token != nil && !token.GlobalConsent(), nil
}

// OnAccountInfoAuthSuccess confirms the pending token for the session,
// binding the user, access token and consent, and reports the success to the
// TPP service. Returns the token's stored TPP redirect URL, or nil when no
// token matched (session already consumed or unknown). A duplicate provider
// notification confirms nothing and sends nothing.
func (s *Service) OnAccountInfoAuthSuccess(sessionSecret, userID, accessToken string, consent *tokens.Consent) (*string, error) {
	token, err := s.tokens.Confirm(sessionSecret, userID, accessToken, consent)
	if err != nil {
		return nil, errors.Wrap(err, "[OnAccountInfoAuthSuccess] tokens.Confirm")
	}
	if token == nil {
		return nil, nil
	}

	s.dispatcher.AccountInfoSuccess(sessionSecret, userID, consent)
	redirectURL := token.TPPRedirectURL
	return &redirectURL, nil
}

// OnAccountInfoAuthFail revokes the token for the session and reports the
// failure. The fail callback goes out even when no token matched, because
// the TPP service still needs to be told the flow ended. Returns the token's
// redirect URL or nil.
func (s *Service) OnAccountInfoAuthFail(sessionSecret string) (*string, error) {
	outcome, err := s.tokens.RevokeBySessionSecret(sessionSecret)
	if err != nil {
		return nil, errors.Wrap(err, "[OnAccountInfoAuthFail] tokens.RevokeBySessionSecret")
	}

	s.dispatcher.AccountInfoFail(sessionSecret)

	if outcome.Token == nil {
		return nil, nil
	}
	redirectURL := outcome.Token.TPPRedirectURL
	return &redirectURL, nil
}

// OnPaymentAuthSuccess reports a successful payment authorization. The
// session binding travels in the extra blob; when the decoded blob carries a
// session secret, a success callback with the product's final status is
// dispatched. Always returns a return-to URL, empty when the blob has none.
func (s *Service) OnPaymentAuthSuccess(userID, extraBlob, paymentProduct string) string {
	extra := s.decodeExtra(extraBlob)
	s.dispatcher.PaymentSuccess(extra.SessionSecret(), userID, paymentProduct)
	return extra.ReturnToURL()
}

// OnPaymentAuthFail reports a failed or denied payment authorization.
// Same session-binding and return semantics as OnPaymentAuthSuccess.
func (s *Service) OnPaymentAuthFail(extraBlob string) string {
	extra := s.decodeExtra(extraBlob)
	s.dispatcher.PaymentFail(extra.SessionSecret())
	return extra.ReturnToURL()
}

// UpdatePaymentFundsInfo forwards funds confirmation data for an in-flight
// payment session. No-op when the blob carries no session secret.
func (s *Service) UpdatePaymentFundsInfo(fundsAvailable bool, extraBlob, status string) {
	extra := s.decodeExtra(extraBlob)
	s.dispatcher.FundsUpdate(extra.SessionSecret(), fundsAvailable, status)
}

// RevokeConsent revokes the account information consent identified by userId
// and accessToken. The revoke callback is sent only on the call that
// performed the transition, never on a repeat. Returns whether the token is
// now REVOKED.
func (s *Service) RevokeConsent(userID, accessToken string) (bool, error) {
	outcome, err := s.tokens.RevokeByUserAndAccessToken(userID, accessToken)
	if err != nil {
		return false, errors.Wrap(err, "[RevokeConsent] tokens.RevokeByUserAndAccessToken")
	}
	if outcome.Token == nil {
		return false, nil
	}

	if outcome.Transitioned {
		s.dispatcher.TokenRevoked(accessToken)
	}
	return outcome.Token.Revoked(), nil
}

// ActiveAccessTokens returns the access tokens of the user's active
// consents, ordered by creation time.
func (s *Service) ActiveAccessTokens(userID string) ([]string, error) {
	accessTokens, err := s.tokens.CollectActiveAccessTokens(userID)
	if err != nil {
		return nil, errors.Wrap(err, "[ActiveAccessTokens] tokens.CollectActiveAccessTokens")
	}
	return accessTokens, nil
}

func (s *Service) decodeExtra(extraBlob string) paymentextra.Extra {
	extra, err := paymentextra.Decode(extraBlob)
	if err != nil {
		log.Warn().Err(err).Msg("payment extra decode failed, continuing without session binding")
	}
	return extra
}
