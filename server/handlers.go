package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mnewlive/compliance-connector/tokens"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Request DTOs are treated as pre-validated input by the core, so field
// validation lives here at the boundary.

type sessionCreateRequest struct {
	SessionSecret string     `json:"session_secret" validate:"required"`
	RedirectURL   string     `json:"redirect_url" validate:"required,url"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type sessionSuccessRequest struct {
	UserID      string          `json:"user_id" validate:"required"`
	AccessToken string          `json:"access_token" validate:"required"`
	Consent     *tokens.Consent `json:"consent,omitempty"`
}

type paymentSuccessRequest struct {
	UserID         string `json:"user_id" validate:"required"`
	Extra          string `json:"extra" validate:"required"`
	PaymentProduct string `json:"payment_product" validate:"required"`
}

type paymentFailRequest struct {
	Extra string `json:"extra" validate:"required"`
}

type paymentFundsRequest struct {
	FundsAvailable *bool  `json:"funds_available" validate:"required"`
	Extra          string `json:"extra" validate:"required"`
	Status         string `json:"status"`
}

type consentRevokeRequest struct {
	UserID      string `json:"user_id" validate:"required"`
	AccessToken string `json:"access_token" validate:"required"`
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// SessionCreateHandler registers a new authorization session before the user
// is redirected to the authentication provider.
func (s *Server) SessionCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionCreateRequest
		if !s.decode(w, r, &req) {
			return
		}

		var expiresAt time.Time
		if req.ExpiresAt != nil {
			expiresAt = *req.ExpiresAt
		}

		token, err := s.connector.StartAuthorizationSession(req.SessionSecret, req.RedirectURL, expiresAt)
		if errors.Is(err, tokens.DuplicateSecretErr) {
			http.Error(w, "session secret already in use", http.StatusConflict)
			return
		}
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"token_id": token.ID})
	}
}

// SessionSuccessHandler reports a successful account information
// authorization for the session named in the path.
func (s *Server) SessionSuccessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessionSuccessRequest
		if !s.decode(w, r, &req) {
			return
		}

		redirectURL, err := s.connector.OnAccountInfoAuthSuccess(r.PathValue("secret"), req.UserID, req.AccessToken, req.Consent)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]*string{"redirect_url": redirectURL})
	}
}

// SessionFailHandler reports a failed or denied account information
// authorization for the session named in the path.
func (s *Server) SessionFailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectURL, err := s.connector.OnAccountInfoAuthFail(r.PathValue("secret"))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]*string{"redirect_url": redirectURL})
	}
}

// SessionConsentHandler reports whether the session still needs a
// per-resource consent prompt.
func (s *Server) SessionConsentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		required, err := s.connector.IsUserConsentRequired(r.PathValue("secret"))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"consent_required": required})
	}
}

func (s *Server) PaymentSuccessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentSuccessRequest
		if !s.decode(w, r, &req) {
			return
		}

		returnToURL := s.connector.OnPaymentAuthSuccess(req.UserID, req.Extra, req.PaymentProduct)
		writeJSON(w, http.StatusOK, map[string]string{"return_to_url": returnToURL})
	}
}

func (s *Server) PaymentFailHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentFailRequest
		if !s.decode(w, r, &req) {
			return
		}

		returnToURL := s.connector.OnPaymentAuthFail(req.Extra)
		writeJSON(w, http.StatusOK, map[string]string{"return_to_url": returnToURL})
	}
}

func (s *Server) PaymentFundsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentFundsRequest
		if !s.decode(w, r, &req) {
			return
		}

		s.connector.UpdatePaymentFundsInfo(*req.FundsAvailable, req.Extra, req.Status)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ConsentRevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req consentRevokeRequest
		if !s.decode(w, r, &req) {
			return
		}

		revoked, err := s.connector.RevokeConsent(req.UserID, req.AccessToken)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
	}
}

// UserTokensHandler lists the access tokens of the user's active consents.
func (s *Server) UserTokensHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accessTokens, err := s.connector.ActiveAccessTokens(r.PathValue("user_id"))
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"access_tokens": accessTokens})
	}
}

// decode parses and validates the JSON request body, replying 400 itself
// when the body is unusable.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
