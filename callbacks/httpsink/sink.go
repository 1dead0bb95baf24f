// Package httpsink delivers callbacks to the TPP service over HTTP. Each
// request carries a short-lived RS256 JWT in the Authorization header, signed
// with the connector's private key, so the receiving side can verify the
// origin. Delivery is fire-and-forget: failures are logged and never
// propagated back into the consent lifecycle.
package httpsink

import (
	"bytes"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"

	"github.com/mnewlive/compliance-connector/callbacks"
)

const (
	sessionSuccessPath = "/api/connectors/v2/sessions/%s/success"
	sessionFailPath    = "/api/connectors/v2/sessions/%s/fail"
	sessionUpdatePath  = "/api/connectors/v2/sessions/%s/update"
	tokenRevokePath    = "/api/connectors/v2/tokens/revoke"

	requestTimeout  = 30 * time.Second
	signatureExpiry = 5 * time.Minute
)

var _ callbacks.Sink = (*Sink)(nil)

type Sink struct {
	baseURL      string
	providerCode string
	key          *rsa.PrivateKey
	client       *http.Client
	nowTime      func() time.Time
}

// SinkOption defines a function type to modify the Sink instance.
type SinkOption func(*Sink)

// WithHTTPClient overrides the default client (primarily for testing).
func WithHTTPClient(client *http.Client) SinkOption {
	return func(s *Sink) {
		s.client = client
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) SinkOption {
	return func(s *Sink) {
		s.nowTime = nowFunc
	}
}

// New initializes a Sink posting to the TPP service at baseURL, signing
// requests with key on behalf of providerCode.
func New(baseURL, providerCode string, key *rsa.PrivateKey, options ...SinkOption) *Sink {
	s := &Sink{
		baseURL:      baseURL,
		providerCode: providerCode,
		key:          key,
		client:       &http.Client{Timeout: requestTimeout},
		nowTime:      time.Now,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

func (s *Sink) SendSuccess(sessionSecret string, payload callbacks.SessionSuccess) {
	s.post(fmt.Sprintf(sessionSuccessPath, sessionSecret), map[string]any{"data": payload})
}

func (s *Sink) SendFail(sessionSecret string, kind callbacks.ErrorKind) {
	s.post(fmt.Sprintf(sessionFailPath, sessionSecret), map[string]any{
		"error_class":   string(kind),
		"error_message": string(kind),
	})
}

func (s *Sink) SendUpdate(sessionSecret string, payload callbacks.SessionUpdate) {
	s.post(fmt.Sprintf(sessionUpdatePath, sessionSecret), map[string]any{"data": payload})
}

func (s *Sink) SendRevoke(accessToken string) {
	s.post(tokenRevokePath, map[string]any{"data": map[string]string{"access_token": accessToken}})
}

func (s *Sink) post(path string, body map[string]any) {
	requestID := ksuid.New().String()

	raw, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Str("path", path).
			Msg("callback payload marshal failed")
		return
	}

	req, err := http.NewRequest(http.MethodPost, s.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Str("path", path).
			Msg("callback request build failed")
		return
	}

	signature, err := s.sign(requestID)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Str("path", path).
			Msg("callback request signing failed")
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+signature)
	req.Header.Set("X-Request-Id", requestID)
	req.Header.Set("Provider-Code", s.providerCode)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID).Str("path", path).
			Msg("callback delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		log.Error().Int("status", resp.StatusCode).Str("request_id", requestID).
			Str("path", path).Msg("callback rejected")
	}
}

func (s *Sink) sign(requestID string) (string, error) {
	now := s.nowTime()
	claims := jwt.MapClaims{
		"iss": s.providerCode,
		"iat": now.Unix(),
		"exp": now.Add(signatureExpiry).Unix(),
		"jti": requestID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
}
