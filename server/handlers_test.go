package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mnewlive/compliance-connector/callbacks"
	"github.com/mnewlive/compliance-connector/callbacks/sinkfake"
	"github.com/mnewlive/compliance-connector/connector"
	"github.com/mnewlive/compliance-connector/internal/config"
	"github.com/mnewlive/compliance-connector/paymentextra"
	"github.com/mnewlive/compliance-connector/server"
	"github.com/mnewlive/compliance-connector/tokens"
	tokenrepofake "github.com/mnewlive/compliance-connector/tokens/repofake"
)

type testFixture struct {
	repo   *tokenrepofake.FakeTokenRepo
	sink   *sinkfake.FakeSink
	server *server.Server
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	repo := tokenrepofake.NewFakeTokenRepo()
	tokenService, err := tokens.NewService(repo)
	require.NoError(t, err)

	sink := sinkfake.NewFakeSink()
	dispatcher, err := callbacks.NewDispatcher(sink)
	require.NoError(t, err)

	connectorService, err := connector.New(tokenService, dispatcher)
	require.NoError(t, err)

	srv, err := server.New(config.New(), connectorService)
	require.NoError(t, err)

	return &testFixture{repo: repo, sink: sink, server: srv}
}

func (f *testFixture) createPendingToken(t *testing.T, id, secret string) {
	t.Helper()

	require.NoError(t, f.repo.Create(&tokens.Token{
		ID:             id,
		SessionSecret:  secret,
		Status:         tokens.StatusPending,
		TPPRedirectURL: "https://tpp.example.com/redirect",
		CreatedAt:      time.Now(),
	}))
}

func (f *testFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(dst))
}

func TestHealth(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionCreate(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodPost, "/api/provider/v2/sessions",
		`{"session_secret":"s1","redirect_url":"https://tpp.example.com/redirect"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		TokenID string `json:"token_id"`
	}
	decodeBody(t, w, &resp)
	require.NotEmpty(t, resp.TokenID)

	// Duplicate secret is a conflict, not a new session.
	w = f.do(t, http.MethodPost, "/api/provider/v2/sessions",
		`{"session_secret":"s1","redirect_url":"https://tpp.example.com/redirect"}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSessionSuccess(t *testing.T) {
	f := setupTestFixture(t)
	f.createPendingToken(t, "t1", "s1")

	w := f.do(t, http.MethodPost, "/api/provider/v2/sessions/s1/success",
		`{"user_id":"u1","access_token":"at-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RedirectURL *string `json:"redirect_url"`
	}
	decodeBody(t, w, &resp)
	require.NotNil(t, resp.RedirectURL)
	require.Equal(t, "https://tpp.example.com/redirect", *resp.RedirectURL)
	require.Len(t, f.sink.Successes, 1)
}

func TestSessionSuccessValidation(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodPost, "/api/provider/v2/sessions/s1/success", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/provider/v2/sessions/s1/success", "{")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionSuccessUnknownSession(t *testing.T) {
	f := setupTestFixture(t)

	w := f.do(t, http.MethodPost, "/api/provider/v2/sessions/unknown/success",
		`{"user_id":"u1","access_token":"at-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		RedirectURL *string `json:"redirect_url"`
	}
	decodeBody(t, w, &resp)
	require.Nil(t, resp.RedirectURL)
}

func TestSessionFail(t *testing.T) {
	f := setupTestFixture(t)
	f.createPendingToken(t, "t1", "s1")

	w := f.do(t, http.MethodPost, "/api/provider/v2/sessions/s1/fail", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, f.sink.Fails, 1)
}

func TestSessionConsent(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.repo.Create(&tokens.Token{
		ID:            "t1",
		SessionSecret: "s1",
		Status:        tokens.StatusPending,
		Consent:       &tokens.Consent{ID: "c1"},
		CreatedAt:     time.Now(),
	}))

	w := f.do(t, http.MethodGet, "/api/provider/v2/sessions/s1/consent", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ConsentRequired bool `json:"consent_required"`
	}
	decodeBody(t, w, &resp)
	require.True(t, resp.ConsentRequired)
}

func TestPaymentSuccess(t *testing.T) {
	f := setupTestFixture(t)

	extra, err := paymentextra.Encode(paymentextra.Extra{
		paymentextra.KeySessionSecret: "s3",
		paymentextra.KeyReturnToURL:   "https://tpp/cb",
	})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{
		"user_id":         "u1",
		"extra":           extra,
		"payment_product": "faster-payment-service",
	})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/provider/v2/payments/success", string(body))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		ReturnToURL string `json:"return_to_url"`
	}
	decodeBody(t, w, &resp)
	require.Equal(t, "https://tpp/cb", resp.ReturnToURL)

	require.Len(t, f.sink.Successes, 1)
	require.Equal(t, "ACSC", f.sink.Successes[0].Payload.Status)
}

func TestPaymentFunds(t *testing.T) {
	f := setupTestFixture(t)

	extra, err := paymentextra.Encode(paymentextra.Extra{paymentextra.KeySessionSecret: "s5"})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"funds_available": true,
		"extra":           extra,
		"status":          "RCVD",
	})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/provider/v2/payments/funds", string(body))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, f.sink.Updates, 1)
}

func TestConsentRevoke(t *testing.T) {
	f := setupTestFixture(t)
	f.createPendingToken(t, "t1", "s1")

	w := f.do(t, http.MethodPost, "/api/provider/v2/sessions/s1/success",
		`{"user_id":"u1","access_token":"at-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/provider/v2/consents/revoke",
		`{"user_id":"u1","access_token":"at-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Revoked bool `json:"revoked"`
	}
	decodeBody(t, w, &resp)
	require.True(t, resp.Revoked)
	require.Equal(t, []string{"at-1"}, f.sink.Revokes)
}

func TestUserTokens(t *testing.T) {
	f := setupTestFixture(t)
	f.createPendingToken(t, "t1", "s1")

	w := f.do(t, http.MethodPost, "/api/provider/v2/sessions/s1/success",
		`{"user_id":"u1","access_token":"at-1"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/provider/v2/users/u1/tokens", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessTokens []string `json:"access_tokens"`
	}
	decodeBody(t, w, &resp)
	require.Equal(t, []string{"at-1"}, resp.AccessTokens)
}
