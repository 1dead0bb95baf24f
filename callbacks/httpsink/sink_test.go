package httpsink_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/mnewlive/compliance-connector/callbacks"
	"github.com/mnewlive/compliance-connector/callbacks/httpsink"
)

type recordedRequest struct {
	method string
	path   string
	header http.Header
	body   map[string]any
}

func setupSink(t *testing.T) (*httpsink.Sink, *rsa.PrivateKey, *[]recordedRequest) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	recorded := &[]recordedRequest{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		*recorded = append(*recorded, recordedRequest{
			method: r.Method,
			path:   r.URL.Path,
			header: r.Header.Clone(),
			body:   body,
		})
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(ts.Close)

	sink := httpsink.New(ts.URL, "demobank", key, httpsink.WithHTTPClient(ts.Client()))
	return sink, key, recorded
}

func TestSendSuccess(t *testing.T) {
	sink, key, recorded := setupSink(t)

	sink.SendSuccess("s1", callbacks.SessionSuccess{UserID: "u1", Status: "ACSC"})

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	require.Equal(t, http.MethodPost, req.method)
	require.Equal(t, "/api/connectors/v2/sessions/s1/success", req.path)
	require.Equal(t, "demobank", req.header.Get("Provider-Code"))
	require.NotEmpty(t, req.header.Get("X-Request-Id"))

	data, ok := req.body["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "u1", data["user_id"])
	require.Equal(t, "ACSC", data["status"])

	assertSignature(t, req, key)
}

func TestSendFail(t *testing.T) {
	sink, _, recorded := setupSink(t)

	sink.SendFail("s1", callbacks.ErrorKindAccessDenied)

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	require.Equal(t, "/api/connectors/v2/sessions/s1/fail", req.path)
	require.Equal(t, "AccessDenied", req.body["error_class"])
}

func TestSendUpdate(t *testing.T) {
	sink, _, recorded := setupSink(t)

	sink.SendUpdate("s1", callbacks.SessionUpdate{FundsAvailable: true, Status: "RCVD"})

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	require.Equal(t, "/api/connectors/v2/sessions/s1/update", req.path)

	data, ok := req.body["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, data["funds_available"])
	require.Equal(t, "RCVD", data["status"])
}

func TestSendRevoke(t *testing.T) {
	sink, _, recorded := setupSink(t)

	sink.SendRevoke("at-1")

	require.Len(t, *recorded, 1)
	req := (*recorded)[0]
	require.Equal(t, "/api/connectors/v2/tokens/revoke", req.path)

	data, ok := req.body["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "at-1", data["access_token"])
}

func assertSignature(t *testing.T, req recordedRequest, key *rsa.PrivateKey) {
	t.Helper()

	auth := req.header.Get("Authorization")
	require.True(t, len(auth) > len("Bearer "))

	parsed, err := jwt.Parse(auth[len("Bearer "):], func(token *jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, "demobank", claims["iss"])
	require.Equal(t, req.header.Get("X-Request-Id"), claims["jti"])
}
