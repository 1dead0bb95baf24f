package server

// Provider-facing routes. The bank-side authentication provider calls these
// to report authorization outcomes to the connector.
const (
	RouteSessionCreate  = "/api/provider/v2/sessions"
	RouteSessionSuccess = "/api/provider/v2/sessions/{secret}/success"
	RouteSessionFail    = "/api/provider/v2/sessions/{secret}/fail"
	RouteSessionConsent = "/api/provider/v2/sessions/{secret}/consent"

	RoutePaymentSuccess = "/api/provider/v2/payments/success"
	RoutePaymentFail    = "/api/provider/v2/payments/fail"
	RoutePaymentFunds   = "/api/provider/v2/payments/funds"

	RouteConsentRevoke = "/api/provider/v2/consents/revoke"
	RouteUserTokens    = "/api/provider/v2/users/{user_id}/tokens"

	RouteHealth = "/health"
)
