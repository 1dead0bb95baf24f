package callbacks

import "github.com/mnewlive/compliance-connector/tokens"

// ErrorKind names the failure reported to the TPP service on a fail callback.
type ErrorKind string

const (
	// ErrorKindAccessDenied is reported when an account information
	// authorization session ends without user consent.
	ErrorKindAccessDenied ErrorKind = "AccessDenied"
	// ErrorKindPaymentNotCreated is reported when a payment authorization
	// session ends without a created payment.
	ErrorKindPaymentNotCreated ErrorKind = "PaymentNotCreated"
)

// SessionSuccess is the payload of a success callback for an authorization
// session. For account information flows UserID and Consent are set; for
// payment flows UserID and the final payment Status are set.
type SessionSuccess struct {
	UserID  string          `json:"user_id"`
	Status  string          `json:"status,omitempty"`
	Consent *tokens.Consent `json:"consent,omitempty"`
}

// SessionUpdate is the payload of an update callback carrying funds
// confirmation data for an in-flight payment session. Status is forwarded
// verbatim from the provider.
type SessionUpdate struct {
	FundsAvailable bool   `json:"funds_available"`
	Status         string `json:"status"`
}
