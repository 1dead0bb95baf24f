package tokens

import "time"

// Consent is the set of account resources a user authorized for a TPP.
// It is attached to a Token at confirmation time and immutable afterwards.
// A nil Consent on a Token means global consent applies and no per-resource
// prompt is required. The core passes the resource lists through unchanged.
type Consent struct {
	ID           string    `json:"id"`
	Balances     []string  `json:"balances,omitempty"`     // account identifiers with balance access
	Transactions []string  `json:"transactions,omitempty"` // account identifiers with transaction access
	GrantedAt    time.Time `json:"granted_at"`
}
