package tokens

import (
	"time"
)

// Status represents the lifecycle state of a Token.
// Transitions are monotonic: PENDING -> CONFIRMED, PENDING -> REVOKED,
// CONFIRMED -> REVOKED. Nothing leaves REVOKED.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRevoked   Status = "revoked"
)

// Token represents one granted or pending access delegation from a user to a
// TPP. A pending token is addressed by its session secret; once confirmed it
// is addressed by (user id, access token). Revocation is a status change,
// tokens are never deleted.
type Token struct {
	ID                   string
	UserID               string
	SessionSecret        string
	AccessToken          string
	Status               Status
	Consent              *Consent // nil means global consent
	TPPRedirectURL       string
	CreatedAt            time.Time
	AccessTokenExpiresAt time.Time // set by the issuer, max 90 days, not recomputed here
}

// GlobalConsent reports whether the token was granted under global consent,
// i.e. no per-resource consent object is attached.
func (t *Token) GlobalConsent() bool {
	return t.Consent == nil
}

// Revoked reports whether the token is in its terminal REVOKED state.
func (t *Token) Revoked() bool {
	return t.Status == StatusRevoked
}

// CanTransitionTo reports whether the state machine permits moving from the
// token's current status to next.
func (t *Token) CanTransitionTo(next Status) bool {
	switch t.Status {
	case StatusPending:
		return next == StatusConfirmed || next == StatusRevoked
	case StatusConfirmed:
		return next == StatusRevoked
	}
	return false
}
