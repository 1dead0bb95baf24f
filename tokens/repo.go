package tokens

// Update carries the fields bound to a token during a status transition.
// Zero-value fields are left untouched by the store.
type Update struct {
	UserID      string
	AccessToken string
	Consent     *Consent
}

// Repo is the durable token store. AtomicTransition is the correctness-bearing
// operation: it must read the current status and write the new one as a single
// indivisible compare-and-set, so that two racing transitions on the same
// token yield exactly one winner. Callers must never emulate it with a
// separate read followed by a write.
type Repo interface {
	Create(token *Token) error
	FindBySessionSecret(secret string) (*Token, error)
	FindByUserAndAccessToken(userID, accessToken string) (*Token, error)

	// AtomicTransition moves the token from expected to next and applies
	// update, returning the stored token as written. It returns
	// StatusConflictErr when the token's status no longer equals expected,
	// and TokenNotFoundErr when no token has that id.
	AtomicTransition(id string, expected, next Status, update *Update) (*Token, error)

	// ListByUserAndStatus returns the user's tokens in the given status,
	// ordered by creation time.
	ListByUserAndStatus(userID string, status Status) ([]*Token, error)
}
