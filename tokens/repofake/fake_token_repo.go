package tokenrepofake

import (
	"sort"
	"sync"

	"github.com/mnewlive/compliance-connector/tokens"
)

var _ tokens.Repo = (*FakeTokenRepo)(nil)

// FakeTokenRepo is an in-memory token store. The single lock makes
// AtomicTransition an honest compare-and-set, matching the contract the
// lifecycle service relies on.
type FakeTokenRepo struct {
	byID map[string]*tokens.Token
	lock sync.RWMutex
}

func NewFakeTokenRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		byID: make(map[string]*tokens.Token),
	}
}

func (r *FakeTokenRepo) Create(token *tokens.Token) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, t := range r.byID {
		if token.SessionSecret != "" && t.SessionSecret == token.SessionSecret {
			return tokens.DuplicateSecretErr
		}
	}

	copied := *token
	r.byID[token.ID] = &copied
	return nil
}

func (r *FakeTokenRepo) FindBySessionSecret(secret string) (*tokens.Token, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, t := range r.byID {
		if t.SessionSecret != "" && t.SessionSecret == secret {
			copied := *t
			return &copied, nil
		}
	}
	return nil, tokens.TokenNotFoundErr
}

func (r *FakeTokenRepo) FindByUserAndAccessToken(userID, accessToken string) (*tokens.Token, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, t := range r.byID {
		if t.UserID == userID && t.AccessToken != "" && t.AccessToken == accessToken {
			copied := *t
			return &copied, nil
		}
	}
	return nil, tokens.TokenNotFoundErr
}

func (r *FakeTokenRepo) AtomicTransition(id string, expected, next tokens.Status, update *tokens.Update) (*tokens.Token, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	t, ok := r.byID[id]
	if !ok {
		return nil, tokens.TokenNotFoundErr
	}
	if t.Status != expected {
		return nil, tokens.StatusConflictErr
	}

	t.Status = next
	if update != nil {
		if update.UserID != "" {
			t.UserID = update.UserID
		}
		if update.AccessToken != "" {
			t.AccessToken = update.AccessToken
		}
		if update.Consent != nil {
			t.Consent = update.Consent
		}
	}

	copied := *t
	return &copied, nil
}

func (r *FakeTokenRepo) ListByUserAndStatus(userID string, status tokens.Status) ([]*tokens.Token, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	matched := make([]*tokens.Token, 0)
	for _, t := range r.byID {
		if t.UserID == userID && t.Status == status {
			copied := *t
			matched = append(matched, &copied)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return matched, nil
}
