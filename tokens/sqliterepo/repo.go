package sqliterepo

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mnewlive/compliance-connector/tokens"
)

const schema = `
CREATE TABLE IF NOT EXISTS tbl_token (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL DEFAULT '',
	session_secret TEXT NOT NULL DEFAULT '',
	access_token TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	consent TEXT NOT NULL DEFAULT '',
	tpp_redirect_url TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	access_token_expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_token_session_secret
	ON tbl_token(session_secret) WHERE session_secret != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_token_access_token
	ON tbl_token(access_token) WHERE access_token != '';
CREATE INDEX IF NOT EXISTS idx_token_user_status ON tbl_token(user_id, status);
`

const tokenColumns = `id, user_id, session_secret, access_token, status, consent,
	tpp_redirect_url, created_at, access_token_expires_at`

var _ tokens.Repo = (*TokenRepo)(nil)

// TokenRepo is the sqlite-backed token store. The compare-and-set transition
// is a single conditional UPDATE guarded on the expected status, so two
// racing transitions on the same token yield exactly one winner.
type TokenRepo struct {
	db *sql.DB
}

// Open opens (and if needed creates) the token database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*TokenRepo, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "[sqliterepo.Open] sql.Open")
	}
	// One connection keeps ":memory:" stores coherent and serializes writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "[sqliterepo.Open] create schema")
	}
	return &TokenRepo{db: db}, nil
}

// New wraps an already-open database handle. The schema must exist.
func New(db *sql.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

func (r *TokenRepo) Close() error {
	return r.db.Close()
}

func (r *TokenRepo) Create(token *tokens.Token) error {
	consent, err := marshalConsent(token.Consent)
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Create] marshal consent")
	}

	_, err = r.db.Exec(
		`INSERT INTO tbl_token (`+tokenColumns+`) VALUES (?,?,?,?,?,?,?,?,?);`,
		token.ID, token.UserID, token.SessionSecret, token.AccessToken,
		string(token.Status), consent, token.TPPRedirectURL,
		token.CreatedAt.Unix(), expiryUnix(token.AccessTokenExpiresAt),
	)
	if isUniqueViolation(err) {
		return tokens.DuplicateSecretErr
	}
	if err != nil {
		return errors.Wrap(err, "[TokenRepo.Create] insert")
	}
	return nil
}

func (r *TokenRepo) FindBySessionSecret(secret string) (*tokens.Token, error) {
	row := r.db.QueryRow(
		`SELECT `+tokenColumns+` FROM tbl_token WHERE session_secret = ? AND session_secret != '';`,
		secret,
	)
	return scanToken(row)
}

func (r *TokenRepo) FindByUserAndAccessToken(userID, accessToken string) (*tokens.Token, error) {
	row := r.db.QueryRow(
		`SELECT `+tokenColumns+` FROM tbl_token
			WHERE user_id = ? AND access_token = ? AND access_token != '';`,
		userID, accessToken,
	)
	return scanToken(row)
}

func (r *TokenRepo) AtomicTransition(id string, expected, next tokens.Status, update *tokens.Update) (*tokens.Token, error) {
	var (
		userID      string
		accessToken string
		consent     string
	)
	if update != nil {
		userID = update.UserID
		accessToken = update.AccessToken
		if update.Consent != nil {
			encoded, err := marshalConsent(update.Consent)
			if err != nil {
				return nil, errors.Wrap(err, "[TokenRepo.AtomicTransition] marshal consent")
			}
			consent = encoded
		}
	}

	// Status guard in the WHERE clause makes this a compare-and-set: the
	// losing racer updates zero rows.
	result, err := r.db.Exec(
		`UPDATE tbl_token SET
			status = ?,
			user_id = CASE WHEN ? != '' THEN ? ELSE user_id END,
			access_token = CASE WHEN ? != '' THEN ? ELSE access_token END,
			consent = CASE WHEN ? != '' THEN ? ELSE consent END
		WHERE id = ? AND status = ?;`,
		string(next),
		userID, userID,
		accessToken, accessToken,
		consent, consent,
		id, string(expected),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[TokenRepo.AtomicTransition] update")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "[TokenRepo.AtomicTransition] rows affected")
	}
	if affected == 0 {
		var exists int
		if err := r.db.QueryRow(`SELECT COUNT(1) FROM tbl_token WHERE id = ?;`, id).Scan(&exists); err != nil {
			return nil, errors.Wrap(err, "[TokenRepo.AtomicTransition] existence check")
		}
		if exists == 0 {
			return nil, tokens.TokenNotFoundErr
		}
		return nil, tokens.StatusConflictErr
	}

	row := r.db.QueryRow(`SELECT `+tokenColumns+` FROM tbl_token WHERE id = ?;`, id)
	return scanToken(row)
}

func (r *TokenRepo) ListByUserAndStatus(userID string, status tokens.Status) ([]*tokens.Token, error) {
	rows, err := r.db.Query(
		`SELECT `+tokenColumns+` FROM tbl_token
			WHERE user_id = ? AND status = ? ORDER BY created_at ASC;`,
		userID, string(status),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[TokenRepo.ListByUserAndStatus] query")
	}
	defer rows.Close()

	matched := make([]*tokens.Token, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		matched = append(matched, token)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[TokenRepo.ListByUserAndStatus] rows")
	}
	return matched, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(row scanner) (*tokens.Token, error) {
	var (
		token     tokens.Token
		status    string
		consent   string
		createdAt int64
		expiresAt int64
	)
	err := row.Scan(
		&token.ID, &token.UserID, &token.SessionSecret, &token.AccessToken,
		&status, &consent, &token.TPPRedirectURL, &createdAt, &expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tokens.TokenNotFoundErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "[sqliterepo.scanToken] scan")
	}

	token.Status = tokens.Status(status)
	token.CreatedAt = time.Unix(createdAt, 0).UTC()
	if expiresAt > 0 {
		token.AccessTokenExpiresAt = time.Unix(expiresAt, 0).UTC()
	}
	if consent != "" {
		var c tokens.Consent
		if err := json.Unmarshal([]byte(consent), &c); err != nil {
			return nil, errors.Wrap(err, "[sqliterepo.scanToken] unmarshal consent")
		}
		token.Consent = &c
	}
	return &token, nil
}

func marshalConsent(consent *tokens.Consent) (string, error) {
	if consent == nil {
		return "", nil
	}
	raw, err := json.Marshal(consent)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func expiryUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// mattn/go-sqlite3 reports constraint violations with this prefix.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
