package tokens

import "errors"

var (
	TokenNotFoundErr   = errors.New("token not found")
	StatusConflictErr  = errors.New("token status changed concurrently")
	AlreadyTerminalErr = errors.New("token already in a terminal state")
	DuplicateSecretErr = errors.New("session secret already in use")
)
