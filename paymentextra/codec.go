// Package paymentextra encodes and decodes the opaque correlation blob
// carried through a payment authorization round trip. The blob binds the
// provider's eventual outcome notification back to the session that started
// the flow; it is built before redirecting the user to the authentication
// provider and consumed exactly once when the provider reports back.
package paymentextra

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	KeySessionSecret = "session_secret"
	KeyReturnToURL   = "return_to_url"
)

var MalformedExtraErr = errors.New("malformed payment extra")

// Extra is a caller-defined string mapping. The codec round-trips any
// printable keys and values; only the two well-known keys are consumed here.
type Extra map[string]string

// SessionSecret returns the bound session secret, or "" when the flow never
// established a session. Callers must treat the missing key, not an error,
// as "no session binding".
func (e Extra) SessionSecret() string {
	return e[KeySessionSecret]
}

// ReturnToURL returns the URL to send the browser back to, or "".
func (e Extra) ReturnToURL() string {
	return e[KeyReturnToURL]
}

// Encode serializes extra into its wire form.
func Encode(extra Extra) (string, error) {
	raw, err := json.Marshal(extra)
	if err != nil {
		return "", errors.Wrap(err, "[paymentextra.Encode] marshal")
	}
	return string(raw), nil
}

// Decode parses a blob produced by Encode. On a malformed blob it returns the
// empty mapping together with MalformedExtraErr, so callers can log the
// failure and continue with "no session binding" semantics.
func Decode(blob string) (Extra, error) {
	var extra Extra
	if err := json.Unmarshal([]byte(blob), &extra); err != nil {
		return Extra{}, errors.Wrap(MalformedExtraErr, err.Error())
	}
	if extra == nil {
		extra = Extra{}
	}
	return extra, nil
}
