package license

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
)

// KeyAuthenticator derives and validates a credential for a holder
// identity. Implementations must be deterministic and stateless; the
// lease table only ever calls Matches.
type KeyAuthenticator interface {
	// DeriveKey computes the credential for a holder identity.
	DeriveKey(holder string) string
	// Matches reports whether the supplied credential is the one
	// DeriveKey would produce for the holder.
	Matches(holder, supplied string) bool
}

// ContentHashAuthenticator is the default KeyAuthenticator: the
// credential is the hex-encoded MD5 digest of the holder name. This is
// the historic wire contract, not a security boundary; MD5 here is a
// content hash, never a password hash.
type ContentHashAuthenticator struct{}

// DeriveKey returns the hex MD5 digest of the holder name.
func (ContentHashAuthenticator) DeriveKey(holder string) string {
	sum := md5.Sum([]byte(holder))
	return hex.EncodeToString(sum[:])
}

// Matches recomputes the credential and compares in constant time.
func (a ContentHashAuthenticator) Matches(holder, supplied string) bool {
	expected := a.DeriveKey(holder)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
