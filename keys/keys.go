//Package keys holds the operator's post-quantum signing identity. The
// signing scheme sits behind a small interface so the submission engine can
// be tested against a mock signer and the scheme swapped without touching
// the protocol code.
package keys

import "errors"

//Signer produces signatures under a post-quantum scheme. Signatures are
// variable length and must fit the protocol's 16-bit length fields; that
// bound is enforced by the callers, not here.
type Signer interface {
	//PublicKey returns the raw public key bytes
	PublicKey() []byte
	//Sign signs msg with the private key
	Sign(msg []byte) ([]byte, error)
}

//Verifier checks a signature against raw public key bytes
type Verifier interface {
	Verify(pubkey, msg, signature []byte) error
}

//ErrNoKeyMaterial is returned when a key pair is constructed from empty input
var ErrNoKeyMaterial = errors.New("keys: no key material configured")
