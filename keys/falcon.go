package keys

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/algorand/falcon"
)

// Scheme-defined sizes, re-exported so callers need not import the falcon
// package for validation.
const (
	PublicKeySize  = falcon.PublicKeySize
	PrivateKeySize = falcon.PrivateKeySize
	SeedSize       = 48
)

//FalconKeyPair is a Falcon key pair implementing Signer
type FalconKeyPair struct {
	pub  falcon.PublicKey
	priv falcon.PrivateKey
}

//GenerateKeyPair derives a key pair from seed, or from a fresh random
// seed when seed is nil
func GenerateKeyPair(seed []byte) (*FalconKeyPair, error) {
	if seed == nil {
		seed = make([]byte, SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
	}
	pub, priv, err := falcon.GenerateKey(seed)
	if err != nil {
		return nil, err
	}
	return &FalconKeyPair{pub: pub, priv: priv}, nil
}

//LoadKeyPair builds a key pair from hex encoded key material. Sizes are
// validated before anything is copied so a truncated config value fails
// loudly instead of producing silently invalid signatures.
func LoadKeyPair(pubHex, privHex string) (*FalconKeyPair, error) {
	if pubHex == "" && privHex == "" {
		return nil, ErrNoKeyMaterial
	}
	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("keys: bad public key hex: %w", err)
	}
	privBytes, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("keys: bad private key hex: %w", err)
	}
	if len(pubBytes) != PublicKeySize {
		return nil, fmt.Errorf("keys: public key is %d bytes, want %d", len(pubBytes), PublicKeySize)
	}
	if len(privBytes) != PrivateKeySize {
		return nil, fmt.Errorf("keys: private key is %d bytes, want %d", len(privBytes), PrivateKeySize)
	}
	kp := &FalconKeyPair{}
	copy(kp.pub[:], pubBytes)
	copy(kp.priv[:], privBytes)
	return kp, nil
}

//PublicKey returns the raw public key bytes
func (kp *FalconKeyPair) PublicKey() []byte {
	return append([]byte(nil), kp.pub[:]...)
}

//Sign signs msg, returning a variable-length compressed signature
func (kp *FalconKeyPair) Sign(msg []byte) ([]byte, error) {
	sig, err := kp.priv.SignCompressed(msg)
	if err != nil {
		return nil, err
	}
	return []byte(sig), nil
}

//PublicKeyHex returns the public key as lowercase hex
func (kp *FalconKeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.pub[:])
}

//PrivateKeyHex returns the private key as lowercase hex
func (kp *FalconKeyPair) PrivateKeyHex() string {
	return hex.EncodeToString(kp.priv[:])
}

//FalconVerifier verifies compressed Falcon signatures
type FalconVerifier struct{}

//Verify checks signature over msg against raw public key bytes
func (FalconVerifier) Verify(pubkey, msg, signature []byte) error {
	if len(pubkey) != PublicKeySize {
		return fmt.Errorf("keys: public key is %d bytes, want %d", len(pubkey), PublicKeySize)
	}
	var pub falcon.PublicKey
	copy(pub[:], pubkey)
	return pub.Verify(falcon.CompressedSignature(signature), msg)
}
