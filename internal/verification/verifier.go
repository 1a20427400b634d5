// Package verification checks the detached signatures shipped with
// downloaded packages. The signature scheme itself is the platform's
// standard one (ECDSA P-256 over SHA-256, ASN.1-encoded signatures);
// nothing here implements cryptographic primitives.
package verification

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Verifier reports whether a package payload matches its detached
// signature. Implementations must be safe for concurrent use.
type Verifier interface {
	Verify(bin, signature []byte) bool
}

// ECDSAVerifier verifies ASN.1 ECDSA signatures over the SHA-256 digest of
// the payload using a pinned server public key.
type ECDSAVerifier struct {
	pub *ecdsa.PublicKey
}

func NewECDSAVerifier(pub *ecdsa.PublicKey) *ECDSAVerifier {
	return &ECDSAVerifier{pub: pub}
}

func (v *ECDSAVerifier) Verify(bin, signature []byte) bool {
	digest := sha256.Sum256(bin)
	return ecdsa.VerifyASN1(v.pub, digest[:], signature)
}

// ParsePublicKeyPEM parses a PEM-encoded PKIX ECDSA public key, the format
// the pinned server key ships in.
func ParsePublicKeyPEM(data []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected key type %T", key)
	}
	return pub, nil
}
