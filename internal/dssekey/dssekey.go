// Package dssekey loads PEM-encoded public keys and adapts them to the
// go-securesystemslib DSSE verifier interface.
//
// Extractors receive public keys as file paths in their parameter maps;
// this package turns those files into [dsse.Verifier] values that an
// envelope verifier can consume.
package dssekey

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/secure-systems-lab/go-securesystemslib/dsse"
)

// ErrUnsupportedKey is returned for public key types the verifier
// cannot handle.
var ErrUnsupportedKey = errors.New("dssekey: unsupported public key type")

// verifier adapts one public key to dsse.Verifier.
type verifier struct {
	keyID string
	pub   crypto.PublicKey
}

// Load reads a PKIX PEM public key file and returns a DSSE verifier for
// it. Supported key types: ed25519, ECDSA (ASN.1 over SHA-256), and
// RSA-PSS over SHA-256.
func Load(path string) (dsse.Verifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dssekey: read %q: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("dssekey: %q is not PEM encoded", path)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("dssekey: parse %q: %w", path, err)
	}
	switch pub.(type) {
	case ed25519.PublicKey, *ecdsa.PublicKey, *rsa.PublicKey:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, pub)
	}
	return &verifier{keyID: keyID(block.Bytes), pub: pub}, nil
}

// LoadAll loads every path in order.
func LoadAll(paths []string) ([]dsse.Verifier, error) {
	verifiers := make([]dsse.Verifier, 0, len(paths))
	for _, path := range paths {
		v, err := Load(path)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	return verifiers, nil
}

// keyID derives a stable identifier from the PKIX DER encoding.
func keyID(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// Verify implements dsse.Verifier.
func (v *verifier) Verify(_ context.Context, data, sig []byte) error {
	switch pub := v.pub.(type) {
	case ed25519.PublicKey:
		if ed25519.Verify(pub, data, sig) {
			return nil
		}
	case *ecdsa.PublicKey:
		sum := sha256.Sum256(data)
		if ecdsa.VerifyASN1(pub, sum[:], sig) {
			return nil
		}
	case *rsa.PublicKey:
		sum := sha256.Sum256(data)
		if rsa.VerifyPSS(pub, crypto.SHA256, sum[:], sig, nil) == nil {
			return nil
		}
	}
	return errors.New("dssekey: signature verification failed")
}

// KeyID implements dsse.Verifier.
func (v *verifier) KeyID() (string, error) { return v.keyID, nil }

// Public implements dsse.Verifier.
func (v *verifier) Public() crypto.PublicKey { return v.pub }

var _ dsse.Verifier = (*verifier)(nil)
