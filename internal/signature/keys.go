package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// errBadKeyLength is returned when a decoded key has the wrong size.
	errBadKeyLength = errors.New("invalid ed25519 key length")
	// errUnknownSigner is returned when no public key is registered for a signer.
	errUnknownSigner = errors.New("signer is not trusted")
	// errHashMismatch is returned when the signature does not cover the file digest.
	errHashMismatch = errors.New("digest does not match signature")
)

// ParsePublicKey decodes a hex-encoded ed25519 public key.
func ParsePublicKey(encoded string) (ed25519.PublicKey, error) {
	raw, err := decodeHex(encoded, ed25519.PublicKeySize)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return ed25519.PublicKey(raw), nil
}

// ParsePrivateKey decodes a hex-encoded ed25519 private key.
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw, err := decodeHex(encoded, ed25519.PrivateKeySize)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return ed25519.PrivateKey(raw), nil
}

// GenerateKeyPair creates a new signer key pair encoded as hex.
func GenerateKeyPair() (publicKey, privateKey string, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate key: %w", err)
	}

	return hex.EncodeToString(pub), hex.EncodeToString(priv), nil
}

// decodeHex decodes a hex string of exactly size bytes, tolerating whitespace and a 0x prefix.
func decodeHex(encoded string, size int) ([]byte, error) {
	normalized := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(encoded)), "0x")

	raw, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, err
	}

	if len(raw) != size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", errBadKeyLength, len(raw), size)
	}

	return raw, nil
}
