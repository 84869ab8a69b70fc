package signature

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
	"github.com/oshokin/scalar-upgrader/internal/logger"
)

// MismatchMessage is reported when an installer fails verification.
const MismatchMessage = "the hash of the file does not match the hash stored in the digital signature."

// Verifier checks installer signatures against trusted signers.
type Verifier struct {
	// trusted maps signer identities to public keys.
	trusted map[string]ed25519.PublicKey
}

// NewVerifier creates a verifier from signer identities and hex public keys.
func NewVerifier(trustedSigners map[string]string) (*Verifier, error) {
	trusted := make(map[string]ed25519.PublicKey, len(trustedSigners))

	for signer, encoded := range trustedSigners {
		key, err := ParsePublicKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("signer %s: %w", signer, err)
		}

		trusted[signer] = key
	}

	return &Verifier{trusted: trusted}, nil
}

// Verify checks that asset was signed by its expected signer and that the
// signed digest matches the file. Failures are returned as *upgrade.Error of
// kind KindSignature naming the asset.
func (v *Verifier) Verify(ctx context.Context, asset upgrade.DownloadedAsset) error {
	key, found := v.trusted[asset.Descriptor.Signer]
	if !found {
		return mismatch(asset, fmt.Errorf("%q: %w", asset.Descriptor.Signer, errUnknownSigner))
	}

	digest, err := FileDigest(asset.Path)
	if err != nil {
		return mismatch(asset, err)
	}

	if !ed25519.Verify(key, digest, asset.Descriptor.Signature) {
		return mismatch(asset, errHashMismatch)
	}

	logger.DebugKV(ctx, "Verified installer signature", "asset", asset.Name(), "signer", asset.Descriptor.Signer)

	return nil
}

// FileDigest returns the SHA-256 digest of the file at path.
func FileDigest(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := sha256.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("hash file: %w", err)
	}

	return hasher.Sum(nil), nil
}

// SignFile signs the SHA-256 digest of the file at path.
func SignFile(key ed25519.PrivateKey, path string) ([]byte, error) {
	digest, err := FileDigest(path)
	if err != nil {
		return nil, err
	}

	return ed25519.Sign(key, digest), nil
}

// mismatch tags err as a signature failure of asset.
func mismatch(asset upgrade.DownloadedAsset, err error) *upgrade.Error {
	message := fmt.Sprintf("%s installer verification failed: %s", asset.Name(), MismatchMessage)

	return upgrade.NewError(upgrade.KindSignature, asset.Name(), message, err)
}
