package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/scalar-upgrader/internal/logger"
	"github.com/oshokin/scalar-upgrader/internal/signature"
)

// privateKeyMode restricts the private key file to its owner.
const privateKeyMode os.FileMode = 0o600

// errNoKeyPath is returned when the private key destination is not set.
var errNoKeyPath = errors.New("private key path is not set")

// Keygen creates a signer key pair, stores the private key at keyPath
// and returns the hex public key for the trusted_signers setting.
// An existing key file is never overwritten.
func Keygen(ctx context.Context, keyPath string) (string, error) {
	ctx = logger.WithName(ctx, "scalar-packager")

	if keyPath == "" {
		return "", errNoKeyPath
	}

	publicKey, privateKey, err := signature.GenerateKeyPair()
	if err != nil {
		return "", err
	}

	file, err := os.OpenFile(filepath.Clean(keyPath), os.O_CREATE|os.O_EXCL|os.O_WRONLY, privateKeyMode)
	if err != nil {
		return "", fmt.Errorf("create private key file: %w", err)
	}

	if _, err = file.WriteString(privateKey + "\n"); err != nil {
		_ = file.Close()

		return "", fmt.Errorf("write private key: %w", err)
	}

	if err = file.Close(); err != nil {
		return "", fmt.Errorf("close private key file: %w", err)
	}

	logger.InfoKV(ctx, "Generated signer key pair", "private_key", keyPath)

	return publicKey, nil
}
