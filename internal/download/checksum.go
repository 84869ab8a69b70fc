package download

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// errHashUnavailable is returned when the checksum hash is not linked in.
var errHashUnavailable = errors.New("hash function unavailable")

// FileChecksum returns the digest of the file with ChecksumFunction.
// Publishers store it next to the installer and Download verifies it.
func FileChecksum(path string) ([]byte, error) {
	if !ChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := ChecksumFunction.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}
