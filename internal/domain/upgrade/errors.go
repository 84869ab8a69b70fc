package upgrade

import (
	"errors"
	"fmt"
)

// Kind classifies a stage failure.
type Kind int

const (
	KindPrerequisiteBlocked Kind = iota + 1
	KindRemoteFetch
	KindDownloadDirectory
	KindAssetDownload
	KindSignature
	KindInstall
	KindCleanup
)

// ErrUpgradeFailed is returned by entry points when a run ends in StateFailed.
var ErrUpgradeFailed = errors.New("upgrade failed")

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindPrerequisiteBlocked:
		return "PrerequisiteBlocked"
	case KindRemoteFetch:
		return "RemoteFetchError"
	case KindDownloadDirectory:
		return "DownloadDirectoryError"
	case KindAssetDownload:
		return "AssetDownloadError"
	case KindSignature:
		return "SignatureError"
	case KindInstall:
		return "InstallError"
	case KindCleanup:
		return "CleanupError"
	default:
		return "UnknownError"
	}
}

// Fatal reports whether a failure of this kind aborts the run.
// Only cleanup failures are tolerated.
func (k Kind) Fatal() bool {
	return k != KindCleanup
}

// Error is a failure tagged with its stage kind and, when relevant, the asset.
type Error struct {
	// Kind is the stage failure class.
	Kind Kind
	// Asset is the logical asset name, empty for stage-wide failures.
	Asset string
	// Message is the user-facing text reported verbatim.
	Message string
	// Err is the underlying cause, may be nil.
	Err error
}

// NewError builds a tagged error.
func NewError(kind Kind, asset, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Asset:   asset,
		Message: message,
		Err:     cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}

	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a tagged error from err, wrapping untyped errors into the
// given fallback kind and message.
func AsError(err error, fallback Kind, asset, message string) *Error {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged
	}

	return NewError(fallback, asset, message, err)
}
