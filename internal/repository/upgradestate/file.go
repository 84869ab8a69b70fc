package upgradestate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/scalar-upgrader/internal/config"
	"github.com/oshokin/scalar-upgrader/internal/domain/upgrade"
)

const (
	// fieldVersion holds the release version.
	fieldVersion = "version"
	// fieldRing holds the release ring name.
	fieldRing = "ring"
	// fieldCheckedAt holds the RFC 3339 time of the check.
	fieldCheckedAt = "checked_at"
)

// ErrNotFound is returned when no release is recorded.
var ErrNotFound = errors.New("no available release recorded")

// Record is the newest release found by a check.
type Record struct {
	// Version is the release version.
	Version upgrade.Version
	// Ring is the release ring.
	Ring upgrade.Ring
	// CheckedAt is when the release was found.
	CheckedAt time.Time
}

// FileRepository stores the record as JSON on disk.
// JSON is produced and consumed via protojson over a structpb.Struct.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// now stamps new records.
	now func() time.Time
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads and writes JSON at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
		now:  time.Now,
	}
}

// Load reads the record from disk.
func (r *FileRepository) Load(_ context.Context) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	return fromStruct(&document)
}

// Save writes the record to disk.
func (r *FileRepository) Save(_ context.Context, record *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	document, err := structpb.NewStruct(map[string]any{
		fieldVersion:   record.Version.String(),
		fieldRing:      record.Ring.String(),
		fieldCheckedAt: record.CheckedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// Clear removes the record, a missing record is not an error.
func (r *FileRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}

	return nil
}

// Record saves candidate as the available release, or clears the record when nil.
func (r *FileRepository) Record(ctx context.Context, candidate *upgrade.ReleaseCandidate) error {
	if candidate == nil {
		return r.Clear(ctx)
	}

	return r.Save(ctx, &Record{
		Version:   candidate.Version,
		Ring:      candidate.Ring,
		CheckedAt: r.now(),
	})
}

// fromStruct converts the JSON document into a Record.
func fromStruct(document *structpb.Struct) (*Record, error) {
	fields := document.GetFields()

	version, err := upgrade.ParseVersion(fields[fieldVersion].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	ring, err := upgrade.ParseRing(fields[fieldRing].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	var checkedAt time.Time
	if raw := fields[fieldCheckedAt].GetStringValue(); raw != "" {
		if checkedAt, err = time.Parse(time.RFC3339, raw); err != nil {
			return nil, fmt.Errorf("decode state file: %w", err)
		}
	}

	return &Record{
		Version:   version,
		Ring:      ring,
		CheckedAt: checkedAt,
	}, nil
}
