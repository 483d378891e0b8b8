package drift

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/sentinel/blobstore"
	"github.com/hupe1980/sentinel/codec"
	"github.com/hupe1980/sentinel/resource"
)

const (
	// DefaultBaselinePath is the golden snapshot location relative to the workspace root.
	DefaultBaselinePath = "backups/vectors_snapshot_v1.0.json"
	// DefaultCurrentPath is where the live embeddings are exported.
	DefaultCurrentPath = "backend/data/embeddings/lesson_vectors.json"
)

// ErrSnapshotUnavailable is returned when a snapshot is missing or malformed.
var ErrSnapshotUnavailable = errors.New("snapshot unavailable")

// Snapshot maps entity ids to embedding vectors.
type Snapshot map[string][]float64

// IDs returns the snapshot's entity ids in sorted order.
func (s Snapshot) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Loader reads snapshots from a blob store.
//
// Snapshots may be stored compressed; the compression is chosen from the
// file extension (.gz, .zst, .lz4).
type Loader struct {
	store blobstore.BlobStore
	codec codec.Codec
	rc    *resource.Controller
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithCodec sets the codec used to decode snapshots.
func WithCodec(c codec.Codec) LoaderOption {
	return func(l *Loader) {
		if c != nil {
			l.codec = c
		}
	}
}

// WithResourceController throttles snapshot reads through rc.
func WithResourceController(rc *resource.Controller) LoaderOption {
	return func(l *Loader) {
		l.rc = rc
	}
}

// NewLoader creates a snapshot loader.
func NewLoader(store blobstore.BlobStore, opts ...LoaderOption) *Loader {
	l := &Loader{store: store, codec: codec.Default}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and decodes the snapshot at name.
// Every failure wraps ErrSnapshotUnavailable.
func (l *Loader) Load(ctx context.Context, name string) (Snapshot, error) {
	blob, err := l.store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: missing at %s", ErrSnapshotUnavailable, name)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrSnapshotUnavailable, name, err)
	}
	defer blob.Close()

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrSnapshotUnavailable, name, err)
	}
	defer r.Close()

	dr, err := blobstore.Decompress(name, resource.NewRateLimitedReader(ctx, r, l.rc))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotUnavailable, name, err)
	}
	defer dr.Close()

	var snap Snapshot
	if err := codec.Decode(l.codec, dr, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotUnavailable, name, err)
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s: not a JSON object", ErrSnapshotUnavailable, name)
	}
	return snap, nil
}
