// Package manifest loads the trusted manifest the integrity checks verify against.
//
// A manifest is a JSON object mapping artifact identifiers to expected
// fingerprints, plus one reserved key holding the expected remote record count:
//
//	{
//	  "src/data/curriculum.ts": "9f86d081884c7d65...",
//	  "backend/data/embeddings/lesson_vectors.json": "60303ae22b998861...",
//	  "expected_count": 42
//	}
//
// Manifests are authored elsewhere; this package only reads them.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	cyberphone "github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"

	"github.com/hupe1980/sentinel/blobstore"
	"github.com/hupe1980/sentinel/codec"
	"github.com/hupe1980/sentinel/fingerprint"
)

const (
	// DefaultPath is where the manifest lives relative to the workspace root.
	DefaultPath = "agents/sentinel/manifest.json"
	// DefaultCountKey is the reserved key for the expected record count.
	DefaultCountKey = "expected_count"
	// LegacyCountKey is accepted as an alias of DefaultCountKey.
	LegacyCountKey = "d1_expected_count"
)

// ErrUnavailable is returned when the manifest is missing or malformed.
// It means "cannot check", never "tampering detected".
var ErrUnavailable = errors.New("manifest unavailable")

// Manifest is an immutable, loaded manifest.
type Manifest struct {
	fingerprints  map[string]fingerprint.Fingerprint
	expectedCount *int64
	raw           []byte
}

// Expected returns the expected fingerprint for an artifact id.
func (m *Manifest) Expected(id string) (fingerprint.Fingerprint, bool) {
	fp, ok := m.fingerprints[id]
	return fp, ok
}

// ExpectedCount returns the expected remote record count, if the manifest has one.
func (m *Manifest) ExpectedCount() (int64, bool) {
	if m.expectedCount == nil {
		return 0, false
	}
	return *m.expectedCount, true
}

// Artifacts returns the artifact ids listed in the manifest, sorted.
func (m *Manifest) Artifacts() []string {
	ids := make([]string, 0, len(m.fingerprints))
	for id := range m.fingerprints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Digest returns the SHA-256 of the manifest's RFC 8785 canonical form.
//
// Reformatting or reordering the manifest file does not change the digest,
// so it identifies which trusted state a report was verified against.
func (m *Manifest) Digest() (fingerprint.Fingerprint, error) {
	canonical, err := cyberphone.Transform(m.raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize manifest: %w", err)
	}
	return fingerprint.Sum(canonical), nil
}

// Loader reads manifests from a blob store.
type Loader struct {
	store     blobstore.BlobStore
	codec     codec.Codec
	countKeys []string
}

// Option configures a Loader.
type Option func(*Loader)

// WithCodec configures the codec used to decode the manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(l *Loader) {
		if c == nil {
			c = codec.Default
		}
		l.codec = c
	}
}

// WithCountKey sets the reserved key holding the expected record count.
// LegacyCountKey remains accepted as a fallback.
func WithCountKey(key string) Option {
	return func(l *Loader) {
		if key != "" {
			l.countKeys = []string{key, LegacyCountKey}
		}
	}
}

// NewLoader creates a manifest loader.
func NewLoader(store blobstore.BlobStore, opts ...Option) *Loader {
	l := &Loader{
		store:     store,
		codec:     codec.Default,
		countKeys: []string{DefaultCountKey, LegacyCountKey},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads and parses the manifest at name.
// Every failure wraps ErrUnavailable.
func (l *Loader) Load(ctx context.Context, name string) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, l.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: missing at %s", ErrUnavailable, name)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, name, err)
	}

	m, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	return m, nil
}

// Parse decodes manifest bytes.
func (l *Loader) Parse(data []byte) (*Manifest, error) {
	var entries map[string]any
	if err := l.codec.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if entries == nil {
		return nil, errors.New("manifest is not a JSON object")
	}

	m := &Manifest{
		fingerprints: make(map[string]fingerprint.Fingerprint, len(entries)),
		raw:          data,
	}

	for key, value := range entries {
		if l.isCountKey(key) {
			if value == nil {
				continue
			}
			n, err := toCount(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			// The configured key wins over the legacy alias.
			if m.expectedCount == nil || key == l.countKeys[0] {
				m.expectedCount = &n
			}
			continue
		}

		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected fingerprint string, got %T", key, value)
		}
		m.fingerprints[key] = fingerprint.Fingerprint(s)
	}

	return m, nil
}

func (l *Loader) isCountKey(key string) bool {
	for _, k := range l.countKeys {
		if k == key {
			return true
		}
	}
	return false
}

func toCount(v any) (int64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected integer count, got %T", v)
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("expected integer count, got %v", f)
	}
	return int64(f), nil
}
