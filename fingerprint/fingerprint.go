// Package fingerprint computes content fingerprints for curriculum artifacts.
//
// A fingerprint is the lowercase hex SHA-256 digest of an artifact's full
// byte content. Identical bytes always yield identical fingerprints; that is
// the only equality contract the integrity checks rely on.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/sentinel/blobstore"
	"github.com/hupe1980/sentinel/resource"
)

// PreviewLen is the number of hex characters shown by Fingerprint.Short.
const PreviewLen = 8

// Fingerprint is a hex-encoded SHA-256 digest.
type Fingerprint string

// Sum returns the fingerprint of data.
func Sum(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Short returns a truncated preview suitable for operator output.
func (f Fingerprint) Short() string {
	if len(f) <= PreviewLen {
		return string(f)
	}
	return string(f[:PreviewLen]) + "..."
}

// State is the observed state of an artifact: present with a fingerprint, or absent.
type State struct {
	Fingerprint Fingerprint
	Present     bool
}

// Absent returns the state of an artifact that does not exist.
func Absent() State { return State{} }

// Present returns the state of an existing artifact.
func Present(fp Fingerprint) State { return State{Fingerprint: fp, Present: true} }

// Matches reports whether the state equals an expected fingerprint.
// An absent artifact never matches, whatever is expected.
func (s State) Matches(expected Fingerprint) bool {
	return s.Present && s.Fingerprint == expected
}

// String returns the fingerprint, or "<absent>".
func (s State) String() string {
	if !s.Present {
		return "<absent>"
	}
	return string(s.Fingerprint)
}

// Short returns the truncated fingerprint, or "<absent>".
func (s State) Short() string {
	if !s.Present {
		return "<absent>"
	}
	return s.Fingerprint.Short()
}

// Engine fingerprints artifacts read from a blob store.
// It is safe for concurrent use.
type Engine struct {
	store blobstore.BlobStore
	rc    *resource.Controller
}

// Option configures an Engine.
type Option func(*Engine)

// WithResourceController throttles artifact reads through rc.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.rc = rc
	}
}

// NewEngine creates an engine reading artifacts from store.
func NewEngine(store blobstore.BlobStore, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Fingerprint returns the state of the artifact id.
//
// A missing artifact yields Absent() and a nil error. Any other failure to
// read the artifact is returned as an error.
func (e *Engine) Fingerprint(ctx context.Context, id string) (State, error) {
	blob, err := e.store.Open(ctx, id)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Absent(), nil
		}
		return State{}, fmt.Errorf("fingerprint %s: open: %w", id, err)
	}
	defer blob.Close()

	if m, ok := blob.(blobstore.Mappable); ok && !e.rc.IOLimited() {
		data, err := m.Bytes()
		if err != nil {
			return State{}, fmt.Errorf("fingerprint %s: map: %w", id, err)
		}
		return Present(Sum(data)), nil
	}

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return State{}, fmt.Errorf("fingerprint %s: read: %w", id, err)
	}
	defer r.Close()

	h := sha256.New()
	if _, err := io.Copy(h, resource.NewRateLimitedReader(ctx, r, e.rc)); err != nil {
		return State{}, fmt.Errorf("fingerprint %s: read: %w", id, err)
	}

	return Present(Fingerprint(hex.EncodeToString(h.Sum(nil)))), nil
}
