package integrity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sentinel/blobstore"
	"github.com/hupe1980/sentinel/fingerprint"
	"github.com/hupe1980/sentinel/manifest"
	"github.com/hupe1980/sentinel/oracle"
	"github.com/hupe1980/sentinel/report"
)

var (
	sourceBytes     = []byte("export const curriculum = [];\n")
	embeddingsBytes = []byte(`{"L1":[0.1,0.2]}`)
)

// countingStore records every Open call.
type countingStore struct {
	blobstore.BlobStore
	mu     sync.Mutex
	opened []string
}

func (s *countingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	s.mu.Lock()
	s.opened = append(s.opened, name)
	s.mu.Unlock()
	return s.BlobStore.Open(ctx, name)
}

func (s *countingStore) Opened(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.opened {
		if n == name {
			return true
		}
	}
	return false
}

// scriptedOracle returns a fixed answer and counts calls.
type scriptedOracle struct {
	n     int64
	err   error
	calls int
}

func (o *scriptedOracle) Count(context.Context) (int64, error) {
	o.calls++
	return o.n, o.err
}

type fixture struct {
	store *countingStore
	mem   *blobstore.MemoryStore
}

func newFixture(t *testing.T, manifestJSON string) *fixture {
	t.Helper()
	mem := blobstore.NewMemoryStore()
	mem.Put(DefaultSourcePath, sourceBytes)
	mem.Put(DefaultEmbeddingsPath, embeddingsBytes)
	if manifestJSON != "" {
		mem.Put(manifest.DefaultPath, []byte(manifestJSON))
	}
	return &fixture{store: &countingStore{BlobStore: mem}, mem: mem}
}

func (f *fixture) verifier(opts ...Option) *Verifier {
	return NewVerifier(manifest.NewLoader(f.store), fingerprint.NewEngine(f.store), opts...)
}

func goodManifest(count int64) string {
	return fmt.Sprintf(`{%q: %q, %q: %q, "expected_count": %d}`,
		DefaultSourcePath, fingerprint.Sum(sourceBytes),
		DefaultEmbeddingsPath, fingerprint.Sum(embeddingsBytes),
		count)
}

func TestVerifier_AllPass(t *testing.T) {
	f := newFixture(t, goodManifest(42))
	o := &scriptedOracle{n: 42}

	res := f.verifier(WithOracle(o)).Run(context.Background())
	require.True(t, res.Passed)
	require.Len(t, res.Findings, 3)
	assert.Equal(t, StageSource, res.Findings[0].Check)
	assert.Equal(t, StageEmbeddings, res.Findings[1].Check)
	assert.Equal(t, StageCount, res.Findings[2].Check)
	for _, finding := range res.Findings {
		assert.Equal(t, report.StatusPass, finding.Status)
	}
	assert.Equal(t, 1, o.calls)
	assert.Equal(t, 0, res.ExitCode())
	assert.Len(t, res.Metadata["manifest_digest"], 64)
}

func TestVerifier_SourceTamperingHalts(t *testing.T) {
	f := newFixture(t, goodManifest(42))
	f.mem.Put(DefaultSourcePath, []byte("export const curriculum = ['injected'];\n"))
	o := &scriptedOracle{n: 42}

	res := f.verifier(WithOracle(o)).Run(context.Background())
	assert.False(t, res.Passed)
	require.Len(t, res.Findings, 1)

	finding := res.Findings[0]
	assert.Equal(t, report.ClassIntegrityViolation, finding.Class)
	assert.Equal(t, string(fingerprint.Sum(sourceBytes)), finding.Expected)
	assert.NotEqual(t, finding.Expected, finding.Actual)
	assert.Len(t, finding.Actual, 64)

	assert.False(t, f.store.Opened(DefaultEmbeddingsPath), "embeddings must not be fingerprinted after a source failure")
	assert.Zero(t, o.calls, "oracle must not be queried after a failure")
	assert.Equal(t, 1, res.ExitCode())
}

func TestVerifier_ScenarioMismatchedManifest(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	mem.Put("src.ts", []byte("const a = 1;"))
	mem.Put(manifest.DefaultPath, []byte(`{"src.ts": "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef"}`))

	v := NewVerifier(manifest.NewLoader(mem), fingerprint.NewEngine(mem),
		WithStages(NewFingerprintStage(StageSource, "SOURCE", "src.ts", fingerprint.NewEngine(mem))))

	res := v.Run(context.Background())
	assert.False(t, res.Passed)
	assert.NotZero(t, res.ExitCode())
	assert.Equal(t, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef", res.Findings[0].Expected)
	assert.Equal(t, string(fingerprint.Sum([]byte("const a = 1;"))), res.Findings[0].Actual)
}

func TestVerifier_AbsentArtifactIsMismatch(t *testing.T) {
	f := newFixture(t, goodManifest(42))
	f.mem.Delete(DefaultEmbeddingsPath)

	res := f.verifier(WithOracle(oracle.Static(42))).Run(context.Background())
	assert.False(t, res.Passed)
	require.Len(t, res.Findings, 2)
	assert.Equal(t, report.StatusPass, res.Findings[0].Status)

	finding := res.Findings[1]
	assert.Equal(t, report.ClassIntegrityViolation, finding.Class)
	assert.Equal(t, "<absent>", finding.Actual)
}

func TestVerifier_OracleUnavailableSkips(t *testing.T) {
	var logs bytes.Buffer
	f := newFixture(t, goodManifest(42))
	o := &scriptedOracle{err: errors.New("wrangler: exit status 1")}

	res := f.verifier(
		WithOracle(o),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	).Run(context.Background())

	assert.True(t, res.Passed)
	require.Len(t, res.Findings, 3)
	assert.Equal(t, report.StatusSkip, res.Findings[2].Status)
	assert.Equal(t, report.ClassOracleUnavailable, res.Findings[2].Class)
	assert.Len(t, res.Skipped(), 1)
	assert.Equal(t, 0, res.ExitCode())
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte(`"level":"WARN"`)))
}

func TestVerifier_OraclePanicSkips(t *testing.T) {
	f := newFixture(t, goodManifest(42))
	o := oracle.Func(func(context.Context) (int64, error) { panic("driver bug") })

	res := f.verifier(WithOracle(o)).Run(context.Background())
	assert.True(t, res.Passed)
	assert.Equal(t, report.StatusSkip, res.Findings[2].Status)
}

func TestVerifier_OracleTimeoutSkips(t *testing.T) {
	f := newFixture(t, goodManifest(42))
	slow := oracle.Func(func(ctx context.Context) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	res := f.verifier(WithOracle(slow), WithOracleTimeout(10*time.Millisecond)).Run(context.Background())
	assert.True(t, res.Passed)
	assert.Equal(t, report.StatusSkip, res.Findings[2].Status)
}

func TestVerifier_NoOracleSkips(t *testing.T) {
	f := newFixture(t, goodManifest(42))

	res := f.verifier().Run(context.Background())
	assert.True(t, res.Passed)
	assert.Equal(t, report.StatusSkip, res.Findings[2].Status)
}

func TestVerifier_CountMismatch(t *testing.T) {
	f := newFixture(t, goodManifest(42))

	res := f.verifier(WithOracle(oracle.Static(41))).Run(context.Background())
	assert.False(t, res.Passed)
	finding := res.Findings[2]
	assert.Equal(t, report.ClassIntegrityViolation, finding.Class)
	assert.Equal(t, "42", finding.Expected)
	assert.Equal(t, "41", finding.Actual)
}

func TestVerifier_CountZeroIsAnAnswer(t *testing.T) {
	f := newFixture(t, goodManifest(0))

	res := f.verifier(WithOracle(oracle.Static(0))).Run(context.Background())
	assert.True(t, res.Passed)
	assert.Equal(t, report.StatusPass, res.Findings[2].Status)
}

func TestVerifier_CountMissingFromManifest(t *testing.T) {
	m := fmt.Sprintf(`{%q: %q, %q: %q}`,
		DefaultSourcePath, fingerprint.Sum(sourceBytes),
		DefaultEmbeddingsPath, fingerprint.Sum(embeddingsBytes))
	f := newFixture(t, m)

	res := f.verifier(WithOracle(oracle.Static(5))).Run(context.Background())
	assert.False(t, res.Passed)
	assert.Equal(t, "", res.Findings[2].Expected)
	assert.Equal(t, "5", res.Findings[2].Actual)
}

func TestVerifier_ManifestUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{name: "missing", manifest: ""},
		{name: "malformed", manifest: `{"src/data/curriculum.ts": `},
		{name: "non-string fingerprint", manifest: `{"src/data/curriculum.ts": 12}`},
		{name: "non-integer count", manifest: `{"expected_count": "many"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.manifest)
			o := &scriptedOracle{n: 1}

			res := f.verifier(WithOracle(o)).Run(context.Background())
			assert.False(t, res.Passed)
			require.Len(t, res.Findings, 1)
			assert.Equal(t, "manifest", res.Findings[0].Check)
			assert.Equal(t, report.ClassConfiguration, res.Findings[0].Class)
			assert.Contains(t, res.Findings[0].Message, "Manifest unavailable")
			assert.False(t, f.store.Opened(DefaultSourcePath))
			assert.Zero(t, o.calls)
			assert.Equal(t, 2, res.ExitCode())
		})
	}
}

func TestVerifier_ManifestWithoutArtifactEntry(t *testing.T) {
	f := newFixture(t, `{"expected_count": 1}`)

	res := f.verifier(WithOracle(oracle.Static(1))).Run(context.Background())
	assert.False(t, res.Passed)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, report.ClassConfiguration, res.Findings[0].Class)
	assert.False(t, f.store.Opened(DefaultSourcePath))
}

func TestVerifier_StageObserver(t *testing.T) {
	f := newFixture(t, goodManifest(42))

	var seen []string
	res := f.verifier(
		WithOracle(oracle.Static(42)),
		WithStageObserver(func(stage string, status report.Status, _ time.Duration) {
			seen = append(seen, stage+":"+string(status))
		}),
	).Run(context.Background())

	require.True(t, res.Passed)
	assert.Equal(t, []string{
		"source_fingerprint:pass",
		"embeddings_fingerprint:pass",
		"remote_count:pass",
	}, seen)
}

func TestVerifier_CustomPaths(t *testing.T) {
	mem := blobstore.NewMemoryStore()
	mem.Put("a.ts", []byte("a"))
	mem.Put("b.json", []byte("b"))
	mem.Put("m.json", []byte(fmt.Sprintf(`{"a.ts": %q, "b.json": %q, "expected_count": 2}`,
		fingerprint.Sum([]byte("a")), fingerprint.Sum([]byte("b")))))

	v := NewVerifier(manifest.NewLoader(mem), fingerprint.NewEngine(mem),
		WithManifestPath("m.json"),
		WithArtifacts("a.ts", "b.json"),
		WithOracle(oracle.Static(2)),
	)

	require.Len(t, v.Stages(), 3)
	assert.Equal(t, "a.ts", v.Stages()[0].(*FingerprintStage).Artifact())
	assert.True(t, v.Run(context.Background()).Passed)
}

func TestVerifier_Idempotent(t *testing.T) {
	f := newFixture(t, goodManifest(42))
	v := f.verifier(WithOracle(oracle.Static(42)))

	first := v.Run(context.Background())
	second := v.Run(context.Background())
	assert.Equal(t, first.Passed, second.Passed)
	assert.Equal(t, first.Findings, second.Findings)
}

func TestVerifier_Cancelled(t *testing.T) {
	f := newFixture(t, goodManifest(42))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.verifier(WithOracle(oracle.Static(42))).Run(ctx)
	assert.False(t, res.Passed)
	assert.Equal(t, report.ClassInternal, res.Findings[len(res.Findings)-1].Class)
}
