package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	n, err := Static(42).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestWithTimeout(t *testing.T) {
	tests := []struct {
		name    string
		oracle  CountOracle
		want    int64
		wantErr bool
	}{
		{name: "answer", oracle: Static(7), want: 7},
		{name: "zero", oracle: Static(0), want: 0},
		{name: "plain error", oracle: Unavailable(errors.New("connection refused")), wantErr: true},
		{name: "negative", oracle: Static(-1), wantErr: true},
		{name: "panic", oracle: Func(func(context.Context) (int64, error) { panic("boom") }), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := WithTimeout(tt.oracle, time.Second).Count(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	// Ignores its context entirely.
	slow := Func(func(context.Context) (int64, error) {
		<-block
		return 1, nil
	})

	start := time.Now()
	_, err := WithTimeout(slow, 20*time.Millisecond).Count(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestWithTimeout_PropagatesDeadline(t *testing.T) {
	var deadline time.Time
	o := Func(func(ctx context.Context) (int64, error) {
		deadline, _ = ctx.Deadline()
		return 1, nil
	})

	_, err := WithTimeout(o, time.Minute).Count(context.Background())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestWithTimeout_DefaultTimeout(t *testing.T) {
	g := WithTimeout(Static(1), 0).(*guarded)
	assert.Equal(t, DefaultTimeout, g.timeout)
}

func TestWithTimeout_KeepsUnavailableCause(t *testing.T) {
	cause := Unavailablef("wrangler exited with status 1")
	_, err := WithTimeout(Unavailable(cause), time.Second).Count(context.Background())
	assert.Equal(t, cause, err)
}

func TestRowCount(t *testing.T) {
	n, err := RowCount(map[string]any{"count": float64(12)}, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	n, err = RowCount(map[string]any{"count": int64(3)}, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = RowCount(map[string]any{"count": 2.5}, "count")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = RowCount(map[string]any{}, "count")
	assert.ErrorIs(t, err, ErrUnavailable)
}
