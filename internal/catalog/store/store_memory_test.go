package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redmig/pkg/platform/sentinel"
)

func TestMemoryPutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	captured := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Put(ctx, Snapshot{ProjectID: "42", Raw: []byte(`[{"field_name":"record_id"}]`), CapturedAt: captured}))

	got, err := s.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", got.ProjectID)
	assert.JSONEq(t, `[{"field_name":"record_id"}]`, string(got.Raw))
	assert.Equal(t, captured, got.CapturedAt)
}

func TestMemoryGetMissing(t *testing.T) {
	_, err := NewMemory().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestMemoryPutReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	require.NoError(t, s.Put(ctx, Snapshot{ProjectID: "42", Raw: []byte("old")}))
	require.NoError(t, s.Put(ctx, Snapshot{ProjectID: "42", Raw: []byte("new")}))

	got, err := s.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "new", string(got.Raw))
}
