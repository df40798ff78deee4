package semantic

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func vectors(n, dims int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		v[i%dims] = 1
		v[(i+1)%dims] = 0.5
		out[i] = v
	}
	return out
}

func entryIDs(offset, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("hospital_%d", offset+i)
	}
	return ids
}

func docs(offset, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("doc %d\nline two", offset+i)
	}
	return out
}

func TestChromem_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromem("", "hospital_info", 4, false, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	require.NoError(t, s.Add(ctx, vectors(10, 4), docs(0, 10), entryIDs(0, 10)))
	require.NoError(t, s.Add(ctx, vectors(3, 4), docs(10, 3), entryIDs(10, 3)))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13, n)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 13)
	for i, e := range all {
		assert.Equal(t, fmt.Sprintf("hospital_%d", i), e.ID)
		assert.Equal(t, fmt.Sprintf("doc %d\nline two", i), e.Document)
	}
}

func TestChromem_ResetDropsPreviousRun(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromem("", "c", 4, false, nil)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Add(ctx, vectors(5, 4), docs(0, 5), entryIDs(0, 5)))
	require.NoError(t, s.Reset(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := s.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestChromem_AddRejectsMisaligned(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromem("", "c", 4, false, nil)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	err = s.Add(ctx, vectors(2, 4), docs(0, 3), entryIDs(0, 3))
	assert.ErrorIs(t, err, ErrMisaligned)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing stored on misaligned input")
}

func TestChromem_AddRejectsWrongDims(t *testing.T) {
	ctx := context.Background()
	s, err := NewChromem("", "c", 4, false, nil)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))

	err = s.Add(ctx, vectors(1, 3), docs(0, 1), entryIDs(0, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 4")
}

func TestChromem_MissingCollection(t *testing.T) {
	s, err := NewChromem("", "never-reset", 4, false, nil)
	require.NoError(t, err)

	_, err = s.Count(context.Background())
	assert.Error(t, err)
	_, err = s.GetAll(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.Add(context.Background(), vectors(1, 4), docs(0, 1), entryIDs(0, 1)))
}

func TestChromem_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewChromem(dir, "hospital_info", 4, false, nil)
	require.NoError(t, err)
	require.NoError(t, s.Reset(ctx))
	require.NoError(t, s.Add(ctx, vectors(3, 4), docs(0, 3), entryIDs(0, 3)))
	require.NoError(t, s.Close())

	reopened, err := NewChromem(dir, "hospital_info", 4, false, nil)
	require.NoError(t, err)
	all, err := reopened.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "hospital_2", all[2].ID)
}
