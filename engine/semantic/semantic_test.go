package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bippobippo/hospital-vectors/pkg/config"
)

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{ID: "hospital_10"}, {ID: "misc"}, {ID: "hospital_2"}, {ID: "hospital_0"}, {ID: "alpha"},
	}
	SortEntries(entries)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"hospital_0", "hospital_2", "hospital_10", "alpha", "misc"}, ids)
}

func TestCheckAligned(t *testing.T) {
	require.NoError(t, checkAligned(nil, nil, nil))
	require.NoError(t, checkAligned([][]float32{{1}}, []string{"d"}, []string{"i"}))
	assert.ErrorIs(t, checkAligned([][]float32{{1}, {2}}, []string{"d"}, []string{"i"}), ErrMisaligned)
	assert.ErrorIs(t, checkAligned([][]float32{{1}}, []string{"d"}, []string{"i", "j"}), ErrMisaligned)
}

func TestOpen(t *testing.T) {
	cfg := config.Default().Store
	cfg.Path = ""

	s, err := Open(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Chromem{}, s)
	require.NoError(t, s.Close())

	cfg.Backend = "qdrant"
	s, err = Open(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &Qdrant{}, s)
	require.NoError(t, s.Close())

	cfg.Backend = "pinecone"
	_, err = Open(cfg, nil)
	require.Error(t, err)
}
