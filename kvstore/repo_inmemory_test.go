package kvstore_test

import (
	"testing"

	"github.com/jrsteele09/fintrack-client/kvstore"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRepo(t *testing.T) {
	r := kvstore.NewInMemoryRepo()

	_, ok, err := r.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Set("k", "v1"))
	require.NoError(t, r.Set("k", "v2"))
	v, ok, err := r.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", v)

	require.NoError(t, r.Delete("k"))
	require.NoError(t, r.Delete("k"))
	_, ok, _ = r.Get("k")
	require.False(t, ok)

	require.NotEmpty(t, r.Disclosures())
}
