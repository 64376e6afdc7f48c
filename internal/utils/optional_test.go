package utils_test

import (
	"testing"

	"github.com/jrsteele09/fintrack-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestValue(t *testing.T) {
	require.Equal(t, "", utils.Value[string](nil))
	require.Equal(t, "Ann", utils.Value(utils.Ptr("Ann")))
}

func TestValueOr(t *testing.T) {
	require.Equal(t, "fallback", utils.ValueOr(nil, "fallback"))
	require.Equal(t, "fallback", utils.ValueOr(utils.Ptr(""), "fallback"))
	require.Equal(t, "Ann", utils.ValueOr(utils.Ptr("Ann"), "fallback"))
}
