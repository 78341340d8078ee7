package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotNil(t *testing.T) {
	require.PanicsWithValue(t, "expected renderer to be not nil", func() {
		NotNil(nil, "renderer")
	})
	require.PanicsWithValue(t, "expected value to be not nil", func() {
		NotNil(nil)
	})
	require.NotPanics(t, func() {
		NotNil(struct{}{}, "anything")
	})
}

func TestNotEmptyStr(t *testing.T) {
	require.PanicsWithValue(t, "expected shared_secret to be non-empty", func() {
		NotEmptyStr("", "shared_secret")
	})
	require.NotPanics(t, func() {
		NotEmptyStr("S")
	})
}
