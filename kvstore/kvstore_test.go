package kvstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBeforeOpenFails(t *testing.T) {
	m := NewMemStore()
	res := m.GetInt32("x")
	assert.False(t, res.HasValue())
	assert.Equal(t, "store not opened", res.Error().Text)
}

func TestSetThenGetRoundTripsPerType(t *testing.T) {
	m := NewMemStore()
	require.True(t, m.Open("unused", false).HasValue())

	require.True(t, m.SetInt8("a", -8).HasValue())
	assert.Equal(t, int8(-8), m.GetInt8("a").Value())

	require.True(t, m.SetUint64("b", 64).HasValue())
	assert.Equal(t, uint64(64), m.GetUint64("b").Value())

	require.True(t, m.SetBool("c", true).HasValue())
	assert.Equal(t, true, m.GetBool("c").Value())

	require.True(t, m.SetFloat64("d", 3.14).HasValue())
	assert.Equal(t, 3.14, m.GetFloat64("d").Value())

	require.True(t, m.SetString("e", "hi").HasValue())
	assert.Equal(t, "hi", m.GetString("e").Value())

	require.True(t, m.SetBytes("f", []byte{1, 2, 3}).HasValue())
	assert.Equal(t, []byte{1, 2, 3}, m.GetBytes("f").Value())
}

func TestGetUnknownKeyFails(t *testing.T) {
	m := NewMemStore()
	require.True(t, m.Open("unused", false).HasValue())

	res := m.GetString("missing")
	assert.False(t, res.HasValue())
	assert.Equal(t, "key not found: missing", res.Error().Text)
}

func TestGetWrongTypeFails(t *testing.T) {
	m := NewMemStore()
	require.True(t, m.Open("unused", false).HasValue())
	require.True(t, m.SetInt32("n", 1).HasValue())

	res := m.GetString("n")
	assert.False(t, res.HasValue())
	assert.Equal(t, "type mismatch for key: n", res.Error().Text)
}

func TestSetOverwritesPreviousValue(t *testing.T) {
	m := NewMemStore()
	require.True(t, m.Open("unused", false).HasValue())

	require.True(t, m.SetInt64("k", 1).HasValue())
	require.True(t, m.SetInt64("k", 2).HasValue())
	assert.Equal(t, int64(2), m.GetInt64("k").Value())
}
