package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreLifecycle(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("  sk-test \n"))
	v, err := s.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", v)

	require.NoError(t, s.Set("sk-other"))
	v, err = s.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-other", v)

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	_, err = s.Get()
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Set("   "))
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	a, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, a.Set("sk-persist"))

	b, err := New(dir)
	require.NoError(t, err)
	v, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-persist", v)
}

func TestEnvFallback(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	t.Setenv(EnvKey, "sk-env")
	src := WithEnvFallback(s)
	v, err := src.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-env", v)

	require.NoError(t, src.Set("sk-file"))
	v, err = src.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-file", v)

	t.Setenv(EnvKey, "")
	require.NoError(t, src.Delete())
	_, err = src.Get()
	assert.ErrorIs(t, err, ErrNotFound)
}
