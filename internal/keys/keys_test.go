package keys

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/cipher"
)

func TestProvisionAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.key")

	key, err := Provision(path, "correct horse battery staple")
	require.NoError(t, err)
	require.Len(t, key, cipher.KeySize)
	assert.True(t, Exists(path))

	loaded, err := Load(path, "correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, key, loaded)
}

func TestProvisionRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.key")

	_, err := Provision(path, "first")
	require.NoError(t, err)

	_, err = Provision(path, "second")
	assert.Error(t, err)
}

func TestLoadWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.key")

	_, err := Provision(path, "right")
	require.NoError(t, err)

	_, err = Load(path, "wrong")
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestLoadMissingKeyfile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.key"), "any")
	assert.ErrorIs(t, err, ErrNotProvisioned)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endpoint.key")

	_, err := Provision(path, "pass")
	require.NoError(t, err)

	require.NoError(t, Remove(path))
	assert.False(t, Exists(path))
	assert.NoError(t, Remove(path), "removing an absent keyfile is fine")
}
