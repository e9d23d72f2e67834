package keys

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeyFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, contents, 0o600))
	return path
}

func TestLoad_JSONByteArray(t *testing.T) {
	want, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	values := make([]int, len(want))
	for i, b := range want {
		values[i] = int(b)
	}
	data, err := json.Marshal(values)
	require.NoError(t, err)

	path := writeKeyFile(t, "id.json", data)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, want.PublicKey(), got.PublicKey())
}

func TestLoad_Base58(t *testing.T) {
	want, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	path := writeKeyFile(t, "id.txt", []byte(want.String()+"\n"))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyFileNotFound)
}

func TestLoad_GarbageContents(t *testing.T) {
	path := writeKeyFile(t, "id.json", []byte("not a key in any format !!!"))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestLoad_JSONWrongLength(t *testing.T) {
	// A valid JSON byte array of the wrong length must not load, and must
	// not accidentally succeed through the base58 fallback either.
	path := writeKeyFile(t, "id.json", []byte("[1,2,3]"))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestLoad_JSONByteOutOfRange(t *testing.T) {
	values := make([]int, 64)
	values[10] = 300
	data, err := json.Marshal(values)
	require.NoError(t, err)

	path := writeKeyFile(t, "id.json", data)

	_, err = Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeKeyFile(t, "id.json", []byte("  \n"))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKeyFormat)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandHome("~/wallet/id.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "wallet", "id.json"), got)

	// Paths without the shorthand pass through untouched.
	got, err = expandHome("/etc/solana/id.json")
	require.NoError(t, err)
	assert.Equal(t, "/etc/solana/id.json", got)
}
