package keystore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	scryptN = 1 << 10
}

func TestNewAccount(t *testing.T) {
	acct, key, err := NewAccount("https://bank.testnet.algorand.network/")
	require.NoError(t, err)

	assert.Len(t, acct.Address, 58)
	assert.Len(t, strings.Fields(acct.Mnemonic), 25)
	assert.Equal(t, "https://bank.testnet.algorand.network/?account="+acct.Address, acct.FaucetURL)

	recovered, err := FromMnemonic(acct.Mnemonic)
	require.NoError(t, err)
	assert.Equal(t, key, recovered)

	address, err := Address(recovered)
	require.NoError(t, err)
	assert.Equal(t, acct.Address, address)
}

func TestNewAccount_NoFaucet(t *testing.T) {
	acct, _, err := NewAccount("")
	require.NoError(t, err)
	assert.Empty(t, acct.FaucetURL)
}

func TestFromMnemonic_Invalid(t *testing.T) {
	_, err := FromMnemonic("abandon abandon abandon")
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	acct, key, err := NewAccount("")
	require.NoError(t, err)

	address, err := Save(path, key, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, acct.Address, address)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), acct.Mnemonic)

	loaded, err := Load(path, []byte("correct horse"))
	require.NoError(t, err)
	assert.Equal(t, key, loaded)

	Wipe(loaded)
	assert.Equal(t, make([]byte, len(loaded)), []byte(loaded))
}

func TestLoad_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	_, key, err := NewAccount("")
	require.NoError(t, err)
	_, err = Save(path, key, []byte("one"))
	require.NoError(t, err)

	_, err = Load(path, []byte("two"))
	assert.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestSave_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	_, key, err := NewAccount("")
	require.NoError(t, err)
	_, err = Save(path, key, []byte("pass"))
	require.NoError(t, err)

	_, err = Save(path, key, []byte("pass"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestSave_EmptyPassphrase(t *testing.T) {
	_, key, err := NewAccount("")
	require.NoError(t, err)
	_, err = Save(filepath.Join(t.TempDir(), "k.json"), key, nil)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestLoad_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 9}`), 0o600))

	_, err := Load(path, []byte("pass"))
	assert.ErrorContains(t, err, "unsupported file version")
}
