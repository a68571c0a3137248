package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestLoadWhaleRegistryMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	r, err := LoadWhaleRegistry(filepath.Join(dir, "wallets.json"))
	require.NoError(t, err)
	require.Equal(t, 0, r.Len())
}

func TestLoadWhaleRegistryParsesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallets.json")
	doc := `{
		"9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin": {"label": "alpha", "win_rate": 0.8, "source": "manual"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	r, err := LoadWhaleRegistry(path)
	require.NoError(t, err)
	require.Equal(t, 1, r.Len())

	wallet := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	info, ok := r.Lookup(wallet)
	require.True(t, ok)
	require.Equal(t, "alpha", info.Label)
}

func TestWhaleRegistryReloadReplacesSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wallets.json")
	wallet := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	r, err := LoadWhaleRegistry(path)
	require.NoError(t, err)
	_, ok := r.Lookup(wallet)
	require.False(t, ok)

	doc := `{"9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin": {"label": "beta"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	require.NoError(t, r.Reload())

	info, ok := r.Lookup(wallet)
	require.True(t, ok)
	require.Equal(t, "beta", info.Label)
}
