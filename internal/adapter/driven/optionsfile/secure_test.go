package optionsfile_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/pluginsync/internal/adapter/driven/optionsfile"
)

func newSecureStore(t *testing.T, dir string) *optionsfile.SecureStore {
	t.Helper()
	return optionsfile.NewSecureStore(optionsfile.NewStore(dir, "pluginsync"), newProtector(t, "machine-1"))
}

func TestSecureStore_TokenNeverWrittenInClear(t *testing.T) {
	dir := t.TempDir()
	store := newSecureStore(t, dir)

	opts := sampleOptions()
	opts.GitHubToken = testToken
	require.NoError(t, store.Set(opts))

	data, err := os.ReadFile(optionsfile.NewStore(dir, "pluginsync").Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), testToken)
	assert.Contains(t, string(data), `"encrypted_github_token": "v2:`)

	got := store.Get()
	assert.Equal(t, testToken, got.GitHubToken)
	assert.Equal(t, opts.Repos, got.Repos)
	assert.Equal(t, opts.Registries, got.Registries)
}

func TestSecureStore_RoundTripAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	opts := sampleOptions()
	opts.GitHubToken = testToken
	require.NoError(t, newSecureStore(t, dir).Set(opts))

	assert.Equal(t, testToken, newSecureStore(t, dir).Get().GitHubToken)
}

func TestSecureStore_KeepsExistingTokenWhenPlainFieldEmpty(t *testing.T) {
	store := newSecureStore(t, t.TempDir())

	opts := sampleOptions()
	opts.GitHubToken = testToken
	require.NoError(t, store.Set(opts))

	got := store.Get()
	got.GitHubToken = ""
	require.NoError(t, store.Set(got))

	assert.Equal(t, testToken, store.Get().GitHubToken)
}

func TestSecureStore_ClearsToken(t *testing.T) {
	store := newSecureStore(t, t.TempDir())

	opts := sampleOptions()
	opts.GitHubToken = testToken
	require.NoError(t, store.Set(opts))

	got := store.Get()
	got.GitHubToken = ""
	got.EncryptedGitHubToken = ""
	require.NoError(t, store.Set(got))

	assert.Empty(t, store.Get().GitHubToken)
}

func TestSecureStore_ReadsLegacyToken(t *testing.T) {
	dir := t.TempDir()
	plain := optionsfile.NewStore(dir, "pluginsync")
	opts := sampleOptions()
	opts.EncryptedGitHubToken = legacyProtect("TESTHOST", testToken)
	require.NoError(t, plain.Set(opts))

	assert.Equal(t, testToken, newSecureStore(t, dir).Get().GitHubToken)
}
