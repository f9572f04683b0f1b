package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/store/backend"
	"github.com/openmined/syftfiles/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, address.DefaultBase, cfg.Base())
	assert.Equal(t, 4, cfg.UploadConcurrency)
	assert.Empty(t, cfg.Networks)

	name, network := cfg.Active()
	assert.Empty(t, name)
	assert.Nil(t, network)
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := Default(path)
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.DefaultBase = "base58btc"
	cfg.UploadConcurrency = 8
	require.NoError(t, cfg.AddNetwork("prod", "https://files.example.com/", "tok"))
	require.NoError(t, cfg.SwitchNetwork("prod"))
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, address.Base58BTC, loaded.Base())
	assert.Equal(t, 8, loaded.UploadConcurrency)

	name, network := loaded.Active()
	assert.Equal(t, "prod", name)
	require.NotNil(t, network)
	assert.Equal(t, "https://files.example.com", network.URL)
	assert.Equal(t, "tok", network.Token)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Default(path).Save())

	t.Setenv("SYFTFILES_UPLOAD_CONCURRENCY", "2")
	t.Setenv("SYFTFILES_DEFAULT_BASE", "base64url")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.UploadConcurrency)
	assert.Equal(t, address.Base64URL, cfg.Base())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad base", `{"default_base": "base2"}`, "default_base"},
		{"zero concurrency", `{"upload_concurrency": 0}`, "upload_concurrency"},
		{"bad network url", `{"networks": {"prod": {"url": "ftp://x"}}}`, "networks.prod.url"},
		{"bad network name", `{"networks": {"-x": {"url": "http://x"}}}`, "networks"},
		{"dangling active", `{"active_network": "ghost"}`, "active_network"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o600))

			_, err := Load(path)
			var verr *utils.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "config read")
}

func TestNetworks(t *testing.T) {
	cfg := Default("")

	require.NoError(t, cfg.AddNetwork("b", "http://b", ""))
	require.NoError(t, cfg.AddNetwork("a", "http://a", ""))
	assert.ErrorIs(t, cfg.AddNetwork("a", "http://other", ""), ErrNetworkExists)
	assert.Error(t, cfg.AddNetwork("c", "not a url", ""))
	assert.Error(t, cfg.AddNetwork(LocalNetwork, "http://l", ""))
	assert.Equal(t, []string{"a", "b"}, cfg.NetworkNames())

	assert.ErrorIs(t, cfg.SwitchNetwork("ghost"), ErrNetworkNotFound)
	require.NoError(t, cfg.SwitchNetwork("a"))
	assert.Equal(t, "a", cfg.ActiveNetwork)

	// removing the active network falls back to the local store
	require.NoError(t, cfg.RemoveNetwork("a"))
	assert.Empty(t, cfg.ActiveNetwork)
	assert.ErrorIs(t, cfg.RemoveNetwork("a"), ErrNetworkNotFound)

	require.NoError(t, cfg.SwitchNetwork("b"))
	require.NoError(t, cfg.SwitchNetwork(""))
	assert.Empty(t, cfg.ActiveNetwork)

	require.NoError(t, cfg.SwitchNetwork("b"))
	require.NoError(t, cfg.SwitchNetwork(LocalNetwork))
	assert.Empty(t, cfg.ActiveNetwork)
}

func TestClear(t *testing.T) {
	cfg := Default("/tmp/x/config.json")
	cfg.UploadConcurrency = 16
	require.NoError(t, cfg.AddNetwork("a", "http://a", "t"))
	require.NoError(t, cfg.SwitchNetwork("a"))

	cfg.Clear()
	assert.Equal(t, "/tmp/x/config.json", cfg.Path)
	assert.Empty(t, cfg.Networks)
	assert.Empty(t, cfg.ActiveNetwork)
	assert.Equal(t, 4, cfg.UploadConcurrency)
}

func TestStoreConfig(t *testing.T) {
	cfg := Default("")
	cfg.DataDir = "/data"

	local := cfg.StoreConfig()
	assert.Equal(t, backend.KindLocal, local.Kind)
	assert.Equal(t, filepath.Join("/data", "store"), local.Dir)
	assert.Equal(t, cfg.CacheEntries, local.CacheEntries)

	cfg.Store = &backend.Config{Kind: backend.KindMemory}
	override := cfg.StoreConfig()
	assert.Equal(t, backend.KindMemory, override.Kind)
	assert.Equal(t, cfg.CacheEntries, override.CacheEntries)
	assert.Zero(t, cfg.Store.CacheEntries, "override must not mutate the config")
}
