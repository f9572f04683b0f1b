package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/store/backend"
	"github.com/openmined/syftfiles/internal/utils"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "SYFTFILES"
	configFileName = "config.json"
	logFileName    = "syftfiles.log"
	storeDirName   = "store"

	// LocalNetwork names the local store. It cannot be used as a network name.
	LocalNetwork = "local"
)

var (
	home, _            = os.UserHomeDir()
	DefaultConfigDir   = filepath.Join(home, ".syftfiles")
	DefaultConfigPath  = filepath.Join(DefaultConfigDir, configFileName)
	DefaultDataDir     = DefaultConfigDir
	DefaultLogFilePath = filepath.Join(DefaultConfigDir, "logs", logFileName)
)

var (
	ErrNetworkExists   = errors.New("network already exists")
	ErrNetworkNotFound = errors.New("network not found")
)

// Network is a remote syftfiles server the CLI can target.
type Network struct {
	URL   string `mapstructure:"url" json:"url"`
	Token string `mapstructure:"token" json:"token,omitempty"`
}

type Config struct {
	DataDir string `mapstructure:"data_dir" json:"data_dir"`
	// Networks maps a network name to its server.
	Networks map[string]*Network `mapstructure:"networks" json:"networks,omitempty"`
	// ActiveNetwork is empty when the local store is used.
	ActiveNetwork     string          `mapstructure:"active_network" json:"active_network,omitempty"`
	DefaultBase       string          `mapstructure:"default_base" json:"default_base"`
	UploadConcurrency int             `mapstructure:"upload_concurrency" json:"upload_concurrency"`
	CacheEntries      int             `mapstructure:"cache_entries" json:"cache_entries"`
	Store             *backend.Config `mapstructure:"store" json:"store,omitempty"`
	Path              string          `mapstructure:"-" json:"-"`
}

func Default(path string) *Config {
	return &Config{
		Path:              path,
		DataDir:           DefaultDataDir,
		Networks:          map[string]*Network{},
		DefaultBase:       address.BaseName(address.DefaultBase),
		UploadConcurrency: 4,
		CacheEntries:      256,
	}
}

// Load reads the config at path. A missing file yields the defaults.
// SYFTFILES_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default(path)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("default_base", def.DefaultBase)
	v.SetDefault("upload_concurrency", def.UploadConcurrency)
	v.SetDefault("cache_entries", def.CacheEntries)
	v.SetDefault("active_network", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, os.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode '%s': %w", path, err)
	}
	cfg.Path = path
	if cfg.Networks == nil {
		cfg.Networks = map[string]*Network{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to its path atomically. Tokens are stored, so the
// file is only readable by the owner.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config has no path")
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config encode: %w", err)
	}
	return utils.WriteFileAtomic(c.Path, data, 0o600)
}

func (c *Config) Validate() error {
	dataDir, err := utils.ResolvePath(c.DataDir)
	if err != nil {
		return &utils.ValidationError{Field: "data_dir", Message: err.Error()}
	}
	c.DataDir = dataDir

	if _, err := address.ParseBase(c.DefaultBase); err != nil {
		return &utils.ValidationError{Field: "default_base", Message: err.Error()}
	}

	if c.UploadConcurrency < 1 {
		return &utils.ValidationError{Field: "upload_concurrency", Message: "must be at least 1"}
	}
	if c.CacheEntries < 0 {
		return &utils.ValidationError{Field: "cache_entries", Message: "must not be negative"}
	}

	for name, n := range c.Networks {
		if err := utils.ValidateName("networks", name); err != nil {
			return err
		}
		if n == nil {
			return &utils.ValidationError{Field: "networks." + name, Message: "missing url"}
		}
		if err := utils.ValidateServerURL("networks."+name+".url", n.URL); err != nil {
			return err
		}
	}

	if c.ActiveNetwork != "" {
		if _, ok := c.Networks[c.ActiveNetwork]; !ok {
			return &utils.ValidationError{Field: "active_network", Message: fmt.Sprintf("%q is not a configured network", c.ActiveNetwork)}
		}
	}

	if c.Store != nil {
		if err := c.Store.Validate(); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	}
	return nil
}

func (c *Config) Base() address.Base {
	base, err := address.ParseBase(c.DefaultBase)
	if err != nil {
		return address.DefaultBase
	}
	return base
}

// StoreConfig is the local backend used when no network is active: blobs as
// files and container history in sqlite under the data dir, unless the file
// overrides it.
func (c *Config) StoreConfig() *backend.Config {
	if c.Store != nil {
		cfg := *c.Store
		if cfg.CacheEntries == 0 {
			cfg.CacheEntries = c.CacheEntries
		}
		return &cfg
	}
	return &backend.Config{
		Kind:         backend.KindLocal,
		Dir:          filepath.Join(c.DataDir, storeDirName),
		CacheEntries: c.CacheEntries,
	}
}

// Active returns the active network, or nil when the local store is used.
func (c *Config) Active() (string, *Network) {
	if c.ActiveNetwork == "" {
		return "", nil
	}
	return c.ActiveNetwork, c.Networks[c.ActiveNetwork]
}

func (c *Config) NetworkNames() []string {
	return slices.Sorted(maps.Keys(c.Networks))
}

func (c *Config) AddNetwork(name, url, token string) error {
	if err := utils.ValidateName("network", name); err != nil {
		return err
	}
	if err := utils.ValidateServerURL("url", url); err != nil {
		return err
	}
	if name == LocalNetwork {
		return &utils.ValidationError{Field: "network", Message: fmt.Sprintf("%q is reserved for the local store", name)}
	}
	if _, ok := c.Networks[name]; ok {
		return fmt.Errorf("%w: %q", ErrNetworkExists, name)
	}
	if c.Networks == nil {
		c.Networks = map[string]*Network{}
	}
	c.Networks[name] = &Network{URL: strings.TrimRight(url, "/"), Token: token}
	return nil
}

// RemoveNetwork deletes a network. Removing the active one falls back to
// the local store.
func (c *Config) RemoveNetwork(name string) error {
	if _, ok := c.Networks[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNetworkNotFound, name)
	}
	delete(c.Networks, name)
	if c.ActiveNetwork == name {
		c.ActiveNetwork = ""
	}
	return nil
}

// SwitchNetwork makes name the active network. An empty name or
// LocalNetwork selects the local store.
func (c *Config) SwitchNetwork(name string) error {
	if name == LocalNetwork {
		name = ""
	}
	if name != "" {
		if _, ok := c.Networks[name]; !ok {
			return fmt.Errorf("%w: %q", ErrNetworkNotFound, name)
		}
	}
	c.ActiveNetwork = name
	return nil
}

// Clear drops every network and setting, keeping only the file location.
func (c *Config) Clear() {
	*c = *Default(c.Path)
}
