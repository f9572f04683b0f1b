package server

import (
	"fmt"

	"github.com/openmined/syftfiles/internal/server/auth"
	"github.com/openmined/syftfiles/internal/store/backend"
)

const (
	DefaultAddr        = "127.0.0.1:8080"
	DefaultMaxBlobSize = 256 << 20 // 256 MiB
	DefaultRateLimit   = "100-S"
)

type Config struct {
	Http  *HttpServerConfig `mapstructure:"http"`
	Store *backend.Config   `mapstructure:"store"`
	Auth  *auth.Config      `mapstructure:"auth"`
	// MaxBlobSize caps a single uploaded blob in bytes.
	MaxBlobSize int64 `mapstructure:"max_blob_size"`
	// RateLimit is a limiter rate such as "100-S". Empty disables it.
	RateLimit string `mapstructure:"rate_limit"`
}

type HttpServerConfig struct {
	Addr     string `mapstructure:"addr"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

func (c *HttpServerConfig) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

func (c *Config) Validate() error {
	if c.Http == nil || c.Http.Addr == "" {
		return fmt.Errorf("http `addr` is required")
	}
	if (c.Http.CertFile == "") != (c.Http.KeyFile == "") {
		return fmt.Errorf("http `cert_file` and `key_file` must be set together")
	}
	if c.Store == nil {
		return fmt.Errorf("`store` is required")
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Auth == nil {
		c.Auth = &auth.Config{}
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if c.MaxBlobSize < 0 {
		return fmt.Errorf("`max_blob_size` must not be negative")
	}
	return nil
}
