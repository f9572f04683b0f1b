package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/syftfiles/internal/address"
	"github.com/openmined/syftfiles/internal/config"
	"github.com/openmined/syftfiles/internal/filesync"
	"github.com/openmined/syftfiles/internal/session"
	"github.com/openmined/syftfiles/internal/store"
	"github.com/openmined/syftfiles/internal/store/backend"
	"github.com/openmined/syftfiles/internal/storeclient"
	"github.com/spf13/cobra"
)

const (
	clientRetryCount = 3
	clientRetryDelay = time.Second
)

// workspace is everything a command needs to talk to the selected network.
type workspace struct {
	cfg     *config.Config
	network string
	service *filesync.Service
	ctx     context.Context
	close   func() error
}

func (w *workspace) Close() error {
	if w.close == nil {
		return nil
	}
	return w.close()
}

func (w *workspace) Base() address.Base {
	return w.cfg.Base()
}

// openWorkspace loads the config and connects to the network chosen by the
// --network flag, the active network, or the local store.
func openWorkspace(cmd *cobra.Command) (*workspace, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	name, network, err := selectNetwork(cmd, cfg)
	if err != nil {
		return nil, err
	}

	ws := &workspace{cfg: cfg, network: name, ctx: cmd.Context()}
	if ws.ctx == nil {
		ws.ctx = context.Background()
	}

	var content store.ContentStore
	var containers store.ContainerStore

	if network == nil {
		stores, err := backend.Open(ws.ctx, cfg.StoreConfig())
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		content, containers = stores.Content, stores.Containers
		ws.close = stores.Close
	} else {
		client, err := storeclient.New(network.URL, storeclient.WithRetry(clientRetryCount, clientRetryDelay))
		if err != nil {
			return nil, err
		}
		ws.ctx = session.With(ws.ctx, &session.Session{Network: name, Token: network.Token})

		content = client
		if cfg.CacheEntries > 0 {
			cached, err := store.NewCachedContentStore(client, cfg.CacheEntries, store.DefaultCacheMaxBytes)
			if err != nil {
				return nil, err
			}
			content = cached
		}
		containers = client
	}

	ws.service = filesync.NewService(content, containers,
		filesync.WithUploadConcurrency(cfg.UploadConcurrency),
	)
	slog.Debug("workspace open", "network", name)
	return ws, nil
}

// selectNetwork returns nil for the local store.
func selectNetwork(cmd *cobra.Command, cfg *config.Config) (string, *config.Network, error) {
	if flag := cmd.Flag("network"); flag != nil && flag.Changed {
		name := flag.Value.String()
		if name == "" || name == config.LocalNetwork {
			return config.LocalNetwork, nil, nil
		}
		network, ok := cfg.Networks[name]
		if !ok {
			return "", nil, fmt.Errorf("%w: %q", config.ErrNetworkNotFound, name)
		}
		return name, network, nil
	}

	name, network := cfg.Active()
	if network == nil {
		return config.LocalNetwork, nil, nil
	}
	return name, network, nil
}
