package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/vinylroom/vinylroom-server/internal/cache"
	"github.com/vinylroom/vinylroom-server/internal/config"
	"github.com/vinylroom/vinylroom-server/internal/domain"
)

// CacheSet bundles the collection caches with their background sweeper
// so they share one lifecycle.
type CacheSet struct {
	Releases *cache.Cache[[]domain.Release]
	Folders  *cache.Cache[[]domain.Folder]

	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (c *CacheSet) Shutdown() error {
	c.cancel()
	return nil
}

// ProvideCaches provides the TTL caches backing collection data and
// starts their expiry sweepers.
func ProvideCaches(i do.Injector) (*CacheSet, error) {
	cfg := do.MustInvoke[*config.Config](i)

	ctx, cancel := context.WithCancel(context.Background())
	set := &CacheSet{
		Releases: cache.New[[]domain.Release](cfg.Cache.TTL),
		Folders:  cache.New[[]domain.Folder](cfg.Cache.TTL),
		cancel:   cancel,
	}
	set.Releases.StartSweeper(ctx, cfg.Cache.SweepInterval)
	set.Folders.StartSweeper(ctx, cfg.Cache.SweepInterval)
	return set, nil
}
