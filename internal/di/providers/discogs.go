package providers

import (
	"github.com/samber/do/v2"

	"github.com/vinylroom/vinylroom-server/internal/config"
	"github.com/vinylroom/vinylroom-server/internal/discogs"
	"github.com/vinylroom/vinylroom-server/internal/logger"
	"github.com/vinylroom/vinylroom-server/internal/search"
)

// ProvideDiscogsClient provides the upstream Discogs API client.
func ProvideDiscogsClient(i do.Injector) (*discogs.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	return discogs.New(discogs.Options{
		ConsumerKey:    cfg.Discogs.ConsumerKey,
		ConsumerSecret: cfg.Discogs.ConsumerSecret,
		UserAgent:      cfg.Discogs.UserAgent,
		Timeout:        cfg.Discogs.RequestTimeout,
		PageDelay:      cfg.Discogs.PageDelay,
	}, log.Logger), nil
}

// ProvideSearchManager provides the per-scope search index manager.
func ProvideSearchManager(i do.Injector) (*search.Manager, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return search.NewManager(log.Logger), nil
}
