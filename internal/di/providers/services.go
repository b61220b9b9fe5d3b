package providers

import (
	"time"

	"github.com/samber/do/v2"

	"github.com/vinylroom/vinylroom-server/internal/cache"
	"github.com/vinylroom/vinylroom-server/internal/config"
	"github.com/vinylroom/vinylroom-server/internal/discogs"
	"github.com/vinylroom/vinylroom-server/internal/logger"
	"github.com/vinylroom/vinylroom-server/internal/search"
	"github.com/vinylroom/vinylroom-server/internal/service"
)

// oauthCallbackPath is where Discogs redirects after approval.
const oauthCallbackPath = "/api/auth/discogs/callback"

// ProvideCollectionService provides the collection orchestrator.
func ProvideCollectionService(i do.Injector) (*service.CollectionService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*discogs.Client](i)
	caches := do.MustInvoke[*CacheSet](i)
	index := do.MustInvoke[*search.Manager](i)

	return service.NewCollectionService(
		client,
		caches.Releases,
		caches.Folders,
		index,
		cfg.Discogs.DemoUsername,
		cfg.Discogs.Token,
		log.Logger,
	), nil
}

// ProvideAuthService provides the account linking service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*discogs.Client](i)
	caches := do.MustInvoke[*CacheSet](i)
	index := do.MustInvoke[*search.Manager](i)
	sessions := do.MustInvoke[*SessionStoreHandle](i)

	// Pending request tokens are short-lived; the visitor has ten
	// minutes to approve at Discogs before the token lapses.
	pending := cache.New[string](10 * time.Minute)

	return service.NewAuthService(
		client,
		sessions.Store,
		pending,
		caches.Releases,
		caches.Folders,
		index,
		cfg.Server.PublicURL+oauthCallbackPath,
		log.Logger,
	), nil
}
