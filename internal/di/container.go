// Package di provides dependency injection configuration for the Vinylroom server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/vinylroom/vinylroom-server/internal/config"
	"github.com/vinylroom/vinylroom-server/internal/di/providers"
	"github.com/vinylroom/vinylroom-server/internal/discogs"
	"github.com/vinylroom/vinylroom-server/internal/itunes"
	"github.com/vinylroom/vinylroom-server/internal/logger"
	"github.com/vinylroom/vinylroom-server/internal/search"
	"github.com/vinylroom/vinylroom-server/internal/service"
	"github.com/vinylroom/vinylroom-server/internal/session"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Upstream and storage
	do.Provide(injector, providers.ProvideDiscogsClient)
	do.Provide(injector, providers.ProvideItunesClient)
	do.Provide(injector, providers.ProvideItunesMatcher)
	do.Provide(injector, providers.ProvideCaches)
	do.Provide(injector, providers.ProvideSearchManager)

	// Sessions
	do.Provide(injector, providers.ProvideSessionStore)
	do.Provide(injector, providers.ProvideSessionCodec)

	// Business services
	do.Provide(injector, providers.ProvideCollectionService)
	do.Provide(injector, providers.ProvideAuthService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns once the server is
// listening. Invoking the leaves triggers lazy construction of the
// whole graph.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*discogs.Client](injector)
	_ = do.MustInvoke[*itunes.Client](injector)
	_ = do.MustInvoke[*itunes.Matcher](injector)
	_ = do.MustInvoke[*providers.CacheSet](injector)
	_ = do.MustInvoke[*search.Manager](injector)
	_ = do.MustInvoke[*providers.SessionStoreHandle](injector)
	_ = do.MustInvoke[*session.Codec](injector)
	_ = do.MustInvoke[*service.CollectionService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	return nil
}
