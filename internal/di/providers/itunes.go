package providers

import (
	"github.com/samber/do/v2"

	"github.com/vinylroom/vinylroom-server/internal/itunes"
	"github.com/vinylroom/vinylroom-server/internal/logger"
)

// ProvideItunesClient provides the iTunes Search API client.
func ProvideItunesClient(i do.Injector) (*itunes.Client, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return itunes.NewClient(log.Logger), nil
}

// ProvideItunesMatcher provides the release-to-album matcher.
func ProvideItunesMatcher(i do.Injector) (*itunes.Matcher, error) {
	log := do.MustInvoke[*logger.Logger](i)
	client := do.MustInvoke[*itunes.Client](i)
	return itunes.NewMatcher(client, log.Logger), nil
}
