package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/vinylroom/vinylroom-server/internal/api"
	"github.com/vinylroom/vinylroom-server/internal/config"
	"github.com/vinylroom/vinylroom-server/internal/itunes"
	"github.com/vinylroom/vinylroom-server/internal/logger"
	"github.com/vinylroom/vinylroom-server/internal/service"
	"github.com/vinylroom/vinylroom-server/internal/session"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	codec := do.MustInvoke[*session.Codec](i)
	collectionService := do.MustInvoke[*service.CollectionService](i)
	authService := do.MustInvoke[*service.AuthService](i)
	matcher := do.MustInvoke[*itunes.Matcher](i)

	server := api.NewServer(cfg, api.Services{
		Collection: collectionService,
		Auth:       authService,
		Match:      matcher,
	}, codec, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
