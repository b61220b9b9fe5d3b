package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/vinylroom/vinylroom-server/internal/config"
	"github.com/vinylroom/vinylroom-server/internal/logger"
	"github.com/vinylroom/vinylroom-server/internal/session"
)

// SessionStoreHandle wraps the session store with its expiry sweeper.
type SessionStoreHandle struct {
	*session.Store

	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SessionStoreHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideSessionStore provides the in-memory session store and sweeps
// expired sessions in the background.
func ProvideSessionStore(i do.Injector) (*SessionStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	store := session.NewStore(cfg.Session.TTL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.Cache.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := store.Cleanup(); removed > 0 {
					log.Debug("Swept expired sessions", "removed", removed)
				}
			}
		}
	}()

	return &SessionStoreHandle{Store: store, cancel: cancel}, nil
}

// ProvideSessionCodec provides the cookie codec sealing session ids.
func ProvideSessionCodec(i do.Injector) (*session.Codec, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Session.Key == "" {
		log.Warn("SESSION_KEY not set, using an ephemeral key; linked sessions will not survive restarts")
	}
	return session.NewCodec(cfg.Session.Key, cfg.Session.TTL)
}
