package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/vinylroom/vinylroom-server/internal/session"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "discogs-connect",
		Method:      http.MethodGet,
		Path:        "/api/auth/discogs/connect",
		Summary:     "Start Discogs account linking",
		Description: "Opens the OAuth flow and returns the Discogs authorization URL to send the visitor to.",
		Tags:        []string{"Auth"},
	}, s.handleConnect)

	huma.Register(s.api, huma.Operation{
		OperationID:   "discogs-callback",
		Method:        http.MethodGet,
		Path:          "/api/auth/discogs/callback",
		Summary:       "Complete Discogs account linking",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusFound,
	}, s.handleCallback)

	huma.Register(s.api, huma.Operation{
		OperationID: "discogs-status",
		Method:      http.MethodGet,
		Path:        "/api/auth/discogs/status",
		Summary:     "Linking status",
		Tags:        []string{"Auth"},
	}, s.handleStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "discogs-disconnect",
		Method:      http.MethodPost,
		Path:        "/api/auth/discogs/disconnect",
		Summary:     "Unlink the Discogs account",
		Tags:        []string{"Auth"},
	}, s.handleDisconnect)
}

// === DTOs ===

// ConnectOutput carries the authorization URL the visitor must approve.
type ConnectOutput struct {
	Body struct {
		URL string `json:"url" doc:"Discogs authorization URL"`
	}
}

// CallbackInput carries the parameters Discogs appends on return.
type CallbackInput struct {
	Token    string `query:"oauth_token" required:"true" doc:"Approved request token"`
	Verifier string `query:"oauth_verifier" required:"true" doc:"Approval verifier"`
}

// CallbackOutput redirects the visitor back to the app with the session
// cookie set.
type CallbackOutput struct {
	Location  string      `header:"Location"`
	SetCookie http.Cookie `header:"Set-Cookie"`
}

// StatusOutput reports whether this visitor has a linked account.
type StatusOutput struct {
	Body struct {
		Linked   bool   `json:"linked"`
		Username string `json:"username,omitempty"`
	}
}

// DisconnectOutput acknowledges an unlink.
type DisconnectOutput struct {
	SetCookie http.Cookie `header:"Set-Cookie"`
	Body      struct {
		Success bool `json:"success"`
	}
}

// === Handlers ===

func (s *Server) handleConnect(ctx context.Context, _ *struct{}) (*ConnectOutput, error) {
	url, err := s.services.Auth.StartLink(ctx)
	if err != nil {
		s.logger.Error("failed to start linking flow", "error", err)
		return nil, err
	}

	out := &ConnectOutput{}
	out.Body.URL = url
	return out, nil
}

func (s *Server) handleCallback(ctx context.Context, input *CallbackInput) (*CallbackOutput, error) {
	sess, err := s.services.Auth.CompleteLink(ctx, input.Token, input.Verifier)
	if err != nil {
		s.logger.Error("failed to complete linking flow", "error", err)
		return nil, err
	}

	return &CallbackOutput{
		Location:  s.frontendURL + "/?linked=1",
		SetCookie: *s.codec.Cookie(sess.ID, s.secureCookies),
	}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	out := &StatusOutput{}
	if sess := SessionFromContext(ctx); sess != nil {
		out.Body.Linked = true
		out.Body.Username = sess.DiscogsUsername
	}
	return out, nil
}

func (s *Server) handleDisconnect(ctx context.Context, _ *struct{}) (*DisconnectOutput, error) {
	if sess := SessionFromContext(ctx); sess != nil {
		s.services.Auth.Unlink(sess)
	}

	out := &DisconnectOutput{
		SetCookie: http.Cookie{
			Name:     session.CookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
	}
	out.Body.Success = true
	return out, nil
}
