package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/vinylroom/vinylroom-server/internal/errors"
	"github.com/vinylroom/vinylroom-server/internal/itunes"
)

func (s *Server) registerItunesRoutes() {
	if s.services.Match == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "match-itunes-album",
		Method:      http.MethodGet,
		Path:        "/api/itunes/match",
		Summary:     "Match release on iTunes",
		Description: "Finds the Apple Music album for a release, or a candidate shortlist when ambiguous.",
		Tags:        []string{"iTunes"},
	}, s.handleMatchItunes)
}

// MatchItunesInput identifies the release to match.
type MatchItunesInput struct {
	Title      string `query:"title" required:"true" minLength:"1" maxLength:"200" doc:"Release title"`
	Artist     string `query:"artist" required:"true" minLength:"1" maxLength:"200" doc:"Primary artist"`
	Year       int    `query:"year" minimum:"0" doc:"Release year, if known"`
	TrackCount int    `query:"trackCount" minimum:"0" doc:"Track count, if known"`
}

// MatchItunesOutput wraps the matcher's verdict.
type MatchItunesOutput struct {
	Body itunes.MatchResult
}

// translateMatchErr keeps cancellations intact and folds everything
// else into an upstream error.
func translateMatchErr(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return domainerrors.Upstream("itunes request failed").WithCause(err)
	}
}

func (s *Server) handleMatchItunes(ctx context.Context, input *MatchItunesInput) (*MatchItunesOutput, error) {
	result, err := s.services.Match.FindMatch(ctx, itunes.MatchInput{
		Title:      input.Title,
		Artist:     input.Artist,
		Year:       input.Year,
		TrackCount: input.TrackCount,
	})
	if err != nil {
		s.logger.Error("itunes match failed", "artist", input.Artist, "title", input.Title, "error", err)
		return nil, translateMatchErr(err)
	}
	return &MatchItunesOutput{Body: *result}, nil
}
