package actions

import (
	"context"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/session"
	"github.com/rs/zerolog/log"
)

const DefaultPageSize = 12

func (a *Actions) ListPetitions(ctx context.Context, sess *session.Session, params api.ListPetitionsParams) Result[*api.PetitionPage] {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit == 0 {
		params.Limit = DefaultPageSize
	}
	if f := validateInput(params); f != nil {
		return Fail[*api.PetitionPage](f)
	}

	page, err := a.api.ListPetitions(ctx, optionalBearer(ctx, sess), params)
	if err != nil {
		return failed[*api.PetitionPage]("ListPetitions", err)
	}
	return OK(page)
}

type PetitionDetail struct {
	Petition *api.Petition
	Comments []api.Comment
}

// GetPetition loads a petition with its comments. Comments failing to load
// isn't fatal; the petition is shown without them.
func (a *Actions) GetPetition(ctx context.Context, sess *session.Session, id string) Result[PetitionDetail] {
	token := optionalBearer(ctx, sess)

	petition, err := a.api.GetPetition(ctx, token, id)
	if err != nil {
		return failed[PetitionDetail]("GetPetition", err)
	}

	comments, err := a.api.ListComments(ctx, token, id)
	if err != nil {
		log.Warn().Err(err).Str("petition", id).Msg("Failed to load comments")
		comments = nil
	}

	return OK(PetitionDetail{Petition: petition, Comments: comments})
}

func (a *Actions) CreatePetition(ctx context.Context, sess *session.Session, in api.CreatePetitionRequest) Result[*api.Petition] {
	if f := validateInput(in); f != nil {
		return Fail[*api.Petition](f)
	}
	return authed(ctx, "CreatePetition", sess, func(token string) (*api.Petition, error) {
		return a.api.CreatePetition(ctx, token, in)
	})
}

func (a *Actions) SignPetition(ctx context.Context, sess *session.Session, id string) Result[*api.Petition] {
	return authed(ctx, "SignPetition", sess, func(token string) (*api.Petition, error) {
		return a.api.SignPetition(ctx, token, id)
	})
}

func (a *Actions) AddComment(ctx context.Context, sess *session.Session, petitionID string, in api.AddCommentRequest) Result[*api.Comment] {
	if f := validateInput(in); f != nil {
		return Fail[*api.Comment](f)
	}
	return authed(ctx, "AddComment", sess, func(token string) (*api.Comment, error) {
		return a.api.AddComment(ctx, token, petitionID, in)
	})
}
