package actions

import (
	"context"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/session"
)

func (a *Actions) ListSurveys(ctx context.Context, sess *session.Session) Result[[]api.Survey] {
	surveys, err := a.api.ListSurveys(ctx, optionalBearer(ctx, sess))
	if err != nil {
		return failed[[]api.Survey]("ListSurveys", err)
	}
	return OK(surveys)
}

func (a *Actions) GetSurvey(ctx context.Context, sess *session.Session, id string) Result[*api.Survey] {
	survey, err := a.api.GetSurvey(ctx, optionalBearer(ctx, sess), id)
	if err != nil {
		return failed[*api.Survey]("GetSurvey", err)
	}
	return OK(survey)
}

func (a *Actions) SubmitSurveyAnswers(ctx context.Context, sess *session.Session, id string, in api.SubmitAnswersRequest) Result[struct{}] {
	if f := validateInput(in); f != nil {
		return Fail[struct{}](f)
	}
	return authed(ctx, "SubmitSurveyAnswers", sess, func(token string) (struct{}, error) {
		return struct{}{}, a.api.SubmitSurveyAnswers(ctx, token, id, in)
	})
}
