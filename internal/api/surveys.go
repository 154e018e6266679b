package api

import (
	"context"
)

type Question struct {
	ID      string   `json:"id" validate:"required"`
	Text    string   `json:"text" validate:"required"`
	Kind    string   `json:"kind" validate:"required,oneof=single multiple text"`
	Options []string `json:"options"`
}

type Survey struct {
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions" validate:"dive"`
}

type surveyList struct {
	Items []Survey `json:"items" validate:"dive"`
}

type Answer struct {
	QuestionID string   `json:"questionId" validate:"required"`
	Values     []string `json:"values" validate:"min=1,dive,required,max=2000"`
}

type SubmitAnswersRequest struct {
	Answers []Answer `json:"answers" validate:"min=1,dive"`
}

func (c *Client) ListSurveys(ctx context.Context, accessToken string) ([]Survey, error) {
	result := &surveyList{}
	_, err := handleError(c.req(ctx, accessToken, result).
		Get("/surveys"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (c *Client) GetSurvey(ctx context.Context, accessToken, id string) (*Survey, error) {
	result := &Survey{}
	_, err := handleError(c.req(ctx, accessToken, result).
		SetPathParam("id", id).
		Get("/surveys/{id}"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) SubmitSurveyAnswers(ctx context.Context, accessToken, id string, in SubmitAnswersRequest) error {
	if err := ValidateRequest(in); err != nil {
		return err
	}

	_, err := handleError(c.req(ctx, accessToken, nil).
		SetPathParam("id", id).
		SetBody(in).
		Post("/surveys/{id}/answers"))
	return err
}
