package api

import (
	"bytes"
	"context"
	"strconv"
	"time"
)

const MaxImageSize = 5 << 20

type Petition struct {
	ID             string    `json:"id" validate:"required"`
	Title          string    `json:"title" validate:"required"`
	Summary        string    `json:"summary"`
	Story          string    `json:"story"`
	ImageURL       string    `json:"imageUrl" validate:"omitempty,url"`
	Goal           int       `json:"goal" validate:"gte=0"`
	SignatureCount int       `json:"signatureCount" validate:"gte=0"`
	Author         string    `json:"author"`
	Boosted        bool      `json:"boosted"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Progress returns how far the petition is towards its goal, capped to 100.
func (p Petition) Progress() int {
	if p.Goal <= 0 {
		return 0
	}
	pct := p.SignatureCount * 100 / p.Goal
	if pct > 100 {
		return 100
	}
	return pct
}

type PetitionPage struct {
	Items []Petition `json:"items" validate:"dive"`
	Page  int        `json:"page" validate:"gte=1"`
	Total int        `json:"total" validate:"gte=0"`
}

type ListPetitionsParams struct {
	Page  int    `validate:"gte=0"`
	Limit int    `validate:"gte=0,lte=100"`
	Query string `validate:"max=200"`
}

type ImageUpload struct {
	Filename    string `validate:"required,max=255"`
	ContentType string `validate:"required,oneof=image/jpeg image/png image/webp"`
	Data        []byte `validate:"required,max=5242880"`
}

type CreatePetitionRequest struct {
	Title   string       `validate:"required,min=5,max=120"`
	Summary string       `validate:"required,max=300"`
	Story   string       `validate:"required,min=20,max=20000"`
	Goal    int          `validate:"gte=1,lte=10000000"`
	Image   *ImageUpload `validate:"omitempty"`
}

type Comment struct {
	ID        string    `json:"id" validate:"required"`
	Author    string    `json:"author"`
	Body      string    `json:"body" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

type AddCommentRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

type commentList struct {
	Items []Comment `json:"items" validate:"dive"`
}

// ListPetitions is public; accessToken may be empty.
func (c *Client) ListPetitions(ctx context.Context, accessToken string, params ListPetitionsParams) (*PetitionPage, error) {
	if err := ValidateRequest(params); err != nil {
		return nil, err
	}

	query := map[string]string{}
	if params.Page > 0 {
		query["page"] = strconv.Itoa(params.Page)
	}
	if params.Limit > 0 {
		query["limit"] = strconv.Itoa(params.Limit)
	}
	if params.Query != "" {
		query["q"] = params.Query
	}

	result := &PetitionPage{}
	_, err := handleError(c.req(ctx, accessToken, result).
		SetQueryParams(query).
		Get("/petitions"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) GetPetition(ctx context.Context, accessToken, id string) (*Petition, error) {
	result := &Petition{}
	_, err := handleError(c.req(ctx, accessToken, result).
		SetPathParam("id", id).
		Get("/petitions/{id}"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreatePetition uploads the petition as multipart form data, including the
// optional cover image.
func (c *Client) CreatePetition(ctx context.Context, accessToken string, in CreatePetitionRequest) (*Petition, error) {
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}

	result := &Petition{}
	r := c.req(ctx, accessToken, result).
		SetMultipartFormData(map[string]string{
			"title":   in.Title,
			"summary": in.Summary,
			"story":   in.Story,
			"goal":    strconv.Itoa(in.Goal),
		})
	if in.Image != nil {
		r.SetMultipartField("image", in.Image.Filename, in.Image.ContentType, bytes.NewReader(in.Image.Data))
	}

	_, err := handleError(r.Post("/petitions"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

// SignPetition adds the signed-in user's signature and returns the updated petition.
func (c *Client) SignPetition(ctx context.Context, accessToken, id string) (*Petition, error) {
	result := &Petition{}
	_, err := handleError(c.req(ctx, accessToken, result).
		SetPathParam("id", id).
		Post("/petitions/{id}/sign"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) ListComments(ctx context.Context, accessToken, petitionID string) ([]Comment, error) {
	result := &commentList{}
	_, err := handleError(c.req(ctx, accessToken, result).
		SetPathParam("id", petitionID).
		Get("/petitions/{id}/comments"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (c *Client) AddComment(ctx context.Context, accessToken, petitionID string, in AddCommentRequest) (*Comment, error) {
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}

	result := &Comment{}
	_, err := handleError(c.req(ctx, accessToken, result).
		SetPathParam("id", petitionID).
		SetBody(in).
		Post("/petitions/{id}/comments"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}
