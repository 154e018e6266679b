package api

import (
	"context"
)

// Checkout points at the payment provider page the user is sent to.
type Checkout struct {
	RedirectURL string `json:"redirectUrl" validate:"required,http_url"`
}

type DonationRequest struct {
	PetitionID string `json:"petitionId" validate:"required"`
	// Amount in minor currency units.
	Amount   int    `json:"amount" validate:"gte=100,lte=1000000"`
	Currency string `json:"currency" validate:"required,oneof=EUR USD GBP"`
}

type BoostPlan struct {
	ID           string `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Price        int    `json:"price" validate:"gte=0"`
	Currency     string `json:"currency" validate:"required"`
	DurationDays int    `json:"durationDays" validate:"gte=1"`
}

type boostPlanList struct {
	Items []BoostPlan `json:"items" validate:"dive"`
}

type BoostRequest struct {
	PetitionID string `json:"petitionId" validate:"required"`
	PlanID     string `json:"planId" validate:"required"`
}

func (c *Client) CreateDonation(ctx context.Context, accessToken string, in DonationRequest) (*Checkout, error) {
	return c.postForCheckout(ctx, "/donations", accessToken, in)
}

func (c *Client) ListBoostPlans(ctx context.Context, accessToken string) ([]BoostPlan, error) {
	result := &boostPlanList{}
	_, err := handleError(c.req(ctx, accessToken, result).
		Get("/boosts/plans"))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (c *Client) CreateBoost(ctx context.Context, accessToken string, in BoostRequest) (*Checkout, error) {
	return c.postForCheckout(ctx, "/boosts", accessToken, in)
}

func (c *Client) postForCheckout(ctx context.Context, path, accessToken string, body any) (*Checkout, error) {
	if err := ValidateRequest(body); err != nil {
		return nil, err
	}

	result := &Checkout{}
	_, err := handleError(c.req(ctx, accessToken, result).
		SetBody(body).
		Post(path))
	if err != nil {
		return nil, err
	}

	if err := validateResponse(result); err != nil {
		return nil, err
	}
	return result, nil
}
