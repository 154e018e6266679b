package actions

import (
	"context"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/session"
)

// Donate starts a donation checkout. The caller redirects to the returned URL.
func (a *Actions) Donate(ctx context.Context, sess *session.Session, in api.DonationRequest) Result[*api.Checkout] {
	if f := validateInput(in); f != nil {
		return Fail[*api.Checkout](f)
	}
	return authed(ctx, "Donate", sess, func(token string) (*api.Checkout, error) {
		return a.api.CreateDonation(ctx, token, in)
	})
}

func (a *Actions) ListBoostPlans(ctx context.Context, sess *session.Session) Result[[]api.BoostPlan] {
	plans, err := a.api.ListBoostPlans(ctx, optionalBearer(ctx, sess))
	if err != nil {
		return failed[[]api.BoostPlan]("ListBoostPlans", err)
	}
	return OK(plans)
}

// Boost starts a boost checkout for one of the plans from ListBoostPlans.
func (a *Actions) Boost(ctx context.Context, sess *session.Session, in api.BoostRequest) Result[*api.Checkout] {
	if f := validateInput(in); f != nil {
		return Fail[*api.Checkout](f)
	}
	return authed(ctx, "Boost", sess, func(token string) (*api.Checkout, error) {
		return a.api.CreateBoost(ctx, token, in)
	})
}
