package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/raine/petition-web/internal/actions"
	"github.com/raine/petition-web/internal/api"
)

type petitionView struct {
	actions.PetitionDetail
	Plans []api.BoostPlan
}

func (s *Server) handleListPetitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageNum, _ := strconv.Atoi(q.Get("page"))

	res := s.actions.ListPetitions(r.Context(), sessionFrom(r), api.ListPetitionsParams{
		Page:  pageNum,
		Query: strings.TrimSpace(q.Get("q")),
	})
	if !res.Ok() {
		s.fail(w, r, res.Failure)
		return
	}

	s.render(w, r, http.StatusOK, "petitions", &page{
		Form: url.Values{"q": {q.Get("q")}},
		Data: res.Value,
	})
}

func (s *Server) handleGetPetition(w http.ResponseWriter, r *http.Request) {
	s.renderPetition(w, r, http.StatusOK, &page{})
}

// renderPetition renders the detail page, keeping p's form state and errors.
func (s *Server) renderPetition(w http.ResponseWriter, r *http.Request, status int, p *page) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	res := s.actions.GetPetition(ctx, sessionFrom(r), id)
	if !res.Ok() {
		s.fail(w, r, res.Failure)
		return
	}

	view := petitionView{PetitionDetail: res.Value}
	if plans := s.actions.ListBoostPlans(ctx, sessionFrom(r)); plans.Ok() {
		view.Plans = plans.Value
	}

	p.Title = res.Value.Petition.Title
	p.Data = view
	s.render(w, r, status, "petition", p)
}

func (s *Server) handleSignPetition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res := s.actions.SignPetition(r.Context(), sessionFrom(r), id)
	if !res.Ok() {
		s.fail(w, r, res.Failure)
		return
	}
	redirectWithNotice(w, r, "/petitions/"+url.PathEscape(id), "signed")
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}

	res := s.actions.AddComment(r.Context(), sessionFrom(r), id, api.AddCommentRequest{
		Body: strings.TrimSpace(r.PostForm.Get("body")),
	})
	if !res.Ok() {
		if res.Failure.Kind == actions.KindValidation {
			s.renderPetition(w, r, http.StatusUnprocessableEntity, &page{
				Error:  res.Failure.Message,
				Fields: res.Failure.Fields,
				Form:   r.PostForm,
			})
			return
		}
		s.fail(w, r, res.Failure)
		return
	}
	redirectWithNotice(w, r, "/petitions/"+url.PathEscape(id), "commented")
}

func (s *Server) handleDonate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}

	amount, ok := parseAmount(r.PostForm.Get("amount"))
	if !ok {
		s.renderPetition(w, r, http.StatusUnprocessableEntity, &page{
			Fields: map[string]string{"Amount": "Enter an amount like 5 or 4.50."},
			Form:   r.PostForm,
		})
		return
	}
	res := s.actions.Donate(r.Context(), sessionFrom(r), api.DonationRequest{
		PetitionID: id,
		Amount:     amount,
		Currency:   r.PostForm.Get("currency"),
	})
	if !res.Ok() {
		if res.Failure.Kind == actions.KindValidation {
			s.renderPetition(w, r, http.StatusUnprocessableEntity, &page{
				Error:  res.Failure.Message,
				Fields: res.Failure.Fields,
				Form:   r.PostForm,
			})
			return
		}
		s.fail(w, r, res.Failure)
		return
	}
	http.Redirect(w, r, res.Value.RedirectURL, http.StatusSeeOther)
}

// parseAmount converts a decimal amount such as "19.99" to minor units.
// At most two fraction digits are accepted.
func parseAmount(s string) (int, bool) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" || len(whole) > 9 || len(frac) > 2 || !allDigits(whole) || !allDigits(frac) {
		return 0, false
	}
	frac += strings.Repeat("0", 2-len(frac))

	units, err := strconv.Atoi(whole + frac)
	if err != nil {
		return 0, false
	}
	return units, true
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (s *Server) handleBoost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}

	res := s.actions.Boost(r.Context(), sessionFrom(r), api.BoostRequest{
		PetitionID: id,
		PlanID:     r.PostForm.Get("plan"),
	})
	if !res.Ok() {
		s.fail(w, r, res.Failure)
		return
	}
	http.Redirect(w, r, res.Value.RedirectURL, http.StatusSeeOther)
}
