package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/raine/petition-web/internal/actions"
	"github.com/raine/petition-web/internal/api"
)

func (s *Server) handleListSurveys(w http.ResponseWriter, r *http.Request) {
	res := s.actions.ListSurveys(r.Context(), sessionFrom(r))
	if !res.Ok() {
		s.fail(w, r, res.Failure)
		return
	}
	s.render(w, r, http.StatusOK, "surveys", &page{Title: "Surveys", Data: res.Value})
}

func (s *Server) handleGetSurvey(w http.ResponseWriter, r *http.Request) {
	s.renderSurvey(w, r, http.StatusOK, &page{})
}

func (s *Server) renderSurvey(w http.ResponseWriter, r *http.Request, status int, p *page) {
	res := s.actions.GetSurvey(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if !res.Ok() {
		s.fail(w, r, res.Failure)
		return
	}
	p.Title = res.Value.Title
	p.Data = res.Value
	s.render(w, r, status, "survey", p)
}

func (s *Server) handleSubmitSurvey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form")
		return
	}

	res := s.actions.SubmitSurveyAnswers(r.Context(), sessionFrom(r), id, api.SubmitAnswersRequest{
		Answers: answersFromForm(r.PostForm),
	})
	if !res.Ok() {
		if res.Failure.Kind == actions.KindValidation {
			s.renderSurvey(w, r, http.StatusUnprocessableEntity, &page{
				Error:  "Please answer at least one question.",
				Fields: res.Failure.Fields,
			})
			return
		}
		s.fail(w, r, res.Failure)
		return
	}
	redirectWithNotice(w, r, "/surveys", "answered")
}

// answersFromForm collects q_<question id> fields, skipping blank ones.
func answersFromForm(form url.Values) []api.Answer {
	var answers []api.Answer
	for key, values := range form {
		questionID, ok := strings.CutPrefix(key, "q_")
		if !ok || questionID == "" {
			continue
		}

		var kept []string
		for _, v := range values {
			if v = strings.TrimSpace(v); v != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) > 0 {
			answers = append(answers, api.Answer{QuestionID: questionID, Values: kept})
		}
	}
	return answers
}
