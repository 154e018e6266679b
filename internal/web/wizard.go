package web

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/raine/petition-web/internal/actions"
	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/drafts"
)

type wizardView struct {
	Steps    []drafts.Step
	Step     drafts.Step
	Help     string
	Draft    *drafts.Draft
	HasImage bool
}

// Per-step input checks. The full request is validated again on submit.
type basicsInput struct {
	Title   string `validate:"required,min=5,max=120"`
	Summary string `validate:"required,max=300"`
}

type storyInput struct {
	Story string `validate:"required,min=20,max=20000"`
	Goal  int    `validate:"gte=1,lte=10000000"`
}

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	id := s.draftID(w, r)
	draft := s.drafts.Load(id)

	step := draft.Step
	if requested, ok := drafts.ParseStep(r.URL.Query().Get("step")); ok {
		step = requested
	}
	s.renderWizard(w, r, http.StatusOK, id, draft, step, &page{})
}

func (s *Server) renderWizard(w http.ResponseWriter, r *http.Request, status int, id string, draft *drafts.Draft, step drafts.Step, p *page) {
	p.Title = "Start a petition"
	p.Data = wizardView{
		Steps:    drafts.Steps,
		Step:     step,
		Help:     stepHelp[step],
		Draft:    draft,
		HasImage: s.drafts.Image(id) != nil,
	}
	s.render(w, r, status, "wizard", p)
}

func (s *Server) handleWizardSubmit(w http.ResponseWriter, r *http.Request) {
	id := s.draftID(w, r)
	draft := s.drafts.Load(id)

	r.Body = http.MaxBytesReader(w, r.Body, api.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(api.MaxImageSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderWizard(w, r, http.StatusRequestEntityTooLarge, id, draft, drafts.StepImage, &page{
			Fields: map[string]string{"Image": "The image is too large."},
		})
		return
	}

	step, ok := drafts.ParseStep(r.FormValue("step"))
	if !ok {
		step = draft.Step
	}
	action := r.FormValue("action")

	if action == "back" {
		applyStepForm(draft, step, r.Form)
		draft.Step = step.Prev()
		s.drafts.Save(id, draft)
		http.Redirect(w, r, "/petitions/new?step="+string(draft.Step), http.StatusSeeOther)
		return
	}

	applyStepForm(draft, step, r.Form)
	if f := validateStep(draft, step); f != nil {
		s.drafts.Save(id, draft)
		s.renderWizard(w, r, http.StatusUnprocessableEntity, id, draft, step, &page{
			Error:  f.Message,
			Fields: f.Fields,
		})
		return
	}

	if step == drafts.StepImage {
		if fields := s.saveWizardImage(r, id); fields != nil {
			s.renderWizard(w, r, http.StatusUnprocessableEntity, id, draft, step, &page{Fields: fields})
			return
		}
	}

	if step == drafts.StepReview && action == "submit" {
		s.publishDraft(w, r, id, draft)
		return
	}

	draft.Step = step.Next()
	s.drafts.Save(id, draft)
	http.Redirect(w, r, "/petitions/new?step="+string(draft.Step), http.StatusSeeOther)
}

func (s *Server) publishDraft(w http.ResponseWriter, r *http.Request, id string, draft *drafts.Draft) {
	res := s.actions.CreatePetition(r.Context(), sessionFrom(r), s.drafts.Request(id, draft))
	if !res.Ok() {
		switch res.Failure.Kind {
		case actions.KindValidation, actions.KindRejected:
			s.renderWizard(w, r, http.StatusUnprocessableEntity, id, draft, drafts.StepReview, &page{
				Error:  res.Failure.Message,
				Fields: res.Failure.Fields,
			})
		default:
			s.fail(w, r, res.Failure)
		}
		return
	}

	s.drafts.Discard(id)
	s.forgetDraft(w)
	redirectWithNotice(w, r, "/petitions/"+url.PathEscape(res.Value.ID), "created")
}

func applyStepForm(draft *drafts.Draft, step drafts.Step, form url.Values) {
	switch step {
	case drafts.StepBasics:
		draft.Title = strings.TrimSpace(form.Get("title"))
		draft.Summary = strings.TrimSpace(form.Get("summary"))
	case drafts.StepStory:
		draft.Story = strings.TrimSpace(form.Get("story"))
		if goal, err := strconv.Atoi(strings.TrimSpace(form.Get("goal"))); err == nil {
			draft.Goal = goal
		}
	}
}

func validateStep(draft *drafts.Draft, step drafts.Step) *actions.Failure {
	var in any
	switch step {
	case drafts.StepBasics:
		in = basicsInput{Title: draft.Title, Summary: draft.Summary}
	case drafts.StepStory:
		in = storyInput{Story: draft.Story, Goal: draft.Goal}
	default:
		return nil
	}

	return actions.Validate(in)
}

// saveWizardImage stores an uploaded image, if one was sent. It returns field
// errors for unusable uploads.
func (s *Server) saveWizardImage(r *http.Request, id string) map[string]string {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil
	}
	if err != nil {
		return map[string]string{"Image": "The image could not be read."}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, api.MaxImageSize+1))
	if err != nil {
		return map[string]string{"Image": "The image could not be read."}
	}
	if len(data) == 0 {
		return nil
	}

	img := &api.ImageUpload{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}
	if f := actions.Validate(img); f != nil {
		if _, ok := f.Fields["ContentType"]; ok {
			return map[string]string{"Image": "Use a JPEG, PNG or WebP image."}
		}
		return map[string]string{"Image": "The image is too large."}
	}

	s.drafts.SaveImage(id, img)
	return nil
}

func (s *Server) handleWizardImage(w http.ResponseWriter, r *http.Request) {
	img := s.drafts.Image(s.draftID(w, r))
	if img == nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write(img.Data)
}

func (s *Server) handleWizardDiscard(w http.ResponseWriter, r *http.Request) {
	s.drafts.Discard(s.draftID(w, r))
	s.forgetDraft(w)
	redirectWithNotice(w, r, "/", "discarded")
}
