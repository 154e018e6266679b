// Package drafts keeps the in-progress petition creation wizard between visits.
// Storage is best effort: failures are logged and the wizard carries on with
// whatever it has.
package drafts

import (
	"encoding/json"
	"slices"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/storage"
	"github.com/rs/zerolog/log"
)

type Step string

const (
	StepBasics Step = "basics"
	StepStory  Step = "story"
	StepImage  Step = "image"
	StepReview Step = "review"
)

var Steps = []Step{StepBasics, StepStory, StepImage, StepReview}

func ParseStep(s string) (Step, bool) {
	step := Step(s)
	return step, slices.Contains(Steps, step)
}

// Next returns the step after s, or s itself for the last step.
func (s Step) Next() Step {
	i := slices.Index(Steps, s)
	if i < 0 || i == len(Steps)-1 {
		return s
	}
	return Steps[i+1]
}

// Prev returns the step before s, or s itself for the first step.
func (s Step) Prev() Step {
	i := slices.Index(Steps, s)
	if i <= 0 {
		return s
	}
	return Steps[i-1]
}

// Draft is the wizard form state. The image is stored separately.
type Draft struct {
	Step    Step   `json:"step"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Story   string `json:"story"`
	Goal    int    `json:"goal"`
}

type Repository interface {
	GetDraft(id string) (*storage.Draft, error)
	SaveDraft(draft *storage.Draft) error
	DeleteDraft(id string) error
	GetDraftImage(draftID string) (*storage.DraftImage, error)
	SaveDraftImage(img *storage.DraftImage) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Load returns the saved draft, or a fresh one starting at the first step.
func (s *Service) Load(id string) *Draft {
	fresh := &Draft{Step: StepBasics}

	stored, err := s.repo.GetDraft(id)
	if err != nil {
		log.Warn().Err(err).Str("draft", id).Msg("Failed to load draft")
		return fresh
	}
	if stored == nil {
		return fresh
	}

	var d Draft
	if err := json.Unmarshal(stored.Data, &d); err != nil {
		log.Warn().Err(err).Str("draft", id).Msg("Discarding unreadable draft")
		return fresh
	}
	if _, ok := ParseStep(string(d.Step)); !ok {
		d.Step = StepBasics
	}
	return &d
}

func (s *Service) Save(id string, d *Draft) {
	data, err := json.Marshal(d)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to encode draft")
		return
	}
	if err := s.repo.SaveDraft(&storage.Draft{ID: id, Data: data}); err != nil {
		log.Warn().Err(err).Str("draft", id).Msg("Failed to save draft")
	}
}

func (s *Service) SaveImage(id string, img *api.ImageUpload) {
	err := s.repo.SaveDraftImage(&storage.DraftImage{
		DraftID:     id,
		Filename:    img.Filename,
		ContentType: img.ContentType,
		Data:        img.Data,
	})
	if err != nil {
		log.Warn().Err(err).Str("draft", id).Msg("Failed to save draft image")
	}
}

// Image returns the draft's image, or nil.
func (s *Service) Image(id string) *api.ImageUpload {
	img, err := s.repo.GetDraftImage(id)
	if err != nil {
		log.Warn().Err(err).Str("draft", id).Msg("Failed to load draft image")
		return nil
	}
	if img == nil {
		return nil
	}
	return &api.ImageUpload{
		Filename:    img.Filename,
		ContentType: img.ContentType,
		Data:        img.Data,
	}
}

func (s *Service) Discard(id string) {
	if err := s.repo.DeleteDraft(id); err != nil {
		log.Warn().Err(err).Str("draft", id).Msg("Failed to delete draft")
	}
}

// Request assembles the create request from the draft and its image.
func (s *Service) Request(id string, d *Draft) api.CreatePetitionRequest {
	return api.CreatePetitionRequest{
		Title:   d.Title,
		Summary: d.Summary,
		Story:   d.Story,
		Goal:    d.Goal,
		Image:   s.Image(id),
	}
}
