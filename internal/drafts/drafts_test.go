package drafts

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/raine/petition-web/internal/api"
	"github.com/raine/petition-web/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *storage.SQLiteStore) {
	t.Helper()
	key, err := storage.DeriveKey("drafts-test-passphrase")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "drafts.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewService(store), store
}

func TestSteps(t *testing.T) {
	assert.Equal(t, StepStory, StepBasics.Next())
	assert.Equal(t, StepReview, StepReview.Next())
	assert.Equal(t, StepBasics, StepBasics.Prev())
	assert.Equal(t, StepImage, StepReview.Prev())

	step, ok := ParseStep("image")
	assert.True(t, ok)
	assert.Equal(t, StepImage, step)
	_, ok = ParseStep("payment")
	assert.False(t, ok)
}

func TestLoad_Fresh(t *testing.T) {
	svc, _ := newTestService(t)
	assert.Equal(t, &Draft{Step: StepBasics}, svc.Load("nope"))
}

func TestSaveAndLoad(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Save("d1", &Draft{Step: StepStory, Title: "Save the park", Summary: "Keep it green"})
	svc.SaveImage("d1", &api.ImageUpload{Filename: "park.png", ContentType: "image/png", Data: []byte{1, 2, 3}})

	d := svc.Load("d1")
	assert.Equal(t, &Draft{Step: StepStory, Title: "Save the park", Summary: "Keep it green"}, d)

	d.Story = "The city wants to build a parking lot in our park."
	d.Goal = 500
	req := svc.Request("d1", d)
	assert.Equal(t, "Save the park", req.Title)
	assert.Equal(t, 500, req.Goal)
	require.NotNil(t, req.Image)
	assert.Equal(t, []byte{1, 2, 3}, req.Image.Data)

	svc.Discard("d1")
	assert.Equal(t, &Draft{Step: StepBasics}, svc.Load("d1"))
	assert.Nil(t, svc.Image("d1"))
}

func TestLoad_UnreadableDraft(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.SaveDraft(&storage.Draft{ID: "d1", Data: []byte("{not json")}))

	assert.Equal(t, &Draft{Step: StepBasics}, svc.Load("d1"))
}

func TestLoad_UnknownStep(t *testing.T) {
	svc, store := newTestService(t)
	require.NoError(t, store.SaveDraft(&storage.Draft{ID: "d1", Data: []byte(`{"step":"payment","title":"x"}`)}))

	assert.Equal(t, &Draft{Step: StepBasics, Title: "x"}, svc.Load("d1"))
}

type failingRepo struct{}

var errDisk = errors.New("disk full")

func (failingRepo) GetDraft(string) (*storage.Draft, error)           { return nil, errDisk }
func (failingRepo) SaveDraft(*storage.Draft) error                    { return errDisk }
func (failingRepo) DeleteDraft(string) error                          { return errDisk }
func (failingRepo) GetDraftImage(string) (*storage.DraftImage, error) { return nil, errDisk }
func (failingRepo) SaveDraftImage(*storage.DraftImage) error          { return errDisk }

func TestStorageFailuresAreIgnored(t *testing.T) {
	svc := NewService(failingRepo{})

	assert.NotPanics(t, func() {
		svc.Save("d1", &Draft{Title: "x"})
		svc.SaveImage("d1", &api.ImageUpload{Filename: "a.png", ContentType: "image/png", Data: []byte{1}})
		svc.Discard("d1")
	})
	assert.Equal(t, &Draft{Step: StepBasics}, svc.Load("d1"))
	assert.Nil(t, svc.Image("d1"))
}
