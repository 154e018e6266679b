package web

import (
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/petition-web/internal/drafts"
)

// notices are shown after a redirect, selected by the notice query parameter.
var notices = map[string]string{
	"signed":    "Thanks for signing! Share the petition to help it reach its goal.",
	"commented": "Your comment was posted.",
	"answered":  "Thanks for answering the survey.",
	"created":   "Your petition is live.",
	"discarded": "Your draft was discarded.",
	"signedout": "You have been signed out.",
	"expired":   "Your session has expired. Please sign in again.",
	"verified":  "Your email is verified. Welcome!",
}

var stepHelp = map[drafts.Step]string{
	drafts.StepBasics: formatHelpText(`
		Give your petition a short, specific title. Say what should change
		and who can make it happen. The summary is shown in listings.
	`),
	drafts.StepStory: formatHelpText(`
		Tell people why this matters to you and to them. Concrete stories
		get more signatures than general statements.
	`),
	drafts.StepImage: formatHelpText(`
		Petitions with an image get shared more. JPEG, PNG or WebP, up to 5 MB.
		You can skip this step.
	`),
	drafts.StepReview: formatHelpText(`
		Check everything once more. You can go back and edit any step.
	`),
}

func formatHelpText(text string) string {
	return strings.Join(strings.Fields(dedent.Dedent(text)), " ")
}
