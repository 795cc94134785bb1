package evaluation

import "math/rand"

// Light-hearted acknowledgements shown after each submission. There is no
// right answer to reveal, so the product leans into that.
var feedbackMessages = []string{
	"Tricky, isn't it? Even experts argue about this one!",
	"Hmm, that was a challenging sound to identify!",
	"Are you sure? Just kidding, there's no right answer!",
	"Did you know coughs can be as unique as fingerprints?",
	"That's a tough one! It's like the 'Yanny or Laurel' of respiratory sounds.",
	"Interesting choice! The world of respiratory sounds is complex.",
	"Your ears are being put to the test today!",
	"That's the kind of sound that divides opinion at cough conferences!",
	"Trust your ears - they're surprisingly good at this!",
	"This one keeps our research team debating too!",
}

// PickFeedback returns one randomly chosen feedback message.
func PickFeedback() string {
	return feedbackMessages[rand.Intn(len(feedbackMessages))]
}
