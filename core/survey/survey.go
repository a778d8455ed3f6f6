// Package survey implements the survey definition and the state
// transitions driven by inbound chat events. Transition logic is pure;
// persistence happens on the remote user-profile record owned by the
// chat platform.
package survey

import "strings"

const (
	// ActivationPhrase starts a survey when found anywhere in an
	// operator command's text. The match is case-sensitive.
	ActivationPhrase = "start the survey"

	// elaborationToken is the reserved answer that asks the user to
	// expand instead of advancing. Matched case-insensitively.
	elaborationToken = "other"

	// ClosingMessage is sent once when the last question has been answered.
	ClosingMessage = "Thanks for answering my questions!"

	// ElaborationPrompt is sent when the user answers with the reserved token.
	ElaborationPrompt = "Please elaborate..."
)

// Survey is an immutable ordered list of questions, fixed at startup.
type Survey struct {
	questions []string
}

// New copies the provided questions into an immutable Survey.
func New(questions []string) *Survey {
	return &Survey{questions: append([]string(nil), questions...)}
}

// Len returns the number of questions.
func (s *Survey) Len() int {
	return len(s.questions)
}

// Question returns the question at the zero-based index.
func (s *Survey) Question(i int) string {
	return s.questions[i]
}

// Activates reports whether the given command text contains the
// activation phrase as a case-sensitive substring.
func Activates(text string) bool {
	return strings.Contains(text, ActivationPhrase)
}

// IsElaboration reports whether the answer equals the reserved token,
// ignoring case. Unlike the activation match this one is
// case-insensitive; the asymmetry is intentional.
func IsElaboration(text string) bool {
	return strings.EqualFold(text, elaborationToken)
}

// JoinMessages concatenates inbound message fragments with newline
// separators, mirroring how the platform splits long inputs.
func JoinMessages(texts []string) string {
	return strings.Join(texts, "\n")
}
