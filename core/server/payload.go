package server

import "surveybot/core/survey"

// InboundMessage is one message fragment from the chat platform webhook.
type InboundMessage struct {
	Text string `json:"text"`
}

// AppUser is the platform's user record as delivered on webhook events.
// Properties is the flat key-value bag that carries survey state.
type AppUser struct {
	ID         string         `json:"_id"`
	UserID     string         `json:"userId"`
	GivenName  string         `json:"givenName"`
	Surname    string         `json:"surname"`
	Email      string         `json:"email"`
	Properties map[string]any `json:"properties"`
}

// Event is the body of both inbound webhook routes.
type Event struct {
	Messages []InboundMessage `json:"messages"`
	AppUser  AppUser          `json:"appUser"`
}

// JoinedText concatenates all message fragments with newline separators.
func (e *Event) JoinedText() string {
	texts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		texts = append(texts, m.Text)
	}
	return survey.JoinMessages(texts)
}
