package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"surveybot/core/report"
	"surveybot/core/smooch"
	"surveybot/core/survey"
)

type sentMessage struct {
	UserID string
	Msg    smooch.Message
}

type userUpdate struct {
	UserID string
	Props  map[string]any
}

type fakePlatform struct {
	updates   []userUpdate
	messages  []sentMessage
	updateErr error
	sendErr   error
}

func (f *fakePlatform) UpdateUser(_ context.Context, userID string, properties map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, userUpdate{UserID: userID, Props: properties})
	return nil
}

func (f *fakePlatform) SendMessage(_ context.Context, userID string, msg smooch.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, sentMessage{UserID: userID, Msg: msg})
	return nil
}

type fakeSink struct {
	posts []report.Submission
	err   error
}

func (f *fakeSink) Post(_ context.Context, sub report.Submission) error {
	if f.err != nil {
		return f.err
	}
	f.posts = append(f.posts, sub)
	return nil
}

func newTestHandlers(platform *fakePlatform, sink *fakeSink) *Handlers {
	return NewHandlers(HandlersOptions{
		Survey:   survey.New([]string{"Name?", "Age?"}),
		Platform: platform,
		Results:  sink,
		BotName:  "Survey Bot",
	})
}

// post round-trips the event through JSON so property values arrive
// with the same types a real webhook delivers.
func post(t *testing.T, handler http.HandlerFunc, evt Event) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func messagesText(msgs []sentMessage) []string {
	texts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		texts = append(texts, m.Msg.Text)
	}
	return texts
}

func TestCommandWithoutActivationPhrase(t *testing.T) {
	platform := &fakePlatform{}
	h := newTestHandlers(platform, &fakeSink{})

	rec := post(t, h.Command, Event{
		Messages: []InboundMessage{{Text: "hello there"}},
		AppUser:  AppUser{ID: "u1"},
	})

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if len(platform.updates) != 0 || len(platform.messages) != 0 {
		t.Fatalf("expected no side effects, got %+v %+v", platform.updates, platform.messages)
	}
}

func TestCommandActivatesSurvey(t *testing.T) {
	platform := &fakePlatform{}
	h := newTestHandlers(platform, &fakeSink{})

	rec := post(t, h.Command, Event{
		Messages: []InboundMessage{{Text: "please start the survey now"}},
		AppUser:  AppUser{ID: "u1", Properties: map[string]any{"plan": "gold"}},
	})

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if len(platform.updates) != 1 {
		t.Fatalf("updates = %+v", platform.updates)
	}
	up := platform.updates[0]
	if up.UserID != "u1" {
		t.Fatalf("update user = %s", up.UserID)
	}
	if up.Props["surveyActive"] != true || up.Props["surveyIndex"] != 0 {
		t.Fatalf("props = %+v", up.Props)
	}
	if up.Props["plan"] != "gold" {
		t.Fatalf("existing properties must be merged, got %+v", up.Props)
	}
	if len(platform.messages) != 1 {
		t.Fatalf("messages = %+v", platform.messages)
	}
	msg := platform.messages[0]
	want := smooch.Message{Text: "Name?", Role: smooch.RoleAppMaker, Type: smooch.TypeText, Name: "Survey Bot"}
	if msg.UserID != "u1" || msg.Msg != want {
		t.Fatalf("message = %+v, want %+v", msg, want)
	}
}

func TestCommandActivationIsCaseSensitive(t *testing.T) {
	platform := &fakePlatform{}
	h := newTestHandlers(platform, &fakeSink{})

	rec := post(t, h.Command, Event{
		Messages: []InboundMessage{{Text: "Start The Survey"}},
		AppUser:  AppUser{ID: "u1"},
	})

	if rec.Code != http.StatusOK || len(platform.updates) != 0 {
		t.Fatalf("case-insensitive activation must not trigger: %d %+v", rec.Code, platform.updates)
	}
}

func TestCommandJoinsFragmentsAcrossMessages(t *testing.T) {
	platform := &fakePlatform{}
	h := newTestHandlers(platform, &fakeSink{})

	// The phrase spans the joined text, not any single fragment.
	rec := post(t, h.Command, Event{
		Messages: []InboundMessage{{Text: "start the"}, {Text: "survey"}},
		AppUser:  AppUser{ID: "u1"},
	})
	if len(platform.updates) != 0 {
		t.Fatalf("fragments are joined with newlines, phrase must not match: %+v", platform.updates)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestResponseInactiveIsNoOp(t *testing.T) {
	platform := &fakePlatform{}
	sink := &fakeSink{}
	h := newTestHandlers(platform, sink)

	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "hi"}},
		AppUser:  AppUser{ID: "u1", Properties: map[string]any{"plan": "gold"}},
	})

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if len(platform.updates) != 0 || len(platform.messages) != 0 || len(sink.posts) != 0 {
		t.Fatal("inactive survey must cause no side effects")
	}
}

func TestResponseInactiveWithGarbageIndexIsNoOp(t *testing.T) {
	platform := &fakePlatform{}
	sink := &fakeSink{}
	h := newTestHandlers(platform, sink)

	// The short-circuit must fire on the active flag alone; a malformed
	// index on a switched-off record is never parsed.
	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "hi"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive": false,
			"surveyIndex":  "banana",
		}},
	})

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if len(platform.updates) != 0 || len(platform.messages) != 0 || len(sink.posts) != 0 {
		t.Fatal("inactive survey must cause no side effects")
	}
}

func TestResponseAdvances(t *testing.T) {
	platform := &fakePlatform{}
	h := newTestHandlers(platform, &fakeSink{})

	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "Ada"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive": true,
			"surveyIndex":  0,
		}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	if len(platform.updates) != 1 {
		t.Fatalf("updates = %+v", platform.updates)
	}
	props := platform.updates[0].Props
	if props["surveyIndex"] != 1 || props["surveyResponse0"] != "Ada" || props["surveyActive"] != true {
		t.Fatalf("props = %+v", props)
	}
	if got := messagesText(platform.messages); !reflect.DeepEqual(got, []string{"Age?"}) {
		t.Fatalf("messages = %+v", got)
	}
}

func TestResponseElaboration(t *testing.T) {
	platform := &fakePlatform{}
	sink := &fakeSink{}
	h := newTestHandlers(platform, sink)

	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "OTHER"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive":    true,
			"surveyIndex":     1,
			"surveyResponse0": "Ada",
		}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if len(platform.updates) != 0 {
		t.Fatalf("elaboration must not persist state: %+v", platform.updates)
	}
	if got := messagesText(platform.messages); !reflect.DeepEqual(got, []string{survey.ElaborationPrompt}) {
		t.Fatalf("messages = %+v", got)
	}
	if len(sink.posts) != 0 {
		t.Fatal("no report on elaboration")
	}
}

func TestResponseFinalAnswerCompletes(t *testing.T) {
	platform := &fakePlatform{}
	sink := &fakeSink{}
	h := newTestHandlers(platform, sink)

	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "36"}},
		AppUser: AppUser{
			ID: "u1", UserID: "ext-42", GivenName: "Ada", Surname: "Lovelace", Email: "ada@example.com",
			Properties: map[string]any{
				"surveyActive":    true,
				"surveyIndex":     1,
				"surveyResponse0": "Ada",
			},
		},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d body=%s", rec.Code, rec.Body.String())
	}
	if len(platform.updates) != 1 {
		t.Fatalf("updates = %+v", platform.updates)
	}
	props := platform.updates[0].Props
	if props["surveyActive"] != false || props["surveyIndex"] != 2 ||
		props["surveyResponse0"] != "Ada" || props["surveyResponse1"] != "36" {
		t.Fatalf("props = %+v", props)
	}
	if got := messagesText(platform.messages); !reflect.DeepEqual(got, []string{survey.ClosingMessage}) {
		t.Fatalf("messages = %+v", got)
	}
	if len(sink.posts) != 1 {
		t.Fatalf("posts = %+v", sink.posts)
	}
	sub := sink.posts[0]
	wantSub := report.Submission{
		SmoochID:  "u1",
		UserID:    "ext-42",
		GivenName: "Ada",
		Surname:   "Lovelace",
		Email:     "ada@example.com",
		Answers:   []string{"Ada", "36"},
	}
	if !reflect.DeepEqual(sub, wantSub) {
		t.Fatalf("submission = %+v, want %+v", sub, wantSub)
	}
}

func TestResponseCompletionIgnoresText(t *testing.T) {
	platform := &fakePlatform{}
	sink := &fakeSink{}
	h := newTestHandlers(platform, sink)

	// Legacy state: index already at survey length with the flag still set.
	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "other"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive":    true,
			"surveyIndex":     2,
			"surveyResponse0": "Ada",
			"surveyResponse1": "36",
		}},
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	props := platform.updates[0].Props
	if props["surveyActive"] != false {
		t.Fatalf("props = %+v", props)
	}
	if got := messagesText(platform.messages); !reflect.DeepEqual(got, []string{survey.ClosingMessage}) {
		t.Fatalf("messages = %+v", got)
	}
	if len(sink.posts) != 1 || !reflect.DeepEqual(sink.posts[0].Answers, []string{"Ada", "36"}) {
		t.Fatalf("posts = %+v", sink.posts)
	}
}

func TestFullScenario(t *testing.T) {
	platform := &fakePlatform{}
	sink := &fakeSink{}
	h := newTestHandlers(platform, sink)

	props := map[string]any{}
	user := AppUser{ID: "u1", Properties: props}

	// carryState feeds the last persisted properties back in, playing
	// the role of the remote profile store between events.
	carryState := func() AppUser {
		u := user
		u.Properties = platform.updates[len(platform.updates)-1].Props
		return u
	}

	rec := post(t, h.Command, Event{
		Messages: []InboundMessage{{Text: "please start the survey now"}},
		AppUser:  user,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("command: %d", rec.Code)
	}

	rec = post(t, h.Response, Event{Messages: []InboundMessage{{Text: "Ada"}}, AppUser: carryState()})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer 1: %d %s", rec.Code, rec.Body.String())
	}

	rec = post(t, h.Response, Event{Messages: []InboundMessage{{Text: "other"}}, AppUser: carryState()})
	if rec.Code != http.StatusOK {
		t.Fatalf("elaboration: %d", rec.Code)
	}

	rec = post(t, h.Response, Event{Messages: []InboundMessage{{Text: "36"}}, AppUser: carryState()})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer 2: %d %s", rec.Code, rec.Body.String())
	}

	wantTexts := []string{"Name?", "Age?", survey.ElaborationPrompt, survey.ClosingMessage}
	if got := messagesText(platform.messages); !reflect.DeepEqual(got, wantTexts) {
		t.Fatalf("messages = %+v, want %+v", got, wantTexts)
	}
	final := platform.updates[len(platform.updates)-1].Props
	if final["surveyActive"] != false || final["surveyIndex"] != 2 {
		t.Fatalf("final props = %+v", final)
	}
	if len(sink.posts) != 1 || !reflect.DeepEqual(sink.posts[0].Answers, []string{"Ada", "36"}) {
		t.Fatalf("posts = %+v", sink.posts)
	}
}

func TestUpdateFailurePropagatesStatusCode(t *testing.T) {
	platform := &fakePlatform{updateErr: &smooch.APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}}
	h := newTestHandlers(platform, &fakeSink{})

	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "Ada"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive": true,
			"surveyIndex":  0,
		}},
	})

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["err"] == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestSendFailureIsGenericServerError(t *testing.T) {
	platform := &fakePlatform{sendErr: errors.New("connection reset")}
	h := newTestHandlers(platform, &fakeSink{})

	rec := post(t, h.Command, Event{
		Messages: []InboundMessage{{Text: "start the survey"}},
		AppUser:  AppUser{ID: "u1"},
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestReportFailureSurfaces(t *testing.T) {
	platform := &fakePlatform{}
	sink := &fakeSink{err: errors.New("results endpoint down")}
	h := newTestHandlers(platform, sink)

	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "36"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive":    true,
			"surveyIndex":     1,
			"surveyResponse0": "Ada",
		}},
	})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestMalformedBody(t *testing.T) {
	h := newTestHandlers(&fakePlatform{}, &fakeSink{})
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Response(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestBadIndexProperty(t *testing.T) {
	h := newTestHandlers(&fakePlatform{}, &fakeSink{})
	rec := post(t, h.Response, Event{
		Messages: []InboundMessage{{Text: "Ada"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive": true,
			"surveyIndex":  "banana",
		}},
	})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestRateLimitDropsBurst(t *testing.T) {
	platform := &fakePlatform{}
	h := NewHandlers(HandlersOptions{
		Survey:            survey.New([]string{"Name?", "Age?"}),
		Platform:          platform,
		Results:           &fakeSink{},
		BotName:           "Survey Bot",
		RateLimitInterval: time.Minute,
	})

	evt := Event{
		Messages: []InboundMessage{{Text: "Ada"}},
		AppUser: AppUser{ID: "u1", Properties: map[string]any{
			"surveyActive": true,
			"surveyIndex":  0,
		}},
	}

	if rec := post(t, h.Response, evt); rec.Code != http.StatusOK {
		t.Fatalf("first event: %d", rec.Code)
	}
	if rec := post(t, h.Response, evt); rec.Code != http.StatusOK {
		t.Fatalf("limited event must still answer 200: %d", rec.Code)
	}
	if len(platform.updates) != 1 {
		t.Fatalf("second event must be dropped, updates = %+v", platform.updates)
	}
}
