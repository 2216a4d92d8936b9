package services

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"chatgpt-whatsapp-bot/pkg/domain"
	"chatgpt-whatsapp-bot/pkg/repository"
)

type fakeMessageClient struct {
	sent      []string
	failSends bool
}

func (f *fakeMessageClient) ParseInbound(values url.Values) domain.InboundMessage {
	numMedia, _ := strconv.Atoi(values.Get("NumMedia"))
	return domain.InboundMessage{
		From:             values.Get("From"),
		ProfileName:      values.Get("ProfileName"),
		Body:             values.Get("Body"),
		NumMedia:         numMedia,
		MediaURL:         values.Get("MediaUrl0"),
		MediaContentType: values.Get("MediaContentType0"),
	}
}

func (f *fakeMessageClient) SendText(ctx context.Context, text, to, onFailure string) (string, error) {
	if f.failSends {
		if onFailure == "" {
			return "", &domain.DeliveryError{Err: errors.New("provider unreachable")}
		}
		f.sent = append(f.sent, onFailure)
		return onFailure, nil
	}
	f.sent = append(f.sent, text)
	return text, nil
}

type fakeCompletions struct {
	reply       string
	err         error
	gotMessages []domain.ChatMessage
	calls       int
}

func (f *fakeCompletions) CreateChatCompletion(ctx context.Context, messages []domain.ChatMessage, cfg domain.ModelConfig) (string, error) {
	f.calls++
	f.gotMessages = append([]domain.ChatMessage(nil), messages...)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type passthroughMedia struct{}

func (passthroughMedia) Process(ctx context.Context, msg domain.InboundMessage, session *domain.ChatSession) string {
	return msg.Body
}

type fakeLanguage struct {
	lang  string
	calls int
}

func (f *fakeLanguage) EnsureLanguage(ctx context.Context, session *domain.ChatSession, text string) {
	f.calls++
	session.Language = f.lang
}

type fakeImages struct {
	prompts []string
}

func (f *fakeImages) GenerateAndSend(ctx context.Context, prompt, to string) {
	f.prompts = append(f.prompts, prompt)
}

type testEnv struct {
	svc        *chatService
	messages   *fakeMessageClient
	completion *fakeCompletions
	language   *fakeLanguage
	images     *fakeImages
	sessions   SessionRepository
	defaults   domain.SessionDefaults
}

func newTestEnv(reply string) *testEnv {
	env := &testEnv{
		messages:   &fakeMessageClient{},
		completion: &fakeCompletions{reply: reply},
		language:   &fakeLanguage{lang: "english"},
		images:     &fakeImages{},
		sessions:   repository.NewSessionRepository(0),
		defaults: domain.SessionDefaults{
			StartTemplate:  "You are talking to {user}. Today is {today}.",
			GoodbyeMessage: "Goodbye {user}! I'll be here if you need me.",
			AllowImages:    true,
			Model:          domain.ModelConfig{Model: "gpt-3.5-turbo", N: 1},
		},
	}
	env.svc = NewChatService(env.messages, env.completion, env.sessions, passthroughMedia{}, env.language, env.images, env.defaults)
	return env
}

func payload(body string) url.Values {
	return url.Values{
		"From":        {"+1234567890"},
		"ProfileName": {"Test User"},
		"Body":        {body},
	}
}

func (env *testEnv) fetchSession(t *testing.T) *domain.ChatSession {
	t.Helper()
	session, err := env.sessions.GetOrCreate(context.Background(),
		domain.Sender{PhoneNumber: "+1234567890", Name: "Test User"}, env.defaults)
	if err != nil {
		t.Fatalf("fetching session: %v", err)
	}
	return session
}

func TestHandleIncomingFirstMessage(t *testing.T) {
	env := newTestEnv("Hi! How can I help?")

	if err := env.svc.HandleIncoming(context.Background(), payload("Hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env.language.calls != 1 {
		t.Errorf("language bootstrap calls = %d, want 1", env.language.calls)
	}
	if len(env.completion.gotMessages) != 2 {
		t.Fatalf("completion called with %d messages, want 2", len(env.completion.gotMessages))
	}
	if env.completion.gotMessages[0].Role != domain.RoleSystem || env.completion.gotMessages[1].Content != "Hello" {
		t.Errorf("unexpected completion input: %+v", env.completion.gotMessages)
	}
	if len(env.messages.sent) != 1 || env.messages.sent[0] != "Hi! How can I help?" {
		t.Errorf("unexpected sends: %v", env.messages.sent)
	}

	session := env.fetchSession(t)
	if len(session.Messages) != 3 {
		t.Fatalf("persisted %d messages, want 3", len(session.Messages))
	}
	if session.Messages[0].Role != domain.RoleSystem {
		t.Errorf("messages[0] role = %q, want system", session.Messages[0].Role)
	}
	if !strings.Contains(session.Messages[0].Content, "Test User") {
		t.Errorf("system prompt not formatted with sender name: %q", session.Messages[0].Content)
	}
	if session.Language != "english" {
		t.Errorf("session language = %q, want english", session.Language)
	}
}

func TestHandleIncomingSecondMessageSkipsLanguageBootstrap(t *testing.T) {
	env := newTestEnv("Sure.")

	env.svc.HandleIncoming(context.Background(), payload("Hello"))
	env.svc.HandleIncoming(context.Background(), payload("And another thing"))

	if env.language.calls != 1 {
		t.Errorf("language bootstrap calls = %d, want 1", env.language.calls)
	}

	session := env.fetchSession(t)
	if len(session.Messages) != 5 {
		t.Errorf("persisted %d messages, want 5", len(session.Messages))
	}
	if session.Messages[0].Role != domain.RoleSystem {
		t.Errorf("system prompt slot lost: %+v", session.Messages[0])
	}
}

func TestHandleIncomingEmptyMessage(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\t"} {
		env := newTestEnv("never used")

		if err := env.svc.HandleIncoming(context.Background(), payload(body)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if env.completion.calls != 0 {
			t.Errorf("body %q: completion should not run", body)
		}
		if len(env.messages.sent) != 1 || env.messages.sent[0] != apologyText {
			t.Errorf("body %q: unexpected sends: %v", body, env.messages.sent)
		}
		if session := env.fetchSession(t); len(session.Messages) != 1 {
			t.Errorf("body %q: short-circuit mutated history: %d messages", body, len(session.Messages))
		}
	}
}

func TestHandleIncomingGoodbye(t *testing.T) {
	env := newTestEnv("never used")

	if err := env.svc.HandleIncoming(context.Background(), payload("bye")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env.completion.calls != 0 {
		t.Error("completion should not run on goodbye")
	}
	want := "Goodbye Test User! I'll be here if you need me."
	if len(env.messages.sent) != 1 || env.messages.sent[0] != want {
		t.Errorf("unexpected sends: %v, want %q", env.messages.sent, want)
	}
	if session := env.fetchSession(t); len(session.Messages) != 1 {
		t.Errorf("goodbye mutated history: %d messages", len(session.Messages))
	}
}

func TestHandleIncomingImageDirective(t *testing.T) {
	env := newTestEnv(`Here you go [img:"a red bicycle"]`)

	if err := env.svc.HandleIncoming(context.Background(), payload("Draw me a bicycle")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.messages.sent) != 1 || env.messages.sent[0] != "Here you go" {
		t.Errorf("delivered reply = %v, want stripped text", env.messages.sent)
	}
	if len(env.images.prompts) != 1 || env.images.prompts[0] != "a red bicycle" {
		t.Errorf("image prompts = %v", env.images.prompts)
	}

	session := env.fetchSession(t)
	if len(session.Messages) != 4 {
		t.Fatalf("persisted %d messages, want 4", len(session.Messages))
	}
	marker := session.Messages[3]
	if marker.Role != domain.RoleSystem || marker.Content != `[img:"a red bicycle"]` {
		t.Errorf("unexpected marker entry: %+v", marker)
	}
	if session.Messages[2].Content != "Here you go" {
		t.Errorf("assistant turn = %q, want delivered text", session.Messages[2].Content)
	}
}

func TestHandleIncomingImagesDisabled(t *testing.T) {
	env := newTestEnv(`Here you go [img:"a red bicycle"]`)
	env.defaults.AllowImages = false
	env.svc = NewChatService(env.messages, env.completion, env.sessions, passthroughMedia{}, env.language, env.images, env.defaults)

	env.svc.HandleIncoming(context.Background(), payload("Draw me a bicycle"))

	if len(env.images.prompts) != 0 {
		t.Errorf("image generation ran despite AllowImages=false: %v", env.images.prompts)
	}
	if session := env.fetchSession(t); len(session.Messages) != 3 {
		t.Errorf("persisted %d messages, want 3 without marker", len(session.Messages))
	}
}

func TestHandleIncomingCompletionFailure(t *testing.T) {
	env := newTestEnv("")
	env.completion.err = &domain.CompletionError{Err: errors.New("auth failed")}

	err := env.svc.HandleIncoming(context.Background(), payload("Hello"))
	if err == nil {
		t.Fatal("expected error")
	}

	var completionErr *domain.CompletionError
	if !errors.As(err, &completionErr) {
		t.Errorf("expected CompletionError in chain, got %v", err)
	}
	if len(env.messages.sent) != 1 || env.messages.sent[0] != apologyText {
		t.Errorf("unexpected sends: %v", env.messages.sent)
	}
	if session := env.fetchSession(t); len(session.Messages) != 1 {
		t.Errorf("failed turn persisted: %d messages", len(session.Messages))
	}
}

func TestHandleIncomingDeliveryFallback(t *testing.T) {
	env := newTestEnv("A long reply")
	env.messages.failSends = true

	if err := env.svc.HandleIncoming(context.Background(), payload("Hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(env.messages.sent) != 1 || env.messages.sent[0] != apologyText {
		t.Errorf("unexpected sends: %v", env.messages.sent)
	}

	session := env.fetchSession(t)
	if len(session.Messages) != 3 {
		t.Fatalf("persisted %d messages, want 3", len(session.Messages))
	}
	if session.Messages[2].Content != apologyText {
		t.Errorf("assistant turn = %q, want the delivered fallback", session.Messages[2].Content)
	}
}

func TestHandleIncomingMissingSender(t *testing.T) {
	env := newTestEnv("never used")

	if err := env.svc.HandleIncoming(context.Background(), url.Values{"Body": {"Hello"}}); err == nil {
		t.Fatal("expected error for payload without From")
	}
}
