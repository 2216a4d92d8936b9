package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

type fakeChatService struct {
	calls int
	err   error
	got   url.Values
}

func (f *fakeChatService) HandleIncoming(ctx context.Context, values url.Values) error {
	f.calls++
	f.got = values
	return f.err
}

type fakeValidator struct {
	authentic bool
}

func (f fakeValidator) IsAuthentic(r *http.Request) bool { return f.authentic }

func postForm(t *testing.T, handlerFn http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(http.MethodPost, "/whatsapp/reply", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	handlerFn(w, r)
	return w
}

func assertAck(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"ok"}` {
		t.Errorf("body = %q, want ack", got)
	}
}

func TestReply(t *testing.T) {
	svc := &fakeChatService{}
	h := NewWhatsApp(svc, fakeValidator{authentic: true})

	w := postForm(t, h.Reply, url.Values{"From": {"+1234567890"}, "Body": {"Hello"}})

	assertAck(t, w)
	if svc.calls != 1 {
		t.Fatalf("service calls = %d, want 1", svc.calls)
	}
	if svc.got.Get("Body") != "Hello" {
		t.Errorf("service got %v", svc.got)
	}
}

func TestReplyAcksOnServiceFailure(t *testing.T) {
	svc := &fakeChatService{err: errors.New("completion failed")}
	h := NewWhatsApp(svc, fakeValidator{authentic: true})

	w := postForm(t, h.Reply, url.Values{"From": {"+1234567890"}, "Body": {"Hello"}})

	assertAck(t, w)
}

func TestReplyRejectsInvalidSignature(t *testing.T) {
	svc := &fakeChatService{}
	h := NewWhatsApp(svc, fakeValidator{authentic: false})

	w := postForm(t, h.Reply, url.Values{"From": {"+1234567890"}, "Body": {"Hello"}})

	assertAck(t, w)
	if svc.calls != 0 {
		t.Errorf("service calls = %d, want 0 for unauthenticated request", svc.calls)
	}
}

func TestStatusIdempotent(t *testing.T) {
	svc := &fakeChatService{}
	h := NewWhatsApp(svc, fakeValidator{authentic: true})

	for i := 0; i < 3; i++ {
		w := postForm(t, h.Status, url.Values{"MessageSid": {"SM123"}, "MessageStatus": {"delivered"}})
		assertAck(t, w)
	}

	if svc.calls != 0 {
		t.Errorf("status webhook must not touch the chat service, got %d calls", svc.calls)
	}
}
