package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"denguespot-chat/internal/auth"
	"denguespot-chat/internal/service"
	"denguespot-chat/internal/testutil"
)

type mockAsker struct {
	askFunc func(ctx context.Context, sessionID, question string) (string, error)
}

func (m *mockAsker) AskAssistant(ctx context.Context, sessionID, question string) (string, error) {
	if m.askFunc != nil {
		return m.askFunc(ctx, sessionID, question)
	}
	return "Remove standing water weekly.", nil
}

func newAssistantFixture(t *testing.T, asker AssistantAsker) (*AssistantHandler, *auth.TokenIssuer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if asker == nil {
		asker = &mockAsker{}
	}
	issuer := auth.NewTokenIssuer("test-secret")
	return NewAssistantHandler(asker, service.NewGuestThrottle(ctx), issuer), issuer
}

func TestAssistant_Success(t *testing.T) {
	h, _ := newAssistantFixture(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/assistant", AssistantRequest{
		Message:   "How do I prevent dengue?",
		SessionID: "session-1",
	})
	w := httptest.NewRecorder()
	h.Ask(w, req)

	testutil.AssertJSONContains(t, w, "response", "Remove standing water weekly.")
}

func TestAssistant_MissingFields(t *testing.T) {
	h, _ := newAssistantFixture(t, nil)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/assistant", AssistantRequest{
		Message: "hello",
	})
	w := httptest.NewRecorder()
	h.Ask(w, req)

	testutil.AssertStatusCode(t, w, http.StatusBadRequest)
}

func TestAssistant_GuestLimit(t *testing.T) {
	h, _ := newAssistantFixture(t, nil)

	for i := 0; i < service.GuestRequestLimit; i++ {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/assistant", AssistantRequest{
			Message:   "question",
			SessionID: "session-1",
		})
		w := httptest.NewRecorder()
		h.Ask(w, req)
		testutil.AssertStatusCode(t, w, http.StatusOK)
	}

	req := testutil.NewJSONRequest(t, http.MethodPost, "/assistant", AssistantRequest{
		Message:   "one more",
		SessionID: "session-1",
	})
	w := httptest.NewRecorder()
	h.Ask(w, req)

	testutil.AssertJSONContains(t, w, "limited", true)
	testutil.AssertJSONContains(t, w, "response", guestLimitMessage)
}

func TestAssistant_AuthenticatedBypassesLimit(t *testing.T) {
	h, issuer := newAssistantFixture(t, nil)

	user := testutil.NewTestUser()
	token, err := issuer.Issue(user)
	testutil.AssertNoError(t, err)

	for i := 0; i < service.GuestRequestLimit+2; i++ {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/assistant", AssistantRequest{
			Message:   "question",
			SessionID: "session-1",
		})
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		h.Ask(w, req)

		testutil.AssertJSONContains(t, w, "response", "Remove standing water weekly.")
	}
}

func TestAssistant_BotUnavailable(t *testing.T) {
	asker := &mockAsker{askFunc: func(ctx context.Context, sessionID, question string) (string, error) {
		return "", errors.New("no reply")
	}}
	h, _ := newAssistantFixture(t, asker)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/assistant", AssistantRequest{
		Message:   "question",
		SessionID: "session-1",
	})
	w := httptest.NewRecorder()
	h.Ask(w, req)

	testutil.AssertStatusCode(t, w, http.StatusBadGateway)
}
