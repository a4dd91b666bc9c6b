package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nycdemo-backend/internal/databricks"
	"nycdemo-backend/internal/services"

	"github.com/stretchr/testify/require"
)

// stubGenieAPI drives the genie service toward one scripted outcome.
type stubGenieAPI struct {
	startErr error
	message  *databricks.Message
	msgErr   error
}

func (s *stubGenieAPI) StartConversation(_ context.Context, _, _ string) (databricks.Conversation, error) {
	if s.startErr != nil {
		return databricks.Conversation{}, s.startErr
	}
	return databricks.Conversation{ConversationID: "c1", MessageID: "m1"}, nil
}

func (s *stubGenieAPI) GetMessage(_ context.Context, _, _, _ string) (*databricks.Message, error) {
	return s.message, s.msgErr
}

func (s *stubGenieAPI) GetQueryResult(_ context.Context, _, _, _, _ string) (*databricks.ResultSet, error) {
	return &databricks.ResultSet{Columns: []string{}, Rows: [][]any{}}, nil
}

type stubTokens struct {
	err error
}

func (s *stubTokens) Token(_ context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "tok", nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newGenieHandler(genie *stubGenieAPI, tokens *stubTokens) *GenieHandlers {
	svc := services.NewGenieService(genie, tokens,
		services.WithSleep(noSleep),
		services.WithPollPolicy(services.PollPolicy{
			MaxPolls:  2,
			BaseDelay: time.Millisecond,
			DelayStep: time.Millisecond,
			MaxDelay:  time.Millisecond,
		}))
	return NewGenieHandlers(svc)
}

func askRequest(body string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodPost, "/genie/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return httptest.NewRecorder(), req
}

func TestHandleAsk_Success(t *testing.T) {
	genie := &stubGenieAPI{
		message: &databricks.Message{
			Status: databricks.MessageStatusCompleted,
			Attachments: []databricks.Attachment{
				{Kind: databricks.AttachmentText, ID: "a1", Text: "There are 42 registrations."},
			},
		},
	}
	handler := newGenieHandler(genie, &stubTokens{})

	rec, req := askRequest(`{"question":"How many registrations?"}`)
	handler.HandleAsk(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{
		"answer": "There are 42 registrations.",
		"sql": null,
		"columns": [],
		"rows": [],
		"suggested_questions": [],
		"conversation_id": "c1",
		"message_id": "m1"
	}`, rec.Body.String())
}

func TestHandleAsk_ShortQuestion(t *testing.T) {
	handler := newGenieHandler(&stubGenieAPI{}, &stubTokens{})

	rec, req := askRequest(`{"question":"  ab "}`)
	handler.HandleAsk(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"question is required (min 3 chars)"}`, rec.Body.String())
}

func TestHandleAsk_MalformedBody(t *testing.T) {
	handler := newGenieHandler(&stubGenieAPI{}, &stubTokens{})

	rec, req := askRequest(`{"question":`)
	handler.HandleAsk(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAsk_CredentialsUnavailable(t *testing.T) {
	tokens := &stubTokens{err: fmt.Errorf("%w: refresh rejected", databricks.ErrCredentialUnavailable)}
	handler := newGenieHandler(&stubGenieAPI{}, tokens)

	rec, req := askRequest(`{"question":"a valid question"}`)
	handler.HandleAsk(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"error":"Genie credentials unavailable"}`, rec.Body.String())
}

func TestHandleAsk_StartFailed(t *testing.T) {
	genie := &stubGenieAPI{startErr: fmt.Errorf("%w: 403 forbidden", databricks.ErrConversationStartFailed)}
	handler := newGenieHandler(genie, &stubTokens{})

	rec, req := askRequest(`{"question":"a valid question"}`)
	handler.HandleAsk(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.JSONEq(t, `{"error":"Failed to start Genie conversation"}`, rec.Body.String())
}

func TestHandleAsk_Timeout(t *testing.T) {
	genie := &stubGenieAPI{message: &databricks.Message{Status: "EXECUTING_QUERY"}}
	handler := newGenieHandler(genie, &stubTokens{})

	rec, req := askRequest(`{"question":"a valid question"}`)
	handler.HandleAsk(rec, req)

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	require.JSONEq(t, `{"error":"Genie query timed out"}`, rec.Body.String())
}

func TestHandleAsk_UpstreamFailure(t *testing.T) {
	genie := &stubGenieAPI{message: &databricks.Message{Status: databricks.MessageStatusFailed}}
	handler := newGenieHandler(genie, &stubTokens{})

	rec, req := askRequest(`{"question":"a valid question"}`)
	handler.HandleAsk(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.JSONEq(t, `{"error":"Genie query failed"}`, rec.Body.String())
}
