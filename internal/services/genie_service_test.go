package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"nycdemo-backend/internal/databricks"

	"github.com/stretchr/testify/require"
)

// pollResult is one scripted answer from the fake message endpoint.
type pollResult struct {
	msg *databricks.Message
	err error
}

// fakeGenieAPI scripts the Genie API and records every call it receives.
type fakeGenieAPI struct {
	startConv  databricks.Conversation
	startErr   error
	startCalls int

	polls     []pollResult
	pollCalls int

	resultSet   *databricks.ResultSet
	resultErr   error
	resultCalls []string
}

func (f *fakeGenieAPI) StartConversation(_ context.Context, _, _ string) (databricks.Conversation, error) {
	f.startCalls++
	if f.startErr != nil {
		return databricks.Conversation{}, f.startErr
	}
	return f.startConv, nil
}

func (f *fakeGenieAPI) GetMessage(_ context.Context, _, _, _ string) (*databricks.Message, error) {
	idx := f.pollCalls
	f.pollCalls++
	if idx >= len(f.polls) {
		idx = len(f.polls) - 1
	}
	r := f.polls[idx]
	return r.msg, r.err
}

func (f *fakeGenieAPI) GetQueryResult(_ context.Context, _, _, _, attachmentID string) (*databricks.ResultSet, error) {
	f.resultCalls = append(f.resultCalls, attachmentID)
	if f.resultErr != nil {
		return nil, f.resultErr
	}
	return f.resultSet, nil
}

// fakeTokens is a TokenGetter stub.
type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) Token(_ context.Context) (string, error) {
	f.calls++
	return f.token, f.err
}

// recordingSleep captures the delay sequence without actually sleeping.
type recordingSleep struct {
	delays []time.Duration
}

func (s *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestService(genie *fakeGenieAPI, tokens *fakeTokens) (*GenieService, *recordingSleep) {
	sleeper := &recordingSleep{}
	svc := NewGenieService(genie, tokens, WithSleep(sleeper.sleep))
	return svc, sleeper
}

func pendingMessage() *databricks.Message {
	return &databricks.Message{Status: "PENDING"}
}

func completedMessage(attachments ...databricks.Attachment) *databricks.Message {
	return &databricks.Message{Status: databricks.MessageStatusCompleted, Attachments: attachments}
}

func textAttachment(id, content string) databricks.Attachment {
	return databricks.Attachment{Kind: databricks.AttachmentText, ID: id, Text: content}
}

func queryAttachment(id, query string) databricks.Attachment {
	return databricks.Attachment{Kind: databricks.AttachmentQuery, ID: id, Query: query}
}

func TestAsk_ShortQuestionMakesNoOutboundCalls(t *testing.T) {
	for _, question := range []string{"", "ab", "  ab  ", " \t "} {
		genie := &fakeGenieAPI{}
		tokens := &fakeTokens{token: "tok"}
		svc, sleeper := newTestService(genie, tokens)

		_, err := svc.Ask(context.Background(), question)
		require.ErrorIs(t, err, ErrQuestionTooShort, "question=%q", question)
		require.Zero(t, tokens.calls)
		require.Zero(t, genie.startCalls)
		require.Zero(t, genie.pollCalls)
		require.Empty(t, sleeper.delays)
	}
}

func TestAsk_CompletesAfterTwoPolls(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls: []pollResult{
			{msg: pendingMessage()},
			{msg: completedMessage(textAttachment("a1", "42 registrations"))},
		},
	}
	tokens := &fakeTokens{token: "tok"}
	svc, sleeper := newTestService(genie, tokens)

	resp, err := svc.Ask(context.Background(), "How many total registrations?")
	require.NoError(t, err)

	require.NotNil(t, resp.Answer)
	require.Equal(t, "42 registrations", *resp.Answer)
	require.Nil(t, resp.SQL)
	require.Equal(t, []string{}, resp.Columns)
	require.Equal(t, [][]any{}, resp.Rows)
	require.Equal(t, []string{}, resp.SuggestedQuestions)
	require.Equal(t, "c1", resp.ConversationID)
	require.Equal(t, "m1", resp.MessageID)

	require.Equal(t, 2, genie.pollCalls)
	require.Equal(t, []time.Duration{1000 * time.Millisecond, 1500 * time.Millisecond}, sleeper.delays)
	require.Empty(t, genie.resultCalls, "no query attachment, no result fetch")
}

func TestAsk_DelaySequenceAndTimeout(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls:     []pollResult{{msg: pendingMessage()}},
	}
	svc, sleeper := newTestService(genie, &fakeTokens{token: "tok"})

	_, err := svc.Ask(context.Background(), "still running?")
	require.ErrorIs(t, err, ErrGenieTimeout)

	require.Equal(t, 30, genie.pollCalls)
	require.Len(t, sleeper.delays, 30)
	for i, d := range sleeper.delays {
		want := time.Duration(1000+500*i) * time.Millisecond
		if want > 3000*time.Millisecond {
			want = 3000 * time.Millisecond
		}
		require.Equal(t, want, d, "delay before poll %d", i)
	}
}

func TestAsk_EveryPollFailsStillExhaustsBudget(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls:     []pollResult{{err: fmt.Errorf("upstream hiccup")}},
	}
	svc, _ := newTestService(genie, &fakeTokens{token: "tok"})

	_, err := svc.Ask(context.Background(), "anyone home?")
	require.ErrorIs(t, err, ErrGenieTimeout)
	require.Equal(t, 30, genie.pollCalls, "failed polls consume iterations but never abort")
}

func TestAsk_FailedPollThenCompletion(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls: []pollResult{
			{err: fmt.Errorf("502 from upstream")},
			{msg: completedMessage(textAttachment("a1", "done"))},
		},
	}
	svc, _ := newTestService(genie, &fakeTokens{token: "tok"})

	resp, err := svc.Ask(context.Background(), "transient blip")
	require.NoError(t, err)
	require.Equal(t, "done", *resp.Answer)
	require.Equal(t, 2, genie.pollCalls)
}

func TestAsk_TerminalFailure(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls:     []pollResult{{msg: &databricks.Message{Status: databricks.MessageStatusFailed}}},
	}
	svc, _ := newTestService(genie, &fakeTokens{token: "tok"})

	_, err := svc.Ask(context.Background(), "doomed question")
	require.ErrorIs(t, err, ErrGenieFailed)
	require.Equal(t, 1, genie.pollCalls)
}

func TestAsk_LastQueryAttachmentWins(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls: []pollResult{{msg: completedMessage(
			queryAttachment("a1", "SELECT 1"),
			textAttachment("t1", "hello"),
			queryAttachment("a2", "SELECT 2"),
		)}},
		resultSet: &databricks.ResultSet{Columns: []string{"n"}, Rows: [][]any{{"2"}}},
	}
	svc, _ := newTestService(genie, &fakeTokens{token: "tok"})

	resp, err := svc.Ask(context.Background(), "which query?")
	require.NoError(t, err)
	require.Equal(t, "hello", *resp.Answer)
	require.Equal(t, "SELECT 2", *resp.SQL)
	require.Equal(t, []string{"a2"}, genie.resultCalls, "the last query attachment's id must be fetched")
	require.Equal(t, []string{"n"}, resp.Columns)
	require.Equal(t, [][]any{{"2"}}, resp.Rows)
}

func TestAsk_SuggestedQuestionsTruncatedToThree(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls: []pollResult{{msg: completedMessage(
			databricks.Attachment{
				Kind:      databricks.AttachmentSuggestedQuestions,
				ID:        "s1",
				Questions: []string{"q1", "q2", "q3", "q4", "q5"},
			},
		)}},
	}
	svc, _ := newTestService(genie, &fakeTokens{token: "tok"})

	resp, err := svc.Ask(context.Background(), "what next?")
	require.NoError(t, err)
	require.Equal(t, []string{"q1", "q2", "q3"}, resp.SuggestedQuestions)
}

func TestAsk_ResultFetchFailureDegradesToEmptyTable(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls: []pollResult{{msg: completedMessage(
			textAttachment("t1", "the answer"),
			queryAttachment("a1", "SELECT x"),
		)}},
		resultErr: fmt.Errorf("result store unavailable"),
	}
	svc, _ := newTestService(genie, &fakeTokens{token: "tok"})

	resp, err := svc.Ask(context.Background(), "show me the data")
	require.NoError(t, err, "the textual answer must survive a result-set failure")
	require.Equal(t, "the answer", *resp.Answer)
	require.Equal(t, "SELECT x", *resp.SQL)
	require.Equal(t, []string{}, resp.Columns)
	require.Equal(t, [][]any{}, resp.Rows)
}

func TestAsk_StartFailurePropagates(t *testing.T) {
	genie := &fakeGenieAPI{
		startErr: fmt.Errorf("%w: 403", databricks.ErrConversationStartFailed),
	}
	svc, sleeper := newTestService(genie, &fakeTokens{token: "tok"})

	_, err := svc.Ask(context.Background(), "a valid question")
	require.ErrorIs(t, err, databricks.ErrConversationStartFailed)
	require.Zero(t, genie.pollCalls)
	require.Empty(t, sleeper.delays)
}

func TestAsk_TokenFailurePropagates(t *testing.T) {
	genie := &fakeGenieAPI{}
	tokens := &fakeTokens{err: fmt.Errorf("%w: refresh rejected", databricks.ErrCredentialUnavailable)}
	svc, _ := newTestService(genie, tokens)

	_, err := svc.Ask(context.Background(), "a valid question")
	require.ErrorIs(t, err, databricks.ErrCredentialUnavailable)
	require.Zero(t, genie.startCalls)
}

func TestAsk_SleepErrorAborts(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls:     []pollResult{{msg: pendingMessage()}},
	}
	svc := NewGenieService(genie, &fakeTokens{token: "tok"},
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			return context.Canceled
		}))

	_, err := svc.Ask(context.Background(), "cancelled mid-wait")
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, genie.pollCalls)
}

func TestPollPolicyDelay(t *testing.T) {
	p := DefaultPollPolicy()
	require.Equal(t, 1000*time.Millisecond, p.Delay(0))
	require.Equal(t, 1500*time.Millisecond, p.Delay(1))
	require.Equal(t, 3000*time.Millisecond, p.Delay(4))
	require.Equal(t, 3000*time.Millisecond, p.Delay(29))
}

func TestAsk_CustomPollPolicy(t *testing.T) {
	genie := &fakeGenieAPI{
		startConv: databricks.Conversation{ConversationID: "c1", MessageID: "m1"},
		polls:     []pollResult{{msg: pendingMessage()}},
	}
	sleeper := &recordingSleep{}
	svc := NewGenieService(genie, &fakeTokens{token: "tok"},
		WithSleep(sleeper.sleep),
		WithPollPolicy(PollPolicy{MaxPolls: 3, BaseDelay: time.Millisecond, DelayStep: time.Millisecond, MaxDelay: 2 * time.Millisecond}))

	_, err := svc.Ask(context.Background(), "tiny budget")
	require.ErrorIs(t, err, ErrGenieTimeout)
	require.Equal(t, 3, genie.pollCalls)
	require.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 2 * time.Millisecond}, sleeper.delays)
}
