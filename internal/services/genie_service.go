package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"nycdemo-backend/internal/databricks"
	"nycdemo-backend/internal/models"
)

const minQuestionLength = 3

var (
	// ErrQuestionTooShort is returned before any outbound call is made.
	ErrQuestionTooShort = errors.New("question is required (min 3 chars)")
	// ErrGenieTimeout is returned when the poll budget is exhausted without a
	// terminal status.
	ErrGenieTimeout = errors.New("genie query timed out")
	// ErrGenieFailed is returned when the message reaches FAILED upstream.
	ErrGenieFailed = errors.New("genie query failed")
)

// GenieAPI is the slice of the Genie client the service depends on.
type GenieAPI interface {
	StartConversation(ctx context.Context, token, question string) (databricks.Conversation, error)
	GetMessage(ctx context.Context, token, conversationID, messageID string) (*databricks.Message, error)
	GetQueryResult(ctx context.Context, token, conversationID, messageID, attachmentID string) (*databricks.ResultSet, error)
}

// TokenGetter yields a bearer token for outbound calls.
type TokenGetter interface {
	Token(ctx context.Context) (string, error)
}

// PollPolicy bounds the completion poll loop. The delay before poll i is
// min(BaseDelay + i*DelayStep, MaxDelay), applied before every poll including
// the first.
type PollPolicy struct {
	MaxPolls  int
	BaseDelay time.Duration
	DelayStep time.Duration
	MaxDelay  time.Duration
}

// DefaultPollPolicy bounds the wait at roughly 90 seconds of sleep.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		MaxPolls:  30,
		BaseDelay: 1000 * time.Millisecond,
		DelayStep: 500 * time.Millisecond,
		MaxDelay:  3000 * time.Millisecond,
	}
}

// Delay returns the sleep before the i-th poll (zero-based).
func (p PollPolicy) Delay(i int) time.Duration {
	d := p.BaseDelay + time.Duration(i)*p.DelayStep
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// SleepFunc suspends for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GenieService runs the ask flow: validate, start a conversation, poll the
// message until terminal, extract attachments, and optionally fetch the
// referenced result set.
type GenieService struct {
	genie  GenieAPI
	tokens TokenGetter
	policy PollPolicy
	sleep  SleepFunc
}

type GenieServiceOption func(*GenieService)

func WithPollPolicy(policy PollPolicy) GenieServiceOption {
	return func(s *GenieService) {
		s.policy = policy
	}
}

func WithSleep(sleep SleepFunc) GenieServiceOption {
	return func(s *GenieService) {
		s.sleep = sleep
	}
}

func NewGenieService(genie GenieAPI, tokens TokenGetter, opts ...GenieServiceOption) *GenieService {
	s := &GenieService{
		genie:  genie,
		tokens: tokens,
		policy: DefaultPollPolicy(),
		sleep:  defaultSleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// extracted is the projection of one completed message's attachments. For
// repeated attachments of the same kind, the last one encountered wins.
type extracted struct {
	answer             *string
	sql                *string
	resultRef          string
	suggestedQuestions []string
}

// Ask answers one natural-language question. The returned response is derived
// from exactly one completed message snapshot plus at most one result-set
// fetch.
func (s *GenieService) Ask(ctx context.Context, question string) (*models.AskResponse, error) {
	question = strings.TrimSpace(question)
	if len(question) < minQuestionLength {
		return nil, ErrQuestionTooShort
	}

	// One token for the whole exchange; the poll window is well inside the
	// token safety margin.
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	conv, err := s.genie.StartConversation(ctx, token, question)
	if err != nil {
		log.Printf("ERROR [GenieService] Start conversation: %v", err)
		return nil, err
	}

	msg, err := s.pollUntilDone(ctx, token, conv)
	if err != nil {
		return nil, err
	}

	ext := extractAttachments(msg.Attachments)

	columns := []string{}
	rows := [][]any{}
	if ext.resultRef != "" {
		// Tabular data is best-effort: the textual answer is still
		// deliverable when the result fetch fails.
		rs, err := s.genie.GetQueryResult(ctx, token, conv.ConversationID, conv.MessageID, ext.resultRef)
		if err != nil {
			log.Printf("WARN [GenieService] Query result fetch failed for attachment %s: %v", ext.resultRef, err)
		} else {
			columns = rs.Columns
			rows = rs.Rows
		}
	}

	suggested := ext.suggestedQuestions
	if len(suggested) > 3 {
		suggested = suggested[:3]
	}
	if suggested == nil {
		suggested = []string{}
	}

	return &models.AskResponse{
		Answer:             ext.answer,
		SQL:                ext.sql,
		Columns:            columns,
		Rows:               rows,
		SuggestedQuestions: suggested,
		ConversationID:     conv.ConversationID,
		MessageID:          conv.MessageID,
	}, nil
}

// pollUntilDone polls the message snapshot until a terminal status or the
// budget runs out. A failed fetch consumes an iteration and the loop carries
// on: transient upstream hiccups while the statement executes are expected.
func (s *GenieService) pollUntilDone(ctx context.Context, token string, conv databricks.Conversation) (*databricks.Message, error) {
	var msg *databricks.Message

	for i := 0; i < s.policy.MaxPolls; i++ {
		if err := s.sleep(ctx, s.policy.Delay(i)); err != nil {
			return nil, err
		}

		snapshot, err := s.genie.GetMessage(ctx, token, conv.ConversationID, conv.MessageID)
		if err != nil {
			log.Printf("WARN [GenieService] Poll %d/%d failed: %v", i+1, s.policy.MaxPolls, err)
			continue
		}

		msg = snapshot
		if msg.Status.Terminal() {
			break
		}
	}

	if msg == nil || !msg.Status.Terminal() {
		return nil, ErrGenieTimeout
	}
	if msg.Status == databricks.MessageStatusFailed {
		return nil, ErrGenieFailed
	}
	return msg, nil
}

// extractAttachments walks the attachment list once, in order. Unknown shapes
// are skipped; suggested questions replace, never accumulate.
func extractAttachments(attachments []databricks.Attachment) extracted {
	var ext extracted
	for _, a := range attachments {
		switch a.Kind {
		case databricks.AttachmentText:
			text := a.Text
			ext.answer = &text
		case databricks.AttachmentQuery:
			query := a.Query
			ext.sql = &query
			ext.resultRef = a.ID
		case databricks.AttachmentSuggestedQuestions:
			ext.suggestedQuestions = a.Questions
		}
	}
	return ext
}
