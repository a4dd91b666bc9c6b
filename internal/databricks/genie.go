package databricks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrConversationStartFailed is returned when the start-conversation call is
// rejected upstream.
var ErrConversationStartFailed = errors.New("genie: conversation start failed")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("databricks: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// MessageStatus is the lifecycle state reported by the Genie message endpoint.
// Values other than the two terminal ones are intermediate and polled through.
type MessageStatus string

const (
	MessageStatusCompleted MessageStatus = "COMPLETED"
	MessageStatusFailed    MessageStatus = "FAILED"
)

// Terminal reports whether polling should stop at this status.
func (s MessageStatus) Terminal() bool {
	return s == MessageStatusCompleted || s == MessageStatusFailed
}

// AttachmentKind discriminates the decoded attachment union.
type AttachmentKind int

const (
	AttachmentUnknown AttachmentKind = iota
	AttachmentText
	AttachmentQuery
	AttachmentSuggestedQuestions
)

// Attachment is one unit of structured Genie output, classified into exactly
// one kind at decode time. Only the fields for its kind are populated.
type Attachment struct {
	Kind      AttachmentKind
	ID        string
	Text      string   // AttachmentText
	Query     string   // AttachmentQuery
	Questions []string // AttachmentSuggestedQuestions
}

// Message is one snapshot of a Genie message, as mutated by the service.
type Message struct {
	Status      MessageStatus
	Attachments []Attachment
}

// Conversation identifies one question-to-answer exchange.
type Conversation struct {
	ConversationID string
	MessageID      string
}

// ResultSet holds the tabular output of a generated query. Cell values are
// untyped at this layer; stringification is a presentation concern.
type ResultSet struct {
	Columns []string
	Rows    [][]any
}

// GenieClient calls the Genie conversational-query REST API for one space.
type GenieClient struct {
	baseURL    string
	spaceID    string
	httpClient *http.Client
}

type GenieOption func(*GenieClient)

func WithGenieHTTPClient(httpClient *http.Client) GenieOption {
	return func(c *GenieClient) {
		c.httpClient = httpClient
	}
}

func NewGenieClient(workspaceURL, spaceID string, opts ...GenieOption) *GenieClient {
	c := &GenieClient{
		baseURL:    strings.TrimRight(workspaceURL, "/"),
		spaceID:    spaceID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GenieClient) spaceURL() string {
	return fmt.Sprintf("%s/api/2.0/genie/spaces/%s", c.baseURL, c.spaceID)
}

// StartConversation submits a question and returns the conversation/message
// identifier pair for the unit of work it created.
func (c *GenieClient) StartConversation(ctx context.Context, token, question string) (Conversation, error) {
	body, err := json.Marshal(map[string]string{"content": question})
	if err != nil {
		return Conversation{}, fmt.Errorf("genie: marshal request: %w", err)
	}

	endpoint := c.spaceURL() + "/start-conversation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Conversation{}, fmt.Errorf("genie: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	raw, err := c.doJSONRequest(req, endpoint)
	if err != nil {
		return Conversation{}, fmt.Errorf("%w: %v", ErrConversationStartFailed, err)
	}

	var payload struct {
		ConversationID string `json:"conversation_id"`
		MessageID      string `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Conversation{}, fmt.Errorf("%w: decode response: %v", ErrConversationStartFailed, err)
	}
	if payload.ConversationID == "" || payload.MessageID == "" {
		return Conversation{}, fmt.Errorf("%w: response missing identifiers", ErrConversationStartFailed)
	}

	return Conversation{ConversationID: payload.ConversationID, MessageID: payload.MessageID}, nil
}

// rawAttachment is the wire shape of one attachment. Which optional field is
// present determines the kind; shapes with none of them decode as Unknown.
type rawAttachment struct {
	AttachmentID string `json:"attachment_id"`
	Text         *struct {
		Content string `json:"content"`
	} `json:"text"`
	Query *struct {
		Query string `json:"query"`
	} `json:"query"`
	SuggestedQuestions *struct {
		Questions []string `json:"questions"`
	} `json:"suggested_questions"`
}

type rawMessage struct {
	Status      string          `json:"status"`
	Attachments []rawAttachment `json:"attachments"`
}

// GetMessage fetches the current snapshot of a message, decoding its
// attachments into the tagged union.
func (c *GenieClient) GetMessage(ctx context.Context, token, conversationID, messageID string) (*Message, error) {
	endpoint := fmt.Sprintf("%s/conversations/%s/messages/%s", c.spaceURL(), conversationID, messageID)
	raw, err := c.getJSON(ctx, token, endpoint)
	if err != nil {
		return nil, err
	}

	var payload rawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("genie: decode message: %w", err)
	}

	msg := &Message{
		Status:      MessageStatus(payload.Status),
		Attachments: make([]Attachment, 0, len(payload.Attachments)),
	}
	for _, a := range payload.Attachments {
		msg.Attachments = append(msg.Attachments, classifyAttachment(a))
	}
	return msg, nil
}

// classifyAttachment maps a raw attachment to exactly one kind.
func classifyAttachment(a rawAttachment) Attachment {
	switch {
	case a.Text != nil:
		return Attachment{Kind: AttachmentText, ID: a.AttachmentID, Text: a.Text.Content}
	case a.Query != nil:
		return Attachment{Kind: AttachmentQuery, ID: a.AttachmentID, Query: a.Query.Query}
	case a.SuggestedQuestions != nil:
		return Attachment{Kind: AttachmentSuggestedQuestions, ID: a.AttachmentID, Questions: a.SuggestedQuestions.Questions}
	default:
		return Attachment{Kind: AttachmentUnknown, ID: a.AttachmentID}
	}
}

// queryResultResponse mirrors the statement-execution envelope the query-result
// endpoint wraps its data in.
type queryResultResponse struct {
	StatementResponse struct {
		Manifest struct {
			Schema struct {
				Columns []struct {
					Name string `json:"name"`
				} `json:"columns"`
			} `json:"schema"`
		} `json:"manifest"`
		Result struct {
			DataArray [][]any `json:"data_array"`
		} `json:"result"`
	} `json:"statement_response"`
}

// GetQueryResult retrieves the tabular output referenced by a query attachment.
func (c *GenieClient) GetQueryResult(ctx context.Context, token, conversationID, messageID, attachmentID string) (*ResultSet, error) {
	endpoint := fmt.Sprintf("%s/conversations/%s/messages/%s/query-result/%s", c.spaceURL(), conversationID, messageID, attachmentID)
	raw, err := c.getJSON(ctx, token, endpoint)
	if err != nil {
		return nil, err
	}

	var payload queryResultResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("genie: decode query result: %w", err)
	}

	rs := &ResultSet{
		Columns: make([]string, 0, len(payload.StatementResponse.Manifest.Schema.Columns)),
		Rows:    payload.StatementResponse.Result.DataArray,
	}
	for _, col := range payload.StatementResponse.Manifest.Schema.Columns {
		rs.Columns = append(rs.Columns, col.Name)
	}
	if rs.Rows == nil {
		rs.Rows = [][]any{}
	}
	return rs, nil
}

func (c *GenieClient) getJSON(ctx context.Context, token, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("genie: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.doJSONRequest(req, endpoint)
}

func (c *GenieClient) doJSONRequest(req *http.Request, endpoint string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: endpoint, Body: string(buf)}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
