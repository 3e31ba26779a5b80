package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

const (
	defaultAPIBase     = "https://api.twitter.com"
	defaultHTTPTimeout = 15 * time.Second
	maxErrorBody       = 4 << 10
)

var (
	// ErrRateLimited is returned for HTTP 429 responses.
	ErrRateLimited = errors.New("twitter: rate limited")
	// ErrUnauthorized is returned when the token is missing, expired, or lacks scope.
	ErrUnauthorized = errors.New("twitter: unauthorized")
)

// APIError is a non-2xx response from the X API.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	ResetAt    time.Time
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("twitter: API error %d", e.StatusCode)
	if e.Title != "" {
		msg += ": " + e.Title
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}

// Client talks to the X API v2. Authentication is carried by the http.Client,
// usually one built by NewOAuth2HTTPClient.
type Client struct {
	apiBase    string
	httpClient *http.Client
	logger     *logging.Logger
}

type Option func(*Client)

// WithAPIBase overrides the API base URL (useful for testing).
func WithAPIBase(base string) Option {
	return func(c *Client) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			c.apiBase = base
		}
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	c := &Client{
		apiBase:    defaultAPIBase,
		httpClient: httpClient,
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/2/users/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return nil, fmt.Errorf("twitter: users/me returned no user")
	}
	return resp.Data, nil
}

// Mentions lists posts mentioning userID, newest first. sinceID may be empty.
func (c *Client) Mentions(ctx context.Context, userID, sinceID string, max int) ([]Mention, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clamp(max, 5, 100)))
	q.Set("expansions", "author_id")
	q.Set("tweet.fields", "created_at,conversation_id,author_id")
	q.Set("user.fields", "username")
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}

	var resp listResponse[apiTweet]
	if err := c.do(ctx, http.MethodGet, "/2/users/"+url.PathEscape(userID)+"/mentions", q, nil, &resp); err != nil {
		return nil, err
	}

	names := usernamesByID(resp.Includes)
	out := make([]Mention, 0, len(resp.Data))
	for _, t := range resp.Data {
		out = append(out, Mention{
			ID:             t.ID,
			AuthorID:       t.AuthorID,
			AuthorUsername: names[t.AuthorID],
			Text:           t.Text,
			ConversationID: t.ConversationID,
			CreatedAt:      t.CreatedAt,
		})
	}
	return out, nil
}

// DirectMessages lists recent message-create DM events, newest first.
func (c *Client) DirectMessages(ctx context.Context, max int) ([]DirectMessage, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(clamp(max, 1, 100)))
	q.Set("event_types", "MessageCreate")
	q.Set("dm_event.fields", "id,text,sender_id,created_at,dm_conversation_id,event_type")
	q.Set("expansions", "sender_id")
	q.Set("user.fields", "username")

	var resp listResponse[apiDMEvent]
	if err := c.do(ctx, http.MethodGet, "/2/dm_events", q, nil, &resp); err != nil {
		return nil, err
	}

	names := usernamesByID(resp.Includes)
	out := make([]DirectMessage, 0, len(resp.Data))
	for _, ev := range resp.Data {
		if ev.EventType != "" && ev.EventType != "MessageCreate" {
			continue
		}
		out = append(out, DirectMessage{
			ID:             ev.ID,
			SenderID:       ev.SenderID,
			SenderUsername: names[ev.SenderID],
			Text:           ev.Text,
			ConversationID: ev.DMConversationID,
			CreatedAt:      ev.CreatedAt,
		})
	}
	return out, nil
}

// Reply posts text as a reply to postID and returns the new post id.
func (c *Client) Reply(ctx context.Context, postID, text string) (string, error) {
	req := createTweetRequest{Text: text}
	if postID != "" {
		req.Reply = &createTweetParent{InReplyToTweetID: postID}
	}
	var resp createTweetResponse
	if err := c.do(ctx, http.MethodPost, "/2/tweets", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Data.ID, nil
}

// SendDirectMessage sends text to the one-to-one conversation with userID.
func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) (string, error) {
	var resp sendDMResponse
	path := "/2/dm_conversations/with/" + url.PathEscape(userID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, nil, sendDMRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.Data.DMEventID, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.apiBase + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("twitter: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("twitter: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("twitter: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("twitter: decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) apiError(resp *http.Response, path string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var problem struct {
		apiProblem
		Errors []apiProblem `json:"errors"`
	}
	if json.Unmarshal(raw, &problem) == nil {
		apiErr.Title, apiErr.Detail = problem.Title, problem.Detail
		if apiErr.Title == "" && len(problem.Errors) > 0 {
			apiErr.Title, apiErr.Detail = problem.Errors[0].Title, problem.Errors[0].Detail
		}
	}
	if apiErr.Title == "" && apiErr.Detail == "" {
		apiErr.Detail = strings.TrimSpace(string(raw))
	}
	if reset := resp.Header.Get("x-rate-limit-reset"); reset != "" {
		if sec, err := strconv.ParseInt(reset, 10, 64); err == nil {
			apiErr.ResetAt = time.Unix(sec, 0).UTC()
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("twitter rate limit hit", "path", path, "reset_at", apiErr.ResetAt)
	}
	return apiErr
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CompareIDs orders snowflake ids numerically without parsing them.
func CompareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
