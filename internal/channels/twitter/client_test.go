package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.Client(), WithAPIBase(srv.URL), WithLogger(logging.Discard()))
}

func TestMe(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"42","username":"MudrexSupport","name":"Mudrex Support"}}`))
	})

	me, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", me.ID)
	assert.Equal(t, "MudrexSupport", me.Username)
}

func TestMentions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/42/mentions", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("since_id"))
		assert.Equal(t, "5", r.URL.Query().Get("max_results"))
		assert.Equal(t, "author_id", r.URL.Query().Get("expansions"))
		_, _ = w.Write([]byte(`{
			"data":[
				{"id":"102","text":"@MudrexSupport still waiting","author_id":"7","conversation_id":"102","created_at":"2025-03-01T10:05:00.000Z"},
				{"id":"101","text":"@MudrexSupport withdrawal stuck","author_id":"8","created_at":"2025-03-01T10:00:00.000Z"}
			],
			"includes":{"users":[{"id":"7","username":"alice"},{"id":"8","username":"bob"}]},
			"meta":{"result_count":2,"newest_id":"102","oldest_id":"101"}
		}`))
	})

	mentions, err := client.Mentions(context.Background(), "42", "100", 1)
	require.NoError(t, err)
	require.Len(t, mentions, 2)
	assert.Equal(t, "alice", mentions[0].AuthorUsername)
	assert.Equal(t, "https://twitter.com/alice/status/102", mentions[0].URL())
	assert.Equal(t, "bob", mentions[1].AuthorUsername)
	assert.Equal(t, 2025, mentions[1].CreatedAt.Year())
}

func TestMentionsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("since_id"))
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	})
	mentions, err := client.Mentions(context.Background(), "42", "", 20)
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestDirectMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/dm_events", r.URL.Path)
		assert.Equal(t, "MessageCreate", r.URL.Query().Get("event_types"))
		_, _ = w.Write([]byte(`{
			"data":[
				{"id":"900","event_type":"MessageCreate","text":"#12345","sender_id":"7","dm_conversation_id":"7-42","created_at":"2025-03-01T11:00:00.000Z"},
				{"id":"899","event_type":"ParticipantsJoin","sender_id":"7"}
			],
			"includes":{"users":[{"id":"7","username":"alice"}]}
		}`))
	})

	dms, err := client.DirectMessages(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, dms, 1)
	assert.Equal(t, DirectMessage{
		ID:             "900",
		SenderID:       "7",
		SenderUsername: "alice",
		Text:           "#12345",
		ConversationID: "7-42",
		CreatedAt:      dms[0].CreatedAt,
	}, dms[0])
}

func TestReply(t *testing.T) {
	var got createTweetRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"555","text":"ok"}}`))
	})

	id, err := client.Reply(context.Background(), "101", "We hear you.")
	require.NoError(t, err)
	assert.Equal(t, "555", id)
	assert.Equal(t, "We hear you.", got.Text)
	require.NotNil(t, got.Reply)
	assert.Equal(t, "101", got.Reply.InReplyToTweetID)
}

func TestSendDirectMessage(t *testing.T) {
	var got sendDMRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/dm_conversations/with/7/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"dm_conversation_id":"7-42","dm_event_id":"901"}}`))
	})

	id, err := client.SendDirectMessage(context.Background(), "7", "Escalated!")
	require.NoError(t, err)
	assert.Equal(t, "901", id)
	assert.Equal(t, "Escalated!", got.Text)
}

func TestRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", "1740823200")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title":"Too Many Requests","detail":"Too Many Requests","type":"about:blank","status":429}`))
	})

	_, err := client.Mentions(context.Background(), "42", "", 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrUnauthorized))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, int64(1740823200), apiErr.ResetAt.Unix())
	assert.Contains(t, apiErr.Error(), "Too Many Requests")
}

func TestUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"title":"Unauthorized","detail":"token expired"}]}`))
	})

	_, err := client.Me(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "token expired")
}

func TestCompareIDs(t *testing.T) {
	assert.Equal(t, -1, CompareIDs("99", "100"))
	assert.Equal(t, 1, CompareIDs("1000000000000000002", "1000000000000000001"))
	assert.Equal(t, 0, CompareIDs("5", "5"))
}

func TestOAuth2HTTPClientAddsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":{"id":"42","username":"bot"}}`))
	}))
	defer srv.Close()

	httpClient, err := NewOAuth2HTTPClient(context.Background(), OAuthConfig{AccessToken: "access-1"})
	require.NoError(t, err)

	me, err := NewClient(httpClient, WithAPIBase(srv.URL)).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bot", me.Username)

	_, err = NewOAuth2HTTPClient(context.Background(), OAuthConfig{})
	assert.Error(t, err)
	_, err = NewOAuth2HTTPClient(context.Background(), OAuthConfig{RefreshToken: "r"})
	assert.Error(t, err)
}
