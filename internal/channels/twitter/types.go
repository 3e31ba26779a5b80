package twitter

import "time"

// User is an X account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Mention is a public post that mentions the authenticated account.
type Mention struct {
	ID             string
	AuthorID       string
	AuthorUsername string
	Text           string
	ConversationID string
	CreatedAt      time.Time
}

// URL returns the public link to the post.
func (m Mention) URL() string {
	return PostURL(m.AuthorUsername, m.ID)
}

// DirectMessage is one message-create event from the DM inbox.
type DirectMessage struct {
	ID             string
	SenderID       string
	SenderUsername string
	Text           string
	ConversationID string
	CreatedAt      time.Time
}

// PostURL builds the canonical link for a post.
func PostURL(username, postID string) string {
	if username == "" || postID == "" {
		return ""
	}
	return "https://twitter.com/" + username + "/status/" + postID
}

type apiTweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
}

type apiDMEvent struct {
	ID               string    `json:"id"`
	EventType        string    `json:"event_type"`
	Text             string    `json:"text"`
	SenderID         string    `json:"sender_id"`
	DMConversationID string    `json:"dm_conversation_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type apiIncludes struct {
	Users []User `json:"users"`
}

type apiMeta struct {
	ResultCount int    `json:"result_count"`
	NewestID    string `json:"newest_id"`
	OldestID    string `json:"oldest_id"`
	NextToken   string `json:"next_token"`
}

type apiProblem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Type   string `json:"type"`
}

type listResponse[T any] struct {
	Data     []T          `json:"data"`
	Includes apiIncludes  `json:"includes"`
	Meta     apiMeta      `json:"meta"`
	Errors   []apiProblem `json:"errors"`
}

type userResponse struct {
	Data   *User        `json:"data"`
	Errors []apiProblem `json:"errors"`
}

type createTweetRequest struct {
	Text  string             `json:"text"`
	Reply *createTweetParent `json:"reply,omitempty"`
}

type createTweetParent struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type sendDMRequest struct {
	Text string `json:"text"`
}

type sendDMResponse struct {
	Data struct {
		DMConversationID string `json:"dm_conversation_id"`
		DMEventID        string `json:"dm_event_id"`
	} `json:"data"`
}

func usernamesByID(inc apiIncludes) map[string]string {
	out := make(map[string]string, len(inc.Users))
	for _, u := range inc.Users {
		out[u.ID] = u.Username
	}
	return out
}
