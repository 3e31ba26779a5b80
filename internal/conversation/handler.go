package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/support-escalation-bot/internal/channels/twitter"
	"github.com/wolfman30/support-escalation-bot/internal/history"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

const (
	serviceName     = "Twitter Support Bot"
	maxWebhookBytes = 64 << 10
)

// Processor is the Router capability the HTTP handler needs.
type Processor interface {
	Process(ctx context.Context, in Inbound) (*Result, error)
}

// HistoryReader exposes read access to stored conversations.
type HistoryReader interface {
	GetUserState(ctx context.Context, username string) (*history.UserState, error)
	RecentConversations(ctx context.Context, username string, limit int) ([]history.ConversationRecord, error)
}

// WebhookRequest is the body accepted by POST /webhook/twitter.
type WebhookRequest struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	IsDM     bool   `json:"is_dm"`
	TweetURL string `json:"tweet_url,omitempty"`
	TweetID  string `json:"tweet_id,omitempty"`
}

// WebhookResponse is returned for every processed message.
type WebhookResponse struct {
	Success      bool   `json:"success"`
	Intent       string `json:"intent"`
	Response     string `json:"response"`
	TicketNumber string `json:"ticket_number,omitempty"`
	Escalated    bool   `json:"escalated"`
}

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Handler wires HTTP requests to the Router.
type Handler struct {
	processor      Processor
	history        HistoryReader
	consumerSecret string
	logger         *logging.Logger
}

// NewHandler creates the webhook handler. consumerSecret enables CRC answers
// on GET /webhook/test; history may be nil when the admin routes are unused.
func NewHandler(processor Processor, history HistoryReader, consumerSecret string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		processor:      processor,
		history:        history,
		consumerSecret: consumerSecret,
		logger:         logger,
	}
}

// Health handles GET / and GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
}

// Twitter handles POST /webhook/twitter.
func (h *Handler) Twitter(w http.ResponseWriter, r *http.Request) {
	var req WebhookRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err := dec.Decode(&req); err != nil {
		h.logger.Warn("failed to decode webhook request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Message) == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "username and message are required"})
		return
	}

	res, err := h.processor.Process(r.Context(), Inbound{
		Username: req.Username,
		Text:     req.Message,
		Direct:   req.IsDM,
		PostURL:  req.TweetURL,
		SourceID: req.TweetID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInbound):
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, ErrLockTimeout):
			h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "user is busy, retry shortly", Retryable: true})
		default:
			h.logger.Error("failed to process webhook message", "username", req.Username, "error", err)
			h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to process message", Retryable: true})
		}
		return
	}

	h.writeJSON(w, http.StatusOK, WebhookResponse{
		Success:      true,
		Intent:       string(res.Intent),
		Response:     res.Response,
		TicketNumber: res.TicketID,
		Escalated:    res.Escalated,
	})
}

// WebhookTest handles GET /webhook/test. With a crc_token it answers the X
// challenge-response check.
func (h *Handler) WebhookTest(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("crc_token")
	if token == "" {
		h.writeJSON(w, http.StatusOK, map[string]string{"message": "Webhook is working!"})
		return
	}
	if h.consumerSecret == "" {
		h.writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "crc not configured"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"response_token": twitter.CRCResponseToken(h.consumerSecret, token),
	})
}

// UserHistory handles GET /admin/users/{username}/history.
func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimPrefix(chi.URLParam(r, "username"), "@")
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := h.history.RecentConversations(r.Context(), username, limit)
	if err != nil {
		h.logger.Error("failed to load history", "username", username, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load history"})
		return
	}
	if records == nil {
		records = []history.ConversationRecord{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"username": username, "conversations": records})
}

// UserState handles GET /admin/users/{username}/state.
func (h *Handler) UserState(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimPrefix(chi.URLParam(r, "username"), "@")
	state, err := h.history.GetUserState(r.Context(), username)
	if errors.Is(err, history.ErrNotFound) {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load user state", "username", username, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load user state"})
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
