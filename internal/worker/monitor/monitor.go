package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/wolfman30/support-escalation-bot/internal/channels/twitter"
	"github.com/wolfman30/support-escalation-bot/internal/conversation"
	"github.com/wolfman30/support-escalation-bot/internal/observability/metrics"
	"github.com/wolfman30/support-escalation-bot/pkg/logging"
)

const (
	SourceMentions = "mentions"
	SourceDMs      = "dms"
)

// Platform is the slice of the X API the monitor uses.
type Platform interface {
	Me(ctx context.Context) (*twitter.User, error)
	Mentions(ctx context.Context, userID, sinceID string, max int) ([]twitter.Mention, error)
	DirectMessages(ctx context.Context, max int) ([]twitter.DirectMessage, error)
	Reply(ctx context.Context, postID, text string) (string, error)
	SendDirectMessage(ctx context.Context, userID, text string) (string, error)
}

// Processor routes one inbound message.
type Processor interface {
	Process(ctx context.Context, in conversation.Inbound) (*conversation.Result, error)
}

// Checkpoints persists per-source watermarks and exposes recently stored ids.
type Checkpoints interface {
	GetWatermark(ctx context.Context, source string) (string, error)
	SetWatermark(ctx context.Context, source, lastID string) error
	RecentSourceIDs(ctx context.Context, limit int) ([]string, error)
}

// item is a mention or DM normalized for processing.
type item struct {
	id       string
	source   string
	authorID string
	username string
	text     string
	postURL  string
}

// Monitor polls mentions and DMs, routes each new item and posts the reply.
type Monitor struct {
	platform    Platform
	processor   Processor
	checkpoints Checkpoints
	logger      *logging.Logger
	metrics     *metrics.SupportMetrics

	interval  time.Duration
	batch     int
	processed *processedSet
	limiter   *rate.Limiter

	me *twitter.User

	mu sync.Mutex
	// pending holds replies already routed and persisted but not yet
	// delivered, so a retry posts without routing the message again.
	pending map[string]string
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.batch = n
		}
	}
}

func WithProcessedCache(n int) Option {
	return func(m *Monitor) {
		m.processed = newProcessedSet(n)
	}
}

// WithReplyRate caps outbound posts per second (burst 1). Zero disables pacing.
func WithReplyRate(perSecond float64) Option {
	return func(m *Monitor) {
		if perSecond > 0 {
			m.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			m.limiter = nil
		}
	}
}

func WithMetrics(sm *metrics.SupportMetrics) Option {
	return func(m *Monitor) {
		m.metrics = sm
	}
}

func New(platform Platform, processor Processor, checkpoints Checkpoints, logger *logging.Logger, opts ...Option) *Monitor {
	if logger == nil {
		logger = logging.Default()
	}
	m := &Monitor{
		platform:    platform,
		processor:   processor,
		checkpoints: checkpoints,
		logger:      logger,
		interval:    60 * time.Second,
		batch:       20,
		processed:   newProcessedSet(1000),
		limiter:     rate.NewLimiter(rate.Limit(1), 1),
		pending:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start authenticates and seeds the processed set from stored records.
func (m *Monitor) Start(ctx context.Context) error {
	me, err := m.platform.Me(ctx)
	if err != nil {
		return fmt.Errorf("monitor: authenticate: %w", err)
	}
	m.me = me

	ids, err := m.checkpoints.RecentSourceIDs(ctx, m.processed.cap)
	if err != nil {
		m.logger.Warn("failed to seed processed ids", "error", err)
	}
	for i := len(ids) - 1; i >= 0; i-- {
		m.processed.Add(ids[i])
	}
	m.logger.Info("monitor authenticated",
		"account", me.Username,
		"interval", m.interval.String(),
		"seeded_ids", m.processed.Len(),
	)
	return nil
}

// Run polls until ctx is cancelled. An authentication failure is returned
// immediately; per-cycle failures are logged and retried next tick.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return nil
		case <-ticker.C:
			m.PollOnce(ctx)
		}
	}
}

// PollOnce runs one mentions pass and one DM pass. Start must have succeeded.
func (m *Monitor) PollOnce(ctx context.Context) {
	if m.me == nil {
		m.logger.Error("monitor poll before authentication")
		return
	}
	m.pollMentions(ctx)
	if ctx.Err() != nil {
		return
	}
	m.pollDMs(ctx)
}

func (m *Monitor) pollMentions(ctx context.Context) {
	since, err := m.checkpoints.GetWatermark(ctx, SourceMentions)
	if err != nil {
		m.logger.Error("failed to read mentions watermark", "error", err)
		return
	}
	mentions, err := m.platform.Mentions(ctx, m.me.ID, since, m.batch)
	if err != nil {
		m.logFetchError(SourceMentions, err)
		return
	}

	items := make([]item, 0, len(mentions))
	for _, mt := range mentions {
		items = append(items, item{
			id:       mt.ID,
			source:   SourceMentions,
			authorID: mt.AuthorID,
			username: mt.AuthorUsername,
			text:     mt.Text,
			postURL:  mt.URL(),
		})
	}
	m.handleBatch(ctx, SourceMentions, since, items)
}

func (m *Monitor) pollDMs(ctx context.Context) {
	since, err := m.checkpoints.GetWatermark(ctx, SourceDMs)
	if err != nil {
		m.logger.Error("failed to read dm watermark", "error", err)
		return
	}
	dms, err := m.platform.DirectMessages(ctx, m.batch)
	if err != nil {
		m.logFetchError(SourceDMs, err)
		return
	}

	items := make([]item, 0, len(dms))
	for _, dm := range dms {
		if since != "" && twitter.CompareIDs(dm.ID, since) <= 0 {
			continue
		}
		items = append(items, item{
			id:       dm.ID,
			source:   SourceDMs,
			authorID: dm.SenderID,
			username: dm.SenderUsername,
			text:     dm.Text,
		})
	}
	m.handleBatch(ctx, SourceDMs, since, items)
}

// handleBatch processes items oldest first and advances the watermark across
// the leading run of items that are done. The first failure stops the
// watermark; later items are still attempted.
func (m *Monitor) handleBatch(ctx context.Context, source, watermark string, items []item) {
	sort.Slice(items, func(i, j int) bool {
		return twitter.CompareIDs(items[i].id, items[j].id) < 0
	})

	advance := watermark
	blocked := false
	handled := 0
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if !m.handleItem(ctx, it) {
			blocked = true
			continue
		}
		handled++
		if !blocked {
			advance = it.id
		}
	}

	if advance != watermark {
		if err := m.checkpoints.SetWatermark(ctx, source, advance); err != nil {
			m.logger.Error("failed to save watermark", "source", source, "last_id", advance, "error", err)
		}
	}
	if handled > 0 {
		m.logger.Info("poll cycle handled items", "source", source, "count", handled, "watermark", advance)
	}
}

// handleItem reports whether it is finished with (replied to or skipped).
func (m *Monitor) handleItem(ctx context.Context, it item) bool {
	switch {
	case it.authorID == m.me.ID:
		m.metrics.ObservePollItem(it.source, "own")
		return true
	case m.processed.Has(it.id):
		m.metrics.ObservePollItem(it.source, "duplicate")
		return true
	case it.username == "" || it.text == "":
		m.logger.Warn("skipping item without author or text", "source", it.source, "id", it.id)
		m.processed.Add(it.id)
		m.metrics.ObservePollItem(it.source, "skipped")
		return true
	}

	reply, ok := m.takePending(it.id)
	if !ok {
		res, err := m.processor.Process(ctx, conversation.Inbound{
			Username: it.username,
			Text:     it.text,
			Direct:   it.source == SourceDMs,
			PostURL:  it.postURL,
			SourceID: it.id,
		})
		if err != nil {
			m.logger.Error("failed to process item", "source", it.source, "id", it.id, "username", it.username, "error", err)
			m.metrics.ObservePollItem(it.source, "process_failed")
			return false
		}
		reply = res.Response
	}

	if err := m.send(ctx, it, reply); err != nil {
		m.setPending(it.id, reply)
		m.logger.Error("failed to send reply", "source", it.source, "id", it.id, "username", it.username, "error", err)
		m.metrics.ObservePollItem(it.source, "reply_failed")
		return false
	}
	m.processed.Add(it.id)
	m.metrics.ObservePollItem(it.source, "replied")
	return true
}

func (m *Monitor) send(ctx context.Context, it item, text string) error {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	if it.source == SourceDMs {
		_, err := m.platform.SendDirectMessage(ctx, it.authorID, text)
		return err
	}
	_, err := m.platform.Reply(ctx, it.id, text)
	return err
}

func (m *Monitor) takePending(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reply, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	return reply, ok
}

func (m *Monitor) setPending(id, reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) >= m.processed.cap {
		// Drop an arbitrary entry; the message is already recorded.
		for k := range m.pending {
			delete(m.pending, k)
			break
		}
	}
	m.pending[id] = reply
}

func (m *Monitor) logFetchError(source string, err error) {
	var apiErr *twitter.APIError
	switch {
	case errors.Is(err, twitter.ErrRateLimited):
		args := []any{"source", source}
		if errors.As(err, &apiErr) && !apiErr.ResetAt.IsZero() {
			args = append(args, "reset_at", apiErr.ResetAt)
		}
		m.logger.Warn("rate limited, skipping cycle", args...)
		m.metrics.ObservePollItem(source, "rate_limited")
	case errors.Is(err, context.Canceled):
	default:
		m.logger.Error("failed to fetch items", "source", source, "error", err)
		m.metrics.ObservePollItem(source, "fetch_failed")
	}
}
