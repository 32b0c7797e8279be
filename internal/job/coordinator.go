// Package job owns the crawl lifecycle: one job at a time, driven through a
// keyword loop with cooperative stop, progress events, and a snapshot on
// every exit path.
package job

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/events"
	"github.com/bidwatch/g2b-crawler/internal/g2b"
	"github.com/bidwatch/g2b-crawler/internal/metrics"
)

// Lifecycle errors.
var (
	ErrJobRunning = errors.New("a crawl job is already running")
	ErrNoJob      = errors.New("no crawl job is running")
	ErrNoKeywords = errors.New("at least one keyword is required")
)

// State is the coordinator's lifecycle state. Terminal states remain visible
// in Status until the next job starts.
type State string

// Lifecycle states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Navigator drives the browser between portal views.
type Navigator interface {
	ToMain(ctx context.Context) error
	Search(ctx context.Context, keyword string) error
	Document(ctx context.Context) (*goquery.Document, error)
}

// ListExtractor pulls candidates from a results page.
type ListExtractor interface {
	Extract(doc *goquery.Document, keyword string) ([]g2b.BidItem, g2b.ListStrategy)
}

// DetailExtractor refines one candidate in place.
type DetailExtractor interface {
	Process(ctx context.Context, item *g2b.BidItem)
}

// RelevanceFunc decides whether a candidate title is worth a detail visit.
type RelevanceFunc func(ctx context.Context, keyword, title string) bool

// Options are per-job overrides supplied at start time.
type Options struct {
	MaxItemsPerKeyword int
}

// Config sets coordinator-wide defaults.
type Config struct {
	MaxItemsPerKeyword int
	// Relevance, when set, filters candidates between list and detail
	// extraction. Nil keeps every candidate.
	Relevance RelevanceFunc
}

// Snapshot is a point-in-time copy of job state, safe to hand out.
type Snapshot struct {
	State             State         `json:"state"`
	Running           bool          `json:"running"`
	Keywords          []string      `json:"keywords,omitempty"`
	ProcessedKeywords []string      `json:"processed_keywords,omitempty"`
	CurrentKeyword    string        `json:"current_keyword,omitempty"`
	TotalItems        int           `json:"total_items"`
	StartedAt         time.Time     `json:"started_at,omitzero"`
	EndedAt           time.Time     `json:"ended_at,omitzero"`
	LastError         string        `json:"last_error,omitempty"`
	SnapshotPath      string        `json:"snapshot_path,omitempty"`
}

// Coordinator runs at most one crawl job at a time. Stop is cooperative:
// the flag is checked between keywords and between items, and an in-flight
// item always completes so no partially extracted record is kept.
type Coordinator struct {
	nav     Navigator
	lists   ListExtractor
	details DetailExtractor
	bus     *events.Bus
	store   *SnapshotStore
	cfg     Config
	logger  *zap.Logger

	mu           sync.Mutex
	state        State
	keywords     []string
	processed    []string
	current      string
	results      []g2b.BidItem
	seen         map[string]struct{}
	startedAt    time.Time
	endedAt      time.Time
	lastErr      string
	snapshotPath string

	stop atomic.Bool
}

// New wires a coordinator. All dependencies are required except
// cfg.Relevance.
func New(nav Navigator, lists ListExtractor, details DetailExtractor, bus *events.Bus, store *SnapshotStore, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxItemsPerKeyword <= 0 {
		cfg.MaxItemsPerKeyword = 100
	}
	return &Coordinator{
		nav:     nav,
		lists:   lists,
		details: details,
		bus:     bus,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		state:   StateIdle,
	}
}

// Start launches a job in the background. Exactly one job may run at a time
// process-wide; a second Start returns ErrJobRunning.
func (c *Coordinator) Start(keywords []string, opts Options) error {
	cleaned := cleanKeywords(keywords)
	if len(cleaned) == 0 {
		return ErrNoKeywords
	}
	maxItems := opts.MaxItemsPerKeyword
	if maxItems <= 0 {
		maxItems = c.cfg.MaxItemsPerKeyword
	}

	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return ErrJobRunning
	}
	c.state = StateRunning
	c.keywords = cleaned
	c.processed = nil
	c.current = ""
	c.results = nil
	c.seen = map[string]struct{}{}
	c.startedAt = time.Now()
	c.endedAt = time.Time{}
	c.lastErr = ""
	c.snapshotPath = ""
	c.stop.Store(false)
	c.mu.Unlock()

	metrics.SetJobRunning(true)
	c.logger.Info("crawl job starting", zap.Strings("keywords", cleaned), zap.Int("max_items", maxItems))
	go c.run(context.Background(), cleaned, maxItems)
	return nil
}

// Stop requests a cooperative stop and returns the state at that moment.
// The job keeps running until the current item finishes.
func (c *Coordinator) Stop() (Snapshot, error) {
	c.mu.Lock()
	running := c.state == StateRunning
	c.mu.Unlock()
	if !running {
		return Snapshot{}, ErrNoJob
	}
	c.stop.Store(true)
	c.bus.Publish(events.Log("stop requested"))
	c.logger.Info("stop requested")
	return c.Status(), nil
}

// Status returns a copy of the current job state.
func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Results returns a copy of the accumulated results so far.
func (c *Coordinator) Results() []g2b.BidItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]g2b.BidItem, len(c.results))
	copy(out, c.results)
	return out
}

func (c *Coordinator) run(ctx context.Context, keywords []string, maxItems int) {
	c.bus.Publish(events.Log("crawl started"))

	var fatal error
	if err := c.nav.ToMain(ctx); err != nil {
		fatal = fmt.Errorf("portal unreachable: %w", err)
	} else {
		for _, kw := range keywords {
			if c.stop.Load() {
				break
			}
			c.setCurrent(kw)
			c.bus.Publish(events.Status(c.Status()))

			if err := c.processKeyword(ctx, kw, maxItems); err != nil {
				// Keyword failures are non-fatal: report and move on.
				c.logger.Warn("keyword failed", zap.String("keyword", kw), zap.Error(err))
				c.bus.Publish(events.Error(fmt.Sprintf("keyword %q: %v", kw, err), false))
				metrics.ObserveExtractionFailure("keyword")
			}

			c.markProcessed(kw)
			metrics.ObserveKeywordProcessed()
			c.bus.Publish(events.Status(c.Status()))
		}
	}

	c.finalize(fatal)
}

func (c *Coordinator) processKeyword(ctx context.Context, keyword string, maxItems int) error {
	if err := c.nav.Search(ctx, keyword); err != nil {
		return err
	}
	doc, err := c.nav.Document(ctx)
	if err != nil {
		return fmt.Errorf("read results page: %w", err)
	}

	items, strategy := c.lists.Extract(doc, keyword)
	if len(items) == 0 {
		c.bus.Publish(events.Log(fmt.Sprintf("keyword %q: no results", keyword)))
		return nil
	}
	if c.cfg.Relevance != nil {
		items = c.filterRelevant(ctx, keyword, items)
	}
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	var batch []g2b.BidItem
	for i := range items {
		if c.stop.Load() {
			break
		}
		c.details.Process(ctx, &items[i])
		if c.addResult(items[i]) {
			batch = append(batch, items[i])
		}
	}

	if len(batch) > 0 {
		c.bus.Publish(events.ResultBatch(batch))
	}
	c.logger.Info("keyword processed",
		zap.String("keyword", keyword),
		zap.String("strategy", string(strategy)),
		zap.Int("new_items", len(batch)))
	return nil
}

func (c *Coordinator) filterRelevant(ctx context.Context, keyword string, items []g2b.BidItem) []g2b.BidItem {
	kept := items[:0]
	for _, item := range items {
		if c.cfg.Relevance(ctx, keyword, item.Title) {
			kept = append(kept, item)
		} else {
			c.logger.Debug("candidate filtered as irrelevant",
				zap.String("keyword", keyword), zap.String("title", item.Title))
		}
	}
	return kept
}

// finalize settles the terminal state and always persists a snapshot,
// whether the job completed, was stopped, or failed.
func (c *Coordinator) finalize(fatal error) {
	c.mu.Lock()
	c.current = ""
	c.endedAt = time.Now()
	switch {
	case fatal != nil:
		c.state = StateFailed
		c.lastErr = fatal.Error()
	case c.stop.Load():
		c.state = StateStopped
	default:
		c.state = StateCompleted
	}
	keywords := append([]string(nil), c.keywords...)
	results := append([]g2b.BidItem(nil), c.results...)
	state := c.state
	c.mu.Unlock()

	path, err := c.store.Save(keywords, results)
	if err != nil {
		c.logger.Error("snapshot persist failed", zap.Error(err))
		c.bus.Publish(events.Error(fmt.Sprintf("snapshot persist failed: %v", err), false))
	} else {
		c.mu.Lock()
		c.snapshotPath = path
		c.mu.Unlock()
	}

	metrics.SetJobRunning(false)
	metrics.ObserveJob(string(state))
	if fatal != nil {
		c.bus.Publish(events.Error(fatal.Error(), true))
	}
	c.bus.Publish(events.Status(c.Status()))
	c.logger.Info("crawl job finished",
		zap.String("state", string(state)),
		zap.Int("items", len(results)))
}

// addResult appends an item unless an identical notice was already kept.
func (c *Coordinator) addResult(item g2b.BidItem) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := item.Key()
	if _, dup := c.seen[key]; dup {
		return false
	}
	c.seen[key] = struct{}{}
	c.results = append(c.results, item)
	return true
}

func (c *Coordinator) setCurrent(keyword string) {
	c.mu.Lock()
	c.current = keyword
	c.mu.Unlock()
}

func (c *Coordinator) markProcessed(keyword string) {
	c.mu.Lock()
	c.processed = append(c.processed, keyword)
	c.mu.Unlock()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	return Snapshot{
		State:             c.state,
		Running:           c.state == StateRunning,
		Keywords:          append([]string(nil), c.keywords...),
		ProcessedKeywords: append([]string(nil), c.processed...),
		CurrentKeyword:    c.current,
		TotalItems:        len(c.results),
		StartedAt:         c.startedAt,
		EndedAt:           c.endedAt,
		LastError:         c.lastErr,
		SnapshotPath:      c.snapshotPath,
	}
}

func cleanKeywords(keywords []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
