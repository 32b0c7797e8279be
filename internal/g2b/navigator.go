package g2b

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/browser"
)

// Menu and form selectors for the bid-notice list, with fallbacks for older
// page revisions.
var (
	menuBidSelector     = "#mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_btn_menuLvl1_span"
	menuBidListSelector = "#mf_wfm_gnb_wfm_gnbMenu_genDepth1_1_genDepth2_0_genDepth3_0_btn_menuLvl3_span"

	searchInputSelectors = []string{
		"#mf_wfm_container_tacBidPbancLst_contents_tab2_body_bidPbancNm",
		"#mf_wfm_container_tacBidPbancLst_contents_tab2_body_txtBidNm",
		"[id*='bidPbancNm']",
		"[id*='txtBidNm']",
	}
	searchButtonSelectors = []string{
		"#mf_wfm_container_tacBidPbancLst_contents_tab2_body_btnS0004",
		"[id*='btnS0004']",
		"button[id*='Search']",
	}
	perPageSelector = "#mf_wfm_container_tacBidPbancLst_contents_tab2_body_sbxRecordCountPerPage1"
)

// NavigatorConfig tunes navigation behavior.
type NavigatorConfig struct {
	BaseURL string
	Retry   RetryConfig
}

// Navigator drives the session between logical page states. Every transition
// follows the same shape: act, clear interrupts, confirm from on-page
// evidence, and only then record the new state. Unconfirmed transitions
// invalidate the tracker so the next caller starts from scratch.
type Navigator struct {
	session    browser.Session
	tracker    *StateTracker
	interrupts *InterruptRecovery
	cfg        NavigatorConfig
	logger     *zap.Logger
	setupDone  bool
}

// NewNavigator wires a navigator over the session.
func NewNavigator(session browser.Session, tracker *StateTracker, interrupts *InterruptRecovery, cfg NavigatorConfig, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{
		session:    session,
		tracker:    tracker,
		interrupts: interrupts,
		cfg:        cfg,
		logger:     logger,
	}
}

// Tracker exposes the shared state tracker.
func (n *Navigator) Tracker() *StateTracker { return n.tracker }

// Document fetches and parses the current page.
func (n *Navigator) Document(ctx context.Context) (*goquery.Document, error) {
	html, err := n.session.CurrentDocument(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// ToMain loads the portal front page.
func (n *Navigator) ToMain(ctx context.Context) error {
	outcome, err := Retry(ctx, n.cfg.Retry,
		func(ctx context.Context) error {
			if err := n.session.Navigate(ctx, n.cfg.BaseURL); err != nil {
				return err
			}
			n.interrupts.Sweep(ctx)
			return nil
		},
		func(ctx context.Context) bool {
			doc, err := n.Document(ctx)
			return err == nil && doc.Find("body").Length() > 0
		},
	)
	if outcome != OutcomeSuccess {
		n.tracker.Invalidate()
		return fmt.Errorf("main page: %w", joinNavErr(err))
	}
	n.tracker.MarkReached(StateMain)
	n.logger.Debug("reached main page")
	return nil
}

// ToBidList opens the bid-notice list view via the top menu. A no-op when
// the tracker already confirms the list or a search-results view, which is
// the list with a filter applied.
func (n *Navigator) ToBidList(ctx context.Context) error {
	if n.tracker.At(StateBidList) || n.tracker.At(StateSearchResults) {
		return nil
	}
	if !n.tracker.At(StateMain) {
		if err := n.ToMain(ctx); err != nil {
			return err
		}
	}

	outcome, err := Retry(ctx, n.cfg.Retry,
		func(ctx context.Context) error {
			if err := n.session.Click(ctx, menuBidSelector); err != nil {
				return fmt.Errorf("open bid menu: %w", err)
			}
			if err := n.session.Click(ctx, menuBidListSelector); err != nil {
				return fmt.Errorf("open bid list entry: %w", err)
			}
			n.interrupts.Sweep(ctx)
			return nil
		},
		func(ctx context.Context) bool {
			doc, err := n.Document(ctx)
			if err != nil {
				return false
			}
			_, ok := findFirst(doc, searchButtonSelectors)
			return ok
		},
	)
	if outcome != OutcomeSuccess {
		n.tracker.Invalidate()
		return fmt.Errorf("bid list: %w", joinNavErr(err))
	}
	n.tracker.MarkReached(StateBidList)
	n.logger.Debug("reached bid list")
	return nil
}

// SetupSearchConditions widens the result page size before searching. Best
// effort: the control moves between revisions and searching with the default
// page size still works.
func (n *Navigator) SetupSearchConditions(ctx context.Context) {
	if err := n.session.Fill(ctx, perPageSelector, "100"); err != nil {
		n.logger.Debug("page size setup skipped", zap.Error(err))
		return
	}
	n.interrupts.Sweep(ctx)
}

// Search fills the keyword into the notice-name field and submits. The
// transition to StateSearchResults is confirmed by the list grid or a result
// table being present afterwards.
func (n *Navigator) Search(ctx context.Context, keyword string) error {
	if err := n.ToBidList(ctx); err != nil {
		return err
	}
	if !n.setupDone {
		n.SetupSearchConditions(ctx)
		n.setupDone = true
	}

	outcome, err := Retry(ctx, n.cfg.Retry,
		func(ctx context.Context) error {
			doc, err := n.Document(ctx)
			if err != nil {
				return err
			}
			input, ok := findFirst(doc, searchInputSelectors)
			if !ok {
				return fmt.Errorf("search input not found")
			}
			if err := n.session.Fill(ctx, input, keyword); err != nil {
				return fmt.Errorf("fill keyword: %w", err)
			}
			button, ok := findFirst(doc, searchButtonSelectors)
			if !ok {
				return fmt.Errorf("search button not found")
			}
			if err := n.session.Click(ctx, button); err != nil {
				return fmt.Errorf("submit search: %w", err)
			}
			n.interrupts.Sweep(ctx)
			return nil
		},
		func(ctx context.Context) bool {
			doc, err := n.Document(ctx)
			if err != nil {
				return false
			}
			return doc.Find("[id*='gridView1_cell_']").Length() > 0 ||
				doc.Find("table tr").Length() > 1
		},
	)
	if outcome != OutcomeSuccess {
		n.tracker.Invalidate()
		return fmt.Errorf("search %q: %w", keyword, joinNavErr(err))
	}
	n.tracker.MarkReached(StateSearchResults)
	n.logger.Info("search submitted", zap.String("keyword", keyword))
	return nil
}

// findFirst returns the first selector that matches the document. When the
// match carries an id the id selector is returned instead, since attribute
// wildcards can match several elements.
func findFirst(doc *goquery.Document, selectors []string) (string, bool) {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if id, ok := node.Attr("id"); ok && id != "" {
			return "#" + id, true
		}
		return sel, true
	}
	return "", false
}

func joinNavErr(err error) error {
	if err == nil {
		return ErrStateUnreachable
	}
	return fmt.Errorf("%w: %w", ErrStateUnreachable, err)
}
