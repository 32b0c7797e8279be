package g2b

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/browser"
	"github.com/bidwatch/g2b-crawler/internal/metrics"
)

// Overlay close buttons observed on the portal, most specific first. The
// portal names its popup frames with a "poupR" id fragment.
var defaultOverlaySelectors = []string{
	"[id*='poupR'] [id*='close']",
	"[id*='poupR'][id*='close']",
	".w2window_close",
	"[class*='popup'] [class*='close']",
}

// InterruptRecovery clears the interrupts the portal throws at a crawl:
// JavaScript alerts, secondary windows, and modal overlays. It is invoked
// before and after every navigation step. It never fails the caller; a popup
// that will not close is logged and left behind.
type InterruptRecovery struct {
	session   browser.Session
	maxPasses int
	selectors []string
	logger    *zap.Logger
}

// NewInterruptRecovery builds a recovery sweep over the session. maxPasses
// bounds how many full passes one Sweep call may make; values below 1 fall
// back to 5.
func NewInterruptRecovery(session browser.Session, maxPasses int, logger *zap.Logger) *InterruptRecovery {
	if maxPasses < 1 {
		maxPasses = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterruptRecovery{
		session:   session,
		maxPasses: maxPasses,
		selectors: defaultOverlaySelectors,
		logger:    logger,
	}
}

// Sweep runs recovery passes until one pass finds nothing to close or the
// pass budget runs out, then sends a single escape keypress as a last resort.
// Within each pass the priority order is fixed: alerts first (they block
// everything else), then secondary windows, then overlay close buttons.
// Returns how many interrupts were closed in total.
func (r *InterruptRecovery) Sweep(ctx context.Context) int {
	total := 0
	for pass := 0; pass < r.maxPasses; pass++ {
		closed := 0

		if ok, err := r.session.AcceptAlertIfPresent(ctx); err != nil {
			r.logger.Debug("alert check failed", zap.Error(err))
		} else if ok {
			closed++
			metrics.ObserveInterruptClosed("alert")
		}

		if n, err := r.session.CloseSecondaryWindows(ctx); err != nil {
			r.logger.Debug("window sweep failed", zap.Error(err))
		} else if n > 0 {
			closed += n
			metrics.ObserveInterruptClosed("window")
		}

		n := r.closeOverlays(ctx)
		closed += n

		total += closed
		if closed == 0 {
			break
		}
	}

	if err := r.session.SendEscape(ctx); err != nil {
		r.logger.Debug("escape keypress failed", zap.Error(err))
	}

	if total > 0 {
		r.logger.Info("interrupts cleared", zap.Int("closed", total))
	}
	return total
}

// closeOverlays scans the current document for known close buttons and
// clicks each one that carries an id. Buttons without ids cannot be
// addressed reliably and are skipped.
func (r *InterruptRecovery) closeOverlays(ctx context.Context) int {
	html, err := r.session.CurrentDocument(ctx)
	if err != nil {
		r.logger.Debug("document fetch failed during overlay sweep", zap.Error(err))
		return 0
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		r.logger.Debug("document parse failed during overlay sweep", zap.Error(err))
		return 0
	}

	closed := 0
	for _, sel := range r.selectors {
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			id, ok := node.Attr("id")
			if !ok || id == "" {
				return
			}
			if err := r.session.Click(ctx, "#"+id); err != nil {
				r.logger.Debug("overlay close failed", zap.String("id", id), zap.Error(err))
				return
			}
			closed++
			metrics.ObserveInterruptClosed("overlay")
		})
		if closed > 0 {
			break
		}
	}
	return closed
}
