package browser

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

// Config controls the chromedp session.
type Config struct {
	Headless  bool
	UserAgent string
	// OpTimeout bounds every individual browser operation (default 30s).
	OpTimeout time.Duration
}

// ChromeSession implements Session on top of a single headless Chrome tab.
// Native dialogs are accepted as soon as they open so they can never wedge
// the CDP connection; AcceptAlertIfPresent reports whether any were seen
// since the previous check.
type ChromeSession struct {
	cfg         Config
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	primaryID   target.ID
	alerts      atomic.Int64
	logger      *zap.Logger
}

// NewChromeSession starts a browser and opens the primary tab.
func NewChromeSession(cfg Config, logger *zap.Logger) (*ChromeSession, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 30 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		logger:      logger,
	}

	// Start the browser so the primary target id is known.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	if c := chromedp.FromContext(tabCtx); c != nil && c.Target != nil {
		s.primaryID = c.Target.TargetID
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			s.alerts.Add(1)
			go func() {
				if err := chromedp.Run(tabCtx, page.HandleJavaScriptDialog(true)); err != nil {
					s.logger.Warn("accept dialog failed", zap.Error(err))
				}
			}()
		}
	})

	return s, nil
}

// Close releases the tab and the browser allocator.
func (s *ChromeSession) Close() error {
	s.tabCancel()
	s.allocCancel()
	return nil
}

// Navigate loads the URL and waits for the body to be ready.
func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, "navigate",
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// CurrentURL reports the primary page location.
func (s *ChromeSession) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, "location", chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// CurrentDocument returns the rendered HTML of the primary page.
func (s *ChromeSession) CurrentDocument(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, "document", chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Click clicks the first element matching the selector.
func (s *ChromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, "click", chromedp.Click(selector, chromedp.ByQuery))
}

// Fill sets the value of the first input matching the selector.
func (s *ChromeSession) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx, "fill", chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// CloseSecondaryWindows closes every page target except the primary tab.
func (s *ChromeSession) CloseSecondaryWindows(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	infos, err := chromedp.Targets(s.tabCtx)
	if err != nil {
		return 0, fmt.Errorf("list targets: %w", err)
	}
	closed := 0
	for _, info := range infos {
		if info.Type != "page" || info.TargetID == s.primaryID {
			continue
		}
		id := info.TargetID
		err := s.run(ctx, "close window", chromedp.ActionFunc(func(actx context.Context) error {
			return target.CloseTarget(id).Do(actx)
		}))
		if err != nil {
			s.logger.Warn("close secondary window failed", zap.String("target", string(id)), zap.Error(err))
			continue
		}
		closed++
	}
	return closed, nil
}

// AcceptAlertIfPresent reports whether a dialog was accepted since the last
// call. The actual acceptance happens in the dialog listener.
func (s *ChromeSession) AcceptAlertIfPresent(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.alerts.Swap(0) > 0, nil
}

// SendEscape sends an Escape keypress to the primary page.
func (s *ChromeSession) SendEscape(ctx context.Context) error {
	return s.run(ctx, "escape", chromedp.KeyEvent(kb.Escape))
}

// GoBack navigates the primary page one history entry back.
func (s *ChromeSession) GoBack(ctx context.Context) error {
	return s.run(ctx, "back",
		chromedp.NavigateBack(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *ChromeSession) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	opCtx, cancel := context.WithTimeout(s.tabCtx, s.cfg.OpTimeout)
	defer cancel()
	if err := chromedp.Run(opCtx, actions...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
