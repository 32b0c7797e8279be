// Package browser defines the narrow browser-session capability the crawl
// core drives, plus a chromedp-backed implementation.
package browser

import "context"

// Session is the capability interface consumed by the crawl core. All methods
// operate on a single primary page; none are assumed idempotent. The core
// treats every call as blocking I/O.
type Session interface {
	// Navigate loads the given URL in the primary page.
	Navigate(ctx context.Context, url string) error
	// CurrentURL reports the primary page location.
	CurrentURL(ctx context.Context) (string, error)
	// CurrentDocument returns the rendered HTML of the primary page.
	CurrentDocument(ctx context.Context) (string, error)
	// Click clicks the first element matching the CSS selector.
	Click(ctx context.Context, selector string) error
	// Fill sets the value of the first input matching the CSS selector.
	Fill(ctx context.Context, selector, value string) error
	// CloseSecondaryWindows closes every page other than the primary one and
	// returns the number of windows closed.
	CloseSecondaryWindows(ctx context.Context) (int, error)
	// AcceptAlertIfPresent accepts a pending native dialog, reporting whether
	// one was dismissed.
	AcceptAlertIfPresent(ctx context.Context) (bool, error)
	// SendEscape sends an Escape keypress to the primary page.
	SendEscape(ctx context.Context) error
	// GoBack navigates the primary page one history entry back.
	GoBack(ctx context.Context) error
	// Close releases the underlying browser.
	Close() error
}
