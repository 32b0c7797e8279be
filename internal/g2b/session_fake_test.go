package g2b

import (
	"context"
	"sync"

	"github.com/bidwatch/g2b-crawler/internal/browser"
)

// fakeSession is a scriptable in-memory Session for tests. Each
// CurrentDocument call pops the next page from the queue when one is
// scripted, otherwise the sticky html is returned.
type fakeSession struct {
	mu        sync.Mutex
	html      string
	htmlQueue []string
	url       string

	navigated []string
	clicked   []string
	filled    map[string]string
	backs     int
	escapes   int

	pendingAlerts  int
	pendingWindows int

	clickErr map[string]error
	docErr   error
	backErr  error
}

var _ browser.Session = (*fakeSession)(nil)

func newFakeSession(html string) *fakeSession {
	return &fakeSession{html: html, filled: map[string]string{}}
}

func (f *fakeSession) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, url)
	f.url = url
	return nil
}

func (f *fakeSession) CurrentURL(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *fakeSession) CurrentDocument(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docErr != nil {
		return "", f.docErr
	}
	if len(f.htmlQueue) > 0 {
		next := f.htmlQueue[0]
		f.htmlQueue = f.htmlQueue[1:]
		return next, nil
	}
	return f.html, nil
}

func (f *fakeSession) Click(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicked = append(f.clicked, selector)
	if err, ok := f.clickErr[selector]; ok {
		return err
	}
	return nil
}

func (f *fakeSession) Fill(_ context.Context, selector, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filled[selector] = value
	return nil
}

func (f *fakeSession) CloseSecondaryWindows(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.pendingWindows
	f.pendingWindows = 0
	return n, nil
}

func (f *fakeSession) AcceptAlertIfPresent(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingAlerts > 0 {
		f.pendingAlerts--
		return true, nil
	}
	return false, nil
}

func (f *fakeSession) SendEscape(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escapes++
	return nil
}

func (f *fakeSession) GoBack(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backs++
	return f.backErr
}

func (f *fakeSession) Close() error { return nil }

func (f *fakeSession) clickCount(selector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicked {
		if c == selector {
			n++
		}
	}
	return n
}
