package g2b

import "sync"

// PageState is the crawler's logical position within the portal. It is
// deliberately decoupled from the browser URL: the portal is a single-page
// application and the URL rarely changes when the view does.
type PageState int

// Logical page states.
const (
	StateUnknown PageState = iota
	StateMain
	StateBidList
	StateSearchResults
	StateDetail
)

func (s PageState) String() string {
	switch s {
	case StateMain:
		return "main"
	case StateBidList:
		return "bid_list"
	case StateSearchResults:
		return "search_results"
	case StateDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// StateTracker records the last confirmed page state. Transitions are only
// recorded after on-page evidence confirms them; an unconfirmed attempt must
// call Invalidate so later steps re-navigate instead of trusting a guess.
type StateTracker struct {
	mu      sync.Mutex
	current PageState
}

// NewStateTracker starts in StateUnknown.
func NewStateTracker() *StateTracker {
	return &StateTracker{current: StateUnknown}
}

// Current returns the last confirmed state.
func (t *StateTracker) Current() PageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// MarkReached records a confirmed transition.
func (t *StateTracker) MarkReached(s PageState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = s
}

// Invalidate drops back to StateUnknown after a failed or unconfirmed step.
func (t *StateTracker) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = StateUnknown
}

// At reports whether the tracker last confirmed the given state.
func (t *StateTracker) At(s PageState) bool {
	return t.Current() == s
}
