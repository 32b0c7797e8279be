package g2b

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const bidListHTML = `
<body>
  <input id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_bidPbancNm"/>
  <button id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_btnS0004">검색</button>
  <div id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_gridView1_cell_0_6"><a>기존 결과 공고명</a></div>
</body>`

func newTestNavigator(sess *fakeSession) *Navigator {
	tracker := NewStateTracker()
	interrupts := NewInterruptRecovery(sess, 5, zap.NewNop())
	cfg := NavigatorConfig{
		BaseURL: "https://www.g2b.go.kr",
		Retry:   RetryConfig{Attempts: 2},
	}
	return NewNavigator(sess, tracker, interrupts, cfg, zap.NewNop())
}

func TestNavigatorToMain(t *testing.T) {
	t.Parallel()

	sess := newFakeSession("<body>main</body>")
	nav := newTestNavigator(sess)

	require.NoError(t, nav.ToMain(context.Background()))
	require.Equal(t, []string{"https://www.g2b.go.kr"}, sess.navigated)
	require.True(t, nav.Tracker().At(StateMain))
}

func TestNavigatorToBidListConfirmsBeforeMarking(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(bidListHTML)
	nav := newTestNavigator(sess)

	require.NoError(t, nav.ToBidList(context.Background()))
	require.True(t, nav.Tracker().At(StateBidList))
	require.Equal(t, 1, sess.clickCount(menuBidSelector))
	require.Equal(t, 1, sess.clickCount(menuBidListSelector))

	// Already confirmed: a second call must not navigate again.
	clicks := len(sess.clicked)
	require.NoError(t, nav.ToBidList(context.Background()))
	require.Len(t, sess.clicked, clicks)
}

func TestNavigatorToBidListUnconfirmedInvalidates(t *testing.T) {
	t.Parallel()

	sess := newFakeSession("<body>not the bid list</body>")
	nav := newTestNavigator(sess)

	err := nav.ToBidList(context.Background())
	require.ErrorIs(t, err, ErrStateUnreachable)
	require.Equal(t, StateUnknown, nav.Tracker().Current())
}

func TestNavigatorSearch(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(bidListHTML)
	nav := newTestNavigator(sess)

	require.NoError(t, nav.Search(context.Background(), "도로"))
	require.Equal(t, "도로",
		sess.filled["#mf_wfm_container_tacBidPbancLst_contents_tab2_body_bidPbancNm"])
	require.Equal(t, 1,
		sess.clickCount("#mf_wfm_container_tacBidPbancLst_contents_tab2_body_btnS0004"))
	require.True(t, nav.Tracker().At(StateSearchResults))
}

func TestNavigatorSetupSearchConditionsBestEffort(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(bidListHTML)
	nav := newTestNavigator(sess)

	nav.SetupSearchConditions(context.Background())
	require.Equal(t, "100", sess.filled[perPageSelector])
}
