package g2b

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const detailHTML = `
<table>
  <tr><th>입찰공고번호</th><td>20260815-00123</td></tr>
  <tr><th>추정가격</th><td>150,000,000원</td></tr>
  <tr><th>계약방법</th><td>일반경쟁</td></tr>
  <tr><th>입찰마감일시</th><td>2026-09-01 10:00</td></tr>
  <tr><th>납품장소</th><td>서울시 본청</td></tr>
  <tr><th>특이사항</th><td>현장설명회 필수</td></tr>
</table>
<a href="/files/spec.hwp">과업지시서.hwp</a>
<a href="/files/spec.hwp">중복 링크</a>`

// fakeEnricher is a canned Extractor for tests.
type fakeEnricher struct {
	response string
	err      error
	calls    int
	lastText string
}

func (f *fakeEnricher) Extract(_ context.Context, text string, _ []string) (string, error) {
	f.calls++
	f.lastText = text
	return f.response, f.err
}

func newTestDetailExtractor(sess *fakeSession, enricher *fakeEnricher) (*DetailExtractor, *StateTracker) {
	tracker := NewStateTracker()
	interrupts := NewInterruptRecovery(sess, 5, zap.NewNop())
	var ext *DetailExtractor
	if enricher != nil {
		ext = NewDetailExtractor(sess, tracker, interrupts, enricher, DetailConfig{}, zap.NewNop())
	} else {
		ext = NewDetailExtractor(sess, tracker, interrupts, nil, DetailConfig{}, zap.NewNop())
	}
	return ext, tracker
}

func TestDetailProcessLabeledTables(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(detailHTML)
	sess.url = "https://www.g2b.go.kr/detail/123"
	ext, tracker := newTestDetailExtractor(sess, nil)

	item := BidItem{Title: "도로 유지보수 공사", Row: "#lnk1"}
	ext.Process(context.Background(), &item)

	require.Empty(t, item.Error)
	require.Equal(t, "20260815-00123", item.BidNumber)
	require.Equal(t, "150,000,000원", item.EstimatedPrice)
	require.Equal(t, "일반경쟁", item.BidType)
	require.Equal(t, "2026-09-01 10:00", item.DateEnd)
	require.Equal(t, "서울시 본청", item.AdditionalInfo["delivery_location"])
	require.Equal(t, "현장설명회 필수", item.AdditionalInfo["특이사항"])
	require.Contains(t, item.AdditionalInfo["attachments"], "과업지시서.hwp (/files/spec.hwp)")
	require.Equal(t, "https://www.g2b.go.kr/detail/123", item.DetailURL)

	require.Equal(t, 1, sess.clickCount("#lnk1"))
	require.Equal(t, 1, sess.backs)
	require.True(t, tracker.At(StateSearchResults))
}

func TestDetailEnrichmentFillsOnlyMissingFields(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(detailHTML)
	enricher := &fakeEnricher{response: `1. estimated price: 999원
2. delivery location: 부산
3. contact: 02-123-4567`}
	ext, _ := newTestDetailExtractor(sess, enricher)

	item := BidItem{Title: "도로 유지보수 공사", Row: "#lnk1"}
	ext.Process(context.Background(), &item)

	require.Equal(t, 1, enricher.calls)
	// Structured values survive the enrichment pass untouched.
	require.Equal(t, "150,000,000원", item.EstimatedPrice)
	require.Equal(t, "서울시 본청", item.AdditionalInfo["delivery_location"])
	// Gaps get filled.
	require.Equal(t, "02-123-4567", item.ContactInfo)
}

func TestDetailEnrichmentFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(detailHTML)
	enricher := &fakeEnricher{err: errors.New("model offline")}
	ext, _ := newTestDetailExtractor(sess, enricher)

	item := BidItem{Title: "도로 유지보수 공사", Row: "#lnk1"}
	ext.Process(context.Background(), &item)

	require.Empty(t, item.Error)
	require.Equal(t, "20260815-00123", item.BidNumber)
	require.Equal(t, 1, sess.backs)
}

func TestDetailUnconfidentResponseKeptAsRawOnly(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(detailHTML)
	enricher := &fakeEnricher{response: "I am not sure what you want from me."}
	ext, _ := newTestDetailExtractor(sess, enricher)

	item := BidItem{Title: "도로 유지보수 공사", Row: "#lnk1"}
	ext.Process(context.Background(), &item)

	require.Empty(t, item.ContactInfo)
	require.Equal(t, enricher.response, item.AdditionalInfo["ai_raw"])
}

func TestDetailWithoutLocatorGetsErrorMarker(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(detailHTML)
	ext, _ := newTestDetailExtractor(sess, nil)

	item := BidItem{Title: "도로 유지보수 공사"}
	ext.Process(context.Background(), &item)

	require.NotEmpty(t, item.Error)
	require.Empty(t, sess.clicked)
	require.Zero(t, sess.backs)
}

func TestDetailOpenFailureAbortsItemOnly(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(detailHTML)
	sess.clickErr = map[string]error{"#lnk1": errors.New("node not found")}
	ext, _ := newTestDetailExtractor(sess, nil)

	item := BidItem{Title: "도로 유지보수 공사", Row: "#lnk1"}
	ext.Process(context.Background(), &item)

	require.Contains(t, item.Error, "open detail")
	require.Zero(t, sess.backs)
}

func TestDetailReadFailureStillNavigatesBack(t *testing.T) {
	t.Parallel()

	sess := newFakeSession(detailHTML)
	sess.docErr = errors.New("page gone")
	ext, _ := newTestDetailExtractor(sess, nil)

	item := BidItem{Title: "도로 유지보수 공사", Row: "#lnk1"}
	ext.Process(context.Background(), &item)

	require.Contains(t, item.Error, "read detail page")
	require.Equal(t, 1, sess.backs)
}
