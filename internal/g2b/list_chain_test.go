package g2b

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func newTestListExtractor() *ListExtractor {
	ex := NewListExtractor(DefaultCellScheme(), zap.NewNop())
	ex.now = func() time.Time {
		return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	}
	return ex
}

const tableListHTML = `
<table>
  <tr><th>번호</th><th>공고번호</th><th>공고명</th><th>수요기관</th><th>마감일</th></tr>
  <tr>
    <td>1</td><td>20260815-00123</td>
    <td><a id="lnk1" href="/detail/1">도로 유지보수 공사</a></td>
    <td>서울특별시</td><td>2026-09-01</td>
  </tr>
  <tr>
    <td>2</td><td>20260815-00456</td>
    <td><a href="#">교량 정밀안전 점검 용역</a></td>
    <td>부산광역시</td><td>2026-08-01</td>
  </tr>
</table>`

func TestListExtractStructuralTable(t *testing.T) {
	t.Parallel()

	items, strategy := newTestListExtractor().Extract(parseHTML(t, tableListHTML), "도로")
	require.Equal(t, StrategyTable, strategy)
	require.Len(t, items, 2)

	first := items[0]
	require.Equal(t, "도로 유지보수 공사", first.Title)
	require.Equal(t, "20260815-00123", first.BidNumber)
	require.Equal(t, "서울특별시", first.Organization)
	require.Equal(t, "2026-09-01", first.DateEnd)
	require.Equal(t, StatusOpen, first.Status)
	require.Equal(t, "/detail/1", first.DetailURL)
	require.Equal(t, Locator("#lnk1"), first.Row)
	require.Equal(t, "도로", first.Keyword)
	require.NotEmpty(t, first.ID)

	require.Equal(t, StatusClosed, items[1].Status)
	require.Empty(t, items[1].Row)
}

const cellGridHTML = `
<div>
  <div id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_gridView1_cell_0_1">20260815-00789</div>
  <div id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_gridView1_cell_0_6"><a href="#">소프트웨어 유지관리 사업</a></div>
  <div id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_gridView1_cell_0_7">2026-08-10</div>
  <div id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_gridView1_cell_0_8">2026-09-10</div>
  <div id="mf_wfm_container_tacBidPbancLst_contents_tab2_body_gridView1_cell_1_6"><a href="#">1234</a></div>
</div>`

func TestListExtractCellIDFallback(t *testing.T) {
	t.Parallel()

	items, strategy := newTestListExtractor().Extract(parseHTML(t, cellGridHTML), "유지관리")
	require.Equal(t, StrategyCellID, strategy)
	require.Len(t, items, 1)

	item := items[0]
	require.Equal(t, "소프트웨어 유지관리 사업", item.Title)
	require.Equal(t, "20260815-00789", item.BidNumber)
	require.Equal(t, "2026-08-10", item.DateStart)
	require.Equal(t, "2026-09-10", item.DateEnd)
	require.Equal(t, StatusOpen, item.Status)
	require.Equal(t, DefaultCellScheme().TitleLink(0), item.Row)
}

const genericListHTML = `
<ul>
  <li><a id="g1" href="/view/9">하수처리장 증설 공사 입찰</a></li>
  <li><a href="#">다음</a></li>
  <li><a href="#">목록</a></li>
</ul>`

func TestListExtractGenericFallback(t *testing.T) {
	t.Parallel()

	items, strategy := newTestListExtractor().Extract(parseHTML(t, genericListHTML), "하수")
	require.Equal(t, StrategyGeneric, strategy)
	require.Len(t, items, 1)
	require.Equal(t, "하수처리장 증설 공사 입찰", items[0].Title)
	require.Equal(t, Locator("#g1"), items[0].Row)
	require.Equal(t, "/view/9", items[0].DetailURL)
}

func TestListExtractFirstStrategyWins(t *testing.T) {
	t.Parallel()

	items, strategy := newTestListExtractor().Extract(parseHTML(t, tableListHTML+cellGridHTML), "도로")
	require.Equal(t, StrategyTable, strategy)
	require.Len(t, items, 2)
}

func TestListExtractNoResults(t *testing.T) {
	t.Parallel()

	items, strategy := newTestListExtractor().Extract(parseHTML(t, "<div>검색 결과가 없습니다</div>"), "없음")
	require.Empty(t, items)
	require.Equal(t, ListStrategy(""), strategy)
}

func TestValidTitle(t *testing.T) {
	t.Parallel()

	require.True(t, ValidTitle("도로 유지보수 공사"))
	require.True(t, ValidTitle("bridge inspection"))
	require.False(t, ValidTitle("입찰"))
	require.False(t, ValidTitle("12345"))
	require.False(t, ValidTitle("2026-08-25"))
	require.False(t, ValidTitle(""))
}
