package g2b

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/metrics"
)

// ListStrategy names the fallback strategy that produced a batch.
type ListStrategy string

// List strategies, in the order they are attempted.
const (
	StrategyTable   ListStrategy = "table"
	StrategyCellID  ListStrategy = "cell_id"
	StrategyGeneric ListStrategy = "generic"
)

// Navigation labels that show up as links inside list containers and must
// never be mistaken for notice titles.
var navLinkWords = []string{
	"목록", "이전", "다음", "처음", "마지막", "더보기", "상세검색",
	"prev", "next", "first", "last", "more", "list", "search",
}

var bidNumberPattern = regexp.MustCompile(`^\d{8,}[-–]?\d*$`)

// ListExtractor pulls bid candidates out of a search-results page. The three
// strategies run in order and the first one that yields at least one valid
// candidate wins; later strategies are not consulted.
type ListExtractor struct {
	scheme CellScheme
	now    func() time.Time
	logger *zap.Logger
}

// NewListExtractor builds the chain around a cell-id scheme.
func NewListExtractor(scheme CellScheme, logger *zap.Logger) *ListExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListExtractor{scheme: scheme, now: time.Now, logger: logger}
}

// Extract runs the strategy chain over a parsed results page. An empty batch
// with an empty strategy means genuinely no results, which is a valid
// outcome, not an error.
func (e *ListExtractor) Extract(doc *goquery.Document, keyword string) ([]BidItem, ListStrategy) {
	for _, attempt := range []struct {
		strategy ListStrategy
		run      func(*goquery.Document) []BidItem
	}{
		{StrategyTable, e.fromTables},
		{StrategyCellID, e.fromCellIDs},
		{StrategyGeneric, e.fromContainers},
	} {
		items := attempt.run(doc)
		if len(items) == 0 {
			continue
		}
		for i := range items {
			items[i].Keyword = keyword
			items[i].ExtractedAt = e.now()
			items[i].EnsureID()
			if items[i].Status == "" {
				items[i].Status = StatusFromEndDate(items[i].DateEnd, e.now())
			}
		}
		e.logger.Info("list extracted",
			zap.String("strategy", string(attempt.strategy)),
			zap.Int("items", len(items)))
		metrics.ObserveItems(string(attempt.strategy), len(items))
		return items, attempt.strategy
	}
	e.logger.Info("list extraction found no candidates")
	return nil, ""
}

// fromTables is the structural strategy: find data tables, infer column
// roles from header synonyms, and read one candidate per data row. Tables
// without a recognizable title column are skipped.
func (e *ListExtractor) fromTables(doc *goquery.Document) []BidItem {
	var items []BidItem
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		roles := inferColumnRoles(table)
		titleCol, ok := roles[roleTitle]
		if !ok {
			return true
		}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= titleCol {
				return
			}
			titleCell := cells.Eq(titleCol)
			title := cleanText(titleCell.Text())
			if !ValidTitle(title) {
				return
			}
			item := BidItem{Title: title}
			for role, col := range roles {
				if role == roleTitle || cells.Length() <= col {
					continue
				}
				value := cleanText(cells.Eq(col).Text())
				switch role {
				case roleBidNumber:
					item.BidNumber = value
				case roleOrganization:
					item.Organization = value
				case roleDateStart:
					item.DateStart = value
				case roleDateEnd:
					item.DateEnd = value
				}
			}
			link := titleCell.Find("a").First()
			if href, ok := link.Attr("href"); ok && href != "" && href != "#" {
				item.DetailURL = href
			}
			item.Row = locatorFor(link, titleCell)
			items = append(items, item)
		})
		return len(items) == 0
	})
	return items
}

// inferColumnRoles reads the header row of a table and maps column indexes
// to roles. A role claimed by an earlier column is not reassigned.
func inferColumnRoles(table *goquery.Selection) map[columnRole]int {
	roles := map[columnRole]int{}
	headers := table.Find("th")
	if headers.Length() == 0 {
		headers = table.Find("tr").First().Find("td")
	}
	headers.Each(func(col int, h *goquery.Selection) {
		role := matchColumnRole(h.Text())
		if role == roleNone {
			return
		}
		if _, taken := roles[role]; !taken {
			roles[role] = col
		}
	})
	return roles
}

// fromCellIDs is the identifier-pattern strategy: probe the grid widget's
// predictable cell ids row by row, reading the title cell and the sibling
// columns of each row that exists. Missing rows are skipped, not fatal.
func (e *ListExtractor) fromCellIDs(doc *goquery.Document) []BidItem {
	var items []BidItem
	for row := 0; row < e.scheme.MaxRows; row++ {
		cell := doc.Find(e.scheme.TitleCell(row).Selector()).First()
		if cell.Length() == 0 {
			continue
		}
		title := cleanText(cell.Text())
		if link := cell.Find("a").First(); link.Length() > 0 {
			title = cleanText(link.Text())
		}
		if !ValidTitle(title) {
			continue
		}
		item := BidItem{
			Title: title,
			Row:   e.scheme.TitleLink(row),
		}
		for col := 1; col < e.scheme.TitleColumn && item.BidNumber == ""; col++ {
			value := cleanText(doc.Find(e.scheme.Cell(row, col).Selector()).Text())
			if bidNumberPattern.MatchString(value) {
				item.BidNumber = value
			}
		}
		for col := e.scheme.TitleColumn + 1; col <= e.scheme.TitleColumn+4; col++ {
			value := cleanText(doc.Find(e.scheme.Cell(row, col).Selector()).Text())
			if value == "" {
				continue
			}
			if _, ok := ParseDate(value); ok {
				if item.DateStart == "" {
					item.DateStart = value
				} else if item.DateEnd == "" {
					item.DateEnd = value
				}
			} else if item.Organization == "" {
				item.Organization = value
			}
		}
		items = append(items, item)
	}
	return items
}

// fromContainers is the last-resort strategy: walk every list-like container
// for plausible notice links, filtering navigation chrome and inferring
// fields positionally from sibling cells where the link sits in a table row.
func (e *ListExtractor) fromContainers(doc *goquery.Document) []BidItem {
	var items []BidItem
	seen := map[string]bool{}
	doc.Find("table, ul, ol, div[class*='list'], div[class*='grid']").Find("a").Each(func(_ int, link *goquery.Selection) {
		title := cleanText(link.Text())
		if !ValidTitle(title) || isNavLink(title) || seen[title] {
			return
		}
		seen[title] = true
		item := BidItem{Title: title, Row: locatorFor(link, link)}
		if href, ok := link.Attr("href"); ok && href != "" && href != "#" {
			item.DetailURL = href
		}
		row := link.Closest("tr")
		if row.Length() > 0 {
			row.Find("td").Each(func(_ int, cell *goquery.Selection) {
				value := cleanText(cell.Text())
				if value == "" || value == title {
					return
				}
				switch {
				case item.BidNumber == "" && bidNumberPattern.MatchString(value):
					item.BidNumber = value
				case item.DateEnd == "":
					if _, ok := ParseDate(value); ok {
						item.DateEnd = value
					}
				}
			})
		}
		items = append(items, item)
	})
	return items
}

// ValidTitle rejects the junk the looser strategies surface: blanks, cell
// fragments shorter than 5 characters, and purely numeric strings such as
// row numbers.
func ValidTitle(title string) bool {
	if utf8.RuneCountInString(title) < 5 {
		return false
	}
	for _, r := range title {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) && r != '-' && r != '.' {
			return true
		}
	}
	return false
}

func isNavLink(text string) bool {
	t := strings.ToLower(text)
	for _, w := range navLinkWords {
		if t == w {
			return true
		}
	}
	return false
}

// locatorFor prefers the id of the clickable link, then the id of the
// enclosing cell. Elements with neither get no locator; their detail pass
// will be skipped with an error marker.
func locatorFor(link, cell *goquery.Selection) Locator {
	if id, ok := link.Attr("id"); ok && id != "" {
		return Locator("#" + id)
	}
	if id, ok := cell.Attr("id"); ok && id != "" {
		return Locator("#" + id + " a")
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
