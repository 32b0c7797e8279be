package g2b

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bidwatch/g2b-crawler/internal/ai"
	"github.com/bidwatch/g2b-crawler/internal/browser"
	"github.com/bidwatch/g2b-crawler/internal/metrics"
)

// DefaultChecklist is the field list handed to the text-understanding
// collaborator when enrichment is enabled.
var DefaultChecklist = []string{
	"posted date",
	"bid notice number",
	"bid title",
	"bid method",
	"award or contract method",
	"joint contract or consortium conditions",
	"estimated price or budget",
	"contact person (name, phone, fax)",
	"contract period or delivery deadline",
	"delivery location",
	"qualification requirements",
	"attachments",
}

// File-ish links on a detail page that count as attachments.
var attachmentSelectors = []string{
	"a[href*='download']",
	"a[href*='fileDown']",
	"a[href$='.pdf']",
	"a[href$='.hwp']",
	"a[href$='.hwpx']",
	"a[href$='.zip']",
	"a[href$='.xlsx']",
}

// DetailConfig tunes the detail pass.
type DetailConfig struct {
	Checklist  []string
	MaxAIInput int
}

// DetailExtractor opens one candidate's detail page, refines the item with
// every strategy that applies, and always navigates back to the list.
// The AI collaborator is optional and only ever fills fields the structured
// strategies left empty.
type DetailExtractor struct {
	session    browser.Session
	tracker    *StateTracker
	interrupts *InterruptRecovery
	enricher   ai.Extractor
	cfg        DetailConfig
	logger     *zap.Logger
}

// NewDetailExtractor wires the detail pass. enricher may be nil.
func NewDetailExtractor(session browser.Session, tracker *StateTracker, interrupts *InterruptRecovery, enricher ai.Extractor, cfg DetailConfig, logger *zap.Logger) *DetailExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Checklist) == 0 {
		cfg.Checklist = DefaultChecklist
	}
	if cfg.MaxAIInput <= 0 {
		cfg.MaxAIInput = 24000
	}
	return &DetailExtractor{
		session:    session,
		tracker:    tracker,
		interrupts: interrupts,
		enricher:   enricher,
		cfg:        cfg,
		logger:     logger,
	}
}

// Process enriches one candidate in place. Failures never propagate as
// errors to the job: the item keeps its list-level data and gets an error
// marker instead. Whatever happens after the detail page was opened, the
// browser is navigated back so the caller finds the list where it left it.
func (d *DetailExtractor) Process(ctx context.Context, item *BidItem) {
	if item.Row == "" {
		item.Error = "no locator for detail page"
		metrics.ObserveExtractionFailure("detail_open")
		d.logger.Warn("detail skipped, no locator", zap.String("title", item.Title))
		return
	}

	if err := d.session.Click(ctx, item.Row.Selector()); err != nil {
		item.Error = fmt.Sprintf("open detail: %v", err)
		metrics.ObserveExtractionFailure("detail_open")
		d.logger.Warn("detail open failed", zap.String("title", item.Title), zap.Error(err))
		return
	}
	d.tracker.MarkReached(StateDetail)
	d.interrupts.Sweep(ctx)

	defer func() {
		if err := d.session.GoBack(ctx); err != nil {
			d.logger.Warn("navigate back failed", zap.Error(err))
			d.tracker.Invalidate()
		} else {
			d.tracker.MarkReached(StateSearchResults)
		}
		d.interrupts.Sweep(ctx)
	}()

	if url, err := d.session.CurrentURL(ctx); err == nil && item.DetailURL == "" {
		item.DetailURL = url
	}

	doc, err := d.document(ctx)
	if err != nil {
		item.Error = fmt.Sprintf("read detail page: %v", err)
		metrics.ObserveExtractionFailure("detail_read")
		d.logger.Warn("detail read failed", zap.String("title", item.Title), zap.Error(err))
		return
	}

	fields, extras, pageText := extractLabeledTables(doc)
	scanIdentifiers(doc, fields)
	item.Apply(fields)
	for label, value := range extras {
		item.AddInfo(label, value)
	}
	if att := collectAttachments(doc); len(att) > 0 {
		item.AddInfo("attachments", strings.Join(att, "\n"))
	}

	if d.enricher != nil {
		d.enrich(ctx, item, pageText)
	}

	if item.DateEnd != "" {
		item.Status = StatusFromEndDate(item.DateEnd, itemNow(item))
	}
}

func (d *DetailExtractor) document(ctx context.Context) (*goquery.Document, error) {
	html, err := d.session.CurrentDocument(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// enrich asks the collaborator to read the flattened page text. Its answer
// is parsed with the ordinal grammar and merged with ApplyMissing, so it can
// never overwrite a structured value. Any failure is logged and swallowed.
func (d *DetailExtractor) enrich(ctx context.Context, item *BidItem, pageText string) {
	text := ai.TruncateMiddle(pageText, d.cfg.MaxAIInput)
	resp, err := d.enricher.Extract(ctx, text, d.cfg.Checklist)
	if err != nil {
		metrics.ObserveExtractionFailure("ai")
		d.logger.Warn("ai enrichment failed", zap.String("title", item.Title), zap.Error(err))
		return
	}
	parsed, confident := ai.ParseFields(resp)
	if !confident {
		d.logger.Debug("ai response not confidently parsed", zap.String("title", item.Title))
		item.AddInfo("ai_raw", resp)
		return
	}
	canonical := map[string]string{}
	for label, value := range parsed {
		if strings.Contains(strings.ToLower(value), "no data") {
			continue
		}
		if field, ok := CanonicalField(label); ok {
			canonical[field] = value
		} else {
			canonical[normalizeLabel(label)] = value
		}
	}
	item.ApplyMissing(canonical)
}

// extractLabeledTables is the primary detail strategy: pair header cells
// with value cells across every table on the page. Known labels become
// canonical fields; unknown ones are kept under their normalized label. The
// third return is the page text flattened to "label: value" lines for the
// AI pass.
func extractLabeledTables(doc *goquery.Document) (fields map[string]string, extras map[string]string, pageText string) {
	fields = map[string]string{}
	extras = map[string]string{}
	var lines []string

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			labels := row.Find("th")
			values := row.Find("td")
			if labels.Length() > 0 {
				labels.Each(func(i int, th *goquery.Selection) {
					if i < values.Length() {
						recordPair(fields, extras, &lines, th.Text(), cellValue(values.Eq(i)))
					}
				})
				return
			}
			// Some revisions render labels as the first td of each pair.
			if values.Length() >= 2 {
				label := cleanText(values.Eq(0).Text())
				if len([]rune(label)) > 0 && len([]rune(label)) <= 30 {
					recordPair(fields, extras, &lines, label, cellValue(values.Eq(1)))
				}
			}
		})
	})

	return fields, extras, strings.Join(lines, "\n")
}

func recordPair(fields, extras map[string]string, lines *[]string, rawLabel, value string) {
	label := cleanText(rawLabel)
	value = cleanText(value)
	if label == "" || value == "" {
		return
	}
	*lines = append(*lines, label+": "+value)
	if field, ok := CanonicalField(label); ok {
		if _, taken := fields[field]; !taken {
			fields[field] = value
		}
		return
	}
	key := normalizeLabel(label)
	if _, taken := extras[key]; !taken {
		extras[key] = value
	}
}

// cellValue reads a value cell, falling back to form-control values when the
// cell renders its content through an input.
func cellValue(cell *goquery.Selection) string {
	if text := cleanText(cell.Text()); text != "" {
		return text
	}
	if v, ok := cell.Find("input").First().Attr("value"); ok {
		return cleanText(v)
	}
	return ""
}

// scanIdentifiers is the secondary detail strategy: elements whose ids carry
// a field hint hold values the tables missed on some revisions. It only
// fills canonical fields still empty after the table pass.
func scanIdentifiers(doc *goquery.Document, fields map[string]string) {
	hints := map[string]string{
		"bidPbancNo": FieldBidNumber,
		"bidPbancNm": FieldTitle,
		"dminsttNm":  FieldOrganization,
		"bddprEndDt": FieldDateEnd,
		"pbancDt":    FieldDateStart,
	}
	for fragment, field := range hints {
		if _, taken := fields[field]; taken {
			continue
		}
		node := doc.Find("[id*='" + fragment + "']").First()
		if node.Length() == 0 {
			continue
		}
		value := cleanText(node.Text())
		if value == "" {
			if v, ok := node.Attr("value"); ok {
				value = cleanText(v)
			}
		}
		if value != "" {
			fields[field] = value
		}
	}
}

// collectAttachments lists downloadable files as "name (href)" entries.
func collectAttachments(doc *goquery.Document) []string {
	var out []string
	seen := map[string]bool{}
	for _, sel := range attachmentSelectors {
		doc.Find(sel).Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			if href == "" || seen[href] {
				return
			}
			seen[href] = true
			name := cleanText(link.Text())
			if name == "" {
				name = "attachment"
			}
			out = append(out, name+" ("+href+")")
		})
	}
	return out
}

func itemNow(item *BidItem) time.Time {
	if !item.ExtractedAt.IsZero() {
		return item.ExtractedAt
	}
	return time.Now()
}
