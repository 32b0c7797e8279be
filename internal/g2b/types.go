package g2b

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors surfaced by the crawl core.
var (
	// ErrStateUnreachable reports that a target page state could not be
	// confirmed within the retry budget.
	ErrStateUnreachable = errors.New("page state unreachable")
	// ErrNoRowLocator reports a candidate without a usable detail locator.
	ErrNoRowLocator = errors.New("candidate has no row locator")
)

// BidStatus classifies a notice by its end date.
type BidStatus string

// Bid status values.
const (
	StatusOpen      BidStatus = "open"
	StatusClosed    BidStatus = "closed"
	StatusAwarded   BidStatus = "awarded"
	StatusCancelled BidStatus = "cancelled"
	StatusUnknown   BidStatus = "unknown"
)

// Canonical field names that raw page labels are normalized onto.
const (
	FieldBidNumber        = "bid_number"
	FieldTitle            = "title"
	FieldOrganization     = "organization"
	FieldBidMethod        = "bid_method"
	FieldBidType          = "bid_type"
	FieldEstimatedPrice   = "estimated_price"
	FieldContractPeriod   = "contract_period"
	FieldDeliveryLocation = "delivery_location"
	FieldRequirements     = "requirements"
	FieldContact          = "contact_info"
	FieldDateStart        = "date_start"
	FieldDateEnd          = "date_end"
)

// BidItem is the single canonical representation of a bid notice. List
// extraction creates it partially populated; detail extraction merges into
// it; once a job snapshot is persisted it is never mutated again.
type BidItem struct {
	ID             string            `json:"id"`
	BidNumber      string            `json:"bid_number"`
	Title          string            `json:"title"`
	Organization   string            `json:"organization,omitempty"`
	BidMethod      string            `json:"bid_method,omitempty"`
	BidType        string            `json:"bid_type,omitempty"`
	DateStart      string            `json:"date_start,omitempty"`
	DateEnd        string            `json:"date_end,omitempty"`
	Status         BidStatus         `json:"status"`
	DetailURL      string            `json:"detail_url,omitempty"`
	EstimatedPrice string            `json:"estimated_price,omitempty"`
	ContactInfo    string            `json:"contact_info,omitempty"`
	Requirements   string            `json:"requirements,omitempty"`
	AdditionalInfo map[string]string `json:"additional_info,omitempty"`
	Error          string            `json:"error,omitempty"`
	Keyword        string            `json:"keyword,omitempty"`
	Row            Locator           `json:"row_locator,omitempty"`
	ExtractedAt    time.Time         `json:"extracted_at"`
}

// EnsureID assigns a generated id when none was extracted.
func (b *BidItem) EnsureID() {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
}

// Key identifies a notice for deduplication.
func (b *BidItem) Key() string {
	return b.BidNumber + "\x1f" + b.Title
}

// AddInfo records an unschematized field, first write wins.
func (b *BidItem) AddInfo(key, value string) {
	if key == "" || value == "" {
		return
	}
	if b.AdditionalInfo == nil {
		b.AdditionalInfo = map[string]string{}
	}
	if _, ok := b.AdditionalInfo[key]; !ok {
		b.AdditionalInfo[key] = value
	}
}

// Apply merges canonically named fields into the item. Non-empty incoming
// values overwrite: structured detail extraction is more trustworthy than the
// partial list row it refines. Unknown keys land in AdditionalInfo.
func (b *BidItem) Apply(fields map[string]string) {
	for key, value := range fields {
		b.setField(key, value, true)
	}
}

// ApplyMissing merges fields without overwriting anything already populated.
// This is the AI-enrichment path: structured extraction always wins.
func (b *BidItem) ApplyMissing(fields map[string]string) {
	for key, value := range fields {
		b.setField(key, value, false)
	}
}

func (b *BidItem) setField(key, value string, overwrite bool) {
	if value == "" {
		return
	}
	slot, ok := b.fieldSlot(key)
	if !ok {
		b.AddInfo(key, value)
		return
	}
	if *slot == "" || overwrite {
		*slot = value
	}
}

func (b *BidItem) fieldSlot(key string) (*string, bool) {
	switch key {
	case FieldBidNumber:
		return &b.BidNumber, true
	case FieldTitle:
		return &b.Title, true
	case FieldOrganization:
		return &b.Organization, true
	case FieldBidMethod:
		return &b.BidMethod, true
	case FieldBidType:
		return &b.BidType, true
	case FieldEstimatedPrice:
		return &b.EstimatedPrice, true
	case FieldContact:
		return &b.ContactInfo, true
	case FieldRequirements:
		return &b.Requirements, true
	case FieldDateStart:
		return &b.DateStart, true
	case FieldDateEnd:
		return &b.DateEnd, true
	default:
		return nil, false
	}
}
