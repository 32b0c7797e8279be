package g2b

import "strings"

// columnRole classifies a list-table column by its header text.
type columnRole int

const (
	roleNone columnRole = iota
	roleTitle
	roleBidNumber
	roleOrganization
	roleDateStart
	roleDateEnd
)

// Header synonyms for column-role inference. The portal renders Korean
// headers; English variants cover test fixtures and future localization.
var columnSynonyms = []struct {
	role  columnRole
	names []string
}{
	{roleTitle, []string{"공고명", "입찰건명", "사업명", "건명", "title", "notice name"}},
	{roleBidNumber, []string{"공고번호", "입찰공고번호", "공고 번호", "bid number", "notice number", "no."}},
	{roleOrganization, []string{"공고기관", "수요기관", "발주기관", "기관명", "organization", "agency"}},
	{roleDateStart, []string{"게시일", "공고일", "입력일", "등록일", "posted", "start date"}},
	{roleDateEnd, []string{"마감일", "입찰마감", "마감일시", "締切", "deadline", "closing", "end date"}},
}

// matchColumnRole maps a header cell's text onto a column role by substring
// match against the synonym sets. Longer synonyms are listed first within a
// role so "마감일시" wins over "마감일" where it matters.
func matchColumnRole(header string) columnRole {
	h := normalizeLabel(header)
	if h == "" {
		return roleNone
	}
	for _, entry := range columnSynonyms {
		for _, name := range entry.names {
			if strings.Contains(h, normalizeLabel(name)) {
				return entry.role
			}
		}
	}
	return roleNone
}

// Detail-page label synonyms, keyed by the canonical field they map onto.
var detailSynonyms = []struct {
	field string
	names []string
}{
	{FieldBidNumber, []string{"입찰공고번호", "공고번호", "bid number", "notice number"}},
	{FieldTitle, []string{"입찰건명", "공고명", "사업명", "bid title"}},
	{FieldOrganization, []string{"공고기관", "수요기관", "발주기관", "organization", "agency"}},
	{FieldBidMethod, []string{"입찰방식", "입찰방법", "bid method"}},
	{FieldBidType, []string{"낙찰자선정방법", "계약방법", "계약방식", "award method", "contract method"}},
	{FieldEstimatedPrice, []string{"추정가격", "기초금액", "예정가격", "예산금액", "사업금액", "estimated price", "budget"}},
	{FieldContractPeriod, []string{"계약기간", "납품기한", "이행기간", "사업기간", "contract period", "delivery deadline"}},
	{FieldDeliveryLocation, []string{"납품장소", "이행장소", "delivery location"}},
	{FieldRequirements, []string{"입찰참가자격", "참가자격", "자격요건", "qualification", "requirements"}},
	{FieldContact, []string{"담당자", "연락처", "전화번호", "contact", "phone"}},
	{FieldDateStart, []string{"게시일시", "공고일시", "게시일", "posted date"}},
	{FieldDateEnd, []string{"입찰마감일시", "마감일시", "입찰마감", "마감일", "closing date", "deadline"}},
}

// CanonicalField normalizes a raw page label to a canonical field name.
// The second return is false when the label matches nothing known; callers
// then keep the value under the normalized raw label in AdditionalInfo.
func CanonicalField(label string) (string, bool) {
	l := normalizeLabel(label)
	if l == "" {
		return "", false
	}
	for _, entry := range detailSynonyms {
		for _, name := range entry.names {
			if strings.Contains(l, normalizeLabel(name)) {
				return entry.field, true
			}
		}
	}
	return "", false
}

// normalizeLabel lowercases and strips the decoration labels pick up on the
// page: whitespace, colons, asterisks marking required fields.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', ':', '*', '·':
			return -1
		}
		return r
	}, s)
}
