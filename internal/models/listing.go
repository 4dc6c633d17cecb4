package models

import "time"

const (
	BudgetUnset       = "予算未設定"
	ClientUndisclosed = "クライアント名非公開"
)

// Listing is one job post captured from the search-results page.
// Timestamps are kept as the ISO-8601 strings they were written with so a
// snapshot re-read from disk is identical to the one that was written.
type Listing struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Budget     string  `json:"budget"`
	Client     string  `json:"client"`
	PostedDate *string `json:"posted_date"`
	CrawledAt  string  `json:"crawled_at"`

	DetailDescription string `json:"detail_description,omitempty"`
	CrawledDetailAt   string `json:"crawled_detail_at,omitempty"`
	GPTReason         string `json:"gpt_reason,omitempty"`
}

// Detail is the augmentation produced by the detail page fetch.
// The zero value means nothing could be fetched.
type Detail struct {
	Description string
	CrawledAt   string
}

func (d Detail) IsZero() bool {
	return d.Description == ""
}

// WithDetail returns a copy of l carrying d. An empty detail leaves both
// detail fields unset.
func (l Listing) WithDetail(d Detail) Listing {
	if d.IsZero() {
		return l
	}
	l.DetailDescription = d.Description
	l.CrawledDetailAt = d.CrawledAt
	return l
}

// FilterConfig drives the relevance classifier.
type FilterConfig struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// StringPtr is a small helper for optional string fields.
func StringPtr(s string) *string {
	return &s
}

// TimestampLayout is the ISO-8601 layout used for crawled_at and
// crawled_detail_at.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}
