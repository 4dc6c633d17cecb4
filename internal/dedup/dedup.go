package dedup

import (
	"strings"
	"time"

	"go-crowdworks-watcher/internal/models"

	"go.uber.org/zap"
)

// postedDateLayouts are tried in order. Values without an offset are read as UTC.
var postedDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParsePostedDate parses an ISO-8601 posted_date. It reports false for nil,
// blank or unrecognised values and never panics.
func ParsePostedDate(s *string) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range postedDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Detector selects the listings that are new or updated relative to the
// previous raw snapshot.
type Detector struct {
	log *zap.Logger
}

func NewDetector(log *zap.Logger) *Detector {
	return &Detector{log: log}
}

// Delta returns, in the order of current, every listing whose URL is absent
// from previous or whose posted_date is strictly later than the previous one.
//
// When only the previous posted_date is missing or unparseable, a parseable
// new date counts as an update. When the new posted_date is missing or
// unparseable the listing is not an update, since nothing shows it changed.
func (d *Detector) Delta(current, previous []models.Listing) []models.Listing {
	prevByURL := make(map[string]models.Listing, len(previous))
	for _, l := range previous {
		prevByURL[l.URL] = l
	}

	var added, updated int
	delta := make([]models.Listing, 0, len(current))
	for _, l := range current {
		prev, seen := prevByURL[l.URL]
		if !seen {
			d.log.Info("🆕 New listing", zap.String("title", l.Title), zap.String("url", l.URL))
			delta = append(delta, l)
			added++
			continue
		}
		if isUpdated(prev, l) {
			d.log.Info("🔄 Updated listing", zap.String("title", l.Title), zap.String("url", l.URL))
			delta = append(delta, l)
			updated++
		}
	}

	d.log.Info("🔍 Delta detected",
		zap.Int("current", len(current)),
		zap.Int("previous", len(previous)),
		zap.Int("new", added),
		zap.Int("updated", updated))
	return delta
}

func isUpdated(prev, next models.Listing) bool {
	nextDate, ok := ParsePostedDate(next.PostedDate)
	if !ok {
		return false
	}
	prevDate, ok := ParsePostedDate(prev.PostedDate)
	if !ok {
		return true
	}
	return nextDate.After(prevDate)
}
