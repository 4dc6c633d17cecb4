package dedup

import (
	"testing"
	"time"

	"go-crowdworks-watcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func listing(url string, posted *string) models.Listing {
	return models.Listing{Title: "job " + url, URL: url, PostedDate: posted}
}

func urls(ls []models.Listing) []string {
	out := make([]string, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.URL)
	}
	return out
}

func TestDelta_Scenario(t *testing.T) {
	d := NewDetector(zap.NewNop())
	previous := []models.Listing{listing("A", models.StringPtr("2024-01-01T00:00:00"))}
	current := []models.Listing{
		listing("A", models.StringPtr("2024-01-01T00:00:00")),
		listing("B", models.StringPtr("2024-02-01T00:00:00")),
	}

	assert.Equal(t, []string{"B"}, urls(d.Delta(current, previous)))
}

func TestDelta_PostedDateComparison(t *testing.T) {
	d := NewDetector(zap.NewNop())

	tests := []struct {
		name     string
		prev     *string
		next     *string
		expected bool
	}{
		{"later is update", models.StringPtr("2024-01-01T00:00:00"), models.StringPtr("2024-01-01T00:00:01"), true},
		{"equal is not update", models.StringPtr("2024-01-01T00:00:00"), models.StringPtr("2024-01-01T00:00:00"), false},
		{"earlier is not update", models.StringPtr("2024-01-02T00:00:00"), models.StringPtr("2024-01-01T00:00:00"), false},
		{"offsets compared as instants", models.StringPtr("2024-01-01T10:00:00+09:00"), models.StringPtr("2024-01-01T02:00:00Z"), true},
		{"both null", nil, nil, false},
		{"previous null", nil, models.StringPtr("2024-01-01T00:00:00"), true},
		{"next null", models.StringPtr("2024-01-01T00:00:00"), nil, false},
		{"previous garbage", models.StringPtr("昨日"), models.StringPtr("2024-01-01"), true},
		{"next garbage", models.StringPtr("2024-01-01"), models.StringPtr("not a date"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			previous := []models.Listing{listing("A", tt.prev)}
			current := []models.Listing{listing("A", tt.next)}

			var delta []models.Listing
			assert.NotPanics(t, func() { delta = d.Delta(current, previous) })
			assert.Equal(t, tt.expected, len(delta) == 1)
		})
	}
}

func TestDelta_NoPreviousSnapshot(t *testing.T) {
	d := NewDetector(zap.NewNop())
	current := []models.Listing{listing("C", nil), listing("A", nil), listing("B", nil)}

	assert.Equal(t, []string{"C", "A", "B"}, urls(d.Delta(current, nil)))
}

func TestDelta_PreservesOrder(t *testing.T) {
	d := NewDetector(zap.NewNop())
	previous := []models.Listing{
		listing("B", models.StringPtr("2024-01-01")),
		listing("D", models.StringPtr("2024-01-01")),
	}
	current := []models.Listing{
		listing("D", models.StringPtr("2024-01-05")),
		listing("A", nil),
		listing("B", models.StringPtr("2024-01-01")),
		listing("C", nil),
	}

	assert.Equal(t, []string{"D", "A", "C"}, urls(d.Delta(current, previous)))
}

func TestParsePostedDate(t *testing.T) {
	got, ok := ParsePostedDate(models.StringPtr("2024-02-01T10:00:00+09:00"))
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC)))

	got, ok = ParsePostedDate(models.StringPtr(" 2024-02-01T10:00:00.123456 "))
	require.True(t, ok)
	assert.Equal(t, 123456000, got.Nanosecond())

	_, ok = ParsePostedDate(models.StringPtr(""))
	assert.False(t, ok)
	_, ok = ParsePostedDate(nil)
	assert.False(t, ok)
}
