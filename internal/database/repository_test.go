package database

import (
	"context"
	"os"
	"testing"
	"time"

	"go-crowdworks-watcher/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() models.RunResult {
	raw := []models.Listing{
		{Title: "A", URL: "https://crowdworks.jp/public/jobs/1", Budget: "5,000円", Client: "x", CrawledAt: "t"},
		{Title: "B", URL: "https://crowdworks.jp/public/jobs/2", Budget: "20,000円", Client: "y", CrawledAt: "t",
			PostedDate: models.StringPtr("2024-02-01T00:00:00")},
	}
	filtered := []models.Listing{raw[1]}
	filtered[0].GPTReason = "予算が条件を満たす"
	filtered[0].DetailDescription = "詳細"
	filtered[0].CrawledDetailAt = "t2"

	return models.RunResult{
		RunID:    uuid.New(),
		RunAt:    time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Raw:      raw,
		Filtered: filtered,
	}
}

func TestRowsFor(t *testing.T) {
	result := sampleResult()
	rows := RowsFor(result)

	require.Len(t, rows, 2)
	assert.False(t, rows[0].Relevant)
	assert.Empty(t, rows[0].GPTReason)
	assert.True(t, rows[1].Relevant)
	assert.Equal(t, "予算が条件を満たす", rows[1].GPTReason)
	assert.Equal(t, "詳細", rows[1].DetailDescription)
}

func TestRowsFor_Empty(t *testing.T) {
	assert.Empty(t, RowsFor(models.RunResult{}))
}

func TestRepository_SaveRun(t *testing.T) {
	url := os.Getenv("DATABASE_TEST_URL")
	if testing.Short() || url == "" {
		t.Skip("DATABASE_TEST_URL not set")
	}

	ctx := context.Background()
	repo, err := ConnectDB(ctx, url)
	require.NoError(t, err)
	defer repo.Close()

	require.NoError(t, repo.EnsureSchema(ctx))
	require.NoError(t, repo.SaveRun(ctx, sampleResult()))
	// a second run upserts the same urls
	require.NoError(t, repo.SaveRun(ctx, sampleResult()))
}
