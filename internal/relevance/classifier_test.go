package relevance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-crowdworks-watcher/internal/ai"
	"go-crowdworks-watcher/internal/cache"
	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	calls   atomic.Int32
	respond func(req ai.CompletionRequest) (string, error)
}

func (f *fakeClient) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	f.calls.Add(1)
	return f.respond(req)
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (m *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	return v, nil
}

func (m *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryCache) Close() error { return nil }

var testFilter = models.FilterConfig{
	Model:       "gpt-4o-mini",
	Prompt:      "予算が10,000以上のもののみピックする",
	Temperature: 0,
	MaxTokens:   100,
}

func listing(title, budget string) models.Listing {
	return models.Listing{
		Title:  title,
		URL:    "https://crowdworks.jp/public/jobs/" + title,
		Budget: budget,
		Client: "Acme",
	}
}

// budgetJudge answers the way a model would for the default prompt.
func budgetJudge(req ai.CompletionRequest) (string, error) {
	user := req.Messages[1].Content
	if strings.Contains(user, "予算: 15,000円") {
		return "```json\n{\"decision\": \"yes\", \"reason\": \"予算が条件を満たす\"}\n```", nil
	}
	return `{"decision": "no", "reason": "予算が不足"}`, nil
}

func TestClassify_Verdicts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
		want    Verdict
		reason  string
		errType domainerrors.ErrorType
	}{
		{"yes", `{"decision":"yes","reason":"fits"}`, nil, Accepted, "fits", ""},
		{"yes mixed case", `{"decision":" YES ","reason":"fits"}`, nil, Accepted, "fits", ""},
		{"no", `{"decision":"no","reason":"too cheap"}`, nil, Rejected, "too cheap", ""},
		{"other value", `{"decision":"maybe","reason":"?"}`, nil, Rejected, "?", ""},
		{"malformed", `not json at all`, nil, AcceptedByFallback, "", domainerrors.ErrTypeClassification},
		{"missing decision", `{"reason":"x"}`, nil, AcceptedByFallback, "", domainerrors.ErrTypeClassification},
		{"call error", "", errors.New("connection reset"), AcceptedByFallback, "", domainerrors.ErrTypeUnavailable},
		{"timeout", "", context.DeadlineExceeded, AcceptedByFallback, "", domainerrors.ErrTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{respond: func(ai.CompletionRequest) (string, error) { return tt.content, tt.err }}
			c := NewClassifier(client, testFilter, zap.NewNop())

			d := c.Classify(context.Background(), listing("job", "5,000円"))

			assert.Equal(t, tt.want, d.Verdict)
			if tt.want == AcceptedByFallback {
				assert.True(t, d.Included())
				require.Error(t, d.Err)
				assert.True(t, domainerrors.IsType(d.Err, tt.errType))
				assert.Contains(t, d.Reason, "fallback")
				return
			}
			assert.NoError(t, d.Err)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestClassify_RequestShape(t *testing.T) {
	var got ai.CompletionRequest
	client := &fakeClient{respond: func(req ai.CompletionRequest) (string, error) {
		got = req
		return `{"decision":"no","reason":"x"}`, nil
	}}
	c := NewClassifier(client, testFilter, zap.NewNop())

	c.Classify(context.Background(), listing("Go開発", "15,000円"))

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 100, got.MaxTokens)
	assert.True(t, got.JSONResponse)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, `"decision"`)
	assert.Contains(t, got.Messages[1].Content, testFilter.Prompt)
	assert.Contains(t, got.Messages[1].Content, "タイトル: Go開発")
	assert.Contains(t, got.Messages[1].Content, "予算: 15,000円")
	assert.Contains(t, got.Messages[1].Content, "クライアント: Acme")
}

func TestFilter_BudgetPrompt(t *testing.T) {
	client := &fakeClient{respond: budgetJudge}
	c := NewClassifier(client, testFilter, zap.NewNop())

	accepted, decisions := c.Filter(context.Background(), []models.Listing{
		listing("rich", "15,000円"),
		listing("cheap", "5,000円"),
	})

	require.Len(t, accepted, 1)
	assert.Equal(t, "rich", accepted[0].Title)
	assert.Equal(t, "予算が条件を満たす", accepted[0].GPTReason)
	require.Len(t, decisions, 2)
	assert.Equal(t, Rejected, decisions[1].Verdict)
}

func TestFilter_FailOpen(t *testing.T) {
	client := &fakeClient{respond: func(ai.CompletionRequest) (string, error) {
		return "", errors.New("service unavailable")
	}}
	c := NewClassifier(client, testFilter, zap.NewNop())

	accepted, decisions := c.Filter(context.Background(), []models.Listing{listing("a", "1円")})

	require.Len(t, accepted, 1)
	assert.Equal(t, AcceptedByFallback, decisions[0].Verdict)
	assert.Contains(t, accepted[0].GPTReason, "service unavailable")
}

func TestFilter_PreservesOrderUnderConcurrency(t *testing.T) {
	client := &fakeClient{respond: func(req ai.CompletionRequest) (string, error) {
		// later titles answer faster
		if strings.Contains(req.Messages[1].Content, "タイトル: 0") {
			time.Sleep(30 * time.Millisecond)
		}
		return `{"decision":"yes","reason":"ok"}`, nil
	}}
	c := NewClassifier(client, testFilter, zap.NewNop(), WithConcurrency(4))

	var in []models.Listing
	for _, title := range []string{"0", "1", "2", "3", "4", "5"} {
		in = append(in, listing(title, "10,000円"))
	}

	accepted, _ := c.Filter(context.Background(), in)

	require.Len(t, accepted, len(in))
	for i := range in {
		assert.Equal(t, in[i].Title, accepted[i].Title)
	}
}

func TestFilter_Empty(t *testing.T) {
	client := &fakeClient{respond: budgetJudge}
	accepted, decisions := NewClassifier(client, testFilter, zap.NewNop()).Filter(context.Background(), nil)
	assert.Empty(t, accepted)
	assert.Empty(t, decisions)
	assert.Zero(t, client.calls.Load())
}

func TestClassify_CachesGenuineDecisions(t *testing.T) {
	mc := newMemoryCache()
	client := &fakeClient{respond: budgetJudge}
	c := NewClassifier(client, testFilter, zap.NewNop(), WithCache(mc))
	l := listing("rich", "15,000円")

	first := c.Classify(context.Background(), l)
	second := c.Classify(context.Background(), l)

	assert.Equal(t, Accepted, first.Verdict)
	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, client.calls.Load())
}

func TestClassify_DoesNotCacheFallbacks(t *testing.T) {
	mc := newMemoryCache()
	client := &fakeClient{respond: func(ai.CompletionRequest) (string, error) { return "", errors.New("down") }}
	c := NewClassifier(client, testFilter, zap.NewNop(), WithCache(mc))
	l := listing("a", "1円")

	c.Classify(context.Background(), l)
	c.Classify(context.Background(), l)

	assert.EqualValues(t, 2, client.calls.Load())
	assert.Empty(t, mc.data)
}

func TestCacheKey_DependsOnPrompt(t *testing.T) {
	l := listing("a", "1円")
	other := testFilter
	other.Prompt = "別の条件"

	k1 := NewClassifier(nil, testFilter, zap.NewNop()).cacheKey(l)
	k2 := NewClassifier(nil, other, zap.NewNop()).cacheKey(l)

	assert.NotEqual(t, k1, k2)
}
