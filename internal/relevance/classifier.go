// Package relevance decides whether a listing matches the user's
// natural-language interest prompt by asking an LLM.
//
// Failures fail open: a listing whose classification errors out is kept and
// marked AcceptedByFallback, so callers can tell it apart from a real match.
package relevance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go-crowdworks-watcher/internal/ai"
	"go-crowdworks-watcher/internal/cache"
	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Verdict int

const (
	Rejected Verdict = iota
	Accepted
	AcceptedByFallback
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case AcceptedByFallback:
		return "accepted_by_fallback"
	default:
		return "rejected"
	}
}

// Decision is the outcome for one listing. Err is set only for
// AcceptedByFallback.
type Decision struct {
	Verdict Verdict
	Reason  string
	Err     error
}

func (d Decision) Included() bool {
	return d.Verdict != Rejected
}

const systemPrompt = `あなたは案件の審査員です。与えられた条件に基づいて案件を評価してください。
レスポンスは次のJSON形式のみで返してください:
{
    "decision": "yes" または "no",
    "reason": "判断理由を1文で"
}`

func buildUserPrompt(cfg models.FilterConfig, l models.Listing) string {
	return fmt.Sprintf("次の案件が条件を満たすか判断してください。条件: %s\n\n案件情報:\nタイトル: %s\n予算: %s\nクライアント: %s\n",
		cfg.Prompt, l.Title, l.Budget, l.Client)
}

type Classifier struct {
	client      ai.Client
	cfg         models.FilterConfig
	cache       cache.Cache
	concurrency int
	log         *zap.Logger
}

type Option func(*Classifier)

// WithCache stores genuine decisions so unchanged listings are not re-sent.
func WithCache(c cache.Cache) Option {
	return func(cl *Classifier) { cl.cache = c }
}

// WithConcurrency bounds the number of in-flight LLM calls.
func WithConcurrency(n int) Option {
	return func(cl *Classifier) {
		if n > 0 {
			cl.concurrency = n
		}
	}
}

func NewClassifier(client ai.Client, cfg models.FilterConfig, log *zap.Logger, opts ...Option) *Classifier {
	c := &Classifier{
		client:      client,
		cfg:         cfg,
		concurrency: 1,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never returns an error; failures become AcceptedByFallback.
func (c *Classifier) Classify(ctx context.Context, l models.Listing) Decision {
	key := c.cacheKey(l)
	if d, ok := c.cached(ctx, key); ok {
		return d
	}

	content, err := c.client.Complete(ctx, ai.CompletionRequest{
		Model: c.cfg.Model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(c.cfg, l)},
		},
		Temperature:  c.cfg.Temperature,
		MaxTokens:    c.cfg.MaxTokens,
		JSONResponse: true,
	})
	if err != nil {
		return fallback(domainerrors.Unavailable("relevance call failed", err))
	}

	d, err := parseDecision(content)
	if err != nil {
		return fallback(domainerrors.Classification("unparseable relevance response", err))
	}
	c.store(ctx, key, d)
	return d
}

// Filter classifies every listing and returns the included ones in input
// order, each carrying its gpt_reason. decisions is index-aligned with
// listings.
func (c *Classifier) Filter(ctx context.Context, listings []models.Listing) (accepted []models.Listing, decisions []Decision) {
	total := len(listings)
	c.log.Info("🤖 Relevance filtering started",
		zap.Int("total", total),
		zap.String("model", c.cfg.Model),
		zap.String("prompt", c.cfg.Prompt))

	decisions = make([]Decision, total)
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, l := range listings {
		g.Go(func() error {
			c.log.Info("⚖️ Classifying listing", zap.Int("index", i+1), zap.Int("total", total), zap.String("title", l.Title))
			d := c.Classify(ctx, l)
			c.logDecision(l, d)
			decisions[i] = d
			return nil
		})
	}
	_ = g.Wait()

	var fallbacks int
	for i, d := range decisions {
		if !d.Included() {
			continue
		}
		if d.Verdict == AcceptedByFallback {
			fallbacks++
		}
		l := listings[i]
		l.GPTReason = d.Reason
		accepted = append(accepted, l)
	}

	c.log.Info("🤖 Relevance filtering finished",
		zap.Int("accepted", len(accepted)),
		zap.Int("total", total),
		zap.Int("fallbacks", fallbacks))
	return accepted, decisions
}

func (c *Classifier) logDecision(l models.Listing, d Decision) {
	switch d.Verdict {
	case Accepted:
		c.log.Info("✅ Listing matches", zap.String("title", l.Title), zap.String("reason", d.Reason))
	case Rejected:
		c.log.Info("✗ Listing does not match", zap.String("title", l.Title), zap.String("reason", d.Reason))
	case AcceptedByFallback:
		c.log.Warn("⚠️ Relevance check failed, keeping listing",
			zap.String("title", l.Title),
			zap.String("url", l.URL),
			zap.Error(d.Err))
	}
}

type llmAnswer struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

var errNoDecision = errors.New("response has no decision field")

func parseDecision(content string) (Decision, error) {
	var answer llmAnswer
	if err := json.Unmarshal([]byte(ai.CleanMarkdownJSON(content)), &answer); err != nil {
		return Decision{}, err
	}
	decision := strings.TrimSpace(answer.Decision)
	if decision == "" {
		return Decision{}, errNoDecision
	}
	if strings.EqualFold(decision, "yes") {
		return Decision{Verdict: Accepted, Reason: answer.Reason}, nil
	}
	return Decision{Verdict: Rejected, Reason: answer.Reason}, nil
}

func fallback(err error) Decision {
	return Decision{
		Verdict: AcceptedByFallback,
		Reason:  fmt.Sprintf("included by fallback: relevance check failed (%v)", err),
		Err:     err,
	}
}

type cachedDecision struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
}

func (c *Classifier) cacheKey(l models.Listing) string {
	h := sha256.New()
	for _, part := range []string{
		c.cfg.Model,
		fmt.Sprintf("%g", c.cfg.Temperature),
		c.cfg.Prompt,
		l.Title,
		l.Budget,
		l.Client,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "relevance:" + hex.EncodeToString(h.Sum(nil))
}

func (c *Classifier) cached(ctx context.Context, key string) (Decision, bool) {
	if c.cache == nil {
		return Decision{}, false
	}
	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			c.log.Warn("⚠️ Decision cache read failed", zap.Error(err))
		}
		return Decision{}, false
	}
	var cd cachedDecision
	if err := json.Unmarshal(raw, &cd); err != nil || cd.Verdict == AcceptedByFallback {
		return Decision{}, false
	}
	return Decision{Verdict: cd.Verdict, Reason: cd.Reason}, true
}

func (c *Classifier) store(ctx context.Context, key string, d Decision) {
	if c.cache == nil || d.Verdict == AcceptedByFallback {
		return
	}
	raw, err := json.Marshal(cachedDecision{Verdict: d.Verdict, Reason: d.Reason})
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, cache.DefaultTTL); err != nil {
		c.log.Warn("⚠️ Decision cache write failed", zap.Error(err))
	}
}
