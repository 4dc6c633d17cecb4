// Package pipeline runs one harvest: login, extract, delta, relevance filter,
// detail enrichment and snapshot output, then hands the result to the sinks.
package pipeline

import (
	"context"
	"errors"
	"time"

	"go-crowdworks-watcher/internal/dedup"
	domainerrors "go-crowdworks-watcher/internal/errors"
	"go-crowdworks-watcher/internal/models"
	"go-crowdworks-watcher/internal/relevance"
	"go-crowdworks-watcher/internal/scraper"
	"go-crowdworks-watcher/internal/snapshot"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink receives the result of a run after its snapshot files are written.
// Sink errors are logged and never fail the run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, result models.RunResult) error
}

// Alerter is told about runs that end in an error.
type Alerter interface {
	SendError(err error) error
}

// OpenSessionFunc acquires the browser session for one run.
type OpenSessionFunc func(ctx context.Context) (scraper.Session, error)

// ClassifierFactory builds the classifier for one relevance batch. release
// frees whatever the classifier holds and is always non-nil.
type ClassifierFactory func(ctx context.Context) (classifier *relevance.Classifier, release func())

type Pipeline struct {
	open       OpenSessionFunc
	classifier ClassifierFactory
	detector   *dedup.Detector
	writer     *snapshot.Writer
	sinks      []Sink
	alerter    Alerter
	log        *zap.Logger
	now        func() time.Time
}

type Option func(*Pipeline)

func WithSinks(sinks ...Sink) Option {
	return func(p *Pipeline) { p.sinks = append(p.sinks, sinks...) }
}

// WithAlerter reports failed runs. Cancelled runs are not reported.
func WithAlerter(a Alerter) Option {
	return func(p *Pipeline) { p.alerter = a }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(open OpenSessionFunc, classifier ClassifierFactory, writer *snapshot.Writer, log *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		open:       open,
		classifier: classifier,
		detector:   dedup.NewDetector(log),
		writer:     writer,
		log:        log,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one harvest. It returns an AUTH error when login fails, in
// which case nothing is written. An empty extraction writes empty snapshots;
// an empty delta writes nothing so the previous snapshot stays the baseline.
func (p *Pipeline) Run(ctx context.Context) (models.RunResult, error) {
	result := models.RunResult{RunID: uuid.New(), RunAt: p.now()}
	log := p.log.With(zap.String("run_id", result.RunID.String()))
	log.Info("🚀 Crawl started")

	result, err := p.run(ctx, log, result)
	if err != nil && p.alerter != nil && ctx.Err() == nil {
		if alertErr := p.alerter.SendError(err); alertErr != nil {
			log.Warn("⚠️ Failed to send failure alert", zap.Error(alertErr))
		}
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, result models.RunResult) (models.RunResult, error) {
	session, err := p.open(ctx)
	if err != nil {
		return result, domainerrors.Unavailable("browser session could not start", err)
	}
	defer session.Close()

	if !session.Login(ctx) {
		log.Error("❌ Login failed, aborting run")
		return result, domainerrors.Auth("login failed", nil)
	}

	listings := session.Listings(ctx)
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(listings) == 0 {
		log.Warn("📭 No listings extracted, writing empty snapshots")
		return p.write(ctx, log, result, nil, nil)
	}

	delta := p.detector.Delta(listings, p.previous(log))
	if len(delta) == 0 {
		log.Info("😴 No new or updated listings, snapshot not written")
		return result, nil
	}

	filtered := p.filter(ctx, delta)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	filtered = p.enrich(ctx, log, session, filtered)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	return p.write(ctx, log, result, delta, filtered)
}

func (p *Pipeline) previous(log *zap.Logger) []models.Listing {
	path, err := snapshot.LatestRaw(p.writer.Dir())
	if err != nil {
		if !errors.Is(err, snapshot.ErrNoSnapshot) {
			log.Warn("⚠️ Could not look up previous snapshot", zap.Error(err))
		}
		log.Info("📂 No previous snapshot, every listing is new")
		return nil
	}

	previous, err := snapshot.Read(path)
	if err != nil {
		log.Warn("⚠️ Previous snapshot unreadable, every listing is new", zap.String("path", path), zap.Error(err))
		return nil
	}
	log.Info("📂 Previous snapshot loaded", zap.String("path", path), zap.Int("count", len(previous)))
	return previous
}

func (p *Pipeline) filter(ctx context.Context, delta []models.Listing) []models.Listing {
	classifier, release := p.classifier(ctx)
	defer release()

	filtered, _ := classifier.Filter(ctx, delta)
	return filtered
}

func (p *Pipeline) enrich(ctx context.Context, log *zap.Logger, session scraper.Session, filtered []models.Listing) []models.Listing {
	enriched := make([]models.Listing, len(filtered))
	for i, l := range filtered {
		if ctx.Err() != nil {
			return filtered
		}
		log.Info("📄 Fetching detail", zap.Int("index", i+1), zap.Int("total", len(filtered)), zap.String("url", l.URL))
		enriched[i] = l.WithDetail(session.Detail(ctx, l.URL))
	}
	return enriched
}

func (p *Pipeline) write(ctx context.Context, log *zap.Logger, result models.RunResult, raw, filtered []models.Listing) (models.RunResult, error) {
	paths, err := p.writer.Write(result.RunAt, raw, filtered)
	if err != nil {
		return result, err
	}
	result.Raw = raw
	result.Filtered = filtered
	result.RawPath = paths.Raw
	result.FilteredPath = paths.Filtered

	for _, sink := range p.sinks {
		if err := sink.Publish(ctx, result); err != nil {
			log.Warn("⚠️ Sink failed", zap.String("sink", sink.Name()), zap.Error(err))
			continue
		}
		log.Info("📤 Sink published", zap.String("sink", sink.Name()))
	}

	log.Info("🏁 Crawl finished",
		zap.Int("raw", len(raw)),
		zap.Int("filtered", len(filtered)))
	return result, nil
}
