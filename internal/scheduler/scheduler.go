// Package scheduler runs the crawl on a cron schedule. A tick that fires
// while the previous crawl is still running is skipped.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron and manages the crawl loop.
type Scheduler struct {
	cron *cron.Cron
	job  cron.Job
	spec string
	log  *zap.Logger

	baseCtx context.Context
	initial sync.WaitGroup
}

// New builds a Scheduler for spec (any robfig/cron expression, e.g. "@every 1h").
func New(spec string, job Job, log *zap.Logger) *Scheduler {
	cl := cronLogger{log: log.Sugar()}
	s := &Scheduler{
		cron: cron.New(cron.WithLogger(cl)),
		spec: spec,
		log:  log,
	}
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		s.run(job)
	}))
	return s
}

// Start registers the job and starts the scheduler. One crawl also runs
// immediately so the first snapshot does not wait for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddJob(s.spec, s.job); err != nil {
		return fmt.Errorf("cron.AddJob: %w", err)
	}
	s.baseCtx = ctx

	s.cron.Start()
	s.log.Info("⏰ Scheduler started", zap.String("spec", s.spec))

	s.initial.Add(1)
	go func() {
		defer s.initial.Done()
		s.job.Run()
	}()
	return nil
}

// Stop halts new ticks and returns a context that is done once the running
// crawl, if any, has finished.
func (s *Scheduler) Stop() context.Context {
	cronDone := s.cron.Stop()
	s.log.Info("⏰ Scheduler stopped")

	// the start-up crawl runs outside cron and is not covered by cronDone
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.initial.Wait()
		cancel()
	}()
	return ctx
}

func (s *Scheduler) run(job Job) {
	ctx := s.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}

	s.log.Info("🔁 Scheduled crawl started")
	if err := job(ctx); err != nil {
		s.log.Error("❌ Scheduled crawl failed", zap.Error(err))
		return
	}
	s.log.Info("🔁 Scheduled crawl complete")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
