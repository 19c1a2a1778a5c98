package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is a unit of periodic maintenance work. Run must honor ctx
// cancellation so shutdown does not wait on a sweep mid-flight.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

type CronScheduler struct {
	cron  *cron.Cron
	names []string
	ctx   context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	logger := logutil.GetLogger(context.Background()).
		With(zap.String("job", job.Name()), zap.String("cron", spec))
	if _, err := c.cron.AddFunc(spec, c.guarded(job)); err != nil {
		logger.Error("register cron job failed", zap.Error(err))
		return err
	}
	c.names = append(c.names, job.Name())
	logger.Info("cron job registered")
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
	logutil.GetLogger(ctx).Info("scheduler started", zap.Strings("jobs", c.names))
}

func (c *CronScheduler) Stop() {
	done := c.cron.Stop()
	<-done.Done()
}

// guarded wraps a job so overlapping ticks skip instead of stacking up. A
// sweep that outruns its interval would otherwise pile goroutines on the
// same tables.
func (c *CronScheduler) guarded(job Job) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).
				With(zap.String("job", job.Name())).
				Info("cron job skipped, previous run still active")
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
		start := time.Now()
		err := job.Run(ctx)
		if err != nil {
			logger.Error("cron job failed", zap.Error(err), zap.Duration("cost", time.Since(start)))
			return
		}
		logger.Info("cron job done", zap.Duration("cost", time.Since(start)))
	}
}
