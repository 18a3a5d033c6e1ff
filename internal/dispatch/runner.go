package dispatch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	config "github.com/mkorobov/notibox/internal/config/dispatcher"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

var (
	mDue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_schedules_processed_total", Help: "Due schedules processed",
	})
	mOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_schedules_succeeded_total", Help: "Schedules dispatched and advanced",
	})
	mFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_schedules_failed_total", Help: "Schedules that failed and stayed due",
	})
	mCycleDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "dispatcher_cycle_duration_seconds", Help: "Dispatch cycle duration",
		Buckets: prometheus.DefBuckets,
	})
)

// Runner drives RunCycle in continuous mode: a fixed-interval ticker by
// default, or a cron spec when one is configured.
type Runner struct {
	Log   *zap.Logger
	UC    *Usecase
	Cfg   *config.DispatchCfg
	Clock Clock
}

func New(log *zap.Logger, uc *Usecase, cfg *config.DispatchCfg) *Runner {
	return &Runner{
		Log:   log,
		UC:    uc,
		Cfg:   cfg,
		Clock: realClock{},
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	rep, err := r.UC.RunCycle(ctx, r.Clock.Now().UTC())
	if err != nil {
		mFailed.Inc()
		r.Log.Warn("cycle error", zap.Error(err))
	}
	if rep.Processed > 0 {
		mDue.Add(float64(rep.Processed))
		mOk.Add(float64(rep.Succeeded))
		if len(rep.Failed) > 0 {
			mFailed.Add(float64(len(rep.Failed)))
		}
		r.Log.Debug("dispatched batch",
			zap.Int("processed", rep.Processed),
			zap.Int("succeeded", rep.Succeeded),
			zap.Int("failed", len(rep.Failed)),
		)
	}
	mCycleDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) Run(ctx context.Context) error {
	if r.Cfg.Cron != "" {
		return r.runCron(ctx)
	}

	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// runCron drives cycles from a 6-field cron spec (seconds included),
// e.g. "0 * * * * *" for once a minute.
func (r *Runner) runCron(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(r.Cfg.Cron, func() { r.tick(ctx) }); err != nil {
		return err
	}
	c.Start()
	r.Log.Info("cron schedule active", zap.String("spec", r.Cfg.Cron))

	<-ctx.Done()
	stop := c.Stop()
	<-stop.Done()
	return ctx.Err()
}
