// Package scheduler は期限切れ求人の掃除を cron で定期実行します。
package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

// Sweeper は期限切れ求人の従業員を ENDED にする処理です。
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) ([]job.Transition, error)
}

// Scheduler は robfig/cron をラップし、掃除処理を登録します。
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	logger  *zap.Logger
	now     func() time.Time
}

// New は spec (例: "5 0 * * *") で掃除処理を実行する Scheduler を生成します。
// spec は loc のタイムゾーンで解釈されます。
func New(sweeper Sweeper, spec string, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{l: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
		now:     time.Now,
	}
}

// Run はジョブを登録して起動直後に 1 度実行し、ctx が終了するまでブロックします。
// 終了時は実行中のジョブの完了を待ちます。
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunOnce(ctx) }); err != nil {
		return errors.Wrapf(err, "scheduler: add sweep %q", s.spec)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	s.RunOnce(ctx)

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunOnce は掃除処理を 1 回実行します。失敗はログに記録し、次回の実行に任せます。
func (s *Scheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	start := s.now()
	transitions, err := s.sweeper.SweepExpired(ctx, start)
	if err != nil {
		s.logger.Error("sweep expired jobs failed", zap.Error(err))
		return
	}
	s.logger.Info("sweep expired jobs completed",
		zap.Int("count", len(transitions)),
		zap.Int64("duration_ms", s.now().Sub(start).Milliseconds()),
	)
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
