// Package jobs runs background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"reactor-planner/internal/planner"
)

// cronParser accepts standard 5-field expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

const previewTimeout = 2 * time.Minute

type AutoPlanner interface {
	AutoPlan(ctx context.Context, ids []string, horizonDays int) (planner.Proposal, error)
}

// PreviewJob runs auto-plan over every pending block and logs what it would
// do. It never commits.
type PreviewJob struct {
	log     *slog.Logger
	planner AutoPlanner
}

func NewPreviewJob(log *slog.Logger, planner AutoPlanner) *PreviewJob {
	return &PreviewJob{
		log:     log.With(slog.String("job", "autoplan_preview")),
		planner: planner,
	}
}

func (j *PreviewJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), previewTimeout)
	defer cancel()

	if err := j.run(ctx); err != nil {
		j.log.Error("auto-plan preview failed", slog.String("error", err.Error()))
	}
}

func (j *PreviewJob) run(ctx context.Context) error {
	const op = "jobs.PreviewJob.run"

	p, err := j.planner.AutoPlan(ctx, nil, 0)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	j.log.Info("auto-plan preview",
		slog.String("horizon_start", p.HorizonStart.Format(time.DateOnly)),
		slog.Int("horizon_days", p.HorizonDays),
		slog.Int("planned", p.Planned),
		slog.Int("splits", p.Splits),
		slog.Int("unplaced", len(p.Unplaced)),
	)
	if err := p.Err(); err != nil {
		j.log.Warn("auto-plan preview is short of capacity", slog.String("error", err.Error()))
		for _, u := range p.Unplaced {
			j.log.Warn("no capacity for block",
				slog.String("block_id", u.BlockID),
				slog.String("batch_label", u.BatchLabel),
				slog.Float64("units", u.Units),
			)
		}
	}
	return nil
}

type Scheduler struct {
	log  *slog.Logger
	cron *cron.Cron
	loc  *time.Location
}

// NewScheduler registers the preview job under spec, evaluated in loc.
func NewScheduler(log *slog.Logger, spec string, loc *time.Location, job cron.Job) (*Scheduler, error) {
	const op = "jobs.NewScheduler"

	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)

	if _, err := c.AddJob(spec, job); err != nil {
		return nil, fmt.Errorf("%s: bad schedule %q: %w", op, spec, err)
	}

	return &Scheduler{log: log, cron: c, loc: loc}, nil
}

func (s *Scheduler) Start() {
	attrs := []any{slog.Int("jobs", len(s.cron.Entries()))}
	if next := s.Next(); len(next) > 0 {
		attrs = append(attrs, slog.String("next_run", next[0].Format(time.RFC3339)))
	}
	s.log.Info("starting scheduler", attrs...)
	s.cron.Start()
}

// Stop waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	s.log.Info("stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Next reports the upcoming fire times.
func (s *Scheduler) Next() []time.Time {
	now := time.Now().In(s.loc)
	var out []time.Time
	for _, e := range s.cron.Entries() {
		out = append(out, e.Schedule.Next(now))
	}
	return out
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
