package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/riseup-connect/backend/pkg/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const reclaimTimeout = time.Minute

// ExpiredDeleter removes rows whose expiry has passed
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Reclaimer periodically deletes expired ephemeral rows that the TTL monitor has
// not removed yet. Reads never depend on it.
type Reclaimer struct {
	cron    *cron.Cron
	targets map[string]ExpiredDeleter
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewReclaimer(targets map[string]ExpiredDeleter, log logrus.FieldLogger) *Reclaimer {
	return &Reclaimer{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		targets: targets,
		log:     log.WithField("component", "reclaimer"),
		now:     time.Now,
	}
}

// Start schedules the job. schedule is a robfig/cron expression such as "@every 15m".
func (r *Reclaimer) Start(schedule string) error {
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), reclaimTimeout)
		defer cancel()
		r.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid reclaim schedule %q: %w", schedule, err)
	}
	r.cron.Start()
	r.log.WithField("schedule", schedule).Info("reclamation job scheduled")
	return nil
}

// Stop waits for a running pass to finish
func (r *Reclaimer) Stop() {
	<-r.cron.Stop().Done()
}

// RunOnce sweeps every target and returns the rows removed per collection.
func (r *Reclaimer) RunOnce(ctx context.Context) map[string]int64 {
	now := r.now().UTC()
	removed := make(map[string]int64, len(r.targets))
	for name, target := range r.targets {
		n, err := target.DeleteExpired(ctx, now)
		if err != nil {
			r.log.WithError(err).WithField("collection", name).Error("reclamation failed")
			continue
		}
		removed[name] = n
		if n > 0 {
			metrics.EphemeralReclaimedTotal.WithLabelValues(name).Add(float64(n))
			r.log.WithFields(logrus.Fields{"collection": name, "removed": n}).Info("reclaimed expired rows")
		}
	}
	return removed
}
