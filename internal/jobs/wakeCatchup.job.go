package jobs

import (
	"context"

	"babcia/internal/logger"
	"babcia/internal/services"
)

type Waker interface {
	RunWakeNow(ctx context.Context) bool
}

// WakeCatchupJob runs the background wake on a fixed cadence so rooms whose
// scan failed, or whose wake was lost to a restart, are retried
type WakeCatchupJob struct {
	waker    Waker
	log      logger.Logger
	schedule services.Schedule
}

func NewWakeCatchupJob(waker Waker, schedule services.Schedule) *WakeCatchupJob {
	return &WakeCatchupJob{
		waker:    waker,
		log:      logger.New("wakeCatchupJob"),
		schedule: schedule,
	}
}

func (j *WakeCatchupJob) Name() string {
	return "HourlyWakeCatchup"
}

func (j *WakeCatchupJob) Execute(ctx context.Context) error {
	log := j.log.Function("Execute")

	scanned := j.waker.RunWakeNow(ctx)
	log.Info("Catch-up wake finished", "scanned", scanned)
	return nil
}

func (j *WakeCatchupJob) Schedule() services.Schedule {
	return j.schedule
}
