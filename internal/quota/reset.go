package quota

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"image_gateway/internal/utils"
)

// resetSchedule fires the daily sweep at 01:00 server time.
const resetSchedule = "0 1 * * *"

// ResetJob zeroes every record's request counter once a day via a single
// bulk update.
type ResetJob struct {
	engine *Engine
	cron   *cron.Cron
	logger *utils.Logger
}

// NewResetJob creates the nightly quota reset job
func NewResetJob(engine *Engine) *ResetJob {
	return &ResetJob{
		engine: engine,
		cron:   cron.New(),
		logger: utils.NewLogger("quota-reset"),
	}
}

// Start schedules the job. Returns an error only if the schedule
// expression fails to parse.
func (j *ResetJob) Start() error {
	if _, err := j.cron.AddFunc(resetSchedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for an in-flight sweep to finish.
func (j *ResetJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

func (j *ResetJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := j.engine.store.ResetAllRequestCounts(ctx)
	if err != nil {
		j.logger.Error("Daily quota reset failed", "error", err)
		return
	}

	j.logger.Info("Daily quota reset complete", "records", rows)
}
