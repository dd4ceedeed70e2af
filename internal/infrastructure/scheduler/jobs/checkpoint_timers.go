// Package jobs contains the scheduled jobs of the ledger service.
package jobs

import (
	"context"

	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// Checkpointer persists the unsaved study time of running sessions.
type Checkpointer interface {
	Checkpoint(ctx context.Context) (int, error)
}

// CheckpointTimersJob bounds how much study time a crash can lose.
type CheckpointTimersJob struct {
	timers Checkpointer
	log    *logger.Logger
}

// NewCheckpointTimersJob creates the job.
func NewCheckpointTimersJob(timers Checkpointer, log *logger.Logger) *CheckpointTimersJob {
	if log == nil {
		log = logger.Nop()
	}
	return &CheckpointTimersJob{timers: timers, log: log}
}

func (j *CheckpointTimersJob) Name() string { return "checkpoint_timers" }

func (j *CheckpointTimersJob) Description() string {
	return "persist unsaved study time of running sessions"
}

func (j *CheckpointTimersJob) Run(ctx context.Context) error {
	n, err := j.timers.Checkpoint(ctx)
	if n > 0 {
		j.log.Debug("timers checkpointed", logger.Int("sessions", n))
	}
	return err
}
