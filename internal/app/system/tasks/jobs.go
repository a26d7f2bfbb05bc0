// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/subbanorg/subban-server/internal/app/system/session"
)

// SessionSweepJob returns the job that removes expired issued tokens and the
// device sessions they leave behind. Expired tokens already fail
// verification; the sweep just keeps the registry from accumulating them.
func SessionSweepJob(reg *session.Registry, interval time.Duration, logger *zap.Logger) Job {
	if interval <= 0 {
		interval = time.Hour
	}
	return Job{
		Name:     "session-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			tokens, devices, err := reg.Sweep(ctx)
			if err != nil {
				return err
			}
			if tokens > 0 || devices > 0 {
				logger.Info("session sweep completed",
					zap.Int("tokens_removed", tokens),
					zap.Int("devices_removed", devices))
			}
			return nil
		},
	}
}
