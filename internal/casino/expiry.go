package casino

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiryJob periodically settles abandoned sessions as losses.
type ExpiryJob struct {
	service  *Service
	maxAge   time.Duration
	interval time.Duration
}

func NewExpiryJob(service *Service, maxAge, interval time.Duration) *ExpiryJob {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpiryJob{
		service:  service,
		maxAge:   maxAge,
		interval: interval,
	}
}

func (j *ExpiryJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := j.service.ExpireSessions(ctx, j.maxAge)
			if err != nil {
				j.service.log.Warn("session expiry incomplete", zap.Error(err))
			}
			if n > 0 {
				j.service.log.Info("expired sessions settled as losses", zap.Int("count", n))
			}
		}
	}
}
