package crawl

import (
	"context"
	"errors"
	"time"
)

// Schedule runs a crawl immediately and then every interval until Stop is
// called or ctx is cancelled. Failed runs are logged and retried at the next
// tick.
func (s *Service) Schedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("crawl interval must be positive")
	}

	s.log.WithField("interval", interval.String()).Info("Crawl scheduler starting")

	s.runScheduled(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Crawl scheduler stopping (context cancelled)")
			return ctx.Err()
		case <-s.stopChan:
			s.log.Info("Crawl scheduler stopping")
			return nil
		case <-ticker.C:
			s.runScheduled(ctx)
		}
	}
}

// Stop signals Schedule to return.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *Service) runScheduled(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil && errors.Is(err, ErrRunInProgress) {
		s.log.Info("Skipping scheduled crawl; a run is already in progress")
	}
}
