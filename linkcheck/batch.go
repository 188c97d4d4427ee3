package linkcheck

import (
	"context"
	"errors"
	"time"

	"github.com/pevans/evmotor/news"
	"golang.org/x/sync/errgroup"
)

// ErrNoneAccepted is returned by ValidateBatch when no candidate survived.
var ErrNoneAccepted = errors.New("no articles passed validation")

// BatchResult partitions a batch. Both slices follow input order.
type BatchResult struct {
	Accepted []Result
	Rejected []Result
	// Waves is the number of concurrent waves that were launched.
	Waves int
}

// Rejections counts rejected results by reason.
func (b *BatchResult) Rejections() map[Reason]int {
	counts := make(map[Reason]int)
	for _, r := range b.Rejected {
		counts[r.Reason]++
	}
	return counts
}

// ValidateBatch validates candidates in waves of Config.BatchSize, pausing
// Config.BatchDelay between waves. Each wave is joined before the next
// starts. Accepted results are de-duplicated by final URL; the earliest
// input wins and later copies are rejected as duplicates.
//
// When ctx is cancelled no further waves start and the remaining candidates
// are rejected as cancelled. Returns ErrNoneAccepted, together with the full
// result, when nothing was accepted.
func (v *Validator) ValidateBatch(ctx context.Context, candidates []news.Candidate) (*BatchResult, error) {
	results := make([]Result, len(candidates))
	done := make([]bool, len(candidates))
	waves := 0

	for start := 0; start < len(candidates); start += v.cfg.BatchSize {
		if ctx.Err() != nil {
			break
		}
		if start > 0 && v.cfg.BatchDelay > 0 {
			if err := pause(ctx, v.cfg.BatchDelay); err != nil {
				break
			}
		}

		end := min(start+v.cfg.BatchSize, len(candidates))
		waves++

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				// Each goroutine owns results[i]; no locking is needed
				results[i] = v.ValidateOne(ctx, candidates[i])
				done[i] = true
				return nil
			})
		}
		_ = g.Wait()

		v.log.WithField("wave", waves).Debugf("Validated candidates %d-%d of %d", start+1, end, len(candidates))
	}

	batch := &BatchResult{Waves: waves}
	seen := make(map[string]bool)

	for i, res := range results {
		if !done[i] {
			res = reject(candidates[i], ReasonCancelled, ctx.Err())
		}

		if res.Accepted {
			if seen[res.URL] {
				res = reject(res.Candidate, ReasonDuplicate, nil)
			} else {
				seen[res.URL] = true
				batch.Accepted = append(batch.Accepted, res)
				continue
			}
		}

		batch.Rejected = append(batch.Rejected, res)
	}

	v.log.WithFields(map[string]any{
		"accepted": len(batch.Accepted),
		"rejected": len(batch.Rejected),
		"waves":    waves,
	}).Info("Link validation finished")

	if len(batch.Accepted) == 0 {
		return batch, ErrNoneAccepted
	}
	return batch, nil
}

func pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
