package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Janitor periodically calls PurgeExpired on a Store until stopped.
type Janitor struct {
	store    Store
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	onPurge  func(int)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartJanitor launches the purge loop. onPurge, when non-nil, receives the
// count removed by each non-empty pass.
func StartJanitor(ctx context.Context, store Store, interval time.Duration, logger zerolog.Logger, onPurge func(int)) *Janitor {
	if interval <= 0 {
		interval = time.Minute
	}
	jctx, cancel := context.WithCancel(ctx)

	j := &Janitor{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		onPurge:  onPurge,
		ctx:      jctx,
		cancel:   cancel,
	}

	j.wg.Add(1)
	go j.loop()

	return j
}

// Stop cancels the loop and waits for it to exit. Safe to call twice.
func (j *Janitor) Stop() {
	if j == nil {
		return
	}
	j.cancel()
	j.wg.Wait()
}

func (j *Janitor) loop() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.ctx.Done():
			j.logger.Debug().Msg("revocation janitor stopped")
			return
		case <-ticker.C:
			j.purge()
		}
	}
}

func (j *Janitor) purge() {
	removed, err := j.store.PurgeExpired(j.ctx, j.now())
	if err != nil {
		j.logger.Error().Err(err).Msg("purge expired revocations")
		return
	}
	if removed > 0 {
		j.logger.Debug().Int("removed", removed).Msg("purged expired revocations")
		if j.onPurge != nil {
			j.onPurge(removed)
		}
	}
}
