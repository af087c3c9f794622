package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qgold/goldrates/internal/engine"
	"github.com/qgold/goldrates/internal/sources"
)

// Scheduler refreshes every registered source on a fixed interval. The first
// sweep runs immediately on Start so the API has data without waiting a full
// interval.
type Scheduler struct {
	engine   *engine.Engine
	interval time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(eng *engine.Engine, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Scheduler{
		engine:   eng,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) loop() {
	s.runSweep()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) runSweep() {
	// Bound the sweep so a hung proxy chain cannot bleed into the next tick.
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	started := time.Now()
	s.engine.FetchMany(ctx, sources.Slugs())
	log.Info().Dur("took", time.Since(started)).Int("sources", len(sources.All)).Msg("refresh sweep done")
}
