package bot

import (
	"context"
	"fmt"
	"time"

	"studydeck/trigram"
	"studydeck/utils"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 10 * time.Minute

// MaintenanceStore is what the maintenance jobs read from and clean up.
type MaintenanceStore interface {
	trigram.TitleSource
	PurgeOrphanShingles(ctx context.Context) (int64, error)
}

// Scheduler runs the periodic index maintenance jobs.
type Scheduler struct {
	cron    *cron.Cron
	index   *trigram.Index
	store   MaintenanceStore
	workers int
}

// NewScheduler registers the rebuild and purge jobs. An empty spec
// disables that job.
func NewScheduler(rebuildSpec, purgeSpec string, index *trigram.Index, store MaintenanceStore, workers int) (*Scheduler, error) {
	logger := cron.PrintfLogger(utils.Logger())
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		index:   index,
		store:   store,
		workers: workers,
	}

	if rebuildSpec != "" {
		if _, err := s.cron.AddFunc(rebuildSpec, func() { s.RebuildIndex(context.Background()) }); err != nil {
			return nil, fmt.Errorf("could not schedule index rebuild %q: %w", rebuildSpec, err)
		}
	}
	if purgeSpec != "" {
		if _, err := s.cron.AddFunc(purgeSpec, func() { s.PurgeOrphans(context.Background()) }); err != nil {
			return nil, fmt.Errorf("could not schedule orphan purge %q: %w", purgeSpec, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	utils.Info("scheduler", "start", fmt.Sprintf("%d maintenance jobs scheduled", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	utils.Info("scheduler", "stop", "Scheduler stopped.")
}

// RebuildIndex recomputes every title's shingles from the store.
func (s *Scheduler) RebuildIndex(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	start := time.Now()
	n, err := s.index.Reindex(ctx, s.store, s.workers)
	if err != nil {
		utils.Error("scheduler", "rebuild_index", fmt.Sprintf("index rebuild failed: %v", err))
		return 0, err
	}
	shingles, _ := s.index.Stats()
	utils.Info("scheduler", "rebuild_index",
		fmt.Sprintf("reindexed %d threads (%d shingles) in %s", n, shingles, time.Since(start).Round(time.Millisecond)))
	return n, nil
}

// PurgeOrphans removes stored shingles whose thread is gone.
func (s *Scheduler) PurgeOrphans(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := s.store.PurgeOrphanShingles(ctx)
	if err != nil {
		utils.Error("scheduler", "purge_orphans", fmt.Sprintf("orphan purge failed: %v", err))
		return 0, err
	}
	if n > 0 {
		utils.Info("scheduler", "purge_orphans", fmt.Sprintf("removed %d orphaned shingle rows", n))
	}
	return n, nil
}
