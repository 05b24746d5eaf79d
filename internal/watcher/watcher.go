package watcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"igscout/internal/config"
	"igscout/internal/coverage"
	"igscout/internal/models"
	"igscout/internal/repository"
	"igscout/internal/service"
)

// maxClaimsPerCycle bounds how many jobs one worker drains per tick so a
// long backlog doesn't starve the stale-claim sweep.
const maxClaimsPerCycle = 10

// JobLedger is the slice of the job repository the watcher needs
type JobLedger interface {
	ClaimNext(ctx context.Context, workerID string) (*models.ScrapeJob, error)
	Enqueue(ctx context.Context, p repository.EnqueueParams) (string, error)
	Complete(ctx context.Context, jobID, workerID string, result models.JSONB) error
	Fail(ctx context.Context, jobID, workerID string, result models.JSONB) error
	ReclaimStale(ctx context.Context, timeout time.Duration) (int64, error)
}

// FollowingProcessor executes one FOLLOWING_SCRAPE job
type FollowingProcessor interface {
	Process(ctx context.Context, job *models.ScrapeJob) (*service.FollowingOutcome, error)
}

// ProfileProcessor executes one PROFILE_SCRAPE job
type ProfileProcessor interface {
	Process(ctx context.Context, job *models.ScrapeJob) (*models.ProfileScrapeResult, error)
}

// CategorizationProcessor executes one CATEGORIZATION job
type CategorizationProcessor interface {
	Process(ctx context.Context, job *models.ScrapeJob) (*models.CategorizationResult, error)
}

type Watcher struct {
	cfg            *config.Config
	jobs           JobLedger
	following      FollowingProcessor
	profiles       ProfileProcessor
	categorization CategorizationProcessor
	log            *zap.SugaredLogger
}

func New(
	cfg *config.Config,
	jobs JobLedger,
	following FollowingProcessor,
	profiles ProfileProcessor,
	categorization CategorizationProcessor,
	log *zap.SugaredLogger,
) *Watcher {
	return &Watcher{
		cfg:            cfg,
		jobs:           jobs,
		following:      following,
		profiles:       profiles,
		categorization: categorization,
		log:            log,
	}
}

// Start polls the job ledger until the context is cancelled. Multiple
// workers can run this loop against the same database; the ledger's
// conditional-update claim is the only coordination between them.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.Infof("Worker %s started, polling every %ds", w.cfg.WorkerID, w.cfg.PollInterval)

	// Drain anything left over from previous runs before the first tick.
	w.processCycle(ctx)

	ticker := time.NewTicker(time.Duration(w.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker shutting down...")
			return ctx.Err()
		case <-ticker.C:
			w.processCycle(ctx)
		}
	}
}

func (w *Watcher) processCycle(ctx context.Context) {
	staleAfter := time.Duration(w.cfg.StaleClaimAfter) * time.Minute
	if n, err := w.jobs.ReclaimStale(ctx, staleAfter); err != nil {
		w.log.Errorf("Failed to reclaim stale jobs: %v", err)
	} else if n > 0 {
		w.log.Warnf("Reclaimed %d stale job(s)", n)
	}

	for i := 0; i < maxClaimsPerCycle; i++ {
		if ctx.Err() != nil {
			return
		}
		job, err := w.jobs.ClaimNext(ctx, w.cfg.WorkerID)
		if err != nil {
			w.log.Errorf("Failed to claim job: %v", err)
			return
		}
		if job == nil {
			return
		}
		w.execute(ctx, job)
	}
}

// execute runs one claimed job and finalizes it. Provider failures are
// converted into a failed job result here; nothing propagates further.
func (w *Watcher) execute(ctx context.Context, job *models.ScrapeJob) {
	w.log.Infof("Processing job %s (%s)", job.ID, job.JobType)

	switch job.JobType {
	case models.JobTypeFollowingScrape:
		w.executeFollowing(ctx, job)
	case models.JobTypeProfileScrape:
		result, err := w.profiles.Process(ctx, job)
		if err != nil {
			w.fail(ctx, job, models.ProfileScrapeResult{Error: err.Error()})
			return
		}
		w.complete(ctx, job, result)
	case models.JobTypeCategorization:
		result, err := w.categorization.Process(ctx, job)
		if err != nil {
			w.fail(ctx, job, models.CategorizationResult{Error: err.Error()})
			return
		}
		w.complete(ctx, job, result)
	default:
		w.log.Errorf("Job %s has unknown type %q", job.ID, job.JobType)
		w.fail(ctx, job, map[string]string{"error": "unknown job type"})
	}
}

func (w *Watcher) executeFollowing(ctx context.Context, job *models.ScrapeJob) {
	outcome, err := w.following.Process(ctx, job)
	if err != nil {
		w.fail(ctx, job, models.FollowingScrapeResult{Error: err.Error()})
		return
	}

	if outcome.Report.Decision != coverage.RequiresRetry {
		w.complete(ctx, job, outcome.Result)
		return
	}

	// One automatic retry per target. A second consecutive shortfall means
	// the provider structurally cannot deliver the full set; surface it as
	// failed with the shortfall recorded rather than looping.
	if job.CoverageAttempt > 0 {
		w.log.Warnf("Job %s: coverage still short after retry (missing %d), giving up",
			job.ID, outcome.Report.Shortfall)
		w.fail(ctx, job, outcome.Result)
		return
	}

	retryID, err := w.jobs.Enqueue(ctx, repository.EnqueueParams{
		JobType:         models.JobTypeFollowingScrape,
		ClientID:        job.ClientID,
		CoverageAttempt: job.CoverageAttempt + 1,
	})
	if err != nil {
		// Without the retry row the shortfall would silently become a
		// completed job nobody revisits; keep it visible as failed instead.
		w.log.Errorf("Job %s: failed to enqueue coverage retry: %v", job.ID, err)
		w.fail(ctx, job, outcome.Result)
		return
	}

	w.log.Infof("Job %s: coverage %.1f%% below threshold, retry enqueued as %s",
		job.ID, outcome.Report.Ratio*100, retryID)
	w.complete(ctx, job, outcome.Result)
}

func (w *Watcher) complete(ctx context.Context, job *models.ScrapeJob, result interface{}) {
	w.finalize(ctx, job, result, w.jobs.Complete)
}

func (w *Watcher) fail(ctx context.Context, job *models.ScrapeJob, result interface{}) {
	w.finalize(ctx, job, result, w.jobs.Fail)
}

func (w *Watcher) finalize(ctx context.Context, job *models.ScrapeJob, result interface{}, fn func(context.Context, string, string, models.JSONB) error) {
	payload, err := models.AsJSONB(result)
	if err != nil {
		w.log.Errorf("Job %s: failed to encode result: %v", job.ID, err)
	}
	if err := fn(ctx, job.ID, w.cfg.WorkerID, payload); err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			// Our claim is gone, most likely reclaimed as stale. Leave the
			// job for whoever holds it now.
			w.log.Errorf("Job %s: lost claim before finalize", job.ID)
			return
		}
		w.log.Errorf("Job %s: failed to finalize: %v", job.ID, err)
	}
}
