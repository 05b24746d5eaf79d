package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"igscout/internal/backoff"
	"igscout/internal/models"
	"igscout/internal/priority"
	"igscout/internal/repository"
)

// ErrInsufficientTargets is returned when a selection finds zero eligible
// accounts. It is a caller-facing no-op, not a ledger error state.
var ErrInsufficientTargets = errors.New("no eligible target accounts")

// JobLedger is the slice of the job repository the schedulers need
type JobLedger interface {
	Enqueue(ctx context.Context, p repository.EnqueueParams) (string, error)
	HasActiveJob(ctx context.Context, jobType models.JobType, clientID string) (bool, error)
}

// CandidateStore is the slice of the page repository the scheduler needs
type CandidateStore interface {
	ListScrapeCandidates(ctx context.Context, limit int) ([]models.Page, error)
}

type Scheduler struct {
	jobs  JobLedger
	pages CandidateStore
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewScheduler(jobs JobLedger, pages CandidateStore, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		jobs:  jobs,
		pages: pages,
		log:   log,
		now:   time.Now,
	}
}

// ScheduleProfileBatch selects up to limit pages that are eligible under the
// failure backoff, orders them by scheduling tier, and enqueues one
// PROFILE_SCRAPE job carrying the ordered list. Tiers are recomputed here on
// every call; client counts move between passes.
func (s *Scheduler) ScheduleProfileBatch(ctx context.Context, limit int) (string, int, error) {
	if limit <= 0 {
		limit = 50
	}

	// Over-fetch so backoff-ineligible pages don't starve the batch.
	pages, err := s.pages.ListScrapeCandidates(ctx, limit*4)
	if err != nil {
		return "", 0, fmt.Errorf("failed to list candidates: %w", err)
	}

	now := s.now()
	candidates := make([]priority.Candidate, 0, len(pages))
	for _, p := range pages {
		if !backoff.Eligible(p.ConsecutiveFailures, p.LastAttemptAt, now) {
			continue
		}
		displayName := ""
		if p.DisplayName != nil {
			displayName = *p.DisplayName
		}
		candidates = append(candidates, priority.Candidate{
			ID:            p.ID,
			Handle:        p.Handle,
			DisplayName:   displayName,
			ClientCount:   p.ClientCount,
			FollowerCount: p.FollowerCount,
		})
	}

	if len(candidates) == 0 {
		return "", 0, ErrInsufficientTargets
	}

	ranked := priority.Rank(candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	pageIDs := make([]string, 0, len(ranked))
	for _, c := range ranked {
		pageIDs = append(pageIDs, c.ID)
	}

	jobID, err := s.jobs.Enqueue(ctx, repository.EnqueueParams{
		JobType: models.JobTypeProfileScrape,
		PageIDs: pageIDs,
	})
	if err != nil {
		return "", 0, fmt.Errorf("failed to enqueue profile scrape: %w", err)
	}

	s.log.Infof("Scheduled profile scrape %s for %d pages", jobID, len(pageIDs))
	return jobID, len(pageIDs), nil
}

// EnqueueFollowingScrape enqueues a FOLLOWING_SCRAPE for one client unless a
// pending or processing job of the same type already targets it.
func (s *Scheduler) EnqueueFollowingScrape(ctx context.Context, clientID string) (string, error) {
	active, err := s.jobs.HasActiveJob(ctx, models.JobTypeFollowingScrape, clientID)
	if err != nil {
		return "", err
	}
	if active {
		return "", ErrDuplicateJob
	}
	return s.jobs.Enqueue(ctx, repository.EnqueueParams{
		JobType:  models.JobTypeFollowingScrape,
		ClientID: &clientID,
	})
}

// ErrDuplicateJob signals the target already has an active job of that type.
var ErrDuplicateJob = errors.New("target already has an active job")
