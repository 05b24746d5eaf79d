package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"igscout/internal/models"
	"igscout/internal/priority"
	"igscout/internal/repository"
)

const (
	// Per-account cost range: scrape plus vision analysis.
	CostPerAccountLow  = 0.20
	CostPerAccountHigh = 0.22

	// CategorizationChunkSize is the number of pages per enqueued job.
	CategorizationChunkSize = 25
)

// ErrPlanNotFound is returned by Commit for an unknown or expired plan ID.
var ErrPlanNotFound = errors.New("batch plan not found")

// CategorizationStore is the slice of the page repository this service needs
type CategorizationStore interface {
	ListForCategorization(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error)
	GetByIDs(ctx context.Context, pageIDs []string) ([]models.Page, error)
	SaveCategorization(ctx context.Context, pageID string, category *string, confidence float64, contactEmail *string, promoSignal bool) error
}

// CategorizationLedger is the slice of the job repository this service needs
type CategorizationLedger interface {
	Enqueue(ctx context.Context, p repository.EnqueueParams) (string, error)
}

// BatchPlan is a cost estimate for a categorization run. Plans are
// read-only; nothing is enqueued until the caller commits one.
type BatchPlan struct {
	ID                string    `json:"plan_id"`
	MinClientCount    int       `json:"min_client_count"`
	Reclassify        bool      `json:"reclassify"`
	PageIDs           []string  `json:"-"`
	Count             int       `json:"count"`
	EstimatedCostLow  float64   `json:"estimated_cost_low"`
	EstimatedCostHigh float64   `json:"estimated_cost_high"`
	CreatedAt         time.Time `json:"created_at"`
}

type CategorizationService struct {
	pages   CategorizationStore
	jobs    CategorizationLedger
	scraper ScrapeProvider
	vision  VisionProvider
	log     *zap.SugaredLogger
	now     func() time.Time
	mu      sync.Mutex
	plans   map[string]*BatchPlan
}

func NewCategorizationService(pages CategorizationStore, jobs CategorizationLedger, scraper ScrapeProvider, vision VisionProvider, log *zap.SugaredLogger) *CategorizationService {
	return &CategorizationService{
		pages:   pages,
		jobs:    jobs,
		scraper: scraper,
		vision:  vision,
		log:     log,
		now:     time.Now,
		plans:   make(map[string]*BatchPlan),
	}
}

// Plan selects unclassified pages meeting the client-count threshold and
// returns a cost estimate. Read-only and repeatable: calling it twice
// without an intervening commit yields the same account set. Pages already
// holding a classification are excluded unless reclassify is set, which is
// the separately gated re-run path.
func (s *CategorizationService) Plan(ctx context.Context, minClientCount int, reclassify bool) (*BatchPlan, error) {
	pages, err := s.pages.ListForCategorization(ctx, minClientCount, reclassify)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrInsufficientTargets
	}

	candidates := make([]priority.Candidate, 0, len(pages))
	for _, p := range pages {
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
	ranked := priority.Rank(candidates)

	pageIDs := make([]string, 0, len(ranked))
	for _, c := range ranked {
		pageIDs = append(pageIDs, c.ID)
	}

	plan := &BatchPlan{
		ID:                uuid.New().String(),
		MinClientCount:    minClientCount,
		Reclassify:        reclassify,
		PageIDs:           pageIDs,
		Count:             len(pageIDs),
		EstimatedCostLow:  float64(len(pageIDs)) * CostPerAccountLow,
		EstimatedCostHigh: float64(len(pageIDs)) * CostPerAccountHigh,
		CreatedAt:         s.now(),
	}

	s.mu.Lock()
	s.plans[plan.ID] = plan
	s.mu.Unlock()

	s.log.Infof("Planned categorization of %d pages ($%.2f-$%.2f)",
		plan.Count, plan.EstimatedCostLow, plan.EstimatedCostHigh)
	return plan, nil
}

// Commit enqueues the planned work, one job per chunk of pages. It may only
// be called with a plan ID returned by Plan, which is how the caller
// acknowledges the cost estimate. A plan commits once.
func (s *CategorizationService) Commit(ctx context.Context, planID string) ([]string, error) {
	s.mu.Lock()
	plan, ok := s.plans[planID]
	if ok {
		delete(s.plans, planID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrPlanNotFound
	}

	var jobIDs []string
	for start := 0; start < len(plan.PageIDs); start += CategorizationChunkSize {
		end := start + CategorizationChunkSize
		if end > len(plan.PageIDs) {
			end = len(plan.PageIDs)
		}
		jobID, err := s.jobs.Enqueue(ctx, repository.EnqueueParams{
			JobType: models.JobTypeCategorization,
			PageIDs: plan.PageIDs[start:end],
		})
		if err != nil {
			return jobIDs, fmt.Errorf("failed to enqueue categorization chunk: %w", err)
		}
		jobIDs = append(jobIDs, jobID)
	}

	s.log.Infof("Committed plan %s: %d jobs for %d pages", planID, len(jobIDs), plan.Count)
	return jobIDs, nil
}

// Process executes one CATEGORIZATION job: scrape each page's profile, run
// the vision provider over it, and store the verdict. A page classified
// since the job was queued is skipped, so re-running a partially completed
// job never double-spends on vision calls.
func (s *CategorizationService) Process(ctx context.Context, job *models.ScrapeJob) (*models.CategorizationResult, error) {
	if len(job.PageIDs) == 0 {
		return nil, fmt.Errorf("categorization job %s has no page targets", job.ID)
	}

	pages, err := s.pages.GetByIDs(ctx, job.PageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	byID := make(map[string]models.Page, len(pages))
	for _, p := range pages {
		byID[p.ID] = p
	}

	result := &models.CategorizationResult{TotalPages: len(job.PageIDs)}

	for _, pageID := range job.PageIDs {
		page, ok := byID[pageID]
		if !ok {
			result.FailedCount++
			continue
		}
		if page.CategorizedAt != nil && page.CategorizedAt.After(job.QueuedAt) {
			// Already handled by an earlier run of this job.
			result.Classified++
			continue
		}

		if err := s.categorizeOne(ctx, page); err != nil {
			s.log.Warnf("Failed to categorize @%s: %v", page.Handle, err)
			result.FailedCount++
			result.FailedHandles = append(result.FailedHandles, page.Handle)
			continue
		}
		result.Classified++
	}

	s.log.Infof("Job %s completed: %d/%d pages classified",
		job.ID, result.Classified, result.TotalPages)
	return result, nil
}

func (s *CategorizationService) categorizeOne(ctx context.Context, page models.Page) error {
	detail, err := s.scraper.ProfileDetail(ctx, page.Handle)
	if err != nil {
		return fmt.Errorf("profile fetch failed: %w", err)
	}
	if detail.RawError != "" {
		return fmt.Errorf("provider error: %s", detail.RawError)
	}

	verdict, err := s.vision.Categorize(ctx, page.Handle, detail.ImageRefs, detail.Bio)
	if err != nil {
		return fmt.Errorf("vision analysis failed: %w", err)
	}

	var contactEmail *string
	if len(verdict.ContactCandidates) > 0 {
		contactEmail = &verdict.ContactCandidates[0]
	} else {
		contactEmail = ExtractEmail(detail.Bio)
	}

	return s.pages.SaveCategorization(ctx, page.ID, verdict.Category, verdict.Confidence, contactEmail, verdict.PromoSignal)
}
