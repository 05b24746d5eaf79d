package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"igscout/internal/models"
	"igscout/internal/repository"
)

type mockCategorizationStore struct {
	listForCategorizationFunc func(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error)
	getByIDsFunc              func(ctx context.Context, pageIDs []string) ([]models.Page, error)
	saveCategorizationFunc    func(ctx context.Context, pageID string, category *string, confidence float64, contactEmail *string, promoSignal bool) error
}

func (m *mockCategorizationStore) ListForCategorization(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error) {
	if m.listForCategorizationFunc != nil {
		return m.listForCategorizationFunc(ctx, minClientCount, includeClassified)
	}
	return nil, nil
}

func (m *mockCategorizationStore) GetByIDs(ctx context.Context, pageIDs []string) ([]models.Page, error) {
	if m.getByIDsFunc != nil {
		return m.getByIDsFunc(ctx, pageIDs)
	}
	return nil, nil
}

func (m *mockCategorizationStore) SaveCategorization(ctx context.Context, pageID string, category *string, confidence float64, contactEmail *string, promoSignal bool) error {
	if m.saveCategorizationFunc != nil {
		return m.saveCategorizationFunc(ctx, pageID, category, confidence, contactEmail, promoSignal)
	}
	return nil
}

type mockVisionProvider struct {
	categorizeFunc func(ctx context.Context, handle string, imageRefs []string, bioText string) (*CategorizationVerdict, error)
}

func (m *mockVisionProvider) Categorize(ctx context.Context, handle string, imageRefs []string, bioText string) (*CategorizationVerdict, error) {
	if m.categorizeFunc != nil {
		return m.categorizeFunc(ctx, handle, imageRefs, bioText)
	}
	return &CategorizationVerdict{}, nil
}

func pagesNamed(n int) []models.Page {
	pages := make([]models.Page, n)
	for i := range pages {
		pages[i] = models.Page{
			ID:          fmt.Sprintf("page-%d", i),
			Handle:      fmt.Sprintf("handle%d", i),
			ClientCount: 2,
		}
	}
	return pages
}

func newTestCategorizationService(store *mockCategorizationStore, jobs *mockJobLedger, scraper *mockScrapeProvider, vision *mockVisionProvider) *CategorizationService {
	if store == nil {
		store = &mockCategorizationStore{}
	}
	if jobs == nil {
		jobs = &mockJobLedger{}
	}
	if scraper == nil {
		scraper = &mockScrapeProvider{}
	}
	if vision == nil {
		vision = &mockVisionProvider{}
	}
	return NewCategorizationService(store, jobs, scraper, vision, zap.NewNop().Sugar())
}

func TestCategorizationService_Plan_CostEstimate(t *testing.T) {
	store := &mockCategorizationStore{
		listForCategorizationFunc: func(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error) {
			return pagesNamed(100), nil
		},
	}
	svc := newTestCategorizationService(store, nil, nil, nil)

	plan, err := svc.Plan(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if plan.Count != 100 {
		t.Errorf("expected 100 pages, got %d", plan.Count)
	}
	if math.Abs(plan.EstimatedCostLow-20.0) > 0.001 {
		t.Errorf("expected low estimate 20.00, got %.2f", plan.EstimatedCostLow)
	}
	if math.Abs(plan.EstimatedCostHigh-22.0) > 0.001 {
		t.Errorf("expected high estimate 22.00, got %.2f", plan.EstimatedCostHigh)
	}
}

func TestCategorizationService_Plan_Repeatable(t *testing.T) {
	store := &mockCategorizationStore{
		listForCategorizationFunc: func(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error) {
			return pagesNamed(10), nil
		},
	}
	svc := newTestCategorizationService(store, nil, nil, nil)

	first, err := svc.Plan(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := svc.Plan(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Planning is read-only; repeat calls select the same account set.
	if len(first.PageIDs) != len(second.PageIDs) {
		t.Fatalf("expected identical selections, got %d vs %d", len(first.PageIDs), len(second.PageIDs))
	}
	for i := range first.PageIDs {
		if first.PageIDs[i] != second.PageIDs[i] {
			t.Errorf("position %d differs: %s vs %s", i, first.PageIDs[i], second.PageIDs[i])
		}
	}
	if first.ID == second.ID {
		t.Error("each plan should get its own ID")
	}
}

func TestCategorizationService_Plan_NoTargets(t *testing.T) {
	svc := newTestCategorizationService(nil, nil, nil, nil)

	_, err := svc.Plan(context.Background(), 2, false)
	if !errors.Is(err, ErrInsufficientTargets) {
		t.Fatalf("expected ErrInsufficientTargets, got %v", err)
	}
}

func TestCategorizationService_Commit_ChunksJobs(t *testing.T) {
	store := &mockCategorizationStore{
		listForCategorizationFunc: func(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error) {
			return pagesNamed(60), nil
		},
	}
	var chunks [][]string
	jobs := &mockJobLedger{
		enqueueFunc: func(ctx context.Context, p repository.EnqueueParams) (string, error) {
			if p.JobType != models.JobTypeCategorization {
				t.Errorf("expected categorization job, got %s", p.JobType)
			}
			chunks = append(chunks, p.PageIDs)
			return fmt.Sprintf("job-%d", len(chunks)), nil
		},
	}
	svc := newTestCategorizationService(store, jobs, nil, nil)

	plan, err := svc.Plan(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	jobIDs, err := svc.Commit(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(jobIDs) != 3 {
		t.Fatalf("expected 3 jobs for 60 pages, got %d", len(jobIDs))
	}
	if len(chunks[0]) != 25 || len(chunks[1]) != 25 || len(chunks[2]) != 10 {
		t.Errorf("expected chunks of 25/25/10, got %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestCategorizationService_Commit_PlanIsSingleUse(t *testing.T) {
	store := &mockCategorizationStore{
		listForCategorizationFunc: func(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error) {
			return pagesNamed(5), nil
		},
	}
	svc := newTestCategorizationService(store, nil, nil, nil)

	plan, err := svc.Plan(context.Background(), 2, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := svc.Commit(context.Background(), plan.ID); err != nil {
		t.Fatalf("first commit should succeed, got %v", err)
	}
	if _, err := svc.Commit(context.Background(), plan.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("second commit should fail with ErrPlanNotFound, got %v", err)
	}
}

func TestCategorizationService_Commit_UnknownPlan(t *testing.T) {
	svc := newTestCategorizationService(nil, nil, nil, nil)

	if _, err := svc.Commit(context.Background(), "no-such-plan"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestCategorizationService_Process_ClassifiesPages(t *testing.T) {
	category := "STREAMER_YOUTUBER"
	var saved []string
	store := &mockCategorizationStore{
		getByIDsFunc: func(ctx context.Context, pageIDs []string) ([]models.Page, error) {
			return pagesNamed(2), nil
		},
		saveCategorizationFunc: func(ctx context.Context, pageID string, cat *string, confidence float64, contactEmail *string, promoSignal bool) error {
			if cat == nil || *cat != category {
				t.Errorf("expected category %s, got %v", category, cat)
			}
			saved = append(saved, pageID)
			return nil
		},
	}
	scraper := &mockScrapeProvider{
		profileDetailFunc: func(ctx context.Context, handle string) (*ProfileDetailResult, error) {
			return &ProfileDetailResult{Handle: handle, ImageRefs: []string{"img1"}}, nil
		},
	}
	vision := &mockVisionProvider{
		categorizeFunc: func(ctx context.Context, handle string, imageRefs []string, bioText string) (*CategorizationVerdict, error) {
			return &CategorizationVerdict{Category: &category, Confidence: 0.9}, nil
		},
	}
	svc := newTestCategorizationService(store, nil, scraper, vision)

	job := &models.ScrapeJob{
		ID:       "job-1",
		JobType:  models.JobTypeCategorization,
		PageIDs:  []string{"page-0", "page-1"},
		QueuedAt: time.Now(),
	}
	result, err := svc.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Classified != 2 {
		t.Errorf("expected 2 classified, got %d", result.Classified)
	}
	if len(saved) != 2 {
		t.Errorf("expected 2 verdicts saved, got %d", len(saved))
	}
}

func TestCategorizationService_Process_SkipsAlreadyClassified(t *testing.T) {
	queuedAt := time.Now().Add(-time.Hour)
	classifiedLater := time.Now().Add(-time.Minute)

	visionCalls := 0
	store := &mockCategorizationStore{
		getByIDsFunc: func(ctx context.Context, pageIDs []string) ([]models.Page, error) {
			return []models.Page{
				{ID: "page-0", Handle: "handle0", CategorizedAt: &classifiedLater},
				{ID: "page-1", Handle: "handle1"},
			}, nil
		},
	}
	vision := &mockVisionProvider{
		categorizeFunc: func(ctx context.Context, handle string, imageRefs []string, bioText string) (*CategorizationVerdict, error) {
			visionCalls++
			return &CategorizationVerdict{}, nil
		},
	}
	svc := newTestCategorizationService(store, nil, nil, vision)

	job := &models.ScrapeJob{
		ID:       "job-1",
		JobType:  models.JobTypeCategorization,
		PageIDs:  []string{"page-0", "page-1"},
		QueuedAt: queuedAt,
	}
	result, err := svc.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Pages classified after the job was queued are not re-analyzed.
	if visionCalls != 1 {
		t.Errorf("expected 1 vision call, got %d", visionCalls)
	}
	if result.Classified != 2 {
		t.Errorf("expected both pages counted as classified, got %d", result.Classified)
	}
}

func TestCategorizationService_Process_BioEmailFallback(t *testing.T) {
	var savedEmail *string
	store := &mockCategorizationStore{
		getByIDsFunc: func(ctx context.Context, pageIDs []string) ([]models.Page, error) {
			return pagesNamed(1), nil
		},
		saveCategorizationFunc: func(ctx context.Context, pageID string, cat *string, confidence float64, contactEmail *string, promoSignal bool) error {
			savedEmail = contactEmail
			return nil
		},
	}
	scraper := &mockScrapeProvider{
		profileDetailFunc: func(ctx context.Context, handle string) (*ProfileDetailResult, error) {
			return &ProfileDetailResult{Handle: handle, Bio: "reach us: team@pages.io"}, nil
		},
	}
	svc := newTestCategorizationService(store, nil, scraper, nil)

	job := &models.ScrapeJob{ID: "job-1", PageIDs: []string{"page-0"}, QueuedAt: time.Now()}
	if _, err := svc.Process(context.Background(), job); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if savedEmail == nil || *savedEmail != "team@pages.io" {
		t.Errorf("expected bio email fallback, got %v", savedEmail)
	}
}

func TestCategorizationService_Process_VisionFailureCounted(t *testing.T) {
	store := &mockCategorizationStore{
		getByIDsFunc: func(ctx context.Context, pageIDs []string) ([]models.Page, error) {
			return pagesNamed(1), nil
		},
	}
	vision := &mockVisionProvider{
		categorizeFunc: func(ctx context.Context, handle string, imageRefs []string, bioText string) (*CategorizationVerdict, error) {
			return nil, errors.New("model overloaded")
		},
	}
	svc := newTestCategorizationService(store, nil, nil, vision)

	job := &models.ScrapeJob{ID: "job-1", PageIDs: []string{"page-0"}, QueuedAt: time.Now()}
	result, err := svc.Process(context.Background(), job)
	if err != nil {
		t.Fatalf("individual page failures should not fail the job, got %v", err)
	}
	if result.FailedCount != 1 {
		t.Errorf("expected 1 failure, got %d", result.FailedCount)
	}
}
