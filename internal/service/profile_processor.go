package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"igscout/internal/backoff"
	"igscout/internal/models"
	"igscout/internal/repository"
)

// ProfileStore is the slice of the page repository the processor needs
type ProfileStore interface {
	GetByIDs(ctx context.Context, pageIDs []string) ([]models.Page, error)
	RecordScrapeSuccess(ctx context.Context, pageID string, u repository.ProfileUpdate, attemptedAt time.Time) error
	RecordScrapeFailure(ctx context.Context, pageID string, scrapeErr string, attemptedAt time.Time) error
}

type ProfileProcessor struct {
	pages    ProfileStore
	provider ScrapeProvider
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewProfileProcessor(pages ProfileStore, provider ScrapeProvider, log *zap.SugaredLogger) *ProfileProcessor {
	return &ProfileProcessor{
		pages:    pages,
		provider: provider,
		log:      log,
		now:      time.Now,
	}
}

// Process executes one PROFILE_SCRAPE job over its ordered page list. Pages
// still inside their retry window are skipped, successful fetches reset the
// failure streak, failures extend it. Individual page failures never fail
// the job; they are counted in the result.
func (p *ProfileProcessor) Process(ctx context.Context, job *models.ScrapeJob) (*models.ProfileScrapeResult, error) {
	if len(job.PageIDs) == 0 {
		return nil, fmt.Errorf("profile scrape job %s has no page targets", job.ID)
	}

	pages, err := p.pages.GetByIDs(ctx, job.PageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	byID := make(map[string]models.Page, len(pages))
	for _, pg := range pages {
		byID[pg.ID] = pg
	}

	result := &models.ProfileScrapeResult{TotalPages: len(job.PageIDs)}

	for _, pageID := range job.PageIDs {
		page, ok := byID[pageID]
		if !ok {
			result.FailedCount++
			continue
		}

		now := p.now()
		if !backoff.Eligible(page.ConsecutiveFailures, page.LastAttemptAt, now) {
			result.SkippedCount++
			continue
		}

		if err := p.scrapeOne(ctx, page, now); err != nil {
			p.log.Warnf("Failed to scrape @%s: %v (streak %d)",
				page.Handle, err, page.ConsecutiveFailures+1)
			result.FailedCount++
			result.FailedHandles = append(result.FailedHandles, page.Handle)
			continue
		}
		result.SuccessCount++
	}

	p.log.Infof("Job %s completed: %d/%d profiles scraped, %d skipped",
		job.ID, result.SuccessCount, result.TotalPages, result.SkippedCount)

	return result, nil
}

func (p *ProfileProcessor) scrapeOne(ctx context.Context, page models.Page, attemptedAt time.Time) error {
	detail, err := p.provider.ProfileDetail(ctx, page.Handle)
	if err != nil {
		if recErr := p.pages.RecordScrapeFailure(ctx, page.ID, err.Error(), attemptedAt); recErr != nil {
			return fmt.Errorf("failed to record scrape failure: %w", recErr)
		}
		return err
	}
	if detail.RawError != "" {
		if recErr := p.pages.RecordScrapeFailure(ctx, page.ID, detail.RawError, attemptedAt); recErr != nil {
			return fmt.Errorf("failed to record scrape failure: %w", recErr)
		}
		return fmt.Errorf("provider error: %s", detail.RawError)
	}

	var bio *string
	if detail.Bio != "" {
		b := detail.Bio
		bio = &b
	}

	update := repository.ProfileUpdate{
		FollowerCount: detail.FollowerCount,
		IsVerified:    detail.IsVerified,
		IsPrivate:     detail.IsPrivate,
		Bio:           bio,
		ContactEmail:  ExtractEmail(detail.Bio),
		PromoSignal:   DetectPromoSignal(detail.Bio),
	}
	return p.pages.RecordScrapeSuccess(ctx, page.ID, update, attemptedAt)
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// ExtractEmail returns the first email address found in the text, if any
func ExtractEmail(text string) *string {
	match := emailPattern.FindString(text)
	if match == "" {
		return nil
	}
	return &match
}

var promoKeywords = []string{
	"collab", "collaboration", "business inquiries", "partnerships",
	"dm for business", "sponsorship", "brand deals", "promotion",
	"advertising", "marketing", "dm for collab",
}

// DetectPromoSignal reports whether the bio suggests openness to promos
func DetectPromoSignal(bio string) bool {
	lower := strings.ToLower(bio)
	for _, kw := range promoKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
