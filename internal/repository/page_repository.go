package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"igscout/internal/models"
)

type PageRepository struct {
	db *gorm.DB
}

func NewPageRepository(db *gorm.DB) *PageRepository {
	return &PageRepository{db: db}
}

// DiscoveredAccount is one entry of a client's retrieved following list.
type DiscoveredAccount struct {
	Handle      string
	DisplayName string
	IsVerified  bool
	IsPrivate   bool
}

// ReplaceFollowing replaces a client's relationship edges with the given
// following list in one transaction. Pages are created on first sight;
// client_count is adjusted in the same transaction as the edges it
// summarizes so the two can never diverge. Re-running after a partial crash
// is safe: the whole replacement is upsert-shaped, not append-shaped.
func (r *PageRepository) ReplaceFollowing(ctx context.Context, clientID string, accounts []DiscoveredAccount) (int, error) {
	created := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// Drop the client's previous edges, decrementing the summary count
		// on every page that loses one.
		var oldPageIDs []string
		if err := tx.Model(&models.ClientFollowing{}).
			Where("client_id = ?", clientID).
			Pluck("page_id", &oldPageIDs).Error; err != nil {
			return fmt.Errorf("failed to read existing relationships: %w", err)
		}
		if len(oldPageIDs) > 0 {
			if err := tx.Where("client_id = ?", clientID).
				Delete(&models.ClientFollowing{}).Error; err != nil {
				return fmt.Errorf("failed to delete relationships: %w", err)
			}
			if err := tx.Model(&models.Page{}).
				Where("id IN ?", oldPageIDs).
				Update("client_count", gorm.Expr("client_count - 1")).Error; err != nil {
				return fmt.Errorf("failed to decrement client counts: %w", err)
			}
		}

		if len(accounts) == 0 {
			return nil
		}

		// Create pages that have never been seen before.
		newPages := make([]models.Page, 0, len(accounts))
		handles := make([]string, 0, len(accounts))
		for _, a := range accounts {
			handles = append(handles, a.Handle)
			displayName := a.DisplayName
			var dn *string
			if displayName != "" {
				dn = &displayName
			}
			newPages = append(newPages, models.Page{
				ID:               uuid.New().String(),
				Handle:           a.Handle,
				DisplayName:      dn,
				IsVerified:       a.IsVerified,
				IsPrivate:        a.IsPrivate,
				LastScrapeStatus: models.ScrapeStatusNever,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "handle"}},
			DoNothing: true,
		}).Create(&newPages).Error; err != nil {
			return fmt.Errorf("failed to create pages: %w", err)
		}

		var pages []models.Page
		if err := tx.Select("id", "handle").
			Where("handle IN ?", handles).
			Find(&pages).Error; err != nil {
			return fmt.Errorf("failed to resolve page ids: %w", err)
		}
		pageIDByHandle := make(map[string]string, len(pages))
		for _, p := range pages {
			pageIDByHandle[p.Handle] = p.ID
		}

		edges := make([]models.ClientFollowing, 0, len(accounts))
		newPageIDs := make([]string, 0, len(accounts))
		seen := make(map[string]struct{}, len(accounts))
		for _, a := range accounts {
			pageID, ok := pageIDByHandle[a.Handle]
			if !ok {
				continue
			}
			if _, dup := seen[pageID]; dup {
				continue
			}
			seen[pageID] = struct{}{}
			edges = append(edges, models.ClientFollowing{
				ClientID:  clientID,
				PageID:    pageID,
				CreatedAt: now,
			})
			newPageIDs = append(newPageIDs, pageID)
		}

		if len(edges) > 0 {
			if err := tx.Create(&edges).Error; err != nil {
				return fmt.Errorf("failed to create relationships: %w", err)
			}
			if err := tx.Model(&models.Page{}).
				Where("id IN ?", newPageIDs).
				Update("client_count", gorm.Expr("client_count + 1")).Error; err != nil {
				return fmt.Errorf("failed to increment client counts: %w", err)
			}
		}

		created = len(edges)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// ProfileUpdate carries the fields a successful profile scrape refreshes.
type ProfileUpdate struct {
	FollowerCount int
	IsVerified    bool
	IsPrivate     bool
	Bio           *string
	ContactEmail  *string
	PromoSignal   bool
}

// RecordScrapeSuccess applies profile data and resets the failure streak
func (r *PageRepository) RecordScrapeSuccess(ctx context.Context, pageID string, u ProfileUpdate, attemptedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Page{}).
		Where("id = ?", pageID).
		Updates(map[string]interface{}{
			"follower_count":       u.FollowerCount,
			"is_verified":          u.IsVerified,
			"is_private":           u.IsPrivate,
			"bio":                  u.Bio,
			"contact_email":        u.ContactEmail,
			"promo_signal":         u.PromoSignal,
			"consecutive_failures": 0,
			"last_attempt_at":      attemptedAt,
			"last_scrape_status":   models.ScrapeStatusSuccess,
			"last_scrape_error":    nil,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record scrape success: %w", result.Error)
	}
	return nil
}

// RecordScrapeFailure extends the failure streak and keeps the error text
// verbatim for operator inspection. The increment runs in SQL so two
// workers racing on different jobs cannot lose an update.
func (r *PageRepository) RecordScrapeFailure(ctx context.Context, pageID string, scrapeErr string, attemptedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Page{}).
		Where("id = ?", pageID).
		Updates(map[string]interface{}{
			"consecutive_failures": gorm.Expr("consecutive_failures + 1"),
			"last_attempt_at":      attemptedAt,
			"last_scrape_status":   models.ScrapeStatusFailed,
			"last_scrape_error":    scrapeErr,
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record scrape failure: %w", result.Error)
	}
	return nil
}

// GetByIDs retrieves pages preserving no particular order
func (r *PageRepository) GetByIDs(ctx context.Context, pageIDs []string) ([]models.Page, error) {
	var pages []models.Page
	result := r.db.WithContext(ctx).Where("id IN ?", pageIDs).Find(&pages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get pages: %w", result.Error)
	}
	return pages, nil
}

// ListScrapeCandidates retrieves pages worth profile-scraping, most-followed
// clients first. Eligibility under the failure backoff is decided by the
// caller, which also applies hotlist tiering.
func (r *PageRepository) ListScrapeCandidates(ctx context.Context, limit int) ([]models.Page, error) {
	var pages []models.Page
	result := r.db.WithContext(ctx).
		Order("client_count DESC, follower_count DESC, created_at ASC").
		Limit(limit).
		Find(&pages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list scrape candidates: %w", result.Error)
	}
	return pages, nil
}

// ListForCategorization retrieves pages meeting the client-count threshold.
// Already-classified pages are excluded unless includeClassified is set,
// which is the separately gated reclassification path.
func (r *PageRepository) ListForCategorization(ctx context.Context, minClientCount int, includeClassified bool) ([]models.Page, error) {
	q := r.db.WithContext(ctx).Where("client_count >= ?", minClientCount)
	if !includeClassified {
		q = q.Where("category IS NULL")
	}

	var pages []models.Page
	result := q.Order("client_count DESC, follower_count DESC, created_at ASC").Find(&pages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list pages for categorization: %w", result.Error)
	}
	return pages, nil
}

// SaveCategorization stores the vision provider's verdict for a page
func (r *PageRepository) SaveCategorization(ctx context.Context, pageID string, category *string, confidence float64, contactEmail *string, promoSignal bool) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.Page{}).
		Where("id = ?", pageID).
		Updates(map[string]interface{}{
			"category":            category,
			"category_confidence": confidence,
			"contact_email":       contactEmail,
			"promo_signal":        promoSignal,
			"categorized_at":      now,
			"updated_at":          now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save categorization: %w", result.Error)
	}
	return nil
}
