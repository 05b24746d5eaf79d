package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"igscout/internal/models"
)

var ErrClientNotFound = errors.New("client not found")

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// GetByID retrieves a client by ID
func (r *ClientRepository) GetByID(ctx context.Context, clientID string) (*models.Client, error) {
	var client models.Client
	result := r.db.WithContext(ctx).First(&client, "id = ?", clientID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", result.Error)
	}
	return &client, nil
}

// ListAll retrieves every tracked client
func (r *ClientRepository) ListAll(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	result := r.db.WithContext(ctx).Order("handle ASC").Find(&clients)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list clients: %w", result.Error)
	}
	return clients, nil
}

// UpdateFollowingSnapshot records the provider-reported following count and
// sync time. The count is written even when the run's coverage was
// incomplete; it is the denominator for the next coverage check.
func (r *ClientRepository) UpdateFollowingSnapshot(ctx context.Context, clientID string, expectedCount int, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.Client{}).
		Where("id = ?", clientID).
		Updates(map[string]interface{}{
			"expected_following_count": expectedCount,
			"last_synced_at":           syncedAt,
			"updated_at":               time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update following snapshot: %w", result.Error)
	}
	return nil
}
