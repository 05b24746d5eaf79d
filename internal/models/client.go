package models

import "time"

// Client is a tracked account whose following list is harvested.
//
// ExpectedFollowingCount is the most recent count the provider reported,
// even when the run that reported it had incomplete coverage. It is the
// denominator for the next coverage check, not a cache of a good run.
type Client struct {
	ID                     string     `gorm:"column:id;primaryKey"`
	Handle                 string     `gorm:"column:handle;uniqueIndex"`
	DisplayName            *string    `gorm:"column:display_name"`
	ExpectedFollowingCount int        `gorm:"column:expected_following_count"`
	LastSyncedAt           *time.Time `gorm:"column:last_synced_at"`
	CreatedAt              time.Time  `gorm:"column:created_at"`
	UpdatedAt              time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Client) TableName() string {
	return "clients"
}
