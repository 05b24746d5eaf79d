package models

import "time"

type ScrapeStatus string

const (
	ScrapeStatusSuccess ScrapeStatus = "success"
	ScrapeStatusFailed  ScrapeStatus = "failed"
	ScrapeStatusNever   ScrapeStatus = "never"
)

// Page is a discovered account followed by one or more clients.
//
// ClientCount summarizes the client_following table and is only ever
// written inside the same transaction as the relationship rows it counts.
type Page struct {
	ID                  string       `gorm:"column:id;primaryKey"`
	Handle              string       `gorm:"column:handle;uniqueIndex"`
	DisplayName         *string      `gorm:"column:display_name"`
	FollowerCount       int          `gorm:"column:follower_count"`
	IsVerified          bool         `gorm:"column:is_verified"`
	IsPrivate           bool         `gorm:"column:is_private"`
	ClientCount         int          `gorm:"column:client_count;index"`
	ConsecutiveFailures int          `gorm:"column:consecutive_failures"`
	LastAttemptAt       *time.Time   `gorm:"column:last_attempt_at"`
	LastScrapeStatus    ScrapeStatus `gorm:"column:last_scrape_status"`
	LastScrapeError     *string      `gorm:"column:last_scrape_error"`
	Bio                 *string      `gorm:"column:bio"`
	ContactEmail        *string      `gorm:"column:contact_email"`
	PromoSignal         bool         `gorm:"column:promo_signal"`
	Category            *string      `gorm:"column:category"`
	CategoryConfidence  *float64     `gorm:"column:category_confidence"`
	CategorizedAt       *time.Time   `gorm:"column:categorized_at"`
	CreatedAt           time.Time    `gorm:"column:created_at"`
	UpdatedAt           time.Time    `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Page) TableName() string {
	return "pages"
}
