package models

import "time"

// ClientFollowing is one client→page edge discovered by a following scrape.
// Edges are replaced wholesale per client on each completed scrape and are
// never mutated individually.
type ClientFollowing struct {
	ClientID  string    `gorm:"column:client_id;primaryKey"`
	PageID    string    `gorm:"column:page_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

// TableName specifies the table name for GORM
func (ClientFollowing) TableName() string {
	return "client_following"
}
