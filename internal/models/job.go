package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

type JobType string

const (
	JobTypeFollowingScrape JobType = "following_scrape"
	JobTypeProfileScrape   JobType = "profile_scrape"
	JobTypeCategorization  JobType = "categorization"
)

// JSONB type for GORM to handle PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Value implements driver.Valuer for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, j)
}

// StringList stores an ordered list of strings in a JSONB column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, l)
}

// ScrapeJob is one row in the job ledger. Rows are never deleted; a
// completed or failed job stays around as the audit trail for its run.
type ScrapeJob struct {
	ID              string     `gorm:"column:id;primaryKey"`
	JobType         JobType    `gorm:"column:job_type;index"`
	Status          JobStatus  `gorm:"column:status;index"`
	ClientID        *string    `gorm:"column:client_id"` // following scrape target
	PageIDs         StringList `gorm:"column:page_ids;type:jsonb"`
	CoverageAttempt int        `gorm:"column:coverage_attempt"`
	ClaimedBy       *string    `gorm:"column:claimed_by"`
	QueuedAt        time.Time  `gorm:"column:queued_at"`
	ClaimedAt       *time.Time `gorm:"column:claimed_at"`
	CompletedAt     *time.Time `gorm:"column:completed_at"`
	Result          JSONB      `gorm:"column:result;type:jsonb"`
	CreatedAt       time.Time  `gorm:"column:created_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (ScrapeJob) TableName() string {
	return "scrape_jobs"
}

// FollowingScrapeResult is the structured result of a FOLLOWING_SCRAPE job.
type FollowingScrapeResult struct {
	AccountsRetrieved int      `json:"accounts_retrieved"`
	ExpectedCount     int      `json:"expected_count"`
	CoverageRatio     float64  `json:"coverage_ratio"`
	Decision          string   `json:"decision"`
	Shortfall         int      `json:"shortfall,omitempty"`
	FailedHandles     []string `json:"failed_handles,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// ProfileScrapeResult is the structured result of a PROFILE_SCRAPE job.
type ProfileScrapeResult struct {
	TotalPages    int      `json:"total_pages"`
	SuccessCount  int      `json:"success_count"`
	FailedCount   int      `json:"failed_count"`
	SkippedCount  int      `json:"skipped_count"`
	FailedHandles []string `json:"failed_handles,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// CategorizationResult is the structured result of a CATEGORIZATION job.
type CategorizationResult struct {
	TotalPages    int      `json:"total_pages"`
	Classified    int      `json:"classified"`
	FailedCount   int      `json:"failed_count"`
	FailedHandles []string `json:"failed_handles,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// AsJSONB converts a typed job result into the JSONB shape stored on the row.
func AsJSONB(v interface{}) (JSONB, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
