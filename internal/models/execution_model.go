package models

import "time"

// PostExecution is one platform-specific publishing attempt for a post.
// Executions are authoritative for the outcome; the parent post's status is
// derived from them.
type PostExecution struct {
	ID              int64     `db:"id" json:"id"`
	ScheduledPostID int64     `db:"scheduled_post_id" json:"scheduled_post_id"`
	Platform        string    `db:"platform" json:"platform"`
	Status          string    `db:"status" json:"status"` // pending, processing, success, failed
	RetryCount      int       `db:"retry_count" json:"retry_count"`
	ExternalPostID  string    `db:"external_post_id" json:"external_post_id,omitempty"`
	ExternalURL     string    `db:"external_url" json:"external_url,omitempty"`
	ErrorMessage    string    `db:"error_message" json:"error_message,omitempty"`
	ResponseData    string    `db:"response_data" json:"response_data,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

const (
	ExecutionStatusPending    = "pending"
	ExecutionStatusProcessing = "processing"
	ExecutionStatusSuccess    = "success"
	ExecutionStatusFailed     = "failed"
)
