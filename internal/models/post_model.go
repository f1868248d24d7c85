package models

import "time"

type ScheduledPost struct {
	ID            int64      `db:"id" json:"id"`
	PublicID      string     `db:"public_id" json:"public_id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Content       string     `db:"content" json:"content"`
	Platforms     []string   `db:"platforms" json:"platforms"`
	ScheduledTime time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Status        string     `db:"status" json:"status"` // scheduled, processing, published, failed
	RetryCount    int        `db:"retry_count" json:"retry_count"`
	MaxRetries    int        `db:"max_retries" json:"max_retries"`
	ErrorMessage  string     `db:"error_message" json:"error_message,omitempty"`
	PublishedAt   *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusScheduled  = "scheduled"
	PostStatusProcessing = "processing"
	PostStatusPublished  = "published"
	PostStatusFailed     = "failed"
)

const (
	PlatformTwitter   = "twitter"
	PlatformLinkedin  = "linkedin"
	PlatformInstagram = "instagram"
	PlatformTelegram  = "telegram"
	PlatformYoutube   = "youtube"
)

// SupportedPlatforms are the platform identifiers a post may target. Only
// twitter has a publisher today; the rest fail their executions with an
// unsupported-platform error until one is registered.
var SupportedPlatforms = map[string]struct{}{
	PlatformTwitter:   {},
	PlatformLinkedin:  {},
	PlatformInstagram: {},
	PlatformTelegram:  {},
	PlatformYoutube:   {},
}
