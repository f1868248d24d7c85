package models

import "time"

// Secret is a named credential (API key, OAuth token). The value is stored
// AES-GCM encrypted and only decrypted inside the credential service.
type Secret struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Value     string    `db:"value" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Secret names the Twitter publisher reads.
const (
	SecretTwitterAPIKey       = "twitter_api_key"
	SecretTwitterAPISecret    = "twitter_api_secret"
	SecretTwitterAccessToken  = "twitter_access_token"
	SecretTwitterAccessSecret = "twitter_access_token_secret"
)
