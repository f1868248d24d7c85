package transfer

type PostCreation struct {
	Content       string `json:"content"`
	Platforms     string `json:"platforms"` // JSON array of platform identifiers
	ScheduledTime string `json:"scheduled_time"`
	MaxRetries    int    `json:"max_retries"`
	AssetIDs      string `json:"asset_ids"` // JSON array of media asset ids
}
