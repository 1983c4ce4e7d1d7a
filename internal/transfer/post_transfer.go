package transfer

type PostCreation struct {
	Caption       string
	Platforms     string // JSON array of platform names
	ScheduledTime string // RFC 3339 or "2006-01-02T15:04", empty for none
	PublishNow    bool
}

type PostCreated struct {
	PostID   int64       `json:"post_id"`
	MediaURL string      `json:"media_url"`
	Status   string      `json:"status"`
	Results  interface{} `json:"results,omitempty"`
}
