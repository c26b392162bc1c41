package model

import "time"

// AccessEvent carries one redirect hit from the resolver to the access
// recorder, either in-process or across NATS JetStream.
type AccessEvent struct {
	ID         string    `json:"id"`
	LinkID     uint      `json:"link_id"`
	ShortCode  string    `json:"short_code"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	Referer    string    `json:"referer"`
	AccessedAt time.Time `json:"accessed_at"`
}

const (
	AccessStreamName     = "HITS"
	AccessStreamSubject  = "hits.events"
	AccessConsumerName   = "hit-recorder"
	AccessStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
