package model

import "time"

// LinkStat is one immutable record per successful redirect. Rows are written
// only by the access-recording path and removed only when the owning link is
// deleted (cascade).
type LinkStat struct {
	ID         uint      `db:"id" gorm:"primaryKey"`
	LinkID     uint      `db:"link_id" gorm:"not null;index"`
	AccessedAt time.Time `db:"accessed_at" gorm:"autoCreateTime;index"`
	IPAddress  *string   `db:"ip_address" gorm:"size:64"`
	UserAgent  *string   `db:"user_agent" gorm:"type:text"`
	Referer    *string   `db:"referer" gorm:"type:text"`
	Country    *string   `db:"country" gorm:"size:64"`
}
