package model

import "time"

// Link is the core short-link entity stored in Postgres.
//
// ShortCode is the lookup key for redirects. CustomAlias mirrors ShortCode
// when the caller chose the code themselves; both columns carry unique
// indexes so uniqueness holds globally across generated codes and aliases.
type Link struct {
	ID          uint       `db:"id" gorm:"primaryKey"`
	OriginalURL string     `db:"original_url" gorm:"type:text;not null;index"`
	ShortCode   string     `db:"short_code" gorm:"size:64;not null;uniqueIndex"`
	CustomAlias *string    `db:"custom_alias" gorm:"size:64;uniqueIndex"`
	CreatedAt   time.Time  `db:"created_at" gorm:"autoCreateTime"`
	ExpiresAt   *time.Time `db:"expires_at" gorm:"index"`
	LastAccess  *time.Time `db:"last_accessed" gorm:"column:last_accessed"`
	AccessCount int64      `db:"access_count" gorm:"not null;default:0"`
	Project     *string    `db:"project" gorm:"size:255"`
	OwnerID     *uint      `db:"owner_id" gorm:"index"`

	Stats []LinkStat `gorm:"foreignKey:LinkID;constraint:OnDelete:CASCADE"`
}

// Expired reports whether the link is past its expiry at the given instant.
// Links without an expiry never expire.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}
