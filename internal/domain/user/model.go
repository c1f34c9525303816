package user

import "time"

// Profile records the owners seen by the identity middleware. Nickname is the
// owner string used in chart URLs.
type Profile struct {
	UserID    string    `gorm:"primaryKey"`
	Nickname  string    `gorm:"not null;uniqueIndex"`
	Email     *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
