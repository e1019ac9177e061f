// 文件: pkg/account/model.go
// Account: one operator-controlled identity pairing a Platform-D login
// with a Platform-X API keypair. The Account Registry owns the live
// client handles; every other component borrows one, never constructs
// its own.

package account

import "time"

type Platform string

const (
	PlatformD Platform = "platform_d"
	PlatformX Platform = "platform_x"
)

type Account struct {
	ID              int64  `gorm:"primaryKey;column:id"`
	Tag             string `gorm:"column:tag;uniqueIndex"` // operator-facing name, also the env-var key segment
	Disabled        bool   `gorm:"column:disabled"`
	SessionCookie   string `gorm:"column:session_cookie"` // Platform-D, persisted across restarts
	AdSlotCapacity  int    `gorm:"column:ad_slot_capacity"`
	PlatformXUserID string `gorm:"column:platform_x_user_id"` // own user id, for chat sender classification

	CreatedAt int64 `gorm:"column:created_at"`
	UpdatedAt int64 `gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func New(id int64, tag string, adSlotCapacity int) *Account {
	now := time.Now().UnixMilli()
	return &Account{
		ID:             id,
		Tag:            tag,
		AdSlotCapacity: adSlotCapacity,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
