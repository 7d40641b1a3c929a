package model

import "time"

// PasswordReset 密码重置令牌表 对应 password_resets
type PasswordReset struct {
	ResetID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"reset_id"`
	UserID    string    `gorm:"type:uuid;not null;index"                       json:"user_id"`
	Token     string    `gorm:"type:varchar(128);not null;uniqueIndex"         json:"-"`
	ExpiresAt time.Time `gorm:"type:timestamptz;not null"                      json:"expires_at"`
	Used      bool      `gorm:"not null"                                       json:"used"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"-"`
}

// TableName 指定表名
func (PasswordReset) TableName() string { return "password_resets" }

// Usable 未使用且未过期
func (p *PasswordReset) Usable(now time.Time) bool {
	return !p.Used && now.Before(p.ExpiresAt)
}
