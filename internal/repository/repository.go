package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	db *gorm.DB

	User          UserRepository
	Settings      UserSettingsRepository
	Entry         TimesheetEntryRepository
	Alarm         AlarmRepository
	PasswordReset PasswordResetRepository
	Dashboard     DashboardRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:            db,
		User:          NewUserRepo(db),
		Settings:      NewUserSettingsRepo(db),
		Entry:         NewTimesheetEntryRepo(db),
		Alarm:         NewAlarmRepo(db),
		PasswordReset: NewPasswordResetRepo(db),
		Dashboard:     NewDashboardRepo(db),
	}
}

// BeginTx 开启事务；单元测试中 db 为 nil 时返回 nil
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	return tx, tx.Error
}

// WithTx 返回绑定到事务连接的 Repository；tx 为 nil 时返回自身
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

// Transaction 在单个事务内执行 fn，fn 返回错误时回滚
// db 为 nil（内存 mock）时直接以自身执行
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// formatDate DATE 列比较统一使用 YYYY-MM-DD 文本，避免时区换算
func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}
