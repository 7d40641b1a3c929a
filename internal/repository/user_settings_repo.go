package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
)

// UserSettingsRepository 用户设置数据访问接口（每用户一行）
type UserSettingsRepository interface {
	GetByUser(ctx context.Context, userID string) (*model.UserSettings, error)
	// Create 插入默认设置；并发首次访问时以已存在的行为准
	Create(ctx context.Context, settings *model.UserSettings) error
	Update(ctx context.Context, settings *model.UserSettings) error
	Delete(ctx context.Context, userID string) error
}

type userSettingsRepo struct {
	db *gorm.DB
}

// NewUserSettingsRepo 创建 UserSettingsRepository 实例
func NewUserSettingsRepo(db *gorm.DB) UserSettingsRepository {
	return &userSettingsRepo{db: db}
}

func (r *userSettingsRepo) GetByUser(ctx context.Context, userID string) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *userSettingsRepo) Create(ctx context.Context, settings *model.UserSettings) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(settings).Error
}

func (r *userSettingsRepo) Update(ctx context.Context, settings *model.UserSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

func (r *userSettingsRepo) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.UserSettings{}).Error
}
