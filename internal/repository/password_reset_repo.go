package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/internal/model"
)

// PasswordResetRepository 密码重置令牌数据访问接口
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *model.PasswordReset) error
	GetByToken(ctx context.Context, token string) (*model.PasswordReset, error)
	DeleteByUser(ctx context.Context, userID string) error
	MarkUsed(ctx context.Context, resetID string) error
}

type passwordResetRepo struct {
	db *gorm.DB
}

// NewPasswordResetRepo 创建 PasswordResetRepository 实例
func NewPasswordResetRepo(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepo{db: db}
}

func (r *passwordResetRepo) Create(ctx context.Context, reset *model.PasswordReset) error {
	return r.db.WithContext(ctx).Omit("User").Create(reset).Error
}

func (r *passwordResetRepo) GetByToken(ctx context.Context, token string) (*model.PasswordReset, error) {
	var reset model.PasswordReset
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("token = ?", token).
		First(&reset).Error
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

func (r *passwordResetRepo) DeleteByUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.PasswordReset{}).Error
}

func (r *passwordResetRepo) MarkUsed(ctx context.Context, resetID string) error {
	return r.db.WithContext(ctx).
		Model(&model.PasswordReset{}).
		Where("reset_id = ?", resetID).
		Update("used", true).Error
}
