package service

import (
	"context"
	"errors"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/KhalilA93/TImesheetTracker/config"
	"github.com/KhalilA93/TImesheetTracker/internal/dto"
	"github.com/KhalilA93/TImesheetTracker/internal/model"
	"github.com/KhalilA93/TImesheetTracker/internal/repository"
	"github.com/KhalilA93/TImesheetTracker/pkg/mail"
)

const (
	resetTokenLength   = 64
	resetTokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrInvalidResetToken = errors.New("重置链接无效或已过期")
	ErrResetEmailFailed  = errors.New("重置邮件发送失败，请稍后重试")
)

// PasswordResetService 密码重置业务接口
type PasswordResetService interface {
	// RequestReset 生成一次性令牌并发送邮件；邮箱不存在时同样返回 nil，避免泄露注册信息
	RequestReset(ctx context.Context, email string) error
	VerifyToken(ctx context.Context, token string) (*dto.VerifyResetTokenResponse, error)
	ResetPassword(ctx context.Context, token, password string) error
}

type passwordResetService struct {
	repo     *repository.Repository
	mailer   mail.Sender
	tokenTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewPasswordResetService 创建 PasswordResetService 实例
func NewPasswordResetService(
	cfg *config.Config,
	repo *repository.Repository,
	mailer mail.Sender,
	logger *zap.Logger,
) PasswordResetService {
	ttl := cfg.Mail.ResetTokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &passwordResetService{
		repo:     repo,
		mailer:   mailer,
		tokenTTL: ttl,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, email string) error {
	user, err := s.repo.User.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return err
	}

	token, err := gonanoid.Generate(resetTokenAlphabet, resetTokenLength)
	if err != nil {
		s.logger.Error("生成重置令牌失败", zap.Error(err))
		return err
	}

	// 旧令牌全部作废，只保留最新一个
	reset := &model.PasswordReset{
		UserID:    user.UserID,
		Token:     token,
		ExpiresAt: s.now().Add(s.tokenTTL),
	}
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.PasswordReset.DeleteByUser(ctx, user.UserID); err != nil {
			return err
		}
		return tx.PasswordReset.Create(ctx, reset)
	})
	if err != nil {
		s.logger.Error("保存重置令牌失败", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}

	msg := mail.PasswordResetMessage{
		To:        user.Email,
		Name:      user.Name,
		Token:     token,
		ExpiresIn: s.tokenTTL,
	}
	if err := s.mailer.SendPasswordReset(ctx, msg); err != nil {
		s.logger.Error("发送重置邮件失败", zap.String("user_id", user.UserID), zap.Error(err))
		return ErrResetEmailFailed
	}

	s.logger.Info("已发送密码重置邮件", zap.String("user_id", user.UserID))
	return nil
}

func (s *passwordResetService) VerifyToken(ctx context.Context, token string) (*dto.VerifyResetTokenResponse, error) {
	reset, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return &dto.VerifyResetTokenResponse{
		Valid:     true,
		Email:     reset.User.Email,
		ExpiresAt: reset.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, token, password string) error {
	reset, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return err
	}

	user := reset.User
	user.PasswordHash = string(hash)
	err = s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.User.Update(ctx, user); err != nil {
			return err
		}
		return tx.PasswordReset.MarkUsed(ctx, reset.ResetID)
	})
	if err != nil {
		s.logger.Error("重置密码失败", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}

	s.logger.Info("密码已重置", zap.String("user_id", user.UserID))
	return nil
}

// lookup 查找可用令牌：存在、未使用、未过期
func (s *passwordResetService) lookup(ctx context.Context, token string) (*model.PasswordReset, error) {
	if token == "" {
		return nil, ErrInvalidResetToken
	}
	reset, err := s.repo.PasswordReset.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidResetToken
		}
		s.logger.Error("查询重置令牌失败", zap.Error(err))
		return nil, err
	}
	if !reset.Usable(s.now()) || reset.User == nil {
		return nil, ErrInvalidResetToken
	}
	return reset, nil
}
