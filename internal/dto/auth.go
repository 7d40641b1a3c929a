package dto

// ── 认证模块 DTO ──

// RegisterRequest 注册请求
type RegisterRequest struct {
	Name     string `json:"name"     binding:"required,min=2,max=100"`
	Email    string `json:"email"    binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新 Token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ── 密码重置 DTO ──

// PasswordResetRequest 申请重置密码
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest 使用令牌设置新密码
type ResetPasswordRequest struct {
	Password        string `json:"password"         binding:"required,min=6,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
}

// VerifyResetTokenResponse 令牌校验结果
type VerifyResetTokenResponse struct {
	Valid     bool   `json:"valid"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}
