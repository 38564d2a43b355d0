package dto

import "time"

// SignupRequest represents the signup form data
type SignupRequest struct {
	Email           string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password        string `json:"password" validate:"required,min=8,max=72" example:"SecurePass123!"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password" example:"SecurePass123!"`

	// Present only when the signup captcha is enabled
	CaptchaID    string   `json:"captcha_id,omitempty" validate:"omitempty,uuid"`
	CaptchaAngle *float64 `json:"captcha_angle,omitempty" validate:"omitempty,min=0,max=360"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8,max=72" example:"SecurePass123!"`
}

// RefreshTokenRequest carries the refresh token when it is not sent as a cookie
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
}

// UserDTO is the public view of an account
type UserDTO struct {
	ID          uint       `json:"id" example:"123"`
	UUID        string     `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email       string     `json:"email" example:"user@example.com"`
	IsActive    *bool      `json:"is_active" example:"true"`
	CreatedAt   time.Time  `json:"created_at" example:"2024-01-15T10:30:00Z"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty" example:"2024-01-15T10:30:00Z"`
}

// SessionDTO carries the issued tokens
type SessionDTO struct {
	AccessToken      string    `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	RefreshToken     string    `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	TokenType        string    `json:"token_type" example:"Bearer"`
	ExpiresIn        int       `json:"expires_in" example:"86400"`
	ExpiresAt        time.Time `json:"expires_at" example:"2024-01-15T16:30:00Z"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at" example:"2024-01-22T16:30:00Z"`
}

// AuthResponse is returned by signup, login and refresh.
// RedirectTo tells the client where the route guard sends a freshly authenticated user.
type AuthResponse struct {
	User       UserDTO    `json:"user"`
	Session    SessionDTO `json:"session"`
	RedirectTo string     `json:"redirect_to" example:"/dashboard"`
}

// CurrentUserResponse answers getCurrentUser
type CurrentUserResponse struct {
	User            UserDTO `json:"user"`
	IsAuthenticated bool    `json:"is_authenticated" example:"true"`
}

// CaptchaResponse is a rotate captcha challenge rendered by the signup form
type CaptchaResponse struct {
	ID          string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	MasterImage string    `json:"master_image"`
	ThumbImage  string    `json:"thumb_image"`
	ExpiresAt   time.Time `json:"expires_at"`
}
