// Package dto contains Data Transfer Objects for API request and response structures
package dto

// LoginRequest represents the request payload for dashboard login
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150" example:"admin"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// LoginResponse carries the issued tokens and the signed-in user
type LoginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type" example:"Bearer"`
	ExpiresIn    int      `json:"expires_in" example:"86400"`
	User         UserInfo `json:"user"`
}

// UserInfo represents user information returned in login response
type UserInfo struct {
	ID            uint   `json:"id" example:"123"`
	Username      string `json:"username" example:"partner1"`
	Email         string `json:"email" example:"user@example.com"`
	Role          string `json:"role" example:"affiliate"`
	AffiliateID   *uint  `json:"affiliate_id,omitempty"`
	AffiliateCode string `json:"affiliate_code,omitempty" example:"AFF001"`
	IsActive      *bool  `json:"is_active" example:"true"`
	CreatedAt     string `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// RefreshTokenRequest exchanges a refresh token for a new token pair
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest optionally names the refresh token to revoke alongside the access token
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// CreateStaffUserRequest creates an admin or operations account
type CreateStaffUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=150"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=100"`
	Role     string `json:"role" validate:"required,oneof=admin operations" example:"operations"`
}
