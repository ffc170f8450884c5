package businessflow

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/app/services"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	"golang.org/x/crypto/bcrypt"
)

// AuthFlow handles dashboard sign-in
type AuthFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, request *dto.RefreshTokenRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, accessToken string, request *dto.LogoutRequest) error
	Profile(ctx context.Context, actor Actor) (*dto.UserInfo, error)
}

// AuthFlowImpl implements AuthFlow
type AuthFlowImpl struct {
	userRepo      repository.UserRepository
	affiliateRepo repository.AffiliateRepository
	tokenService  services.TokenService
}

// NewAuthFlow creates a new auth flow
func NewAuthFlow(
	userRepo repository.UserRepository,
	affiliateRepo repository.AffiliateRepository,
	tokenService services.TokenService,
) AuthFlow {
	return &AuthFlowImpl{
		userRepo:      userRepo,
		affiliateRepo: affiliateRepo,
		tokenService:  tokenService,
	}
}

// Login verifies the password and issues tokens carrying the user's role and affiliate scope.
// Unknown usernames and wrong passwords fail the same way.
func (af *AuthFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	if request == nil || strings.TrimSpace(request.Username) == "" || request.Password == "" {
		return nil, NewValidationError("username and password are required")
	}
	if metadata == nil {
		metadata = NewClientMetadata("", "")
	}

	user, err := af.userRepo.ByUsername(ctx, strings.TrimSpace(request.Username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		af.logAttempt(request.Username, metadata, false, "unknown user")
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password)); err != nil {
		af.logAttempt(request.Username, metadata, false, "wrong password")
		return nil, ErrInvalidCredentials
	}
	if !utils.IsTrue(user.IsActive) {
		af.logAttempt(request.Username, metadata, false, "inactive account")
		return nil, ErrAccountInactive
	}

	affiliate, err := af.affiliateOf(ctx, user)
	if err != nil {
		return nil, err
	}

	resp, err := af.issue(user, affiliate)
	if err != nil {
		return nil, err
	}

	// a failed timestamp write must not block sign-in
	if err := af.userRepo.TouchLastLogin(ctx, user.ID, utils.UTCNow()); err != nil {
		logEvent("warn", "last_login_update_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
	}
	af.logAttempt(user.Username, metadata, true, "")
	return resp, nil
}

// Refresh rotates a refresh token after re-checking that the account is still usable
func (af *AuthFlowImpl) Refresh(ctx context.Context, request *dto.RefreshTokenRequest) (*dto.LoginResponse, error) {
	if request == nil || request.RefreshToken == "" {
		return nil, NewValidationError("refresh_token is required")
	}
	// consuming burns the token before anything else, so a replayed refresh token loses the race
	claims, err := af.tokenService.ConsumeToken(request.RefreshToken, services.TokenTypeRefresh)
	if err != nil {
		logEvent("warn", "refresh_rejected", map[string]any{"error": err.Error()})
		return nil, ErrInvalidCredentials
	}

	user, err := af.userRepo.ByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, ErrAccountInactive
	}
	affiliate, err := af.affiliateOf(ctx, user)
	if err != nil {
		return nil, err
	}

	return af.issue(user, affiliate)
}

// Logout revokes the caller's access token and, when given, the refresh token of the same session
func (af *AuthFlowImpl) Logout(ctx context.Context, accessToken string, request *dto.LogoutRequest) error {
	if accessToken == "" {
		return ErrInvalidCredentials
	}
	if err := af.tokenService.RevokeToken(accessToken); err != nil {
		logEvent("warn", "token_revoke_failed", map[string]any{"token_type": services.TokenTypeAccess, "error": err.Error()})
		return ErrInvalidCredentials
	}

	var userID uint
	if claims, err := af.tokenService.GetTokenClaims(accessToken); err == nil {
		userID = claims.UserID
	}
	if request != nil && request.RefreshToken != "" {
		claims, err := af.tokenService.GetTokenClaims(request.RefreshToken)
		if err != nil || claims.TokenType != services.TokenTypeRefresh || claims.UserID != userID {
			return NewValidationError("refresh_token does not belong to this session")
		}
		if err := af.tokenService.RevokeToken(request.RefreshToken); err != nil {
			logEvent("warn", "token_revoke_failed", map[string]any{"token_type": services.TokenTypeRefresh, "user_id": userID, "error": err.Error()})
			return NewBusinessError("LOGOUT_FAILED", "Failed to revoke refresh token", err)
		}
	}

	logEvent("info", "logout", map[string]any{"user_id": userID})
	return nil
}

// Profile returns the signed-in user as stored now, not as the token describes it
func (af *AuthFlowImpl) Profile(ctx context.Context, actor Actor) (*dto.UserInfo, error) {
	user, err := af.userRepo.ByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !utils.IsTrue(user.IsActive) {
		return nil, ErrAccountInactive
	}
	affiliate, err := af.affiliateOf(ctx, user)
	if err != nil {
		return nil, err
	}
	info := toUserInfo(user, affiliate)
	return &info, nil
}

func (af *AuthFlowImpl) affiliateOf(ctx context.Context, user *models.User) (*models.Affiliate, error) {
	if user.Role != models.UserRoleAffiliate {
		return nil, nil
	}
	affiliate, err := af.affiliateRepo.ByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil {
		return nil, ErrUserNotAffiliate
	}
	if !affiliate.Active() {
		return nil, ErrAffiliateInactive
	}
	return affiliate, nil
}

func (af *AuthFlowImpl) issue(user *models.User, affiliate *models.Affiliate) (*dto.LoginResponse, error) {
	subject := services.TokenSubject{UserID: user.ID, Role: string(user.Role)}
	if affiliate != nil {
		subject.AffiliateID = utils.ToPtr(affiliate.ID)
	}
	info := toUserInfo(user, affiliate)

	accessToken, refreshToken, err := af.tokenService.GenerateTokens(subject)
	if err != nil {
		return nil, NewBusinessError("TOKEN_GENERATION_FAILED", "Failed to generate tokens", err)
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(af.tokenService.AccessTokenTTL().Seconds()),
		User:         info,
	}, nil
}

func toUserInfo(user *models.User, affiliate *models.Affiliate) dto.UserInfo {
	info := dto.UserInfo{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      string(user.Role),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if affiliate != nil {
		info.AffiliateID = utils.ToPtr(affiliate.ID)
		info.AffiliateCode = affiliate.AffiliateCode
	}
	return info
}

func (af *AuthFlowImpl) logAttempt(username string, metadata *ClientMetadata, success bool, reason string) {
	fields := map[string]any{
		"username":   username,
		"ip_address": metadata.IPAddress,
		"success":    success,
	}
	if metadata.RequestID != "" {
		fields["request_id"] = metadata.RequestID
	}
	level := "info"
	if !success {
		level = "warn"
		fields["reason"] = reason
	}
	logEvent(level, "login_attempt", fields)
}
