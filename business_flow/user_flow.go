package businessflow

import (
	"context"
	"errors"
	"strings"

	"github.com/amirphl/Kitsune/app/dto"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	"golang.org/x/crypto/bcrypt"
)

// UserFlow manages staff accounts. Affiliate accounts are created through AffiliateFlow
// because they need a profile row next to the user.
type UserFlow interface {
	CreateStaffUser(ctx context.Context, actor Actor, req *dto.CreateStaffUserRequest) (*dto.UserInfo, error)
	ListUsers(ctx context.Context, role string) ([]dto.UserInfo, error)
}

// UserFlowImpl implements UserFlow
type UserFlowImpl struct {
	userRepo   repository.UserRepository
	bcryptCost int
}

// NewUserFlow creates a new user flow
func NewUserFlow(userRepo repository.UserRepository, bcryptCost int) UserFlow {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserFlowImpl{userRepo: userRepo, bcryptCost: bcryptCost}
}

// CreateStaffUser creates an admin or operations account
func (f *UserFlowImpl) CreateStaffUser(ctx context.Context, actor Actor, req *dto.CreateStaffUserRequest) (*dto.UserInfo, error) {
	if req == nil {
		return nil, NewValidationError("request is required")
	}
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if username == "" || email == "" || req.Password == "" {
		return nil, NewValidationError("username, email and password are required")
	}
	role := models.UserRole(strings.TrimSpace(req.Role))
	if role != models.UserRoleAdmin && role != models.UserRoleOperations {
		return nil, NewValidationError("role must be admin or operations")
	}

	taken, err := f.userRepo.Exists(ctx, models.UserFilter{Username: &username})
	if err != nil {
		return nil, err
	}
	if !taken {
		taken, err = f.userRepo.Exists(ctx, models.UserFilter{Email: &email})
		if err != nil {
			return nil, err
		}
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), f.bcryptCost)
	if err != nil {
		return nil, NewBusinessError("PASSWORD_HASH_FAILED", "Failed to hash password", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     utils.ToPtr(true),
	}
	if err := f.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, NewBusinessError("USER_CREATE_FAILED", "Failed to create user", err)
	}

	logEvent("info", "staff_user_created", map[string]any{
		"user_id":    user.ID,
		"role":       string(role),
		"created_by": actor.UserID,
	})
	info := toUserInfo(user, nil)
	return &info, nil
}

// ListUsers returns accounts, newest first, optionally narrowed to one role
func (f *UserFlowImpl) ListUsers(ctx context.Context, role string) ([]dto.UserInfo, error) {
	var filter models.UserFilter
	if role != "" {
		r := models.UserRole(role)
		if !r.Valid() {
			return nil, NewValidationError("unknown role")
		}
		filter.Role = &r
	}
	users, err := f.userRepo.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return nil, err
	}
	items := make([]dto.UserInfo, 0, len(users))
	for _, u := range users {
		items = append(items, toUserInfo(u, nil))
	}
	return items, nil
}
