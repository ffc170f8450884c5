// Package testing provides test utilities and database setup for the lead service
package testing

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plaintext password of every fixture user
const TestPassword = "TestPass123!"

var fixtureSeq atomic.Int64

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

func nextSeq() int64 {
	return fixtureSeq.Add(1)
}

// CreateTestUser creates an active user with the given role and TestPassword
func (tf *TestFixtures) CreateTestUser(role models.UserRole) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	n := nextSeq()
	user := &models.User{
		Username:     fmt.Sprintf("%s_%d", role, n),
		Email:        fmt.Sprintf("%s.%d@example.com", role, n),
		PasswordHash: string(hashedPassword),
		Role:         role,
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreateTestForm creates a form owned by a fresh admin
func (tf *TestFixtures) CreateTestForm(active bool) (*models.Form, error) {
	admin, err := tf.CreateTestUser(models.UserRoleAdmin)
	if err != nil {
		return nil, err
	}

	form := &models.Form{
		Name:        fmt.Sprintf("Contact Us %d", nextSeq()),
		Description: "Test form",
		FormType:    models.FormTypeLeadCapture,
		Fields: models.FormFields{
			{Name: "email", Type: models.FieldTypeEmail, Label: "Email", Required: true, Order: 1},
			{Name: "name", Type: models.FieldTypeText, Label: "Name", Order: 2},
		},
		StylingConfig: models.JSONMap{},
		IsActive:      utils.ToPtr(active),
		CreatedBy:     admin.ID,
	}

	if err := tf.DB.DB.Create(form).Error; err != nil {
		return nil, fmt.Errorf("failed to create test form: %w", err)
	}
	return form, nil
}

// CreateTestAffiliate creates an affiliate with its own user account
func (tf *TestFixtures) CreateTestAffiliate(code string) (*models.Affiliate, error) {
	user, err := tf.CreateTestUser(models.UserRoleAffiliate)
	if err != nil {
		return nil, err
	}

	affiliate := &models.Affiliate{
		UserID:        user.ID,
		AffiliateCode: code,
		CompanyName:   "Partner " + code,
		IsActive:      utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(affiliate).Error; err != nil {
		return nil, fmt.Errorf("failed to create test affiliate: %w", err)
	}
	affiliate.User = user
	return affiliate, nil
}

// CreateTestAssignment links an affiliate to a form
func (tf *TestFixtures) CreateTestAssignment(affiliateID, formID uint) (*models.AffiliateFormAssignment, error) {
	assignment := &models.AffiliateFormAssignment{
		AffiliateID: affiliateID,
		FormID:      formID,
		IsActive:    utils.ToPtr(true),
		AssignedAt:  utils.UTCNow(),
	}
	if err := tf.DB.DB.Create(assignment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test assignment: %w", err)
	}
	return assignment, nil
}

// CreateTestLead inserts a lead directly, bypassing counter maintenance
func (tf *TestFixtures) CreateTestLead(formID uint, affiliateID *uint, status models.LeadStatus, createdAt time.Time) (*models.Lead, error) {
	n := nextSeq()
	lead := &models.Lead{
		FormID:      formID,
		AffiliateID: affiliateID,
		FormData:    models.JSONMap{"email": fmt.Sprintf("lead%d@example.com", n)},
		Email:       fmt.Sprintf("lead%d@example.com", n),
		Status:      status,
		CreatedAt:   createdAt.UTC(),
		UpdatedAt:   createdAt.UTC(),
	}
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create test lead: %w", err)
	}
	return lead, nil
}
