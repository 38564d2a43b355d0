package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain password of every fixture user
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user with TestPassword
func (tf *TestFixtures) CreateTestUser() (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		UUID:         uuid.New(),
		Email:        fmt.Sprintf("user.%d.%09d@example.com", time.Now().UnixNano(), rand.Intn(1000000000)),
		PasswordHash: string(hashedPassword),
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateTestLink creates an active link owned by userID
func (tf *TestFixtures) CreateTestLink(userID uint, shortCode, originalURL string) (*models.Link, error) {
	link := &models.Link{
		UserID:      userID,
		OriginalURL: originalURL,
		ShortCode:   shortCode,
		IsActive:    utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(link).Error; err != nil {
		return nil, fmt.Errorf("failed to create test link: %w", err)
	}

	return link, nil
}

// CreateTestClick appends a click event at the given instant
func (tf *TestFixtures) CreateTestClick(link *models.Link, at time.Time) (*models.LinkClick, error) {
	click := &models.LinkClick{
		LinkID:    link.ID,
		UserID:    link.UserID,
		ShortCode: link.ShortCode,
		IP:        utils.ToPtr("127.0.0.1"),
		UserAgent: utils.ToPtr("Test User Agent"),
		CreatedAt: at.UTC(),
	}

	if err := tf.DB.DB.Create(click).Error; err != nil {
		return nil, fmt.Errorf("failed to create test click: %w", err)
	}

	return click, nil
}

// CreateTestSession creates an active session for userID
func (tf *TestFixtures) CreateTestSession(userID uint) (*models.UserSession, error) {
	refreshToken := uuid.NewString()
	session := &models.UserSession{
		CorrelationID: uuid.New(),
		UserID:        userID,
		SessionToken:  uuid.NewString(),
		RefreshToken:  &refreshToken,
		ExpiresAt:     utils.UTCNowAdd(24 * time.Hour),
		IsActive:      utils.ToPtr(true),
		IPAddress:     utils.ToPtr("127.0.0.1"),
		UserAgent:     utils.ToPtr("Test User Agent"),
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}
