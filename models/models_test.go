package models

import (
	"testing"
	"time"

	"github.com/amirphl/shortlink/utils"
	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "users", User{}.TableName())
	assert.Equal(t, "user_sessions", UserSession{}.TableName())
	assert.Equal(t, "audit_log", AuditLog{}.TableName())
	assert.Equal(t, "links", Link{}.TableName())
	assert.Equal(t, "link_clicks", LinkClick{}.TableName())
}

func TestUserSessionValidity(t *testing.T) {
	tests := []struct {
		name    string
		session UserSession
		expired bool
		valid   bool
	}{
		{
			name:    "active and unexpired",
			session: UserSession{IsActive: utils.ToPtr(true), ExpiresAt: time.Now().Add(time.Hour)},
			valid:   true,
		},
		{
			name:    "expired",
			session: UserSession{IsActive: utils.ToPtr(true), ExpiresAt: time.Now().Add(-time.Hour)},
			expired: true,
		},
		{
			name:    "deactivated",
			session: UserSession{IsActive: utils.ToPtr(false), ExpiresAt: time.Now().Add(time.Hour)},
		},
		{
			name:    "nil active flag",
			session: UserSession{ExpiresAt: time.Now().Add(time.Hour)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, tt.session.IsExpired())
			assert.Equal(t, tt.valid, tt.session.IsValid())
		})
	}
}

func TestLinkActive(t *testing.T) {
	assert.True(t, (&Link{IsActive: utils.ToPtr(true)}).Active())
	assert.False(t, (&Link{IsActive: utils.ToPtr(false)}).Active())
	assert.False(t, (&Link{}).Active())
}

func TestAuditLogClassification(t *testing.T) {
	failed := &AuditLog{Action: AuditActionLoginFailed, Success: utils.ToPtr(false)}
	assert.True(t, failed.IsFailed())
	assert.True(t, failed.IsSecurityEvent())

	created := &AuditLog{Action: AuditActionLinkCreated, Success: utils.ToPtr(true)}
	assert.False(t, created.IsFailed())
	assert.False(t, created.IsSecurityEvent())
}
