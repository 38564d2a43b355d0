package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       *uint           `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionSignupCompleted = "signup_completed"
	AuditActionSignupFailed    = "signup_failed"
	AuditActionLoginSuccess    = "login_success"
	AuditActionLoginFailed     = "login_failed"
	AuditActionLogout          = "logout"
	AuditActionTokenRefreshed  = "token_refreshed"
	AuditActionSessionCreated  = "session_created"
	AuditActionLinkCreated     = "link_created"
	AuditActionLinkDeleted     = "link_deleted"
	AuditActionLinkDeleteNoop  = "link_delete_noop"
	AuditActionLinksExported   = "links_exported"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	UserID        *uint
	Action        *string
	Success       *bool
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}

func (a *AuditLog) IsSecurityEvent() bool {
	switch a.Action {
	case AuditActionLoginSuccess, AuditActionLoginFailed, AuditActionSignupFailed, AuditActionLinkDeleteNoop:
		return true
	}
	return false
}
