package goIdentity

import (
	"context"
	"errors"
)

const (
	auditEventProfileUpdate  = "profile_update"
	auditEventUsernameChange = "username_change"
	auditEventPostCreate     = "post_create"
	auditEventPostDelete     = "post_delete"
	auditEventFollow         = "follow"
	auditEventUnfollow       = "unfollow"
)

// AuditErrorCode is the stable error label written into AuditEvent.Error.
type AuditErrorCode string

const (
	auditErrUnauthorized       AuditErrorCode = "unauthorized"
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrInvalidOTP         AuditErrorCode = "invalid_otp"
	auditErrExpired            AuditErrorCode = "expired"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrAlreadyVerified    AuditErrorCode = "already_verified"
	auditErrExhausted          AuditErrorCode = "exhausted"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, eventType, accountID string, err error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	if ip := clientIPFromContext(ctx); ip != "" {
		metadata = withMeta(metadata, "ip", ip)
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		metadata = withMeta(metadata, "request_id", rid)
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		AccountID: accountID,
		Success:   err == nil,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func withMeta(m map[string]string, k, v string) map[string]string {
	out := make(map[string]string, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrInvalidOTP):
		return auditErrInvalidOTP
	case errors.Is(err, ErrExpired):
		return auditErrExpired
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrAlreadyVerified):
		return auditErrAlreadyVerified
	case errors.Is(err, ErrExhausted):
		return auditErrExhausted
	default:
		return auditErrInternal
	}
}
