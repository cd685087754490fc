package auth

import "context"

type contextKey string

const (
	contextKeyUser    contextKey = "auth.user_id"
	contextKeyRole    contextKey = "auth.role"
	contextKeySubject contextKey = "auth.subject"
)

// WithIdentity stores auth identity details in context.
func WithIdentity(ctx context.Context, userID string, role Role, subject string) context.Context {
	ctx = context.WithValue(ctx, contextKeyUser, userID)
	ctx = context.WithValue(ctx, contextKeyRole, role)
	ctx = context.WithValue(ctx, contextKeySubject, subject)
	return ctx
}

// UserIDFromContext extracts the portal user id from context.
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyUser)
	if userID, ok := value.(string); ok {
		return userID
	}
	return ""
}

// RoleFromContext extracts role from context.
func RoleFromContext(ctx context.Context) Role {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeyRole)
	if role, ok := value.(Role); ok {
		return role
	}
	if role, ok := value.(string); ok {
		if normalized, valid := NormalizeRole(role); valid {
			return normalized
		}
	}
	return ""
}

// SubjectFromContext extracts subject from context.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value := ctx.Value(contextKeySubject)
	if subject, ok := value.(string); ok {
		return subject
	}
	return ""
}

// CallerParentID returns the requester's parent id when the caller holds
// the parent role, and "" for admins. Services treat "" as an unrestricted
// view.
func CallerParentID(ctx context.Context) string {
	if RoleFromContext(ctx) == RoleAdmin {
		return ""
	}
	return UserIDFromContext(ctx)
}
