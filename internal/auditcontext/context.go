package auditcontext

import (
	"context"
	"strings"
)

// UnknownActor is recorded when the operator cannot be resolved.
const UnknownActor = "Unknown"

const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleSystem = "system"
)

type ctxKey string

const (
	actorNameKey ctxKey = "audit.actor_name"
	actorRoleKey ctxKey = "audit.actor_role"
	requestIDKey ctxKey = "audit.request_id"
	ipAddressKey ctxKey = "audit.ip_address"
)

// WithActor stores the operator display name and role used for performedBy fields.
func WithActor(ctx context.Context, name, role string) context.Context {
	ctx = context.WithValue(ctx, actorNameKey, strings.TrimSpace(name))
	return context.WithValue(ctx, actorRoleKey, strings.ToLower(strings.TrimSpace(role)))
}

// ActorFromContext returns the operator display name, or UnknownActor.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return UnknownActor
	}
	name, _ := ctx.Value(actorNameKey).(string)
	if strings.TrimSpace(name) == "" {
		return UnknownActor
	}
	return name
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	role, _ := ctx.Value(actorRoleKey).(string)
	return role
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(ipAddressKey).(string)
	return value
}
