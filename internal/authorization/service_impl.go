package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/tirta/internal/auditcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectDisconnection = "disconnection"
	ObjectNotification  = "notification"
	ObjectSMS           = "sms"
	ObjectSMSLog        = "sms_log"
	ObjectAuditTrail    = "audit_trail"
)

const (
	ActionView       = "view"
	ActionDisconnect = "disconnect"
	ActionReconnect  = "reconnect"
	ActionNotify     = "notify"
	ActionSend       = "send"
	ActionCreate     = "create"
	ActionBroadcast  = "broadcast"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, role, object, action string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case auditcontext.RoleAdmin, auditcontext.RoleStaff:
	default:
		return ErrInvalidRole
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject(role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("role", role),
			zap.String("object", object),
			zap.String("action", action),
			zap.String("actor", auditcontext.ActorFromContext(ctx)),
		)
		return ErrForbidden
	}
	return nil
}

func subject(role string) string {
	return "role:" + role
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Staff run the day-to-day engine.
		{"role:staff", ObjectDisconnection, ActionView},
		{"role:staff", ObjectDisconnection, ActionDisconnect},
		{"role:staff", ObjectDisconnection, ActionReconnect},
		{"role:staff", ObjectDisconnection, ActionNotify},
		{"role:staff", ObjectSMS, ActionView},
		{"role:staff", ObjectSMS, ActionSend},
		{"role:staff", ObjectNotification, ActionView},
		{"role:staff", ObjectNotification, ActionCreate},
		{"role:staff", ObjectNotification, ActionBroadcast},
		{"role:staff", ObjectNotification, ActionUpdate},

		// Admin-only
		{"role:admin", ObjectNotification, ActionDelete},
		{"role:admin", ObjectSMSLog, ActionView},
		{"role:admin", ObjectAuditTrail, ActionView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	if _, err := enforcer.AddGroupingPolicy("role:admin", "role:staff"); err != nil {
		return err
	}
	return nil
}
