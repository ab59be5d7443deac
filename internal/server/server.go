package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/tirta/internal/authorization"
	auditdomain "github.com/smallbiznis/tirta/internal/audit/domain"
	"github.com/smallbiznis/tirta/internal/config"
	disconnectiondomain "github.com/smallbiznis/tirta/internal/disconnection/domain"
	notificationdomain "github.com/smallbiznis/tirta/internal/notification/domain"
	"github.com/smallbiznis/tirta/internal/observability"
	obslogger "github.com/smallbiznis/tirta/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tirta/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tirta/internal/observability/tracing"
	overduedomain "github.com/smallbiznis/tirta/internal/overdue/domain"
	smsdomain "github.com/smallbiznis/tirta/internal/sms/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	authzSvc        authorization.Service
	overdueSvc      overduedomain.Service
	disconnectSvc   disconnectiondomain.Service
	notificationSvc notificationdomain.Service
	smsSvc          smsdomain.Service
	auditSvc        auditdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	AuthzSvc        authorization.Service
	OverdueSvc      overduedomain.Service
	DisconnectSvc   disconnectiondomain.Service
	NotificationSvc notificationdomain.Service
	SMSSvc          smsdomain.Service
	AuditSvc        auditdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		authzSvc:        p.AuthzSvc,
		overdueSvc:      p.OverdueSvc,
		disconnectSvc:   p.DisconnectSvc,
		notificationSvc: p.NotificationSvc,
		smsSvc:          p.SMSSvc,
		auditSvc:        p.AuditSvc,
	}
	svc.registerAdminRoutes()
	svc.registerFallback()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.OperatorRequired())

	// -------- Disconnections --------
	admin.GET("/disconnections", s.authorize(authorization.ObjectDisconnection, authorization.ActionView), s.ListOverdue)
	admin.GET("/disconnections/:id", s.authorize(authorization.ObjectDisconnection, authorization.ActionView), s.GetOverdueDetails)
	admin.GET("/disconnections/:id/history", s.authorize(authorization.ObjectDisconnection, authorization.ActionView), s.ListDisconnectionHistory)
	admin.POST("/disconnections/:id/disconnect", s.authorize(authorization.ObjectDisconnection, authorization.ActionDisconnect), s.Disconnect)
	admin.POST("/disconnections/:id/reconnect", s.authorize(authorization.ObjectDisconnection, authorization.ActionReconnect), s.Reconnect)
	admin.POST("/disconnections/:id/notify", s.authorize(authorization.ObjectDisconnection, authorization.ActionNotify), s.NotifyConsumer)

	// -------- SMS --------
	admin.POST("/sms/send", s.authorize(authorization.ObjectSMS, authorization.ActionSend), s.SendBulkSMS)
	admin.GET("/sms/recipients", s.authorize(authorization.ObjectSMS, authorization.ActionView), s.ListSMSRecipients)
	admin.GET("/sms/logs", s.authorize(authorization.ObjectSMSLog, authorization.ActionView), s.ListSMSLogs)

	// -------- Notifications --------
	admin.GET("/notifications", s.authorize(authorization.ObjectNotification, authorization.ActionView), s.ListNotifications)
	admin.POST("/notifications", s.authorize(authorization.ObjectNotification, authorization.ActionCreate), s.CreateNotification)
	admin.POST("/notifications/broadcast", s.authorize(authorization.ObjectNotification, authorization.ActionBroadcast), s.BroadcastNotification)
	admin.POST("/notifications/:id/read", s.authorize(authorization.ObjectNotification, authorization.ActionUpdate), s.MarkNotificationRead)
	admin.POST("/notifications/:id/archive", s.authorize(authorization.ObjectNotification, authorization.ActionUpdate), s.ArchiveNotification)
	admin.POST("/notifications/:id/unarchive", s.authorize(authorization.ObjectNotification, authorization.ActionUpdate), s.UnarchiveNotification)
	admin.DELETE("/notifications/:id", s.authorize(authorization.ObjectNotification, authorization.ActionDelete), s.DeleteNotification)
	admin.GET("/consumers/:id/notifications", s.authorize(authorization.ObjectNotification, authorization.ActionView), s.ListConsumerNotifications)

	// -------- Audit --------
	admin.GET("/audit-trails", s.authorize(authorization.ObjectAuditTrail, authorization.ActionView), s.ListAuditTrails)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
