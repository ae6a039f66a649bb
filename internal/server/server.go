package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/devmarvs/backoffice/internal/audit"
	auditdomain "github.com/devmarvs/backoffice/internal/audit/domain"
	"github.com/devmarvs/backoffice/internal/billing"
	billingdomain "github.com/devmarvs/backoffice/internal/billing/domain"
	"github.com/devmarvs/backoffice/internal/client"
	clientdomain "github.com/devmarvs/backoffice/internal/client/domain"
	"github.com/devmarvs/backoffice/internal/config"
	"github.com/devmarvs/backoffice/internal/followup"
	followupdomain "github.com/devmarvs/backoffice/internal/followup/domain"
	"github.com/devmarvs/backoffice/internal/invoice"
	invoicedomain "github.com/devmarvs/backoffice/internal/invoice/domain"
	"github.com/devmarvs/backoffice/internal/lock"
	"github.com/devmarvs/backoffice/internal/metrics"
	"github.com/devmarvs/backoffice/internal/pack"
	packdomain "github.com/devmarvs/backoffice/internal/pack/domain"
	"github.com/devmarvs/backoffice/internal/providers"
	"github.com/devmarvs/backoffice/internal/redisconn"
	"github.com/devmarvs/backoffice/internal/reminder"
	reminderdomain "github.com/devmarvs/backoffice/internal/reminder/domain"
	"github.com/devmarvs/backoffice/internal/settings"
	settingsdomain "github.com/devmarvs/backoffice/internal/settings/domain"
	"github.com/devmarvs/backoffice/internal/template"
	templatedomain "github.com/devmarvs/backoffice/internal/template/domain"
	"github.com/devmarvs/backoffice/internal/workevent"
	workeventdomain "github.com/devmarvs/backoffice/internal/workevent/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	metrics.Module,
	redisconn.Module,
	lock.Module,
	providers.Module,
	audit.Module,
	client.Module,
	settings.Module,
	template.Module,
	pack.Module,
	followup.Module,
	invoice.Module,
	workevent.Module,
	billing.Module,
	reminder.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(m.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, m *metrics.Metrics) *gin.Engine {
	return NewEngine(log, m)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, zap.Error(last.Err))
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server", zap.Error(err))
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	genID        *snowflake.Node
	metrics      *metrics.Metrics
	auditSvc     auditdomain.Service
	billingSvc   billingdomain.Service
	clientSvc    clientdomain.Service
	followUpSvc  followupdomain.Service
	invoiceSvc   invoicedomain.Service
	packSvc      packdomain.Service
	reminderSvc  reminderdomain.Service
	settingsSvc  settingsdomain.Service
	templateSvc  templatedomain.Service
	workEventSvc workeventdomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	GenID        *snowflake.Node
	Metrics      *metrics.Metrics
	AuditSvc     auditdomain.Service
	BillingSvc   billingdomain.Service
	ClientSvc    clientdomain.Service
	FollowUpSvc  followupdomain.Service
	InvoiceSvc   invoicedomain.Service
	PackSvc      packdomain.Service
	ReminderSvc  reminderdomain.Service
	SettingsSvc  settingsdomain.Service
	TemplateSvc  templatedomain.Service
	WorkEventSvc workeventdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log,
		genID:        p.GenID,
		metrics:      p.Metrics,
		auditSvc:     p.AuditSvc,
		billingSvc:   p.BillingSvc,
		clientSvc:    p.ClientSvc,
		followUpSvc:  p.FollowUpSvc,
		invoiceSvc:   p.InvoiceSvc,
		packSvc:      p.PackSvc,
		reminderSvc:  p.ReminderSvc,
		settingsSvc:  p.SettingsSvc,
		templateSvc:  p.TemplateSvc,
		workEventSvc: p.WorkEventSvc,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:provider", s.HandleBillingWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", AuthMiddleware(s.cfg.AuthJWTSecret))

	api.POST("/work-events", s.LogWorkEvent)
	api.GET("/work-events", s.ListWorkEvents)

	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoiceDraft)
	api.GET("/invoices/export", s.ExportInvoices)
	api.POST("/invoices/bulk-sent", s.BulkMarkInvoicesSent)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.POST("/invoices/:id/lines", s.AddInvoiceLine)
	api.POST("/invoices/:id/transition", s.TransitionInvoice)
	api.POST("/invoices/:id/email", s.EmailInvoice)
	api.POST("/invoices/:id/payment-link", s.CreateInvoicePaymentLink)

	api.POST("/packages", s.CreatePackage)
	api.GET("/packages", s.ListPackages)
	api.GET("/packages/:id", s.GetPackageByID)
	api.PATCH("/packages/:id", s.UpdatePackage)

	api.GET("/follow-ups", s.ListFollowUps)
	api.POST("/follow-ups/:id/transition", s.TransitionFollowUp)

	api.GET("/templates", s.ListTemplates)
	api.PUT("/templates/:type", s.UpsertTemplate)

	api.POST("/reminders/run", s.RunReminderSweep)

	api.GET("/settings", s.GetSettings)
	api.PUT("/settings", s.UpdateSettings)

	api.POST("/clients", s.CreateClient)
	api.GET("/clients", s.ListClients)
	api.GET("/clients/:id", s.GetClientByID)

	api.POST("/billing/checkout", s.CreateBillingCheckout)
	api.GET("/billing/status", s.BillingStatus)
	api.POST("/billing/paypal/confirm", s.ConfirmPayPalBilling)
	api.GET("/billing/manage", s.BillingManageURL)

	api.GET("/audit-logs", s.ListAuditLogs)
}
