package policy

import (
	"fmt"
	"time"

	"github.com/diewo77/go-crm/auth"
	"github.com/diewo77/go-crm/internal/config"
	"github.com/diewo77/go-crm/internal/events"
	"github.com/diewo77/go-crm/internal/handlers"
	"github.com/diewo77/go-crm/internal/mailer"
	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/diewo77/go-crm/internal/repository"
	"github.com/diewo77/go-crm/internal/services"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// profileCacheTTL bounds how long a role change takes to apply when the
// cache is not invalidated explicitly.
const profileCacheTTL = 5 * time.Minute

// Deps are the long-lived collaborators the router is built from.
type Deps struct {
	DB      *gorm.DB
	Config  *config.Config
	Hub     *realtime.Hub
	Mailer  mailer.Mailer
	Events  events.Publisher
	Metrics *metrics.Metrics
	Log     *logrus.Logger
	Version string
}

// RouterConfig holds the authorization gate, services and handlers of the
// application, wired together.
type RouterConfig struct {
	AuthGate *AuthGate

	AuthService         *services.AuthService
	LeadService         *services.LeadService
	NotificationService *services.NotificationService
	PresenceService     *services.PresenceService
	Audit               *services.AuditRecorder

	System        *handlers.SystemHandler
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Accounts      *handlers.AccountHandler
	Contacts      *handlers.ContactHandler
	Leads         *handlers.LeadHandler
	Deals         *handlers.DealHandler
	Activities    *handlers.ActivityHandler
	Notifications *handlers.NotificationHandler
	AuditLogs     *handlers.AuditLogHandler
	WS            *handlers.WSHandler
}

func NewRouterConfig(d Deps) (*RouterConfig, error) {
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	tokens, err := auth.NewTokenCodec(d.Config.JWT.Secret, d.Config.JWT.Algorithm, d.Config.JWT.TTL)
	if err != nil {
		return nil, fmt.Errorf("router config: %w", err)
	}

	users := repository.NewUserRepo(d.DB)
	authGate := NewAuthGate(d.DB, profileCacheTTL)

	authSvc := services.NewAuthService(users, auth.BcryptHasher{}, tokens, auth.NumericOTP{Digits: 6}, d.Mailer)
	authSvc.Events = d.Events
	authSvc.Metrics = d.Metrics
	authSvc.Log = d.Log.WithField("component", "auth")

	audit := services.NewAuditRecorder(d.DB, d.Log.WithField("component", "audit"))
	effects := &services.Effects{Audit: audit, Push: d.Hub}
	notify := services.NewNotificationService(d.DB, d.Hub, d.Metrics, d.Log.WithField("component", "notifications"))
	presence := services.NewPresenceService(users, d.Hub)
	presence.Log = d.Log.WithField("component", "presence")
	d.Hub.OnDrop(presence.Dropped)

	leads := services.NewLeadService(d.DB)
	leads.Effects = effects
	leads.Notify = notify
	leads.Push = d.Hub
	leads.Events = d.Events
	leads.Metrics = d.Metrics
	leads.Log = d.Log.WithField("component", "leads")

	return &RouterConfig{
		AuthGate:            authGate,
		AuthService:         authSvc,
		LeadService:         leads,
		NotificationService: notify,
		PresenceService:     presence,
		Audit:               audit,

		System:        handlers.NewSystemHandler(d.DB, d.Version),
		Auth:          handlers.NewAuthHandler(authSvc),
		Users:         handlers.NewUserHandler(users, authGate, d.Hub, effects),
		Accounts:      handlers.NewAccountHandler(d.DB, effects, notify),
		Contacts:      handlers.NewContactHandler(d.DB, effects),
		Leads:         handlers.NewLeadHandler(leads),
		Deals:         handlers.NewDealHandler(d.DB, effects),
		Activities:    handlers.NewActivityHandler(d.DB, effects, notify),
		Notifications: handlers.NewNotificationHandler(notify),
		AuditLogs:     handlers.NewAuditLogHandler(audit),
		WS:            handlers.NewWSHandler(authSvc, d.Hub, presence, d.Config.CORSOrigins, d.Log.WithField("component", "ws")),
	}, nil
}
