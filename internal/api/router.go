package api

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/app"
	iauth "github.com/charlesng35/tenantcrm/internal/auth"
	"github.com/charlesng35/tenantcrm/internal/handlers"
	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/internal/ratelimit"
	"github.com/charlesng35/tenantcrm/internal/services"
	"github.com/charlesng35/tenantcrm/pkg/crypto"
	"github.com/charlesng35/tenantcrm/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers every route.
// counters backs all admission limiters; mailer delivers reset emails.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, counters ratelimit.CounterStore, mailer mail.Mailer, checks ...handlers.HealthCheck) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if counters == nil {
		return nil, fmt.Errorf("counter store must be provided")
	}

	svc, err := buildServices(db, jwt, cfg, counters, mailer)
	if err != nil {
		return nil, err
	}
	apiLimiter, err := ratelimit.New(counters, ratelimit.NamespaceAPI, cfg.RateLimits.API.Policy())
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cfg.Server.IsProduction()))
	r.Use(middleware.CORS(allowedOrigins(cfg.Server.BaseURL)...))

	if len(checks) == 0 {
		checks = []handlers.HealthCheck{handlers.DatabaseCheck(db)}
	}
	r.GET("/health", handlers.Health(checks...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cookies := handlers.CookieSettings{Secure: cfg.Server.IsProduction()}
	authHandler := handlers.NewAuthHandler(svc.accounts, cookies)
	passwordHandler := handlers.NewPasswordHandler(svc.passwords)
	invitationHandler := handlers.NewInvitationHandler(svc.invitations, cookies)
	workspaceHandler := handlers.NewWorkspaceHandler(svc.resolver, cookies)
	memberHandler := handlers.NewMemberHandler(svc.members)
	clientHandler := handlers.NewClientHandler(svc.clients, svc.activities)
	followUpHandler := handlers.NewFollowUpHandler(svc.followUps)

	limited := middleware.RateLimit(apiLimiter)
	requireAuth := middleware.Auth(jwt)
	scoped := middleware.WorkspaceScope(svc.resolver)
	ownerOnly := middleware.RequireRole(models.RoleOwner)

	// Public routes
	public := r.Group("/api", limited)
	{
		public.POST("/auth/signup", authHandler.Signup)
		public.POST("/auth/login", authHandler.Login)
		public.POST("/auth/password/forgot", passwordHandler.Forgot)
		public.POST("/auth/password/reset", passwordHandler.Reset)
		public.GET("/invitations/:token", invitationHandler.Validate)
	}

	// Authenticated, not yet bound to a workspace
	authed := r.Group("/api", requireAuth)
	{
		authed.GET("/auth/me", authHandler.Me)
		authed.POST("/auth/password/change", passwordHandler.Change)
		authed.POST("/invitations/:token/accept", invitationHandler.Accept)
		authed.GET("/workspaces", workspaceHandler.List)
		authed.POST("/workspaces/current", workspaceHandler.Switch)
	}

	// Tenant scoped
	tenant := r.Group("/api", requireAuth, scoped)
	{
		tenant.GET("/workspace", workspaceHandler.Current)
		tenant.GET("/workspace/members", memberHandler.List)
		tenant.DELETE("/workspace/members/:id", ownerOnly, memberHandler.Deactivate)
		tenant.GET("/workspace/invitations", invitationHandler.List)
		tenant.POST("/workspace/invitations", ownerOnly, invitationHandler.Create)
		tenant.DELETE("/workspace/invitations/:id", ownerOnly, invitationHandler.Revoke)

		tenant.GET("/clients", clientHandler.List)
		tenant.POST("/clients", clientHandler.Create)
		tenant.GET("/clients/:id", clientHandler.Get)
		tenant.PATCH("/clients/:id", clientHandler.Update)
		tenant.DELETE("/clients/:id", clientHandler.Delete)
		tenant.GET("/clients/:id/activities", clientHandler.ListActivities)
		tenant.POST("/clients/:id/activities", clientHandler.CreateActivity)
		tenant.DELETE("/activities/:id", clientHandler.DeleteActivity)

		tenant.GET("/followups", followUpHandler.List)
		tenant.POST("/followups", followUpHandler.Create)
		tenant.PATCH("/followups/:id", followUpHandler.Update)
		tenant.POST("/followups/:id/toggle", followUpHandler.Toggle)
		tenant.DELETE("/followups/:id", followUpHandler.Delete)
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

type serviceSet struct {
	accounts    *services.AccountService
	passwords   *services.PasswordService
	invitations *services.InvitationService
	resolver    *services.WorkspaceResolver
	members     *services.MemberService
	clients     *services.ClientService
	activities  *services.ActivityService
	followUps   *services.FollowUpService
}

func buildServices(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, counters ratelimit.CounterStore, mailer mail.Mailer) (*serviceSet, error) {
	hasher, err := crypto.NewPasswordHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	issuer, err := crypto.NewSecretIssuer()
	if err != nil {
		return nil, err
	}
	signer, err := iauth.NewPreferenceSigner(cfg.Auth.PreferenceSecret, cfg.Workspace.PreferenceMaxAge(), nil)
	if err != nil {
		return nil, err
	}
	links, err := services.NewLinkBuilder(cfg.Server.BaseURL)
	if err != nil {
		return nil, err
	}

	resetLimiter, err := ratelimit.New(counters, ratelimit.NamespaceResetRequest, cfg.RateLimits.ResetRequest.Policy())
	if err != nil {
		return nil, err
	}
	changeLimiter, err := ratelimit.New(counters, ratelimit.NamespacePasswordChange, cfg.RateLimits.ChangePassword.Policy())
	if err != nil {
		return nil, err
	}

	set := &serviceSet{}
	if set.resolver, err = services.NewWorkspaceResolver(db, signer); err != nil {
		return nil, err
	}
	if set.invitations, err = services.NewInvitationService(db, issuer, set.resolver, links,
		services.WithInvitationExpiry(cfg.Invitations.Expiry())); err != nil {
		return nil, err
	}
	if set.accounts, err = services.NewAccountService(db, hasher, jwt, set.resolver, set.invitations); err != nil {
		return nil, err
	}
	if set.passwords, err = services.NewPasswordService(db, hasher, issuer,
		services.PasswordLimiters{ResetRequest: resetLimiter, ChangePassword: changeLimiter},
		services.NewMailNotifier(mailer, cfg.Email.AppName),
		links,
		services.WithResetExpiry(cfg.PasswordReset.Expiry()),
		services.WithResetDebug(cfg.Server.IsDevelopment()),
	); err != nil {
		return nil, err
	}
	if set.members, err = services.NewMemberService(db); err != nil {
		return nil, err
	}
	if set.clients, err = services.NewClientService(db); err != nil {
		return nil, err
	}
	if set.activities, err = services.NewActivityService(db, nil); err != nil {
		return nil, err
	}
	if set.followUps, err = services.NewFollowUpService(db, nil); err != nil {
		return nil, err
	}
	return set, nil
}

// allowedOrigins derives the CORS allowlist from the public base URL.
func allowedOrigins(baseURL string) []string {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil
	}
	return []string{parsed.Scheme + "://" + parsed.Host}
}
