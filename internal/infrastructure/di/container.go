package di

import (
	"context"
	"net/http"

	ab "github.com/aarondl/authboss/v3"
	"github.com/gorilla/securecookie"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"goal-tracker/internal/application/usecases"
	"goal-tracker/internal/auth"
	"goal-tracker/internal/authz"
	"goal-tracker/internal/database"
	"goal-tracker/internal/domain/repositories"
	"goal-tracker/internal/handler"
	"goal-tracker/internal/infrastructure/config"
	repo "goal-tracker/internal/infrastructure/repository/sqlite"
	"goal-tracker/internal/logger"
	"goal-tracker/internal/metrics"
	"goal-tracker/internal/middleware"
)

// Container provides app-wide singletons for repos, usecases and handlers.
type Container struct {
	Config  *config.Config
	DB      *database.Database
	Logger  *zap.Logger
	Metrics *metrics.Collector

	// Repositories
	Users      repositories.UserRepository
	Tokens     repositories.VerificationTokenRepository
	Goals      repositories.GoalRepository
	Regions    repositories.RegionRepository
	Tasks      repositories.TaskRepository
	AccessLogs repositories.AccessLogRepository

	// Auth
	Authboss    *ab.Authboss
	RoutePolicy *authz.RoutePolicy
	Mailer      *auth.BreakerMailer
	MagicLinks  *auth.MagicLinks
	IPLimiter   *middleware.KeyedLimiter
	Proxies     middleware.TrustedProxies

	// Usecases
	GoalUC    *usecases.GoalUseCase
	RegionUC  *usecases.RegionUseCase
	TaskUC    *usecases.TaskUseCase
	ProfileUC *usecases.ProfileUseCase
	SignInUC  *usecases.SignInUseCase

	Handler *handler.Handler
}

// Options lets tests swap collaborators. Zero values build the real ones.
type Options struct {
	Mailer ab.Mailer
}

func New(cfg *config.Config, db *database.Database, log *zap.Logger, m *metrics.Collector, opts Options) (*Container, error) {
	c := &Container{
		Config:     cfg,
		DB:         db,
		Logger:     log,
		Metrics:    m,
		Users:      repo.NewUserRepo(db),
		Tokens:     repo.NewVerificationTokenRepo(db),
		Goals:      repo.NewGoalRepo(db),
		Regions:    repo.NewRegionRepo(db),
		Tasks:      repo.NewTaskRepo(db),
		AccessLogs: repo.NewAccessLogRepo(db),
	}

	policy, err := authz.NewRoutePolicy(db.DB())
	if err != nil {
		return nil, err
	}
	c.RoutePolicy = policy

	next := opts.Mailer
	if next == nil {
		next = auth.NewMailer(cfg.Mail, log)
	}
	c.Mailer = auth.NewBreakerMailer(next, auth.BreakerSettings{
		OnStateChange: func(from, to gobreaker.State) {
			m.MailBreakerState.Set(float64(to))
			log.Warn("mail circuit breaker changed state",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	authKey, encKey := sessionKeys(cfg.Session, log)
	c.Authboss, err = auth.NewAuthboss(auth.Options{
		RootURL:      cfg.Server.BaseURL,
		SessionState: auth.NewCookieStateRW(cfg.Session.CookieName, authKey, encKey, false, cfg.Session.Secure),
		CookieState:  auth.NewCookieStateRW(cfg.Session.CookieName+"_remember", authKey, encKey, true, cfg.Session.Secure),
		Storer:       auth.NewUserStorer(c.Users),
		Mailer:       c.Mailer,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}
	c.Authboss.Events.Before(ab.EventLogout, func(w http.ResponseWriter, r *http.Request, handled bool) (bool, error) {
		if uid, ok := ab.GetSession(r, ab.SessionKey); ok {
			logger.FromContext(r.Context(), log).Info("user signed out",
				logger.Event(logger.EventSignOut), logger.Actor(uid))
		}
		return false, nil
	})

	c.MagicLinks = auth.NewMagicLinks(c.Tokens, c.Users, c.Mailer, auth.MagicLinkConfig{
		BaseURL:  cfg.Server.BaseURL,
		TTL:      cfg.Auth.TokenTTL,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
	})
	c.IPLimiter = middleware.NewKeyedLimiter(cfg.Auth.SignInPerMinute*4, cfg.Auth.SignInBurst*4)
	c.Proxies, err = middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}

	obs := usecases.NewObserver(log, m)
	c.GoalUC = usecases.NewGoalUseCase(c.Goals, c.Regions, c.Tasks, obs)
	c.RegionUC = usecases.NewRegionUseCase(c.Goals, c.Regions, c.Tasks, obs)
	c.TaskUC = usecases.NewTaskUseCase(c.Regions, c.Tasks, obs)
	c.ProfileUC = usecases.NewProfileUseCase(c.Users, c.AccessLogs, cfg.Auth.TOTPIssuer,
		middleware.NewKeyedLimiter(cfg.Auth.SignInPerMinute, cfg.Auth.SignInBurst), obs)
	c.SignInUC = usecases.NewSignInUseCase(c.MagicLinks,
		middleware.NewKeyedLimiter(cfg.Auth.SignInPerMinute, cfg.Auth.SignInBurst), log, m, obs)

	c.Handler, err = handler.New(handler.Deps{
		Goals:     c.GoalUC,
		Regions:   c.RegionUC,
		Tasks:     c.TaskUC,
		Profile:   c.ProfileUC,
		SignIn:    c.SignInUC,
		IPLimiter: c.IPLimiter,
		Proxies:   c.Proxies,
		Metrics:   m.Handler(),
		Ping:      func(ctx context.Context) error { return db.DB().PingContext(ctx) },
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// sessionKeys returns the configured cookie keys, generating any that are
// missing.
func sessionKeys(cfg config.SessionConfig, log *zap.Logger) (authKey, encKey []byte) {
	authKey = []byte(cfg.AuthKey)
	if len(authKey) == 0 {
		log.Warn("SESSION_AUTH_KEY not set; generated a temporary key, sessions will not survive a restart")
		authKey = securecookie.GenerateRandomKey(64)
	}
	encKey = []byte(cfg.EncKey)
	if len(encKey) == 0 {
		encKey = securecookie.GenerateRandomKey(32)
	}
	return authKey, encKey
}
