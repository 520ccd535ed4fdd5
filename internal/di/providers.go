package di

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/app"
	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/database"
	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/emailgate"
	"github.com/campusmarket/accountkit/internal/health"
	"github.com/campusmarket/accountkit/internal/http/handler"
	"github.com/campusmarket/accountkit/internal/http/middleware"
	"github.com/campusmarket/accountkit/internal/http/router"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/identity/gotrue"
	"github.com/campusmarket/accountkit/internal/observability"
	"github.com/campusmarket/accountkit/internal/repository"
	"github.com/campusmarket/accountkit/internal/security"
	"github.com/campusmarket/accountkit/internal/service"
	"github.com/campusmarket/accountkit/internal/session"
)

const jwtIssuer = "accountkit"

var ConfigSet = wire.NewSet(config.Load)

var ServerConfigSet = wire.NewSet(provideServerConfig)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewIdentityRepository,
	repository.NewProfileRepository,
	repository.NewRefreshTokenRepository,
	repository.NewVerificationTokenRepository,
)

var SecuritySet = wire.NewSet(provideJWTManager)

var ServiceSet = wire.NewSet(
	provideTokenService,
	service.NewDevNotifier,
	wire.Bind(new(service.Notifier), new(*service.DevNotifier)),
	service.NewAuthService,
	service.NewProfileService,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.ProfileServiceInterface), new(*service.ProfileService)),
)

var HTTPSet = wire.NewSet(
	provideSignInGuard,
	provideAuthHandler,
	handler.NewRestHandler,
	provideAuthRateLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

var ClientSet = wire.NewSet(
	provideClientLogger,
	provideClientRedis,
	provideSessionStore,
	provideGotrueClient,
	wire.Bind(new(identity.Auth), new(*gotrue.Client)),
	wire.Bind(new(identity.ProfileTable), new(*gotrue.Client)),
	provideEmailGate,
	provideAccountService,
	NewAccountClient,
)

// AccountClient is everything the campus CLI needs to talk to the identity
// service on behalf of one user.
type AccountClient struct {
	Config   *config.Config
	Logger   *slog.Logger
	Account  *service.AccountService
	Identity *gotrue.Client
	Store    session.Store
	redis    redis.UniversalClient
}

func NewAccountClient(cfg *config.Config, logger *slog.Logger, account *service.AccountService, client *gotrue.Client, store session.Store, redisClient redis.UniversalClient) *AccountClient {
	return &AccountClient{Config: cfg, Logger: logger, Account: account, Identity: client, Store: store, redis: redisClient}
}

func (c *AccountClient) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

// MigrationRunner applies and inspects the dev server schema.
type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Up() error {
	return database.Migrate(m.db)
}

func (m *MigrationRunner) Status() ([]database.TableStatus, error) {
	return database.Status(m.db)
}

func (m *MigrationRunner) Seed(ctx context.Context, dryRun bool) (*database.SeedReport, error) {
	return database.Seed(ctx, m.db, dryRun)
}

func (m *MigrationRunner) ConfirmEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return database.ConfirmEmail(ctx, m.db, email)
}

func (m *MigrationRunner) Driver() string { return m.cfg.DatabaseDriver }

func (m *MigrationRunner) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (m *MigrationRunner) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func provideServerConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider, nil)
}

// provideClientLogger keeps CLI output clean: only warnings reach stderr.
func provideClientLogger(cfg *config.Config) *slog.Logger {
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if observability.ParseLogLevel(cfg.OTELLogLevel) == slog.LevelDebug {
		l = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return l
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled {
		return nil
	}
	return newRedisClient(cfg, logger)
}

func provideClientRedis(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if cfg.SessionStore != "redis" {
		return nil
	}
	return newRedisClient(cfg, logger)
}

func newRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideSessionStore(cfg *config.Config, redisClient redis.UniversalClient) session.Store {
	switch cfg.SessionStore {
	case "memory":
		return session.NewMemoryStore()
	case "redis":
		return session.NewRedisStore(redisClient, cfg.RedisPrefix, "campus", cfg.JWTRefreshTTL)
	default:
		return session.NewFileStore(cfg.SessionFile)
	}
}

func provideGotrueClient(cfg *config.Config, store session.Store, logger *slog.Logger) (*gotrue.Client, error) {
	return gotrue.New(gotrue.Options{
		BaseURL: cfg.IdentityURL,
		AnonKey: cfg.IdentityAnonKey,
		Store:   store,
		Logger:  logger,
	})
}

func provideEmailGate(cfg *config.Config) *emailgate.Gate {
	return emailgate.NewGate(cfg.AllowedEmailDomains)
}

func provideAccountService(cfg *config.Config, auth identity.Auth, profiles identity.ProfileTable, gate *emailgate.Gate, logger *slog.Logger) *service.AccountService {
	return service.NewAccountService(auth, profiles, gate, service.AccountConfig{
		ProfileEnrichDelay:       cfg.ProfileEnrichDelay,
		PasswordResetRedirectURL: cfg.PasswordResetRedirectURL,
	}, logger)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(jwtIssuer, domain.AudienceDefault, cfg.JWTSecret)
}

func provideTokenService(cfg *config.Config, jwt *security.JWTManager, refreshRepo repository.RefreshTokenRepository) *service.TokenService {
	return service.NewTokenService(jwt, refreshRepo, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
}

func provideAuthHandler(authSvc service.AuthServiceInterface, guard service.SignInGuard, cfg *config.Config) *handler.AuthHandler {
	return handler.NewAuthHandler(authSvc, cfg.OTELServiceName).WithSignInGuard(guard)
}

// provideSignInGuard shares counters through redis when the rate limiter
// does.
func provideSignInGuard(cfg *config.Config, redisClient redis.UniversalClient) service.SignInGuard {
	if !cfg.SignInGuardEnabled {
		return service.NoopSignInGuard{}
	}
	policy := service.DefaultBackoffPolicy()
	policy.FreeAttempts = cfg.SignInFreeAttempts
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		return service.NewRedisSignInGuard(redisClient, cfg.RedisPrefix, policy)
	}
	return service.NewMemorySignInGuard(policy)
}

func provideAuthRateLimiter(cfg *config.Config, redisClient redis.UniversalClient) router.AuthRateLimiterFunc {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, cfg.RedisPrefix+":ratelimit")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.AuthRateLimitPerMin,
			time.Minute,
			middleware.FailClosed,
			"auth",
		).Middleware()
	}
	return middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute).Middleware()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	restHandler *handler.RestHandler,
	jwt *security.JWTManager,
	authRateLimiter router.AuthRateLimiterFunc,
	readiness *health.ReadinessRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:      authHandler,
		RestHandler:      restHandler,
		JWTManager:       jwt,
		AnonKey:          cfg.IdentityAnonKey,
		CORSOrigins:      cfg.CORSAllowedOrigins,
		AuthRateLimitRPM: cfg.AuthRateLimitPerMin,
		AuthRateLimiter:  authRateLimiter,
		Readiness:        readiness,
		EnableOTelHTTP:   cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ReadinessRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if cfg.RateLimitRedisEnabled {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewReadinessRunner(cfg.ReadinessCheckTimeout, cfg.ServerStartGracePeriod, checkers...)
}
