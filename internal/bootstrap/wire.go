package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/baechuer/biometric-auth/internal/application/auth"
	appbio "github.com/baechuer/biometric-auth/internal/application/biometric"
	"github.com/baechuer/biometric-auth/internal/audit"
	engine "github.com/baechuer/biometric-auth/internal/biometric"
	"github.com/baechuer/biometric-auth/internal/config"
	"github.com/baechuer/biometric-auth/internal/domain"
	"github.com/baechuer/biometric-auth/internal/infrastructure/db/migrate"
	"github.com/baechuer/biometric-auth/internal/infrastructure/db/postgres"
	"github.com/baechuer/biometric-auth/internal/infrastructure/memory"
	"github.com/baechuer/biometric-auth/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/biometric-auth/internal/infrastructure/redis"
	"github.com/baechuer/biometric-auth/internal/infrastructure/security"
	"github.com/baechuer/biometric-auth/internal/logger"
	"github.com/baechuer/biometric-auth/internal/metrics"
	http_handlers "github.com/baechuer/biometric-auth/internal/transport/http/handlers"
	"github.com/baechuer/biometric-auth/internal/transport/http/middleware"
	"github.com/baechuer/biometric-auth/internal/transport/http/response"
	"github.com/baechuer/biometric-auth/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB   func(addr string, debug bool) (*sql.DB, error)
	Migrate func(ctx context.Context, db *sql.DB) error

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(rabbitURL, exchange string) (audit.Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

// stores groups the persistence backends; Postgres when DB_ADDR is set,
// in-memory otherwise (dev only).
type stores struct {
	users     auth.UserRepo
	templates appbio.TemplateRepo
	attempts  interface {
		audit.Store
		auth.AttemptReader
	}
	ping http_handlers.Pinger
}

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	ctx := context.Background()

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 1) storage
	var st stores
	if cfg.DBAddr != "" {
		db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
		if err != nil {
			return nil, nil, err
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		if cfg.RunMigrations && deps.Migrate != nil {
			mctx, cancel := context.WithTimeout(ctx, time.Minute)
			err := deps.Migrate(mctx, db)
			cancel()
			if err != nil {
				return fail(err)
			}
		}
		st = stores{
			users:     postgres.NewUserRepo(db),
			templates: postgres.NewTemplateRepo(db),
			attempts:  postgres.NewAttemptRepo(db),
			ping:      db,
		}
	} else {
		logger.Logger.Warn().Msg("DB_ADDR not set; using in-memory store")
		users := memory.NewUserRepo()
		st = stores{
			users:     users,
			templates: memory.NewTemplateRepo(users),
			attempts:  memory.NewAttemptRepo(),
		}
	}

	// 2) redis (best-effort)
	var redisCli *redis.Client
	if deps.NewRedis != nil && cfg.RedisAddr != "" {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := c.Ping(pctx)
		cancel()

		if err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; using in-process token families and limiter")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 3) token families
	var families auth.TokenFamilyStore
	if redisCli != nil {
		families = redis.NewTokenFamilyStore(redisCli)
	} else {
		families = memory.NewTokenFamilyStore()
	}

	// 4) publisher
	var pub audit.Publisher
	if deps.NewPublisher != nil && cfg.RabbitURL != "" {
		p, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		switch {
		case err == nil:
			pub = p
			if c, ok := p.(interface{ Close() error }); ok {
				cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			}
		case cfg.Env == "dev":
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
		default:
			return fail(err)
		}
	}
	if pub == nil {
		pub = memory.NewNoopPublisher()
	}

	// 5) security
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)
	sealer, err := security.NewTemplateCipher(cfg.TemplateKey)
	if err != nil {
		return fail(err)
	}

	// 6) services
	recorder := audit.NewRecorder(st.attempts, pub, logger.Logger)

	bioSvc := appbio.NewService(st.templates, engine.DefaultRegistry(), sealer, recorder, appbio.Policy{
		Thresholds: map[domain.Modality]float64{
			domain.ModalityFace:        cfg.FaceThreshold,
			domain.ModalityFingerprint: cfg.FingerprintThreshold,
		},
		MinQuality: map[domain.Modality]float64{
			domain.ModalityFace:        cfg.FaceMinQuality,
			domain.ModalityFingerprint: cfg.FingerprintMinQuality,
		},
		MaxEvidenceBytes:  cfg.MaxEvidenceBytes,
		MaxEvidencePixels: cfg.MaxEvidencePixels,
		ExtractionTimeout: cfg.ExtractionTimeout,
	}).WithObserver(metrics.Engine{})

	tokens := auth.NewTokenIssuer(signer, families, auth.TokenConfig{
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	authSvc := auth.NewService(st.users, hasher, tokens, bioSvc, recorder, st.attempts)

	// seed (dev only)
	if cfg.Env == "dev" {
		postgres.SeedUsers(ctx, st.users, hasher, postgres.DevSeeds)
	}

	// 7) handlers + middleware
	authH := http_handlers.NewAuthHandler(authSvc, recorder.Logger())
	bioH := http_handlers.NewBiometricHandler(bioSvc, recorder.Logger())
	healthH := http_handlers.NewHealthHandler(st.ping)

	// rate limit (fail-open); without redis the middleware limits per IP in process
	var limiter middleware.RateLimiter
	if redisCli != nil {
		limiter = redis.NewFixedWindowLimiter(redisCli)
	}
	loginRL := middleware.RateLimitFixedWindow(limiter, middleware.FixedWindowConfig{
		Route:    "auth.login",
		Limit:    cfg.LoginRLLimit,
		Window:   cfg.LoginRLWindow,
		Identity: middleware.LoginIdentity,
	}, response.WriteError)
	bioRL := middleware.RateLimitFixedWindow(limiter, middleware.FixedWindowConfig{
		Route:  "biometric",
		Limit:  cfg.BiometricRLLimit,
		Window: cfg.BiometricRLWindow,
	}, response.WriteError)

	// 8) router
	mux, err := deps.NewRouter(router.Deps{
		Health:         healthH,
		Auth:           authH,
		Biometric:      bioH,
		AuthMW:         middleware.Auth(tokens, response.WriteError),
		LoginRL:        loginRL,
		BiometricRL:    bioRL,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		TrustProxy:     cfg.TrustProxy,
		HSTS:           cfg.HSTS,
	})
	if err != nil {
		return fail(err)
	}

	// 9) server
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		Migrate:    migrate.Up,
		NewRedis:   redis.New,
		NewPublisher: func(url, exchange string) (audit.Publisher, error) {
			return rabbitmq.NewPublisher(url, exchange)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
