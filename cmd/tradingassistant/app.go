package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authapp "github.com/wyfcoding/tradingassistant/internal/auth/application"
	authdomain "github.com/wyfcoding/tradingassistant/internal/auth/domain"
	authmemory "github.com/wyfcoding/tradingassistant/internal/auth/infrastructure/persistence/memory"
	authpg "github.com/wyfcoding/tradingassistant/internal/auth/infrastructure/persistence/postgres"
	authredis "github.com/wyfcoding/tradingassistant/internal/auth/infrastructure/persistence/redis"
	authhttp "github.com/wyfcoding/tradingassistant/internal/auth/interfaces/http"
	portfolioapp "github.com/wyfcoding/tradingassistant/internal/portfolio/application"
	portfoliodomain "github.com/wyfcoding/tradingassistant/internal/portfolio/domain"
	portfoliomemory "github.com/wyfcoding/tradingassistant/internal/portfolio/infrastructure/persistence/memory"
	portfoliopg "github.com/wyfcoding/tradingassistant/internal/portfolio/infrastructure/persistence/postgres"
	portfoliohttp "github.com/wyfcoding/tradingassistant/internal/portfolio/interfaces/http"
	registryapp "github.com/wyfcoding/tradingassistant/internal/registry/application"
	registrydomain "github.com/wyfcoding/tradingassistant/internal/registry/domain"
	registrymemory "github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/memory"
	registrypg "github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/postgres"
	registryredis "github.com/wyfcoding/tradingassistant/internal/registry/infrastructure/persistence/redis"
	registryhttp "github.com/wyfcoding/tradingassistant/internal/registry/interfaces/http"
	"github.com/wyfcoding/tradingassistant/pkg/cache"
	"github.com/wyfcoding/tradingassistant/pkg/config"
	"github.com/wyfcoding/tradingassistant/pkg/db"
	"github.com/wyfcoding/tradingassistant/pkg/logger"
	"github.com/wyfcoding/tradingassistant/pkg/metrics"
	"github.com/wyfcoding/tradingassistant/pkg/middleware"
	"github.com/wyfcoding/tradingassistant/pkg/mq"
	"github.com/wyfcoding/tradingassistant/pkg/ratelimit"
	"github.com/wyfcoding/tradingassistant/pkg/retry"
	"github.com/wyfcoding/tradingassistant/pkg/security"
)

const sleeveCacheTTL = 10 * time.Minute

// connectBackoff 启动时等待数据库与 Redis 就绪
var connectBackoff = retry.Backoff{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 10 * time.Second}

// stores 各上下文的仓储
type stores struct {
	users        authdomain.UserRepository
	sessions     authdomain.SessionRepository
	instruments  registrydomain.InstrumentRepository
	listings     registrydomain.ListingRepository
	sleeves      registrydomain.SleeveRepository
	portfolios   portfoliodomain.PortfolioRepository
	constituents portfoliodomain.ConstituentRepository
	tx           portfoliodomain.Transactor
}

// app 组装完成的服务
type app struct {
	cfg     *config.Config
	router  *gin.Engine
	metrics *metrics.Metrics
	// purger 非 nil 时需要后台清理过期会话
	purger  authdomain.ExpiredSessionPurger
	checks  []readinessCheck
	closers []func() error
}

// readinessCheck 依赖探活
type readinessCheck struct {
	name string
	ping func(ctx context.Context) error
}

// ready 依次探测外部依赖，任一失败返回 503
func (a *app) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for _, check := range a.checks {
		if err := check.ping(ctx); err != nil {
			logger.Warn(ctx, "Readiness check failed", "dependency", check.name, "error", err)
			failed[check.name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn(context.Background(), "Failed to release resource", "error", err)
		}
	}
}

// newApp 按配置初始化存储、消息、服务与路由
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New(cfg.ServiceName)}
	if err := a.build(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context) error {
	cfg := a.cfg

	// 1. 领域事件
	var publisher mq.Publisher = mq.NoopPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			MaxAttempts:  cfg.Kafka.MaxAttempts,
			QueueSize:    cfg.Kafka.QueueSize,
		})
		if err != nil {
			return fmt.Errorf("failed to create kafka producer: %w", err)
		}
		publisher = producer
	}
	a.closers = append(a.closers, publisher.Close)

	// 2. 持久化
	s, err := a.openStores(ctx)
	if err != nil {
		return err
	}

	// 3. Redis：会话、限流与分组缓存
	var limiter ratelimit.RateLimiter = ratelimit.NewMemoryRateLimiter()
	if cfg.Redis.Enabled {
		var rc *cache.RedisCache
		err := retry.Do(ctx, connectBackoff, func(attempt int) error {
			var err error
			rc, err = cache.New(cache.Config{
				Host:         cfg.Redis.Host,
				Port:         cfg.Redis.Port,
				Password:     cfg.Redis.Password,
				DB:           cfg.Redis.DB,
				MaxPoolSize:  cfg.Redis.MaxPoolSize,
				ConnTimeout:  cfg.Redis.ConnTimeout,
				ReadTimeout:  cfg.Redis.ReadTimeout,
				WriteTimeout: cfg.Redis.WriteTimeout,
			})
			if err != nil {
				logger.Warn(ctx, "Redis not ready", "attempt", attempt, "error", err)
			}
			return err
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, rc.Close)
		a.checks = append(a.checks, readinessCheck{name: "redis", ping: rc.Ping})
		s.sessions = authredis.NewSessionRedisRepository(rc.GetClient())
		s.sleeves = registryredis.NewCachedSleeveRepository(s.sleeves, rc, sleeveCacheTTL)
		limiter = ratelimit.NewRedisRateLimiter(rc.GetClient())
	}
	if purger, ok := s.sessions.(authdomain.ExpiredSessionPurger); ok {
		a.purger = purger
	}

	// 4. 应用服务
	tokens, err := authapp.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.AccessTTL())
	if err != nil {
		return err
	}
	authCmd := authapp.NewAuthCommandService(s.users, s.sessions, tokens,
		security.NewPasswordHasher(cfg.Auth.BcryptCost), cfg.Auth.RefreshTTL(),
		mq.NewEmitter(publisher, authdomain.TopicAuth, a.metrics), a.metrics)
	authQuery := authapp.NewAuthQueryService(s.users, tokens)
	registry := registryapp.NewRegistryService(s.instruments, s.listings, s.sleeves,
		mq.NewEmitter(publisher, registrydomain.TopicRegistry, a.metrics))
	portfolios := portfolioapp.NewPortfolioService(s.portfolios, s.constituents, s.tx, registry,
		mq.NewEmitter(publisher, portfoliodomain.TopicPortfolio, a.metrics))

	// 5. 种子数据
	if cfg.Database.AutoMigrate || cfg.Database.Driver == "memory" {
		if err := registry.SeedSleeves(ctx); err != nil {
			return err
		}
	}
	if cfg.Bootstrap.Enabled {
		if _, err := authCmd.EnsureBootstrapAdmin(ctx, cfg.Bootstrap.Email, cfg.Bootstrap.Password); err != nil {
			return fmt.Errorf("failed to bootstrap admin: %w", err)
		}
	}

	// 6. 路由
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.GinLoggingMiddleware())
	r.Use(middleware.GinRecoveryMiddleware())
	r.Use(middleware.GinCORSMiddleware(cfg.CORS.AllowOrigins))
	r.Use(middleware.GinMetricsMiddleware(a.metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", a.ready)
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(a.metrics.Handler()))
	}

	api := r.Group(cfg.HTTP.APIPrefix)
	cookies := authhttp.NewCookieManager(cfg.Cookie, cfg.Auth.RefreshTTL())
	authhttp.NewHandler(authCmd, authQuery, cookies,
		middleware.RateLimitMiddleware(limiter, cfg.RateLimit, "login")).RegisterRoutes(api)
	requireUser := authhttp.RequireUser(authQuery)
	registryhttp.NewRegistryHandler(registry).RegisterRoutes(api, requireUser)
	portfoliohttp.NewPortfolioHandler(portfolios).RegisterRoutes(api, requireUser)

	a.router = r
	return nil
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	cfg := a.cfg
	if cfg.Database.Driver == "memory" {
		logger.Warn(ctx, "Using in-memory storage, data is lost on restart")
		registryStore := registrymemory.NewStore()
		portfolioStore := portfoliomemory.NewStore()
		return &stores{
			users:        authmemory.NewUserRepository(),
			sessions:     authmemory.NewSessionRepository(),
			instruments:  registryStore.Instruments(),
			listings:     registryStore.Listings(),
			sleeves:      registryStore.Sleeves(),
			portfolios:   portfolioStore.Portfolios(),
			constituents: portfolioStore.Constituents(),
			tx:           portfolioStore,
		}, nil
	}

	var gormDB *db.DB
	err := retry.Do(ctx, connectBackoff, func(attempt int) error {
		var err error
		gormDB, err = db.Init(db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			logger.Warn(ctx, "Database not ready", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, gormDB.Close)
	a.checks = append(a.checks, readinessCheck{name: "database", ping: gormDB.Ping})

	if cfg.Database.AutoMigrate {
		// 外键依赖决定顺序
		for _, migrate := range []func() error{
			func() error { return authpg.Migrate(gormDB.DB) },
			func() error { return registrypg.Migrate(gormDB.DB) },
			func() error { return portfoliopg.Migrate(gormDB.DB) },
		} {
			if err := migrate(); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		logger.Info(ctx, "Database migrated")
	}

	return &stores{
		users:        authpg.NewUserRepository(gormDB.DB),
		sessions:     authpg.NewSessionRepository(gormDB.DB),
		instruments:  registrypg.NewInstrumentRepository(gormDB.DB),
		listings:     registrypg.NewListingRepository(gormDB.DB),
		sleeves:      registrypg.NewSleeveRepository(gormDB.DB),
		portfolios:   portfoliopg.NewPortfolioRepository(gormDB.DB),
		constituents: portfoliopg.NewConstituentRepository(gormDB.DB),
		tx:           gormDB,
	}, nil
}
