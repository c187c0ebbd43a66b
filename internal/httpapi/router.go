package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"image_gateway/internal/audit"
	"image_gateway/internal/config"
	"image_gateway/internal/identity"
	"image_gateway/internal/middleware"
	"image_gateway/internal/moderation"
	"image_gateway/internal/providers"
	"image_gateway/internal/publish"
	"image_gateway/internal/quota"
	"image_gateway/internal/ratelimit"
	"image_gateway/internal/storage"
	"image_gateway/internal/utils"
	"image_gateway/internal/verify"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Resolver  *identity.Resolver
	Quota     *quota.Engine
	Blocklist *moderation.Blocklist
	Provider  providers.ImageProvider
	Publisher publish.Publisher
	Verifier  verify.Verifier
	RateLimit ratelimit.Limiter
	Audit     audit.Sink
	ResetJob  *quota.ResetJob
	DB        *storage.DB

	PublicBaseURL string
	TempImageDir  string
	AdminKeyHash  string
	JWTSecret     []byte

	logger *utils.Logger
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(ctx context.Context, cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		DSN:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient, err = storage.NewRedisClient(storage.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
	}

	users := storage.NewUserRepository(db)
	engine := quota.NewEngine(users)

	provider, err := providers.NewProvider(providers.FactoryConfig{
		Backend: cfg.Upstream.Backend,
		Conversational: providers.ConversationalConfig{
			Cookies: cfg.Upstream.Cookies,
		},
		Synthesis: providers.SynthesisConfig{
			Endpoint:   cfg.Upstream.SynthesisURL,
			APIKey:     cfg.Upstream.SynthesisAPIKey,
			CDNBaseURL: cfg.Upstream.SynthesisCDNBase,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize upstream provider: %w", err)
	}

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize publisher: %w", err)
	}

	var verifier verify.Verifier = verify.NewNoopVerifier()
	if cfg.Verify.APIKey != "" {
		verifier = verify.NewIdentityToolkitVerifier(cfg.Verify.APIKey)
	}

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if cfg.RateLimit.PromptLimit > 0 && redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimit.PromptLimit, cfg.RateLimit.PromptWindow)
	}

	sink, err := newAuditSink(ctx, cfg, redisClient)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit sink: %w", err)
	}

	deps := &Dependencies{
		Resolver:      identity.NewResolver(users),
		Quota:         engine,
		Blocklist:     moderation.NewDefaultBlocklist(),
		Provider:      provider,
		Publisher:     publisher,
		Verifier:      verifier,
		RateLimit:     limiter,
		Audit:         sink,
		ResetJob:      quota.NewResetJob(engine),
		DB:            db,
		PublicBaseURL: cfg.PublicBaseURL,
		TempImageDir:  cfg.Publisher.TempImageDir,
		AdminKeyHash:  cfg.AdminKeyHash,
		JWTSecret:     cfg.JWTSecret,
		logger:        utils.NewLogger("httpapi"),
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps)

	return mux, deps, nil
}

func newPublisher(ctx context.Context, cfg *config.Config) (publish.Publisher, error) {
	switch cfg.Publisher.Mode {
	case "s3":
		return publish.NewS3Publisher(ctx, publish.S3Config{
			Bucket:     cfg.Publisher.S3Bucket,
			Region:     cfg.Publisher.S3Region,
			Prefix:     cfg.Publisher.S3Prefix,
			PublicBase: cfg.Publisher.S3PublicBase,
		})
	case "local":
		return publish.NewLocalPublisher(publish.LocalConfig{
			Dir:       cfg.Publisher.TempImageDir,
			BaseURL:   cfg.PublicBaseURL,
			Retention: cfg.Publisher.TempRetention,
		})
	}
	return nil, fmt.Errorf("unknown publish mode %q", cfg.Publisher.Mode)
}

func newAuditSink(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (audit.Sink, error) {
	if !cfg.Audit.Enabled || cfg.Audit.S3Bucket == "" {
		return audit.NewNoopSink(), nil
	}

	writer, err := audit.NewS3Writer(ctx, cfg.Audit.S3Bucket, cfg.Audit.S3Region, cfg.Audit.S3Prefix, cfg.Audit.Instance)
	if err != nil {
		return nil, err
	}

	auditCfg := audit.Config{
		BufferSize:    cfg.Audit.BufferSize,
		FlushSize:     cfg.Audit.FlushSize,
		FlushInterval: cfg.Audit.FlushInterval,
		RedisKey:      cfg.Audit.RedisKey,
	}

	if redisClient != nil {
		return audit.NewRedisSink(redisClient, writer, auditCfg), nil
	}
	return audit.NewBufferedSink(writer, auditCfg), nil
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Server is running"))
	})
	mux.HandleFunc("GET /health", deps.handleHealth)

	mux.HandleFunc("POST /prompt", deps.handlePrompt)
	mux.HandleFunc("GET /check/{id}", deps.handleCheck)
	mux.HandleFunc("GET /info/{id}", deps.handleInfo)

	mux.HandleFunc("GET /temp/images/{$}", deps.handleTempImagesList)
	mux.HandleFunc("GET /temp/images/{file}", deps.handleTempImage)

	// Administrative surface; pass-through unless an admin key is set.
	guard := middleware.AdminGuard(deps.AdminKeyHash, deps.JWTSecret)
	mux.Handle("GET /year", guard(http.HandlerFunc(deps.handleGrantYear)))
	mux.Handle("GET /add", guard(http.HandlerFunc(deps.handleGrantMonth)))
	mux.Handle("GET /ban/{id}", guard(http.HandlerFunc(deps.handleBan)))
	mux.Handle("GET /banlist", guard(http.HandlerFunc(deps.handleBanlist)))
	mux.HandleFunc("POST /admin/login", deps.handleAdminLogin)
}
