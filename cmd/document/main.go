package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kartikgopal01/coedit/internal/auth"
	"github.com/kartikgopal01/coedit/internal/config"
	"github.com/kartikgopal01/coedit/internal/database"
	"github.com/kartikgopal01/coedit/internal/document/handler"
	"github.com/kartikgopal01/coedit/internal/document/repository"
	"github.com/kartikgopal01/coedit/internal/document/service"
	"github.com/kartikgopal01/coedit/internal/live"
	"github.com/kartikgopal01/coedit/internal/storage"
	"github.com/kartikgopal01/coedit/pkg/logger"
	"github.com/kartikgopal01/coedit/pkg/metrics"
	"github.com/kartikgopal01/coedit/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	logger.Infof("config loaded: metadata=%s storage=%s redis=%v oidc=%v", cfg.Metadata.Driver, cfg.Storage.Driver, cfg.Redis.Addr() != "", cfg.UseOIDC())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// Lightweight CORS middleware: set common headers and respond to OPTIONS.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	})
	r.Use(gin.Logger(), gin.Recovery())

	checks := map[string]handler.Check{}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Fatalf("metadata store: %v", err)
	}
	defer closeRepo()
	checks["metadata"] = repo.Ping

	blobs, err := openBlobStore(ctx, cfg, r)
	if err != nil {
		logger.Fatalf("blob store: %v", err)
	}

	var rdb *redis.Client
	if addr := cfg.Redis.Addr(); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
		} else {
			logger.Infof("connected to Redis: %s", addr)
		}
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var limit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			limit = middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.Window)
		} else {
			limit = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		logger.Fatalf("token verifier: %v", err)
	}

	opts := []service.Option{
		service.WithKeyPrefix(cfg.Storage.KeyPrefix),
		service.WithURLTTL(cfg.Storage.SignedURLTTL),
		service.WithMaxUploadBytes(cfg.Storage.UploadMaxBytes),
	}
	documents := service.NewDocuments(repo, blobs, opts...)
	snapshots := service.NewSnapshots(repo, blobs, opts...)

	var backing live.Channel = live.NewMemoryChannel()
	var redisLive *live.RedisChannel
	if rdb != nil {
		redisLive = live.NewRedisChannel(rdb, "")
		backing = redisLive
	}
	hub := live.NewHub(backing, documents.Authorize)
	go hub.Run()
	if redisLive != nil {
		updates, err := redisLive.Subscribe(ctx)
		if err != nil {
			logger.Warnf("live updates from other replicas disabled: %v", err)
		} else {
			go hub.Follow(updates, redisLive.Source())
		}
	}

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	handler.RegisterOps(r, checks, nil)
	handler.RegisterSwagger(r)
	handler.RegisterDocumentRoutes(r, handler.Deps{
		Documents:        documents,
		Snapshots:        snapshots,
		Rollbacks:        service.NewRollbacks(snapshots, hub),
		Live:             hub,
		Hub:              hub,
		OperationTimeout: cfg.Snapshot.OperationTimeout,
	}, middleware.AuthMiddleware(verifier), limit)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Infof("starting document service on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, func(), error) {
	switch cfg.Metadata.Driver {
	case config.DriverMongo:
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, nil, err
		}
		repo, err := repository.NewMongoRepo(ctx, client.Database(cfg.MongoDB.Database))
		if err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	case config.DriverFirestore:
		client, err := database.ConnectFirestore(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewFirestoreRepo(client), func() { _ = client.Close() }, nil
	default:
		logger.Warnf("using in-memory metadata store; documents are lost on restart")
		return repository.NewMemoryRepo(), func() {}, nil
	}
}

// openBlobStore builds the configured store. The memory store serves its own
// signed URLs, so it is mounted on r.
func openBlobStore(ctx context.Context, cfg *config.Config, r *gin.Engine) (storage.BlobStore, error) {
	switch cfg.Storage.Driver {
	case config.DriverMinIO:
		s, err := storage.NewMinIOStorage(&cfg.MinIO)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverS3:
		return storage.NewS3Storage(ctx, &cfg.S3)
	default:
		secret := cfg.Storage.MemorySecret
		if secret == "" {
			secret = cfg.JWT.Secret
		}
		mem := storage.NewMemoryStorage(secret)
		base := cfg.Server.PublicURL
		if base == "" {
			host := cfg.Server.Host
			if host == "" || host == "0.0.0.0" {
				host = "localhost"
			}
			base = "http://" + host + ":" + cfg.Server.Port
		}
		mem.SetBaseURL(strings.TrimRight(base, "/"))
		r.Any(storage.MemoryPathPrefix+"*key", gin.WrapH(mem))
		logger.Warnf("using in-memory blob store at %s%s", base, storage.MemoryPathPrefix)
		return mem, nil
	}
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.UseOIDC() {
		return auth.NewOIDCVerifier(ctx, auth.KeycloakIssuer(cfg.Keycloak.URL, cfg.Keycloak.Realm), cfg.Keycloak.ClientID)
	}
	logger.Warnf("KEYCLOAK_URL not set; accepting HS256 tokens signed with JWT_SECRET")
	return auth.NewHMACVerifier(cfg.JWT.Secret)
}
