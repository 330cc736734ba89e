package serve

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ajoubeir/chat-service/internal/config"
	registrycache "github.com/ajoubeir/chat-service/internal/registry/cache"
	registrystore "github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	// Import all plugins to trigger init() registration
	_ "github.com/ajoubeir/chat-service/internal/plugin/blob/gridfs"
	_ "github.com/ajoubeir/chat-service/internal/plugin/blob/s3store"
	_ "github.com/ajoubeir/chat-service/internal/plugin/cache/noop"
	_ "github.com/ajoubeir/chat-service/internal/plugin/cache/redis"
	_ "github.com/ajoubeir/chat-service/internal/plugin/route/system"
	_ "github.com/ajoubeir/chat-service/internal/plugin/store/mongo"
)

// Command returns the serve sub-command.
func Command() *cli.Command {
	cfg := config.DefaultConfig()
	var readHeaderTimeoutSecs int = 5
	var cacheTTLSecs int64 = int64(cfg.CacheProfileTTL / time.Second)
	var downloadURLExpirySecs int64 = int64(cfg.PictureDownloadURLExpiresIn / time.Second)
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the chat service HTTP server",
		Flags: flags(&cfg, &readHeaderTimeoutSecs, &cacheTTLSecs, &downloadURLExpirySecs),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg.Listener.ReadHeaderTimeout = time.Duration(readHeaderTimeoutSecs) * time.Second
			cfg.ManagementListener.ReadHeaderTimeout = cfg.Listener.ReadHeaderTimeout
			cfg.ManagementListenerEnabled = cmd.IsSet("management-port")
			cfg.CacheProfileTTL = time.Duration(cacheTTLSecs) * time.Second
			cfg.PictureDownloadURLExpiresIn = time.Duration(downloadURLExpirySecs) * time.Second
			return run(config.WithContext(ctx, &cfg), cfg)
		},
	}
}

func flags(cfg *config.Config, readHeaderTimeoutSecs *int, cacheTTLSecs, downloadURLExpirySecs *int64) []cli.Flag {
	return []cli.Flag{

		// ── Server ────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "tls-cert-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_TLS_CERT_FILE"),
			Destination: &cfg.Listener.TLSCertFile,
			Usage:       "TLS certificate file",
		},
		&cli.StringFlag{
			Name:        "tls-key-file",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_TLS_KEY_FILE"),
			Destination: &cfg.Listener.TLSKeyFile,
			Usage:       "TLS private key file",
		},
		&cli.IntFlag{
			Name:        "read-header-timeout-seconds",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_READ_HEADER_TIMEOUT_SECONDS"),
			Destination: readHeaderTimeoutSecs,
			Value:       *readHeaderTimeoutSecs,
			Usage:       "HTTP read header timeout in seconds",
		},
		&cli.StringFlag{
			Name:        "temp-dir",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_TEMP_DIR"),
			Destination: &cfg.TempDir,
			Usage:       "Directory for temporary files; defaults to OS temp directory",
		},
		&cli.BoolFlag{
			Name:        "management-access-log",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_MANAGEMENT_ACCESS_LOG"),
			Destination: &cfg.ManagementAccessLog,
			Usage:       "Enable HTTP access logging for management endpoints (/health, /ready, /metrics)",
		},
		&cli.IntFlag{
			Name:        "default-page-limit",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_DEFAULT_PAGE_LIMIT"),
			Destination: &cfg.DefaultPageLimit,
			Value:       cfg.DefaultPageLimit,
			Usage:       "Page size used by list endpoints when the client does not pass a limit",
		},
		&cli.BoolFlag{
			Name:        "cors-enabled",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_CORS_ENABLED"),
			Destination: &cfg.CORSEnabled,
			Usage:       "Enable CORS handling",
		},
		&cli.StringFlag{
			Name:        "cors-origins",
			Category:    "Server:",
			Sources:     cli.EnvVars("CHAT_SERVICE_CORS_ORIGINS"),
			Destination: &cfg.CORSOrigins,
			Usage:       "Comma-separated allowed CORS origins; empty allows any origin",
		},

		// ── Network Listener ──────────────────────────────────────
		&cli.IntFlag{
			Name:        "port",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PORT"),
			Destination: &cfg.Listener.Port,
			Value:       cfg.Listener.Port,
			Usage:       "HTTP server port",
		},
		&cli.BoolFlag{
			Name:        "plain-text",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PLAIN_TEXT"),
			Destination: &cfg.Listener.EnablePlainText,
			Value:       cfg.Listener.EnablePlainText,
			Usage:       "Serve plaintext HTTP/1.1 + h2c",
		},
		&cli.BoolFlag{
			Name:        "tls",
			Category:    "Network Listener:",
			Sources:     cli.EnvVars("CHAT_SERVICE_TLS"),
			Destination: &cfg.Listener.EnableTLS,
			Value:       cfg.Listener.EnableTLS,
			Usage:       "Serve TLS HTTP/1.1 + HTTP/2 when plaintext is disabled",
		},

		// ── Management Network Listener ───────────────────────────
		&cli.IntFlag{
			Name:        "management-port",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("CHAT_SERVICE_MANAGEMENT_PORT"),
			Destination: &cfg.ManagementListener.Port,
			Value:       cfg.ManagementListener.Port,
			Usage:       "Dedicated port for health and metrics (0 = OS-assigned random port); when unset, served on the main port",
		},
		&cli.BoolFlag{
			Name:        "management-plain-text",
			Category:    "Management Network Listener:",
			Sources:     cli.EnvVars("CHAT_SERVICE_MANAGEMENT_PLAIN_TEXT"),
			Destination: &cfg.ManagementListener.EnablePlainText,
			Value:       cfg.ManagementListener.EnablePlainText,
			Usage:       "Enable plaintext HTTP for management server",
		},

		// ── Database ───────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "db-kind",
			Category:    "Database:",
			Sources:     cli.EnvVars("CHAT_SERVICE_DB_KIND"),
			Destination: &cfg.DatastoreType,
			Value:       cfg.DatastoreType,
			Usage:       "Backend store (" + strings.Join(registrystore.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "db-url",
			Category:    "Database:",
			Sources:     cli.EnvVars("CHAT_SERVICE_DB_URL"),
			Destination: &cfg.DBURL,
			Usage:       "Database connection URL",
			Required:    true,
		},
		&cli.IntFlag{
			Name:        "db-max-open-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("CHAT_SERVICE_DB_MAX_OPEN_CONNS"),
			Destination: &cfg.DBMaxOpenConns,
			Value:       cfg.DBMaxOpenConns,
			Usage:       "Maximum number of open database connections",
		},
		&cli.IntFlag{
			Name:        "db-max-idle-conns",
			Category:    "Database:",
			Sources:     cli.EnvVars("CHAT_SERVICE_DB_MAX_IDLE_CONNS"),
			Destination: &cfg.DBMaxIdleConns,
			Value:       cfg.DBMaxIdleConns,
			Usage:       "Maximum number of idle database connections",
		},
		&cli.BoolFlag{
			Name:        "db-migrate-at-start",
			Category:    "Database:",
			Sources:     cli.EnvVars("CHAT_SERVICE_DB_MIGRATE_AT_START"),
			Destination: &cfg.DatastoreMigrateAtStart,
			Value:       cfg.DatastoreMigrateAtStart,
			Usage:       "Run datastore migrations on startup",
		},

		// ── Cache ─────────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "cache-kind",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_SERVICE_CACHE_KIND"),
			Destination: &cfg.CacheType,
			Value:       cfg.CacheType,
			Usage:       "Profile cache backend (" + strings.Join(registrycache.Names(), "|") + ")",
		},
		&cli.StringFlag{
			Name:        "redis-url",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_SERVICE_REDIS_URL"),
			Destination: &cfg.RedisURL,
			Usage:       "Redis connection URL",
		},
		&cli.Int64Flag{
			Name:        "cache-profile-ttl-seconds",
			Category:    "Cache:",
			Sources:     cli.EnvVars("CHAT_SERVICE_CACHE_PROFILE_TTL_SECONDS"),
			Destination: cacheTTLSecs,
			Value:       *cacheTTLSecs,
			Usage:       "How long cached profiles stay valid, in seconds",
		},

		// ── Picture Storage ───────────────────────────────────────
		&cli.StringFlag{
			Name:        "pictures-kind",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_KIND"),
			Destination: &cfg.PictureType,
			Value:       cfg.PictureType,
			Usage:       "Profile picture store (db|s3)",
		},
		&cli.Int64Flag{
			Name:        "pictures-max-size",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_MAX_SIZE"),
			Destination: &cfg.PictureMaxSize,
			Value:       cfg.PictureMaxSize,
			Usage:       "Largest accepted profile picture upload in bytes",
		},
		&cli.StringFlag{
			Name:        "pictures-s3-bucket",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_S3_BUCKET"),
			Destination: &cfg.S3Bucket,
			Usage:       "S3 bucket for profile pictures",
		},
		&cli.StringFlag{
			Name:        "pictures-s3-prefix",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_S3_PREFIX"),
			Destination: &cfg.S3Prefix,
			Usage:       "Key prefix applied to S3 picture objects",
		},
		&cli.BoolFlag{
			Name:        "pictures-s3-use-path-style",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_S3_USE_PATH_STYLE"),
			Destination: &cfg.S3UsePathStyle,
			Usage:       "Use path-style S3 addressing (required for LocalStack/MinIO)",
		},
		&cli.StringFlag{
			Name:        "pictures-s3-external-endpoint",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_S3_EXTERNAL_ENDPOINT"),
			Destination: &cfg.S3ExternalEndpoint,
			Usage:       "External endpoint substituted into presigned picture URLs",
		},
		&cli.BoolFlag{
			Name:        "pictures-s3-direct-download",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_S3_DIRECT_DOWNLOAD"),
			Destination: &cfg.S3DirectDownload,
			Value:       cfg.S3DirectDownload,
			Usage:       "Redirect picture downloads to presigned URLs when the backend supports them",
		},
		&cli.Int64Flag{
			Name:        "pictures-download-url-expires-in-seconds",
			Category:    "Picture Storage:",
			Sources:     cli.EnvVars("CHAT_SERVICE_PICTURES_DOWNLOAD_URL_EXPIRES_IN_SECONDS"),
			Destination: downloadURLExpirySecs,
			Value:       *downloadURLExpirySecs,
			Usage:       "Lifetime of presigned picture download URLs, in seconds",
		},

		// ── Monitoring ────────────────────────────────────────────
		&cli.StringFlag{
			Name:        "metrics-labels",
			Category:    "Monitoring:",
			Sources:     cli.EnvVars("CHAT_SERVICE_METRICS_LABELS"),
			Destination: &cfg.MetricsLabels,
			Value:       "service=chat-service",
			Usage:       "Comma-separated key=value pairs added as constant labels to all Prometheus metrics. Supports ${VAR} expansion.",
		},
	}
}

func run(ctx context.Context, cfg config.Config) error {
	srv, err := StartServer(ctx, &cfg)
	if err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	drainCtx, drainCancel := context.WithTimeout(context.Background(), time.Duration(cfg.DrainTimeout)*time.Second)
	defer drainCancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Error("Shutdown error", "err", err)
	}
	log.Info("Server stopped")
	return nil
}

func maxBodySizeMiddleware(maxBodySize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isStreamingRequest(c.Request) {
			c.Next()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()
	}
}

func isStreamingRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	if req.Method != http.MethodPost || req.URL.Path != "/api/images" {
		return false
	}
	contentType := strings.ToLower(strings.TrimSpace(req.Header.Get("Content-Type")))
	return strings.HasPrefix(contentType, "multipart/form-data")
}
