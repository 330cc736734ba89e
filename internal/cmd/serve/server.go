package serve

import (
	"context"
	"fmt"

	"github.com/ajoubeir/chat-service/internal/config"
	"github.com/ajoubeir/chat-service/internal/plugin/route/conversations"
	"github.com/ajoubeir/chat-service/internal/plugin/route/images"
	"github.com/ajoubeir/chat-service/internal/plugin/route/profiles"
	routesystem "github.com/ajoubeir/chat-service/internal/plugin/route/system"
	storemetrics "github.com/ajoubeir/chat-service/internal/plugin/store/metrics"
	registryblob "github.com/ajoubeir/chat-service/internal/registry/blob"
	registrycache "github.com/ajoubeir/chat-service/internal/registry/cache"
	registrymigrate "github.com/ajoubeir/chat-service/internal/registry/migrate"
	registryroute "github.com/ajoubeir/chat-service/internal/registry/route"
	registrystore "github.com/ajoubeir/chat-service/internal/registry/store"
	"github.com/ajoubeir/chat-service/internal/security"
	"github.com/ajoubeir/chat-service/internal/service"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// Server holds the running server and its subsystems.
type Server struct {
	Config          *config.Config
	Store           registrystore.Store
	Router          *gin.Engine
	Running         *RunningServer
	closeManagement func(context.Context) error
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.closeManagement != nil {
		_ = s.closeManagement(ctx)
	}
	return s.Running.Close(ctx)
}

// StartServer initializes all subsystems and starts the HTTP server.
// Use cfg.Listener.Port=0 for a random port. Actual port: Server.Running.Port.
func StartServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	log.Info("Starting chat service",
		"httpPort", cfg.Listener.Port,
		"db", cfg.DatastoreType,
		"cache", cfg.CacheType,
		"pictures", cfg.PictureType,
	)

	// Initialize Prometheus metrics with configured constant labels.
	metricsLabels, err := security.ParseMetricsLabels(cfg.MetricsLabels)
	if err != nil {
		return nil, fmt.Errorf("invalid --metrics-labels: %w", err)
	}
	security.InitMetrics(metricsLabels)

	// Run migrations
	if err := registrymigrate.RunAll(ctx); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	// Initialize the profile cache. A cache failure degrades to uncached reads.
	var profileCache registrycache.ProfileCache
	if cacheLoader, err := registrycache.Select(cfg.CacheType); err != nil {
		log.Warn("Cache not available", "cache", cfg.CacheType, "err", err)
	} else if profileCache, err = cacheLoader(ctx); err != nil {
		log.Warn("Failed to initialize cache", "cache", cfg.CacheType, "err", err)
		profileCache = nil
	}

	// Initialize store
	storeLoader, err := registrystore.Select(cfg.DatastoreType)
	if err != nil {
		return nil, err
	}
	store, err := storeLoader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	store = storemetrics.Wrap(store)

	// Set up gin
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.ManagementAccessLog {
		router.Use(security.AccessLogMiddleware())
	} else {
		router.Use(security.AccessLogMiddleware("/health", "/ready", "/metrics"))
	}
	router.Use(security.MetricsMiddleware())
	router.Use(maxBodySizeMiddleware(cfg.MaxBodySize))
	if cfg.CORSEnabled {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}

	// Mount main route plugins on the main router.
	for _, loader := range registryroute.MainRouteLoaders() {
		if err := loader(router); err != nil {
			return nil, fmt.Errorf("failed to load routes: %w", err)
		}
	}

	// Initialize the picture store.
	// "db" keeps pictures in the same MongoDB database via GridFS.
	pictureStoreName := cfg.PictureType
	if pictureStoreName == "db" {
		pictureStoreName = "mongo"
	}
	var pictureStore registryblob.PictureStore
	if pictureStoreName != "" {
		blobLoader, err := registryblob.Select(pictureStoreName)
		if err != nil {
			log.Warn("Picture store not available", "err", err)
		} else {
			pictureStore, err = blobLoader(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize picture store: %w", err)
			}
		}
	}

	// Wire up services.
	profileSvc := service.NewProfileService(store, profileCache, cfg.CacheProfileTTL)
	chatSvc := service.NewChatService(store, store, profileSvc)

	conversations.MountRoutes(router, chatSvc, cfg)
	profiles.MountRoutes(router, profileSvc)
	if pictureStore != nil {
		pictureSvc := service.NewPictureService(pictureStore, cfg.PictureMaxSize, cfg.PictureDownloadURLExpiresIn)
		images.MountRoutes(router, pictureSvc, cfg)
	}

	// Mount management route plugins. If a dedicated management port is configured,
	// run them on a bare gin engine served by the management server. Otherwise,
	// mount them on the main router so existing single-port behaviour is unchanged.
	var closeManagement func(context.Context) error
	if cfg.ManagementListenerEnabled {
		mgmtRouter := gin.New()
		mgmtRouter.Use(gin.Recovery())
		if cfg.ManagementAccessLog {
			mgmtRouter.Use(security.AccessLogMiddleware())
		}
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(mgmtRouter); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
		// Management listener shares TLS cert/key with the main listener.
		mgmtCfg := cfg.ManagementListener
		mgmtCfg.TLSCertFile = cfg.Listener.TLSCertFile
		mgmtCfg.TLSKeyFile = cfg.Listener.TLSKeyFile
		mgmt, err := StartHTTPListener(mgmtCfg, mgmtRouter)
		if err != nil {
			return nil, fmt.Errorf("failed to start management server: %w", err)
		}
		log.Info("Management server listening", "addr", mgmt.Addr)
		closeManagement = mgmt.Close
	} else {
		for _, loader := range registryroute.ManagementRouteLoaders() {
			if err := loader(router); err != nil {
				return nil, fmt.Errorf("failed to load management routes: %w", err)
			}
		}
	}

	running, err := StartHTTPListener(cfg.Listener, router)
	if err != nil {
		return nil, err
	}

	log.Info("Server listening",
		"port", running.Port,
		"plaintext", cfg.Listener.EnablePlainText,
		"tls", cfg.Listener.EnableTLS,
	)

	routesystem.MarkReady()
	return &Server{
		Config:          cfg,
		Store:           store,
		Router:          router,
		Running:         running,
		closeManagement: closeManagement,
	}, nil
}
