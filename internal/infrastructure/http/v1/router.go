// Package v1 provides HTTP API version 1.
package v1

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"stevedore/internal/core/feature"
	"stevedore/internal/core/numerator"
	"stevedore/internal/domain/allocation"
	"stevedore/internal/domain/billing"
	"stevedore/internal/domain/catalogs/location"
	"stevedore/internal/domain/catalogs/product"
	"stevedore/internal/domain/catalogs/warehouse"
	"stevedore/internal/domain/orders"
	"stevedore/internal/domain/orders/manifest"
	"stevedore/internal/domain/orders/receiving"
	"stevedore/internal/domain/orders/shipping"
	"stevedore/internal/domain/pallet"
	"stevedore/internal/infrastructure/http/v1/handlers"
	"stevedore/internal/infrastructure/http/v1/middleware"
	"stevedore/internal/infrastructure/storage/postgres"
	"stevedore/internal/infrastructure/storage/postgres/billing_repo"
	"stevedore/internal/infrastructure/storage/postgres/catalog_repo"
	"stevedore/internal/infrastructure/storage/postgres/document_repo"
	"stevedore/internal/infrastructure/storage/postgres/pallet_repo"
	"stevedore/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the database connection pool (health checks read its stats)
	Pool *postgres.Pool

	// TxManager runs repository operations in shared transactions
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// TokenValidator checks bearer tokens issued by the site's identity provider
	TokenValidator middleware.TokenValidator

	// Numerator for document number generation
	Numerator numerator.Generator

	// Flags gates optional behavior (cross-dock kill switch, single-truck loading)
	Flags feature.FlagProvider

	// CrossDockPolicy vetoes cross-dock candidates per order
	CrossDockPolicy allocation.Policy

	// EditPolicy decides which document fields stay frozen after the
	// document leaves its initial status
	EditPolicy orders.EditPolicy

	// IdempotencyTTL is how long completed idempotency keys are replayable
	IdempotencyTTL time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	svc, err := buildServices(cfg)
	if err != nil {
		return nil, err
	}

	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	// API v1
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.TokenValidator))
	v1.Use(middleware.Idempotency(postgres.NewIdempotencyStore(cfg.TxManager, ttl)))
	{
		registerCatalogRoutes(v1, svc)
		registerOrderRoutes(v1, svc)
		registerTallyRoutes(v1, svc)
		registerPalletRoutes(v1, svc)
		registerManifestRoutes(v1, svc)
		registerBillingRoutes(v1, svc)
	}

	return router, nil
}

// services aggregates the wired domain services behind the API.
type services struct {
	products   *product.Service
	warehouses *warehouse.Service
	locations  *location.Service
	receiving  *receiving.Service
	shipping   *shipping.Service
	manifests  *manifest.Service
	pallets    *pallet.Service
	tally      *allocation.Service
	billing    *billing.Service
}

// buildServices wires repositories and services. Everything shares one
// transaction manager so multi-aggregate operations commit atomically.
func buildServices(cfg RouterConfig) (*services, error) {
	flags := cfg.Flags
	if flags == nil {
		flags = feature.NewInMemoryFlags()
	}

	editPolicy := cfg.EditPolicy
	if editPolicy == nil {
		editPolicy = orders.NewStrictEditPolicy()
	}

	policy := cfg.CrossDockPolicy
	if policy == nil {
		var err error
		policy, err = allocation.NewCELPolicy(allocation.DefaultPolicyExpression)
		if err != nil {
			return nil, fmt.Errorf("compile default cross-dock policy: %w", err)
		}
	}

	productRepo := catalog_repo.NewProductRepo(cfg.TxManager)
	warehouseRepo := catalog_repo.NewWarehouseRepo(cfg.TxManager)
	locationRepo := catalog_repo.NewLocationRepo(cfg.TxManager)
	receivingRepo := document_repo.NewReceivingRepo(cfg.TxManager)
	shippingRepo := document_repo.NewShippingRepo(cfg.TxManager)
	manifestRepo := document_repo.NewManifestRepo(cfg.TxManager)
	palletRepo := pallet_repo.NewPalletRepo(cfg.TxManager)
	billingRepo := billing_repo.NewBillingRepo(cfg.TxManager)

	palletEvents, err := postgres.NewPalletEventStore(cfg.TxManager)
	if err != nil {
		return nil, fmt.Errorf("create pallet event store: %w", err)
	}
	publisher := postgres.NewOutboxPublisher(cfg.TxManager)

	productService := product.NewService(productRepo, cfg.Numerator, cfg.TxManager)
	warehouseService := warehouse.NewService(warehouseRepo, cfg.Numerator, cfg.TxManager)
	locationService := location.NewService(locationRepo, cfg.Numerator, cfg.TxManager)

	// The ledger doubles as the shipping quantity gate: picks and tally
	// confirmations are checked against the same remaining-quantity math.
	ledger := allocation.NewLedger(receivingRepo, shippingRepo, palletRepo)
	allocator := allocation.NewAllocator(shippingRepo, palletRepo, policy, flags)

	manifestService := manifest.NewService(
		manifestRepo,
		palletRepo,
		shippingRepo,
		cfg.Numerator,
		publisher,
		cfg.TxManager,
	)

	receivingService := receiving.NewService(
		receivingRepo,
		palletRepo,
		productService,
		cfg.Numerator,
		publisher,
		editPolicy,
		cfg.TxManager,
	)

	shippingService := shipping.NewService(
		shippingRepo,
		palletRepo,
		palletEvents,
		ledger,
		manifestService,
		cfg.Numerator,
		publisher,
		editPolicy,
		flags,
		cfg.TxManager,
	)

	tallyService := allocation.NewService(
		receivingRepo,
		palletRepo,
		palletEvents,
		productService,
		ledger,
		allocator,
		cfg.Numerator,
		cfg.TxManager,
	)

	palletService := pallet.NewService(palletRepo, palletEvents, locationRepo, cfg.TxManager)
	billingService := billing.NewService(billingRepo)

	return &services{
		products:   productService,
		warehouses: warehouseService,
		locations:  locationService,
		receiving:  receivingService,
		shipping:   shippingService,
		manifests:  manifestService,
		pallets:    palletService,
		tally:      tallyService,
		billing:    billingService,
	}, nil
}

// registerCatalogRoutes registers catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, svc *services) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	// --- PRODUCTS ---
	{
		handler := handlers.NewProductHandler(baseHandler, svc.products)
		RegisterCatalogRoutes(catalogs.Group("/products"), handler)
	}

	// --- WAREHOUSES ---
	{
		handler := handlers.NewWarehouseHandler(baseHandler, svc.warehouses)
		RegisterCatalogRoutes(catalogs.Group("/warehouses"), handler)
	}

	// --- LOCATIONS ---
	{
		handler := handlers.NewLocationHandler(baseHandler, svc.locations)
		group := catalogs.Group("/locations")
		RegisterCatalogRoutes(group, handler)
		group.POST("/resolve", handler.Resolve)
		group.POST("/generate-grid", handler.GenerateGrid)
	}
}

// registerOrderRoutes registers receiving and shipping order endpoints.
func registerOrderRoutes(rg *gin.RouterGroup, svc *services) {
	ordersGroup := rg.Group("/orders")
	baseHandler := handlers.NewBaseHandler()

	// --- RECEIVING ORDERS ---
	{
		handler := handlers.NewReceivingHandler(baseHandler, svc.receiving)
		group := ordersGroup.Group("/receiving")
		RegisterDocumentRoutes(group, handler)
		group.POST("/:id/start-unloading", handler.StartUnloading)
		group.POST("/:id/finish-tally", handler.FinishTally)
		group.POST("/:id/complete", handler.Complete)
		group.GET("/:id/tally", handler.Tally)
	}

	// --- SHIPPING ORDERS ---
	{
		handler := handlers.NewShippingHandler(baseHandler, svc.shipping)
		group := ordersGroup.Group("/shipping")
		RegisterDocumentRoutes(group, handler)
		group.POST("/:id/finish-picking", handler.FinishPicking)
		group.POST("/:id/finalize-load", handler.FinalizeLoad)
		group.POST("/:id/cancel", handler.Cancel)
		group.GET("/:id/progress", handler.Progress)
	}
}

// registerTallyRoutes registers dock tally endpoints.
func registerTallyRoutes(rg *gin.RouterGroup, svc *services) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewTallyHandler(baseHandler, svc.tally)

	tally := rg.Group("/tally")
	{
		tally.POST("/pallets", handler.Confirm)
		tally.DELETE("/pallets/:id", handler.Undo)
		tally.GET("/plan", handler.Plan)
	}
}

// registerPalletRoutes registers pallet endpoints.
func registerPalletRoutes(rg *gin.RouterGroup, svc *services) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewPalletHandler(baseHandler, svc.pallets, svc.shipping)

	pallets := rg.Group("/pallets")
	{
		pallets.GET("", handler.List)
		pallets.GET("/:id", handler.Get)
		pallets.GET("/:id/events", handler.Events)
		pallets.POST("/:id/put-away", handler.PutAway)
		pallets.POST("/:id/move", handler.Move)
		pallets.POST("/:id/pick", handler.Pick)
		pallets.POST("/:id/toggle-loaded", handler.ToggleLoaded)
		pallets.POST("/:id/write-off", handler.WriteOff)
	}
}

// registerManifestRoutes registers manifest endpoints.
func registerManifestRoutes(rg *gin.RouterGroup, svc *services) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewManifestHandler(baseHandler, svc.manifests)

	group := rg.Group("/manifests")
	RegisterDocumentRoutes(group, handler)
	group.POST("/:id/close", handler.Close)
	group.POST("/:id/cancel", handler.Cancel)
}

// registerBillingRoutes registers billing endpoints.
func registerBillingRoutes(rg *gin.RouterGroup, svc *services) {
	baseHandler := handlers.NewBaseHandler()
	handler := handlers.NewBillingHandler(baseHandler, svc.billing)

	group := rg.Group("/billing")
	{
		group.GET("/metrics", handler.Metrics)
		group.POST("/statement", handler.Statement)
	}
}
