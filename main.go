package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/handlers"
	"github.com/holdsight/wealth-api/middleware"
	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/routes"
	"github.com/holdsight/wealth-api/services"
	"github.com/holdsight/wealth-api/store"
	"github.com/holdsight/wealth-api/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		config.Logger().Info("no .env file found, using environment variables")
	}
	log := config.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	db, err := config.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	defer db.Close()

	if err := config.RunMigrations(db); err != nil {
		log.Fatal("failed to run migrations: ", err)
	}

	cipher, err := utils.NewCipher(cfg.DataKey, cfg.DataKeySalt)
	if err != nil {
		log.Fatal("failed to derive data key: ", err)
	}

	entities := store.NewEntityStore(db)
	credentials := store.NewCredentialsStore(db, cipher)
	sessions := store.NewSessionStore(db, cipher)
	positions := store.NewPositionStore(db)
	transactions := store.NewTransactionStore(db)
	historic := store.NewHistoricStore(db)
	contributions := store.NewContributionsStore(db)
	records := store.NewFetchRecordStore(db)
	external := store.NewExternalEntityStore(db)
	wallets := store.NewWalletConnectionStore(db)
	virtual := store.NewVirtualImportStore(db)
	assets := store.NewAssetRegistry(db)
	txHandler := store.NewTxHandler(db)

	if err := registerNativeEntities(db, entities); err != nil {
		log.Fatal("failed to register native entities: ", err)
	}

	gate := services.NewEntityGate()
	registry := services.DefaultFetcherRegistry()
	login := services.NewLoginService(entities, credentials, sessions, registry)
	fetch := services.NewFetchService(cfg, entities, credentials, positions, transactions, historic, contributions, records, txHandler, gate, login, registry)
	gocardless := services.NewGoCardlessService(cfg.GoCardlessSecretID, cfg.GoCardlessSecretKey)
	externalSvc := services.NewExternalService(cfg, entities, external, positions, transactions, records, txHandler, gate, gocardless)
	prices := services.NewPriceService(cfg.PriceAPIBase, cfg.TargetFiat)
	crypto := services.NewCryptoService(cfg, entities, wallets, positions, records, assets, txHandler, gate, prices)
	imports := services.NewVirtualImportService(cfg, entities, positions, transactions, virtual, txHandler)

	wsHandler := handlers.NewWSHandler()
	fetch.SetEventSink(wsHandler)
	externalSvc.SetEventSink(wsHandler)
	crypto.SetEventSink(wsHandler)

	deps := routes.Services{
		Cfg:           cfg,
		Entities:      entities,
		Credentials:   credentials,
		Positions:     positions,
		Transactions:  transactions,
		Historic:      historic,
		Contributions: contributions,
		Records:       records,
		Login:         login,
		Fetch:         fetch,
		External:      externalSvc,
		Crypto:        crypto,
		Imports:       imports,
		WS:            wsHandler,
	}

	router := gin.Default()

	corsConfig := cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.RateLimiter())

	v1 := router.Group("/api/v1")
	{
		routes.SetupAuthRoutes(v1, deps)

		protected := v1.Group("/")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			routes.SetupEntityRoutes(protected, deps)
			routes.SetupFetchRoutes(protected, deps)
			routes.SetupExternalRoutes(protected, deps)
			routes.SetupCryptoRoutes(protected, deps)
			routes.SetupImportRoutes(protected, deps)
			routes.SetupWSRoutes(protected, deps)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Info("server starting on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("failed to start server: ", err)
	}
}

// registerNativeEntities seeds the catalog; existing rows are left alone so
// user toggles (disabled) survive restarts.
func registerNativeEntities(db *sql.DB, entities *store.EntityStore) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, entity := range models.NativeEntities {
		if err := entities.Upsert(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}
