package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/holdsight/wealth-api/config"
	"github.com/holdsight/wealth-api/handlers"
	"github.com/holdsight/wealth-api/services"
	"github.com/holdsight/wealth-api/store"
)

// Services bundles everything the route tree depends on.
type Services struct {
	Cfg           config.Config
	Entities      *store.EntityStore
	Credentials   *store.CredentialsStore
	Positions     *store.PositionStore
	Transactions  *store.TransactionStore
	Historic      *store.HistoricStore
	Contributions *store.ContributionsStore
	Records       *store.FetchRecordStore
	Login         *services.LoginService
	Fetch         *services.FetchService
	External      *services.ExternalService
	Crypto        *services.CryptoService
	Imports       *services.VirtualImportService
	WS            *handlers.WSHandler
}

// SetupAuthRoutes sets up the public unlock route.
func SetupAuthRoutes(rg *gin.RouterGroup, deps Services) {
	authHandler := &handlers.AuthHandler{Cfg: deps.Cfg}
	rg.POST("/auth/login", authHandler.Unlock)
}

// SetupEntityRoutes sets up the entity catalog and credential routes.
func SetupEntityRoutes(rg *gin.RouterGroup, deps Services) {
	h := &handlers.EntityHandler{
		Entities:    deps.Entities,
		Credentials: deps.Credentials,
		Login:       deps.Login,
	}

	rg.GET("/entities", h.List)
	rg.GET("/entities/disabled", h.ListDisabled)
	rg.POST("/entities/login", h.Connect)
	rg.DELETE("/entities/:id/credentials", h.Disconnect)
}

// SetupFetchRoutes sets up fetch triggers and data reads.
func SetupFetchRoutes(rg *gin.RouterGroup, deps Services) {
	h := &handlers.FetchHandler{
		Fetch:         deps.Fetch,
		Positions:     deps.Positions,
		Transactions:  deps.Transactions,
		Historic:      deps.Historic,
		Contributions: deps.Contributions,
		Records:       deps.Records,
	}

	rg.POST("/fetch", h.Run)
	rg.GET("/positions", h.GetPositions)
	rg.GET("/positions/aggregate", h.GetAggregatedPosition)
	rg.GET("/transactions", h.GetTransactions)
	rg.GET("/historic", h.GetHistoric)
	rg.GET("/contributions", h.GetContributions)
	rg.GET("/entities/:id/records", h.GetRecords)
}

// SetupExternalRoutes sets up the PSD2 link flow.
func SetupExternalRoutes(rg *gin.RouterGroup, deps Services) {
	h := &handlers.ExternalHandler{External: deps.External}

	rg.GET("/external/institutions", h.ListInstitutions)
	rg.POST("/external/connect", h.Connect)
	rg.POST("/external/complete/:id", h.CompleteLink)
	rg.DELETE("/external/:id", h.Unlink)
	rg.POST("/fetch/external", h.Fetch)
}

// SetupCryptoRoutes sets up wallet management and crypto fetches.
func SetupCryptoRoutes(rg *gin.RouterGroup, deps Services) {
	h := &handlers.CryptoHandler{Crypto: deps.Crypto}

	rg.POST("/crypto/wallets", h.ConnectWallet)
	rg.DELETE("/crypto/wallets/:id", h.DisconnectWallet)
	rg.GET("/crypto/entities/:id/wallets", h.ListWallets)
	rg.POST("/fetch/crypto", h.Fetch)
}

// SetupImportRoutes sets up virtual data imports.
func SetupImportRoutes(rg *gin.RouterGroup, deps Services) {
	h := &handlers.ImportHandler{Imports: deps.Imports}

	rg.POST("/import", h.Run)
	rg.GET("/import/last", h.Last)
}

// SetupWSRoutes sets up the fetch event stream.
func SetupWSRoutes(rg *gin.RouterGroup, deps Services) {
	rg.GET("/ws/fetches", deps.WS.HandleWS)
}
