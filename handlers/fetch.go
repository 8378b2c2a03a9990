package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/holdsight/wealth-api/models"
	"github.com/holdsight/wealth-api/services"
	"github.com/holdsight/wealth-api/store"
)

// FetchHandler triggers fetch runs and serves the fetched artifacts.
type FetchHandler struct {
	Fetch         *services.FetchService
	Positions     *store.PositionStore
	Transactions  *store.TransactionStore
	Historic      *store.HistoricStore
	Contributions *store.ContributionsStore
	Records       *store.FetchRecordStore
}

// Run executes a native fetch for one or all connected entities.
func (h *FetchHandler) Run(c *gin.Context) {
	var req models.FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.Fetch.Fetch(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if result.Code == models.FetchCodeRequested {
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

// GetPositions returns the latest snapshot per entity.
func (h *FetchHandler) GetPositions(c *gin.Context) {
	query := models.PositionQuery{}
	if raw := c.Query("entity"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity id"})
			return
		}
		query.Entities = []uuid.UUID{id}
	}
	if raw := c.Query("real"); raw != "" {
		real := raw == "true"
		query.Real = &real
	}

	positions, err := h.Positions.GetLastGroupedByEntity(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// GetAggregatedPosition merges the latest snapshot of every entity into one
// combined view.
func (h *FetchHandler) GetAggregatedPosition(c *gin.Context) {
	query := models.PositionQuery{}
	if raw := c.Query("real"); raw != "" {
		real := raw == "true"
		query.Real = &real
	}

	latest, err := h.Positions.GetLastGroupedByEntity(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}

	positions := make([]models.GlobalPosition, 0, len(latest))
	for _, position := range latest {
		positions = append(positions, position)
	}
	c.JSON(http.StatusOK, models.AggregatePositions(positions))
}

func (h *FetchHandler) GetTransactions(c *gin.Context) {
	ctx := c.Request.Context()

	if raw := c.Query("entity"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity id"})
			return
		}
		transactions, err := h.Transactions.GetByEntity(ctx, id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, transactions)
		return
	}

	transactions, err := h.Transactions.GetAll(ctx, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactions)
}

func (h *FetchHandler) GetHistoric(c *gin.Context) {
	query := models.HistoricQuery{}
	if raw := c.Query("entity"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity id"})
			return
		}
		query.Entities = []uuid.UUID{id}
	}
	if raw := c.Query("product"); raw != "" {
		query.ProductTypes = []models.ProductType{models.ProductType(raw)}
	}

	entries, err := h.Historic.GetByFilters(c.Request.Context(), query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *FetchHandler) GetContributions(c *gin.Context) {
	contributions, err := h.Contributions.GetAllGroupedByEntity(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": contributions})
}

// GetRecords returns the fetch journal of one entity.
func (h *FetchHandler) GetRecords(c *gin.Context) {
	entityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid entity id"})
		return
	}

	records, err := h.Records.GetByEntityID(c.Request.Context(), entityID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}
