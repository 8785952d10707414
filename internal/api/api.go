package api

import (
	"errors"
	"log"
	"net/http"

	"colony-exchange/internal/bank"
	"colony-exchange/internal/config"
	"colony-exchange/internal/inventory"
	"colony-exchange/internal/models"
	"colony-exchange/internal/orders"
	"colony-exchange/internal/promise"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type APIHandler struct {
	db        *gorm.DB
	promises  *promise.Service
	inventory *inventory.Service
	engine    *orders.Engine
	online    *config.OnlineState
	events    *EventHub
}

func SetupRoutes(r *gin.RouterGroup, db *gorm.DB, promises *promise.Service, inv *inventory.Service, engine *orders.Engine, online *config.OnlineState) *APIHandler {
	handler := &APIHandler{
		db:        db,
		promises:  promises,
		inventory: inv,
		engine:    engine,
		online:    online,
		events:    NewEventHub(),
	}

	r.GET("/ws", handler.ServeEvents)

	colonies := r.Group("/colonies")
	colonies.Use(handler.requireOnline)
	{
		colonies.PUT("/:colony_id", handler.RegisterColony)
		colonies.PUT("/:colony_id/tick", handler.UpdateTick)

		colonies.POST("/:colony_id/promise", handler.IssuePromise)
		colonies.POST("/:colony_id/promise/:promise_id/activate", handler.ActivatePromise)

		colonies.GET("/:colony_id/inventory", handler.GetTradables)
		colonies.PUT("/:colony_id/tradables", handler.SetTradables)
		colonies.POST("/:colony_id/candidates", handler.SubmitCandidates)

		colonies.POST("/:colony_id/orders", handler.PlaceOrder)
		colonies.GET("/:colony_id/orders", handler.ListOrders)
		colonies.GET("/:colony_id/orders/:order_id", handler.GetOrderManifest)
		colonies.PUT("/:colony_id/orders/:order_id/status", handler.UpdateOrderStatus)

		colonies.GET("/:colony_id/bank", handler.GetBalances)
		colonies.POST("/:colony_id/bank/withdraw", handler.Withdraw)
	}

	return handler
}

// requireOnline turns every colony route away while the exchange is held
// offline (maintenance window or operator switch).
func (h *APIHandler) requireOnline(c *gin.Context) {
	if h.online.Snapshot().ForceOffline {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "exchange is offline"})
		return
	}
	c.Next()
}

// loadColony resolves the path colony or writes the 404 itself.
func (h *APIHandler) loadColony(c *gin.Context) (*models.Colony, bool) {
	var colony models.Colony
	err := h.db.Where("colony_id = ?", c.Param("colony_id")).First(&colony).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "colony not registered"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load colony"})
		return nil, false
	}
	return &colony, true
}

type registerColonyRequest struct {
	Name        string `json:"name" binding:"required"`
	FactionName string `json:"faction_name"`
	Tick        int32  `json:"tick"`
	Platform    int32  `json:"platform"`
	GameVersion string `json:"game_version"`
	Seed        string `json:"seed"`
	UsedDevMode bool   `json:"used_dev_mode"`
}

// RegisterColony upserts the colony row. The recorded tick only moves
// through order placement, status updates and the tick endpoint, so a
// re-register never rewinds time.
func (h *APIHandler) RegisterColony(c *gin.Context) {
	var req registerColonyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	platform, err := models.ParsePlatform(req.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	colony := models.Colony{
		ColonyID:    c.Param("colony_id"),
		Name:        req.Name,
		FactionName: req.FactionName,
		Tick:        req.Tick,
		Platform:    platform,
		GameVersion: req.GameVersion,
		Seed:        req.Seed,
		UsedDevMode: req.UsedDevMode,
	}
	err = h.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "colony_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "faction_name", "platform", "game_version", "seed", "used_dev_mode"}),
	}).Create(&colony).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save colony"})
		return
	}
	c.JSON(http.StatusOK, colony)
}

type updateTickRequest struct {
	Tick int32 `json:"tick"`
}

// UpdateTick records the colony's reported tick. A tick lower than the
// recorded one means the save was reloaded: every order placed after the
// new tick is reversed before the tick is written back.
func (h *APIHandler) UpdateTick(c *gin.Context) {
	var req updateTickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	colony, ok := h.loadColony(c)
	if !ok {
		return
	}

	if req.Tick < colony.Tick {
		if err := h.engine.Timewarp(colony, req.Tick); err != nil {
			log.Printf("Timewarp for colony %s to tick %d failed: %v", colony.ColonyID, req.Tick, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rewind orders"})
			return
		}
		h.events.Broadcast(Event{Type: "timewarp", ColonyID: colony.ColonyID, Data: gin.H{"tick": req.Tick}})
	}

	colony.Tick = req.Tick
	if err := h.db.Model(colony).Update("tick", req.Tick).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save tick"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"colony_id": colony.ColonyID, "tick": colony.Tick})
}

func (h *APIHandler) IssuePromise(c *gin.Context) {
	if _, ok := h.loadColony(c); !ok {
		return
	}
	p, err := h.promises.Issue(c.Param("colony_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue promise"})
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *APIHandler) ActivatePromise(c *gin.Context) {
	p, err := h.promises.Activate(c.Param("colony_id"), c.Param("promise_id"))
	if err != nil {
		h.promiseError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetTradables returns the colony's tradable catalog rows with item codes
// signed under the active promise key.
func (h *APIHandler) GetTradables(c *gin.Context) {
	p, err := h.promises.Get(c.Param("colony_id"))
	if err != nil {
		h.promiseError(c, err)
		return
	}
	tradables, err := h.inventory.TradablesForColony(c.Param("colony_id"), p.PrivateKey)
	if err != nil {
		if errors.Is(err, inventory.ErrNoTradables) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load tradables"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"promise_id": p.PromiseID, "tradables": tradables})
}

type setTradablesRequest struct {
	ItemCodes []string `json:"item_codes" binding:"required"`
}

func (h *APIHandler) SetTradables(c *gin.Context) {
	var req setTradablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := h.loadColony(c); !ok {
		return
	}
	if err := h.inventory.SetTradables(c.Param("colony_id"), req.ItemCodes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save tradable list"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(req.ItemCodes)})
}

type submitCandidatesRequest struct {
	ClientID string                 `json:"client_id" binding:"required"`
	Items    []models.CandidateItem `json:"items" binding:"required"`
}

// SubmitCandidates stages a colony's unknown items and records one vote
// per (client, version). Promotion happens during nightly maintenance.
func (h *APIHandler) SubmitCandidates(c *gin.Context) {
	var req submitCandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := h.loadColony(c); !ok {
		return
	}
	if err := h.inventory.SubmitCandidates(c.Param("colony_id"), req.ClientID, req.Items); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stage candidates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(req.Items)})
}

type placeOrderRequest struct {
	PromiseID       string             `json:"promise_id" binding:"required"`
	Tick            int32              `json:"tick"`
	Currency        int32              `json:"currency"`
	AdditionalFunds int64              `json:"additional_funds"`
	WTS             []models.OrderItem `json:"wts"`
	WTB             []models.OrderItem `json:"wtb"`
}

func (h *APIHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	colony, ok := h.loadColony(c)
	if !ok {
		return
	}

	result, err := h.engine.Place(colony, req.WTS, req.WTB, req.PromiseID, currency, req.AdditionalFunds, req.Tick)
	if err != nil {
		h.orderError(c, err)
		return
	}
	if result.Order != nil {
		h.events.Broadcast(Event{Type: "order_placed", ColonyID: colony.ColonyID, Data: result.Order.Summary()})
	}
	c.JSON(http.StatusOK, result)
}

func (h *APIHandler) ListOrders(c *gin.Context) {
	if _, ok := h.loadColony(c); !ok {
		return
	}
	summaries, err := h.engine.List(c.Param("colony_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": summaries})
}

func (h *APIHandler) GetOrderManifest(c *gin.Context) {
	items, err := h.engine.Manifest(c.Param("colony_id"), c.Param("order_id"))
	if err != nil {
		h.orderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_id": c.Param("order_id"), "items": items})
}

type updateStatusRequest struct {
	Status int32 `json:"status"`
	Tick   int32 `json:"tick"`
}

func (h *APIHandler) UpdateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	colony, ok := h.loadColony(c)
	if !ok {
		return
	}

	summary, err := h.engine.UpdateStatus(colony, c.Param("order_id"), status, req.Tick)
	if err != nil {
		h.orderError(c, err)
		return
	}
	h.events.Broadcast(Event{Type: "order_status", ColonyID: colony.ColonyID, Data: summary})
	c.JSON(http.StatusOK, summary)
}

func (h *APIHandler) GetBalances(c *gin.Context) {
	if _, ok := h.loadColony(c); !ok {
		return
	}
	balances, err := bank.Balances(h.db, c.Param("colony_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load balances"})
		return
	}
	out := make(map[string]int64, len(balances))
	for currency, amount := range balances {
		out[currency.String()] = amount
	}
	c.JSON(http.StatusOK, gin.H{"balances": out})
}

type withdrawRequest struct {
	Amount   int64 `json:"amount"`
	Currency int32 `json:"currency"`
}

func (h *APIHandler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	currency, err := models.ParseCurrency(req.Currency)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	colony, ok := h.loadColony(c)
	if !ok {
		return
	}

	result, err := h.engine.Withdraw(colony, req.Amount, currency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// promiseError maps promise lifecycle failures onto HTTP statuses.
func (h *APIHandler) promiseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, promise.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, promise.ErrExpired), errors.Is(err, promise.ErrDeactivated), errors.Is(err, promise.ErrMismatched):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "promise lookup failed"})
	}
}

// orderError maps engine failures onto HTTP statuses. Anything the engine
// did not classify is a 500.
func (h *APIHandler) orderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrStaleTick):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, promise.ErrNotFound), errors.Is(err, promise.ErrExpired),
		errors.Is(err, promise.ErrDeactivated), errors.Is(err, promise.ErrMismatched):
		h.promiseError(c, err)
	default:
		log.Printf("order request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order request failed"})
	}
}
