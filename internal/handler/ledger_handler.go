package handler

import (
	"net/http"
	"time"

	"retailsense/internal/service"
	"retailsense/pkg/pagination"
	"retailsense/pkg/response"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	ledgerService service.LedgerService
	loc           *time.Location
}

func NewLedgerHandler(ledgerService service.LedgerService, loc *time.Location) *LedgerHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerHandler{ledgerService: ledgerService, loc: loc}
}

func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/transactions", h.ListTransactions)
}

// RegisterHealth mounts the unauthenticated liveness probe.
func (h *LedgerHandler) RegisterHealth(router gin.IRoutes) {
	router.GET("/health", h.Health)
}

// @Summary      List transactions
// @Description  Paginated ledger lines filtered by country, category and date range
// @Tags         Transactions
// @Produce      json
// @Param        country    query string false "Country"
// @Param        category   query string false "Product category"
// @Param        start_date query string false "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string false "End date (YYYY-MM-DD), inclusive"
// @Param        page       query int    false "Page number (default 1)"
// @Param        limit      query int    false "Page size (default 20, max 100)"
// @Success      200 {object} response.Response{data=[]model.Transaction,meta=pagination.Meta}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/transactions [get]
func (h *LedgerHandler) ListTransactions(c *gin.Context) {
	r, err := optionalRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	params := pagination.Parse(c)

	rows, total, err := h.ledgerService.List(c.Request.Context(), service.LedgerFilter{
		Country:  c.Query("country"),
		Category: c.Query("category"),
		Range:    r,
		Page:     params.Page,
		Limit:    params.Limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, rows, params.MetaFor(total)))
}

// @Summary      Health check
// @Description  API liveness and transaction store reachability
// @Tags         Health
// @Produce      json
// @Success      200 {object} model.HealthStatus
// @Failure      503 {object} model.HealthStatus "Store unreachable"
// @Router       /health [get]
func (h *LedgerHandler) Health(c *gin.Context) {
	status := h.ledgerService.Health(c.Request.Context())
	code := http.StatusOK
	if !status.DatabaseConnected {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
