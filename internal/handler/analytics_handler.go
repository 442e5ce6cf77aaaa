package handler

import (
	"net/http"
	"time"

	"retailsense/internal/service"
	"retailsense/pkg/response"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	aggregation  service.AggregationService
	temporal     service.TemporalService
	segmentation service.SegmentationService
	products     service.ProductService
	loc          *time.Location
}

func NewAnalyticsHandler(
	aggregation service.AggregationService,
	temporal service.TemporalService,
	segmentation service.SegmentationService,
	products service.ProductService,
	loc *time.Location,
) *AnalyticsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsHandler{
		aggregation:  aggregation,
		temporal:     temporal,
		segmentation: segmentation,
		products:     products,
		loc:          loc,
	}
}

func (h *AnalyticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	analyticsGroup := router.Group("/api/analytics")
	{
		analyticsGroup.GET("/summary", h.GetSummary)
		analyticsGroup.GET("/categories", h.GetCategories)
		analyticsGroup.GET("/countries", h.GetCountries)
		analyticsGroup.GET("/overview", h.GetOverview)
		analyticsGroup.GET("/sales", h.GetSales)
		analyticsGroup.GET("/sales/temporal", h.GetTemporal)
		analyticsGroup.GET("/periods", h.GetPeriods)
		analyticsGroup.GET("/customers", h.GetCustomers)
		analyticsGroup.GET("/products", h.GetProducts)
		analyticsGroup.GET("/price-tiers", h.GetPriceTiers)
	}
}

// @Summary      Range summary
// @Description  Transaction count, total value, distinct customers, quantity, average unit price, distinct countries and categories of a closed date range
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true "End date (YYYY-MM-DD), inclusive"
// @Success      200 {object} response.Response{data=model.Summary}
// @Failure      400 {object} response.Response "Invalid range"
// @Failure      503 {object} response.Response "Store unavailable"
// @Security     BearerAuth
// @Router       /api/analytics/summary [get]
func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	summary, err := h.aggregation.Summary(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// @Summary      Category rollup
// @Description  Per-category line count, value, quantity and ticket average, sorted by category
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true "End date (YYYY-MM-DD), inclusive"
// @Success      200 {object} response.Response{data=[]model.CategoryRollup}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/categories [get]
func (h *AnalyticsHandler) GetCategories(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	rollup, err := h.aggregation.Categories(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rollup))
}

// @Summary      Country rollup
// @Description  Per-country line count, value, quantity, distinct customers and ticket average, sorted by country
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true "End date (YYYY-MM-DD), inclusive"
// @Success      200 {object} response.Response{data=[]model.CountryRollup}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/countries [get]
func (h *AnalyticsHandler) GetCountries(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	rollup, err := h.aggregation.Countries(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, rollup))
}

// @Summary      Dashboard overview
// @Description  Summary, category rollup and country rollup of one range, computed concurrently
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true "End date (YYYY-MM-DD), inclusive"
// @Success      200 {object} response.Response{data=model.Overview}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/overview [get]
func (h *AnalyticsHandler) GetOverview(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	overview, err := h.aggregation.Overview(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, overview))
}

// @Summary      Sales overview
// @Description  Total sales, average ticket, distinct customers and invoices, first and last invoice in range
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true "End date (YYYY-MM-DD), inclusive"
// @Success      200 {object} response.Response{data=model.SalesOverview}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/sales [get]
func (h *AnalyticsHandler) GetSales(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	sales, err := h.aggregation.Sales(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, sales))
}

// @Summary      Daily sales series
// @Description  Ascending daily buckets with trailing moving average, trend tag and growth against the previous bucket
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true  "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true  "End date (YYYY-MM-DD), inclusive"
// @Param        window     query int    false "Moving average window in buckets (default 7)"
// @Param        fill_gaps  query bool   false "Emit zero buckets for days without transactions (range of at most max_fill_days)"
// @Success      200 {object} response.Response{data=model.TemporalSeries}
// @Failure      400 {object} response.Response
// @Failure      404 {object} response.Response "No transactions in range"
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/sales/temporal [get]
func (h *AnalyticsHandler) GetTemporal(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	q := service.TemporalQuery{Range: r}
	window, ok, err := intQuery(c, "window")
	if err != nil {
		writeError(c, err)
		return
	}
	if ok {
		q.Window = &window
	}
	if q.FillGaps, err = boolQuery(c, "fill_gaps"); err != nil {
		writeError(c, err)
		return
	}

	series, err := h.temporal.Series(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, series))
}

// @Summary      Period rollup
// @Description  Sales per calendar period, ascending
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true  "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true  "End date (YYYY-MM-DD), inclusive"
// @Param        group_by   query string false "day, week, month, quarter, year or weekday (default month)"
// @Success      200 {object} response.Response{data=[]model.PeriodRollup}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/periods [get]
func (h *AnalyticsHandler) GetPeriods(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	periods, err := h.aggregation.Periods(c.Request.Context(), r, c.Query("group_by"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, periods))
}

// @Summary      Customer metrics
// @Description  Distinct customers, mean customer value, top countries by customers and value segments. Without dates the whole ledger is used.
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string false "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string false "End date (YYYY-MM-DD), inclusive"
// @Param        limit      query int    false "Top countries (default 5, max 100)"
// @Success      200 {object} response.Response{data=model.CustomerMetrics}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/customers [get]
func (h *AnalyticsHandler) GetCustomers(c *gin.Context) {
	r, err := optionalRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, ok, err := intQuery(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		limit = service.DefaultTopCountries
	}
	metrics, err := h.segmentation.Customers(c.Request.Context(), r, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, metrics))
}

// @Summary      Top products
// @Description  Products ranked by revenue. Without dates the whole ledger is used.
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string false "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string false "End date (YYYY-MM-DD), inclusive"
// @Param        limit      query int    false "Number of products (default 10, max 100)"
// @Success      200 {object} response.Response{data=[]model.ProductRanking}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/products [get]
func (h *AnalyticsHandler) GetProducts(c *gin.Context) {
	r, err := optionalRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, ok, err := intQuery(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	if !ok {
		limit = service.DefaultTopProducts
	}
	products, err := h.products.TopProducts(c.Request.Context(), r, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}

// @Summary      Price tier rollup
// @Description  Quantity and value per price-tier category
// @Tags         Analytics
// @Produce      json
// @Param        start_date query string true "Start date (YYYY-MM-DD), inclusive"
// @Param        end_date   query string true "End date (YYYY-MM-DD), inclusive"
// @Success      200 {object} response.Response{data=[]model.PriceTierRollup}
// @Failure      400 {object} response.Response
// @Failure      503 {object} response.Response
// @Security     BearerAuth
// @Router       /api/analytics/price-tiers [get]
func (h *AnalyticsHandler) GetPriceTiers(c *gin.Context) {
	r, err := requiredRange(c, h.loc)
	if err != nil {
		writeError(c, err)
		return
	}
	tiers, err := h.aggregation.PriceTiers(c.Request.Context(), r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, tiers))
}
