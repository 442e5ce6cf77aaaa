package model

import "time"

// DateRange is a closed interval of calendar days. Start and End are midnight in the
// engine's time zone.
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Summary aggregates every transaction in a range
type Summary struct {
	TotalTransactions int64   `json:"total_transactions"`
	TotalValue        float64 `json:"total_value"`
	UniqueCustomers   int64   `json:"unique_customers"`
	TotalQuantity     int64   `json:"total_quantity"`
	AverageUnitPrice  float64 `json:"average_unit_price"`
	UniqueCountries   int64   `json:"unique_countries"`
	UniqueCategories  int64   `json:"unique_categories"`
}

// CategoryRollup is one category's totals within a range
type CategoryRollup struct {
	Category      string  `json:"category"`
	TotalSales    int64   `json:"total_sales"` // number of lines
	TotalValue    float64 `json:"total_value"`
	TotalQuantity int64   `json:"total_quantity"`
	TicketAvg     float64 `json:"ticket_avg"`
}

// CountryRollup is one country's totals within a range
type CountryRollup struct {
	Country         string  `json:"country"`
	TotalSales      int64   `json:"total_sales"`
	TotalValue      float64 `json:"total_value"`
	TotalQuantity   int64   `json:"total_quantity"`
	UniqueCustomers int64   `json:"unique_customers"`
	TicketAvg       float64 `json:"ticket_avg"`
}

// Overview bundles the range summary with both rollups.
type Overview struct {
	Range      DateRange        `json:"range"`
	Summary    Summary          `json:"summary"`
	Categories []CategoryRollup `json:"categories"`
	Countries  []CountryRollup  `json:"countries"`
}

// SalesOverview carries the headline sales figures of a range.
type SalesOverview struct {
	TotalSales        float64   `json:"total_sales"`
	AverageTicket     float64   `json:"average_ticket"`
	TotalCustomers    int64     `json:"total_customers"`
	TotalTransactions int64     `json:"total_transactions"` // distinct invoices
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
}

// Trend tags
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// DailyBucket is one calendar day of the temporal series
type DailyBucket struct {
	Date             time.Time `json:"date"`
	TotalSales       float64   `json:"total_sales"`
	TransactionCount int64     `json:"transaction_count"`
	UniqueCustomers  int64     `json:"unique_customers"`
	MovingAverage    float64   `json:"moving_average"`
	Trend            string    `json:"trend"`
	GrowthRate       float64   `json:"growth_rate"`
}

// TemporalSeries is the ordered output of the temporal engine.
type TemporalSeries struct {
	Range    DateRange     `json:"range"`
	Window   int           `json:"window"`
	FillGaps bool          `json:"fill_gaps"`
	Buckets  []DailyBucket `json:"buckets"`
}

// PeriodRollup is one period of a calendar rollup (month, week, weekday, ...)
type PeriodRollup struct {
	Period           string  `json:"period"`
	TotalSales       float64 `json:"total_sales"`
	TransactionCount int64   `json:"transaction_count"`
	TicketAvg        float64 `json:"ticket_avg"`
}

// Segment names
const (
	SegmentLow    = "low"
	SegmentMedium = "medium"
	SegmentHigh   = "high"
)

// CustomerSegment is one value tier
type CustomerSegment struct {
	SegmentName   string  `json:"segment_name"`
	CustomerCount int64   `json:"customer_count"`
	AverageValue  float64 `json:"average_value"`
}

// CountryMetric ranks a country by its distinct customers
type CountryMetric struct {
	Country       string  `json:"country"`
	CustomerCount int64   `json:"customer_count"`
	AverageSpend  float64 `json:"average_spend"`
}

// CustomerMetrics is the customer-segmentation answer.
type CustomerMetrics struct {
	TotalUniqueCustomers int64                      `json:"total_unique_customers"`
	AverageCustomerValue float64                    `json:"average_customer_value"`
	TopCountries         []CountryMetric            `json:"top_countries"`
	CustomerSegments     map[string]CustomerSegment `json:"customer_segments"`
}

// ProductRanking is one product of the top-products list
type ProductRanking struct {
	ProductCode   string  `json:"product_code"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	PriceCategory string  `json:"price_category"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalRevenue  float64 `json:"total_revenue"`
}

// PriceTierRollup aggregates lines by price-tier category
type PriceTierRollup struct {
	PriceCategory string  `json:"price_category"`
	TotalSales    int64   `json:"total_sales"`
	TotalQuantity int64   `json:"total_quantity"`
	TotalValue    float64 `json:"total_value"`
}

// HealthStatus reports API liveness and store reachability
type HealthStatus struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	DatabaseConnected bool      `json:"database_connected"`
	Version           string    `json:"version"`
}
