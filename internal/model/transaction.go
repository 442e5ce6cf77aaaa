package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one invoice line of the ledger. Rows are immutable once imported.
// Year, Month, Day and Weekday are denormalized copies of InvoiceDate kept for the
// dashboard's ad-hoc SQL; analytics never read them.
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceNo     string          `gorm:"type:varchar(20);not null;index" json:"invoice_no"`
	ProductCode   string          `gorm:"type:varchar(20);not null;index" json:"product_code"`
	Description   string          `gorm:"type:text" json:"description"`
	Category      string          `gorm:"type:varchar(100);index" json:"category"`
	PriceCategory string          `gorm:"type:varchar(50)" json:"price_category"`
	Quantity      int64           `gorm:"not null" json:"quantity"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	TotalValue    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_value"` // stored independently of Quantity*UnitPrice
	CustomerID    *string         `gorm:"type:varchar(20);index" json:"customer_id"`      // nil when the buyer is unknown
	Country       string          `gorm:"type:varchar(100);index" json:"country"`
	InvoiceDate   time.Time       `gorm:"not null;index" json:"invoice_date"`
	SingleInvoice bool            `gorm:"not null;default:false" json:"single_invoice"`
	Year          int             `json:"year"`
	Month         int             `json:"month"`
	Day           int             `json:"day"`
	Weekday       int             `json:"weekday"` // 0 = Monday
	CreatedAt     time.Time       `json:"created_at"`
}

// TableName keeps the ledger table name used by the dashboard.
func (Transaction) TableName() string {
	return "transactions_main"
}

// HasCustomer reports whether the line carries a known customer id.
func (t Transaction) HasCustomer() bool {
	return t.CustomerID != nil && *t.CustomerID != ""
}

// Customer returns the customer id or "" when unknown.
func (t Transaction) Customer() string {
	if t.CustomerID == nil {
		return ""
	}
	return *t.CustomerID
}

// WithDerivedDate recomputes Year, Month, Day and Weekday from InvoiceDate in loc.
func (t Transaction) WithDerivedDate(loc *time.Location) Transaction {
	if loc == nil {
		loc = time.UTC
	}
	d := t.InvoiceDate.In(loc)
	t.Year = d.Year()
	t.Month = int(d.Month())
	t.Day = d.Day()
	t.Weekday = (int(d.Weekday()) + 6) % 7
	return t
}
