package analytics

import (
	"sort"

	"retailsense/internal/model"

	"github.com/shopspring/decimal"
)

// Summarize computes the range summary. An empty slice yields the zero Summary.
func Summarize(txs []model.Transaction) model.Summary {
	var (
		total      = decimal.Zero
		unitPrices = decimal.Zero
		quantity   int64
		customers  = make(map[string]struct{})
		countries  = make(map[string]struct{})
		categories = make(map[string]struct{})
	)

	for _, t := range txs {
		total = total.Add(t.TotalValue)
		unitPrices = unitPrices.Add(t.UnitPrice)
		quantity += t.Quantity
		if t.HasCustomer() {
			customers[t.Customer()] = struct{}{}
		}
		countries[t.Country] = struct{}{}
		categories[t.Category] = struct{}{}
	}

	n := int64(len(txs))
	return model.Summary{
		TotalTransactions: n,
		TotalValue:        money(total),
		UniqueCustomers:   int64(len(customers)),
		TotalQuantity:     quantity,
		AverageUnitPrice:  money(SafeRatioCount(unitPrices, n)),
		UniqueCountries:   int64(len(countries)),
		UniqueCategories:  int64(len(categories)),
	}
}

// group is the running total of one rollup key.
type group struct {
	key       string
	lines     int64
	value     decimal.Decimal
	quantity  int64
	customers map[string]struct{}
}

// groupBy accumulates lines per key, remembering first-seen order.
func groupBy(txs []model.Transaction, keyOf func(model.Transaction) string) []*group {
	index := make(map[string]*group)
	var order []*group
	for _, t := range txs {
		k := keyOf(t)
		g, ok := index[k]
		if !ok {
			g = &group{key: k, value: decimal.Zero, customers: make(map[string]struct{})}
			index[k] = g
			order = append(order, g)
		}
		g.lines++
		g.value = g.value.Add(t.TotalValue)
		g.quantity += t.Quantity
		if t.HasCustomer() {
			g.customers[t.Customer()] = struct{}{}
		}
	}
	return order
}

func byKey(groups []*group) []*group {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].key < groups[j].key
	})
	return groups
}

// RollupByCategory returns one entry per category present, sorted by category name.
func RollupByCategory(txs []model.Transaction) []model.CategoryRollup {
	groups := byKey(groupBy(txs, func(t model.Transaction) string { return t.Category }))
	out := make([]model.CategoryRollup, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.CategoryRollup{
			Category:      g.key,
			TotalSales:    g.lines,
			TotalValue:    money(g.value),
			TotalQuantity: g.quantity,
			TicketAvg:     money(SafeRatioCount(g.value, g.lines)),
		})
	}
	return out
}

// RollupByCountry returns one entry per country present, sorted by country name.
func RollupByCountry(txs []model.Transaction) []model.CountryRollup {
	groups := byKey(groupBy(txs, func(t model.Transaction) string { return t.Country }))
	out := make([]model.CountryRollup, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.CountryRollup{
			Country:         g.key,
			TotalSales:      g.lines,
			TotalValue:      money(g.value),
			TotalQuantity:   g.quantity,
			UniqueCustomers: int64(len(g.customers)),
			TicketAvg:       money(SafeRatioCount(g.value, g.lines)),
		})
	}
	return out
}

// RollupByPriceTier groups lines by their price-tier category.
func RollupByPriceTier(txs []model.Transaction) []model.PriceTierRollup {
	groups := byKey(groupBy(txs, func(t model.Transaction) string { return t.PriceCategory }))
	out := make([]model.PriceTierRollup, 0, len(groups))
	for _, g := range groups {
		out = append(out, model.PriceTierRollup{
			PriceCategory: g.key,
			TotalSales:    g.lines,
			TotalQuantity: g.quantity,
			TotalValue:    money(g.value),
		})
	}
	return out
}

// Overview returns the sales headline of a range. Period bounds fall back to the
// requested range when no line matched.
func Overview(txs []model.Transaction, r model.DateRange) model.SalesOverview {
	out := model.SalesOverview{PeriodStart: r.Start, PeriodEnd: r.End}
	if len(txs) == 0 {
		return out
	}

	total := decimal.Zero
	customers := make(map[string]struct{})
	invoices := make(map[string]struct{})
	first, last := txs[0].InvoiceDate, txs[0].InvoiceDate
	for _, t := range txs {
		total = total.Add(t.TotalValue)
		if t.HasCustomer() {
			customers[t.Customer()] = struct{}{}
		}
		invoices[t.InvoiceNo] = struct{}{}
		if t.InvoiceDate.Before(first) {
			first = t.InvoiceDate
		}
		if t.InvoiceDate.After(last) {
			last = t.InvoiceDate
		}
	}

	out.TotalSales = money(total)
	out.AverageTicket = money(SafeRatioCount(total, int64(len(txs))))
	out.TotalCustomers = int64(len(customers))
	out.TotalTransactions = int64(len(invoices))
	out.PeriodStart = first
	out.PeriodEnd = last
	return out
}
