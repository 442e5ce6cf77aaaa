package analytics

import (
	"sort"

	"retailsense/internal/model"

	"github.com/shopspring/decimal"
)

// TopProducts ranks products by revenue, descending, ties in first-seen order.
// Description and categories come from the first line seen for the product code.
func TopProducts(txs []model.Transaction, limit int) []model.ProductRanking {
	type product struct {
		first    model.Transaction
		quantity int64
		revenue  decimal.Decimal
	}
	index := make(map[string]*product)
	var order []*product
	for _, t := range txs {
		p, ok := index[t.ProductCode]
		if !ok {
			p = &product{first: t, revenue: decimal.Zero}
			index[t.ProductCode] = p
			order = append(order, p)
		}
		p.quantity += t.Quantity
		p.revenue = p.revenue.Add(t.TotalValue)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].revenue.GreaterThan(order[j].revenue)
	})
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	out := make([]model.ProductRanking, 0, len(order))
	for _, p := range order {
		out = append(out, model.ProductRanking{
			ProductCode:   p.first.ProductCode,
			Description:   p.first.Description,
			Category:      p.first.Category,
			PriceCategory: p.first.PriceCategory,
			TotalQuantity: p.quantity,
			TotalRevenue:  money(p.revenue),
		})
	}
	return out
}
