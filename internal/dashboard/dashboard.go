// Package dashboard derives the filtered, sorted and aggregated views the
// client shows for a fetched list of transactions. Everything here is pure.
package dashboard

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"finance-tracker/internal/models"
)

// Sort orders supported by the dashboard.
type Sort string

const (
	SortNewest     Sort = "newest"
	SortOldest     Sort = "oldest"
	SortAmountHigh Sort = "amountHigh"
	SortAmountLow  Sort = "amountLow"
)

// All matches every kind or category.
const All = "all"

// Filter is the local UI filter state.
type Filter struct {
	Kind     string
	Category string
	Query    string
	Sort     Sort
}

// Totals aggregates a set of transactions.
type Totals struct {
	Count   int             `json:"count"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// CategoryTotal is one slice of the expense breakdown.
type CategoryTotal struct {
	Category   string          `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage decimal.Decimal `json:"percentage"`
}

// View is everything the dashboard renders for one filter state.
type View struct {
	Transactions []models.Transaction `json:"transactions"`
	Totals       Totals               `json:"totals"`
	Breakdown    []CategoryTotal      `json:"breakdown"`
	Categories   []string             `json:"categories"`
}

// Build applies f to records. records is expected in store order, which
// breaks ties for every sort. records itself is not modified.
func Build(records []models.Transaction, f Filter) View {
	filtered := Apply(records, f)
	return View{
		Transactions: filtered,
		Totals:       Summarize(filtered),
		Breakdown:    Breakdown(filtered),
		Categories:   Categories(records),
	}
}

// Apply returns the records matching f, sorted by f.Sort.
func Apply(records []models.Transaction, f Filter) []models.Transaction {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	result := make([]models.Transaction, 0, len(records))
	for _, t := range records {
		if f.Kind != "" && f.Kind != All && string(t.Kind) != f.Kind {
			continue
		}
		if f.Category != "" && f.Category != All && t.Category != f.Category {
			continue
		}
		if query != "" {
			haystack := strings.ToLower(t.Category + " " + t.Description + " " + string(t.Kind))
			if !strings.Contains(haystack, query) {
				continue
			}
		}
		result = append(result, t)
	}

	sort.SliceStable(result, less(result, f.Sort))
	return result
}

func less(list []models.Transaction, s Sort) func(i, j int) bool {
	switch s {
	case SortOldest:
		return func(i, j int) bool { return list[i].Date.Before(list[j].Date) }
	case SortAmountHigh:
		return func(i, j int) bool { return list[i].Amount.GreaterThan(list[j].Amount) }
	case SortAmountLow:
		return func(i, j int) bool { return list[i].Amount.LessThan(list[j].Amount) }
	default:
		return func(i, j int) bool { return list[i].Date.After(list[j].Date) }
	}
}

// Summarize totals records.
func Summarize(records []models.Transaction) Totals {
	totals := Totals{Count: len(records)}
	for _, t := range records {
		switch t.Kind {
		case models.KindIncome:
			totals.Income = totals.Income.Add(t.Amount)
		case models.KindExpense:
			totals.Expense = totals.Expense.Add(t.Amount)
		}
	}
	totals.Net = totals.Income.Sub(totals.Expense)
	return totals
}

// Convert returns the totals multiplied by rate, for display in another
// currency. Amounts are rounded to two decimal places.
func (t Totals) Convert(rate decimal.Decimal) Totals {
	return Totals{
		Count:   t.Count,
		Income:  t.Income.Mul(rate).Round(2),
		Expense: t.Expense.Mul(rate).Round(2),
		Net:     t.Net.Mul(rate).Round(2),
	}
}

// Breakdown sums expense amounts per category, largest first. Categories
// without expense are omitted.
func Breakdown(records []models.Transaction) []CategoryTotal {
	index := make(map[string]int)
	var items []CategoryTotal
	var total decimal.Decimal

	for _, t := range records {
		if t.Kind != models.KindExpense {
			continue
		}
		category := t.Category
		if category == "" {
			category = "Uncategorized"
		}
		i, ok := index[category]
		if !ok {
			i = len(items)
			index[category] = i
			items = append(items, CategoryTotal{Category: category})
		}
		items[i].Total = items[i].Total.Add(t.Amount)
		items[i].Count++
		total = total.Add(t.Amount)
	}

	result := make([]CategoryTotal, 0, len(items))
	hundred := decimal.NewFromInt(100)
	for _, item := range items {
		if item.Total.IsZero() {
			continue
		}
		item.Percentage = item.Total.Div(total).Mul(hundred).Round(1)
		result = append(result, item)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if c := result[i].Total.Cmp(result[j].Total); c != 0 {
			return c > 0
		}
		return result[i].Category < result[j].Category
	})
	return result
}

// Categories returns the distinct categories of records, sorted, for filter menus.
func Categories(records []models.Transaction) []string {
	seen := make(map[string]bool)
	categories := []string{}
	for _, t := range records {
		if t.Category == "" || seen[t.Category] {
			continue
		}
		seen[t.Category] = true
		categories = append(categories, t.Category)
	}
	sort.Strings(categories)
	return categories
}
