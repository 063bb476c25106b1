package dashboard

import (
	"strings"

	"github.com/shopspring/decimal"

	"finance-tracker/internal/models"
)

// DayGroup groups transactions that occurred on the same day.
type DayGroup struct {
	Title string
	Date  models.Date
	Net   decimal.Decimal
	Items []models.Transaction
}

// GroupByDay splits an already sorted list into consecutive per-day groups,
// keeping the list order. Net is income minus expense for the day.
func GroupByDay(records []models.Transaction, today models.Date) []DayGroup {
	var groups []DayGroup
	for _, t := range records {
		if n := len(groups); n == 0 || !groups[n-1].Date.Equal(t.Date) {
			groups = append(groups, DayGroup{Title: groupTitle(t.Date, today), Date: t.Date})
		}
		g := &groups[len(groups)-1]
		g.Items = append(g.Items, t)
		if t.Kind == models.KindIncome {
			g.Net = g.Net.Add(t.Amount)
		} else {
			g.Net = g.Net.Sub(t.Amount)
		}
	}
	return groups
}

func groupTitle(date, today models.Date) string {
	if date.Equal(today) {
		return "TODAY"
	}
	if date.Equal(models.DateOf(today.Time().AddDate(0, 0, -1))) {
		return "YESTERDAY"
	}
	return strings.ToUpper(date.Time().Format("Mon, 02 Jan '06"))
}
