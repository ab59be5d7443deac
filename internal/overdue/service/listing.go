package service

import (
	"sort"
	"strings"

	"github.com/smallbiznis/tirta/internal/overdue/domain"
)

func matches(row domain.Row, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(row.ConsumerName), term) ||
		strings.Contains(row.ConsumerID.String(), term)
}

func filterRows(rows []domain.Row, search string) []domain.Row {
	term := strings.ToLower(strings.TrimSpace(search))
	if term == "" {
		return rows
	}
	out := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		if matches(row, term) {
			out = append(out, row)
		}
	}
	return out
}

// sortRows orders rows by key and breaks every tie on consumer id ascending.
func sortRows(rows []domain.Row, key domain.Sort) {
	cmp := comparator(key)
	sort.SliceStable(rows, func(i, j int) bool {
		if c := cmp(rows[i], rows[j]); c != 0 {
			return c < 0
		}
		return rows[i].ConsumerID < rows[j].ConsumerID
	})
}

func comparator(key domain.Sort) func(a, b domain.Row) int {
	switch key {
	case domain.SortNameDesc:
		return func(a, b domain.Row) int { return -compareNames(a, b) }
	case domain.SortOverdue:
		return func(a, b domain.Row) int { return compareInts(a.OverdueCount, b.OverdueCount) }
	case domain.SortOverdueDesc:
		return func(a, b domain.Row) int { return -compareInts(a.OverdueCount, b.OverdueCount) }
	case domain.SortAmount:
		return func(a, b domain.Row) int { return a.TotalUnpaidAmount.Cmp(b.TotalUnpaidAmount) }
	case domain.SortAmountDesc:
		return func(a, b domain.Row) int { return -a.TotalUnpaidAmount.Cmp(b.TotalUnpaidAmount) }
	case domain.SortDate:
		return func(a, b domain.Row) int { return a.LatestDueDate.Compare(b.LatestDueDate) }
	case domain.SortDateDesc:
		return func(a, b domain.Row) int { return -a.LatestDueDate.Compare(b.LatestDueDate) }
	default:
		return compareNames
	}
}

func compareNames(a, b domain.Row) int {
	return strings.Compare(strings.ToLower(a.ConsumerName), strings.ToLower(b.ConsumerName))
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
