package core

import (
	"sort"
	"time"
)

// NewMonth builds the initial record for (userID, year, index).
//
// A predecessor with a positive carry forward seeds one "Carry Forward"
// income line; zero or negative balances add nothing. Every template
// becomes an expense category with a single entry copied from it, in
// newest-first order. The returned month is already recomputed.
func NewMonth(userID string, year, index int, predecessor *Month, templates []RecurringTemplate, ids IDGenerator, now time.Time) (*Month, error) {
	if !ValidMonthIndex(index) {
		return nil, ErrInvalidMonth
	}

	m := &Month{
		ID:        ids.NewID(PrefixMonth),
		UserID:    userID,
		Year:      year,
		Month:     index,
		Name:      MonthName(index, year),
		Income:    []Category{},
		Expenses:  []Category{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if predecessor != nil && predecessor.CarryForward.IsPositive() {
		m.Income = append(m.Income, Category{
			ID:   ids.NewID(PrefixIncome),
			Name: CarryForwardCategory,
			Entries: []Entry{{
				ID:     ids.NewID(PrefixEntry),
				Amount: predecessor.CarryForward,
				Note:   "From " + MonthName(predecessor.Month, predecessor.Year),
			}},
		})
	}

	ordered := append([]RecurringTemplate(nil), templates...)
	SortTemplates(ordered)
	byName := make(map[string]int, len(ordered))
	for _, t := range ordered {
		entry := Entry{
			ID:     ids.NewID(PrefixEntry),
			Amount: t.Amount,
			Note:   t.Note,
			Tag:    entryTag(SideExpense, t.Tag),
		}
		// Two templates sharing a label end up as two entries of one category.
		if i, ok := byName[t.Category]; ok {
			m.Expenses[i].Entries = append(m.Expenses[i].Entries, entry)
			continue
		}
		byName[t.Category] = len(m.Expenses)
		m.Expenses = append(m.Expenses, Category{
			ID:      ids.NewID(PrefixExpense),
			Name:    t.Category,
			Entries: []Entry{entry},
		})
	}

	m.Recompute()
	return m, nil
}

// SortTemplates orders templates newest first, ties broken by id.
func SortTemplates(ts []RecurringTemplate) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.After(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}

// SortMonths orders months by year then month index, both descending.
func SortMonths(ms []*Month) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Year != ms[j].Year {
			return ms[i].Year > ms[j].Year
		}
		return ms[i].Month > ms[j].Month
	})
}
