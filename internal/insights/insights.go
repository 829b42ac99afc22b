// Package insights derives read-only analyses from ledger months.
package insights

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

var hundred = decimal.NewFromInt(100)

// TagShare is the part of a month's expenses carrying one tag.
type TagShare struct {
	Tag     core.Tag   `json:"tag"`
	Amount  core.Money `json:"amount"`
	Percent float64    `json:"percent"`
}

// CategoryShare is one expense category and its weight in the month.
type CategoryShare struct {
	Name    string     `json:"category"`
	Amount  core.Money `json:"amount"`
	Percent float64    `json:"percent"`
	Entries int        `json:"entries"`
}

// MonthInsights summarizes one month.
type MonthInsights struct {
	MonthID      string          `json:"monthId"`
	UserID       string          `json:"userId"`
	Name         string          `json:"monthName"`
	Revision     int64           `json:"revision"`
	TotalIncome  core.Money      `json:"totalIncome"`
	TotalExpense core.Money      `json:"totalExpense"`
	CarryForward core.Money      `json:"carryForward"`
	SavingsRate  float64         `json:"savingsRate"`
	TagSplit     []TagShare      `json:"tagSplit"`
	Categories   []CategoryShare `json:"categories"`
	EntryCount   int             `json:"entryCount"`
}

// TrendPoint is one month on a user's timeline.
type TrendPoint struct {
	MonthID      string     `json:"monthId"`
	Name         string     `json:"monthName"`
	Year         int        `json:"year"`
	Month        int        `json:"month"`
	Income       core.Money `json:"income"`
	Expense      core.Money `json:"expense"`
	CarryForward core.Money `json:"carryForward"`
}

// Overview summarizes every month of a user.
type Overview struct {
	UserID              string       `json:"userId"`
	Months              int          `json:"months"`
	Trend               []TrendPoint `json:"trend"`
	TotalIncome         core.Money   `json:"totalIncome"`
	TotalExpense        core.Money   `json:"totalExpense"`
	TotalCarryForward   core.Money   `json:"totalCarryForward"`
	AverageCarryForward core.Money   `json:"averageCarryForward"`
	Best                *TrendPoint  `json:"best,omitempty"`
	Worst               *TrendPoint  `json:"worst,omitempty"`
}

// percent returns part/total as a percentage with two decimals; zero when
// total is not positive.
func percent(part, total core.Money) float64 {
	if !total.IsPositive() {
		return 0
	}
	return part.Decimal().Div(total.Decimal()).Mul(hundred).Round(2).InexactFloat64()
}

// ForMonth computes the insights of m.
func ForMonth(m *core.Month) *MonthInsights {
	in := &MonthInsights{
		MonthID:      m.ID,
		UserID:       m.UserID,
		Name:         m.Name,
		Revision:     m.Revision,
		TotalIncome:  m.TotalIncome,
		TotalExpense: m.TotalExpense,
		CarryForward: m.CarryForward,
		SavingsRate:  percent(m.CarryForward, m.TotalIncome),
		Categories:   []CategoryShare{},
	}

	byTag := map[core.Tag]core.Money{}
	for _, c := range m.Income {
		in.EntryCount += len(c.Entries)
	}
	for _, c := range m.Expenses {
		in.EntryCount += len(c.Entries)
		in.Categories = append(in.Categories, CategoryShare{
			Name:    c.Name,
			Amount:  c.Amount,
			Percent: percent(c.Amount, m.TotalExpense),
			Entries: len(c.Entries),
		})
		for _, e := range c.Entries {
			tag := e.Tag
			if tag == "" {
				tag = core.TagNeutral
			}
			byTag[tag] = byTag[tag].Add(e.Amount)
		}
	}

	for _, tag := range []core.Tag{core.TagNeed, core.TagWant, core.TagNeutral} {
		in.TagSplit = append(in.TagSplit, TagShare{
			Tag:     tag,
			Amount:  byTag[tag],
			Percent: percent(byTag[tag], m.TotalExpense),
		})
	}

	slices.SortStableFunc(in.Categories, func(a, b CategoryShare) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return in
}

// ForUser computes the overview of a user's months, in any order.
func ForUser(userID string, months []*core.Month) *Overview {
	sorted := slices.Clone(months)
	core.SortMonths(sorted)
	slices.Reverse(sorted)

	ov := &Overview{UserID: userID, Months: len(sorted), Trend: make([]TrendPoint, 0, len(sorted))}
	for _, m := range sorted {
		ov.Trend = append(ov.Trend, TrendPoint{
			MonthID:      m.ID,
			Name:         m.Name,
			Year:         m.Year,
			Month:        m.Month,
			Income:       m.TotalIncome,
			Expense:      m.TotalExpense,
			CarryForward: m.CarryForward,
		})
		ov.TotalIncome = ov.TotalIncome.Add(m.TotalIncome)
		ov.TotalExpense = ov.TotalExpense.Add(m.TotalExpense)
		ov.TotalCarryForward = ov.TotalCarryForward.Add(m.CarryForward)
	}
	if len(ov.Trend) == 0 {
		return ov
	}

	ov.AverageCarryForward = core.NewMoney(
		ov.TotalCarryForward.Decimal().Div(decimal.NewFromInt(int64(len(ov.Trend)))).Round(2),
	)

	// Ties go to the earlier month.
	best, worst := 0, 0
	for i, p := range ov.Trend {
		if p.CarryForward.Cmp(ov.Trend[best].CarryForward) > 0 {
			best = i
		}
		if p.CarryForward.Cmp(ov.Trend[worst].CarryForward) < 0 {
			worst = i
		}
	}
	b, w := ov.Trend[best], ov.Trend[worst]
	ov.Best, ov.Worst = &b, &w
	return ov
}
