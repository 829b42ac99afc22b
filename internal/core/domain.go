package core

import (
	"fmt"
	"strings"
	"time"
)

// Side selects the income or the expense half of a month.
type Side string

const (
	SideIncome  Side = "income"
	SideExpense Side = "expense"
)

// ParseSide validates a side name.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideIncome, SideExpense:
		return Side(s), nil
	}
	return "", ErrInvalidSide
}

// Tag classifies expense entries.
type Tag string

const (
	TagNeed    Tag = "need"
	TagWant    Tag = "want"
	TagNeutral Tag = "neutral"
)

// ParseTag validates a tag. An empty tag means neutral.
func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case "":
		return TagNeutral, nil
	case TagNeed, TagWant, TagNeutral:
		return Tag(s), nil
	}
	return "", ErrInvalidTag
}

// ID prefixes handed to the IDGenerator.
const (
	PrefixIncome   = "inc"
	PrefixExpense  = "exp"
	PrefixEntry    = "entry"
	PrefixMonth    = "mon"
	PrefixTemplate = "rec"
	PrefixUser     = "usr"
)

// IDGenerator produces unique opaque identifiers.
type IDGenerator interface {
	NewID(prefix string) string
}

// CarryForwardCategory is the income line seeded from the previous month.
const CarryForwardCategory = "Carry Forward"

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

type (
	// Entry is one transaction. Tag is only set on expense entries.
	Entry struct {
		ID     string `json:"id"`
		Amount Money  `json:"amount"`
		Note   string `json:"note"`
		Tag    Tag    `json:"tag,omitempty"`
	}

	// Category groups entries under one label. Amount and Breakdown are
	// derived from Entries by Month.Recompute.
	Category struct {
		ID        string  `json:"id"`
		Name      string  `json:"category"`
		Amount    Money   `json:"amount"`
		Breakdown string  `json:"comment"`
		Entries   []Entry `json:"entries"`
	}

	// Month is the aggregate every ledger operation loads, mutates and saves
	// as a whole. Revision increases by one on every successful save.
	Month struct {
		ID           string     `json:"id"`
		UserID       string     `json:"userId"`
		Year         int        `json:"year"`
		Month        int        `json:"month"`
		Name         string     `json:"monthName"`
		Income       []Category `json:"income"`
		Expenses     []Category `json:"expenses"`
		TotalIncome  Money      `json:"totalIncome"`
		TotalExpense Money      `json:"totalExpense"`
		CarryForward Money      `json:"carryForward"`
		Revision     int64      `json:"revision"`
		CreatedAt    time.Time  `json:"createdAt"`
		UpdatedAt    time.Time  `json:"updatedAt"`
	}

	// RecurringTemplate is copied into every month created after it.
	RecurringTemplate struct {
		ID        string    `json:"id"`
		UserID    string    `json:"userId"`
		Category  string    `json:"category"`
		Amount    Money     `json:"amount"`
		Note      string    `json:"note"`
		Tag       Tag       `json:"tag"`
		CreatedAt time.Time `json:"createdAt"`
	}

	User struct {
		ID        string    `json:"id"`
		Username  string    `json:"username"`
		Name      string    `json:"name"`
		Currency  string    `json:"currency"`
		CreatedAt time.Time `json:"createdAt"`
	}
)

// Supported display currencies.
const (
	CurrencyINR = "INR"
	CurrencyUSD = "USD"
)

// MonthName returns the display name for a zero-based month index, e.g. "March 2025".
func MonthName(index, year int) string {
	if index < 0 || index > 11 {
		return fmt.Sprintf("Month %d %d", index, year)
	}
	return fmt.Sprintf("%s %d", monthNames[index], year)
}

// Predecessor returns the calendar month before (year, index).
func Predecessor(year, index int) (int, int) {
	if index == 0 {
		return year - 1, 11
	}
	return year, index - 1
}

// ValidMonthIndex reports whether index is a zero-based calendar month.
func ValidMonthIndex(index int) bool {
	return index >= 0 && index <= 11
}

// Validate checks the caller supplied fields of a template.
func (t RecurringTemplate) Validate() error {
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if _, err := ParseTag(string(t.Tag)); err != nil {
		return err
	}
	return nil
}

// Categories returns the category list for side.
func (m *Month) Categories(side Side) []Category {
	if side == SideIncome {
		return m.Income
	}
	return m.Expenses
}

func (m *Month) categoriesPtr(side Side) *[]Category {
	if side == SideIncome {
		return &m.Income
	}
	return &m.Expenses
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (m *Month) Clone() *Month {
	c := *m
	c.Income = cloneCategories(m.Income)
	c.Expenses = cloneCategories(m.Expenses)
	return &c
}

func cloneCategories(in []Category) []Category {
	if in == nil {
		return nil
	}
	out := make([]Category, len(in))
	for i, cat := range in {
		out[i] = cat
		out[i].Entries = append([]Entry(nil), cat.Entries...)
	}
	return out
}
