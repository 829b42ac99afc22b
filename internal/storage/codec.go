package storage

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// EncodeMonth serializes the month document stored by the SQL backends.
func EncodeMonth(m *core.Month) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode month %s: %w", m.ID, err)
	}
	return data, nil
}

// DecodeMonth restores a month document. The revision column is
// authoritative over the one embedded in the document.
func DecodeMonth(data []byte, revision int64) (*core.Month, error) {
	var m core.Month
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode month: %w", err)
	}
	m.Revision = revision
	if m.Income == nil {
		m.Income = []core.Category{}
	}
	if m.Expenses == nil {
		m.Expenses = []core.Category{}
	}
	return &m, nil
}

// ParseAmountColumn reads an amount persisted as decimal text.
func ParseAmountColumn(s string) (core.Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return core.NewMoney(d), nil
}
