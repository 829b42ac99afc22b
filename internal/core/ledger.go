package core

import (
	"fmt"
	"strings"
)

const noNote = "No note"

// Recompute re-derives every category amount and breakdown, then the month
// totals and the signed carry forward. It only reads entries, so calling it
// again on an unchanged month yields the same result.
func (m *Month) Recompute() {
	if m.Income == nil {
		m.Income = []Category{}
	}
	if m.Expenses == nil {
		m.Expenses = []Category{}
	}
	m.TotalIncome = recomputeSide(m.Income)
	m.TotalExpense = recomputeSide(m.Expenses)
	m.CarryForward = m.TotalIncome.Sub(m.TotalExpense)
}

func recomputeSide(categories []Category) Money {
	total := Money{}
	for i := range categories {
		cat := &categories[i]
		sum := Money{}
		for _, e := range cat.Entries {
			sum = sum.Add(e.Amount)
		}
		cat.Amount = sum
		cat.Breakdown = Breakdown(cat.Entries)
		total = total.Add(sum)
	}
	return total
}

// Breakdown renders entries as "amount(note)" joined by "+", e.g.
// "50000(pay)+5000(bonus)". Blank notes render as "No note".
func Breakdown(entries []Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		note := e.Note
		if note == "" {
			note = noNote
		}
		parts = append(parts, e.Amount.String()+"("+note+")")
	}
	return strings.Join(parts, "+")
}

// CheckInvariants verifies that derived fields agree with the entries and
// that no category is empty or duplicated.
func (m *Month) CheckInvariants() error {
	if !ValidMonthIndex(m.Month) {
		return fmt.Errorf("month %s: %w", m.ID, ErrInvalidMonth)
	}
	totals := map[Side]Money{}
	for _, side := range []Side{SideIncome, SideExpense} {
		seen := make(map[string]struct{})
		total := Money{}
		for _, cat := range m.Categories(side) {
			if len(cat.Entries) == 0 {
				return fmt.Errorf("month %s: %s category %q has no entries", m.ID, side, cat.Name)
			}
			if _, dup := seen[cat.Name]; dup {
				return fmt.Errorf("month %s: duplicate %s category %q", m.ID, side, cat.Name)
			}
			seen[cat.Name] = struct{}{}
			sum := Money{}
			for _, e := range cat.Entries {
				if e.Amount.IsNegative() {
					return fmt.Errorf("month %s: entry %s has negative amount", m.ID, e.ID)
				}
				sum = sum.Add(e.Amount)
			}
			if !sum.Equal(cat.Amount) {
				return fmt.Errorf("month %s: category %q amount %s != entries sum %s", m.ID, cat.Name, cat.Amount, sum)
			}
			if cat.Breakdown != Breakdown(cat.Entries) {
				return fmt.Errorf("month %s: category %q breakdown is stale", m.ID, cat.Name)
			}
			total = total.Add(sum)
		}
		totals[side] = total
	}
	if !totals[SideIncome].Equal(m.TotalIncome) {
		return fmt.Errorf("month %s: total income %s != %s", m.ID, m.TotalIncome, totals[SideIncome])
	}
	if !totals[SideExpense].Equal(m.TotalExpense) {
		return fmt.Errorf("month %s: total expense %s != %s", m.ID, m.TotalExpense, totals[SideExpense])
	}
	if !m.TotalIncome.Sub(m.TotalExpense).Equal(m.CarryForward) {
		return fmt.Errorf("month %s: carry forward %s != income - expense", m.ID, m.CarryForward)
	}
	return nil
}

func categoryPrefix(side Side) string {
	if side == SideIncome {
		return PrefixIncome
	}
	return PrefixExpense
}

// entryTag normalizes the tag for side: income entries carry none, expense
// entries default to neutral.
func entryTag(side Side, tag Tag) Tag {
	if side == SideIncome {
		return ""
	}
	if tag == "" {
		return TagNeutral
	}
	return tag
}

// AddEntry appends a new entry to the category named name on side, creating
// the category when no exact (case sensitive) match exists.
func (m *Month) AddEntry(side Side, name string, amount Money, note string, tag Tag, ids IDGenerator) (Entry, error) {
	if _, err := ParseSide(string(side)); err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ID:     ids.NewID(PrefixEntry),
		Amount: amount,
		Note:   note,
		Tag:    entryTag(side, tag),
	}

	cats := m.categoriesPtr(side)
	idx := -1
	for i, cat := range *cats {
		if cat.Name == name {
			idx = i
			break
		}
	}
	if idx == -1 {
		*cats = append(*cats, Category{
			ID:   ids.NewID(categoryPrefix(side)),
			Name: name,
		})
		idx = len(*cats) - 1
	}
	(*cats)[idx].Entries = append((*cats)[idx].Entries, entry)

	m.Recompute()
	return entry, nil
}

// findEntry locates entryID on side by scanning every category.
func (m *Month) findEntry(side Side, entryID string) (catIdx, entryIdx int, ok bool) {
	for ci, cat := range m.Categories(side) {
		for ei, e := range cat.Entries {
			if e.ID == entryID {
				return ci, ei, true
			}
		}
	}
	return 0, 0, false
}

// UpdateEntry replaces amount, note and tag of an existing entry.
func (m *Month) UpdateEntry(side Side, entryID string, amount Money, note string, tag Tag) error {
	if _, err := ParseSide(string(side)); err != nil {
		return err
	}
	ci, ei, ok := m.findEntry(side, entryID)
	if !ok {
		return Errorf(KindEntryNotFound, "%s entry %s not found in month %s", side, entryID, m.ID)
	}
	e := &(*m.categoriesPtr(side))[ci].Entries[ei]
	e.Amount = amount
	e.Note = note
	e.Tag = entryTag(side, tag)

	m.Recompute()
	return nil
}

// DeleteEntry removes an entry, and its category once the category is empty.
func (m *Month) DeleteEntry(side Side, entryID string) error {
	if _, err := ParseSide(string(side)); err != nil {
		return err
	}
	ci, ei, ok := m.findEntry(side, entryID)
	if !ok {
		return Errorf(KindEntryNotFound, "%s entry %s not found in month %s", side, entryID, m.ID)
	}
	cats := m.categoriesPtr(side)
	cat := &(*cats)[ci]
	cat.Entries = append(cat.Entries[:ei:ei], cat.Entries[ei+1:]...)
	if len(cat.Entries) == 0 {
		*cats = append((*cats)[:ci:ci], (*cats)[ci+1:]...)
	}

	m.Recompute()
	return nil
}

// DeleteCategory drops the category and all its entries. Unknown ids are a no-op.
func (m *Month) DeleteCategory(side Side, categoryID string) error {
	if _, err := ParseSide(string(side)); err != nil {
		return err
	}
	cats := m.categoriesPtr(side)
	kept := make([]Category, 0, len(*cats))
	for _, cat := range *cats {
		if cat.ID != categoryID {
			kept = append(kept, cat)
		}
	}
	*cats = kept

	m.Recompute()
	return nil
}
