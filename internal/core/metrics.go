// Package core holds the ledger domain model and the derived-metrics engine.
//
// Everything in this file is a pure function over an expense slice, lookup
// callbacks, and an explicit clock value. Nothing here caches or mutates
// state, so every figure is re-derivable from the ledger at any moment.
package core

import (
	"math"
	"sort"
	"time"
)

const (
	msPerDay = 86_400_000

	// SeriesDays is the length of the trailing per-day spending series.
	SeriesDays = 30
)

type (
	// ItemLookup resolves an item id against the ledger.
	ItemLookup func(id int) (Item, bool)

	// VendorLookup resolves a vendor id against the ledger.
	VendorLookup func(id int) (Vendor, bool)

	// Filter selects the expenses an aggregate runs over.
	Filter func(Expense) bool

	// ItemTally is an item with its summed purchased quantity.
	ItemTally struct {
		Item     Item
		Quantity int
	}

	// VendorTally is a vendor name with its expense count.
	VendorTally struct {
		Name  string
		Count int
	}

	// DayTally is a day (floored to local midnight, epoch ms) with the
	// amount spent on it.
	DayTally struct {
		Day    int64
		Amount float64
	}

	// DayGroup is a day's expenses, used by the history view.
	DayGroup struct {
		Day      int64
		Expenses []Expense
	}
)

// All keeps every expense.
func All(Expense) bool { return true }

// CurrentMonth keeps expenses on or after the first millisecond of the
// calendar month containing now, in now's location.
func CurrentMonth(now time.Time) Filter {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).UnixMilli()
	return func(e Expense) bool { return e.Time >= start }
}

// FloorDay rounds an epoch-millisecond timestamp down to local midnight.
func FloorDay(ts int64) int64 {
	t := time.UnixMilli(ts).Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).UnixMilli()
}

// DaysInMonth returns the number of days in the month containing now.
func DaysInMonth(now time.Time) int {
	return time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location()).Day()
}

// ExpenseTotal returns the pre-tax total of a single expense: the stored
// value in explicit mode, the sum of price*quantity in itemized mode.
// Items missing from the lookup contribute nothing.
func ExpenseTotal(e Expense, items ItemLookup) float64 {
	if !e.Itemized() {
		return *e.Total
	}
	var sum float64
	for i, id := range e.ItemIDs {
		if i >= len(e.ItemQuantities) {
			break
		}
		if it, ok := items(id); ok {
			sum += it.Price * float64(e.ItemQuantities[i])
		}
	}
	return sum
}

// AmountPaid is the expense total plus its tax.
func AmountPaid(e Expense, items ItemLookup) float64 {
	return ExpenseTotal(e, items) + e.Tax
}

// TotalSpent sums AmountPaid over the kept expenses.
func TotalSpent(expenses []Expense, items ItemLookup, keep Filter) float64 {
	var sum float64
	for _, e := range expenses {
		if keep(e) {
			sum += AmountPaid(e, items)
		}
	}
	return sum
}

// TopItem returns the item with the highest summed quantity across the kept
// expenses. Ties break toward the first item encountered. The second return
// is false when the kept set has no items.
func TopItem(expenses []Expense, items ItemLookup, keep Filter) (ItemTally, bool) {
	var order []int
	counts := make(map[int]int)
	for _, e := range expenses {
		if !keep(e) {
			continue
		}
		for i, id := range e.ItemIDs {
			if i >= len(e.ItemQuantities) {
				break
			}
			if _, seen := counts[id]; !seen {
				order = append(order, id)
			}
			counts[id] += e.ItemQuantities[i]
		}
	}
	var best ItemTally
	found := false
	for _, id := range order {
		if counts[id] <= best.Quantity {
			continue
		}
		it, ok := items(id)
		if !ok {
			continue
		}
		best = ItemTally{Item: it, Quantity: counts[id]}
		found = true
	}
	return best, found
}

// TopVendor returns the vendor name appearing on the most kept expenses.
// Ties break toward the first vendor encountered.
func TopVendor(expenses []Expense, vendors VendorLookup, keep Filter) (VendorTally, bool) {
	var order []string
	counts := make(map[string]int)
	for _, e := range expenses {
		if !keep(e) {
			continue
		}
		v, ok := vendors(e.VendorID)
		if !ok {
			continue
		}
		if _, seen := counts[v.Name]; !seen {
			order = append(order, v.Name)
		}
		counts[v.Name]++
	}
	var best VendorTally
	found := false
	for _, name := range order {
		if counts[name] > best.Count {
			best = VendorTally{Name: name, Count: counts[name]}
			found = true
		}
	}
	return best, found
}

// TopDay returns the single day with the highest spend among the kept
// expenses. Days whose spend totals zero never win, matching the dashboard's
// "no purchases yet" display.
func TopDay(expenses []Expense, items ItemLookup, keep Filter) (DayTally, bool) {
	order, totals := dayTotals(expenses, items, keep)
	var best DayTally
	found := false
	for _, day := range order {
		if totals[day] > best.Amount {
			best = DayTally{Day: day, Amount: totals[day]}
			found = true
		}
	}
	return best, found
}

// AverageDailySpend divides this month's spend by the number of days in the
// month, regardless of how many days actually saw purchases. The second
// return is false when the month has no expenses at all.
func AverageDailySpend(expenses []Expense, items ItemLookup, now time.Time) (float64, bool) {
	order, totals := dayTotals(expenses, items, CurrentMonth(now))
	if len(order) == 0 {
		return 0, false
	}
	var sum float64
	for _, day := range order {
		sum += totals[day]
	}
	return sum / float64(DaysInMonth(now)), true
}

// DailySeries returns the spend for each of the trailing SeriesDays days:
// index 0 is SeriesDays-1 days ago, the last index is today. Days with no
// expenses hold zero.
func DailySeries(expenses []Expense, items ItemLookup, now time.Time) []float64 {
	out := make([]float64, SeriesDays)
	today := FloorDay(now.UnixMilli())
	for _, e := range expenses {
		// Rounding absorbs DST-shortened and -lengthened days.
		back := int(math.Round(float64(today-FloorDay(e.Time)) / msPerDay))
		if back < 0 || back >= SeriesDays {
			continue
		}
		out[SeriesDays-1-back] += AmountPaid(e, items)
	}
	return out
}

// RemainingBudget is the monthly budget minus this month's spend, clamped
// at zero.
func RemainingBudget(expenses []Expense, items ItemLookup, budget float64, now time.Time) float64 {
	return math.Max(0, budget-TotalSpent(expenses, items, CurrentMonth(now)))
}

// RecentExpenses returns up to n expenses, newest first. The input is not
// modified.
func RecentExpenses(expenses []Expense, n int) []Expense {
	sorted := append([]Expense(nil), expenses...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time > sorted[j].Time })
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// GroupByDay returns all expenses grouped by their local calendar day,
// newest day first, newest expense first within a day.
func GroupByDay(expenses []Expense) []DayGroup {
	sorted := RecentExpenses(expenses, -1)
	var groups []DayGroup
	for _, e := range sorted {
		day := FloorDay(e.Time)
		if len(groups) == 0 || groups[len(groups)-1].Day != day {
			groups = append(groups, DayGroup{Day: day})
		}
		last := len(groups) - 1
		groups[last].Expenses = append(groups[last].Expenses, e)
	}
	return groups
}

func dayTotals(expenses []Expense, items ItemLookup, keep Filter) ([]int64, map[int64]float64) {
	var order []int64
	totals := make(map[int64]float64)
	for _, e := range expenses {
		if !keep(e) {
			continue
		}
		day := FloorDay(e.Time)
		if _, seen := totals[day]; !seen {
			order = append(order, day)
		}
		totals[day] += AmountPaid(e, items)
	}
	return order, totals
}
