package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	KindExpenseCommitted = "expense.committed"
	KindExpenseRemoved   = "expense.removed"
)

// ExpenseEvent is published whenever an expense is committed to or removed
// from the ledger. It carries denormalized fields so consumers never need
// to read the ledger.
type ExpenseEvent struct {
	EventID   string    `json:"eventId"`
	Kind      string    `json:"kind"`
	ExpenseID int       `json:"expenseId"`
	Vendor    string    `json:"vendor"`
	Total     float64   `json:"total"` // tax included, USD
	Tax       float64   `json:"tax"`
	Time      int64     `json:"time"` // expense timestamp, epoch milliseconds
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseEvent(kind string, expenseID int, vendor string, total, tax float64, expenseTime int64) *ExpenseEvent {
	return &ExpenseEvent{
		EventID:   uuid.NewString(),
		Kind:      kind,
		ExpenseID: expenseID,
		Vendor:    vendor,
		Total:     total,
		Tax:       tax,
		Time:      expenseTime,
		Timestamp: time.Now(),
	}
}

func (m *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var msg ExpenseEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
