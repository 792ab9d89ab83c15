package http

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"financeflow/internal/core"
	applog "financeflow/internal/log"
)

type itemTallyJSON struct {
	Item     core.Item `json:"item"`
	Quantity int       `json:"quantity"`
}

type vendorTallyJSON struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type dayTallyJSON struct {
	Day    int64   `json:"day"`
	Amount float64 `json:"amount"`
}

type dashboardResponse struct {
	MonthTotal       float64          `json:"monthTotal"`
	RemainingBudget  float64          `json:"remainingBudget"`
	Budget           float64          `json:"budget"`
	AverageDaily     *float64         `json:"averageDaily"`
	TopItem          *itemTallyJSON   `json:"topItem"`
	TopVendor        *vendorTallyJSON `json:"topVendor"`
	TopDay           *dayTallyJSON    `json:"topDay"`
	DailySeries      []float64        `json:"dailySeries"`
	AllTimeTotal     float64          `json:"allTimeTotal"`
	Recent           []core.Expense   `json:"recent"`
	Currency         string           `json:"currency"`
	MonthTotalText   string           `json:"monthTotalText,omitempty"`
	RemainingText    string           `json:"remainingText,omitempty"`
	AllTimeTotalText string           `json:"allTimeTotalText,omitempty"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	store := s.tracker.Ledger()
	expenses := store.Expenses()
	items := store.ItemLookup()
	vendors := store.VendorLookup()
	settings := store.Settings()
	now := time.Now()
	thisMonth := core.CurrentMonth(now)

	resp := dashboardResponse{
		MonthTotal:      core.TotalSpent(expenses, items, thisMonth),
		RemainingBudget: core.RemainingBudget(expenses, items, settings.Budget, now),
		Budget:          settings.Budget,
		DailySeries:     core.DailySeries(expenses, items, now),
		AllTimeTotal:    core.TotalSpent(expenses, items, core.All),
		Recent:          core.RecentExpenses(expenses, 5),
		Currency:        settings.CurrencyType,
	}

	if avg, ok := core.AverageDailySpend(expenses, items, now); ok {
		resp.AverageDaily = &avg
	}
	if top, ok := core.TopItem(expenses, items, thisMonth); ok {
		resp.TopItem = &itemTallyJSON{Item: top.Item, Quantity: top.Quantity}
	}
	if top, ok := core.TopVendor(expenses, vendors, thisMonth); ok {
		resp.TopVendor = &vendorTallyJSON{Name: top.Name, Count: top.Count}
	}
	if top, ok := core.TopDay(expenses, items, thisMonth); ok {
		resp.TopDay = &dayTallyJSON{Day: top.Day, Amount: top.Amount}
	}

	// Display strings are best-effort: a rate outage degrades to bare numbers.
	ctx := r.Context()
	if text, err := s.currency.Format(ctx, resp.MonthTotal, settings.CurrencyType); err == nil {
		resp.MonthTotalText = text
	} else {
		slog.WarnContext(ctx, "Currency formatting unavailable", applog.FieldError, err)
	}
	if text, err := s.currency.Format(ctx, resp.RemainingBudget, settings.CurrencyType); err == nil {
		resp.RemainingText = text
	}
	if text, err := s.currency.Format(ctx, resp.AllTimeTotal, settings.CurrencyType); err == nil {
		resp.AllTimeTotalText = text
	}

	writeJSON(w, http.StatusOK, resp)
}

type dayGroupJSON struct {
	Day      int64          `json:"day"`
	Total    float64        `json:"total"`
	Expenses []core.Expense `json:"expenses"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	store := s.tracker.Ledger()
	items := store.ItemLookup()

	groups := core.GroupByDay(store.Expenses())
	out := make([]dayGroupJSON, len(groups))
	for i, g := range groups {
		total := 0.0
		for _, e := range g.Expenses {
			total += core.AmountPaid(e, items)
		}
		out[i] = dayGroupJSON{Day: g.Day, Total: total, Expenses: g.Expenses}
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSearchVendors(w http.ResponseWriter, r *http.Request) {
	matches := s.tracker.Ledger().SearchVendors(r.URL.Query().Get("q"))
	if matches == nil {
		matches = []core.Vendor{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// handleSearchItems searches the draft vendor's catalog, so it only works
// once the draft has a vendor attached.
func (s *Server) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	draft := s.session.Draft()
	s.mu.Unlock()

	if draft.VendorID == nil {
		writeError(w, r.Context(), &core.ValidationError{Field: "vendor", Reason: "no vendor attached to the draft"})
		return
	}

	matches, err := s.tracker.Ledger().SearchVendorItems(*draft.VendorID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}
	if matches == nil {
		matches = []core.Item{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleRemoveExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, r.Context(), &core.ValidationError{Field: "id", Reason: "must be an integer"})
		return
	}

	if err := s.tracker.RemoveExpense(r.Context(), id); err != nil {
		writeError(w, r.Context(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Ledger().Settings())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Budget       *float64 `json:"budget"`
		CurrencyType *string  `json:"currencyType"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	if body.Budget != nil {
		if err := s.tracker.SetBudget(r.Context(), *body.Budget); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}
	if body.CurrencyType != nil {
		if err := s.tracker.SetCurrency(r.Context(), *body.CurrencyType); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.tracker.Ledger().Settings())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(r.Context()); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	s.mu.Lock()
	s.session = s.tracker.NewSession()
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	doc, err := s.tracker.Export(r.Context())
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="financeflow.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	doc, err := io.ReadAll(io.LimitReader(r.Body, 8<<20))
	if err != nil {
		writeError(w, r.Context(), &core.ValidationError{Field: "body", Reason: "could not be read"})
		return
	}

	if err := s.tracker.Import(r.Context(), doc); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	s.mu.Lock()
	s.session = s.tracker.NewSession()
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := s.currency.Currencies(r.Context())
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}
	writeJSON(w, http.StatusOK, currencies)
}
