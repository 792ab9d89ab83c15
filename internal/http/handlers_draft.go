package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"financeflow/internal/core"
	"financeflow/internal/workflow"
)

// scalarText returns the text content of a JSON scalar: quoted strings are
// unwrapped, numbers are kept verbatim, null and absent become "". Amount
// and quantity fields accept either a number or the raw text of an input
// field, validated by the workflow parsers.
func scalarText(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var unquoted string
	if json.Unmarshal(raw, &unquoted) == nil {
		return unquoted
	}
	return s
}

type draftJSON struct {
	VendorID       *int     `json:"vendorId"`
	ItemIDs        []int    `json:"itemIds"`
	ItemQuantities []int    `json:"itemQuantities"`
	PendingItemID  *int     `json:"pendingItemId"`
	Total          *float64 `json:"total"`
	Tax            *float64 `json:"tax"`
	Time           int64    `json:"time"`
}

type sessionJSON struct {
	State   string    `json:"state"`
	Editing *int      `json:"editing"`
	Draft   draftJSON `json:"draft"`
}

// sessionSnapshot must be called with s.mu held.
func (s *Server) sessionSnapshot() sessionJSON {
	d := s.session.Draft()
	out := sessionJSON{
		State: s.session.State().String(),
		Draft: draftJSON{
			VendorID:       d.VendorID,
			ItemIDs:        d.ItemIDs,
			ItemQuantities: d.ItemQuantities,
			PendingItemID:  d.Pending,
			Total:          d.Total,
			Tax:            d.Tax,
			Time:           d.Time,
		},
	}
	if out.Draft.ItemIDs == nil {
		out.Draft.ItemIDs = []int{}
	}
	if out.Draft.ItemQuantities == nil {
		out.Draft.ItemQuantities = []int{}
	}
	if id, ok := s.session.Editing(); ok {
		out.Editing = &id
	}
	return out
}

// handleStartDraft starts a fresh draft, or seeds one from an existing
// expense when the body carries an edit id.
func (s *Server) handleStartDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Edit *int `json:"edit"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if body.Edit != nil {
		if err := s.session.Edit(*body.Edit); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	} else {
		s.session.Cancel()
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.session.Cancel()
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// handleDraftVendor selects an existing vendor by id, or creates one by
// name.
func (s *Server) handleDraftVendor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID   *int    `json:"id"`
		Name *string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r.Context(), err)
		return
	}
	if (body.ID == nil) == (body.Name == nil) {
		writeError(w, r.Context(), &core.ValidationError{Field: "vendor", Reason: "provide exactly one of id or name"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if body.ID != nil {
		err = s.session.SelectVendor(*body.ID)
	} else {
		_, err = s.session.CreateVendor(*body.Name)
	}
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleDraftMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mode string `json:"mode"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch body.Mode {
	case "itemized":
		err = s.session.ChooseItemized()
	case "explicit":
		err = s.session.ChooseExplicit()
	default:
		err = &core.ValidationError{Field: "mode", Reason: "must be itemized or explicit"}
	}
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

// handleDraftItem selects an existing product by id, or creates one by
// name and price.
func (s *Server) handleDraftItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID    *int            `json:"id"`
		Name  *string         `json:"name"`
		Price json.RawMessage `json:"price"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch {
	case body.ID != nil && body.Name == nil && len(body.Price) == 0:
		err = s.session.SelectItem(*body.ID)
	case body.ID == nil && body.Name != nil && len(body.Price) > 0:
		var price float64
		price, err = workflow.ParseAmount("price", scalarText(body.Price))
		if err == nil {
			_, err = s.session.CreateItem(*body.Name, price)
		}
	default:
		err = &core.ValidationError{Field: "item", Reason: "provide either id, or name and price"}
	}
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleDraftQuantity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity json.RawMessage `json:"quantity"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r.Context(), err)
		return
	}
	quantity, err := workflow.ParseQuantity(scalarText(body.Quantity))
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.SetQuantity(quantity); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleDraftCancelQuantity(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.CancelQuantity(); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

func (s *Server) handleDraftTotal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Total json.RawMessage `json:"total"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r.Context(), err)
		return
	}
	total, err := workflow.ParseOptionalAmount("total", scalarText(body.Total))
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.session.SetExplicitTotal(total); err != nil {
		writeError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

// handleDraftTaxTime converges on tax and time entry, then applies any tax
// and timestamp fields present in the body. A JSON null tax clears it.
func (s *Server) handleDraftTaxTime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tax   json.RawMessage `json:"tax"`
		Date  *string         `json:"date"`
		Clock *string         `json:"time"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State() != workflow.TaxAndTimeEntry {
		if err := s.session.ProceedToTaxTime(); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}

	if len(body.Tax) > 0 {
		tax, err := workflow.ParseOptionalAmount("tax", scalarText(body.Tax))
		if err != nil {
			writeError(w, r.Context(), err)
			return
		}
		if err := s.session.SetTax(tax); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}

	if body.Date != nil {
		clock := ""
		if body.Clock != nil {
			clock = *body.Clock
		}
		if err := s.session.SetTimestamp(*body.Date, clock); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.sessionSnapshot())
}

// handleDraftCommit finishes tax and time entry if needed, commits the
// draft, and returns the stored expense.
func (s *Server) handleDraftCommit(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.State() == workflow.TaxAndTimeEntry {
		if err := s.session.Finish(); err != nil {
			writeError(w, r.Context(), err)
			return
		}
	}

	e, err := s.tracker.CommitSession(r.Context(), s.session)
	if err != nil {
		writeError(w, r.Context(), err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}
