package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aqlanhadi/kisht/extractor/common"
	"github.com/aqlanhadi/kisht/ledger"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type customerView struct {
	ledger.Customer
	Remaining decimal.Decimal `json:"remaining"`
	Progress  float64         `json:"progress"`
	Complete  bool            `json:"complete"`
}

func viewOf(c ledger.Customer) customerView {
	return customerView{Customer: c, Remaining: c.Remaining(), Progress: c.Progress(), Complete: c.IsComplete()}
}

type customerRequest struct {
	AccountNumber     string          `json:"account_number"`
	Name              string          `json:"name"`
	PhoneNo           string          `json:"phone_no"`
	VehicleNo         string          `json:"vehicle_no"`
	OpeningDate       string          `json:"opening_date"`
	ClosingDate       string          `json:"closing_date"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	UpiID             string          `json:"upi_id"`
}

// customerPatch carries only the fields being changed
type customerPatch struct {
	Name              *string          `json:"name"`
	PhoneNo           *string          `json:"phone_no"`
	VehicleNo         *string          `json:"vehicle_no"`
	OpeningDate       *string          `json:"opening_date"`
	ClosingDate       *string          `json:"closing_date"`
	InstallmentAmount *decimal.Decimal `json:"installment_amount"`
	TotalAmount       *decimal.Decimal `json:"total_amount"`
}

type transactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Fine        decimal.Decimal `json:"fine"`
	Description string          `json:"description"`
}

type fineRequest struct {
	Fine decimal.Decimal `json:"fine"`
}

type upiRequest struct {
	UpiID string `json:"upi_id"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) parseDate(w http.ResponseWriter, field, value string) (time.Time, bool) {
	t, err := common.ParseTimestamp(value, s.ledger.Location())
	if err != nil {
		writeMessage(w, http.StatusBadRequest, field+": "+err.Error())
		return time.Time{}, false
	}
	return t, true
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	var today time.Time
	if value := r.URL.Query().Get("today"); value != "" {
		t, err := time.Parse("2006-01-02", value)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "today must be YYYY-MM-DD")
			return
		}
		today = t
	}

	pending, err := s.ledger.PendingCustomers(r.Context(), today)
	if err != nil {
		writeError(w, err, "load pending installments")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.ledger.ListCustomers(r.Context())
	if err != nil {
		writeError(w, err, "load customers")
		return
	}
	views := make([]customerView, 0, len(customers))
	for _, c := range customers {
		views = append(views, viewOf(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	customer := ledger.Customer{
		AccountNumber:     req.AccountNumber,
		Name:              req.Name,
		PhoneNo:           req.PhoneNo,
		VehicleNo:         req.VehicleNo,
		InstallmentAmount: req.InstallmentAmount,
		TotalAmount:       req.TotalAmount,
	}
	if strings.TrimSpace(req.OpeningDate) != "" {
		t, ok := s.parseDate(w, "opening_date", req.OpeningDate)
		if !ok {
			return
		}
		customer.OpeningDate = t
	}
	if strings.TrimSpace(req.ClosingDate) != "" {
		t, ok := s.parseDate(w, "closing_date", req.ClosingDate)
		if !ok {
			return
		}
		customer.ClosingDate = &t
	}

	created, err := s.ledger.AddCustomer(r.Context(), customer, req.UpiID)
	if err != nil {
		writeError(w, err, "add customer")
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(*created))
}

func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := s.ledger.GetCustomer(r.Context(), mux.Vars(r)["acc"])
	if err != nil {
		writeError(w, err, "load customer")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*customer))
}

func (s *Server) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerPatch
	if !decodeBody(w, r, &req) {
		return
	}

	customer := ledger.Customer{AccountNumber: mux.Vars(r)["acc"]}
	mask := []string{}
	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
		mask = append(mask, ledger.FieldName)
	}
	if req.PhoneNo != nil {
		customer.PhoneNo = *req.PhoneNo
		mask = append(mask, ledger.FieldPhoneNo)
	}
	if req.VehicleNo != nil {
		customer.VehicleNo = *req.VehicleNo
		mask = append(mask, ledger.FieldVehicleNo)
	}
	if req.OpeningDate != nil {
		t, ok := s.parseDate(w, "opening_date", *req.OpeningDate)
		if !ok {
			return
		}
		customer.OpeningDate = t
		mask = append(mask, ledger.FieldOpeningDate)
	}
	if req.ClosingDate != nil {
		if strings.TrimSpace(*req.ClosingDate) != "" {
			t, ok := s.parseDate(w, "closing_date", *req.ClosingDate)
			if !ok {
				return
			}
			customer.ClosingDate = &t
		}
		mask = append(mask, ledger.FieldClosingDate)
	}
	if req.InstallmentAmount != nil {
		if !req.InstallmentAmount.IsPositive() {
			writeMessage(w, http.StatusBadRequest, "installment_amount must be positive")
			return
		}
		customer.InstallmentAmount = *req.InstallmentAmount
		mask = append(mask, ledger.FieldInstallmentAmount)
	}
	if req.TotalAmount != nil {
		customer.TotalAmount = *req.TotalAmount
		mask = append(mask, ledger.FieldTotalAmount)
	}
	if len(mask) == 0 {
		writeMessage(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := s.ledger.UpdateCustomer(r.Context(), customer, mask); err != nil {
		writeError(w, err, "update customer")
		return
	}
	updated, err := s.ledger.GetCustomer(r.Context(), customer.AccountNumber)
	if err != nil {
		writeError(w, err, "load customer")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(*updated))
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteCustomer(r.Context(), mux.Vars(r)["acc"]); err != nil {
		writeError(w, err, "delete customer")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.ledger.ListTransactions(r.Context(), mux.Vars(r)["acc"])
	if err != nil {
		writeError(w, err, "load transactions")
		return
	}
	writeJSON(w, http.StatusOK, transactions)
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	txn, err := s.ledger.AddTransaction(r.Context(), mux.Vars(r)["acc"], req.Amount, req.Fine, req.Description)
	if err != nil {
		writeError(w, err, "add transaction")
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

func (s *Server) handleSetFine(w http.ResponseWriter, r *http.Request) {
	var req fineRequest
	if !decodeBody(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	if err := s.ledger.SetTransactionFine(r.Context(), vars["acc"], vars["id"], req.Fine); err != nil {
		writeError(w, err, "update fine")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.ledger.DeleteTransaction(r.Context(), vars["acc"], vars["id"]); err != nil {
		writeError(w, err, "delete transaction")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListUpiIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ledger.ListUpiIDs(r.Context(), mux.Vars(r)["acc"])
	if err != nil {
		writeError(w, err, "load UPI IDs")
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) handleAddUpiID(w http.ResponseWriter, r *http.Request) {
	var req upiRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.ledger.AddUpiID(r.Context(), mux.Vars(r)["acc"], req.UpiID)
	if err != nil {
		writeError(w, err, "add UPI ID")
		return
	}
	writeJSON(w, http.StatusCreated, id)
}
