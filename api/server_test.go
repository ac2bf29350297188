package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aqlanhadi/kisht/integrations/memory"
	"github.com/aqlanhadi/kisht/ledger"
	"github.com/aqlanhadi/kisht/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statement = `,Date,Transaction Details,,,,,,Withdrawals,,Deposits
,01/01/2024,UPI/RRN001/payment from/alice@okaxis,,,,,,,,"1,000.00"
,01/01/2024,UPI/RRN002/payment from/ghost@ybl,,,,,,,,50.00
`

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	s := memory.New()
	l, err := ledger.New(s, ledger.Options{
		UserID:   "operator",
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return New(DefaultConfig(), l), s
}

func do(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func upload(t *testing.T, server *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func addAlice(t *testing.T, server *Server) {
	t.Helper()
	w := do(t, server, http.MethodPost, "/customers", map[string]any{
		"account_number":     "C1",
		"name":               "Alice",
		"opening_date":       "2024-01-01",
		"installment_amount": 100,
		"total_amount":       5000,
		"upi_id":             "alice@okaxis",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	w := do(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
}

func TestImportEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	addAlice(t, server)

	w := do(t, server, http.MethodGet, "/import/status", nil)
	assert.Equal(t, ImportIdle, decode[ImportStatus](t, w).State)

	w = upload(t, server, "statement.csv", statement)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	status := decode[ImportStatus](t, w)
	assert.Equal(t, ImportSuccess, status.State)
	require.NotNil(t, status.Summary)
	assert.Equal(t, 1, status.Summary.Added)
	assert.Equal(t, []string{"ghost@ybl"}, status.Summary.UnknownHandles)
	assert.Contains(t, status.Message, "Import complete")

	w = do(t, server, http.MethodGet, "/import/status", nil)
	assert.Equal(t, ImportSuccess, decode[ImportStatus](t, w).State)

	w = do(t, server, http.MethodGet, "/customers/C1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	customer := decode[map[string]any](t, w)
	assert.Equal(t, "1000", customer["amount_paid"])
	assert.Equal(t, "4000", customer["remaining"])
	assert.Equal(t, false, customer["complete"])

	w = upload(t, server, "statement.csv", statement)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "reset the previous import first", decode[errorResponse](t, w).Error)

	w = do(t, server, http.MethodDelete, "/import/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ImportIdle, decode[ImportStatus](t, w).State)

	w = upload(t, server, "statement.csv", statement)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[ImportStatus](t, w).Summary.DuplicatesSkipped)
}

func TestImportEndpoint_Fatal(t *testing.T) {
	server, _ := newTestServer(t)

	w := upload(t, server, "statement.csv", "no,header\n")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	status := decode[ImportStatus](t, w)
	assert.Equal(t, ImportError, status.State)
	assert.True(t, strings.HasPrefix(status.Message, "FATAL: "))

	w = upload(t, server, "statement.csv", statement)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImportEndpoint_RejectsConcurrentImport(t *testing.T) {
	server, _ := newTestServer(t)
	_, ok := server.imports.begin("running.csv")
	require.True(t, ok)

	w := upload(t, server, "statement.csv", statement)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, server, http.MethodDelete, "/import/status", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, server, http.MethodGet, "/import/status", nil)
	status := decode[ImportStatus](t, w)
	assert.Equal(t, ImportLoading, status.State)
	assert.Equal(t, "running.csv", status.File)
}

func TestImportEndpoint_NoFile(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/import", nil)
	req.Header.Set("Content-Type", "multipart/form-data")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportEndpoint_MethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	w := do(t, server, http.MethodGet, "/import", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCustomerEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	addAlice(t, server)

	w := do(t, server, http.MethodPost, "/customers", map[string]any{
		"account_number":     "C1",
		"name":               "Again",
		"installment_amount": 100,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, server, http.MethodPost, "/customers", map[string]any{"account_number": "C2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodGet, "/customers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = do(t, server, http.MethodPatch, "/customers/C1", map[string]any{"name": "Alice B", "closing_date": "2024-12-31"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[map[string]any](t, w)
	assert.Equal(t, "Alice B", updated["name"])
	assert.NotEmpty(t, updated["closing_date"])

	w = do(t, server, http.MethodPatch, "/customers/C1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodGet, "/customers/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, server, http.MethodDelete, "/customers/C1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, server, http.MethodDelete, "/customers/C1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransactionEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	addAlice(t, server)

	w := do(t, server, http.MethodPost, "/customers/C1/transactions", map[string]any{"amount": "250", "description": "cash"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	txn := decode[ledger.Transaction](t, w)
	assert.Equal(t, "4750", txn.Balance.String())

	w = do(t, server, http.MethodPost, "/customers/C1/transactions", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodPatch, "/customers/C1/transactions/"+txn.ID, map[string]any{"fine": 15})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, server, http.MethodGet, "/customers/C1/transactions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	transactions := decode[[]ledger.Transaction](t, w)
	require.Len(t, transactions, 1)
	assert.Equal(t, "15", transactions[0].Fine.String())

	w = do(t, server, http.MethodDelete, "/customers/C1/transactions/"+txn.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, server, http.MethodDelete, "/customers/C1/transactions/"+txn.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpiEndpoints(t *testing.T) {
	server, _ := newTestServer(t)
	addAlice(t, server)

	w := do(t, server, http.MethodPost, "/customers/C1/upi", map[string]any{"upi_id": "Alice@YBL"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "alice@ybl", decode[ledger.UpiID](t, w).Handle)

	w = do(t, server, http.MethodPost, "/customers/C1/upi", map[string]any{"upi_id": "alice@ybl"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, server, http.MethodGet, "/customers/C1/upi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]ledger.UpiID](t, w), 2)
}

func TestPendingEndpoint(t *testing.T) {
	server, _ := newTestServer(t)
	addAlice(t, server)

	w := do(t, server, http.MethodGet, "/pending?today=2024-01-05", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[[]ledger.PendingCustomer](t, w)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(4), pending[0].Status.DaysOverdue)
	assert.Equal(t, "500", pending[0].Status.AmountOverdue.String())

	w = do(t, server, http.MethodGet, "/pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(9), decode[[]ledger.PendingCustomer](t, w)[0].Status.DaysOverdue)

	w = do(t, server, http.MethodGet, "/pending?today=05/01/2024", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreAuthErrorsAreMapped(t *testing.T) {
	server, s := newTestServer(t)
	addAlice(t, server)
	s.FailCommit = func([]store.Write) error {
		return &store.StatusError{StatusCode: http.StatusForbidden, Body: "denied"}
	}

	w := do(t, server, http.MethodPost, "/customers/C1/transactions", map[string]any{"amount": 10})

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Permission denied. Check Firestore security rules.", decode[errorResponse](t, w).Error)
}
