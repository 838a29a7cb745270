package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, nil, nil, "outlet-1", 0, false)
	auth := NewAuthManager("test-secret-key", time.Hour, "123456")

	return New(svc, auth, nil, "*")
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, payload any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func adminToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{PIN: "123456"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestLoginWithWrongPIN(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{PIN: "000000"}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestLoginRateLimit(t *testing.T) {
	handler := newTestAPI(t).Handler()

	var last int
	for i := 0; i < 6; i++ {
		rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", domain.LoginRequest{PIN: "000000"}, "")
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on 6th attempt, got %d", last)
	}
}

func TestListProductsIncludesModifierGroups(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Products []domain.ProductWithModifiers `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 3 {
		t.Fatalf("products = %d, want 3", len(body.Products))
	}
	for _, p := range body.Products {
		if len(p.ModifierGroups) == 0 {
			t.Fatalf("product %s has no modifier groups", p.ID)
		}
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open",
		domain.ShiftOpenRequest{CashierName: "Budi", OpeningCash: 500000}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("open shift = %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/checkout", domain.CheckoutRequest{
		Items:         []domain.CheckoutItem{{ProductID: "prod-beras", Quantity: 1, ModifierIDs: []string{"mod-satuan-karung"}}},
		PaymentMethod: domain.PaymentCash,
		CashReceived:  500000,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout = %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if resp.Transaction.Total != 460000 || resp.CashChange != 40000 {
		t.Fatalf("total/change = %d/%d, want 460000/40000", resp.Transaction.Total, resp.CashChange)
	}

	// Receipt for the stored transaction.
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/transactions/"+resp.Transaction.ID+"/receipt", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt = %d (body: %s)", rec.Code, rec.Body.String())
	}

	// Second open while one is running conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open",
		domain.ShiftOpenRequest{CashierName: "Siti", OpeningCash: 0}, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("second open = %d, want 409", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/shifts/close",
		domain.ShiftCloseRequest{ActualCash: 960000}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("close shift = %d (body: %s)", rec.Code, rec.Body.String())
	}
	var closed domain.ShiftLog
	if err := json.NewDecoder(rec.Body).Decode(&closed); err != nil {
		t.Fatalf("decode shift: %v", err)
	}
	if closed.ExpectedCash != 960000 || closed.CashDifference != 0 {
		t.Fatalf("reconciliation = %d/%d", closed.ExpectedCash, closed.CashDifference)
	}
}

func TestCurrentShiftNotFound(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/shifts/current", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := domain.ProductCreateRequest{Name: "Teh Manis", CategoryID: "cat-kopi", BasePrice: 5000, IsAvailable: true}

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products", req, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without token = %d, want 401", rec.Code)
	}

	token := adminToken(t, handler)
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/products", req, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("with token = %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestStockEndpointReflectsLedger(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/inventory/events", domain.InventoryEventRequest{
		EventType: domain.EventRestock, ProductID: "prod-kopi-susu", QuantityChange: 25,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("restock = %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/prod-kopi-susu/stock", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stock = %d", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if fmt.Sprintf("%v", body["stock"]) != "25" {
		t.Fatalf("stock = %v, want 25", body["stock"])
	}
}

func TestSyncStatusAndTrigger(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/sync/status", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status domain.SyncStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.RemoteEnabled {
		t.Fatalf("remote should be disabled in tests")
	}

	// No engine wired: trigger reports conflict.
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sync/trigger", nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("trigger without engine = %d, want 409", rec.Code)
	}
}

type fakeNotifier struct {
	pushes int
	syncs  int
}

func (f *fakeNotifier) TriggerPush() { f.pushes++ }
func (f *fakeNotifier) TriggerSync() { f.syncs++ }

func TestSyncTriggerRunsFullCycle(t *testing.T) {
	repo := memory.NewSeeded()
	svc := service.New(repo, nil, nil, "outlet-1", 0, false)
	auth := NewAuthManager("test-secret-key", time.Hour, "123456")
	notifier := &fakeNotifier{}
	handler := New(svc, auth, notifier, "*").Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sync/trigger", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger = %d, want 202", rec.Code)
	}
	// Reconnect runs pull then push, not a bare push.
	if notifier.syncs != 1 || notifier.pushes != 0 {
		t.Fatalf("syncs/pushes = %d/%d, want 1/0", notifier.syncs, notifier.pushes)
	}
}
