package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"mesapos/backend/internal/connectivity"
	"mesapos/backend/internal/domain"
	"mesapos/backend/internal/ledger"
	kvmemory "mesapos/backend/internal/localstore/memory"
	"mesapos/backend/internal/service"
	remotememory "mesapos/backend/internal/store/memory"
	"mesapos/backend/internal/syncer"
)

const (
	testManagerPIN = "482915"
	testStaffPIN   = "731046"
)

type testDeps struct {
	remote *remotememory.Store
	probe  *connectivity.Static
}

// newTestAPI builds a full API over in-memory stores so handler tests
// exercise the complete request path.
func newTestAPI(t *testing.T) (*API, testDeps) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	l := ledger.New(kvmemory.New())
	deps := testDeps{remote: remotememory.New(), probe: connectivity.NewStatic(true)}
	engine := syncer.NewEngine(l, deps.remote, deps.probe, syncer.Options{Logger: logger})
	svc := service.New(l, deps.remote, deps.probe, engine, service.Options{Logger: logger, Location: time.UTC})
	auth := NewAuthManager("test-secret-key", time.Hour, testManagerPIN, testStaffPIN)

	return New(svc, auth, "*", logger), deps
}

func doJSON(t *testing.T, api *API, method, path, token string, payload any) *httptest.ResponseRecorder {
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
	if method != http.MethodGet {
		req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

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

func TestHandleLogin_WrongPIN(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{PIN: "111111"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSalesRequireAuth(t *testing.T) {
	api, _ := newTestAPI(t)
	rec := doJSON(t, api, http.MethodGet, "/api/v1/sales", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRecordAndListSales(t *testing.T) {
	api, deps := newTestAPI(t)
	token := login(t, api, testStaffPIN)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.RecordSaleRequest{
		TableNumber: 2,
		Items:       []domain.LineItem{{Name: "Taco de suadero", Price: 18, Quantity: 3}},
		Total:       54,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created domain.RecordSaleResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if !created.Sale.Synced || created.Sale.TableName != "Mesa 2" {
		t.Fatalf("unexpected sale %+v", created.Sale)
	}
	if deps.remote.Len() != 1 {
		t.Fatalf("expected sale pushed to remote, got %d rows", deps.remote.Len())
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sales?period=today", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list domain.SaleListResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Sales) != 1 || list.Sales[0].ID != created.Sale.ID || list.Source != domain.SourceRemote {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestRecordSaleRejectsInvalidBody(t *testing.T) {
	api, _ := newTestAPI(t)
	token := login(t, api, testStaffPIN)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", token, domain.RecordSaleRequest{TableNumber: 0})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/sales", token, map[string]any{"table_number": 1, "tip": 5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestListSalesRejectsUnknownPeriod(t *testing.T) {
	api, _ := newTestAPI(t)
	token := login(t, api, testStaffPIN)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/sales?period=decade", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodGet, "/api/v1/sales?period=custom&start=15-05-2024", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}
}

func TestAnalyticsIsManagerOnly(t *testing.T) {
	api, _ := newTestAPI(t)
	staff := login(t, api, testStaffPIN)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/analytics?period=week", staff, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}
}

func TestAnalyticsJSONAndCSV(t *testing.T) {
	api, _ := newTestAPI(t)
	staff := login(t, api, testStaffPIN)
	manager := login(t, api, testManagerPIN)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", staff, domain.RecordSaleRequest{
		TableNumber: 1,
		Items:       []domain.LineItem{{Name: "Refresco de Cola", Price: 25, Quantity: 2}},
		Total:       50,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/analytics?period=all", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp domain.AnalyticsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode analytics: %v", err)
	}
	if resp.Snapshot.TotalSales != 50 || len(resp.Snapshot.CategoryData) != 1 || resp.Snapshot.CategoryData[0].Name != "Bebidas" {
		t.Fatalf("unexpected snapshot %+v", resp.Snapshot)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/analytics?period=all&format=csv", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for csv, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("expected csv content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "summary,total_sales,50.00") || !strings.Contains(body, "category,Bebidas,50.00") {
		t.Fatalf("unexpected csv body:\n%s", body)
	}
}

func TestManualSyncOfflineReturns503(t *testing.T) {
	api, deps := newTestAPI(t)
	manager := login(t, api, testManagerPIN)
	deps.probe.Set(false)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sync", manager, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestManualSyncPushesQueuedSales(t *testing.T) {
	api, deps := newTestAPI(t)
	staff := login(t, api, testStaffPIN)
	manager := login(t, api, testManagerPIN)

	deps.probe.Set(false)
	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", staff, domain.RecordSaleRequest{TableNumber: 3, Total: 0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/sync/status", staff, nil)
	var status domain.SyncStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Pending != 1 || status.Online {
		t.Fatalf("unexpected status %+v", status)
	}

	deps.probe.Set(true)
	rec = doJSON(t, api, http.MethodPost, "/api/v1/sync", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Report domain.SyncReport `json:"report"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode sync: %v", err)
	}
	if body.Report.Synced != 1 || deps.remote.Len() != 1 {
		t.Fatalf("unexpected report %+v", body.Report)
	}
}

func TestTableNames(t *testing.T) {
	api, _ := newTestAPI(t)
	staff := login(t, api, testStaffPIN)
	manager := login(t, api, testManagerPIN)

	rec := doJSON(t, api, http.MethodPut, "/api/v1/tables/4", staff, domain.TableNameRequest{Name: "Terraza"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPut, "/api/v1/tables/abc", manager, domain.TableNameRequest{Name: "Terraza"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad table number, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPut, "/api/v1/tables/4", manager, domain.TableNameRequest{Name: "Terraza"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, api, http.MethodGet, "/api/v1/tables", staff, nil)
	var body struct {
		Tables []domain.TableName `json:"tables"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode tables: %v", err)
	}
	if len(body.Tables) != 1 || body.Tables[0].Name != "Terraza" {
		t.Fatalf("unexpected tables %+v", body.Tables)
	}
}

func TestClearAllWithManagerPIN(t *testing.T) {
	api, deps := newTestAPI(t)
	staff := login(t, api, testStaffPIN)
	manager := login(t, api, testManagerPIN)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", staff, domain.RecordSaleRequest{TableNumber: 1, Total: 0})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/sales", nil)
	req.Header.Set("Authorization", "Bearer "+manager)
	req.Header.Set("X-CSRF-Token", fetchCSRFToken(t, api))
	req.Header.Set("X-Manager-PIN", testManagerPIN)
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (body: %s)", res.Code, res.Body.String())
	}
	if deps.remote.Len() != 0 {
		t.Fatalf("expected remote cleared")
	}
}

func TestSuggestions(t *testing.T) {
	api, _ := newTestAPI(t)
	staff := login(t, api, testStaffPIN)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, api, http.MethodPost, "/api/v1/sales", staff, domain.RecordSaleRequest{
			TableNumber: 1,
			Items: []domain.LineItem{
				{Name: "Taco de pastor", Price: 18, Quantity: 2},
				{Name: "Refresco de cola", Price: 25, Quantity: 1},
			},
			Total: 61,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("record sale: %d", rec.Code)
		}
	}

	rec := doJSON(t, api, http.MethodPost, "/api/v1/suggestions", staff, domain.SuggestionRequest{Items: []string{"Taco de pastor"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.SuggestionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode suggestion: %v", err)
	}
	if resp.Suggestion == nil || resp.Suggestion.Name != "Refresco de cola" || !resp.UIPolicy.Show {
		t.Fatalf("unexpected suggestion %+v", resp)
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/suggestions", staff, domain.SuggestionRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty ticket, got %d", rec.Code)
	}
}
