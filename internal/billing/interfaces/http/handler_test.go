package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/wealthops/advisorybilling/internal/billing/application"
	"github.com/wealthops/advisorybilling/internal/billing/domain"
	"github.com/wealthops/advisorybilling/internal/billing/infrastructure/persistence/memory"
)

func newTestRouter(t *testing.T, seed bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := domain.NewEngine(memory.NewScheduleRepository(), memory.NewClientRepository())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewBillingService(engine, nil, nil, logger)
	if seed {
		if err := svc.SeedDefaults(context.Background()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	router := gin.New()
	NewBillingHandler(svc).RegisterRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateLegacyFeeSchedule(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(router, http.MethodPost, "/api/v1/billing/fee-schedules/legacy", gin.H{
		"fee_code": "5",
		"tiers": []gin.H{
			{"percent": 0.01, "limit": 249999.99},
			{"percent": 0.0025, "limit": 0},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodGet, "/api/v1/billing/fee-schedules/fee-schedule-5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", w.Code)
	}
	var resp struct {
		Data domain.FeeSchedule `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.FeeType != domain.FeeTypeTiered || len(resp.Data.Tiers) != 2 {
		t.Errorf("unexpected schedule: %+v", resp.Data)
	}
}

func TestCreateFeeScheduleValidationFailure(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(router, http.MethodPost, "/api/v1/billing/fee-schedules", gin.H{
		"fee_code":     "x",
		"name":         "Too steep",
		"fee_type":     "flat_percent",
		"flat_percent": 0.2,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Data domain.ValidationResult `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Valid || len(resp.Data.Errors) == 0 {
		t.Errorf("expected validation errors in response, got %+v", resp.Data)
	}
}

func TestGetFeeScheduleNotFound(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(router, http.MethodGet, "/api/v1/billing/fee-schedules/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestCalculateQuarterlyPreset(t *testing.T) {
	router := newTestRouter(t, true)

	w := doJSON(router, http.MethodPost, "/api/v1/billing/calculations", gin.H{
		"balances": []gin.H{
			{"account_number": "ACC-1", "account_name": "Test", "portfolio_value": 1000000},
		},
		"period": gin.H{"preset": "quarterly", "year": 2024, "index": 1},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data application.CalculationRunDTO `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Data.Success || resp.Data.TotalAccounts != 1 {
		t.Fatalf("unexpected run: %+v", resp.Data)
	}
	if resp.Data.Clients[0].Accounts[0].FinalFee != "621.58" {
		t.Errorf("FinalFee = %s", resp.Data.Clients[0].Accounts[0].FinalFee)
	}
}

func TestCalculateRejectsBadPeriod(t *testing.T) {
	router := newTestRouter(t, true)

	cases := []gin.H{
		{"preset": "quarterly", "year": 2024, "index": 5},
		{"preset": "custom", "start_date": "2024-03-31", "end_date": "2024-01-01"},
		{"preset": "weekly"},
	}
	for _, period := range cases {
		w := doJSON(router, http.MethodPost, "/api/v1/billing/calculations", gin.H{
			"balances": []gin.H{},
			"period":   period,
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("period %v: status = %d, want 400", period, w.Code)
		}
	}
}

func TestQuarterlyPeriodsEndpoint(t *testing.T) {
	router := newTestRouter(t, false)

	w := doJSON(router, http.MethodGet, "/api/v1/billing/periods/quarterly/2024", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Data []domain.BillingPeriod `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 4 || resp.Data[0].DaysInYear != 366 {
		t.Errorf("unexpected periods: %+v", resp.Data)
	}

	w = doJSON(router, http.MethodGet, "/api/v1/billing/periods/quarterly/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad year status = %d, want 400", w.Code)
	}
}
