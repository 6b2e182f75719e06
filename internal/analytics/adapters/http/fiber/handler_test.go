package fiber_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	httpadapter "view-analytics-service/internal/analytics/adapters/http/fiber"
	"view-analytics-service/internal/analytics/core/domain"
	"view-analytics-service/internal/analytics/core/filter"
	"view-analytics-service/internal/analytics/core/usecase"
	"view-analytics-service/internal/platform/logger"

	"github.com/gofiber/fiber/v2"
)

// Fake usecase implementing the interface that handler depends on.
type fakeQueryUseCase struct {
	GroupedFn     func(ctx context.Context, in usecase.GroupedInput) ([]domain.Row, error)
	TopFn         func(ctx context.Context, in usecase.TopInput) ([]domain.Row, error)
	PerformanceFn func(ctx context.Context, in usecase.PerformanceInput) ([]domain.Row, error)

	lastGrouped     usecase.GroupedInput
	lastTop         usecase.TopInput
	lastPerformance usecase.PerformanceInput
	called          bool
}

func (f *fakeQueryUseCase) Grouped(ctx context.Context, in usecase.GroupedInput) ([]domain.Row, error) {
	f.called = true
	f.lastGrouped = in
	if f.GroupedFn != nil {
		return f.GroupedFn(ctx, in)
	}
	return []domain.Row{}, nil
}

func (f *fakeQueryUseCase) Top(ctx context.Context, in usecase.TopInput) ([]domain.Row, error) {
	f.called = true
	f.lastTop = in
	if f.TopFn != nil {
		return f.TopFn(ctx, in)
	}
	return []domain.Row{}, nil
}

func (f *fakeQueryUseCase) Performance(ctx context.Context, in usecase.PerformanceInput) ([]domain.Row, error) {
	f.called = true
	f.lastPerformance = in
	if f.PerformanceFn != nil {
		return f.PerformanceFn(ctx, in)
	}
	return []domain.Row{}, nil
}

func setupApp(t *testing.T, uc httpadapter.QueryUseCase) *fiber.App {
	t.Helper()
	app := fiber.New()
	httpadapter.NewAnalyticsHandler(uc, logger.NewNop()).RegisterRoutes(app)
	return app
}

func post(t *testing.T, app *fiber.App, target, body string) (*http.Response, string) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(http.MethodPost, target, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(raw)
}

// ------------------------------------------------------------
// GROUPED
// ------------------------------------------------------------

func TestGroupedViews_Success(t *testing.T) {
	uc := &fakeQueryUseCase{
		GroupedFn: func(ctx context.Context, in usecase.GroupedInput) ([]domain.Row, error) {
			return []domain.Row{
				{X: "US", Y: 2, Z: domain.Value(3)},
				{X: "UK", Y: 1, Z: domain.Value(1)},
			}, nil
		},
	}
	app := setupApp(t, uc)

	resp, body := post(t, app, "/analytics/blog-views/country?source=raw", `{"year": 2025}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if uc.lastGrouped.By != "country" {
		t.Fatalf("expected by=country, got %q", uc.lastGrouped.By)
	}
	if uc.lastGrouped.Source != "raw" {
		t.Fatalf("expected source=raw, got %q", uc.lastGrouped.Source)
	}

	year := 2025
	if !reflect.DeepEqual(uc.lastGrouped.Filter, filter.Flat{Year: &year}.Node()) {
		t.Fatalf("unexpected filter: %#v", uc.lastGrouped.Filter)
	}

	want := `[{"x":"US","y":2,"z":3},{"x":"UK","y":1,"z":1}]`
	if body != want {
		t.Fatalf("expected %s, got %s", want, body)
	}
}

func TestGroupedViews_EmptyBodyHasNoFilter(t *testing.T) {
	uc := &fakeQueryUseCase{}
	app := setupApp(t, uc)

	resp, body := post(t, app, "/analytics/blog-views/author", "")

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if uc.lastGrouped.Filter != nil {
		t.Fatalf("expected nil filter, got %#v", uc.lastGrouped.Filter)
	}
	if body != "[]" {
		t.Fatalf("expected empty array, got %s", body)
	}
}

func TestGroupedViews_FlatAndTreeAreCombined(t *testing.T) {
	uc := &fakeQueryUseCase{}
	app := setupApp(t, uc)

	payload := `{
		"source": "summary",
		"country_codes": ["US", "UK"],
		"operator": "OR",
		"conditions": [
			{"field": "author", "op": "eq", "value": "alice"},
			{"field": "author", "op": "eq", "value": "bob"}
		]
	}`
	resp, body := post(t, app, "/analytics/blog-views/country", payload)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if uc.lastGrouped.Source != "summary" {
		t.Fatalf("expected source from body, got %q", uc.lastGrouped.Source)
	}

	root, ok := uc.lastGrouped.Filter.(*filter.Group)
	if !ok || root.Op != filter.And || len(root.Children) != 2 {
		t.Fatalf("expected AND of flat and tree, got %#v", uc.lastGrouped.Filter)
	}
	tree, ok := root.Children[1].(*filter.Group)
	if !ok || tree.Op != filter.Or || len(tree.Children) != 2 {
		t.Fatalf("expected OR tree as second child, got %#v", root.Children[1])
	}
}

// ------------------------------------------------------------
// TOP
// ------------------------------------------------------------

func TestTop_LimitFromQueryOverridesBody(t *testing.T) {
	uc := &fakeQueryUseCase{}
	app := setupApp(t, uc)

	resp, _ := post(t, app, "/analytics/top/blog?limit=5", `{"limit": 20}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if uc.lastTop.Kind != "blog" || uc.lastTop.Limit != 5 {
		t.Fatalf("unexpected input: %+v", uc.lastTop)
	}
}

func TestTop_LimitFromBody(t *testing.T) {
	uc := &fakeQueryUseCase{}
	app := setupApp(t, uc)

	post(t, app, "/analytics/top/user", `{"limit": 20}`)

	if uc.lastTop.Kind != "user" || uc.lastTop.Limit != 20 {
		t.Fatalf("unexpected input: %+v", uc.lastTop)
	}
}

func TestTop_InvalidLimit(t *testing.T) {
	uc := &fakeQueryUseCase{}
	app := setupApp(t, uc)

	resp, body := post(t, app, "/analytics/top/blog?limit=ten", "")

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"invalid_parameter"`) {
		t.Fatalf("unexpected body: %s", body)
	}
	if uc.called {
		t.Fatalf("usecase should not be called")
	}
}

// ------------------------------------------------------------
// PERFORMANCE
// ------------------------------------------------------------

func TestPerformance_UndefinedGrowthIsNull(t *testing.T) {
	uc := &fakeQueryUseCase{
		PerformanceFn: func(ctx context.Context, in usecase.PerformanceInput) ([]domain.Row, error) {
			return []domain.Row{
				{X: "2025-01-06 (0 blogs)", Y: 0, Z: domain.Value(0)},
				{X: "2025-01-13 (1 blogs)", Y: 4, Z: domain.Undefined()},
			}, nil
		},
	}
	app := setupApp(t, uc)

	resp, body := post(t, app, "/analytics/performance?range=week", `{"start_date": "2025-01-06"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if uc.lastPerformance.Range != "week" {
		t.Fatalf("expected range=week, got %q", uc.lastPerformance.Range)
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(body), &rows); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(rows) != 2 || rows[1]["z"] != nil {
		t.Fatalf("expected null growth in second row, got %s", body)
	}
}

// ------------------------------------------------------------
// ERRORS
// ------------------------------------------------------------

func TestAnalytics_InvalidJSON(t *testing.T) {
	uc := &fakeQueryUseCase{}
	app := setupApp(t, uc)

	resp, body := post(t, app, "/analytics/performance", `{"year": "not a number"`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"invalid_json"`) {
		t.Fatalf("unexpected body: %s", body)
	}
	if uc.called {
		t.Fatalf("usecase should not be called")
	}
}

func TestAnalytics_MalformedTree(t *testing.T) {
	uc := &fakeQueryUseCase{}
	app := setupApp(t, uc)

	resp, body := post(t, app, "/analytics/top/country", `{"conditions": {"field": "country"}}`)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `"malformed_filter"`) {
		t.Fatalf("unexpected body: %s", body)
	}
	if uc.called {
		t.Fatalf("usecase should not be called")
	}
}

func TestAnalytics_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"forbidden field", fmt.Errorf("%w: password", filter.ErrForbiddenField), http.StatusBadRequest, "forbidden_field"},
		{"unknown operator", fmt.Errorf("%w: like", filter.ErrUnknownOperator), http.StatusBadRequest, "unknown_operator"},
		{"type mismatch", fmt.Errorf("%w: year", filter.ErrTypeMismatch), http.StatusBadRequest, "type_mismatch"},
		{"tree too deep", fmt.Errorf("%w: depth 11", filter.ErrTreeTooDeep), http.StatusBadRequest, "tree_too_deep"},
		{"invalid parameter", fmt.Errorf("%w: by", usecase.ErrInvalidParameter), http.StatusBadRequest, "invalid_parameter"},
		{"storage failure", errors.New("connection refused"), http.StatusInternalServerError, "internal_server_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeQueryUseCase{
				GroupedFn: func(ctx context.Context, in usecase.GroupedInput) ([]domain.Row, error) {
					return nil, tt.err
				},
			}
			app := setupApp(t, uc)

			resp, body := post(t, app, "/analytics/blog-views/country", `{}`)

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			var errResp httpadapter.ErrorResponse
			if err := json.Unmarshal([]byte(body), &errResp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if errResp.Error != tt.wantCode {
				t.Fatalf("expected error=%s, got %s", tt.wantCode, errResp.Error)
			}
			if tt.wantStatus == http.StatusInternalServerError && errResp.Message != "" {
				t.Fatalf("internal errors must not leak details, got %q", errResp.Message)
			}
		})
	}
}
