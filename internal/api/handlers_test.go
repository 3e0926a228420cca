package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/metrics"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/rules"
)

type fakeRules struct {
	err   error
	rules []model.Rule
}

func (f *fakeRules) ListRules(context.Context) ([]model.Rule, error) {
	return f.rules, f.err
}

func (f *fakeRules) GetRule(_ context.Context, id int64) (*model.Rule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			return &f.rules[i], nil
		}
	}
	return nil, fmt.Errorf("rule %w: %d", common.ErrNotFound, id)
}

// enginePreviewer previews against a fixed rule list with a bare engine.
type enginePreviewer struct {
	rules []model.Rule
}

func (p enginePreviewer) Preview(ctx context.Context, bag model.FieldBag) (rules.Result, error) {
	return rules.NewEngine().Classify(ctx, p.rules, model.Receipt{Fields: bag})
}

func testRules() []model.Rule {
	return []model.Rule{
		{
			ID: 1, Sequence: 1, Name: "Dining", Priority: 10, Enabled: true,
			Conditions: []model.Condition{
				{Field: model.FieldExpenseType, Operator: model.OpEquals, Value: "meal"},
			},
			Actions: []model.Action{
				{Type: model.ActionSetCategory, Value: "EXPENSE"},
				{Type: model.ActionSetSubCategory, Value: "MEAL"},
			},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *metrics.Collector) {
	t.Helper()
	rs := testRules()
	collector := metrics.NewCollector(nil)
	h := NewHandler(&fakeRules{rules: rs}, enginePreviewer{rules: rs}, collector, nil)
	srv := httptest.NewServer(NewRouter(h, []string{"http://localhost:5173"}))
	t.Cleanup(srv.Close)
	return srv, collector
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestListRules(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/rules")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []RuleDTO
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "Dining", got[0].Name)
	assert.Equal(t, model.OpEquals, got[0].Conditions[0].Operator)
}

func TestListRules_StoreError(t *testing.T) {
	h := NewHandler(&fakeRules{err: common.ErrDatabaseCorrupted}, enginePreviewer{}, nil, nil)
	rec := httptest.NewRecorder()
	NewRouter(h, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rules", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database corrupted")
}

func TestGetRule(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "found", path: "/api/rules/1", want: http.StatusOK},
		{name: "missing", path: "/api/rules/99", want: http.StatusNotFound},
		{name: "bad id", path: "/api/rules/abc", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestPreview(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("match", func(t *testing.T) {
		body := `{"fields": {"expense_type": "meal", "amount": 42.5}}`
		resp, err := http.Post(srv.URL+"/api/classify/preview", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got PreviewResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.True(t, got.Matched)
		require.NotNil(t, got.Rule)
		assert.Equal(t, "Dining", got.Rule.Name)
		assert.Equal(t, "EXPENSE", got.Directive.Assignments[model.AttrCategory])
		assert.Equal(t, "MEAL", got.Directive.Assignments[model.AttrSubCategory])
	})

	t.Run("no match", func(t *testing.T) {
		body := `{"fields": {"expense_type": "travel"}}`
		resp, err := http.Post(srv.URL+"/api/classify/preview", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got PreviewResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.False(t, got.Matched)
		assert.Nil(t, got.Rule)
	})

	t.Run("bad requests", func(t *testing.T) {
		for _, body := range []string{`not json`, `{"fields": {}}`, `{"fields": {"colour": "red"}}`} {
			resp, err := http.Post(srv.URL+"/api/classify/preview", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv, collector := newTestServer(t)
	collector.RecordOutcome(metrics.OutcomeMatched, "Dining")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sorter_receipts_classified_total")
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/rules", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
