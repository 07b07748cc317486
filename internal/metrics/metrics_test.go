package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetricFamily は収集結果から指定名のメトリクスファミリーを探す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// counterWithLabel は指定ラベル値を持つカウンタの値を返す。
func counterWithLabel(mf *dto.MetricFamily, label, value string) float64 {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return -1
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordHTTPRequest_IncrementsCounterWithLabels はHTTPリクエストカウンタがラベル別に増加することを検証する。
func TestRecordHTTPRequest_IncrementsCounterWithLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, "/tasks", 200, 10*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, "/tasks", 200, 20*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, "/tasks/{id}", 404, 5*time.Millisecond)

	mf := findMetricFamily(t, reg, "taskman_http_requests_total")
	if got := counterWithLabel(mf, "status_code", "200"); got != 2 {
		t.Errorf("status 200 count = %v, want 2", got)
	}
	if got := counterWithLabel(mf, "route", "/tasks/{id}"); got != 1 {
		t.Errorf("route /tasks/{id} count = %v, want 1", got)
	}

	hist := findMetricFamily(t, reg, "taskman_http_request_duration_seconds")
	var samples uint64
	for _, m := range hist.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("histogram sample count = %d, want 3", samples)
	}
}

// TestRecordTaskOperations_IncrementsCounter はタスク操作カウンタが操作別に増加することを検証する。
func TestRecordTaskOperations_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTaskCreated()
	c.RecordTaskCreated()
	c.RecordTaskUpdated()
	c.RecordTaskDeleted()

	mf := findMetricFamily(t, reg, "taskman_task_operations_total")
	tests := map[string]float64{"create": 2, "update": 1, "delete": 1}
	for op, want := range tests {
		if got := counterWithLabel(mf, "operation", op); got != want {
			t.Errorf("operation %s = %v, want %v", op, got, want)
		}
	}
}

// TestRecordLogin_SeparatesResults はログイン結果が成功・失敗で分かれて記録されることを検証する。
func TestRecordLogin_SeparatesResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordLogin(false)

	mf := findMetricFamily(t, reg, "taskman_logins_total")
	if got := counterWithLabel(mf, "result", "success"); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := counterWithLabel(mf, "result", "failure"); got != 2 {
		t.Errorf("failure = %v, want 2", got)
	}
}

func TestRecordSignupAndRevocation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSignup(true)
	c.RecordTokenRevoked()

	if got := counterWithLabel(findMetricFamily(t, reg, "taskman_signups_total"), "result", "success"); got != 1 {
		t.Errorf("signups success = %v, want 1", got)
	}
	mf := findMetricFamily(t, reg, "taskman_tokens_revoked_total")
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("tokens_revoked_total = %v, want 1", got)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodPost, "/tasks", 201, 3*time.Millisecond)
	c.RecordTaskCreated()
	c.RecordLogin(true)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"taskman_http_requests_total",
		"taskman_http_request_duration_seconds",
		"taskman_task_operations_total",
		"taskman_logins_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordTaskCreated()
	c2.RecordTaskCreated()
	c2.RecordTaskCreated()

	val1 := counterWithLabel(findMetricFamily(t, reg1, "taskman_task_operations_total"), "operation", "create")
	val2 := counterWithLabel(findMetricFamily(t, reg2, "taskman_task_operations_total"), "operation", "create")

	if val1 != 1 {
		t.Errorf("reg1 create = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 create = %v, want 2", val2)
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	var n Nop
	n.RecordHTTPRequest(http.MethodGet, "/", 200, time.Millisecond)
	n.RecordTaskCreated()
	n.RecordTaskUpdated()
	n.RecordTaskDeleted()
	n.RecordLogin(true)
	n.RecordSignup(false)
	n.RecordTokenRevoked()
}
