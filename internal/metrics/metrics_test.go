package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_LoginCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLoginSuccess()
	c.RecordLoginSuccess()
	c.RecordLoginFailure("exchange_failed")
	c.RecordLoginFailure("exchange_failed")
	c.RecordLoginFailure("provision_failed")

	if got := testutil.ToFloat64(c.loginSuccess); got != 2 {
		t.Errorf("login_success_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.loginFail.WithLabelValues("exchange_failed")); got != 2 {
		t.Errorf("login_fail_total{reason=exchange_failed} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.loginFail.WithLabelValues("provision_failed")); got != 1 {
		t.Errorf("login_fail_total{reason=provision_failed} = %v, want 1", got)
	}
}

func TestCollector_ProvisioningCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUserProvisioned()
	c.RecordUsernameConflict()
	c.RecordUsernameConflict()

	if got := testutil.ToFloat64(c.usersProvisioned); got != 1 {
		t.Errorf("users_provisioned_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.usernameConflict); got != 2 {
		t.Errorf("username_conflict_total = %v, want 2", got)
	}
}

func TestCollector_HTTPStatusCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("200")); got != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpStatus.WithLabelValues("404")); got != 1 {
		t.Errorf("http_status_total{status_code=404} = %v, want 1", got)
	}
}

func TestCollector_ExchangeLatencyHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordExchangeLatency(150 * time.Millisecond)
	c.RecordExchangeLatency(300 * time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() == "accountman_exchange_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 2 {
				t.Errorf("histogram sample count = %d, want 2", count)
			}
		}
	}
	if !found {
		t.Error("exchange latency histogram should be registered")
	}
}

func TestSetupMetricsRoute_ServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordLoginSuccess()

	server := httptest.NewServer(SetupMetricsRoute(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "accountman_login_success_total 1") {
		t.Errorf("metrics output should contain login success counter:\n%s", string(body))
	}
}
