package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func scrape(m *Metrics) string {
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	return rec.Body.String()
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.Reconciliations.WithLabelValues("webhook", "success").Inc()

	assert.Contains(t, scrape(a), `orders_payment_reconciliations_total{channel="webhook",outcome="success"} 1`)
	assert.NotContains(t, scrape(b), `orders_payment_reconciliations_total{channel="webhook"`)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.OrdersCreated.WithLabelValues("COD").Inc()

	out := scrape(m)
	assert.Contains(t, out, `orders_created_total{payment_method="COD"} 1`)
	assert.Contains(t, out, "go_goroutines")
}
