package telemetry

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.VisitSaved("allergies")
	m.SaveRefused("allergies")
	m.StorageError("put")
	m.ReconcileAction("allergies", "copy")
	m.InvariantViolation("obstetric")
}

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.VisitSaved("past_history")
	m.VisitSaved("past_history")
	m.StorageError("put")
	m.ReconcileAction("allergies", "ignore")

	if got := testutil.ToFloat64(m.visitsSaved.WithLabelValues("past_history")); got != 2 {
		t.Errorf("expected 2 saves, got %v", got)
	}
	if got := testutil.ToFloat64(m.storageErrors.WithLabelValues("put")); got != 1 {
		t.Errorf("expected 1 storage error, got %v", got)
	}
	if got := testutil.ToFloat64(m.reconcileActions.WithLabelValues("allergies", "ignore")); got != 1 {
		t.Errorf("expected 1 ignore action, got %v", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.VisitSaved("obstetric")

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := m.Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `intake_visits_saved_total{section="obstetric"} 1`) {
		t.Errorf("metric not exported:\n%s", rec.Body.String())
	}
}
