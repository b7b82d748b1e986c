package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDecision(t *testing.T) {
	m := New()
	m.ObserveDecision("rewritten", "matched", "git-status", time.Millisecond)
	m.ObserveDecision("rewritten", "matched", "git-status", time.Millisecond)
	m.ObserveDecision("unchanged", "no-match", "", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("rewritten", "matched", "git-status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("unchanged", "no-match", "")))
}

func TestRulesAndReloads(t *testing.T) {
	m := New()
	m.SetRulesLoaded(41)
	m.ObserveReload(true)
	m.ObserveReload(false)
	m.ObserveReload(false)

	assert.Equal(t, 41.0, testutil.ToFloat64(m.rulesLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.reloads.WithLabelValues("failure")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision("rewritten", "matched", "ls", 0)
		m.SetRulesLoaded(1)
		m.ObserveReload(true)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.SetRulesLoaded(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "openrtklaw_rules_loaded 3"))
}
