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

func TestCounters(t *testing.T) {
	m := New()

	m.ProposalCreated()
	m.ProposalCreated()
	m.ProposalDeleted("owner")
	m.StatusChanged("Approved")
	m.UploadRejected("unsupported_type")
	m.SignIn(true)
	m.SignIn(false)
	m.SignIn(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.proposalsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proposalsDeleted.WithLabelValues("owner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusChanges.WithLabelValues("Approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.uploadsRejected.WithLabelValues("unsupported_type")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.signIns.WithLabelValues("failure")))
}

func TestNilMetrics_IsNoop(t *testing.T) {
	var m *Metrics
	m.ProposalCreated()
	m.ProposalDeleted("admin")
	m.StatusChanged("Rejected")
	m.UploadRejected("too_large")
	m.SignIn(true)
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
	assert.Nil(t, m.Registry())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.ProposalCreated()
	m.ObserveRequest("POST", "/api/proposals", 201, 25*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "proposalkeeper_proposals_created_total 1"))
	assert.Contains(t, body, `proposalkeeper_http_request_duration_seconds_count{code="201",method="POST",route="/api/proposals"} 1`)
}
