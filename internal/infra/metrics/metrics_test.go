package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)

	m.SurveyCreated(3, 1, 2)
	m.SurveyCreated(1, 0, 0)
	m.DuplicateRejected()
	m.DraftTransition("in_progress")
	m.DraftTransition("completed")
	m.DraftTransition("completed")
	m.SurveyDeleted()

	assert.InDelta(t, 2, testutil.ToFloat64(m.SurveysCreated), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.MembersCreated.WithLabelValues("living")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.MembersCreated.WithLabelValues("deceased")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.MembersSkipped), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.DuplicatesRejected), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.DraftTransitions.WithLabelValues("completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SurveysDeleted), 0)
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.DuplicateRejected()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "censo_duplicate_families_rejected_total 1"))
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
