package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pedigree-chart-go/internal/domain/pedigree"
)

var _ pedigree.Recorder = (*Metrics)(nil)

func TestCounters(t *testing.T) {
	m := New()
	m.ChartCreated()
	m.ChartCreated()
	m.ChartUpdated()
	m.ChartRendered()
	m.PersonsSaved(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.chartsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chartsUpdated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.chartsRendered))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.personsSaved))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ChartCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pedigree_charts_created_total 1")
}
