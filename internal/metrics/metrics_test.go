package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm_assistant_backend/platform/apperr"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservers(t *testing.T) {
	m := New()

	m.ObserveTurn("stock_lookup", time.Second, false)
	m.ObserveTurn("stock_lookup", time.Second, false)
	m.ObserveTool("price_lookup", 10*time.Millisecond, true)
	m.ObserveIngestion("ledger", 120, time.Second, nil)
	m.ObserveIngestion("sales", 0, time.Second, errors.New("timeout"))
	m.ObserveIngestion("prices", 0, time.Second, nil)
	m.ObserveIngestion("inventory", 0, time.Second, apperr.Parse("parse inventory", errors.New("bad row")))
	m.ObserveIngestion("customers", 0, time.Second, apperr.Unavailable("fetch extract", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turns.WithLabelValues("stock_lookup", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("price_lookup", "true")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.ingestedRows.WithLabelValues("ledger")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestions.WithLabelValues("sales", "unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestions.WithLabelValues("inventory", "parse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestions.WithLabelValues("customers", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingestions.WithLabelValues("prices", "empty")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveTurn("N/A", time.Millisecond, false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), "assistant_turns_total"))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveTool("verify_customer", time.Millisecond, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.toolCalls.WithLabelValues("verify_customer", "false")))
}
