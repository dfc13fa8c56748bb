package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	log "gopkg.in/inconshreveable/log15.v2"
)

func TestInitializeLoggerReturnsChildLogger(t *testing.T) {
	root := log.New()
	l := InitializeLogger(root, "dispatchserver")
	require.NotNil(t, l)
}

func TestRecordSolveUpdatesCounters(t *testing.T) {
	before := testutil.ToFloat64(SolvesTotal.WithLabelValues("feasible"))
	RecordSolve("feasible", 10, 20, 5*time.Millisecond)
	after := testutil.ToFloat64(SolvesTotal.WithLabelValues("feasible"))
	require.Equal(t, before+1, after)
}
