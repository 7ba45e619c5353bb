package metrics

import (
	"testing"

	"FinProfile/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.RecordSignal("AAPL", "NAKED_POC_TEST")
	r.RecordSignal("AAPL", "NAKED_POC_TEST")
	r.RecordError("engine")
	r.RecordProfile("AAPL", models.ReferenceLevels{POC: 101, VAH: 103, VAL: 99}, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.signals.WithLabelValues("AAPL", "NAKED_POC_TEST")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("engine")))
	assert.Equal(t, 103.0, testutil.ToFloat64(r.levels.WithLabelValues("AAPL", "vah")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.nakedPOCs.WithLabelValues("AAPL")))
}
