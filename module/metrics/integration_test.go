package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
)

func TestIntegrationCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	ic := NewIntegrationCollector(reg, 3)

	ic.MessageProcessed(model.VoteMessage, 10, true)
	ic.MessageProcessed(model.VoteMessage, 5, false)
	ic.CertificateProcessed(model.FastCertificate, true)
	ic.IntegrationError(model.ErrorTag{Component: model.Transport, Category: model.MissingSignature})
	ic.ComponentHealth(model.Transport, model.Degraded)
	ic.SystemState(model.DegradedState)
	ic.PerformanceUpdated(model.PerformanceMetrics{Throughput: 12.5, Latency: 5})
	ic.RecoveryAttempted("success")

	assert.Equal(t, float64(1), testutil.ToFloat64(ic.messages.WithLabelValues("vote", ResultAccepted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(ic.messages.WithLabelValues("vote", ResultRejected)))
	assert.Equal(t, float64(15), testutil.ToFloat64(ic.messageBytes))
	assert.Equal(t, float64(1), testutil.ToFloat64(ic.certificates.WithLabelValues("fast", ResultAccepted)))
	assert.Equal(t, float64(1), testutil.ToFloat64(ic.integrationErrors.WithLabelValues("transport", "missing_signature")))
	assert.Equal(t, float64(model.Degraded), testutil.ToFloat64(ic.componentHealth.WithLabelValues("transport")))
	assert.Equal(t, float64(model.DegradedState), testutil.ToFloat64(ic.systemState))
	assert.Equal(t, 12.5, testutil.ToFloat64(ic.throughput))
	assert.Equal(t, float64(1), testutil.ToFloat64(ic.recoveries.WithLabelValues("success")))

	// a second validator registers the same metrics under its own label
	require.NotPanics(t, func() { NewIntegrationCollector(reg, 4) })
}
