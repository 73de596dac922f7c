package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/module"
)

// IntegrationCollector implements module.IntegrationMetrics with Prometheus.
// All metrics carry a constant validator label so several nodes can share a registry.
type IntegrationCollector struct {
	messages          *prometheus.CounterVec
	messageBytes      prometheus.Counter
	certificates      *prometheus.CounterVec
	broadcasts        prometheus.Counter
	interactions      *prometheus.CounterVec
	integrationErrors *prometheus.CounterVec
	componentHealth   *prometheus.GaugeVec
	systemState       prometheus.Gauge
	throughput        prometheus.Gauge
	latency           prometheus.Gauge
	bandwidth         prometheus.Gauge
	certificateRate   prometheus.Gauge
	repairRate        prometheus.Gauge
	failedOperations  prometheus.Gauge
	failuresDetected  prometheus.Counter
	recoveries        *prometheus.CounterVec
	clock             prometheus.Gauge
	inboundQueue      prometheus.Gauge
}

var _ module.IntegrationMetrics = (*IntegrationCollector)(nil)

func NewIntegrationCollector(registerer prometheus.Registerer, validator model.ValidatorID) *IntegrationCollector {
	factory := promauto.With(registerer)
	labels := prometheus.Labels{LabelValidator: strconv.FormatUint(uint64(validator), 10)}

	ic := &IntegrationCollector{

		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "messages_processed_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemTransport,
			Help:        "the number of transport messages processed, by type and result",
			ConstLabels: labels,
		}, []string{LabelMessage, LabelResult}),

		messageBytes: factory.NewCounter(prometheus.CounterOpts{
			Name:        "message_bytes_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemTransport,
			Help:        "the number of payload bytes received by the transport layer",
			ConstLabels: labels,
		}),

		certificates: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "certificates_processed_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemIntegration,
			Help:        "the number of certificates handed from voting to dissemination, by type and result",
			ConstLabels: labels,
		}, []string{LabelCertificate, LabelResult}),

		broadcasts: factory.NewCounter(prometheus.CounterOpts{
			Name:        "certificates_broadcast_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemIntegration,
			Help:        "the number of certificates forwarded to peers",
			ConstLabels: labels,
		}),

		interactions: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "interactions_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemIntegration,
			Help:        "the number of cross-component interactions logged, by type",
			ConstLabels: labels,
		}, []string{LabelInteraction}),

		integrationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "errors_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemIntegration,
			Help:        "the number of integration error tags recorded, by component and category",
			ConstLabels: labels,
		}, []string{LabelComponent, LabelCategory}),

		componentHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "component_health",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemIntegration,
			Help:        "the health of each component (0 healthy, 5 failed)",
			ConstLabels: labels,
		}, []string{LabelComponent}),

		systemState: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "system_state",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemIntegration,
			Help:        "the node-level state (0 initializing, 1 running, 2 degraded, 3 recovering, 4 halted)",
			ConstLabels: labels,
		}),

		throughput: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "throughput_bytes_per_tick",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemPerformance,
			Help:        "finalized payload bytes per tick",
			ConstLabels: labels,
		}),

		latency: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "finalization_latency_ticks",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemPerformance,
			Help:        "mean ticks from proposal to finalization",
			ConstLabels: labels,
		}),

		bandwidth: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "bandwidth_bytes",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemPerformance,
			Help:        "bytes charged to validators for dissemination",
			ConstLabels: labels,
		}),

		certificateRate: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "certificate_rate",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemPerformance,
			Help:        "certificates processed per hundred ticks",
			ConstLabels: labels,
		}),

		repairRate: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "active_repairs",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemPerformance,
			Help:        "the number of active repair requests",
			ConstLabels: labels,
		}),

		failedOperations: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "failed_operations",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemPerformance,
			Help:        "the number of failed operations since the last full recovery",
			ConstLabels: labels,
		}),

		failuresDetected: factory.NewCounter(prometheus.CounterOpts{
			Name:        "failures_detected_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemRecovery,
			Help:        "the number of failures found by periodic detection",
			ConstLabels: labels,
		}),

		recoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "attempts_total",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemRecovery,
			Help:        "the number of recovery attempts, by outcome",
			ConstLabels: labels,
		}, []string{LabelOutcome}),

		clock: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "clock_ticks",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemEngine,
			Help:        "the node's logical clock",
			ConstLabels: labels,
		}),

		inboundQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "inbound_queue_length",
			Namespace:   namespaceAlpenglow,
			Subsystem:   subsystemEngine,
			Help:        "the number of messages waiting in the node's inbound queue",
			ConstLabels: labels,
		}),
	}

	return ic
}

func (ic *IntegrationCollector) MessageProcessed(msgType model.MessageType, sizeBytes uint64, accepted bool) {
	ic.messages.WithLabelValues(msgType.String(), resultLabel(accepted)).Inc()
	ic.messageBytes.Add(float64(sizeBytes))
}

func (ic *IntegrationCollector) CertificateProcessed(certType model.CertificateType, accepted bool) {
	ic.certificates.WithLabelValues(certType.String(), resultLabel(accepted)).Inc()
}

func (ic *IntegrationCollector) CertificateBroadcast() {
	ic.broadcasts.Inc()
}

func (ic *IntegrationCollector) InteractionLogged(typ model.InteractionType) {
	ic.interactions.WithLabelValues(typ.String()).Inc()
}

func (ic *IntegrationCollector) IntegrationError(tag model.ErrorTag) {
	ic.integrationErrors.WithLabelValues(tag.Component.String(), tag.Category.String()).Inc()
}

func (ic *IntegrationCollector) ComponentHealth(component model.ComponentID, status model.HealthStatus) {
	ic.componentHealth.WithLabelValues(component.String()).Set(float64(status))
}

func (ic *IntegrationCollector) SystemState(state model.SystemState) {
	ic.systemState.Set(float64(state))
}

func (ic *IntegrationCollector) PerformanceUpdated(perf model.PerformanceMetrics) {
	ic.throughput.Set(perf.Throughput)
	ic.latency.Set(perf.Latency)
	ic.bandwidth.Set(float64(perf.Bandwidth))
	ic.certificateRate.Set(perf.CertificateRate)
	ic.repairRate.Set(float64(perf.RepairRate))
	ic.failedOperations.Set(float64(perf.FailedOperations))
}

func (ic *IntegrationCollector) FailuresDetected(count int) {
	ic.failuresDetected.Add(float64(count))
}

func (ic *IntegrationCollector) RecoveryAttempted(outcome string) {
	ic.recoveries.WithLabelValues(outcome).Inc()
}

func (ic *IntegrationCollector) ClockTick(clock uint64) {
	ic.clock.Set(float64(clock))
}

func (ic *IntegrationCollector) InboundQueueLength(length int) {
	ic.inboundQueue.Set(float64(length))
}
