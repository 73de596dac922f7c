package metrics

// Prometheus metric namespaces
const (
	namespaceAlpenglow = "alpenglow"
)

// Prometheus metric subsystems
const (
	subsystemIntegration = "integration"
	subsystemTransport   = "transport"
	subsystemPerformance = "performance"
	subsystemRecovery    = "recovery"
	subsystemEngine      = "engine"
)
