package metrics

import (
	"github.com/onflow/alpenglow/consensus/alpenglow/model"
	"github.com/onflow/alpenglow/module"
)

type NoopCollector struct{}

var _ module.IntegrationMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) MessageProcessed(model.MessageType, uint64, bool)      {}
func (nc *NoopCollector) CertificateProcessed(model.CertificateType, bool)      {}
func (nc *NoopCollector) CertificateBroadcast()                                 {}
func (nc *NoopCollector) InteractionLogged(model.InteractionType)               {}
func (nc *NoopCollector) IntegrationError(model.ErrorTag)                       {}
func (nc *NoopCollector) ComponentHealth(model.ComponentID, model.HealthStatus) {}
func (nc *NoopCollector) SystemState(model.SystemState)                         {}
func (nc *NoopCollector) PerformanceUpdated(model.PerformanceMetrics)           {}
func (nc *NoopCollector) FailuresDetected(int)                                  {}
func (nc *NoopCollector) RecoveryAttempted(string)                              {}
func (nc *NoopCollector) ClockTick(uint64)                                      {}
func (nc *NoopCollector) InboundQueueLength(int)                                {}
