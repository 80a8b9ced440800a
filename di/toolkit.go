package di

import (
	"roombook/config"
	"roombook/infras/kafka"
	reconciliationService "roombook/internal/domains/reconciliation/service"
)

// ReconcileToolkit is what the reconcile command needs: the case service
// plus the consumer for the reconciliation topic.
type ReconcileToolkit struct {
	Config         *config.Config
	Reconciliation reconciliationService.Reconciliation
	Kafka          kafka.Client
}
