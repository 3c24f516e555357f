package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics counts money movements by outcome. A nil receiver is a no-op.
type SettlementMetrics struct {
	escrowTransitions *prometheus.CounterVec
	walletEntries     *prometheus.CounterVec
	payouts           *prometheus.CounterVec
	providerCalls     *prometheus.CounterVec
	reconciliation    *prometheus.CounterVec
	deliveryEvents    *prometheus.CounterVec
}

func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		escrowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_transitions_total",
			Help:      "Escrow state transitions by action and result.",
		}, []string{"action", "result"}),
		walletEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_entries_total",
			Help:      "Wallet ledger entries appended by type.",
		}, []string{"type"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_total",
			Help:      "Payout status changes.",
		}, []string{"status"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Calls to external payment providers by result.",
		}, []string{"provider", "operation", "result"}),
		reconciliation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_mismatch_total",
			Help:      "Wallet reconciliation mismatches by kind.",
		}, []string{"kind"}),
		deliveryEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_events_total",
			Help:      "Delivery status events by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.escrowTransitions, m.walletEntries, m.payouts, m.providerCalls, m.reconciliation, m.deliveryEvents)
	return m
}

func (m *SettlementMetrics) EscrowTransition(action, result string) {
	if m == nil || m.escrowTransitions == nil {
		return
	}
	m.escrowTransitions.WithLabelValues(normalizeLabel(action), normalizeLabel(result)).Inc()
}

func (m *SettlementMetrics) WalletEntry(entryType string) {
	if m == nil || m.walletEntries == nil {
		return
	}
	m.walletEntries.WithLabelValues(normalizeLabel(entryType)).Inc()
}

func (m *SettlementMetrics) Payout(status string) {
	if m == nil || m.payouts == nil {
		return
	}
	m.payouts.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *SettlementMetrics) ProviderCall(provider, operation string, err error) {
	if m == nil || m.providerCalls == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation), result).Inc()
}

func (m *SettlementMetrics) ReconciliationMismatch(kind string) {
	if m == nil || m.reconciliation == nil {
		return
	}
	m.reconciliation.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *SettlementMetrics) DeliveryEvent(outcome string) {
	if m == nil || m.deliveryEvents == nil {
		return
	}
	m.deliveryEvents.WithLabelValues(normalizeLabel(outcome)).Inc()
}
