package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters for the reschedule workflow, the wallet ledger
// and notification delivery. All methods are safe on a nil receiver.
type Metrics struct {
	proposals     *prometheus.CounterVec
	responses     *prometheus.CounterVec
	expirations   *prometheus.CounterVec
	walletCredits *prometheus.CounterVec
	refundAmount  prometheus.Counter
	notifications *prometheus.CounterVec
	outbox        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		proposals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "reschedule",
			Name:      "proposals_total",
			Help:      "Reschedule proposals by result",
		}, []string{"result"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "reschedule",
			Name:      "responses_total",
			Help:      "Patient responses to reschedule proposals by action and result",
		}, []string{"action", "result"}),
		expirations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "reschedule",
			Name:      "expirations_total",
			Help:      "Reschedule requests transitioned to expired, by trigger",
		}, []string{"trigger"}),
		walletCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "wallet",
			Name:      "credits_total",
			Help:      "Wallet credit attempts by category and result",
		}, []string{"category", "result"}),
		refundAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "wallet",
			Name:      "refunded_amount_total",
			Help:      "Sum of amounts refunded into wallets",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "notification",
			Name:      "dispatched_total",
			Help:      "Notification rows written by audience and status",
		}, []string{"audience", "status"}),
		outbox: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellness",
			Subsystem: "notification",
			Name:      "outbox_published_total",
			Help:      "Notifications relayed to the broker by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.proposals, m.responses, m.expirations, m.walletCredits, m.refundAmount, m.notifications, m.outbox)
	return m
}

func (m *Metrics) ObserveProposal(result string) {
	if m == nil {
		return
	}
	m.proposals.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveResponse(action, result string) {
	if m == nil {
		return
	}
	m.responses.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveExpiration(trigger string) {
	if m == nil {
		return
	}
	m.expirations.WithLabelValues(trigger).Inc()
}

func (m *Metrics) ObserveWalletCredit(category, result string, amount float64) {
	if m == nil {
		return
	}
	m.walletCredits.WithLabelValues(category, result).Inc()
	if result == "ok" && amount > 0 {
		m.refundAmount.Add(amount)
	}
}

func (m *Metrics) ObserveNotification(audience, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(audience, status).Inc()
}

func (m *Metrics) ObserveOutbox(status string) {
	if m == nil {
		return
	}
	m.outbox.WithLabelValues(status).Inc()
}
