package ulengine

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional Prometheus collector for connection-level
// counters. All methods are nil-safe: calling them on a nil *Metrics is a
// no-op, so engines that don't care about metrics can pass one in nowhere.
type Metrics struct {
	PDUsSent         prometheus.Counter
	PDUsReceived     prometheus.Counter
	BytesSent        prometheus.Counter
	BytesReceived    prometheus.Counter
	MessagesSent     *prometheus.CounterVec // label: command_field
	MessagesReceived *prometheus.CounterVec

	AssociationsAccepted prometheus.Counter
	AssociationsRejected prometheus.Counter

	RequestsInFlight prometheus.Gauge
}

// NewMetrics creates and registers engine metrics with reg. If reg is nil,
// the metrics are created but never registered, which is convenient in
// tests that only want nil-safety verified.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PDUsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "pdus_sent_total",
			Help: "Total number of PDUs written to the wire.",
		}),
		PDUsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "pdus_received_total",
			Help: "Total number of PDUs read from the wire.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "bytes_sent_total",
			Help: "Total number of PDU payload bytes written to the wire.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "bytes_received_total",
			Help: "Total number of PDU payload bytes read from the wire.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "messages_sent_total",
			Help: "Total number of DIMSE messages sent, by command field.",
		}, []string{"command_field"}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "messages_received_total",
			Help: "Total number of DIMSE messages received, by command field.",
		}, []string{"command_field"}),
		AssociationsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "associations_accepted_total",
			Help: "Total number of associations accepted.",
		}),
		AssociationsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "associations_rejected_total",
			Help: "Total number of associations rejected.",
		}),
		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dicomul", Subsystem: "engine", Name: "requests_in_flight",
			Help: "Number of requests currently pending a response.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.PDUsSent, m.PDUsReceived, m.BytesSent, m.BytesReceived,
			m.MessagesSent, m.MessagesReceived,
			m.AssociationsAccepted, m.AssociationsRejected,
			m.RequestsInFlight,
		)
	}
	return m
}

func (m *Metrics) recordPDUSent(bytes int) {
	if m == nil {
		return
	}
	m.PDUsSent.Inc()
	m.BytesSent.Add(float64(bytes))
}

func (m *Metrics) recordPDUReceived(bytes int) {
	if m == nil {
		return
	}
	m.PDUsReceived.Inc()
	m.BytesReceived.Add(float64(bytes))
}

func (m *Metrics) recordMessageSent(commandField uint16) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(commandFieldLabel(commandField)).Inc()
}

func (m *Metrics) recordMessageReceived(commandField uint16) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(commandFieldLabel(commandField)).Inc()
}

func (m *Metrics) recordAssociationAccepted() {
	if m == nil {
		return
	}
	m.AssociationsAccepted.Inc()
}

func (m *Metrics) recordAssociationRejected() {
	if m == nil {
		return
	}
	m.AssociationsRejected.Inc()
}

func (m *Metrics) setRequestsInFlight(n int) {
	if m == nil {
		return
	}
	m.RequestsInFlight.Set(float64(n))
}

func commandFieldLabel(commandField uint16) string {
	return fmt.Sprintf("0x%04x", commandField)
}
