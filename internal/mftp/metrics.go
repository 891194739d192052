package mftp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are additive observability, not part of the wire protocol. They're
// registered once at package init and are safe to leave unused (un-scraped)
// when a Config's MetricsAddr is empty.
var (
	senderPacketsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mftp_sender_packets_sent_total",
		Help: "Total DATA packets committed (first transmission) by the sender.",
	})
	senderTimeoutEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mftp_sender_timeout_events_total",
		Help: "Total SaW timer expirations observed by the sender.",
	})
	senderRetransmits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mftp_sender_retransmits_total",
		Help: "Total packet retransmissions, by destination.",
	}, []string{"destination"})
	senderEstimatedTimeout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mftp_sender_estimated_timeout_seconds",
		Help: "Current adaptive SaW timeout.",
	})

	receiverPacketsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mftp_receiver_packets_accepted_total",
		Help: "Total DATA packets accepted and written out by the receiver.",
	})
	receiverPacketsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mftp_receiver_packets_dropped_total",
		Help: "Total packets dropped by the receiver, by reason.",
	}, []string{"reason"})
)
